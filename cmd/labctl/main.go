// Command labctl runs the portal's offline checks from a shell: mapping an
// OCR export to form values, dry-running the upload rules, and formatting sizes.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
