package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/genelab/lab-portal/internal/files/validation"
	"github.com/genelab/lab-portal/internal/intake/domain"
	"github.com/genelab/lab-portal/internal/intake/mapping"
	"github.com/genelab/lab-portal/pkg/i18n"
)

// errInvalidBatch makes `files validate` exit non-zero after printing the result
var errInvalidBatch = errors.New("batch is not valid")

func newRootCmd() *cobra.Command {
	var lang string

	root := &cobra.Command{
		Use:           "labctl",
		Short:         "Offline tools for the lab portal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&lang, "lang", i18n.DefaultLocale, "message language (vi, en)")

	root.AddCommand(newOCRCmd(), newFilesCmd(&lang), newSizeCmd())
	return root
}

func newOCRCmd() *cobra.Command {
	ocr := &cobra.Command{
		Use:   "ocr",
		Short: "OCR intake tools",
	}

	ocr.AddCommand(&cobra.Command{
		Use:   "map <payload.json>",
		Short: "Map an OCR result document to form values",
		Long:  "Reads an OCR result JSON document (use - for stdin) and prints the mapped form values and warnings.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			var result *domain.OCRResult
			if err := json.Unmarshal(data, &result); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			values, warnings := mapping.Reconcile(result)
			if warnings == nil {
				warnings = []string{}
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"form_values":   values,
				"fields_mapped": mapping.FieldsMapped(values),
				"warnings":      warnings,
			})
		},
	})
	return ocr
}

func newFilesCmd(lang *string) *cobra.Command {
	files := &cobra.Command{
		Use:   "files",
		Short: "Categorized file tools",
	}

	var specs, submitted []string
	validate := &cobra.Command{
		Use:   "validate",
		Short: "Dry-run the upload rules for a batch",
		Example: "  labctl files validate --file requisition.pdf:524288:application/pdf:test_requisition \\\n" +
			"    --file scan.png:2048:image/png:general --submitted consent.pdf:consent_form",
		RunE: func(cmd *cobra.Command, args []string) error {
			infos := make([]validation.FileInfo, 0, len(specs))
			categories := make([]validation.CategoryAssignment, 0, len(specs))
			for _, s := range specs {
				info, assignment, err := parseFileSpec(s)
				if err != nil {
					return err
				}
				infos = append(infos, info)
				categories = append(categories, assignment)
			}

			existing := make([]validation.SubmittedFile, 0, len(submitted))
			for _, s := range submitted {
				name, category, ok := cutLast(s, ":")
				if !ok {
					return fmt.Errorf("invalid --submitted %q, want name:category", s)
				}
				existing = append(existing, validation.SubmittedFile{FileName: name, Category: validation.Category(category)})
			}

			ctx := i18n.WithLocale(context.Background(), *lang)
			result := validation.ValidateCategorizedFiles(ctx, infos, categories, existing)
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if !result.IsValid {
				return errInvalidBatch
			}
			return nil
		},
	}
	validate.Flags().StringArrayVar(&specs, "file", nil, "file as name:size:mime:category (repeatable)")
	validate.Flags().StringArrayVar(&submitted, "submitted", nil, "file already in the folder as name:category (repeatable)")

	files.AddCommand(validate)
	return files
}

func newSizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "size <bytes>",
		Short: "Format a byte count the way the portal displays it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid byte count %q", args[0])
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), validation.FormatFileSize(n))
			return err
		},
	}
}

// parseFileSpec reads name:size:mime:category. The name may itself contain colons.
func parseFileSpec(spec string) (validation.FileInfo, validation.CategoryAssignment, error) {
	parts := strings.Split(spec, ":")
	if len(parts) < 4 {
		return validation.FileInfo{}, validation.CategoryAssignment{}, fmt.Errorf("invalid --file %q, want name:size:mime:category", spec)
	}

	n := len(parts)
	name := strings.Join(parts[:n-3], ":")
	size, err := strconv.ParseInt(parts[n-3], 10, 64)
	if err != nil || size < 0 {
		return validation.FileInfo{}, validation.CategoryAssignment{}, fmt.Errorf("invalid size in --file %q", spec)
	}

	category := validation.Category(parts[n-1])
	_, priority := validation.DefaultCategory(name)
	return validation.FileInfo{Name: name, Size: size, Type: parts[n-2]},
		validation.CategoryAssignment{FileName: name, Category: category, Priority: priority},
		nil
}

func cutLast(s, sep string) (string, string, bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return "", "", false
	}
	return s[:i], s[i+len(sep):], true
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
