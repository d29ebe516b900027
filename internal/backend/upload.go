package backend

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sort"
	"strings"
)

// filePart is one named file field of a multipart upload
type filePart struct {
	field string
	file  FileUpload
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// upload streams a multipart form to the backend without buffering the files.
// Fields are written first, in key order, then the files in the given order.
func (c *Client) upload(ctx context.Context, op, path, resource string, fields map[string]string, parts []filePart, out interface{}) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeMultipart(mw, fields, parts))
	}()

	_, err := c.doJSON(ctx, call{
		op:          op,
		method:      http.MethodPost,
		path:        path,
		body:        pr,
		contentType: mw.FormDataContentType(),
		resource:    resource,
		stream:      true,
	}, nil, out)

	// unblocks the writer if the request ended before the body was consumed
	pr.Close()
	return err
}

func writeMultipart(mw *multipart.Writer, fields map[string]string, parts []filePart) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := mw.WriteField(k, fields[k]); err != nil {
			return fmt.Errorf("write field %s: %w", k, err)
		}
	}

	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(p.field), quoteEscaper.Replace(p.file.FileName)))
		contentType := p.file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)

		w, err := mw.CreatePart(h)
		if err != nil {
			return fmt.Errorf("create part %s: %w", p.field, err)
		}
		if _, err := io.Copy(w, p.file.Body); err != nil {
			return fmt.Errorf("stream %s: %w", p.file.FileName, err)
		}
	}
	return mw.Close()
}
