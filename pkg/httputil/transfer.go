package httputil

import (
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/genelab/lab-portal/pkg/errors"
	"github.com/genelab/lab-portal/pkg/logger"
)

// ParseMultipart caps the body at maxBytes and parses it, keeping up to
// memory bytes of file parts in RAM. An oversized body is reported as
// files.too_large, anything else that is not valid multipart as
// errors.malformed_multipart.
func ParseMultipart(w http.ResponseWriter, r *http.Request, maxBytes, memory int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	err := r.ParseMultipartForm(memory)
	if err == nil {
		return nil
	}

	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		return errors.BadRequestWithKey("files.too_large", map[string]string{
			"max_mb": strconv.FormatInt(tooLarge.Limit>>20, 10),
		})
	}
	return errors.BadRequestWithKey("errors.malformed_multipart")
}

// Transfer lifts the server-wide read and write timeouts for routes that
// move whole sequencing files, giving each request timeout instead.
func Transfer(timeout time.Duration, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deadline := time.Now().Add(timeout)
			rc := http.NewResponseController(w)
			if err := rc.SetReadDeadline(deadline); err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("read deadline not extended")
			}
			if err := rc.SetWriteDeadline(deadline); err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("write deadline not extended")
			}
			next.ServeHTTP(w, r)
		})
	}
}
