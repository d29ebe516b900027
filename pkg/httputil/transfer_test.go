package httputil

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genelab/lab-portal/pkg/errors"
	"github.com/genelab/lab-portal/pkg/logger"
)

func multipartRequest(t *testing.T, field, name string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func TestParseMultipart(t *testing.T) {
	t.Run("within limit", func(t *testing.T) {
		r := multipartRequest(t, "r1", "S1_R1.fastq", []byte("@r1\nACGT\n+\nIIII\n"))

		require.NoError(t, ParseMultipart(httptest.NewRecorder(), r, 1<<20, 1<<20))
		require.Len(t, r.MultipartForm.File["r1"], 1)
		assert.Equal(t, "S1_R1.fastq", r.MultipartForm.File["r1"][0].Filename)
	})

	t.Run("body over limit", func(t *testing.T) {
		r := multipartRequest(t, "files", "scan.pdf", bytes.Repeat([]byte("x"), 2<<20))

		err := ParseMultipart(httptest.NewRecorder(), r, 1<<20, 1<<20)

		var appErr *errors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, http.StatusBadRequest, appErr.StatusCode)
		assert.Equal(t, "files.too_large", appErr.MessageKey)
		assert.Equal(t, "1", appErr.Params["max_mb"])
	})

	t.Run("not multipart", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(`{"x":1}`))
		r.Header.Set("Content-Type", "application/json")

		err := ParseMultipart(httptest.NewRecorder(), r, 1<<20, 1<<20)

		var appErr *errors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, "errors.malformed_multipart", appErr.MessageKey)
	})

	t.Run("truncated body", func(t *testing.T) {
		r := multipartRequest(t, "files", "scan.pdf", []byte("%PDF-1.4"))
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body[:len(body)/2]))

		err := ParseMultipart(httptest.NewRecorder(), r, 1<<20, 1<<20)

		var appErr *errors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, "errors.malformed_multipart", appErr.MessageKey)
	})
}

func TestTransfer_OutlivesServerWriteTimeout(t *testing.T) {
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		_, _ = w.Write([]byte("@r1\nACGT\n"))
	})

	mux := http.NewServeMux()
	mux.Handle("/transfer", Transfer(5*time.Second, logger.Nop())(slow))
	mux.Handle("/plain", slow)

	srv := httptest.NewUnstartedServer(mux)
	srv.Config.WriteTimeout = 100 * time.Millisecond
	srv.Start()
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/transfer")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "@r1\nACGT\n", string(body))

	// Without the middleware the server drops the connection.
	_, err = srv.Client().Get(srv.URL + "/plain")
	assert.Error(t, err)
}

func TestTransfer_RecorderStillServes(t *testing.T) {
	h := Transfer(time.Minute, logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
}
