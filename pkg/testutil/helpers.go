package testutil

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genelab/lab-portal/pkg/actor"
)

// NewHTTPRequest builds a handler request. A non-nil body is sent as JSON.
func NewHTTPRequest(method, path string, body interface{}) *http.Request {
	if body == nil {
		return httptest.NewRequest(method, path, nil)
	}
	b, err := json.Marshal(body)
	if err != nil {
		panic(err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithUserHeaders sets the identity headers the gateway forwards
func WithUserHeaders(req *http.Request, userID, userName string) *http.Request {
	(&actor.Actor{ID: userID, Name: userName}).Apply(req.Header)
	return req
}

// NewMultipartRequest builds a multipart/form-data request.
// files maps a form field name to one or more (fileName, content) parts.
func NewMultipartRequest(t *testing.T, method, path string, fields map[string]string, files map[string][]FilePart) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for field, parts := range files {
		for _, p := range parts {
			fw, err := mw.CreateFormFile(field, p.Name)
			require.NoError(t, err)
			_, err = fw.Write(p.Content)
			require.NoError(t, err)
		}
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// FilePart is one file in a multipart request
type FilePart struct {
	Name    string
	Content []byte
}

// ExecuteRequest serves req through handler
func ExecuteRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// AssertStatus checks the status and prints the body when it is wrong
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	assert.Equal(t, expected, rr.Code, "body: %s", rr.Body.String())
}

func AssertBodyContains(t *testing.T, rr *httptest.ResponseRecorder, expected string) {
	t.Helper()
	assert.Contains(t, rr.Body.String(), expected)
}

// SkipIfShort skips tests that need Docker when run with -short
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("needs docker; skipped with -short")
	}
}
