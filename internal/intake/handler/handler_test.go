package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genelab/lab-portal/internal/events"
	"github.com/genelab/lab-portal/internal/intake/domain"
	"github.com/genelab/lab-portal/internal/intake/handler"
	"github.com/genelab/lab-portal/internal/intake/processor"
	"github.com/genelab/lab-portal/internal/intake/service"
	"github.com/genelab/lab-portal/internal/intake/storage"
	"github.com/genelab/lab-portal/pkg/httputil"
	"github.com/genelab/lab-portal/pkg/i18n"
	"github.com/genelab/lab-portal/pkg/logger"
	"github.com/genelab/lab-portal/pkg/testutil"
)

type envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *httputil.ErrorBody `json:"error"`
}

func newRouter(t *testing.T) (http.Handler, *service.Service) {
	t.Helper()
	return newRouterWithAudit(t, nil)
}

func newRouterWithAudit(t *testing.T, audit service.AuditStore) (http.Handler, *service.Service) {
	t.Helper()
	cache, err := storage.NewResultCache(8)
	require.NoError(t, err)

	log := logger.Nop()
	svc := service.NewService(service.Config{
		Registry: processor.NewRegistry(processor.NewPassthroughProcessor()),
		Jobs:     storage.NewJobStore(time.Minute),
		Cache:    cache,
		Audit:    audit,
		Events:   events.NewLabEventPublisher(testutil.NewMockPublisher(), log),
	}, log)
	h := handler.NewHandler(svc, log)

	r := chi.NewRouter()
	r.Use(i18n.Middleware)
	r.Use(httputil.Identity)
	r.Route("/api/v1/intake", func(r chi.Router) {
		r.Post("/ocr", h.StartOCR)
		r.Get("/ocr/{jobId}", h.GetJob)
		r.Post("/map", h.Map)
		r.Get("/defaults", h.Defaults)
		r.Get("/audit", h.ListAudit)
	})
	return r, svc
}

func parse(t *testing.T, body string) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(body), &env), body)
	return env
}

func TestStartOCR_ThenPoll(t *testing.T) {
	router, svc := newRouter(t)

	payload := `{"document_name":"non_invasive_prenatal_testing","non_invasive_prenatal_testing":{"gestational_age_weeks":"12 tuần"}}`
	req := testutil.NewMultipartRequest(t, http.MethodPost, "/api/v1/intake/ocr", nil, map[string][]testutil.FilePart{
		"file": {{Name: "export.json", Content: []byte(payload)}},
	})
	testutil.WithUserHeaders(req, "tech-1", "Lan")

	rr := testutil.ExecuteRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusAccepted)

	var job domain.IntakeJob
	require.NoError(t, json.Unmarshal(parse(t, rr.Body.String()).Data, &job))
	require.NotEmpty(t, job.JobID)
	assert.Equal(t, "export.json", job.FileName)

	svc.Wait()

	rr = testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/api/v1/intake/ocr/"+job.JobID, nil))
	testutil.AssertStatus(t, rr, http.StatusOK)

	require.NoError(t, json.Unmarshal(parse(t, rr.Body.String()).Data, &job))
	assert.Equal(t, domain.StatusCompleted, job.Status)
	require.NotNil(t, job.FormValues)
	assert.Equal(t, domain.FormTypeNonInvasivePrenatalTesting, job.FormValues.FormType)
	assert.Equal(t, float64(12), job.FormValues.GestationalAgeWeeks)
}

func TestStartOCR_UnsupportedFileFailsLocalized(t *testing.T) {
	router, _ := newRouter(t)

	req := testutil.NewMultipartRequest(t, http.MethodPost, "/api/v1/intake/ocr", nil, map[string][]testutil.FilePart{
		"file": {{Name: "notes.txt", Content: []byte("plain notes, not a requisition")}},
	})
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	rr := testutil.ExecuteRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusAccepted)

	var job domain.IntakeJob
	require.NoError(t, json.Unmarshal(parse(t, rr.Body.String()).Data, &job))
	assert.Equal(t, domain.StatusFailed, job.Status)
	assert.Equal(t, "No OCR processor is available for this document", job.Error)
}

func TestStartOCR_MissingFile(t *testing.T) {
	router, _ := newRouter(t)

	req := testutil.NewMultipartRequest(t, http.MethodPost, "/api/v1/intake/ocr", map[string]string{"note": "x"}, nil)
	rr := testutil.ExecuteRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	env := parse(t, rr.Body.String())
	require.NotNil(t, env.Error)
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)
}

func TestStartOCR_NotMultipart(t *testing.T) {
	router, _ := newRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/intake/ocr?lang=en", strings.NewReader(`{"x":1}`))
	req.Header.Set("Content-Type", "application/json")
	rr := testutil.ExecuteRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	assert.Equal(t, "Request is not a valid multipart upload", parse(t, rr.Body.String()).Error.Message)
}

func TestGetJob_NotFoundIsLocalized(t *testing.T) {
	router, _ := newRouter(t)

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/api/v1/intake/ocr/unknown", nil))
	testutil.AssertStatus(t, rr, http.StatusNotFound)
	assert.Equal(t, "Không tìm thấy phiên xử lý OCR", parse(t, rr.Body.String()).Error.Message)

	rr = testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/api/v1/intake/ocr/unknown?lang=en", nil))
	assert.Equal(t, "OCR job not found", parse(t, rr.Body.String()).Error.Message)
}

func TestMap(t *testing.T) {
	router, _ := newRouter(t)

	body := `{
		"document_name": "gene_mutation_testing",
		"gene_mutation_testing": {"specimen_type": {"blood_stl_ctdna": true}}
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/intake/map", strings.NewReader(body))

	rr := testutil.ExecuteRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusOK)

	var resp handler.MapResponse
	require.NoError(t, json.Unmarshal(parse(t, rr.Body.String()).Data, &resp))
	assert.Equal(t, domain.FormTypeGeneMutationTesting, resp.FormValues.FormType)
	assert.True(t, resp.FormValues.BloodStlCtdna)
	assert.False(t, resp.FormValues.BiopsyTissueFfpe)
	assert.NotNil(t, resp.Warnings)
}

func TestMap_NullYieldsDefaults(t *testing.T) {
	router, _ := newRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/intake/map", strings.NewReader("null"))

	rr := testutil.ExecuteRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusOK)

	var resp handler.MapResponse
	require.NoError(t, json.Unmarshal(parse(t, rr.Body.String()).Data, &resp))
	assert.Equal(t, domain.FormValues{}, resp.FormValues)
}

func TestMap_InvalidJSON(t *testing.T) {
	router, _ := newRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/intake/map?lang=en", strings.NewReader("{not json"))

	rr := testutil.ExecuteRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	assert.Equal(t, "Request body is not valid JSON", parse(t, rr.Body.String()).Error.Message)
}

func TestDefaultsAndAudit(t *testing.T) {
	router, _ := newRouter(t)

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/api/v1/intake/defaults", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertBodyContains(t, rr, `"form_type":""`)

	rr = testutil.ExecuteRequest(router, testutil.WithUserHeaders(
		testutil.NewHTTPRequest(http.MethodGet, "/api/v1/intake/audit", nil), "tech-1", "Lan"))
	testutil.AssertStatus(t, rr, http.StatusOK)
}

// requesterLog records which requester each audit listing was scoped to
type requesterLog struct {
	mu         sync.Mutex
	requesters []string
}

func (l *requesterLog) Insert(ctx context.Context, e *domain.AuditEntry) error { return nil }

func (l *requesterLog) ListRecent(ctx context.Context, requestedBy string, page, perPage int) ([]domain.AuditEntry, int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requesters = append(l.requesters, requestedBy)
	return []domain.AuditEntry{{JobID: "job-1", RequestedBy: requestedBy}}, 1, nil
}

func TestListAudit_ScopedToCaller(t *testing.T) {
	audit := &requesterLog{}
	router, _ := newRouterWithAudit(t, audit)

	for _, path := range []string{"/api/v1/intake/audit", "/api/v1/intake/audit?requested_by=bob"} {
		req := testutil.WithUserHeaders(testutil.NewHTTPRequest(http.MethodGet, path, nil), "alice", "Alice")
		rr := testutil.ExecuteRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.NotContains(t, rr.Body.String(), "bob")
	}

	assert.Equal(t, []string{"alice", "alice"}, audit.requesters)
}

func TestListAudit_AnonymousRejected(t *testing.T) {
	audit := &requesterLog{}
	router, _ := newRouterWithAudit(t, audit)

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/api/v1/intake/audit", nil))

	testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	assert.Equal(t, "UNAUTHORIZED", parse(t, rr.Body.String()).Error.Code)
	assert.Empty(t, audit.requesters)
}
