package handler

import (
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/genelab/lab-portal/internal/backend"
	"github.com/genelab/lab-portal/internal/lab/service"
	"github.com/genelab/lab-portal/pkg/errors"
	"github.com/genelab/lab-portal/pkg/httputil"
	"github.com/genelab/lab-portal/pkg/logger"
)

const (
	maxFastqUpload = 20 << 30 // 20GB per pair
	memoryLimit    = 32 << 20
)

// Handler handles lab session, FastQ and ETL endpoints
type Handler struct {
	service *service.Service
	log     *logger.Logger
}

// NewHandler creates a new lab handler
func NewHandler(svc *service.Service, log *logger.Logger) *Handler {
	return &Handler{
		service: svc,
		log:     log,
	}
}

// AssignLabcodesRequest is the body of POST /lab-sessions/{id}/assign
type AssignLabcodesRequest struct {
	Labcodes []string `json:"labcodes"`
}

// AssignResultTestRequest is the body of POST /lab-sessions/{id}/result-tests
type AssignResultTestRequest struct {
	ResultTestID string `json:"result_test_id"`
}

// RejectFastqRequest is the body of POST /fastq-pairs/{id}/reject
type RejectFastqRequest struct {
	RedoReason string `json:"redo_reason"`
}

// DecisionRequest is the body of an ETL approve or reject
type DecisionRequest struct {
	Reason string `json:"reason"`
}

// ListSessions handles GET /lab-sessions
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.ParsePagination(r)

	sessions, meta, err := h.service.ListSessions(r.Context(), backend.LabSessionFilter{
		Page:    page,
		PerPage: perPage,
		Search:  r.URL.Query().Get("search"),
	})
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	out := httputil.NewMeta(page, perPage, int64(len(sessions)))
	if meta != nil {
		out = &httputil.Meta{Page: meta.Page, PerPage: meta.PerPage, Total: meta.Total, TotalPages: meta.TotalPages}
	}
	httputil.JSONWithMeta(w, http.StatusOK, sessions, out)
}

// GetSession handles GET /lab-sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, session)
}

// AssignLabcodes handles POST /lab-sessions/{id}/assign
func (h *Handler) AssignLabcodes(w http.ResponseWriter, r *http.Request) {
	var req AssignLabcodesRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	session, err := h.service.AssignLabcodes(r.Context(), chi.URLParam(r, "id"), req.Labcodes)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, session)
}

// AssignResultTest handles POST /lab-sessions/{id}/result-tests
func (h *Handler) AssignResultTest(w http.ResponseWriter, r *http.Request) {
	var req AssignResultTestRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	session, err := h.service.AssignResultTest(r.Context(), chi.URLParam(r, "id"), req.ResultTestID)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, session)
}

// ListFastqPairs handles GET /lab-sessions/{id}/fastq-pairs
func (h *Handler) ListFastqPairs(w http.ResponseWriter, r *http.Request) {
	pairs, err := h.service.ListFastqPairs(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if pairs == nil {
		pairs = []backend.FastqFilePair{}
	}

	httputil.JSON(w, http.StatusOK, pairs)
}

// UploadFastqPair handles POST /lab-sessions/{id}/fastq-pairs
// Multipart form with one "r1" and one "r2" file part.
func (h *Handler) UploadFastqPair(w http.ResponseWriter, r *http.Request) {
	if err := httputil.ParseMultipart(w, r, maxFastqUpload, memoryLimit); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	r1, close1, err := formRead(r.MultipartForm, "r1")
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	defer close1()

	r2, close2, err := formRead(r.MultipartForm, "r2")
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	defer close2()

	pair, err := h.service.UploadFastqPair(r.Context(), chi.URLParam(r, "id"), r1, r2)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Created(w, pair)
}

// formRead opens the first file of a multipart field. A missing field yields a nil read.
func formRead(form *multipart.Form, field string) (*service.ReadFile, func(), error) {
	headers := form.File[field]
	if len(headers) == 0 {
		return nil, func() {}, nil
	}

	f, err := headers[0].Open()
	if err != nil {
		return nil, func() {}, errors.Internal("failed to read uploaded file")
	}
	return &service.ReadFile{
		FileName: headers[0].Filename,
		Size:     headers[0].Size,
		Body:     f,
	}, func() { f.Close() }, nil
}

// DeleteFastqPair handles DELETE /fastq-pairs/{id}
func (h *Handler) DeleteFastqPair(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteFastqPair(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.NoContent(w)
}

// DownloadFastqPair handles GET /fastq-pairs/{id}/download
func (h *Handler) DownloadFastqPair(w http.ResponseWriter, r *http.Request) {
	dl, err := h.service.DownloadFastqPair(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	defer dl.Close()

	if err := dl.Stream(w); err != nil {
		h.log.Warn().Err(err).Str("file_name", dl.FileName).Msg("download interrupted")
	}
}

// RejectFastqPair handles POST /fastq-pairs/{id}/reject
func (h *Handler) RejectFastqPair(w http.ResponseWriter, r *http.Request) {
	var req RejectFastqRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	pair, err := h.service.RejectFastqPair(r.Context(), chi.URLParam(r, "id"), req.RedoReason)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, pair)
}

// ListEtlResults handles GET /lab-sessions/{id}/etl-results
func (h *Handler) ListEtlResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.ListEtlResults(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if results == nil {
		results = []backend.EtlResult{}
	}

	httputil.JSON(w, http.StatusOK, results)
}

// ApproveEtlResult handles POST /etl-results/{id}/approve
// The body is optional.
func (h *Handler) ApproveEtlResult(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.ErrorLocalized(w, r, err)
			return
		}
	}

	result, err := h.service.ApproveEtlResult(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// RejectEtlResult handles POST /etl-results/{id}/reject
func (h *Handler) RejectEtlResult(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	result, err := h.service.RejectEtlResult(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// DownloadEtlResult handles GET /etl-results/{id}/download
func (h *Handler) DownloadEtlResult(w http.ResponseWriter, r *http.Request) {
	dl, err := h.service.DownloadEtlResult(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	defer dl.Close()

	if err := dl.Stream(w); err != nil {
		h.log.Warn().Err(err).Str("file_name", dl.FileName).Msg("download interrupted")
	}
}
