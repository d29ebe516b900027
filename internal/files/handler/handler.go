package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/genelab/lab-portal/internal/backend"
	"github.com/genelab/lab-portal/internal/files/service"
	"github.com/genelab/lab-portal/internal/files/validation"
	"github.com/genelab/lab-portal/pkg/errors"
	"github.com/genelab/lab-portal/pkg/httputil"
	"github.com/genelab/lab-portal/pkg/logger"
)

// multipart parts above this size spill to temp files
const memoryLimit = 32 << 20

// Handler handles HTTP requests for patient folder files
type Handler struct {
	service      *service.Service
	maxBatchSize int64
	log          *logger.Logger
}

// NewHandler creates a new files handler
func NewHandler(svc *service.Service, maxBatchSize int64, log *logger.Logger) *Handler {
	return &Handler{
		service:      svc,
		maxBatchSize: maxBatchSize,
		log:          log,
	}
}

// ValidateRequest is the body of a dry-run validation
type ValidateRequest struct {
	Files      []validation.FileInfo           `json:"files"`
	Categories []validation.CategoryAssignment `json:"categories"`
}

// UploadResponse is returned after a successful batch upload
type UploadResponse struct {
	Files   []backend.GeneralFile `json:"files"`
	Summary validation.Summary    `json:"summary"`
}

// List handles GET /patient-folders/{id}/files
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	files, err := h.service.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if files == nil {
		files = []backend.GeneralFile{}
	}

	httputil.JSON(w, http.StatusOK, files)
}

// Upload handles POST /patient-folders/{id}/files
// Multipart form: one or more "files" parts plus an optional "categories"
// field holding a JSON array of category assignments.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := httputil.ParseMultipart(w, r, h.maxBatchSize, memoryLimit); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	var categories []validation.CategoryAssignment
	if raw := r.FormValue("categories"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &categories); err != nil {
			httputil.ErrorLocalized(w, r, errors.BadRequestWithKey("errors.invalid_json"))
			return
		}
	}

	headers := r.MultipartForm.File["files"]
	uploads := make([]service.Upload, len(headers))
	for i, fh := range headers {
		fh := fh
		uploads[i] = service.Upload{
			FileName: fh.Filename,
			Size:     fh.Size,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		}
	}

	files, result, err := h.service.UploadBatch(r.Context(), chi.URLParam(r, "id"), uploads, categories)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Created(w, UploadResponse{Files: files, Summary: result.Summary})
}

// Validate handles POST /patient-folders/{id}/files/validate
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	result, err := h.service.Validate(r.Context(), chi.URLParam(r, "id"), req.Files, req.Categories)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// Download handles GET /files/{fileId}/download
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	dl, err := h.service.Download(r.Context(), chi.URLParam(r, "fileId"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	defer dl.Close()

	if err := dl.Stream(w); err != nil {
		h.log.Warn().Err(err).Str("file_name", dl.FileName).Msg("download interrupted")
	}
}

// Delete handles DELETE /files/{fileId}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "fileId")); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.NoContent(w)
}
