package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/genelab/lab-portal/internal/intake/domain"
	"github.com/genelab/lab-portal/internal/intake/service"
	"github.com/genelab/lab-portal/pkg/actor"
	"github.com/genelab/lab-portal/pkg/errors"
	"github.com/genelab/lab-portal/pkg/httputil"
	"github.com/genelab/lab-portal/pkg/i18n"
	"github.com/genelab/lab-portal/pkg/logger"
)

const maxUploadSize = 20 << 20 // 20MB

// Handler handles HTTP requests for OCR intake
type Handler struct {
	service *service.Service
	log     *logger.Logger
}

// NewHandler creates a new intake handler
func NewHandler(svc *service.Service, log *logger.Logger) *Handler {
	return &Handler{
		service: svc,
		log:     log,
	}
}

// MapResponse is the body of a synchronous mapping
type MapResponse struct {
	FormValues domain.FormValues `json:"form_values"`
	Warnings   []string          `json:"warnings"`
}

// StartOCR handles POST /intake/ocr
// Accepts a multipart form with a single "file" field holding the scanned
// requisition (image, PDF) or an OCR JSON export. Responds 202 with the job.
func (h *Handler) StartOCR(w http.ResponseWriter, r *http.Request) {
	if err := httputil.ParseMultipart(w, r, maxUploadSize, maxUploadSize); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.ErrorLocalized(w, r, errors.BadRequestWithKey("files.need_at_least_one_file"))
		return
	}
	defer file.Close()

	// Read file into memory (never to disk beyond the multipart buffer)
	data, err := io.ReadAll(file)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to read uploaded file")
		httputil.ErrorLocalized(w, r, errors.Internal("failed to read uploaded file"))
		return
	}

	// data is zeroed by the service once processed
	job, err := h.service.StartIntake(r.Context(), data, header.Filename)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Accepted(w, localizeJob(r, job))
}

// GetJob handles GET /intake/ocr/{jobId}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.GetJob(chi.URLParam(r, "jobId"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, localizeJob(r, job))
}

// Map handles POST /intake/map
// The body is an OCR result document; a JSON null yields the default form.
func (h *Handler) Map(w http.ResponseWriter, r *http.Request) {
	var result *domain.OCRResult
	if err := httputil.DecodeJSON(r, &result); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	values, warnings := h.service.Map(result)
	if warnings == nil {
		warnings = []string{}
	}
	httputil.JSON(w, http.StatusOK, MapResponse{FormValues: values, Warnings: warnings})
}

// Defaults handles GET /intake/defaults
func (h *Handler) Defaults(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, h.service.Defaults())
}

// ListAudit handles GET /intake/audit. Callers only ever see their own
// entries; there is no way to name another requester.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	caller := actor.FromContext(r.Context())
	if caller == nil {
		httputil.ErrorLocalized(w, r, errors.Unauthorized())
		return
	}
	page, perPage := httputil.ParsePagination(r)

	entries, total, err := h.service.ListAudit(r.Context(), caller.ID, page, perPage)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list intake audit")
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, entries, httputil.NewMeta(page, perPage, total))
}

func localizeJob(r *http.Request, job *domain.IntakeJob) *domain.IntakeJob {
	if job.ErrorKey != "" {
		job.Error = i18n.TFromContext(r.Context(), job.ErrorKey, job.ErrorParams)
	}
	return job
}
