package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/genelab/lab-portal/internal/backend"
	"github.com/genelab/lab-portal/internal/patient/service"
	"github.com/genelab/lab-portal/pkg/httputil"
	"github.com/genelab/lab-portal/pkg/logger"
)

// Handler handles patient folder endpoints
type Handler struct {
	service *service.Service
	log     *logger.Logger
}

// NewHandler creates a new patient folder handler
func NewHandler(svc *service.Service, log *logger.Logger) *Handler {
	return &Handler{
		service: svc,
		log:     log,
	}
}

// List handles GET /patient-folders?page&per_page&search&from&to
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.ParsePagination(r)
	q := r.URL.Query()

	folders, meta, err := h.service.List(r.Context(), backend.PatientFolderFilter{
		Page:    page,
		PerPage: perPage,
		Search:  q.Get("search"),
		From:    q.Get("from"),
		To:      q.Get("to"),
	})
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	out := httputil.NewMeta(page, perPage, int64(len(folders)))
	if meta != nil {
		out = &httputil.Meta{Page: meta.Page, PerPage: meta.PerPage, Total: meta.Total, TotalPages: meta.TotalPages}
	}
	httputil.JSONWithMeta(w, http.StatusOK, folders, out)
}

// Get handles GET /patient-folders/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	folder, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, folder)
}

// Create handles POST /patient-folders
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.FolderInput
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	folder, err := h.service.Create(r.Context(), req)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Created(w, folder)
}

// Update handles PATCH /patient-folders/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req service.FolderInput
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	folder, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, folder)
}

// Delete handles DELETE /patient-folders/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.NoContent(w)
}
