package httputil

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/genelab/lab-portal/pkg/errors"
	"github.com/genelab/lab-portal/pkg/i18n"
)

// Response is a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// ErrorBody represents an error in the response
type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Meta contains pagination and other metadata
type Meta struct {
	Page       int   `json:"page,omitempty"`
	PerPage    int   `json:"per_page,omitempty"`
	Total      int64 `json:"total,omitempty"`
	TotalPages int   `json:"total_pages,omitempty"`
}

// NewMeta builds pagination metadata for a page of results
func NewMeta(page, perPage int, total int64) *Meta {
	m := &Meta{Page: page, PerPage: perPage, Total: total}
	if perPage > 0 {
		m.TotalPages = int((total + int64(perPage) - 1) / int64(perPage))
	}
	return m
}

// ParsePagination reads page and per_page query parameters.
// Defaults to page 1 with 20 items; per_page is capped at 100.
func ParsePagination(r *http.Request) (page, perPage int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	perPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}

// JSON writes data in the success envelope
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	write(w, statusCode, Response{Success: statusCode < 300, Data: data})
}

// JSONWithMeta is JSON plus pagination metadata
func JSONWithMeta(w http.ResponseWriter, statusCode int, data interface{}, meta *Meta) {
	write(w, statusCode, Response{Success: statusCode < 300, Data: data, Meta: meta})
}

// Error writes err with its English message. Handlers use ErrorLocalized;
// this is for paths without a request, such as panic recovery.
func Error(w http.ResponseWriter, err error) {
	status, body := errorBody(err, func(e *errors.AppError) string { return e.Message }, "an unexpected error occurred")
	write(w, status, Response{Error: body})
}

// ErrorLocalized writes err in the locale resolved for r.
// Anything that is not an AppError becomes a bare 500.
func ErrorLocalized(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	status, body := errorBody(err,
		func(e *errors.AppError) string { return e.Localize(ctx) },
		i18n.TFromContext(ctx, "errors.internal"))
	write(w, status, Response{Error: body})
}

func errorBody(err error, message func(*errors.AppError) string, internal string) (int, *ErrorBody) {
	var appErr *errors.AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, &ErrorBody{Code: "INTERNAL_ERROR", Message: internal}
	}
	return appErr.StatusCode, &ErrorBody{Code: appErr.Code, Message: message(appErr), Details: appErr.Details}
}

func write(w http.ResponseWriter, statusCode int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// NoContent sends a 204 No Content response
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Created sends a 201 Created response
func Created(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusCreated, data)
}

// Accepted sends a 202 Accepted response
func Accepted(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusAccepted, data)
}

// DecodeJSON reads one JSON value from the body. Any decode failure,
// including an empty body, is reported as errors.invalid_json.
func DecodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.BadRequestWithKey("errors.invalid_json")
	}
	return nil
}
