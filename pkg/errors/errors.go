// Package errors carries the portal's HTTP-aware error type. Every AppError
// has a stable code for clients and an i18n key for the message shown to staff.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/genelab/lab-portal/pkg/i18n"
)

// Sentinels for errors.Is
var (
	ErrNotFound           = errors.New("resource not found")
	ErrBadRequest         = errors.New("bad request")
	ErrConflict           = errors.New("resource conflict")
	ErrInternal           = errors.New("internal server error")
	ErrValidation         = errors.New("validation error")
	ErrUpstream           = errors.New("upstream service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrUnauthorized       = errors.New("unauthorized")
)

// AppError is an error that knows its HTTP status
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	MessageKey string            `json:"-"`
	Params     map[string]string `json:"-"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Localize renders the message in the locale carried by ctx.
// Errors without a key fall back to Message.
func (e *AppError) Localize(ctx context.Context) string {
	if e.MessageKey == "" {
		return e.Message
	}
	return i18n.TFromContext(ctx, e.MessageKey, e.Params)
}

// WithDetails attaches per-field details and returns e
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// New builds an AppError with no sentinel or i18n key, e.g. for errors
// relayed verbatim from the lab backend.
func New(code string, message string, statusCode int) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: statusCode}
}

// keyed builds an error whose English message is rendered from key
func keyed(sentinel error, code string, status int, key string, params []map[string]string) *AppError {
	var p map[string]string
	if len(params) > 0 {
		p = params[0]
	}
	return &AppError{
		Err:        sentinel,
		Code:       code,
		Message:    i18n.TWithLocale(i18n.LocaleEnglish, key, p),
		MessageKey: key,
		Params:     p,
		StatusCode: status,
	}
}

func NotFound(resource string) *AppError {
	e := keyed(ErrNotFound, "NOT_FOUND", http.StatusNotFound, "errors.not_found", []map[string]string{{"resource": resource}})
	e.Message = resource + " not found"
	return e
}

func BadRequest(message string) *AppError {
	e := keyed(ErrBadRequest, "BAD_REQUEST", http.StatusBadRequest, "errors.bad_request", nil)
	e.Message = message
	return e
}

// BadRequestWithKey is a 400 whose message is more specific than "invalid request"
func BadRequestWithKey(messageKey string, params ...map[string]string) *AppError {
	return keyed(ErrBadRequest, "BAD_REQUEST", http.StatusBadRequest, messageKey, params)
}

func Conflict(message string) *AppError {
	e := keyed(ErrConflict, "CONFLICT", http.StatusConflict, "errors.conflict", nil)
	e.Message = message
	return e
}

// ConflictWithKey reports a request that does not fit the resource's current state
func ConflictWithKey(messageKey string, params ...map[string]string) *AppError {
	return keyed(ErrConflict, "CONFLICT", http.StatusConflict, messageKey, params)
}

// Unauthorized is returned when a request that must be attributed to a
// staff member arrives without forwarded identity headers
func Unauthorized() *AppError {
	return keyed(ErrUnauthorized, "UNAUTHORIZED", http.StatusUnauthorized, "errors.identity_required", nil)
}

func Internal(message string) *AppError {
	e := keyed(ErrInternal, "INTERNAL_ERROR", http.StatusInternalServerError, "errors.internal", nil)
	e.Message = message
	return e
}

func Validation(details map[string]string) *AppError {
	e := keyed(ErrValidation, "VALIDATION_ERROR", http.StatusBadRequest, "errors.validation_failed", nil)
	e.Message = "validation failed"
	e.Details = details
	return e
}

// Upstream reports a failed call to the lab backend or the OCR engine
func Upstream(service string, err error) *AppError {
	e := keyed(ErrUpstream, "UPSTREAM_ERROR", http.StatusBadGateway, "errors.upstream", []map[string]string{{"service": service}})
	e.Err = fmt.Errorf("%w: %v", ErrUpstream, err)
	e.Message = service + " request failed"
	return e
}

// ServiceUnavailable is returned while a circuit breaker is open
func ServiceUnavailable(service string) *AppError {
	e := keyed(ErrServiceUnavailable, "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, "errors.service_unavailable", []map[string]string{{"service": service}})
	e.Message = service + " is temporarily unavailable"
	return e
}

// Is and As re-export the standard library so callers need one errors import
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }
