// Package rest implements the HTTP surface (spec §6) with gin-gonic,
// grounded on the teacher's internal/infrastructure/api/rest package:
// a single Handlers struct for every resource, a shared APIError/TranslateError
// mapping, and request-ID middleware. The teacher's error catalogue
// (dozens of domain-specific sentinel errors keyed by name) collapses
// here to the engine's closed, flat Kind enum.
package rest

import (
	"net/http"

	domainerr "github.com/textforge/dagflow/internal/domain/errors"
)

// APIError is the response body for any non-2xx response.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
}

func (e *APIError) Error() string { return e.Message }

func NewAPIError(code, message string, httpStatus int) *APIError {
	return &APIError{Code: code, Message: message, HTTPStatus: httpStatus}
}

var (
	ErrBadRequest       = NewAPIError("BAD_REQUEST", "invalid request", http.StatusBadRequest)
	ErrMissingParameter = NewAPIError("MISSING_PARAMETER", "required parameter is missing", http.StatusBadRequest)
	ErrInvalidID        = NewAPIError("INVALID_ID", "invalid id format", http.StatusBadRequest)
	ErrInvalidJSON      = NewAPIError("INVALID_JSON", "invalid JSON in request body", http.StatusBadRequest)
)

// TranslateError maps a domainerr.Kind to its HTTP status, per spec §7.
func TranslateError(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if ok := as(err, &apiErr); ok {
		return apiErr
	}

	switch domainerr.KindOf(err) {
	case domainerr.NotFound:
		return NewAPIError("NOT_FOUND", err.Error(), http.StatusNotFound)
	case domainerr.Validation:
		return NewAPIError("VALIDATION_FAILED", err.Error(), http.StatusBadRequest)
	case domainerr.QueueFull:
		return NewAPIError("QUEUE_FULL", err.Error(), http.StatusTooManyRequests)
	case domainerr.UpstreamUnavailable:
		return NewAPIError("UPSTREAM_UNAVAILABLE", err.Error(), http.StatusBadGateway)
	case domainerr.Budget:
		return NewAPIError("BUDGET_EXCEEDED", err.Error(), http.StatusUnprocessableEntity)
	default:
		return NewAPIError("INTERNAL_ERROR", "an unexpected error occurred", http.StatusInternalServerError)
	}
}

func as(err error, target **APIError) bool {
	ae, ok := err.(*APIError)
	if !ok {
		return false
	}
	*target = ae
	return true
}
