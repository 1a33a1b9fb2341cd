package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/rshade/greenreport/internal/carbon"
	"github.com/rshade/greenreport/internal/engine"
	"github.com/rshade/greenreport/internal/engine/archive"
	"github.com/rshade/greenreport/internal/llm"
	"github.com/rshade/greenreport/internal/report"
)

// Error kinds carried in the "error" field of failure responses.
const (
	KindMissingField       = "missing_field"
	KindUnknownFactor      = "unknown_factor"
	KindNoData             = "no_data"
	KindExternalCallFailed = "external_call_failed"
	KindGenerationFailed   = "generation_failed"
	KindInvalidRequest     = "invalid_request"
	KindUnavailable        = "unavailable"
	KindNotFound           = "not_found"
	KindMethodNotAllowed   = "method_not_allowed"
	KindTimeout            = "timeout"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	Timestamp string `json:"timestamp"`
}

// classify maps a pipeline error to its kind and status. Order matters:
// a model failure is wrapped in ErrGenerationFailed and must be reported
// by its cause.
func classify(err error) (string, int) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout, http.StatusGatewayTimeout
	case errors.Is(err, carbon.ErrMissingField):
		return KindMissingField, http.StatusUnprocessableEntity
	case errors.Is(err, carbon.ErrUnknownFactor):
		return KindUnknownFactor, http.StatusBadRequest
	case errors.Is(err, report.ErrInvalidReportType), errors.Is(err, engine.ErrInvalidTimeRange):
		return KindInvalidRequest, http.StatusBadRequest
	case errors.Is(err, engine.ErrNoData):
		return KindNoData, http.StatusNotFound
	case errors.Is(err, llm.ErrExternalCall):
		return KindExternalCallFailed, http.StatusBadGateway
	case errors.Is(err, engine.ErrUnavailable), errors.Is(err, archive.ErrDisabled):
		return KindUnavailable, http.StatusServiceUnavailable
	case errors.Is(err, archive.ErrNotFound), errors.Is(err, archive.ErrExpired), errors.Is(err, archive.ErrInvalidID):
		return KindNotFound, http.StatusNotFound
	default:
		return KindGenerationFailed, http.StatusInternalServerError
	}
}
