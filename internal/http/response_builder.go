// This file maps domain errors to HTTP statuses and writes JSON bodies.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/arsenis-cmd/BudgetBot/internal/core"
	"github.com/arsenis-cmd/BudgetBot/internal/log"
	"github.com/arsenis-cmd/BudgetBot/internal/middleware/trace"
	"github.com/arsenis-cmd/BudgetBot/internal/services"
)

var (
	errMissingUser   = errors.New("missing " + headerUserID + " header")
	errRateLimited   = errors.New("rate limit exceeded")
	errRouteNotFound = errors.New("route not found")
)

var validationErrors = []error{
	core.ErrInvalidAmount,
	core.ErrInvalidKind,
	core.ErrInvalidSource,
	core.ErrInvalidGranularity,
	core.ErrEmptyUser,
	core.ErrEmptyCategory,
	core.ErrZeroTime,
	core.ErrDescriptionTooLong,
	core.ErrInvalidGoal,
	services.ErrUnknownCategory,
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error     errorBody `json:"error"`
	RequestID string    `json:"request_id,omitempty"`
}

// statusFor picks the HTTP status and stable error code for err.
func statusFor(err error) (int, string) {
	var br badRequest
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, errMissingUser):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, errRouteNotFound), errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, core.ErrCollaboratorUnavailable):
		return http.StatusServiceUnavailable, "collaborator_unavailable"
	case errors.Is(err, core.ErrCollaboratorRejected):
		return http.StatusBadGateway, "collaborator_rejected"
	case errors.Is(err, core.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "storage_unavailable"
	case errors.Is(err, core.ErrMultipleActiveGoals):
		return http.StatusConflict, "conflict"
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return http.StatusUnprocessableEntity, "validation_failed"
		}
	}
	return http.StatusInternalServerError, "internal"
}

// newErrorBody hides internal details behind a generic message for
// 5xx statuses that are not collaborator or storage outages.
func newErrorBody(err error) errorBody {
	status, code := statusFor(err)
	msg := err.Error()
	switch {
	case status == http.StatusServiceUnavailable:
		msg = "temporarily unavailable, please retry later"
	case status == http.StatusInternalServerError:
		msg = "internal error"
	}
	return errorBody{Code: code, Message: msg}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, _ := statusFor(err)
	ctx := r.Context()
	logger := log.FromContext(ctx)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "Request failed", log.FieldStatusCode, status, log.FieldError, err)
	} else {
		logger.DebugContext(ctx, "Request rejected", log.FieldStatusCode, status, log.FieldError, err)
	}
	if status == http.StatusServiceUnavailable || status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "60")
	}
	writeJSON(w, status, errorResponse{Error: newErrorBody(err), RequestID: trace.GetRequestID(ctx)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", log.FieldError, err)
	}
}
