package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/nullable"

	"github.com/Flora-Ebah/kairos-backend/internal/app/apperr"
	"github.com/Flora-Ebah/kairos-backend/internal/platform/logging"
)

// ErrorResponse is the envelope every non-2xx response uses.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code      string                            `json:"code"`
	Message   string                            `json:"message"`
	Details   nullable.Nullable[map[string]any] `json:"details,omitempty"`
	RequestID nullable.Nullable[string]         `json:"requestId,omitempty"`
	Retryable bool                              `json:"retryable,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, message string, details map[string]any) {
	writeJSON(w, status, errorResponse(r, code, message, details, false))
}

func errorResponse(r *http.Request, code, message string, details map[string]any, retryable bool) ErrorResponse {
	var er ErrorResponse
	er.Error.Code = code
	er.Error.Message = message
	er.Error.Retryable = retryable
	if details != nil {
		er.Error.Details = nullable.NewNullableWithValue(details)
	}
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		er.Error.RequestID = nullable.NewNullableWithValue(rid)
	}
	return er
}

// writeAppError maps an application error to its HTTP status. Unknown errors are logged and hidden.
func writeAppError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		log.ErrorContext(r.Context(), "http_request_failed", "path", r.URL.Path, logging.Err(err))
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		return
	}

	status := http.StatusInternalServerError
	switch ae.Kind {
	case apperr.KindValidation:
		status = http.StatusUnprocessableEntity
	case apperr.KindLedgerNotFound, apperr.KindDriverNotFound:
		status = http.StatusNotFound
	case apperr.KindDuplicateLedger, apperr.KindLedgerClosed, apperr.KindAlreadyClosed, apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindCollaboratorUnavailable:
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		log.WarnContext(r.Context(), "http_request_failed", "path", r.URL.Path, "kind", string(ae.Kind), logging.Err(err))
	}
	writeJSON(w, status, errorResponse(r, string(ae.Kind), ae.Message, ae.Details, ae.Retryable()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
