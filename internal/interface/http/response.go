package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/shared"
	"github.com/Moeed-Tahir/perfect-connect/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// maxBodyBytes limits request bodies; a full participant profile is a few KB.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorBody(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return shared.WrapError("http", "DecodeBody", shared.ErrInvalidFormat, "malformed request body", err)
	}
	return nil
}

// statusFor maps application errors onto HTTP status codes.
//
//	validation, self interest, malformed body -> 400
//	participant or connection not found       -> 404
//	program not active, invalid state         -> 409
//	storage unavailable                       -> 503
//	deadline exceeded                         -> 504
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrInvalidFormat):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, shared.ErrSelfInterest):
		return http.StatusBadRequest, "self_interest"
	case shared.IsValidation(err):
		return http.StatusBadRequest, "validation_failed"
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, shared.ErrProgramNotActive):
		return http.StatusConflict, "program_not_active"
	case errors.Is(err, shared.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case shared.IsStorageUnavailable(err):
		return http.StatusServiceUnavailable, "storage_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError logs and writes err. Internal error details stay in the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	message := err.Error()

	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		if status == http.StatusInternalServerError {
			message = "internal server error"
		}
	} else {
		log.Debug().Err(err).Str("path", r.URL.Path).Msg("request rejected")
	}

	writeErrorBody(w, status, code, message)
}
