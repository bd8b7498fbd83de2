package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/hearth/internal/intent"
	"github.com/nerrad567/hearth/internal/language"
	"github.com/nerrad567/hearth/internal/pipeline"
)

// Error is the JSON body of every non-2xx response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes. Each maps to exactly one HTTP status.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeAmbiguous    = "ambiguous_command"
	ErrCodeUnavailable  = "service_unavailable"
	ErrCodeInternal     = "internal_error"
)

var codeStatus = map[string]int{
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeNotFound:     http.StatusNotFound,
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeAmbiguous:    http.StatusUnprocessableEntity,
	ErrCodeUnavailable:  http.StatusServiceUnavailable,
	ErrCodeInternal:     http.StatusInternalServerError,
}

// statusFor returns the HTTP status for an error code, 500 if unknown.
func statusFor(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// pipelineErrorCode classifies an error returned by the pipeline.
// The second result is false for unclassified errors, which callers log.
func pipelineErrorCode(err error) (string, bool) {
	switch {
	case errors.Is(err, pipeline.ErrEmptyCommand):
		return ErrCodeBadRequest, true
	case errors.Is(err, intent.ErrUnknownDevice), errors.Is(err, intent.ErrUnknownScene):
		return ErrCodeNotFound, true
	case errors.Is(err, intent.ErrAmbiguousCommand):
		return ErrCodeAmbiguous, true
	case errors.Is(err, language.ErrBackendUnavailable):
		return ErrCodeUnavailable, true
	default:
		return ErrCodeInternal, false
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
	}
}

// writeError writes an Error body with the status belonging to code.
func writeError(w http.ResponseWriter, code, message string) {
	status := statusFor(code)
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}
