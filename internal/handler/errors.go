package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pkordes/itinerary/internal/domain"
)

// ErrorDetail is the body of every error response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps ErrorDetail as {"error": {...}}.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// errRequest marks problems with the request itself, caught before the
// service layer is reached.
var errRequest = errors.New("bad request")

type sentinelMapping struct {
	err    error
	status int
	code   string
}

var sentinels = []sentinelMapping{
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrValidation, http.StatusUnprocessableEntity, "validation_error"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrGroupInvariant, http.StatusConflict, "group_invariant"},
	{domain.ErrDuplicate, http.StatusConflict, "duplicate"},
	{errRequest, http.StatusBadRequest, "bad_request"},
}

// writeError translates err into a JSON error response. Unknown errors are
// logged and reported as 500 without leaking their text.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("request_too_large", "request body too large"))
		return
	}
	for _, m := range sentinels {
		if errors.Is(err, m.err) {
			writeJSON(w, m.status, errorBody(m.code, unwrapMessage(err, m.err)))
			return
		}
	}
	s.log.ErrorContext(r.Context(), "request failed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	writeJSON(w, http.StatusInternalServerError, errorBody("internal_error", "internal server error"))
}

func errorBody(code, message string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Code: code, Message: message}}
}

// unwrapMessage extracts the human-readable part after the sentinel text.
// e.g. "service.GroupService.Rename: validation error: name is required" -> "name is required"
func unwrapMessage(err, sentinel error) string {
	msg := err.Error()
	marker := sentinel.Error() + ": "
	if i := strings.LastIndex(msg, marker); i >= 0 {
		return msg[i+len(marker):]
	}
	return sentinel.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body into v and validates it.
func (s *Server) decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return err
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: request body is required", errRequest)
		default:
			return fmt.Errorf("%w: malformed JSON body", errRequest)
		}
	}
	return s.validate.Struct(v)
}
