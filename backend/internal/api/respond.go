package api

import (
	"errors"
	"log/slog"
	"net/http"

	"thermonode/backend/pkg/utils"
)

const (
	ContentTypeText = "text/plain; charset=utf-8"
	ContentTypeJSON = "application/json"
)

// ErrorResponse is an expected HTTP error. Its message is sent to the client as plain text.
type ErrorResponse struct {
	StatusCode int
	Message    string
}

func (e *ErrorResponse) Error() string {
	return e.Message
}

// NewError creates a simple error response.
func NewError(statusCode int, message string) *ErrorResponse {
	return &ErrorResponse{StatusCode: statusCode, Message: message}
}

// HandlerFunc is a HTTP handler that can return an error.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// ErrorHandler wraps handlers with error handling.
func (h *Handler) ErrorHandler(fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}

		l := h.logger(r)

		// Expected errors go to the client as they are
		var httpErr *ErrorResponse
		if errors.As(err, &httpErr) {
			l.Warn("handler returned HTTP error", slog.Int("status", httpErr.StatusCode), slog.String("message", httpErr.Message))
			RespondText(w, r, httpErr.StatusCode, httpErr.Message)

			return
		}

		l.Error("internal error", utils.ErrAttr(err))
		RespondText(w, r, http.StatusInternalServerError, "Internal Server Error")
	}
}

// RespondText sends a plain text response with the given status code.
func RespondText(w http.ResponseWriter, _ *http.Request, statusCode int, body string) {
	w.Header().Set("Content-Type", ContentTypeText)
	w.WriteHeader(statusCode)

	_, _ = w.Write([]byte(body))
}

// RespondJSON sends a JSON response with given status code. If data is nil, only headers are
// sent. Encoding errors are logged; the status code has already gone out by then.
func (h *Handler) RespondJSON(w http.ResponseWriter, r *http.Request, statusCode int, data any) {
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(statusCode)

	if data == nil {
		return
	}

	if err := utils.ToJSONStream(w, data); err != nil {
		h.logger(r).Error("failed to encode JSON response", utils.ErrAttr(err))
	}
}

func (h *Handler) logger(r *http.Request) *slog.Logger {
	if l := GetLogger(r.Context()); l != nil {
		return l
	}

	return h.l
}
