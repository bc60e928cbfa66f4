package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"

	"thermonode/backend/internal/metrics"
	"thermonode/backend/pkg/utils"
)

const (
	RequestIDHeader = "X-Request-ID"

	maxRequestIDLen = 64
	unmatchedRoute  = "unmatched"
)

// MiddlewareHandler carries what the middlewares share: the http component logger and the metrics.
type MiddlewareHandler struct {
	l       *slog.Logger
	metrics *metrics.Metrics
}

func NewMiddlewareHandler(l *slog.Logger, m *metrics.Metrics) *MiddlewareHandler {
	return &MiddlewareHandler{l: l.With(slog.String("component", "http")), metrics: m}
}

// RequestIDMiddleware keeps a caller supplied request ID of sane length, otherwise mints one,
// and echoes it back in the response header.
func (m *MiddlewareHandler) RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = utils.NewUUID()
		}

		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
	})
}

// statusRecorder remembers the first status written and counts body bytes.
type statusRecorder struct {
	http.ResponseWriter

	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status != 0 {
		return
	}

	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}

	n, err := s.ResponseWriter.Write(b)
	s.bytes += n

	return n, err
}

func (s *statusRecorder) code() int {
	if s.status == 0 {
		return http.StatusOK
	}

	return s.status
}

// LoggerMiddleware puts a request-scoped logger in the context and logs one line per request.
// Server errors log at warn level.
func (m *MiddlewareHandler) LoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := m.l.With(
			slog.String("request_id", GetRequestID(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)

		rec := &statusRecorder{ResponseWriter: w}
		start := time.Now()

		next.ServeHTTP(rec, r.WithContext(WithLogger(r.Context(), l)))

		level := slog.LevelInfo
		if rec.code() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}

		l.Log(r.Context(), level, "request served",
			slog.Int("status", rec.code()),
			slog.Int("bytes", rec.bytes),
			slog.String("remote", r.RemoteAddr),
			slog.Duration("took", time.Since(start)),
		)
	})
}

// RecoveryMiddleware turns a handler panic into a 500 and logs the stack.
func (m *MiddlewareHandler) RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}

			l := GetLogger(r.Context())
			if l == nil {
				l = m.l
			}

			l.Error("handler panicked", utils.ErrAttr(fmt.Errorf("panic: %v", v)), slog.String("stack", string(debug.Stack())))
			RespondText(w, r, http.StatusInternalServerError, "Internal Server Error")
		}()

		next.ServeHTTP(w, r)
	})
}

// MetricsMiddleware times requests by chi route pattern so path values do not explode label cardinality.
func (m *MiddlewareHandler) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		route := unmatchedRoute
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		m.metrics.Timing(start, route)
	})
}
