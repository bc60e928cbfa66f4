package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"thermonode/backend/pkg/utils"
)

const (
	ReadHeaderTimeout = 5 * time.Second
	ReadTimeout       = 30 * time.Second
	WriteTimeout      = 30 * time.Second
	IdleTimeout       = 120 * time.Second
	ShutdownTimeout   = 10 * time.Second
)

type HTTPServer struct {
	l      *slog.Logger
	server *http.Server
}

func NewHTTPServer(l *slog.Logger, addr string, handler http.Handler) *HTTPServer {
	return &HTTPServer{
		l: l.With(slog.String("component", "http-server")),
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: ReadHeaderTimeout,
			ReadTimeout:       ReadTimeout,
			WriteTimeout:      WriteTimeout,
			IdleTimeout:       IdleTimeout,
		},
	}
}

// Serve listens until ctx is done, then shuts down gracefully.
func (s *HTTPServer) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.l.Info("http server listening", slog.String("address", s.server.Addr))

		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.l.Info("http server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.l.Error("http server shutdown failed", utils.ErrAttr(err))
		return err
	}

	return nil
}
