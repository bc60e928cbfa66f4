package api

import (
	"log/slog"

	"thermonode/backend/pkg/router"
)

// Register wires every route of the node onto rb.
func Register(l *slog.Logger, rb *router.RouteBuilder, h *Handler, mw *MiddlewareHandler) {
	l.Info("Registering HTTP handlers...")

	rb.Use(mw.RequestIDMiddleware)
	rb.Use(mw.LoggerMiddleware)
	rb.Use(mw.RecoveryMiddleware)
	rb.Use(mw.MetricsMiddleware)

	h.RegisterRootPage("/", rb)
	h.RegisterSettingsPage("/settingsPage", rb)
	h.RegisterGetTemperature("/temperature", rb)
	h.RegisterGetSettings("/settings", rb)
	h.RegisterPostSettings("/settings", rb)

	rb.Route("/api", func(rb *router.RouteBuilder) {
		h.RegisterGetStatus("/status", rb)
		h.RegisterGetHealth("/health", rb)
	})

	if h.metrics != nil {
		rb.Router().Handle("/metrics", h.metrics.Handler())
	}

	rb.Router().NotFound(h.NotFound)

	l.Info("HTTP handlers registered successfully")
}
