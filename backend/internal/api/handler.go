// Package api serves the node's web UI, settings endpoints and status.
package api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"thermonode/backend/internal/metrics"
	"thermonode/backend/internal/sensor"
	"thermonode/backend/internal/settings"
	"thermonode/web"
)

// RestartDelay is the pause between answering a settings update and restarting.
const RestartDelay = 300 * time.Millisecond

const (
	PagesGroup    = "Pages"
	SettingsGroup = "Settings"
	StatusGroup   = "Status"
)

// StateReader is the shared node state.
type StateReader interface {
	Settings() settings.Settings
	Readings() sensor.Readings
	Uptime() time.Duration
}

type SettingsSaver interface {
	Save(ctx context.Context, s settings.Settings) error
}

type Restarter interface {
	Restart()
}

// Pinger checks the database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectionChecker reports the MQTT connection.
type ConnectionChecker interface {
	IsConnected() bool
}

type Handler struct {
	l            *slog.Logger
	state        StateReader
	store        SettingsSaver
	restarter    Restarter
	pages        *web.WebApp
	db           Pinger
	mqtt         ConnectionChecker
	metrics      *metrics.Metrics
	restartDelay time.Duration
}

type HandlerOptions struct {
	State     StateReader
	Store     SettingsSaver
	Restarter Restarter
	Pages     *web.WebApp
	// DB and MQTT are optional; a nil MQTT means the mirror is disabled
	DB      Pinger
	MQTT    ConnectionChecker
	Metrics *metrics.Metrics
}

func NewHandler(l *slog.Logger, opts HandlerOptions) (*Handler, error) {
	switch {
	case opts.State == nil:
		return nil, errors.New("state is required")
	case opts.Store == nil:
		return nil, errors.New("settings store is required")
	case opts.Restarter == nil:
		return nil, errors.New("restarter is required")
	case opts.Pages == nil:
		return nil, errors.New("pages are required")
	}

	return &Handler{
		l:            l.With(slog.String("component", "api")),
		state:        opts.State,
		store:        opts.Store,
		restarter:    opts.Restarter,
		pages:        opts.Pages,
		db:           opts.DB,
		mqtt:         opts.MQTT,
		metrics:      opts.Metrics,
		restartDelay: RestartDelay,
	}, nil
}
