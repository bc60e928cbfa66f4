package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"thermonode/backend/internal/scheduler"
	"thermonode/backend/internal/settings"
	"thermonode/backend/pkg/utils"
)

// DefaultJoinTimeout bounds the network association at boot.
const DefaultJoinTimeout = 20 * time.Second

// SettingsStore is the persisted settings the controller loads at boot.
type SettingsStore interface {
	Load(ctx context.Context) (settings.Settings, error)
	Reset(ctx context.Context) error
}

// Sleeper suspends the node. Implementations usually do not return before the node wakes up.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Restarter restarts the node.
type Restarter interface {
	Restart()
}

// NetworkJoiner brings the node onto the network. hostname is advertised where supported.
type NetworkJoiner interface {
	Join(ctx context.Context, hostname string) error
}

// SensorStarter initialises the sensors.
type SensorStarter interface {
	Start(ctx context.Context) error
}

// Loop is the scheduler loop run after boot.
type Loop interface {
	Run(ctx context.Context) (scheduler.SleepRequest, error)
}

// WebServer serves the web UI until ctx is done.
type WebServer interface {
	Serve(ctx context.Context) error
}

// Mode is how the node operates after boot.
type Mode int

const (
	ModeActive Mode = iota
	ModePassive
)

func (m Mode) String() string {
	if m == ModePassive {
		return "passive"
	}

	return "active"
}

// Plan is the outcome of Boot.
type Plan struct {
	Mode Mode
	// Reset is set when the reset trigger cleared the stored settings
	Reset bool
	// SleepNow is set when the node should suspend without running the loop
	SleepNow *scheduler.SleepRequest
}

// HostnamePrefix is prepended to the node name to form its network hostname.
const HostnamePrefix = "Thermometer-"

type Controller struct {
	l           *slog.Logger
	state       *State
	store       SettingsStore
	reset       *ResetDetector
	joiner      NetworkJoiner
	joinTimeout time.Duration
	sensors     SensorStarter
	sleeper     Sleeper
	restarter   Restarter
	web         WebServer
}

type ControllerOptions struct {
	State       *State
	Store       SettingsStore
	Reset       *ResetDetector
	Joiner      NetworkJoiner
	JoinTimeout time.Duration
	Sensors     SensorStarter
	Sleeper     Sleeper
	Restarter   Restarter
	Web         WebServer
}

func NewController(l *slog.Logger, opts ControllerOptions) (*Controller, error) {
	switch {
	case opts.State == nil:
		return nil, errors.New("state is required")
	case opts.Store == nil:
		return nil, errors.New("settings store is required")
	case opts.Sleeper == nil:
		return nil, errors.New("sleeper is required")
	case opts.Restarter == nil:
		return nil, errors.New("restarter is required")
	}

	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = DefaultJoinTimeout
	}

	return &Controller{
		l:           l.With(slog.String("component", "device-controller")),
		state:       opts.State,
		store:       opts.Store,
		reset:       opts.Reset,
		joiner:      opts.Joiner,
		joinTimeout: opts.JoinTimeout,
		sensors:     opts.Sensors,
		sleeper:     opts.Sleeper,
		restarter:   opts.Restarter,
		web:         opts.Web,
	}, nil
}

// Boot checks the reset trigger, loads settings, joins the network and starts the sensors, in
// that order. Only a settings storage failure is an error.
func (c *Controller) Boot(ctx context.Context) (Plan, error) {
	var plan Plan

	if c.reset != nil && c.reset.Triggered(ctx) {
		c.l.Warn("reset trigger held, clearing settings")

		if err := c.store.Reset(ctx); err != nil {
			return plan, fmt.Errorf("failed to reset settings: %w", err)
		}

		plan.Reset = true
	}

	s, err := c.store.Load(ctx)
	if err != nil {
		return plan, fmt.Errorf("failed to load settings: %w", err)
	}

	c.state.SetSettings(s)

	if s.Passive {
		plan.Mode = ModePassive
	}

	c.l.Info("settings loaded",
		slog.String("name", s.Name),
		slog.String("mode", plan.Mode.String()),
		slog.Bool("reporting", s.ActivateReporting),
	)

	if c.joiner != nil {
		joinCtx, cancel := context.WithTimeout(ctx, c.joinTimeout)
		err := c.joiner.Join(joinCtx, HostnamePrefix+s.Name)

		cancel()

		if err != nil {
			c.l.Error("failed to join network", utils.ErrAttr(err), slog.Duration("timeout", c.joinTimeout))

			if s.Passive {
				plan.SleepNow = &scheduler.SleepRequest{Duration: time.Duration(s.IntervalSecs) * time.Second}
				return plan, nil
			}
		}
	}

	if c.sensors != nil {
		if err := c.sensors.Start(ctx); err != nil {
			c.l.Warn("failed to start sensors", utils.ErrAttr(err))
		}
	}

	return plan, nil
}

// Run executes plan. In active mode the web server runs next to the loop; in passive mode the
// loop runs alone and its sleep request is handed to the Sleeper.
func (c *Controller) Run(ctx context.Context, plan Plan, loop Loop) error {
	if plan.SleepNow != nil {
		return c.suspend(ctx, *plan.SleepNow)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	webErr := make(chan error, 1)

	if plan.Mode == ModeActive && c.web != nil {
		go func() {
			err := c.web.Serve(loopCtx)
			if err != nil {
				c.l.Error("web server failed", utils.ErrAttr(err))
				cancel()
			}

			webErr <- err
		}()
	} else {
		webErr <- nil
	}

	req, err := loop.Run(loopCtx)

	cancel()

	if wErr := <-webErr; wErr != nil {
		return fmt.Errorf("web server: %w", wErr)
	}

	if err != nil {
		return err
	}

	return c.suspend(ctx, req)
}

// Restart asks the platform to restart the node.
func (c *Controller) Restart() {
	c.l.Info("restart requested")
	c.restarter.Restart()
}

func (c *Controller) suspend(ctx context.Context, req scheduler.SleepRequest) error {
	c.l.Info("entering sleep", slog.Duration("duration", req.Duration))

	if err := c.sleeper.Sleep(ctx, req.Duration); err != nil {
		return fmt.Errorf("failed to sleep: %w", err)
	}

	return nil
}
