// Package scheduler runs the sample and report triggers of the node.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"thermonode/backend/internal/metrics"
	"thermonode/backend/internal/report"
	"thermonode/backend/internal/sensor"
	"thermonode/backend/internal/settings"
	"thermonode/backend/pkg/clock"
	"thermonode/backend/pkg/retry"
)

// SamplePeriod is the fixed period of the sample trigger.
const SamplePeriod = 5 * time.Second

// defaultYield is the pause between ticks of Run.
const defaultYield = 10 * time.Millisecond

type State int

const (
	Idle State = iota
	Sampling
	Reporting
	SleepPending
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Sampling:
		return "sampling"
	case Reporting:
		return "reporting"
	case SleepPending:
		return "sleep-pending"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// SleepRequest asks the boundary to suspend the node for Duration.
type SleepRequest struct {
	Duration time.Duration
}

// Decision is the result of one Tick.
type Decision struct {
	State    State
	Sampled  bool
	Reported bool
	// Sleep is set once the scheduler reached SleepPending
	Sleep *SleepRequest
}

// Store is the shared device state the scheduler reads settings from and writes readings to.
type Store interface {
	Settings() settings.Settings
	Readings() sensor.Readings
	SetReadings(r sensor.Readings)
}

type Sampler interface {
	SampleTemperature(ctx context.Context) sensor.Temperature
	SampleBattery(ctx context.Context, enabled bool) sensor.BatteryStatus
}

type Reporter interface {
	Push(ctx context.Context, address, value string) report.Outcome
}

// Mirror receives every report cycle after the HTTP pushes.
type Mirror interface {
	PublishReport(ctx context.Context, r sensor.Readings, includeBattery bool)
}

type Scheduler struct {
	l        *slog.Logger
	store    Store
	sampler  Sampler
	reporter Reporter
	clock    clock.Clock
	mirror   Mirror
	metrics  *metrics.Metrics
	sleeper  retry.Sleeper
	yield    time.Duration

	state      State
	pending    SleepRequest
	lastSample clock.Mark
	lastReport clock.Mark
}

func New(l *slog.Logger, store Store, sampler Sampler, reporter Reporter, clk clock.Clock) *Scheduler {
	return &Scheduler{
		l:        l.With(slog.String("component", "scheduler")),
		store:    store,
		sampler:  sampler,
		reporter: reporter,
		clock:    clk,
		sleeper:  retry.RealSleeper,
		yield:    defaultYield,
		state:    Idle,
	}
}

func (s *Scheduler) WithMirror(m Mirror) *Scheduler {
	s.mirror = m
	return s
}

func (s *Scheduler) WithMetrics(m *metrics.Metrics) *Scheduler {
	s.metrics = m
	return s
}

// WithSleeper replaces the pause between ticks of Run.
func (s *Scheduler) WithSleeper(sl retry.Sleeper, yield time.Duration) *Scheduler {
	s.sleeper = sl
	s.yield = yield

	return s
}

func (s *Scheduler) State() State { return s.state }

// Tick evaluates both triggers once. After a sleep request it only repeats that request.
func (s *Scheduler) Tick(ctx context.Context) Decision {
	if s.state == SleepPending {
		req := s.pending
		return Decision{State: SleepPending, Sleep: &req}
	}

	var d Decision

	cfg := s.store.Settings()

	now := s.clock.Now()
	if s.lastSample.Due(now, clock.Millis(SamplePeriod)) {
		s.lastSample.Set(now)
		s.sample(ctx, cfg)
		d.Sampled = true
	}

	if cfg.ActivateReporting {
		period := clock.Millis(time.Duration(cfg.IntervalSecs) * time.Second)

		now = s.clock.Now()
		if s.lastReport.Due(now, period) {
			s.lastReport.Set(now)
			s.report(ctx, cfg)
			d.Reported = true

			if cfg.Passive {
				s.state = SleepPending
				s.pending = SleepRequest{Duration: time.Duration(cfg.IntervalSecs) * time.Second}
				req := s.pending
				d.Sleep = &req

				s.l.Info("passive mode, requesting sleep", slog.Duration("duration", req.Duration))
			}
		}
	}

	d.State = s.state

	return d
}

// Run ticks until a sleep is requested or ctx is done.
func (s *Scheduler) Run(ctx context.Context) (SleepRequest, error) {
	s.l.Info("scheduler started")

	for {
		if err := ctx.Err(); err != nil {
			return SleepRequest{}, err
		}

		if d := s.Tick(ctx); d.Sleep != nil {
			return *d.Sleep, nil
		}

		if err := s.sleeper.Sleep(ctx, s.yield); err != nil {
			return SleepRequest{}, err
		}
	}
}

func (s *Scheduler) sample(ctx context.Context, cfg settings.Settings) {
	s.state = Sampling
	defer func() { s.state = Idle }()

	r := s.store.Readings()
	r.Temperature = s.sampler.SampleTemperature(ctx)

	// The battery is only sampled while battery reporting is on; the last value is kept otherwise.
	if cfg.ReportBattery {
		r.Battery = s.sampler.SampleBattery(ctx, true)
	}

	s.store.SetReadings(r)

	s.l.Debug("sampled",
		slog.String("temperature", r.Temperature.String()),
		slog.String("battery", r.Battery.Ratio.String()),
	)
}

func (s *Scheduler) report(ctx context.Context, cfg settings.Settings) {
	s.state = Reporting
	defer func() {
		if s.state == Reporting {
			s.state = Idle
		}
	}()

	r := s.store.Readings()

	s.l.Info("reporting", slog.String("temperature", r.Temperature.String()))

	switch {
	case cfg.ReportAddress == "":
		s.l.Warn("temperature report skipped, no address configured")
		s.metrics.ObserveReport(metrics.TargetTemperature, "skipped")
	case !r.Temperature.Valid():
		s.l.Warn("temperature report skipped, no valid temperature")
		s.metrics.ObserveReport(metrics.TargetTemperature, "skipped")
	default:
		s.observePush(metrics.TargetTemperature, s.reporter.Push(ctx, cfg.ReportAddress, r.Temperature.String()))
	}

	if cfg.ReportBattery {
		switch {
		case cfg.ReportBatteryAddress == "":
			s.l.Warn("battery report skipped, no address configured")
			s.metrics.ObserveReport(metrics.TargetBattery, "skipped")
		case !r.Battery.Ratio.Known():
			s.l.Warn("battery report skipped, battery status unknown")
			s.metrics.ObserveReport(metrics.TargetBattery, "skipped")
		default:
			s.observePush(metrics.TargetBattery, s.reporter.Push(ctx, cfg.ReportBatteryAddress, r.Battery.Ratio.String()))
		}
	}

	if s.mirror != nil {
		s.mirror.PublishReport(ctx, r, cfg.ReportBattery)
	}

	s.l.Info("reporting finished", slog.Uint64("nextInSecs", uint64(cfg.IntervalSecs)))
}

func (s *Scheduler) observePush(target string, o report.Outcome) {
	s.metrics.ObserveReport(target, o.Kind.String())

	if !o.OK() {
		s.l.Warn("report not delivered", slog.String("target", target), slog.String("outcome", o.Kind.String()), slog.Int("code", o.Code))
	}
}
