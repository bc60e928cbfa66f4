package scheduler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"thermonode/backend/internal/report"
	"thermonode/backend/internal/sensor"
	"thermonode/backend/internal/settings"
	"thermonode/backend/pkg/clock"
	"thermonode/backend/pkg/retry"
)

type memStore struct {
	mu       sync.Mutex
	settings settings.Settings
	readings sensor.Readings
}

func (m *memStore) Settings() settings.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

func (m *memStore) Readings() sensor.Readings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readings
}

func (m *memStore) SetReadings(r sensor.Readings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readings = r
}

type fixedSampler struct {
	temperature  sensor.Temperature
	battery      sensor.BatteryStatus
	temperatures int
	batteries    int
}

func (f *fixedSampler) SampleTemperature(context.Context) sensor.Temperature {
	f.temperatures++
	return f.temperature
}

func (f *fixedSampler) SampleBattery(_ context.Context, enabled bool) sensor.BatteryStatus {
	f.batteries++
	if !enabled {
		return sensor.UnknownBattery()
	}
	return f.battery
}

type push struct {
	address string
	value   string
}

type recordingReporter struct {
	pushes  []push
	outcome *report.Outcome
}

func (r *recordingReporter) Push(_ context.Context, address, value string) report.Outcome {
	r.pushes = append(r.pushes, push{address: address, value: value})

	if r.outcome != nil {
		return *r.outcome
	}

	return report.Success(200)
}

type recordingMirror struct {
	calls          int
	includeBattery bool
}

func (m *recordingMirror) PublishReport(_ context.Context, _ sensor.Readings, includeBattery bool) {
	m.calls++
	m.includeBattery = includeBattery
}

type manualClock struct {
	now clock.Stamp
}

func (c *manualClock) Now() clock.Stamp { return c.now }

func (c *manualClock) advance(d time.Duration) { c.now += clock.Millis(d) }

func reportingSettings() settings.Settings {
	s := settings.Defaults(nil)
	s.ActivateReporting = true
	s.ReportAddress = "http://collector.local/temp"
	return s
}

type fixture struct {
	store    *memStore
	sampler  *fixedSampler
	reporter *recordingReporter
	clock    *manualClock
	s        *Scheduler
}

func newFixture(cfg settings.Settings, temperature sensor.Temperature) *fixture {
	f := &fixture{
		store:    &memStore{settings: cfg, readings: sensor.InitialReadings()},
		sampler:  &fixedSampler{temperature: temperature, battery: sensor.BatteryFromRaw(1706)},
		reporter: &recordingReporter{},
		clock:    &manualClock{now: 1},
	}
	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.s = New(l, f.store, f.sampler, f.reporter, f.clock)

	return f
}

func TestState_String(t *testing.T) {
	t.Parallel()

	tests := map[State]string{
		Idle:         "idle",
		Sampling:     "sampling",
		Reporting:    "reporting",
		SleepPending: "sleep-pending",
		State(42):    "state(42)",
	}

	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(state), got, want)
		}
	}
}

func TestTick_ReportsTemperatureOnly(t *testing.T) {
	t.Parallel()

	f := newFixture(reportingSettings(), 21.5)

	d := f.s.Tick(context.Background())
	if !d.Sampled || !d.Reported {
		t.Fatalf("first tick should sample and report, got %+v", d)
	}
	if d.Sleep != nil {
		t.Fatalf("active mode should not request sleep, got %+v", d.Sleep)
	}
	if d.State != Idle {
		t.Errorf("state = %v, want idle", d.State)
	}

	if len(f.reporter.pushes) != 1 {
		t.Fatalf("expected exactly one push, got %+v", f.reporter.pushes)
	}
	if got := f.reporter.pushes[0]; got.value != "21.50" || got.address != "http://collector.local/temp" {
		t.Errorf("unexpected push %+v", got)
	}
	if f.sampler.batteries != 0 {
		t.Errorf("battery sampled %d times with battery reporting off", f.sampler.batteries)
	}
}

func TestTick_ReportsBattery(t *testing.T) {
	t.Parallel()

	cfg := reportingSettings()
	cfg.ReportBattery = true
	cfg.ReportBatteryAddress = "http://collector.local/bat"

	f := newFixture(cfg, 21.5)
	mirror := &recordingMirror{}
	f.s.WithMirror(mirror)

	f.s.Tick(context.Background())

	if len(f.reporter.pushes) != 2 {
		t.Fatalf("expected two pushes, got %+v", f.reporter.pushes)
	}
	if got := f.reporter.pushes[1]; got.address != "http://collector.local/bat" || got.value != "0.50" {
		t.Errorf("unexpected battery push %+v", got)
	}
	if mirror.calls != 1 || !mirror.includeBattery {
		t.Errorf("mirror calls = %d includeBattery = %v, want 1 true", mirror.calls, mirror.includeBattery)
	}
}

func TestTick_SkipsInvalidReports(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		mutate      func(*settings.Settings)
		temperature sensor.Temperature
		battery     sensor.BatteryStatus
		wantPushes  int
	}{
		{
			name:        "no address",
			mutate:      func(s *settings.Settings) { s.ReportAddress = "" },
			temperature: 21.5,
			wantPushes:  0,
		},
		{
			name:        "disconnected thermometer",
			mutate:      func(*settings.Settings) {},
			temperature: sensor.TemperatureUnknown,
			wantPushes:  0,
		},
		{
			name: "no battery address",
			mutate: func(s *settings.Settings) {
				s.ReportBattery = true
			},
			temperature: 21.5,
			battery:     sensor.BatteryFromRaw(1706),
			wantPushes:  1,
		},
		{
			name: "unknown battery",
			mutate: func(s *settings.Settings) {
				s.ReportBattery = true
				s.ReportBatteryAddress = "http://collector.local/bat"
			},
			temperature: 21.5,
			battery:     sensor.UnknownBattery(),
			wantPushes:  1,
		},
		{
			name: "battery without temperature",
			mutate: func(s *settings.Settings) {
				s.ReportBattery = true
				s.ReportBatteryAddress = "http://collector.local/bat"
			},
			temperature: sensor.TemperatureUnknown,
			battery:     sensor.BatteryFromRaw(1706),
			wantPushes:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := reportingSettings()
			tt.mutate(&cfg)

			f := newFixture(cfg, tt.temperature)
			f.sampler.battery = tt.battery

			d := f.s.Tick(context.Background())
			if !d.Reported {
				t.Fatal("report trigger should fire even when pushes are skipped")
			}
			if len(f.reporter.pushes) != tt.wantPushes {
				t.Errorf("got %d pushes, want %d: %+v", len(f.reporter.pushes), tt.wantPushes, f.reporter.pushes)
			}
		})
	}
}

func TestTick_ReportingDisabled(t *testing.T) {
	t.Parallel()

	cfg := reportingSettings()
	cfg.ActivateReporting = false
	cfg.Passive = true

	f := newFixture(cfg, 21.5)

	for range 3 {
		d := f.s.Tick(context.Background())
		if d.Reported || d.Sleep != nil {
			t.Fatalf("reporting disabled should never report or sleep, got %+v", d)
		}
		f.clock.advance(SamplePeriod)
	}

	if f.sampler.temperatures != 3 {
		t.Errorf("temperature sampled %d times, want 3", f.sampler.temperatures)
	}
}

func TestTick_Periods(t *testing.T) {
	t.Parallel()

	cfg := reportingSettings()
	cfg.IntervalSecs = 60

	f := newFixture(cfg, 21.5)
	ctx := context.Background()

	f.s.Tick(ctx)

	f.clock.advance(SamplePeriod - time.Millisecond)
	if d := f.s.Tick(ctx); d.Sampled || d.Reported {
		t.Fatalf("nothing should be due yet, got %+v", d)
	}

	f.clock.advance(time.Millisecond)
	if d := f.s.Tick(ctx); !d.Sampled || d.Reported {
		t.Fatalf("only the sample trigger should be due, got %+v", d)
	}

	f.clock.advance(60*time.Second - SamplePeriod)
	if d := f.s.Tick(ctx); !d.Reported {
		t.Fatalf("report trigger should be due after the interval, got %+v", d)
	}

	if len(f.reporter.pushes) != 2 {
		t.Errorf("got %d pushes, want 2", len(f.reporter.pushes))
	}
}

func TestTick_ZeroIntervalFiresEveryTick(t *testing.T) {
	t.Parallel()

	cfg := reportingSettings()
	cfg.IntervalSecs = 0

	f := newFixture(cfg, 21.5)

	for range 4 {
		if d := f.s.Tick(context.Background()); !d.Reported {
			t.Fatalf("zero interval should report every tick, got %+v", d)
		}
	}

	if len(f.reporter.pushes) != 4 {
		t.Errorf("got %d pushes, want 4", len(f.reporter.pushes))
	}
}

func TestTick_ClockWrap(t *testing.T) {
	t.Parallel()

	f := newFixture(reportingSettings(), 21.5)
	f.clock.now = ^clock.Stamp(0) - 10

	f.s.Tick(context.Background())

	f.clock.now = 5
	d := f.s.Tick(context.Background())
	if !d.Sampled || !d.Reported {
		t.Fatalf("both triggers should fire after the counter wrapped, got %+v", d)
	}
}

func TestTick_PassiveSleeps(t *testing.T) {
	t.Parallel()

	cfg := reportingSettings()
	cfg.Passive = true

	f := newFixture(cfg, 21.5)

	d := f.s.Tick(context.Background())
	if d.Sleep == nil || d.Sleep.Duration != 1800*time.Second {
		t.Fatalf("expected a 1800s sleep request, got %+v", d)
	}
	if d.State != SleepPending {
		t.Errorf("state = %v, want sleep-pending", d.State)
	}

	f.clock.advance(time.Hour)
	again := f.s.Tick(context.Background())
	if again.Sampled || again.Reported {
		t.Errorf("no work should happen after a sleep request, got %+v", again)
	}
	if again.Sleep == nil || again.Sleep.Duration != 1800*time.Second {
		t.Errorf("sleep request should be repeated, got %+v", again)
	}
	if f.sampler.temperatures != 1 || len(f.reporter.pushes) != 1 {
		t.Errorf("samples = %d pushes = %d, want 1 and 1", f.sampler.temperatures, len(f.reporter.pushes))
	}
}

func TestRun_ReturnsSleepRequest(t *testing.T) {
	t.Parallel()

	cfg := reportingSettings()
	cfg.Passive = true
	cfg.IntervalSecs = 120

	f := newFixture(cfg, 21.5)

	yields := 0
	f.s.WithSleeper(retry.SleeperFunc(func(context.Context, time.Duration) error {
		yields++
		return nil
	}), time.Millisecond)

	req, err := f.s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if req.Duration != 120*time.Second {
		t.Errorf("sleep = %v, want 2m0s", req.Duration)
	}
	if yields != 0 {
		t.Errorf("expected no yield after the sleep request, got %d", yields)
	}
	if f.s.State() != SleepPending {
		t.Errorf("state = %v, want sleep-pending", f.s.State())
	}
}

func TestRun_Cancelled(t *testing.T) {
	t.Parallel()

	f := newFixture(reportingSettings(), 21.5)

	ctx, cancel := context.WithCancel(context.Background())

	ticks := 0
	f.s.WithSleeper(retry.SleeperFunc(func(ctx context.Context, _ time.Duration) error {
		ticks++
		if ticks == 3 {
			cancel()
			return ctx.Err()
		}
		return nil
	}), time.Millisecond)

	_, err := f.s.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	if len(f.reporter.pushes) != 1 {
		t.Errorf("got %d pushes, want 1", len(f.reporter.pushes))
	}
}

func TestTick_LogsUndeliveredReport(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		outcome report.Outcome
		logged  bool
	}{
		"delivered":       {outcome: report.Success(204)},
		"redirected":      {outcome: report.ServerError(302), logged: true},
		"collector error": {outcome: report.ServerError(500), logged: true},
		"unreachable":     {outcome: report.TransportError(errors.New("dial tcp: refused")), logged: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer

			f := newFixture(reportingSettings(), 21.5)
			f.reporter.outcome = &tt.outcome
			f.s = New(slog.New(slog.NewTextHandler(&buf, nil)), f.store, f.sampler, f.reporter, f.clock)

			f.s.Tick(context.Background())

			if got := strings.Contains(buf.String(), "report not delivered"); got != tt.logged {
				t.Errorf("logged undelivered = %v, want %v\n%s", got, tt.logged, buf.String())
			}
		})
	}
}
