package sensor

import (
	"context"
	"log/slog"
	"time"

	"thermonode/backend/internal/metrics"
	"thermonode/backend/pkg/mathx"
	"thermonode/backend/pkg/retry"
	"thermonode/backend/pkg/utils"
)

const (
	TemperatureAttempts = 5
	TemperatureDelay    = 100 * time.Millisecond

	BatterySamples = 3

	// ADC scaling of the battery divider.
	ADCFullScale = 2047.0
	FullVolts    = 4.2
	EmptyVolts   = 2.8
)

// Thermometer performs one temperature conversion.
type Thermometer interface {
	ReadTemperature(ctx context.Context) (float64, error)
}

// BatteryADC performs one raw conversion of the battery divider.
type BatteryADC interface {
	ReadRaw(ctx context.Context) (int, error)
}

// Starter is implemented by hardware that needs initialisation at boot.
type Starter interface {
	Start(ctx context.Context) error
}

// Sampler reads the sensors. It never returns an error; failures become unknown readings.
type Sampler struct {
	l       *slog.Logger
	therm   Thermometer
	adc     BatteryADC
	metrics *metrics.Metrics
	sleeper retry.Sleeper
}

func NewSampler(l *slog.Logger, therm Thermometer, adc BatteryADC, m *metrics.Metrics) *Sampler {
	return &Sampler{
		l:       l.With(slog.String("component", "sampler")),
		therm:   therm,
		adc:     adc,
		metrics: m,
		sleeper: retry.RealSleeper,
	}
}

// WithSleeper replaces the delay between temperature attempts.
func (s *Sampler) WithSleeper(sl retry.Sleeper) *Sampler {
	s.sleeper = sl
	return s
}

// Start initialises any sensor that needs it.
func (s *Sampler) Start(ctx context.Context) error {
	for _, dev := range []any{s.therm, s.adc} {
		if st, ok := dev.(Starter); ok {
			if err := st.Start(ctx); err != nil {
				return err
			}
		}
	}

	s.l.Info("sensors started")

	return nil
}

// SampleTemperature returns the first valid conversion out of up to TemperatureAttempts, or
// TemperatureUnknown.
func (s *Sampler) SampleTemperature(ctx context.Context) Temperature {
	policy := retry.Policy{Attempts: TemperatureAttempts, Delay: TemperatureDelay, Sleeper: s.sleeper}

	t, ok, attempts := retry.Do(ctx, policy, func(ctx context.Context, attempt int) (Temperature, bool) {
		v, err := s.therm.ReadTemperature(ctx)
		if err != nil {
			s.l.Debug("temperature conversion failed", slog.Int("attempt", attempt), utils.ErrAttr(err))
			return TemperatureUnknown, false
		}

		t := Temperature(v)
		if !t.Valid() {
			s.l.Debug("temperature out of range", slog.Int("attempt", attempt), slog.Float64("celsius", v))
		}

		return t, t.Valid()
	})

	if !ok {
		s.l.Warn("temperature could not be determined", slog.Int("attempts", attempts))
		s.metrics.ObserveSample(metrics.SensorTemperature, false)

		return TemperatureUnknown
	}

	s.metrics.ObserveSample(metrics.SensorTemperature, true)
	s.metrics.SetTemperature(float64(t))

	return t
}

// SampleBattery averages BatterySamples raw conversions and maps the voltage onto a charge ratio.
// When disabled the battery is not touched and the result is unknown.
func (s *Sampler) SampleBattery(ctx context.Context, enabled bool) BatteryStatus {
	if !enabled {
		return UnknownBattery()
	}

	sum := 0

	for i := range BatterySamples {
		raw, err := s.adc.ReadRaw(ctx)
		if err != nil {
			s.l.Warn("battery conversion failed", slog.Int("sample", i+1), utils.ErrAttr(err))
			s.metrics.ObserveSample(metrics.SensorBattery, false)

			return UnknownBattery()
		}

		sum += raw
	}

	status := BatteryFromRaw(float64(sum) / BatterySamples)

	s.metrics.ObserveSample(metrics.SensorBattery, true)
	s.metrics.SetBattery(float64(status.Ratio))

	return status
}

// BatteryFromRaw converts an averaged raw ADC value. The ratio is clamped to [0, 1].
func BatteryFromRaw(raw float64) BatteryStatus {
	volts := raw / ADCFullScale * FullVolts
	ratio := mathx.Clamp(mathx.Lerp(volts, EmptyVolts, FullVolts), 0, 1)

	return BatteryStatus{Ratio: Battery(ratio), Voltage: volts}
}
