package platform

import (
	"context"
	"math"
	"time"
)

// SimulatedThermometer stands in for a missing DS18B20 with a slow drift around Base.
type SimulatedThermometer struct {
	Base      float64
	Amplitude float64
	now       func() time.Time
}

func NewSimulatedThermometer(base float64) *SimulatedThermometer {
	return &SimulatedThermometer{Base: base, Amplitude: 0.5, now: time.Now}
}

func (s *SimulatedThermometer) ReadTemperature(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	minutes := float64(s.now().Unix()) / 60
	v := s.Base + s.Amplitude*math.Sin(minutes/10)

	return math.Round(v*16) / 16, nil
}

// SimulatedADC returns a fixed raw value.
type SimulatedADC struct {
	Raw int
}

func (s SimulatedADC) ReadRaw(ctx context.Context) (int, error) {
	return s.Raw, ctx.Err()
}

// SimulatedHall never reports a field.
type SimulatedHall struct{}

func (SimulatedHall) ReadHall(ctx context.Context) (int, error) {
	return 0, ctx.Err()
}
