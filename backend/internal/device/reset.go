package device

import (
	"context"
	"log/slog"
	"time"

	"thermonode/backend/pkg/retry"
	"thermonode/backend/pkg/utils"
)

const (
	ResetSamples   = 10
	ResetDelay     = 100 * time.Millisecond
	ResetThreshold = 30
)

// HallSensor reads the raw magnetic field value used as the factory reset trigger.
type HallSensor interface {
	ReadHall(ctx context.Context) (int, error)
}

// ResetDetector watches the hall sensor at boot for a magnet held against the node.
type ResetDetector struct {
	l       *slog.Logger
	sensor  HallSensor
	sleeper retry.Sleeper
}

func NewResetDetector(l *slog.Logger, sensor HallSensor) *ResetDetector {
	return &ResetDetector{
		l:       l.With(slog.String("component", "reset-detector")),
		sensor:  sensor,
		sleeper: retry.RealSleeper,
	}
}

func (d *ResetDetector) WithSleeper(sl retry.Sleeper) *ResetDetector {
	d.sleeper = sl
	return d
}

// Triggered reports whether any of the samples exceeded the threshold. Read errors count as no field.
func (d *ResetDetector) Triggered(ctx context.Context) bool {
	for i := range ResetSamples {
		v, err := d.sensor.ReadHall(ctx)
		if err != nil {
			d.l.Debug("hall sensor read failed", slog.Int("sample", i+1), utils.ErrAttr(err))
		} else if v > ResetThreshold || v < -ResetThreshold {
			d.l.Info("reset trigger detected", slog.Int("value", v))
			return true
		}

		if i == ResetSamples-1 {
			break
		}

		if err := d.sleeper.Sleep(ctx, ResetDelay); err != nil {
			return false
		}
	}

	return false
}
