package telemetry

import (
	"context"
	"log/slog"
	"time"

	"thermonode/backend/internal/metrics"
	"thermonode/backend/internal/sensor"
	"thermonode/backend/pkg/utils"
)

// publishTimeout bounds each publish so a dead broker never stalls a report cycle.
const publishTimeout = 2 * time.Second

// Publisher sends a payload for a registered operation.
type Publisher interface {
	Publish(ctx context.Context, operationID string, topic string, payload any) error
}

// TopicResolver expands the topic pattern of a registered operation.
type TopicResolver interface {
	Topic(operationID string, params map[string]string) (string, error)
}

// Mirror publishes readings under devices/{deviceID}/. Failures are logged and counted, never
// returned.
type Mirror struct {
	l        *slog.Logger
	pub      Publisher
	topics   TopicResolver
	metrics  *metrics.Metrics
	deviceID string
	now      func() time.Time
}

func NewMirror(l *slog.Logger, pub Publisher, topics TopicResolver, deviceID string, m *metrics.Metrics) *Mirror {
	return &Mirror{
		l:        l.With(slog.String("component", "telemetry-mirror"), slog.String("deviceID", deviceID)),
		pub:      pub,
		topics:   topics,
		metrics:  m,
		deviceID: deviceID,
		now:      time.Now,
	}
}

// PublishReport mirrors one report cycle. Invalid readings are skipped, as they are for the
// HTTP push.
func (m *Mirror) PublishReport(ctx context.Context, r sensor.Readings, includeBattery bool) {
	now := m.now().UTC()

	if r.Temperature.Valid() {
		m.publish(ctx, OperationPublishTemperature, TemperatureReading{
			DeviceID:    m.deviceID,
			Temperature: float64(r.Temperature),
			Unit:        "celsius",
			Timestamp:   now,
		})
	}

	if includeBattery && r.Battery.Ratio.Known() {
		m.publish(ctx, OperationPublishBattery, BatteryReading{
			DeviceID:  m.deviceID,
			Ratio:     float64(r.Battery.Ratio),
			Voltage:   r.Battery.Voltage,
			Timestamp: now,
		})
	}
}

// PublishOnline announces the node, replacing a retained offline will.
func (m *Mirror) PublishOnline(ctx context.Context) {
	m.publish(ctx, OperationPublishStatus, DeviceStatus{DeviceID: m.deviceID, Status: StatusOnline})
}

func (m *Mirror) publish(ctx context.Context, operationID string, payload any) {
	topic, err := m.topics.Topic(operationID, map[string]string{"deviceID": m.deviceID})
	if err != nil {
		m.l.Warn("cannot build telemetry topic", slog.String("operationID", operationID), utils.ErrAttr(err))
		m.metrics.ObserveReport(metrics.TargetMQTT, "invalid_topic")

		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := m.pub.Publish(ctx, operationID, topic, payload); err != nil {
		m.l.Warn("telemetry publish failed", slog.String("topic", topic), utils.ErrAttr(err))
		m.metrics.ObserveReport(metrics.TargetMQTT, "failed")

		return
	}

	m.l.Debug("telemetry published", slog.String("topic", topic))
	m.metrics.ObserveReport(metrics.TargetMQTT, "success")
}
