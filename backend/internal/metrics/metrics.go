// Package metrics exposes the node's Prometheus metrics from a private registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Label values.
const (
	SensorTemperature = "temperature"
	SensorBattery     = "battery"

	TargetTemperature = "temperature"
	TargetBattery     = "battery"
	TargetMQTT        = "mqtt"
)

// Metrics is safe to use as a nil pointer, in which case every call is a no-op.
type Metrics struct {
	registry    *prometheus.Registry
	samples     *prometheus.CounterVec
	reports     *prometheus.CounterVec
	temperature prometheus.Gauge
	battery     prometheus.Gauge
	httpTiming  *prometheus.SummaryVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		samples: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "thermonode_samples_total",
				Help: "Sensor samples by sensor and result",
			},
			[]string{"sensor", "result"},
		),
		reports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "thermonode_reports_total",
				Help: "Report pushes by target and outcome",
			},
			[]string{"target", "outcome"},
		),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "thermonode_temperature_celsius",
			Help: "Last valid temperature",
		}),
		battery: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "thermonode_battery_ratio",
			Help: "Last known battery charge ratio",
		}),
		httpTiming: prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Name: "thermonode_http_request_seconds",
				Help: "Web request timing by route",
			},
			[]string{"route"},
		),
	}

	m.registry.MustRegister(
		m.samples,
		m.reports,
		m.temperature,
		m.battery,
		m.httpTiming,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) ObserveSample(sensor string, ok bool) {
	if m == nil {
		return
	}

	result := "ok"
	if !ok {
		result = "failed"
	}

	m.samples.WithLabelValues(sensor, result).Inc()
}

func (m *Metrics) ObserveReport(target, outcome string) {
	if m == nil {
		return
	}

	m.reports.WithLabelValues(target, outcome).Inc()
}

func (m *Metrics) SetTemperature(celsius float64) {
	if m == nil {
		return
	}

	m.temperature.Set(celsius)
}

func (m *Metrics) SetBattery(ratio float64) {
	if m == nil {
		return
	}

	m.battery.Set(ratio)
}

// Timing records the duration of a web request since start.
func (m *Metrics) Timing(start time.Time, route string) {
	if m == nil {
		return
	}

	m.httpTiming.WithLabelValues(route).Observe(time.Since(start).Seconds())
}

// Handler serves the private registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}

	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
