package telemetry

import "time"

// TemperatureReading is the payload of devices/{deviceID}/temperature.
type TemperatureReading struct {
	// DeviceID is the configured node name
	DeviceID string `json:"deviceID"`
	// Temperature is the measured temperature value
	Temperature float64 `json:"temperature"`
	// Unit is always "celsius"
	Unit string `json:"unit"`
	// Timestamp is when the reading was published
	Timestamp time.Time `json:"timestamp"`
}

// BatteryReading is the payload of devices/{deviceID}/battery.
type BatteryReading struct {
	DeviceID string `json:"deviceID"`
	// Ratio is the remaining charge in [0, 1]
	Ratio float64 `json:"ratio"`
	// Voltage is the unclamped divider voltage
	Voltage   float64   `json:"voltage"`
	Timestamp time.Time `json:"timestamp"`
}

type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// DeviceStatus is the payload of devices/{deviceID}/status. The offline message is the
// broker-side last will.
type DeviceStatus struct {
	DeviceID string `json:"deviceID"`
	Status   Status `json:"status"`
}
