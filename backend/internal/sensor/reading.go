// Package sensor turns raw thermometer and ADC readings into validated temperature and battery values.
package sensor

import (
	"strconv"
)

// Temperature is a reading in degrees Celsius.
type Temperature float64

// TemperatureUnknown is the disconnected-sensor sentinel and the value before the first sample.
const TemperatureUnknown Temperature = -127

// Plausible range of the sensor, both bounds exclusive.
const (
	MinTemperature Temperature = -30
	MaxTemperature Temperature = 60
)

// IsValid reports whether t lies strictly inside the plausible range.
func IsValid(t Temperature) bool {
	return t > MinTemperature && t < MaxTemperature
}

func (t Temperature) Valid() bool { return IsValid(t) }

// String formats t with two decimals, the wire format of the temperature push.
func (t Temperature) String() string {
	return strconv.FormatFloat(float64(t), 'f', 2, 64)
}

// Battery is the remaining charge as a ratio in [0, 1].
type Battery float64

// BatteryUnknown marks a battery that was not sampled or could not be read.
const BatteryUnknown Battery = -1

func (b Battery) Known() bool { return b >= 0 }

// String formats b with two decimals, the wire format of the battery push.
func (b Battery) String() string {
	return strconv.FormatFloat(float64(b), 'f', 2, 64)
}

// BatteryStatus is a battery sample. Voltage is kept unclamped for logs and status.
type BatteryStatus struct {
	Ratio   Battery
	Voltage float64
}

// UnknownBattery is the status of a battery that was not sampled.
func UnknownBattery() BatteryStatus {
	return BatteryStatus{Ratio: BatteryUnknown}
}

// Readings is the latest sample of every sensor.
type Readings struct {
	Temperature Temperature
	Battery     BatteryStatus
}

// InitialReadings returns the readings of a node that has not sampled yet.
func InitialReadings() Readings {
	return Readings{Temperature: TemperatureUnknown, Battery: UnknownBattery()}
}
