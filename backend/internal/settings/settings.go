// Package settings owns the node's persisted configuration record.
package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"strings"

	"thermonode/backend/pkg/utils"
)

// Persisted and JSON keys. They are shared by the web UI, the HTTP API and the key/value store.
const (
	KeyName                 = "name"
	KeyActivateReporting    = "activateRep"
	KeyReportAddress        = "editAddress"
	KeyIntervalSecs         = "intervalSecs"
	KeyPassive              = "passive"
	KeyReportBattery        = "activateRepBat"
	KeyReportBatteryAddress = "editAddressBat"
)

// Keys lists every settings key in validation order.
var Keys = []string{ //nolint:gochecknoglobals // Fixed key order
	KeyName,
	KeyActivateReporting,
	KeyReportAddress,
	KeyIntervalSecs,
	KeyPassive,
	KeyReportBattery,
	KeyReportBatteryAddress,
}

// DefaultIntervalSecs is the reporting and wake period of a never-configured node.
const DefaultIntervalSecs uint32 = 1800

// Settings is the complete device configuration. It is never partially populated.
type Settings struct {
	// Device identity, also used as the MQTT device ID
	Name string `json:"name"`
	// Master switch for the temperature push
	ActivateReporting bool `json:"activateRep"`
	// Destination URL for the temperature PUT
	ReportAddress string `json:"editAddress"`
	// Reporting period and deep-sleep duration in seconds
	IntervalSecs uint32 `json:"intervalSecs"`
	// Sleep between report cycles instead of serving HTTP
	Passive bool `json:"passive"`
	// Sub-switch for the battery push
	ReportBattery bool `json:"activateRepBat"`
	// Destination URL for the battery PUT
	ReportBatteryAddress string `json:"editAddressBat"`
}

// Defaults returns the settings of a never-configured node. The name is derived from the last
// two MAC bytes so the node is addressable before anyone configures it.
func Defaults(mac net.HardwareAddr) Settings {
	return Settings{
		Name:         ShortMAC(mac),
		IntervalSecs: DefaultIntervalSecs,
	}
}

// ShortMAC hex-encodes bytes 4 and 5 of mac, each without zero padding.
func ShortMAC(mac net.HardwareAddr) string {
	if len(mac) < 6 {
		return "thermonode"
	}

	var b strings.Builder
	for _, octet := range mac[4:6] {
		fmt.Fprintf(&b, "%x", octet)
	}

	return b.String()
}

// ParsePayload validates a full settings update. Every key must be present with the right JSON
// type; partial updates are rejected with a ValidationError naming the first offending key.
func ParsePayload(data []byte) (Settings, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Settings{}, fmt.Errorf("%w: empty body", ErrMalformed)
	}

	raw, err := utils.FromJSON[map[string]json.RawMessage](data)
	if err != nil {
		return Settings{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if raw == nil {
		return Settings{}, fmt.Errorf("%w: not a JSON object", ErrMalformed)
	}

	for _, key := range Keys {
		if _, ok := raw[key]; !ok {
			return Settings{}, &ValidationError{Field: key, Reason: ReasonMissing}
		}
	}

	var s Settings

	fields := []struct {
		key string
		dst any
	}{
		{KeyName, &s.Name},
		{KeyActivateReporting, &s.ActivateReporting},
		{KeyReportAddress, &s.ReportAddress},
		{KeyIntervalSecs, &s.IntervalSecs},
		{KeyPassive, &s.Passive},
		{KeyReportBattery, &s.ReportBattery},
		{KeyReportBatteryAddress, &s.ReportBatteryAddress},
	}

	for _, f := range fields {
		v := raw[f.key]
		if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return Settings{}, &ValidationError{Field: f.key, Reason: ReasonInvalid}
		}

		if err := json.Unmarshal(v, f.dst); err != nil {
			return Settings{}, &ValidationError{Field: f.key, Reason: ReasonInvalid, Err: err}
		}
	}

	return s, nil
}
