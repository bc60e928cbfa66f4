package api

// StatusResponse is the node status served on /api/status.
type StatusResponse struct {
	Name           string   `json:"name"`
	Temperature    *float64 `json:"temperature"`
	Battery        *float64 `json:"battery"`
	BatteryVoltage *float64 `json:"batteryVoltage"`
	Passive        bool     `json:"passive"`
	Reporting      bool     `json:"reporting"`
	Uptime         string   `json:"uptime"`
}

// HealthResponse reports the health of each dependency.
type HealthResponse struct {
	Database bool `json:"database"`
	MQTT     bool `json:"mqtt"`
}
