package api

import (
	"context"
	"net/http"
	"time"

	"thermonode/backend/pkg/router"
)

const healthTimeout = 2 * time.Second

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) error {
	s := h.state.Settings()
	readings := h.state.Readings()

	resp := StatusResponse{
		Name:      s.Name,
		Passive:   s.Passive,
		Reporting: s.ActivateReporting,
		Uptime:    h.state.Uptime().Truncate(time.Second).String(),
	}

	if readings.Temperature.Valid() {
		v := float64(readings.Temperature)
		resp.Temperature = &v
	}

	if readings.Battery.Ratio.Known() {
		ratio := float64(readings.Battery.Ratio)
		volts := readings.Battery.Voltage
		resp.Battery = &ratio
		resp.BatteryVoltage = &volts
	}

	h.RespondJSON(w, r, http.StatusOK, resp)

	return nil
}

func (h *Handler) RegisterGetStatus(path string, rb *router.RouteBuilder) {
	temperature, battery, volts := 21.5, 0.75, 3.85

	rb.MustGet(path, router.RouteSpec{
		OperationID: "getStatus",
		Summary:     "Node status",
		Description: "Name, mode, latest readings and uptime. Unknown readings are null.",
		Group:       StatusGroup,
		Handler:     h.ErrorHandler(h.GetStatus),
		Responses: map[int]router.ResponseSpec{
			http.StatusOK: {
				Description: "Status",
				Type:        StatusResponse{},
				Examples: map[string]any{
					"Reporting": StatusResponse{
						Name: "beef", Temperature: &temperature, Battery: &battery, BatteryVoltage: &volts,
						Reporting: true, Uptime: "1h2m3s",
					},
					"Disconnected thermometer": StatusResponse{Name: "beef", Uptime: "5s"},
				},
			},
		},
	})
}

func (h *Handler) health(ctx context.Context) HealthResponse {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	resp := HealthResponse{Database: true, MQTT: true}

	if h.db != nil {
		resp.Database = h.db.Ping(ctx) == nil
	}

	if h.mqtt != nil {
		resp.MQTT = h.mqtt.IsConnected()
	}

	return resp
}

func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) error {
	resp := h.health(r.Context())

	code := http.StatusOK
	if !resp.Database || !resp.MQTT {
		code = http.StatusServiceUnavailable
	}

	h.RespondJSON(w, r, code, resp)

	return nil
}

func (h *Handler) RegisterGetHealth(path string, rb *router.RouteBuilder) {
	rb.MustGet(path, router.RouteSpec{
		OperationID: "getHealth",
		Summary:     "Check node health",
		Description: "Database and MQTT health. MQTT counts as healthy when the mirror is disabled.",
		Group:       StatusGroup,
		Handler:     h.ErrorHandler(h.GetHealth),
		Responses: map[int]router.ResponseSpec{
			http.StatusOK: {
				Description: "Healthy",
				Type:        HealthResponse{},
				Examples:    map[string]any{"Success": HealthResponse{Database: true, MQTT: true}},
			},
			http.StatusServiceUnavailable: {
				Description: "A dependency is down",
				Type:        HealthResponse{},
				Examples: map[string]any{
					"Database Unavailable": HealthResponse{Database: false, MQTT: true},
					"MQTT Unavailable":     HealthResponse{Database: true, MQTT: false},
				},
			},
		},
	})
}
