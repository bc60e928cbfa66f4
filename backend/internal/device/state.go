// Package device holds the shared node state and drives boot, run, sleep and restart.
package device

import (
	"sync"
	"time"

	"thermonode/backend/internal/sensor"
	"thermonode/backend/internal/settings"
)

// State is the settings and latest readings shared between the control loop and the web handlers.
type State struct {
	mu       sync.RWMutex
	settings settings.Settings
	readings sensor.Readings
	bootedAt time.Time
}

func NewState(s settings.Settings) *State {
	return &State{
		settings: s,
		readings: sensor.InitialReadings(),
		bootedAt: time.Now(),
	}
}

func (s *State) Settings() settings.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.settings
}

func (s *State) SetSettings(v settings.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings = v
}

func (s *State) Readings() sensor.Readings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.readings
}

func (s *State) SetReadings(r sensor.Readings) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.readings = r
}

func (s *State) Uptime() time.Duration {
	return time.Since(s.bootedAt)
}
