// Package broker runs the optional embedded MQTT broker.
package broker

import (
	"fmt"
	"log/slog"

	mqttbroker "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
)

// New creates a broker listening on addr that accepts every client.
func New(l *slog.Logger, addr string) (*mqttbroker.Server, error) {
	server := mqttbroker.New(&mqttbroker.Options{
		Logger: l.With(slog.String("component", "mqtt-broker")),
	})

	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, fmt.Errorf("failed to add auth hook: %w", err)
	}

	tcp := listeners.NewTCP(listeners.Config{ID: "tcp", Address: addr})
	if err := server.AddListener(tcp); err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	return server, nil
}
