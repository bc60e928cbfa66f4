package mqtt

import (
	"context"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"thermonode/backend/pkg/utils"
)

// MQTTClient publishes messages for publications registered on its builder.
type MQTTClient struct {
	client  mqtt.Client
	builder *MQTTBuilder
}

// Publish sends payload as JSON to actualTopic using the publication spec identified by
// operationID. actualTopic must be an expansion of the registered pattern. It waits for the
// broker acknowledgement or ctx, whichever comes first.
func (c *MQTTClient) Publish(ctx context.Context, operationID string, actualTopic string, payload any) error {
	pub, ok := c.builder.publications[operationID]
	if !ok {
		return fmt.Errorf("publication not found for operationID %s", operationID)
	}

	if !pub.pattern.matches(actualTopic) {
		return fmt.Errorf("topic %s does not match %s for operationID %s", actualTopic, pub.TopicMQTT, operationID)
	}

	body, err := utils.ToJSON(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload for %s: %w", operationID, err)
	}

	token := c.client.Publish(actualTopic, byte(pub.QoS), pub.Retained, body)

	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish to topic %s abandoned: %w", actualTopic, ctx.Err())
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", actualTopic, err)
	}

	return nil
}

// IsConnected reports whether the connection to the broker is currently up.
func (c *MQTTClient) IsConnected() bool {
	return c.builder.connected.Load()
}
