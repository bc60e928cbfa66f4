// Package telemetry mirrors report cycles onto MQTT.
package telemetry

import (
	"time"

	"thermonode/backend/pkg/mqtt"
)

const (
	OperationPublishTemperature = "publishTemperature"
	OperationPublishBattery     = "publishBattery"
	OperationPublishStatus      = "publishStatus"

	TelemetryGroup = "Telemetry"

	TemperatureTopic = "devices/{deviceID}/temperature"
	BatteryTopic     = "devices/{deviceID}/battery"
	StatusTopic      = "devices/{deviceID}/status"
)

func deviceIDParameter() []mqtt.TopicParameter {
	return []mqtt.TopicParameter{
		{
			Name:        "deviceID",
			Description: "Configured name of the node",
			Type:        new(string),
		},
	}
}

// RegisterPublications registers every telemetry publication on mb.
func RegisterPublications(mb *mqtt.MQTTBuilder) {
	mb.MustRegisterPublish(TemperatureTopic, mqtt.PublicationSpec{
		OperationID:     OperationPublishTemperature,
		Summary:         "Publish temperature reading",
		Description:     "Published on every report cycle with a valid temperature, after the HTTP push.",
		Group:           TelemetryGroup,
		TopicParameters: deviceIDParameter(),
		MessageType:     TemperatureReading{},
		QoS:             mqtt.QoSAtLeastOnce,
		Retained:        true,
		Examples: map[string]any{
			"normal": TemperatureReading{DeviceID: "a1b", Temperature: 21.5, Unit: "celsius", Timestamp: time.Time{}},
		},
	})

	mb.MustRegisterPublish(BatteryTopic, mqtt.PublicationSpec{
		OperationID:     OperationPublishBattery,
		Summary:         "Publish battery reading",
		Description:     "Published on report cycles when battery reporting is enabled and the battery was read.",
		Group:           TelemetryGroup,
		TopicParameters: deviceIDParameter(),
		MessageType:     BatteryReading{},
		QoS:             mqtt.QoSAtLeastOnce,
		Retained:        true,
		Examples: map[string]any{
			"half": BatteryReading{DeviceID: "a1b", Ratio: 0.5, Voltage: 3.5},
		},
	})

	mb.MustRegisterPublish(StatusTopic, mqtt.PublicationSpec{
		OperationID:     OperationPublishStatus,
		Summary:         "Publish node status",
		Description:     "Online once connected. The broker publishes offline as the last will.",
		Group:           TelemetryGroup,
		TopicParameters: deviceIDParameter(),
		MessageType:     DeviceStatus{},
		QoS:             mqtt.QoSAtLeastOnce,
		Retained:        true,
		Examples: map[string]any{
			"online":  DeviceStatus{DeviceID: "a1b", Status: StatusOnline},
			"offline": DeviceStatus{DeviceID: "a1b", Status: StatusOffline},
		},
	})
}

// Will returns the last-will message for deviceID.
func Will(deviceID string) (*mqtt.Will, error) {
	topic, err := mqtt.ExpandTopic(StatusTopic, map[string]string{"deviceID": deviceID})
	if err != nil {
		return nil, err
	}

	return &mqtt.Will{
		Topic:    topic,
		Payload:  DeviceStatus{DeviceID: deviceID, Status: StatusOffline},
		QoS:      mqtt.QoSAtLeastOnce,
		Retained: true,
	}, nil
}
