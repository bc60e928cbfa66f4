package mqtt

// QoS represents MQTT quality of service levels.
type QoS byte

const (
	// QoSAtMostOnce means the message is delivered at most once, or it may not be delivered at all.
	QoSAtMostOnce QoS = 0
	// QoSAtLeastOnce means the message is always delivered at least once.
	QoSAtLeastOnce QoS = 1
	// QoSExactlyOnce means the message is always delivered exactly once.
	QoSExactlyOnce QoS = 2
)

// TopicParameter describes a parameter in an MQTT topic pattern.
type TopicParameter struct {
	Name        string // Name is the parameter name (e.g., "deviceID")
	Description string // Description explains what this parameter represents
	Type        any    // Type is the Go type of the parameter (e.g., new(string))
}

// PublicationSpec describes an MQTT publication operation.
type PublicationSpec struct {
	OperationID     string           // Unique identifier (e.g., "publishTemperature")
	TopicMQTT       string           // Wildcard form, filled in on registration (e.g., devices/+/temperature)
	Summary         string           // Short description
	Description     string           // Detailed description
	Group           string           // Logical grouping (e.g., "Telemetry")
	Deprecated      string           // Optional deprecation message
	TopicParameters []TopicParameter // Parameters of the topic pattern (e.g., {deviceID})
	MessageType     any              // Go type of the published message
	QoS             QoS
	Retained        bool
	Examples        map[string]any

	pattern topicPattern
}

// Will is the last-will message the broker publishes when the client disappears.
type Will struct {
	Topic    string
	Payload  any
	QoS      QoS
	Retained bool
}
