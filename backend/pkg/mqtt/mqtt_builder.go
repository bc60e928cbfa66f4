package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"thermonode/backend/pkg/generate"
	"thermonode/backend/pkg/utils"
)

const (
	connectTimeout     = 5 * time.Second
	retryInterval      = 5 * time.Second
	maxReconnectDelay  = 15 * time.Second
	keepAlive          = 30 * time.Second
	disconnectQuiesce  = 250 // milliseconds
	registrationClosed = "publications are frozen once Connect has been called"
)

// MQTTBuilder registers the publications a node may send and owns the paho client that sends them.
type MQTTBuilder struct {
	l            *slog.Logger
	collector    generate.MQTTMetadataCollector
	client       mqtt.Client
	publisher    *MQTTClient
	publications map[string]*PublicationSpec

	frozen    atomic.Bool
	connected atomic.Bool
}

// MQTTClientOptions contains configuration for creating an MQTT client.
type MQTTClientOptions struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	Will      *Will
}

// NewMQTTBuilder creates a builder for the broker in opts. Nothing is dialled until Connect.
func NewMQTTBuilder(l *slog.Logger, collector generate.MQTTMetadataCollector, opts MQTTClientOptions) (*MQTTBuilder, error) {
	switch {
	case opts.BrokerURL == "":
		return nil, errors.New("broker URL is required")
	case opts.ClientID == "":
		return nil, errors.New("client ID is required")
	}

	if collector == nil {
		collector = &generate.NoopCollector{}
	}

	mb := &MQTTBuilder{
		l:            l.With(slog.String("component", "mqtt")),
		collector:    collector,
		publications: map[string]*PublicationSpec{},
	}

	clientOpts, err := mb.clientOptions(opts)
	if err != nil {
		return nil, err
	}

	mb.client = mqtt.NewClient(clientOpts)
	mb.publisher = &MQTTClient{client: mb.client, builder: mb}

	mb.l.Debug("MQTT client configured", slog.String("broker", opts.BrokerURL), slog.String("clientID", opts.ClientID))

	return mb, nil
}

func (mb *MQTTBuilder) clientOptions(opts MQTTClientOptions) (*mqtt.ClientOptions, error) {
	co := mqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetUsername(opts.Username).
		SetPassword(opts.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(connectTimeout).
		SetConnectRetryInterval(retryInterval).
		SetMaxReconnectInterval(maxReconnectDelay).
		SetKeepAlive(keepAlive).
		SetOnConnectHandler(func(mqtt.Client) {
			mb.connected.Store(true)
			mb.l.Info("MQTT connection up", slog.Int("publications", len(mb.publications)))
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			mb.connected.Store(false)
			mb.l.Warn("MQTT connection lost", utils.ErrAttr(err))
		}).
		SetReconnectingHandler(func(_ mqtt.Client, o *mqtt.ClientOptions) {
			mb.l.Info("MQTT reconnecting", slog.String("broker", o.Servers[0].String()))
		})

	if w := opts.Will; w != nil {
		if !w.QoS.valid() {
			return nil, fmt.Errorf("will qos %d is not 0, 1 or 2", w.QoS)
		}

		payload, err := utils.ToJSON(w.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode will payload: %w", err)
		}

		co.SetBinaryWill(w.Topic, payload, byte(w.QoS), w.Retained)
	}

	return co, nil
}

// Client returns the publishing side of the builder.
func (mb *MQTTBuilder) Client() *MQTTClient {
	return mb.publisher
}

// RegisterPublish adds a publication under topic and reports it to the collector.
func (mb *MQTTBuilder) RegisterPublish(topic string, spec PublicationSpec) error {
	if mb.frozen.Load() {
		return errors.New(registrationClosed)
	}

	if err := checkPublicationSpec(spec); err != nil {
		return fmt.Errorf("publication %q: %w", spec.OperationID, err)
	}

	if _, dup := mb.publications[spec.OperationID]; dup {
		return fmt.Errorf("publication %q already registered", spec.OperationID)
	}

	pattern, err := parseTopic(topic)
	if err != nil {
		return fmt.Errorf("publication %q: %w", spec.OperationID, err)
	}

	params, err := topicParameters(pattern, spec.TopicParameters)
	if err != nil {
		return fmt.Errorf("publication %q: %w", spec.OperationID, err)
	}

	spec.pattern = pattern
	spec.TopicMQTT = pattern.wildcard()

	err = mb.collector.RegisterMQTTPublication(&generate.MQTTPublicationInfo{
		OperationID:     spec.OperationID,
		Topic:           topic,
		TopicMQTT:       spec.TopicMQTT,
		TopicParameters: params,
		Summary:         spec.Summary,
		Description:     spec.Description,
		Group:           spec.Group,
		Deprecated:      spec.Deprecated,
		QoS:             byte(spec.QoS),
		Retained:        spec.Retained,
		TypeValue:       spec.MessageType,
		Examples:        spec.Examples,
	})
	if err != nil {
		return fmt.Errorf("publication %q: collector: %w", spec.OperationID, err)
	}

	mb.publications[spec.OperationID] = &spec

	mb.l.Debug("Publication registered", slog.String("operationID", spec.OperationID), slog.String("topic", topic))

	return nil
}

// MustRegisterPublish is RegisterPublish that exits the process on error.
func (mb *MQTTBuilder) MustRegisterPublish(topic string, spec PublicationSpec) {
	if err := mb.RegisterPublish(topic, spec); err != nil {
		mb.l.Error("Failed to register publication", slog.String("topic", topic), utils.ErrAttr(err))
		os.Exit(1)
	}
}

// Topic expands the registered topic pattern of operationID with params.
func (mb *MQTTBuilder) Topic(operationID string, params map[string]string) (string, error) {
	pub, ok := mb.publications[operationID]
	if !ok {
		return "", fmt.Errorf("publication %q not registered", operationID)
	}

	return pub.pattern.expand(params)
}

// Connect freezes the publication set and dials the broker. paho keeps retrying in the
// background, so a ctx timeout here does not stop later reconnects.
func (mb *MQTTBuilder) Connect(ctx context.Context) error {
	mb.frozen.Store(true)

	mb.l.Info("Connecting to MQTT broker")

	token := mb.client.Connect()

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}

		return nil
	case <-ctx.Done():
		return fmt.Errorf("MQTT broker not reachable yet: %w", ctx.Err())
	}
}

// Disconnect closes the connection if Connect was ever called.
func (mb *MQTTBuilder) Disconnect() {
	if !mb.frozen.Load() {
		return
	}

	mb.client.Disconnect(disconnectQuiesce)
	mb.connected.Store(false)
	mb.l.Info("Disconnected from MQTT broker")
}
