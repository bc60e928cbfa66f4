package generate

// APIInfo is the document-level metadata of the generated spec.
type APIInfo struct {
	Title       string
	Version     string
	Description string
	Servers     []ServerInfo
}

type ServerInfo struct {
	URL         string
	Description string
}

// ParameterInfo describes a path, query or header parameter.
type ParameterInfo struct {
	Name        string
	In          string
	TypeValue   any
	Description string
	Required    bool
}

// RequestInfo describes a request body.
type RequestInfo struct {
	ContentType string
	TypeValue   any
	Examples    map[string]any
}

// ResponseInfo describes one response of a route. A nil TypeValue means no body.
type ResponseInfo struct {
	Description string
	ContentType string
	TypeValue   any
	Examples    map[string]any
}

// RouteInfo is everything the router knows about a registered HTTP operation.
type RouteInfo struct {
	OperationID string
	Method      string
	Path        string
	Summary     string
	Description string
	Group       string
	Deprecated  string
	Parameters  []ParameterInfo
	Request     *RequestInfo
	Responses   map[int]ResponseInfo
}

type MQTTTopicParameter struct {
	Name        string
	Description string
	TypeValue   any
}

// MQTTPublicationInfo is everything the MQTT builder knows about a registered publication.
type MQTTPublicationInfo struct {
	OperationID     string
	Topic           string
	TopicMQTT       string
	TopicParameters []MQTTTopicParameter
	Summary         string
	Description     string
	Group           string
	Deprecated      string
	QoS             byte
	Retained        bool
	TypeValue       any
	Examples        map[string]any
}

// RouteMetadataCollector receives every HTTP route registered through the router.
type RouteMetadataCollector interface {
	RegisterRoute(route *RouteInfo) error
}

// MQTTMetadataCollector receives every MQTT publication registered through the MQTT builder.
type MQTTMetadataCollector interface {
	RegisterMQTTPublication(pub *MQTTPublicationInfo) error
}

// MetadataCollector collects routes and publications and renders them on Generate.
type MetadataCollector interface {
	RouteMetadataCollector
	MQTTMetadataCollector
	Generate() error
}

// NoopCollector discards everything. It is used outside of generate mode.
type NoopCollector struct{}

func (n *NoopCollector) RegisterRoute(*RouteInfo) error { return nil }

func (n *NoopCollector) RegisterMQTTPublication(*MQTTPublicationInfo) error { return nil }

func (n *NoopCollector) Generate() error { return nil }
