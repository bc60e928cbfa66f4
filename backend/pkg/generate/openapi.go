package generate

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3gen"
	"github.com/oasdiff/yaml"
)

// MQTTPublicationsExtension is the document extension that lists MQTT publications, which
// OpenAPI has no native way to describe.
const MQTTPublicationsExtension = "x-mqtt-publications"

type OpenAPICollectorOptions struct {
	OpenAPISpecOutputPath string // Path for generated OpenAPI YAML file
	APIInfo               APIInfo
}

// OpenAPICollector builds an OpenAPI 3 document from registered routes. Schemas are derived
// from the Go values given as types and examples.
type OpenAPICollector struct {
	l                   *slog.Logger
	openAPISpecFilePath string
	apiInfo             APIInfo

	httpOps          map[string]*RouteInfo
	mqttPublications map[string]*MQTTPublicationInfo
}

func NewOpenAPICollector(l *slog.Logger, opts OpenAPICollectorOptions) (*OpenAPICollector, error) {
	if opts.OpenAPISpecOutputPath == "" {
		return nil, errors.New("OpenAPI spec output path is required")
	}

	if opts.APIInfo.Title == "" || opts.APIInfo.Version == "" {
		return nil, errors.New("API title and version are required")
	}

	return &OpenAPICollector{
		l:                   l.With(slog.String("component", "openapi-collector")),
		openAPISpecFilePath: opts.OpenAPISpecOutputPath,
		apiInfo:             opts.APIInfo,
		httpOps:             make(map[string]*RouteInfo),
		mqttPublications:    make(map[string]*MQTTPublicationInfo),
	}, nil
}

func (g *OpenAPICollector) RegisterRoute(route *RouteInfo) error {
	if route == nil {
		return errors.New("route is required")
	}

	if err := g.validateUniqueOperationID(route.OperationID); err != nil {
		return err
	}

	if route.Request != nil && isNilOrNilPointer(route.Request.TypeValue) {
		return fmt.Errorf("request TypeValue must not be nil when Request is provided in route [%s]", route.OperationID)
	}

	if len(route.Responses) == 0 {
		return fmt.Errorf("route [%s] must document at least one response", route.OperationID)
	}

	g.httpOps[route.OperationID] = route

	return nil
}

func (g *OpenAPICollector) RegisterMQTTPublication(pub *MQTTPublicationInfo) error {
	if pub == nil {
		return errors.New("publication is required")
	}

	if err := g.validateUniqueOperationID(pub.OperationID); err != nil {
		return err
	}

	if isNilOrNilPointer(pub.TypeValue) {
		return fmt.Errorf("TypeValue must not be nil in publication [%s]", pub.OperationID)
	}

	g.mqttPublications[pub.OperationID] = pub

	return nil
}

// Generate writes the OpenAPI YAML file.
func (g *OpenAPICollector) Generate() error {
	spec, err := g.generateOpenAPISpec()
	if err != nil {
		return fmt.Errorf("failed to generate spec: %w", err)
	}

	yamlData, err := yaml.Marshal(spec)
	if err != nil {
		return fmt.Errorf("failed to marshal spec: %w", err)
	}

	if dir := filepath.Dir(g.openAPISpecFilePath); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	if err := os.WriteFile(g.openAPISpecFilePath, yamlData, 0o600); err != nil {
		return fmt.Errorf("failed to write OpenAPI spec: %w", err)
	}

	g.l.Info("OpenAPI spec written",
		slog.String("file", g.openAPISpecFilePath),
		slog.Int("operations", len(g.httpOps)),
		slog.Int("publications", len(g.mqttPublications)),
	)

	return nil
}

func (g *OpenAPICollector) generateOpenAPISpec() (*openapi3.T, error) {
	spec := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       g.apiInfo.Title,
			Version:     g.apiInfo.Version,
			Description: g.apiInfo.Description,
		},
		Paths: openapi3.NewPaths(),
	}

	for _, server := range g.apiInfo.Servers {
		spec.Servers = append(spec.Servers, &openapi3.Server{
			URL:         server.URL,
			Description: server.Description,
		})
	}

	// Sorted for deterministic output
	for _, id := range slices.Sorted(maps.Keys(g.httpOps)) {
		route := g.httpOps[id]

		op, err := buildOperation(route)
		if err != nil {
			return nil, fmt.Errorf("operation [%s]: %w", id, err)
		}

		item := spec.Paths.Value(route.Path)
		if item == nil {
			item = &openapi3.PathItem{}
			spec.Paths.Set(route.Path, item)
		}

		item.SetOperation(strings.ToUpper(route.Method), op)
	}

	if len(g.mqttPublications) > 0 {
		pubs, err := g.buildMQTTPublications()
		if err != nil {
			return nil, err
		}

		spec.Extensions = map[string]any{MQTTPublicationsExtension: pubs}
	}

	return spec, nil
}

func buildOperation(route *RouteInfo) (*openapi3.Operation, error) {
	op := openapi3.NewOperation()
	op.OperationID = route.OperationID
	op.Summary = route.Summary
	op.Description = route.Description
	op.Tags = []string{route.Group}

	if route.Deprecated != "" {
		op.Deprecated = true
		op.Description = strings.TrimSpace(op.Description + "\n\nDeprecated: " + route.Deprecated)
	}

	for _, p := range route.Parameters {
		param, err := buildParameter(p)
		if err != nil {
			return nil, err
		}

		op.AddParameter(param)
	}

	if route.Request != nil {
		content, err := buildContent(route.Request.ContentType, route.Request.TypeValue, route.Request.Examples)
		if err != nil {
			return nil, fmt.Errorf("request body: %w", err)
		}

		op.RequestBody = &openapi3.RequestBodyRef{
			Value: openapi3.NewRequestBody().WithRequired(true).WithContent(content),
		}
	}

	op.Responses = openapi3.NewResponsesWithCapacity(len(route.Responses))

	for _, code := range slices.Sorted(maps.Keys(route.Responses)) {
		r := route.Responses[code]

		description := r.Description
		if description == "" {
			description = http.StatusText(code)
		}

		resp := openapi3.NewResponse().WithDescription(description)

		if r.TypeValue != nil {
			content, err := buildContent(r.ContentType, r.TypeValue, r.Examples)
			if err != nil {
				return nil, fmt.Errorf("response %d: %w", code, err)
			}

			resp = resp.WithContent(content)
		}

		op.Responses.Set(strconv.Itoa(code), &openapi3.ResponseRef{Value: resp})
	}

	return op, nil
}

func buildParameter(p ParameterInfo) (*openapi3.Parameter, error) {
	var param *openapi3.Parameter

	switch p.In {
	case openapi3.ParameterInPath:
		param = openapi3.NewPathParameter(p.Name)
	case openapi3.ParameterInQuery:
		param = openapi3.NewQueryParameter(p.Name)
	case openapi3.ParameterInHeader:
		param = openapi3.NewHeaderParameter(p.Name)
	default:
		return nil, fmt.Errorf("unsupported parameter location %q for %s", p.In, p.Name)
	}

	schema, err := schemaFor(p.TypeValue)
	if err != nil {
		return nil, fmt.Errorf("parameter %s: %w", p.Name, err)
	}

	param.Description = p.Description
	param.Required = p.Required || p.In == openapi3.ParameterInPath
	param.Schema = schema

	return param, nil
}

func buildContent(contentType string, typeValue any, examples map[string]any) (openapi3.Content, error) {
	if contentType == "" {
		contentType = "application/json"
	}

	schema, err := schemaFor(typeValue)
	if err != nil {
		return nil, err
	}

	media := openapi3.NewMediaType().WithSchemaRef(schema)

	for _, name := range slices.Sorted(maps.Keys(examples)) {
		media = media.WithExample(name, examples[name])
	}

	return openapi3.Content{contentType: media}, nil
}

func (g *OpenAPICollector) buildMQTTPublications() ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(g.mqttPublications))

	for _, id := range slices.Sorted(maps.Keys(g.mqttPublications)) {
		pub := g.mqttPublications[id]

		schema, err := schemaFor(pub.TypeValue)
		if err != nil {
			return nil, fmt.Errorf("publication [%s]: %w", id, err)
		}

		params := make([]map[string]any, 0, len(pub.TopicParameters))
		for _, p := range pub.TopicParameters {
			params = append(params, map[string]any{"name": p.Name, "description": p.Description})
		}

		out = append(out, map[string]any{
			"operationId":     pub.OperationID,
			"topic":           pub.Topic,
			"topicMqtt":       pub.TopicMQTT,
			"topicParameters": params,
			"summary":         pub.Summary,
			"description":     pub.Description,
			"group":           pub.Group,
			"qos":             pub.QoS,
			"retained":        pub.Retained,
			"payload":         schema.Value,
			"examples":        pub.Examples,
		})
	}

	return out, nil
}

func schemaFor(value any) (*openapi3.SchemaRef, error) {
	if isNilOrNilPointer(value) {
		return nil, errors.New("type value must not be nil")
	}

	schema, err := openapi3gen.NewSchemaRefForValue(value, openapi3.Schemas{})
	if err != nil {
		return nil, fmt.Errorf("failed to derive schema for %T: %w", value, err)
	}

	return schema, nil
}

func (g *OpenAPICollector) validateUniqueOperationID(operationID string) error {
	if err := validateOperationIDFormat(operationID); err != nil {
		return err
	}

	_, route := g.httpOps[operationID]
	_, pub := g.mqttPublications[operationID]

	if route || pub {
		return fmt.Errorf("duplicate operationID: %s", operationID)
	}

	return nil
}

// isNilOrNilPointer reports whether value is nil or a nil pointer.
func isNilOrNilPointer(value any) bool {
	if value == nil {
		return true
	}

	val := reflect.ValueOf(value)

	return val.Kind() == reflect.Pointer && val.IsNil()
}

// validateOperationIDFormat checks that an operationID contains only characters a-z, A-Z.
func validateOperationIDFormat(operationID string) error {
	if operationID == "" {
		return errors.New("operationID cannot be empty")
	}

	if !IsASCIILetterString(operationID) {
		return fmt.Errorf("operationID %q contains invalid characters (only characters a-z, A-Z are allowed)", operationID)
	}

	return nil
}
