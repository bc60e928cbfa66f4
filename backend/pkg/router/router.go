package router

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"thermonode/backend/pkg/generate"
	"thermonode/backend/pkg/utils"
)

type ParameterIn string

const (
	ParameterInPath   ParameterIn = "path"
	ParameterInQuery  ParameterIn = "query"
	ParameterInHeader ParameterIn = "header"
)

// ParameterSpec documents a path, query or header parameter.
type ParameterSpec struct {
	In          ParameterIn
	Description string
	Required    bool
	Type        any
}

// RequestBodySpec documents a request body. ContentType defaults to application/json.
type RequestBodySpec struct {
	ContentType string
	Type        any
	Examples    map[string]any
}

// ResponseSpec documents one response. A nil Type means the response has no body.
type ResponseSpec struct {
	Description string
	ContentType string
	Type        any
	Examples    map[string]any
}

// RouteSpec is a handler together with its documentation.
type RouteSpec struct {
	OperationID string
	Summary     string
	Description string
	Group       string
	Deprecated  string
	Handler     http.HandlerFunc
	RequestType *RequestBodySpec
	Parameters  map[string]ParameterSpec
	Responses   map[int]ResponseSpec

	method   string
	fullPath string
}

// RouteBuilder registers documented routes on a chi router and forwards their metadata to a
// collector.
type RouteBuilder struct {
	router    chi.Router
	collector generate.RouteMetadataCollector
	l         *slog.Logger
	prefix    string
}

func NewRouteBuilder(l *slog.Logger, collector generate.RouteMetadataCollector) (*RouteBuilder, error) {
	if collector == nil {
		return nil, errors.New("collector is required")
	}

	return &RouteBuilder{
		router:    chi.NewRouter(),
		collector: collector,
		l:         l.With(slog.String("component", "route-builder")),
	}, nil
}

// Router returns the underlying chi router.
func (rb *RouteBuilder) Router() chi.Router {
	return rb.router
}

// Use appends middlewares to the current router level.
func (rb *RouteBuilder) Use(middlewares ...func(http.Handler) http.Handler) {
	rb.router.Use(middlewares...)
}

// Route mounts a sub-router under pattern.
func (rb *RouteBuilder) Route(pattern string, fn func(rb *RouteBuilder)) {
	rb.router.Route(pattern, func(r chi.Router) {
		fn(&RouteBuilder{
			router:    r,
			collector: rb.collector,
			l:         rb.l,
			prefix:    generate.SanitizePath(rb.prefix + pattern),
		})
	})
}

func (rb *RouteBuilder) Get(path string, spec RouteSpec) error {
	return rb.register(http.MethodGet, path, spec)
}

func (rb *RouteBuilder) Post(path string, spec RouteSpec) error {
	return rb.register(http.MethodPost, path, spec)
}

// MustGet registers a GET route and terminates the program if an error occurs.
func (rb *RouteBuilder) MustGet(path string, spec RouteSpec) {
	rb.must(http.MethodGet, path, spec)
}

// MustPost registers a POST route and terminates the program if an error occurs.
func (rb *RouteBuilder) MustPost(path string, spec RouteSpec) {
	rb.must(http.MethodPost, path, spec)
}

func (rb *RouteBuilder) must(method, path string, spec RouteSpec) {
	if err := rb.register(method, path, spec); err != nil {
		rb.l.Error("Failed to register route",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("operationID", spec.OperationID),
			utils.ErrAttr(err),
		)
		os.Exit(1)
	}
}

func (rb *RouteBuilder) register(method, path string, spec RouteSpec) error {
	spec.method = method
	spec.fullPath = generate.SanitizePath(rb.prefix + "/" + path)

	if err := validateRouteSpec(spec); err != nil {
		return fmt.Errorf("invalid route spec for %s %s: %w", method, spec.fullPath, err)
	}

	parameters, err := generateParameters(spec)
	if err != nil {
		return err
	}

	info := &generate.RouteInfo{
		OperationID: spec.OperationID,
		Method:      method,
		Path:        spec.fullPath,
		Summary:     spec.Summary,
		Description: spec.Description,
		Group:       spec.Group,
		Deprecated:  spec.Deprecated,
		Parameters:  parameters,
		Responses:   make(map[int]generate.ResponseInfo, len(spec.Responses)),
	}

	if spec.RequestType != nil {
		info.Request = &generate.RequestInfo{
			ContentType: spec.RequestType.ContentType,
			TypeValue:   spec.RequestType.Type,
			Examples:    spec.RequestType.Examples,
		}
	}

	for code, resp := range spec.Responses {
		info.Responses[code] = generate.ResponseInfo{
			Description: resp.Description,
			ContentType: resp.ContentType,
			TypeValue:   resp.Type,
			Examples:    resp.Examples,
		}
	}

	if err := rb.collector.RegisterRoute(info); err != nil {
		return fmt.Errorf("failed to register route with collector: %w", err)
	}

	rb.router.Method(method, path, spec.Handler)

	rb.l.Debug("Registered route",
		slog.String("method", method),
		slog.String("path", spec.fullPath),
		slog.String("operationID", spec.OperationID),
	)

	return nil
}
