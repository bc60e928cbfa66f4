package router

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"thermonode/backend/pkg/generate"
)

type recordingCollector struct {
	routes []*generate.RouteInfo
	err    error
}

func (c *recordingCollector) RegisterRoute(route *generate.RouteInfo) error {
	if c.err != nil {
		return c.err
	}

	c.routes = append(c.routes, route)

	return nil
}

func okHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, body)
	}
}

func testSpec(id string, h http.HandlerFunc) RouteSpec {
	return RouteSpec{
		OperationID: id,
		Summary:     "summary",
		Group:       "Test",
		Handler:     h,
		Responses:   map[int]ResponseSpec{200: {ContentType: "text/plain", Type: ""}},
	}
}

func TestNewRouteBuilder_RequiresCollector(t *testing.T) {
	t.Parallel()

	if _, err := NewRouteBuilder(slog.New(slog.DiscardHandler), nil); err == nil {
		t.Error("NewRouteBuilder(nil) error = nil")
	}
}

func TestRouteBuilder_RegistersAndServes(t *testing.T) {
	t.Parallel()

	c := &recordingCollector{}

	rb, err := NewRouteBuilder(slog.New(slog.DiscardHandler), c)
	if err != nil {
		t.Fatalf("NewRouteBuilder() error = %v", err)
	}

	rb.MustGet("/temperature", testSpec("getTemperature", okHandler("21.50")))
	rb.Route("/api", func(rb *RouteBuilder) {
		rb.MustGet("/status", testSpec("getStatus", okHandler("status")))

		spec := testSpec("getReading", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, chi.URLParam(r, "sensor"))
		})
		spec.Parameters = map[string]ParameterSpec{
			"sensor": {In: ParameterInPath, Description: "Sensor name", Required: true, Type: new(string)},
		}
		rb.MustGet("/readings/{sensor}", spec)
	})
	rb.MustPost("/settings", testSpec("postSettings", okHandler("OK!")))

	wantPaths := map[string]string{
		"getTemperature": "/temperature",
		"getStatus":      "/api/status",
		"getReading":     "/api/readings/{sensor}",
		"postSettings":   "/settings",
	}

	if len(c.routes) != len(wantPaths) {
		t.Fatalf("collected %d routes, want %d", len(c.routes), len(wantPaths))
	}

	for _, r := range c.routes {
		if wantPaths[r.OperationID] != r.Path {
			t.Errorf("route %s path = %q, want %q", r.OperationID, r.Path, wantPaths[r.OperationID])
		}
	}

	tests := []struct {
		method, path, want string
		code               int
	}{
		{method: http.MethodGet, path: "/temperature", want: "21.50", code: 200},
		{method: http.MethodGet, path: "/api/status", want: "status", code: 200},
		{method: http.MethodGet, path: "/api/readings/battery", want: "battery", code: 200},
		{method: http.MethodPost, path: "/settings", want: "OK!", code: 200},
		{method: http.MethodPost, path: "/temperature", code: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		rb.Router().ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

		if rec.Code != tt.code {
			t.Errorf("%s %s code = %d, want %d", tt.method, tt.path, rec.Code, tt.code)
		}

		if tt.want != "" && rec.Body.String() != tt.want {
			t.Errorf("%s %s body = %q, want %q", tt.method, tt.path, rec.Body.String(), tt.want)
		}
	}
}

func TestRouteBuilder_Rejects(t *testing.T) {
	t.Parallel()

	undocumented := testSpec("getThing", okHandler(""))

	wrongParam := testSpec("getThing", okHandler(""))
	wrongParam.Parameters = map[string]ParameterSpec{
		"other": {In: ParameterInPath, Description: "d", Required: true, Type: new(string)},
	}

	optionalPath := testSpec("getThing", okHandler(""))
	optionalPath.Parameters = map[string]ParameterSpec{
		"id": {In: ParameterInPath, Description: "d", Type: new(string)},
	}

	badIn := testSpec("getThing", okHandler(""))
	badIn.Parameters = map[string]ParameterSpec{
		"q": {In: "cookie", Description: "d", Type: new(string)},
	}

	noResponses := testSpec("getThing", okHandler(""))
	noResponses.Responses = nil

	noHandler := testSpec("getThing", nil)

	tests := []struct {
		name string
		path string
		spec RouteSpec
	}{
		{name: "undocumented path parameter", path: "/things/{id}", spec: undocumented},
		{name: "documented parameter not in path", path: "/things/{id}", spec: wrongParam},
		{name: "optional path parameter", path: "/things/{id}", spec: optionalPath},
		{name: "invalid parameter location", path: "/things", spec: badIn},
		{name: "no responses", path: "/things", spec: noResponses},
		{name: "no handler", path: "/things", spec: noHandler},
		{name: "no operationID", path: "/things", spec: testSpec("", okHandler(""))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rb, _ := NewRouteBuilder(slog.New(slog.DiscardHandler), &recordingCollector{})

			if err := rb.Get(tt.path, tt.spec); err == nil {
				t.Error("Get() error = nil, want error")
			}
		})
	}
}

func TestRouteBuilder_CollectorError(t *testing.T) {
	t.Parallel()

	collectorErr := errors.New("duplicate")
	rb, _ := NewRouteBuilder(slog.New(slog.DiscardHandler), &recordingCollector{err: collectorErr})

	if err := rb.Post("/settings", testSpec("postSettings", okHandler(""))); !errors.Is(err, collectorErr) {
		t.Errorf("Post() error = %v, want %v", err, collectorErr)
	}
}
