package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"thermonode/backend/internal/metrics"
	"thermonode/backend/internal/sensor"
	"thermonode/backend/internal/settings"
	"thermonode/backend/pkg/generate"
	"thermonode/backend/pkg/router"
	"thermonode/web"
)

type fakeState struct {
	settings settings.Settings
	readings sensor.Readings
}

func (f *fakeState) Settings() settings.Settings { return f.settings }
func (f *fakeState) Readings() sensor.Readings   { return f.readings }
func (f *fakeState) Uptime() time.Duration       { return 90*time.Second + 500*time.Millisecond }

type fakeStore struct {
	mu    sync.Mutex
	saved []settings.Settings
	err   error
}

func (f *fakeStore) Save(_ context.Context, s settings.Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}

	f.saved = append(f.saved, s)

	return nil
}

type fakeRestarter struct {
	restarted chan struct{}
	once      sync.Once
}

func (f *fakeRestarter) Restart() {
	f.once.Do(func() { close(f.restarted) })
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeConn struct{ connected bool }

func (f fakeConn) IsConnected() bool { return f.connected }

type testServer struct {
	state     *fakeState
	store     *fakeStore
	restarter *fakeRestarter
	handler   *Handler
	router    http.Handler
}

func newTestServer(t *testing.T, mutate func(*HandlerOptions)) *testServer {
	t.Helper()

	l := slog.New(slog.NewTextHandler(io.Discard, nil))

	pages, err := web.Pages()
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}

	ts := &testServer{
		state: &fakeState{
			settings: settings.Defaults(nil),
			readings: sensor.InitialReadings(),
		},
		store:     &fakeStore{},
		restarter: &fakeRestarter{restarted: make(chan struct{})},
	}

	opts := HandlerOptions{
		State:     ts.state,
		Store:     ts.store,
		Restarter: ts.restarter,
		Pages:     pages,
		Metrics:   metrics.New(),
	}
	if mutate != nil {
		mutate(&opts)
	}

	h, err := NewHandler(l, opts)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	h.restartDelay = time.Millisecond

	rb, err := router.NewRouteBuilder(l, &generate.NoopCollector{})
	if err != nil {
		t.Fatalf("NewRouteBuilder: %v", err)
	}

	Register(l, rb, h, NewMiddlewareHandler(l, opts.Metrics))

	ts.handler = h
	ts.router = rb.Router()

	return ts
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, httptest.NewRequest(method, path, r))

	return rec
}

const validPayload = `{"name":"kitchen","activateRep":true,"editAddress":"http://collector/temp",` +
	`"intervalSecs":600,"passive":false,"activateRepBat":false,"editAddressBat":""}`

func TestNewHandler_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewHandler(slog.Default(), HandlerOptions{}); err == nil {
		t.Fatal("expected an error for missing dependencies")
	}
}

func TestPages(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)

	tests := []struct {
		path string
		want string
	}{
		{path: "/", want: "/temperature"},
		{path: "/settingsPage", want: "editAddressBat"},
	}

	for _, tt := range tests {
		rec := ts.do(http.MethodGet, tt.path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s status = %d", tt.path, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), tt.want) {
			t.Errorf("GET %s body does not contain %q", tt.path, tt.want)
		}
		if rec.Header().Get(RequestIDHeader) == "" {
			t.Errorf("GET %s missing request ID header", tt.path)
		}
	}
}

func TestNotFound(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)

	for _, path := range []string{"/nope", "/api/nope"} {
		rec := ts.do(http.MethodGet, path, "")
		if rec.Code != http.StatusNotFound || rec.Body.String() != "Not found!" {
			t.Errorf("GET %s = %d %q, want 404 Not found!", path, rec.Code, rec.Body.String())
		}
	}
}

func TestGetTemperature(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		temperature sensor.Temperature
		wantStatus  int
		wantBody    string
	}{
		{name: "valid", temperature: 21.5, wantStatus: http.StatusOK, wantBody: "21.50"},
		{name: "negative", temperature: -4.25, wantStatus: http.StatusOK, wantBody: "-4.25"},
		{name: "disconnected", temperature: sensor.TemperatureUnknown, wantStatus: http.StatusInternalServerError, wantBody: MessageTemperatureUnknown},
		{name: "out of range", temperature: 85, wantStatus: http.StatusInternalServerError, wantBody: MessageTemperatureUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ts := newTestServer(t, nil)
			ts.state.readings.Temperature = tt.temperature

			rec := ts.do(http.MethodGet, "/temperature", "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
				t.Errorf("content type = %q", ct)
			}
		})
	}
}

func TestGetSettings(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)
	ts.state.settings.Name = "kitchen"

	rec := ts.do(http.MethodGet, "/settings", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(got) != len(settings.Keys) {
		t.Errorf("got %d keys, want %d: %v", len(got), len(settings.Keys), got)
	}
	for _, key := range settings.Keys {
		if _, ok := got[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
	if got[settings.KeyName] != "kitchen" || got[settings.KeyIntervalSecs] != float64(1800) {
		t.Errorf("unexpected settings %v", got)
	}
}

func TestPostSettings_Success(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodPost, "/settings", validPayload)
	if rec.Code != http.StatusOK || rec.Body.String() != MessageOK {
		t.Fatalf("POST = %d %q, want 200 OK!", rec.Code, rec.Body.String())
	}

	select {
	case <-ts.restarter.restarted:
	case <-time.After(5 * time.Second):
		t.Fatal("restart was not requested")
	}

	if len(ts.store.saved) != 1 {
		t.Fatalf("saved %d times, want 1", len(ts.store.saved))
	}
	if s := ts.store.saved[0]; s.Name != "kitchen" || s.IntervalSecs != 600 || !s.ActivateReporting {
		t.Errorf("unexpected saved settings %+v", s)
	}
}

func TestPostSettings_Rejected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{name: "empty", body: "", wantStatus: http.StatusBadRequest, wantBody: MessageNoSettings},
		{name: "whitespace", body: "  \n", wantStatus: http.StatusBadRequest, wantBody: MessageNoSettings},
		{name: "truncated", body: validPayload[:40], wantStatus: http.StatusBadRequest, wantBody: MessageInvalidJSON},
		{name: "not an object", body: `[1,2]`, wantStatus: http.StatusBadRequest, wantBody: MessageInvalidJSON},
		{
			name:       "missing key",
			body:       strings.Replace(validPayload, `"intervalSecs":600,`, "", 1),
			wantStatus: http.StatusBadRequest,
			wantBody:   "intervalSecs missing!",
		},
		{
			name:       "wrong type",
			body:       strings.Replace(validPayload, `"passive":false`, `"passive":"no"`, 1),
			wantStatus: http.StatusBadRequest,
			wantBody:   "passive invalid!",
		},
		{
			name:       "too large",
			body:       `{"name":"` + strings.Repeat("x", MaxBodySize) + `"}`,
			wantStatus: http.StatusRequestEntityTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ts := newTestServer(t, nil)

			rec := ts.do(http.MethodPost, "/settings", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%q)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
			if len(ts.store.saved) != 0 {
				t.Error("rejected payload must not be stored")
			}

			select {
			case <-ts.restarter.restarted:
				t.Error("rejected payload must not restart")
			case <-time.After(20 * time.Millisecond):
			}
		})
	}
}

func TestPostSettings_StorageFailure(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)
	ts.store.err = &settings.StorageError{Op: "save", Err: errors.New("disk full")}

	rec := ts.do(http.MethodPost, "/settings", validPayload)
	if rec.Code != http.StatusInternalServerError || rec.Body.String() != MessageSaveFailed {
		t.Fatalf("POST = %d %q, want 500", rec.Code, rec.Body.String())
	}
}

func TestGetStatus(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)
	ts.state.settings.Name = "kitchen"
	ts.state.settings.Passive = true
	ts.state.readings.Temperature = 21.5
	ts.state.readings.Battery = sensor.BatteryFromRaw(1706)

	rec := ts.do(http.MethodGet, "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var got StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got.Name != "kitchen" || !got.Passive || got.Reporting || got.Uptime != "1m30s" {
		t.Errorf("unexpected status %+v", got)
	}
	if got.Temperature == nil || *got.Temperature != 21.5 {
		t.Errorf("temperature = %v, want 21.5", got.Temperature)
	}
	if got.Battery == nil || got.BatteryVoltage == nil {
		t.Fatalf("battery should be reported, got %+v", got)
	}
}

func TestGetStatus_UnknownReadings(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/api/status", "")

	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}

	for _, key := range []string{"temperature", "battery", "batteryVoltage"} {
		v, ok := got[key]
		if !ok || v != nil {
			t.Errorf("%s = %v, want null", key, v)
		}
	}
}

func TestGetHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		db         Pinger
		mqtt       ConnectionChecker
		wantStatus int
		want       HealthResponse
	}{
		{name: "mqtt disabled", db: fakePinger{}, wantStatus: http.StatusOK, want: HealthResponse{Database: true, MQTT: true}},
		{name: "all up", db: fakePinger{}, mqtt: fakeConn{connected: true}, wantStatus: http.StatusOK, want: HealthResponse{Database: true, MQTT: true}},
		{name: "mqtt down", db: fakePinger{}, mqtt: fakeConn{}, wantStatus: http.StatusServiceUnavailable, want: HealthResponse{Database: true, MQTT: false}},
		{name: "database down", db: fakePinger{err: errors.New("closed")}, wantStatus: http.StatusServiceUnavailable, want: HealthResponse{Database: false, MQTT: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ts := newTestServer(t, func(o *HandlerOptions) {
				o.DB = tt.db
				o.MQTT = tt.mqtt
			})

			rec := ts.do(http.MethodGet, "/api/health", "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var got HealthResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)
	ts.do(http.MethodGet, "/temperature", "")

	rec := ts.do(http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `thermonode_http_request_seconds_count{route="/temperature"} 1`) {
		t.Errorf("request timing for /temperature not exported:\n%s", rec.Body.String())
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	t.Parallel()

	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	mw := NewMiddlewareHandler(l, nil)

	h := mw.RequestIDMiddleware(mw.LoggerMiddleware(mw.RecoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "fixed-id")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if got := rec.Header().Get(RequestIDHeader); got != "fixed-id" {
		t.Errorf("request ID = %q, want fixed-id", got)
	}
}

func TestContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if GetLogger(ctx) != nil || GetRequestID(ctx) != zeroUUID {
		t.Fatal("empty context should have no logger and the zero request ID")
	}

	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx = WithRequestID(WithLogger(ctx, l), "abc")

	if GetLogger(ctx) != l || GetRequestID(ctx) != "abc" {
		t.Error("context values should not overwrite each other")
	}
}

func TestRequestIDMiddleware_RejectsOversizedID(t *testing.T) {
	t.Parallel()

	mw := NewMiddlewareHandler(slog.New(slog.DiscardHandler), nil)

	var seen string

	h := mw.RequestIDMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", maxRequestIDLen+1))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if len(seen) != 36 || seen == zeroUUID {
		t.Errorf("request ID = %q, want a fresh UUID", seen)
	}

	if got := rec.Header().Get(RequestIDHeader); got != seen {
		t.Errorf("header = %q, context = %q", got, seen)
	}
}
