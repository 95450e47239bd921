package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/user/vidtube-go/internal/config"
)

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(ctx context.Context) error {
	return m.err
}

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantStatus int
		wantBody   string
	}{
		{"healthy", nil, http.StatusOK, "healthy"},
		{"database down", errors.New("connection refused"), http.StatusServiceUnavailable, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(&mockPinger{err: tt.pingErr}, &config.ServerConfig{AppURL: "http://localhost:3000"})
			rec := httptest.NewRecorder()
			s.Engine().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			var resp HealthResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid body: %v", err)
			}
			if resp.Status != tt.wantBody {
				t.Errorf("expected status %q, got %q", tt.wantBody, resp.Status)
			}
			if resp.Uptime == "" {
				t.Error("expected uptime")
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := NewServer(&mockPinger{}, &config.ServerConfig{AppURL: "http://localhost:3000"})
	RecordWebhook("mux", "video.asset.ready", "applied")
	RecordCleanup("DONE")

	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	for _, name := range []string{"vidtube_webhook_events_total", "vidtube_cleanup_tasks_total"} {
		if !strings.Contains(rec.Body.String(), name) {
			t.Errorf("expected %s in metrics output", name)
		}
	}
}

func TestRequestID(t *testing.T) {
	s := NewServer(&mockPinger{}, &config.ServerConfig{AppURL: "http://localhost:3000"})

	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	generated := rec.Header().Get(RequestIDHeader)
	if generated == "" {
		t.Fatal("expected a generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "6f1c2b1e-8e57-4f0e-9d55-3d1f0b1a2c3d")
	rec = httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "6f1c2b1e-8e57-4f0e-9d55-3d1f0b1a2c3d" {
		t.Errorf("expected incoming id to be kept, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	rec = httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got == "<script>" {
		t.Error("malformed incoming id must be replaced")
	}
}

func TestCORS(t *testing.T) {
	s := NewServer(&mockPinger{}, &config.ServerConfig{AppURL: "http://localhost:3000"})

	req := httptest.NewRequest(http.MethodOptions, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("expected allowed origin, got %q", got)
	}
}

func TestStopBeforeStart(t *testing.T) {
	s := NewServer(&mockPinger{}, &config.ServerConfig{AppURL: "http://localhost:3000"})
	if err := s.Stop(context.Background()); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}
