package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"backend-gateway/internal/config"
)

func TestHealthz(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := NewHealthHandler(&config.Config{}, "test")
	if err := h.Healthz(c); err != nil {
		t.Fatalf("Healthz() error = %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want %q", body["status"], "ok")
	}
}

func TestStatus(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/gateway/status", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	cfg := &config.Config{
		Upstream: config.UpstreamConfig{BaseURL: "https://backend.example.com/"},
	}
	h := NewHealthHandler(cfg, "1.2.3")
	if err := h.Status(c); err != nil {
		t.Fatalf("Status() error = %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("body.status = %q, want %q", body["status"], "ok")
	}
	if body["version"] != "1.2.3" {
		t.Errorf("body.version = %q, want %q", body["version"], "1.2.3")
	}
	if body["upstream_url"] != "https://backend.example.com" {
		t.Errorf("body.upstream_url = %q, want %q", body["upstream_url"], "https://backend.example.com")
	}
}

func TestDebugEnv(t *testing.T) {
	tests := []struct {
		name       string
		backend    string
		public     string
		wantOrigin string
		wantSource string
		wantPublic string
	}{
		{
			name:       "nothing set",
			wantOrigin: config.DefaultBackendOrigin,
			wantSource: "default",
			wantPublic: unsetValue,
		},
		{
			name:       "public only",
			public:     "https://public.example.com",
			wantOrigin: "https://public.example.com",
			wantSource: config.EnvNextPublicAPIURL,
			wantPublic: "https://public.example.com",
		},
		{
			name:       "backend preferred",
			backend:    "http://backend:8080",
			public:     "https://public.example.com",
			wantOrigin: "http://backend:8080",
			wantSource: config.EnvBackendAPIURL,
			wantPublic: "https://public.example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(config.EnvBackendAPIURL, tt.backend)
			t.Setenv(config.EnvNextPublicAPIURL, tt.public)

			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/debug/env", http.NoBody)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			h := NewHealthHandler(&config.Config{}, "test")
			if err := h.DebugEnv(c); err != nil {
				t.Fatalf("DebugEnv() error = %v", err)
			}

			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if body["resolved_origin"] != tt.wantOrigin {
				t.Errorf("resolved_origin = %q, want %q", body["resolved_origin"], tt.wantOrigin)
			}
			if body["source"] != tt.wantSource {
				t.Errorf("source = %q, want %q", body["source"], tt.wantSource)
			}
			if body[config.EnvNextPublicAPIURL] != tt.wantPublic {
				t.Errorf("%s = %q, want %q", config.EnvNextPublicAPIURL, body[config.EnvNextPublicAPIURL], tt.wantPublic)
			}
		})
	}
}
