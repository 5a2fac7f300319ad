package api_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/persistorai/cobuy/internal/api"
)

func TestLiveness_ReturnsOK(t *testing.T) {
	t.Parallel()

	h := api.NewHealthHandler(nil, nil, testLogger(), "test-v1", t.TempDir(), 2)

	r := gin.New()
	r.GET("/health", h.Liveness)

	w := doRequest(r, http.MethodGet, "/health", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got %v", body["status"])
	}
	if body["version"] != "test-v1" {
		t.Errorf("expected version 'test-v1', got %v", body["version"])
	}
	if body["database"] != "not_configured" {
		t.Errorf("expected database 'not_configured', got %v", body["database"])
	}
	if body["schema_version"] != float64(2) {
		t.Errorf("expected schema_version 2, got %v", body["schema_version"])
	}
}

func TestLiveness_DatabaseDownStillOK(t *testing.T) {
	t.Parallel()

	h := api.NewHealthHandler(&mockBackend{pingErr: errors.New("refused")}, nil, testLogger(), "v", t.TempDir(), 0)

	r := gin.New()
	r.GET("/health", h.Liveness)

	w := doRequest(r, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["database"] != "disconnected" {
		t.Errorf("expected database 'disconnected', got %v", body["database"])
	}
}

func TestReadiness(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	tests := []struct {
		name        string
		backend     api.Pinger
		artifactDir string
		wantCode    int
		wantChecks  map[string]string
	}{
		{
			name:        "ready",
			backend:     &mockBackend{},
			artifactDir: dir,
			wantCode:    http.StatusOK,
			wantChecks:  map[string]string{"database": "ok", "artifacts": "ok"},
		},
		{
			name:        "database down",
			backend:     &mockBackend{pingErr: errors.New("refused")},
			artifactDir: dir,
			wantCode:    http.StatusServiceUnavailable,
			wantChecks:  map[string]string{"database": "error", "artifacts": "ok"},
		},
		{
			name:        "missing artifact dir",
			backend:     &mockBackend{},
			artifactDir: filepath.Join(dir, "missing"),
			wantCode:    http.StatusServiceUnavailable,
			wantChecks:  map[string]string{"database": "ok", "artifacts": "error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := api.NewHealthHandler(tt.backend, nil, testLogger(), "v", tt.artifactDir, 0)
			r := gin.New()
			r.GET("/ready", h.Readiness)

			w := doRequest(r, http.MethodGet, "/ready", "")
			if w.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, w.Code)
			}

			var body struct {
				Checks map[string]string `json:"checks"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			for k, want := range tt.wantChecks {
				if body.Checks[k] != want {
					t.Errorf("check %s = %q, want %q", k, body.Checks[k], want)
				}
			}
		})
	}
}
