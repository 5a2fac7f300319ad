// Package api provides the HTTP handlers of the cobuy recommender.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/cobuy/internal/ws"
)

// Pinger reports whether the history backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves health check endpoints.
type HealthHandler struct {
	backend       Pinger
	hub           *ws.Hub
	log           *logrus.Logger
	version       string
	artifactDir   string
	schemaVersion int
	startTime     time.Time
}

// NewHealthHandler creates a HealthHandler. schemaVersion is zero for
// backends without goose migrations.
func NewHealthHandler(backend Pinger, hub *ws.Hub, log *logrus.Logger, version, artifactDir string, schemaVersion int) *HealthHandler {
	return &HealthHandler{
		backend:       backend,
		hub:           hub,
		log:           log,
		version:       version,
		artifactDir:   artifactDir,
		schemaVersion: schemaVersion,
		startTime:     time.Now(),
	}
}

// readinessResponse is the JSON payload returned by the readiness endpoint.
type readinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// healthResponse is the JSON payload returned by the health/liveness endpoint.
type healthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Database      string  `json:"database"`
	SchemaVersion int     `json:"schema_version,omitempty"`
	WSClients     int     `json:"ws_clients"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Liveness handles GET /api/v1/health.
func (h *HealthHandler) Liveness(c *gin.Context) {
	resp := healthResponse{
		Status:        "ok",
		Version:       h.version,
		Database:      "connected",
		SchemaVersion: h.schemaVersion,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}

	// Best-effort; a down database does not fail liveness.
	if h.backend != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := h.backend.Ping(ctx); err != nil {
			resp.Database = "disconnected"
		}
	} else {
		resp.Database = "not_configured"
	}

	if h.hub != nil {
		resp.WSClients = h.hub.ClientCount()
	}

	c.JSON(http.StatusOK, resp)
}

// Readiness handles GET /api/v1/ready. It checks the backend and that the
// artifact directory is usable.
func (h *HealthHandler) Readiness(c *gin.Context) {
	checks := map[string]string{
		"database":  "ok",
		"artifacts": "ok",
	}
	status := "ready"
	statusCode := http.StatusOK

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if h.backend == nil {
		checks["database"] = "not_configured"
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	} else if err := h.backend.Ping(ctx); err != nil {
		h.log.WithError(err).Error("readiness: database ping failed")
		checks["database"] = "error"
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	if err := h.checkArtifactDir(); err != nil {
		h.log.WithError(err).Error("readiness: artifact directory check failed")
		checks["artifacts"] = "error"
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, readinessResponse{
		Status: status,
		Checks: checks,
	})
}

func (h *HealthHandler) checkArtifactDir() error {
	info, err := os.Stat(h.artifactDir)
	if err != nil {
		return fmt.Errorf("stat artifact dir: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("artifact dir %q is not a directory", h.artifactDir)
	}

	return nil
}
