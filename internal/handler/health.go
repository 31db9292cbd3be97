package handler

import (
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"backend-gateway/internal/config"
)

// Version is a string type for dependency injection of the build version.
type Version string

// unsetValue is shown for environment variables that are empty or missing.
const unsetValue = "(empty/undefined)"

// HealthHandler serves health, status and debug endpoints.
type HealthHandler struct {
	cfg     *config.Config
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status returns gateway status information, including the backend origin
// as it would be resolved for a request right now.
func (h *HealthHandler) Status(c echo.Context) error {
	origin, _ := h.cfg.Upstream.Origin()
	return c.JSON(http.StatusOK, map[string]string{
		"status":       "ok",
		"version":      string(h.version),
		"upstream_url": origin,
	})
}

// DebugEnv shows how the backend origin is resolved and the raw environment
// values it is resolved from.
func (h *HealthHandler) DebugEnv(c echo.Context) error {
	origin, source := h.cfg.Upstream.Origin()
	return c.JSON(http.StatusOK, map[string]string{
		"resolved_origin":          origin,
		"source":                   string(source),
		config.EnvBackendAPIURL:    envOrUnset(config.EnvBackendAPIURL),
		config.EnvNextPublicAPIURL: envOrUnset(config.EnvNextPublicAPIURL),
	})
}

func envOrUnset(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return unsetValue
}
