package handler

import (
	"github.com/labstack/echo/v4"

	"backend-gateway/internal/config"
	"backend-gateway/internal/metrics"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, m *metrics.Metrics, proxy *ProxyHandler, health *HealthHandler) {
	e.GET(config.HealthzPath, health.Healthz)
	e.GET(config.StatusPath, health.Status)

	if cfg.Debug.Enabled {
		e.GET(config.DebugEnvPath, health.DebugEnv)
	}
	if cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(m.Handler()))
	}

	e.Match(ForwardedMethods, cfg.Gateway.Prefix+"/*", proxy.Handle)
}
