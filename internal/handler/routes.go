package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"airtable-proxy-go/internal/config"
	"airtable-proxy-go/internal/metrics"
	"airtable-proxy-go/internal/model"
)

// proxyMethods are the methods forwarded to Airtable.
var proxyMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPatch,
	http.MethodPut,
	http.MethodDelete,
}

// RegisterRoutes wires all route handlers onto the Echo instance.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, m *metrics.Metrics, proxy *ProxyHandler, health *HealthHandler) {
	e.GET("/", health.Root)
	e.GET("/healthz", health.Healthz)
	e.GET("/proxy/status", health.Status)

	e.Match(proxyMethods, model.APIPrefix+"*", proxy.Handle)

	if cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(m.Handler()))
	}
}
