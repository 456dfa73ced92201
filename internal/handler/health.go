package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"airtable-proxy-go/internal/config"
)

// Version is a string type for dependency injection of the build version.
type Version string

// rootResponse is the payload of GET /.
type rootResponse struct {
	Status          string `json:"status"`
	Message         string `json:"message"`
	TokenConfigured bool   `json:"token_configured"`
}

// statusResponse is the payload of GET /proxy/status.
type statusResponse struct {
	Status          string `json:"status"`
	Version         string `json:"version"`
	UpstreamURL     string `json:"upstream_url"`
	TokenConfigured bool   `json:"token_configured"`
}

// HealthHandler serves health and status endpoints. None of them call upstream.
type HealthHandler struct {
	cfg     *config.Config
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, version: v}
}

// Root reports that the proxy is running and whether the token is configured.
func (h *HealthHandler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, rootResponse{
		Status:          "ok",
		Message:         "Airtable Proxy Server is running",
		TokenConfigured: h.cfg.TokenConfigured(),
	})
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status returns proxy status information.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResponse{
		Status:          "ok",
		Version:         string(h.version),
		UpstreamURL:     h.cfg.Upstream.BaseURL,
		TokenConfigured: h.cfg.TokenConfigured(),
	})
}
