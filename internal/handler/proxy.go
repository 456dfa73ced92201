package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"

	"airtable-proxy-go/internal/model"
	"airtable-proxy-go/internal/service"
)

// bearerPattern matches bearer credentials that may appear in error messages.
var bearerPattern = regexp.MustCompile(`(?i)(bearer\s+)[^\s"]+`)

// ProxyHandler forwards API requests to the upstream Airtable API.
type ProxyHandler struct {
	service *service.ProxyService
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle proxies the request to the Airtable API and streams the response back
// with the upstream status code, whatever it is.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	body, err := h.readJSONBody(req)
	if err != nil {
		return err
	}

	pr := &model.ProxyRequest{
		Ctx:      req.Context(),
		Method:   req.Method,
		Path:     strings.TrimPrefix(req.URL.EscapedPath(), model.APIPrefix),
		RawQuery: req.URL.RawQuery,
		Header:   req.Header,
		Body:     body,
	}

	resp, err := h.service.Forward(pr)
	if err != nil {
		return h.mapError(c, err)
	}
	defer func() { _ = resp.Body.Close() }()

	for key, vals := range resp.Header {
		for _, v := range vals {
			c.Response().Header().Add(key, v)
		}
	}

	c.Response().WriteHeader(resp.StatusCode)

	// The status is already on the wire; a failed copy leaves the client with a
	// truncated body, so it is only logged.
	if _, err := io.Copy(c.Response(), resp.Body); err != nil {
		h.logger.Error("streaming response body",
			"err", err,
			"path", req.URL.Path,
		)
	}

	return nil
}

func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	if errors.Is(err, service.ErrTokenNotConfigured) {
		h.logger.Error("proxy error", "err", err, "path", c.Request().URL.Path)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "AIRTABLE_TOKEN not configured",
			"hint":  "Set the AIRTABLE_TOKEN environment variable to your Airtable Personal Access Token",
		})
	}

	if errors.Is(err, service.ErrInvalidPath) {
		h.logger.Warn("rejected request path", "err", err, "path", c.Request().URL.Path)
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request path",
		})
	}

	h.logger.Error("proxy error",
		"err", sanitizeError(err),
		"path", c.Request().URL.Path,
	)

	if errors.Is(err, context.DeadlineExceeded) {
		return c.JSON(http.StatusGatewayTimeout, map[string]string{
			"error": "upstream request timed out",
		})
	}

	if errors.Is(err, context.Canceled) {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "client disconnected",
		})
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.JSON(http.StatusGatewayTimeout, map[string]string{
			"error": "upstream request timed out",
		})
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "upstream host unreachable",
		})
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "upstream connection failed",
		})
	}

	return c.JSON(http.StatusBadGateway, map[string]string{
		"error": "upstream request failed",
	})
}

// sanitizeError redacts bearer credentials from error messages.
func sanitizeError(err error) string {
	return bearerPattern.ReplaceAllString(err.Error(), "${1}[REDACTED]")
}
