// Package service implements the core proxy forwarding logic.
package service

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"airtable-proxy-go/internal/client"
	"airtable-proxy-go/internal/config"
	"airtable-proxy-go/internal/model"
)

// ErrTokenNotConfigured is returned when no Airtable token was loaded at startup.
var ErrTokenNotConfigured = errors.New("AIRTABLE_TOKEN not configured")

// ErrInvalidPath is returned when the wildcard path is not a valid escaped path.
var ErrInvalidPath = errors.New("invalid request path")

// allowedUpstreamHosts restricts which hosts the proxy will send the token to.
var allowedUpstreamHosts = map[string]bool{
	"api.airtable.com": true,
}

// forwardableRequestHeaders are the only inbound headers forwarded upstream.
// Authorization is always set by the client from the configured token.
var forwardableRequestHeaders = []string{
	"Accept",
	"Accept-Language",
}

// forwardableResponseHeaders are the only response headers relayed to the caller.
var forwardableResponseHeaders = map[string]bool{
	"Content-Type":     true,
	"Content-Length":   true,
	"Content-Encoding": true,
	"Cache-Control":    true,
	"Date":             true,
	"Retry-After":      true,
	"X-Request-Id":     true,
}

const userAgent = "airtable-proxy-go/1.0"

// ProxyService handles the forwarding logic for proxy requests.
type ProxyService struct {
	client  *client.AirtableClient
	cfg     *config.Config
	logger  *slog.Logger
	baseURL *url.URL
}

// NewProxyService creates a ProxyService.
func NewProxyService(c *client.AirtableClient, cfg *config.Config, logger *slog.Logger) (*ProxyService, error) {
	u, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base_url: %w", err)
	}

	if !allowedUpstreamHosts[u.Hostname()] {
		return nil, fmt.Errorf("upstream host %q is not in the allowlist", u.Hostname())
	}

	return newProxyService(c, cfg, logger, u), nil
}

// NewProxyServiceForTest creates a ProxyService without host allowlist validation.
// This is intended only for tests that use httptest servers on localhost.
func NewProxyServiceForTest(c *client.AirtableClient, cfg *config.Config, logger *slog.Logger) (*ProxyService, error) {
	u, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base_url: %w", err)
	}
	return newProxyService(c, cfg, logger, u), nil
}

func newProxyService(c *client.AirtableClient, cfg *config.Config, logger *slog.Logger, u *url.URL) *ProxyService {
	return &ProxyService{
		client:  c,
		cfg:     cfg,
		logger:  logger.With("component", "proxy_service"),
		baseURL: u,
	}
}

// Forward sends a ProxyRequest to the Airtable API and returns the response.
// The caller is responsible for closing the response body.
//
// Any upstream status, including 4xx/5xx, is a successful forward. Errors are
// returned only when the token is missing, the path is malformed or the
// upstream could not be reached.
func (s *ProxyService) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	if !s.cfg.TokenConfigured() {
		return nil, ErrTokenNotConfigured
	}

	upstreamURL, err := s.buildUpstreamURL(pr.Path, pr.RawQuery)
	if err != nil {
		return nil, err
	}
	header := s.filterRequestHeaders(pr.Header)

	var body io.Reader
	if pr.Body != nil {
		body = bytes.NewReader(pr.Body)
		ct := pr.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/json"
		}
		header.Set("Content-Type", ct)
	}

	s.logger.Debug("forwarding request",
		"method", pr.Method,
		"path", pr.Path,
		"has_body", pr.Body != nil,
	)

	resp, err := s.client.DoStream(pr.Ctx, pr.Method, upstreamURL, header, body)
	if err != nil {
		return nil, fmt.Errorf("forward to upstream: %w", err)
	}

	resp.Header = s.filterResponseHeaders(resp.Header)
	return resp, nil
}

// buildUpstreamURL joins the base URL, APIPrefix and the escaped wildcard path.
// The escaped form is kept as RawPath so encoded characters such as %2F are sent
// exactly as received, neither decoded nor encoded twice. The query string is
// not parsed, so pairs url.ParseQuery would drop (";" or bad escapes) survive.
func (s *ProxyService) buildUpstreamURL(rawPath, rawQuery string) (string, error) {
	path, err := url.PathUnescape(rawPath)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPath, err)
	}

	u := *s.baseURL
	basePath := strings.TrimSuffix(u.Path, "/")
	baseRaw := strings.TrimSuffix(u.EscapedPath(), "/")

	u.Path = basePath + model.APIPrefix + path
	u.RawPath = baseRaw + model.APIPrefix + rawPath
	u.RawQuery = rawQuery

	return u.String(), nil
}

func (s *ProxyService) filterRequestHeaders(src http.Header) http.Header {
	dst := make(http.Header)
	for _, key := range forwardableRequestHeaders {
		if vals := src.Values(key); len(vals) > 0 {
			dst[http.CanonicalHeaderKey(key)] = vals
		}
	}
	dst.Set("User-Agent", userAgent)
	return dst
}

func (s *ProxyService) filterResponseHeaders(src http.Header) http.Header {
	dst := make(http.Header)
	for key, vals := range src {
		if forwardableResponseHeaders[http.CanonicalHeaderKey(key)] {
			dst[key] = vals
		}
	}
	return dst
}
