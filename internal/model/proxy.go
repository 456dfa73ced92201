// Package model defines shared types for the proxy.
package model

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// APIPrefix is the path prefix shared by inbound routes and the upstream API.
const APIPrefix = "/v0/"

// ProxyRequest represents a client request to be forwarded upstream.
type ProxyRequest struct {
	Ctx    context.Context
	Method string

	// Path is the escaped wildcard path after APIPrefix, e.g. "appX/Table%20Name".
	Path string

	// RawQuery is the inbound query string, forwarded verbatim.
	RawQuery string

	Header http.Header

	// Body is the inbound JSON value, forwarded as-is. Nil means no body.
	Body json.RawMessage
}

// ProxyResponse represents the upstream response to be streamed back.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}
