package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// isJSONContentType reports whether ct is application/json or application/*+json.
func isJSONContentType(ct string) bool {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mt == echo.MIMEApplicationJSON ||
		(strings.HasPrefix(mt, "application/") && strings.HasSuffix(mt, "+json"))
}

// readJSONBody returns the inbound body when it is declared and parses as JSON.
// Anything else (no body, other content type, invalid JSON, literal null) yields
// nil so the request is forwarded without a body. Only a body-limit violation
// is returned as an error.
func (h *ProxyHandler) readJSONBody(req *http.Request) (json.RawMessage, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if !isJSONContentType(req.Header.Get(echo.HeaderContentType)) {
		return nil, nil
	}

	data, err := io.ReadAll(req.Body)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return nil, he
		}
		h.logger.Debug("reading request body; forwarding without body", "err", err)
		return nil, nil
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	if !json.Valid(data) {
		h.logger.Debug("request body is not valid JSON; forwarding without body",
			"bytes", len(data),
		)
		return nil, nil
	}
	return json.RawMessage(data), nil
}
