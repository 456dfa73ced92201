package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNew_GathersMetrics(t *testing.T) {
	m := New()

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected non-empty metric families from Gather()")
	}

	m.RequestsTotal.WithLabelValues("GET", "200", "/v0").Inc()

	families, err = m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	found := false
	for _, f := range families {
		if f.GetName() == "airtable_proxy_http_requests_total" {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected airtable_proxy_http_requests_total in gathered metrics")
	}
}

func TestSetTokenConfigured(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
		want float64
	}{
		{"configured", true, 1},
		{"missing", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			m.SetTokenConfigured(tt.ok)

			families, err := m.Registry.Gather()
			if err != nil {
				t.Fatalf("Gather() error = %v", err)
			}
			for _, f := range families {
				if f.GetName() != "airtable_proxy_token_configured" {
					continue
				}
				if got := f.GetMetric()[0].GetGauge().GetValue(); got != tt.want {
					t.Errorf("token_configured = %v, want %v", got, tt.want)
				}
				return
			}
			t.Error("expected airtable_proxy_token_configured in gathered metrics")
		})
	}
}

func TestHandler_Exposition(t *testing.T) {
	m := New()
	m.UpstreamResponses.WithLabelValues("GET", "200").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `airtable_proxy_upstream_responses_total{method="GET",status_code="200"} 1`) {
		t.Errorf("exposition missing upstream counter:\n%s", body)
	}
}

func TestNormalizeMethod(t *testing.T) {
	tests := []struct {
		method string
		want   string
	}{
		{"GET", "GET"},
		{"POST", "POST"},
		{"PUT", "PUT"},
		{"DELETE", "DELETE"},
		{"PATCH", "PATCH"},
		{"HEAD", "HEAD"},
		{"OPTIONS", "OPTIONS"},
		{"FOOBAR", "other"},
		{"get", "other"},
		{"", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			if got := NormalizeMethod(tt.method); got != tt.want {
				t.Errorf("NormalizeMethod(%q) = %q, want %q", tt.method, got, tt.want)
			}
		})
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/v0/appXXXX/Table", "/v0"},
		{"/v0/meta/bases", "/v0"},
		{"/v0", "/v0"},
		{"/", "/"},
		{"/healthz", "/healthz"},
		{"/proxy/status", "/proxy/status"},
		{"/metrics", "/metrics"},
		{"/v1/foo", "other"},
		{"/v0appX", "other"},
		{"/unknown", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := NormalizePath(tt.path); got != tt.want {
				t.Errorf("NormalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
