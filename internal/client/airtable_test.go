package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"airtable-proxy-go/internal/config"
	"airtable-proxy-go/internal/metrics"
)

func newTestClient(token string, timeoutSeconds int, m *metrics.Metrics) *AirtableClient {
	cfg := &config.Config{
		Airtable: config.AirtableConfig{Token: token},
		Upstream: config.UpstreamConfig{
			TimeoutSeconds:  timeoutSeconds,
			IdleConnections: 10,
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAirtableClient(cfg, logger, m)
}

func TestAirtableClient_DoStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"records":[]}`))
	}))
	defer srv.Close()

	c := newTestClient("patTEST", 10, nil)

	resp, err := c.DoStream(context.Background(), http.MethodGet, srv.URL+"/v0/appX/Table", http.Header{}, nil)
	if err != nil {
		t.Fatalf("DoStream() error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(body) != `{"records":[]}` {
		t.Errorf("body = %q, want %q", string(body), `{"records":[]}`)
	}
}

func TestAirtableClient_SetsBearerToken(t *testing.T) {
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient("patSECRET.value", 10, nil)

	// An inbound Authorization value must never reach upstream.
	header := http.Header{"Authorization": {"Bearer caller-supplied"}}
	resp, err := c.DoStream(context.Background(), http.MethodGet, srv.URL+"/v0/x", header, nil)
	if err != nil {
		t.Fatalf("DoStream() error = %v", err)
	}
	_ = resp.Body.Close()

	if got := gotAuth.Load(); got != "Bearer patSECRET.value" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer patSECRET.value")
	}
	if header.Get("Authorization") != "Bearer caller-supplied" {
		t.Error("caller header map was mutated")
	}
}

func TestAirtableClient_NilHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer patTEST" {
			t.Errorf("Authorization = %q, want %q", r.Header.Get("Authorization"), "Bearer patTEST")
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient("patTEST", 10, nil)

	resp, err := c.DoStream(context.Background(), http.MethodDelete, srv.URL+"/v0/x", nil, nil)
	if err != nil {
		t.Fatalf("DoStream() error = %v", err)
	}
	_ = resp.Body.Close()
}

func TestAirtableClient_DoesNotFollowRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer srv.Close()

	c := newTestClient("patTEST", 10, nil)

	resp, err := c.DoStream(context.Background(), http.MethodGet, srv.URL+"/v0/x", http.Header{}, nil)
	if err != nil {
		t.Fatalf("DoStream() error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusFound {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusFound)
	}
}

func TestAirtableClient_DoStream_Error(t *testing.T) {
	c := newTestClient("patTEST", 1, nil)

	_, err := c.DoStream(context.Background(), http.MethodGet, "http://127.0.0.1:1/nonexistent", http.Header{}, nil)
	if err == nil {
		t.Fatal("DoStream() expected error for unreachable host, got nil")
	}
}

func TestAirtableClient_DoStream_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newTestClient("patTEST", 1, nil)

	start := time.Now()
	_, err := c.DoStream(context.Background(), http.MethodGet, srv.URL+"/v0/slow", http.Header{}, nil)
	if err == nil {
		t.Fatal("DoStream() expected timeout error, got nil")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("DoStream() took %v, want bounded by the 1s client timeout", elapsed)
	}
	var netErr interface{ Timeout() bool }
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Errorf("error = %v, want a timeout error", err)
	}
}

func TestAirtableClient_DoStream_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := newTestClient("patTEST", 30, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	_, err := c.DoStream(ctx, http.MethodGet, srv.URL+"/slow", http.Header{}, nil)
	if err == nil {
		t.Fatal("DoStream() expected error for canceled context, got nil")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestAirtableClient_RecordsMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	m := metrics.New()
	c := newTestClient("patTEST", 10, m)

	resp, err := c.DoStream(context.Background(), http.MethodGet, srv.URL+"/v0/x", http.Header{}, nil)
	if err != nil {
		t.Fatalf("DoStream() error = %v", err)
	}
	_ = resp.Body.Close()

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	for _, f := range families {
		if f.GetName() != "airtable_proxy_upstream_responses_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["method"] == "GET" && labels["status_code"] == "404" {
				if v := metric.GetCounter().GetValue(); v != 1 {
					t.Errorf("counter value = %v, want 1", v)
				}
				return
			}
		}
	}
	t.Error("expected airtable_proxy_upstream_responses_total with method=GET, status_code=404")
}
