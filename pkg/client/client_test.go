package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/HariharPal/LC-Fetch/pkg/cache"
	"github.com/HariharPal/LC-Fetch/pkg/ratelimit"
	"github.com/HariharPal/LC-Fetch/pkg/record"
	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
	}{
		{"defaults", DefaultConfig(), false},
		{"zero value", Config{}, false},
		{"negative timeout", Config{Timeout: -time.Second}, true},
		{"cache without ttl", Config{Cache: cache.NewMemoryStore()}, true},
		{"cache with ttl", Config{Cache: cache.NewMemoryStore(), CacheTTL: time.Minute}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config)
			if (err != nil) != tt.expectError {
				t.Errorf("New() error = %v, expectError %v", err, tt.expectError)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.UserAgent != DefaultUserAgent {
		t.Errorf("UserAgent = %q", cfg.UserAgent)
	}
	if cfg.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Timeout)
	}
	if cfg.Cache != nil || cfg.Tracker != nil {
		t.Error("default config should have no cache or tracker")
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   record.ErrorKind
	}{
		{200, ""},
		{204, ""},
		{400, record.KindClient},
		{401, record.KindClient},
		{403, record.KindClient},
		{404, record.KindNotFound},
		{429, record.KindRateLimit},
		{500, record.KindServer},
		{502, record.KindServer},
		{504, record.KindServer},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			if got := ClassifyStatus(tt.status); got != tt.want {
				t.Errorf("ClassifyStatus(%d) = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}

func TestDo_HeadersSet(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := newTestClient(t, Config{UserAgent: "lcfetch-test/1.0", Cookie: "LEETCODE_SESSION=abc", CSRFToken: "tok"})
	if _, err := c.Get(context.Background(), server.URL+"/contest/api/ranking/x/"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	checks := map[string]string{
		"User-Agent":  "lcfetch-test/1.0",
		"Cookie":      "LEETCODE_SESSION=abc",
		"X-Csrftoken": "tok",
		"Referer":     server.URL + "/",
		"Accept":      "application/json",
	}
	for name, want := range checks {
		if got.Get(name) != want {
			t.Errorf("%s = %q, want %q", name, got.Get(name), want)
		}
	}
}

func TestPostJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	c := newTestClient(t, DefaultConfig())
	resp, err := c.PostJSON(context.Background(), server.URL+"/graphql", map[string]any{"query": "q"})
	if err != nil {
		t.Fatalf("PostJSON() error = %v", err)
	}
	if resp.StatusCode != 200 || string(resp.Body) != "{\"query\":\"q\"}\n" {
		t.Errorf("response = %d %q", resp.StatusCode, resp.Body)
	}
}

func TestDo_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantKind  record.ErrorKind
		wantErrNF bool
	}{
		{"not found", 404, record.KindNotFound, true},
		{"bad request", 400, record.KindClient, false},
		{"rate limited", 429, record.KindRateLimit, false},
		{"server error", 500, record.KindServer, false},
		{"bad gateway", 502, record.KindServer, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			c := newTestClient(t, DefaultConfig())
			_, err := c.Get(context.Background(), server.URL+"/x")
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.Is(err, record.ErrNotFound) != tt.wantErrNF {
				t.Errorf("errors.Is(ErrNotFound) = %v, want %v", !tt.wantErrNF, tt.wantErrNF)
			}
			kind, status := record.Classify(err)
			if kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", kind, tt.wantKind)
			}
			if !tt.wantErrNF && status != tt.status {
				t.Errorf("status = %d, want %d", status, tt.status)
			}
		})
	}
}

func TestDo_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	c := newTestClient(t, DefaultConfig())
	_, err := c.Get(context.Background(), url+"/x")

	var te *record.TransportError
	if !errors.As(err, &te) || te.Kind != record.KindNetwork {
		t.Fatalf("error = %v, want network TransportError", err)
	}
	if !te.Transient() {
		t.Error("network errors should be transient")
	}
}

func TestDo_CancelledIsNotNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	c := newTestClient(t, DefaultConfig())
	_, err := c.Get(ctx, server.URL+"/slow")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if kind, _ := record.Classify(err); kind != record.KindCancelled {
		t.Errorf("kind = %s, want cancelled", kind)
	}
}

func TestDo_CacheHit(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(append([]byte("echo:"), body...))
	}))
	defer server.Close()

	store := cache.NewMemoryStore()
	c := newTestClient(t, Config{Cache: store, CacheTTL: time.Minute})
	ctx := context.Background()

	first, err := c.PostJSON(ctx, server.URL+"/graphql", map[string]string{"username": "a"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.PostJSON(ctx, server.URL+"/graphql", map[string]string{"username": "a"})
	if err != nil {
		t.Fatal(err)
	}
	other, err := c.PostJSON(ctx, server.URL+"/graphql", map[string]string{"username": "b"})
	if err != nil {
		t.Fatal(err)
	}

	if hits.Load() != 2 {
		t.Errorf("server hits = %d, want 2", hits.Load())
	}
	if first.Cached || !second.Cached || other.Cached {
		t.Errorf("Cached flags = %v %v %v, want false true false", first.Cached, second.Cached, other.Cached)
	}
	if string(second.Body) != string(first.Body) || second.Header.Get("Content-Type") != "application/json" {
		t.Errorf("cached response = %q %v", second.Body, second.Header)
	}
}

func TestDo_ErrorsAreNotCached(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	store := cache.NewMemoryStore()
	c := newTestClient(t, Config{Cache: store, CacheTTL: time.Minute})
	for i := 0; i < 2; i++ {
		_, _ = c.Get(context.Background(), server.URL+"/x")
	}
	if hits.Load() != 2 || store.Len() != 0 {
		t.Errorf("hits = %d stored = %d, want 2 and 0", hits.Load(), store.Len())
	}
}

func TestDo_TrackerRecordsCooldown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	store := ratelimit.NewMemoryCooldown()
	tracker := ratelimit.NewTracker(store, zerolog.New(os.Stderr).Level(zerolog.Disabled))
	c := newTestClient(t, Config{Tracker: tracker})

	_, err := c.Get(context.Background(), server.URL+"/x")
	if kind, _ := record.Classify(err); kind != record.KindRateLimit {
		t.Fatalf("kind = %s, want rate_limit", kind)
	}

	until, _ := store.Until(context.Background())
	if wait := time.Until(until); wait < 25*time.Second || wait > 30*time.Second {
		t.Errorf("cooldown = %v, want ~30s", wait)
	}
}

func TestSetHTTPClient(t *testing.T) {
	var used atomic.Bool
	c := newTestClient(t, DefaultConfig())
	c.SetHTTPClient(&http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		used.Store(true)
		return &http.Response{
			StatusCode: 200,
			Header:     http.Header{},
			Body:       io.NopCloser(strings.NewReader("ok")),
			Request:    r,
		}, nil
	})})

	resp, err := c.Get(context.Background(), "https://leetcode.com/x")
	if err != nil || !used.Load() || string(resp.Body) != "ok" {
		t.Errorf("resp = %v err = %v used = %v", resp, err, used.Load())
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestHost(t *testing.T) {
	if got := Host("https://leetcode.com/graphql"); got != "leetcode.com" {
		t.Errorf("Host() = %q", got)
	}
}
