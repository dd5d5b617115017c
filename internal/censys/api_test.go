package censys

/*
censeek — domain discovery toolkit for the Censys Search API
Copyright (C) 2025  Pepijn van der Stap <censeek@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{
		APIID:             "test-id",
		APISecret:         "test-secret",
		BaseURL:           baseURL,
		RequestsPerSecond: 1000, // keep tests fast
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNewClientMissingCredentials(t *testing.T) {
	t.Setenv(EnvAPIID, "")
	t.Setenv(EnvAPISecret, "")

	if _, err := NewClient(Config{}); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("NewClient() error = %v, want ErrMissingCredentials", err)
	}
}

func TestNewClientCredentialsFromEnv(t *testing.T) {
	t.Setenv(EnvAPIID, "env-id")
	t.Setenv(EnvAPISecret, "env-secret")

	c, err := NewClient(Config{})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.apiID != "env-id" || c.apiSecret != "env-secret" {
		t.Errorf("credentials = %q/%q, want env values", c.apiID, c.apiSecret)
	}
	if c.pageSize != DefaultPageSize {
		t.Errorf("pageSize = %d, want %d", c.pageSize, DefaultPageSize)
	}
}

func TestSearchFollowsCursor(t *testing.T) {
	var requests []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "test-id" || pass != "test-secret" {
			t.Errorf("missing or wrong basic auth: %q/%q", user, pass)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding request body: %v", err)
		}
		requests = append(requests, body)

		next := ""
		hits := `[{"ip": "192.0.2.1"}]`
		if body["cursor"] == nil {
			next = "cursor-page-2"
			hits = `[{"ip": "192.0.2.1"}, {"ip": "192.0.2.2"}]`
		}
		fmt.Fprintf(w, `{"code": 200, "status": "OK", "result": {"total": 3, "hits": %s, "links": {"next": %q}}}`, hits, next)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	q := BuildDNSQuery("example.com", 0, time.Now())

	var total int
	err := c.Search(context.Background(), q, SearchOptions{}, func(hits []json.RawMessage) error {
		total += len(hits)
		return nil
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total != 3 {
		t.Errorf("got %d hits, want 3", total)
	}
	if len(requests) != 2 {
		t.Fatalf("got %d requests, want 2", len(requests))
	}
	if requests[1]["cursor"] != "cursor-page-2" {
		t.Errorf("second request cursor = %v, want cursor-page-2", requests[1]["cursor"])
	}
	if requests[0]["q"] != q.Query {
		t.Errorf("request query = %v, want %q", requests[0]["q"], q.Query)
	}
}

func TestSearchRespectsMaxPages(t *testing.T) {
	var requestCount int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		// Every page points to another one; only MaxPages should stop us.
		fmt.Fprintf(w, `{"code": 200, "status": "OK", "result": {"hits": [{"ip": "192.0.2.1"}], "links": {"next": "cursor-%d"}}}`, requestCount)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	q := BuildDNSQuery("example.com", 0, time.Now())

	var pages int
	err := c.Search(context.Background(), q, SearchOptions{MaxPages: 3}, func(hits []json.RawMessage) error {
		pages++
		return nil
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if pages != 3 || requestCount != 3 {
		t.Errorf("pages = %d, requests = %d, want 3 and 3", pages, requestCount)
	}
}

func TestSearchRetriesTransientErrors(t *testing.T) {
	var requestCount int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		if requestCount == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"code": 429, "status": "error", "error": "rate limited"}`)
			return
		}
		fmt.Fprint(w, `{"code": 200, "status": "OK", "result": {"hits": [], "links": {"next": ""}}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	c.maxRetries = 2
	q := BuildCertificateQuery("example.com", 0, time.Now())

	start := time.Now()
	err := c.Search(context.Background(), q, SearchOptions{}, func(hits []json.RawMessage) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if requestCount != 2 {
		t.Errorf("got %d requests, want 2 (one retry)", requestCount)
	}
	// First retry waits ~2.1s.
	if elapsed := time.Since(start); elapsed < 2*time.Second {
		t.Errorf("retry returned after %v, expected backoff of at least 2s", elapsed)
	}
}

func TestSearchPermanentErrorNotRetried(t *testing.T) {
	var requestCount int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"code": 401, "status": "error", "error": "invalid credentials"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	q := BuildDNSQuery("example.com", 0, time.Now())

	err := c.Search(context.Background(), q, SearchOptions{}, func(hits []json.RawMessage) error {
		t.Fatal("page callback invoked on error")
		return nil
	})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Retryable {
		t.Errorf("got %+v, want permanent 401", apiErr)
	}
	if requestCount != 1 {
		t.Errorf("got %d requests, want 1 (no retry)", requestCount)
	}
}

func TestSearchCallbackErrorStops(t *testing.T) {
	var requestCount int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		fmt.Fprint(w, `{"code": 200, "status": "OK", "result": {"hits": [{"ip": "192.0.2.1"}], "links": {"next": "more"}}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	q := BuildDNSQuery("example.com", 0, time.Now())

	wantErr := errors.New("stop here")
	err := c.Search(context.Background(), q, SearchOptions{}, func(hits []json.RawMessage) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Search error = %v, want %v", err, wantErr)
	}
	if requestCount != 1 {
		t.Errorf("got %d requests, want 1", requestCount)
	}
}

func TestAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/account" {
			t.Errorf("path = %s, want /account", r.URL.Path)
		}
		fmt.Fprint(w, `{"email": "user@example.com", "login": "user", "quota": {"used": 10, "allowance": 250, "resets_at": "2025-07-01 00:00:00"}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	info, err := c.Account(context.Background())
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	if info.Email != "user@example.com" {
		t.Errorf("email = %q", info.Email)
	}
	if info.Quota.Allowance != 250 || info.Quota.Used != 10 {
		t.Errorf("quota = %+v", info.Quota)
	}
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"Nil", nil, false},
		{"Rate limited", classifyStatus(429, "slow down"), true},
		{"Server error", classifyStatus(503, "unavailable"), true},
		{"Unauthorized", classifyStatus(401, "bad creds"), false},
		{"Unprocessable", classifyStatus(422, "bad query"), false},
		{"Transport", NewAPIError(0, "connection reset", true), true},
		{"Wrapped", fmt.Errorf("outer: %w", classifyStatus(500, "boom")), true},
		{"Plain error", errors.New("something"), false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestBackoffDelay(t *testing.T) {
	t.Parallel()

	if d := backoffDelay(1); d < 2*time.Second || d > 3*time.Second {
		t.Errorf("backoffDelay(1) = %v, want ~2.1s", d)
	}
	if d := backoffDelay(3); d < 8*time.Second || d > 9*time.Second {
		t.Errorf("backoffDelay(3) = %v, want ~8.3s", d)
	}
	if d := backoffDelay(10); d != maxBackoff {
		t.Errorf("backoffDelay(10) = %v, want cap %v", d, maxBackoff)
	}
}

func TestDecodeHostResult(t *testing.T) {
	t.Parallel()

	raw := json.RawMessage(`{
		"ip": "192.0.2.1",
		"dns": {"names": ["www.example.com"], "reverse_dns": {"names": ["ptr.example.com"]}},
		"last_updated_at": "2025-06-01T00:00:00Z"
	}`)
	r, err := DecodeHostResult(raw)
	if err != nil {
		t.Fatalf("DecodeHostResult: %v", err)
	}
	if r.IP != "192.0.2.1" || r.LastUpdatedAt != "2025-06-01T00:00:00Z" {
		t.Errorf("decoded = %+v", r)
	}
	if r.DNS == nil || len(r.DNS.Names) != 1 || r.DNS.ReverseDNS == nil || len(r.DNS.ReverseDNS.Names) != 1 {
		t.Errorf("dns block = %+v", r.DNS)
	}

	// Hosts with no DNS block decode cleanly.
	r2, err := DecodeHostResult(json.RawMessage(`{"ip": "192.0.2.2"}`))
	if err != nil {
		t.Fatalf("DecodeHostResult: %v", err)
	}
	if r2.DNS != nil {
		t.Errorf("expected nil DNS block, got %+v", r2.DNS)
	}
}
