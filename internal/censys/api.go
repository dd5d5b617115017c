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

/*
Package censys implements a minimal client for the Censys Search API v2,
covering the two paged search indexes the tool needs (hosts and
certificates) plus the account endpoint.

The client paces requests with a token bucket limiter, retries transient
failures with exponential backoff, and follows result cursors until the
caller's page budget runs out or the index has no more hits.
*/

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/x-stp/censeek/internal/client"
	"github.com/x-stp/censeek/internal/metrics"
)

// Client defaults.
const (
	// DefaultBaseURL is the production Censys Search API endpoint.
	DefaultBaseURL = "https://search.censys.io/api/v2"
	// DefaultPageSize is the number of hits requested per page.
	DefaultPageSize = 100
	// MaxPageSize is the largest page the API accepts.
	MaxPageSize = 100
	// DefaultMaxRetries bounds retry attempts for one request.
	DefaultMaxRetries = 5
	// DefaultRequestsPerSecond paces requests conservatively below the
	// documented API rate limit.
	DefaultRequestsPerSecond = 2.0
	// maxBackoff caps the exponential retry delay.
	maxBackoff = 30 * time.Second
)

// Environment variables holding API credentials.
const (
	EnvAPIID     = "CENSYS_API_ID"
	EnvAPISecret = "CENSYS_API_SECRET"
)

// Config holds client construction parameters. Zero values fall back to
// defaults, and credentials fall back to the environment.
type Config struct {
	APIID             string
	APISecret         string
	BaseURL           string
	PageSize          int
	MaxRetries        int
	RequestsPerSecond float64
}

// Client talks to the Censys Search API.
type Client struct {
	apiID      string
	apiSecret  string
	baseURL    string
	pageSize   int
	maxRetries int
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient builds a Client from config, reading credentials from the
// environment when the config leaves them empty. Returns
// ErrMissingCredentials if neither source provides them.
func NewClient(cfg Config) (*Client, error) {
	apiID := cfg.APIID
	apiSecret := cfg.APISecret
	if apiID == "" {
		apiID = os.Getenv(EnvAPIID)
	}
	if apiSecret == "" {
		apiSecret = os.Getenv(EnvAPISecret)
	}
	if apiID == "" || apiSecret == "" {
		return nil, ErrMissingCredentials
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}

	return &Client{
		apiID:      apiID,
		apiSecret:  apiSecret,
		baseURL:    baseURL,
		pageSize:   pageSize,
		maxRetries: maxRetries,
		httpClient: client.GetHTTPClient(),
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

// PageSize returns the configured per-page hit count.
func (c *Client) PageSize() int { return c.pageSize }

// SearchOptions bounds one paged search.
type SearchOptions struct {
	// MaxPages limits how many result pages are fetched. 0 means no limit.
	MaxPages int
}

// PageFunc receives the raw hits from one result page. Returning an error
// stops the search and surfaces the error to the Search caller.
type PageFunc func(hits []json.RawMessage) error

// Search runs a paged query against an index, invoking fn once per page.
// It follows the result cursor until the index is exhausted, the page
// budget is spent, or the context is canceled.
func (c *Client) Search(ctx context.Context, q Query, opts SearchOptions, fn PageFunc) error {
	searchURL := fmt.Sprintf("%s/%s/search", c.baseURL, q.Index)
	cursor := ""
	pages := 0

	for {
		if opts.MaxPages > 0 && pages >= opts.MaxPages {
			log.Printf("Reached page limit (%d) for %s search", opts.MaxPages, q.Index)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		body := map[string]any{
			"q":        q.Query,
			"per_page": c.pageSize,
		}
		if len(q.Fields) > 0 {
			body["fields"] = q.Fields
		}
		if cursor != "" {
			body["cursor"] = cursor
		}

		resp, err := c.doWithRetry(ctx, q.Index, searchURL, body)
		if err != nil {
			return err
		}
		pages++
		metrics.GetMetrics().APIPagesFetched.WithLabelValues(string(q.Index)).Inc()

		if err := fn(resp.Result.Hits); err != nil {
			return err
		}

		cursor = resp.Result.Links.Next
		if cursor == "" {
			return nil
		}
	}
}

// Account fetches the authenticated account's profile and quota.
func (c *Client) Account(ctx context.Context) (*AccountInfo, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/account", nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.apiID, c.apiSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NewAPIError(0, fmt.Sprintf("account request failed: %v", err), true)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewAPIError(0, fmt.Sprintf("reading account response: %v", err), true)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, errorMessage(data, resp.StatusCode))
	}

	var info AccountInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decoding account response: %w", err)
	}
	return &info, nil
}

// doWithRetry issues one search request, retrying transient failures with
// exponential backoff capped at maxBackoff.
func (c *Client) doWithRetry(ctx context.Context, index Index, url string, body map[string]any) (*searchResponse, error) {
	m := metrics.GetMetrics()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt)
			log.Printf("Retrying %s search in %v (attempt %d/%d): %v", index, delay, attempt, c.maxRetries, lastErr)
			m.APIRetriesTotal.WithLabelValues(string(index)).Inc()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := c.doSearchRequest(ctx, index, url, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("censys %s search: retries exhausted: %w", index, lastErr)
}

// doSearchRequest performs a single POST against a search endpoint.
func (c *Client) doSearchRequest(ctx context.Context, index Index, url string, body map[string]any) (*searchResponse, error) {
	m := metrics.GetMetrics()
	done := metrics.MeasureDuration(m.APIRequestDuration, map[string]string{"index": string(index)})
	defer done()

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.apiID, c.apiSecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		m.APIRequestsTotal.WithLabelValues(string(index), "transport_error").Inc()
		m.APIErrorsTotal.WithLabelValues(string(index), "transport").Inc()
		return nil, NewAPIError(0, fmt.Sprintf("request failed: %v", err), true)
	}
	defer httpResp.Body.Close()

	m.APIRequestsTotal.WithLabelValues(string(index), strconv.Itoa(httpResp.StatusCode)).Inc()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		m.APIErrorsTotal.WithLabelValues(string(index), "read").Inc()
		return nil, NewAPIError(0, fmt.Sprintf("reading response: %v", err), true)
	}

	if httpResp.StatusCode != http.StatusOK {
		apiErr := classifyStatus(httpResp.StatusCode, errorMessage(data, httpResp.StatusCode))
		errType := "permanent"
		if apiErr.Retryable {
			errType = "transient"
		}
		m.APIErrorsTotal.WithLabelValues(string(index), errType).Inc()
		return nil, apiErr
	}

	var resp searchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		m.APIErrorsTotal.WithLabelValues(string(index), "decode").Inc()
		return nil, fmt.Errorf("decoding %s search response: %w", index, err)
	}
	return &resp, nil
}

// errorMessage pulls the API's error text out of a response body, falling
// back to the HTTP status text.
func errorMessage(data []byte, statusCode int) string {
	var envelope struct {
		Error  string `json:"error"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil {
		if envelope.Error != "" {
			return envelope.Error
		}
		if envelope.Status != "" {
			return envelope.Status
		}
	}
	return http.StatusText(statusCode)
}

// backoffDelay computes the exponential delay before a retry attempt,
// with a small linear jitter component, capped at maxBackoff.
func backoffDelay(attempt int) time.Duration {
	seconds := math.Pow(2, float64(attempt)) + float64(attempt)*0.1
	delay := time.Duration(seconds * float64(time.Second))
	if delay > maxBackoff {
		delay = maxBackoff
	}
	return delay
}
