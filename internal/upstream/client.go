// Package upstream is the shared HTTP plumbing for third-party JSON APIs
// (blockchain indexer, social graph).
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"fc_explorer/core-go/internal/metrics"
)

// ErrNotConfigured is returned when a required API key is missing.
var ErrNotConfigured = errors.New("upstream api key not configured")

// StatusError is a non-2xx response from an upstream API.
type StatusError struct {
	Service string
	Status  int
	Body    string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: upstream status %d", e.Service, e.Status)
	}
	return fmt.Sprintf("%s: upstream status %d: %s", e.Service, e.Status, e.Body)
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == http.StatusNotFound
}

// IsTransient reports whether err looks retryable: rate limiting, 5xx or a
// transport failure. Configuration errors are never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrNotConfigured) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status == http.StatusTooManyRequests || se.Status >= 500
	}
	return true
}

// StatusOf returns the upstream status carried by err, or 0.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

type Options struct {
	Service string
	BaseURL string
	Header  http.Header
	// RPS <= 0 disables rate limiting.
	RPS     float64
	Burst   int
	Timeout time.Duration
	HTTP    *http.Client
}

type Client struct {
	service string
	baseURL string
	header  http.Header
	http    *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func New(log zerolog.Logger, opts Options, m *metrics.Metrics) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hc := opts.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	var limiter *rate.Limiter
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}
	header := opts.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set("Accept", "application/json")

	return &Client{
		service: opts.Service,
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		header:  header,
		http:    hc,
		limiter: limiter,
		log:     log.With().Str("upstream", opts.Service).Logger(),
		metrics: m,
	}
}

// GetJSON issues GET baseURL+path?query and decodes the body into dst.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, dst any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, dst)
}

// PostJSON issues POST baseURL+path with a JSON body.
func (c *Client) PostJSON(ctx context.Context, path string, body, dst any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", c.service, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, dst)
}

func (c *Client) do(req *http.Request, dst any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return fmt.Errorf("%s: rate limiter: %w", c.service, err)
		}
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream(c.service, 0)
		c.log.Debug().Err(err).Str("path", req.URL.Path).Msg("upstream request failed")
		return fmt.Errorf("%s: %w", c.service, err)
	}
	defer resp.Body.Close()

	c.metrics.ObserveUpstream(c.service, resp.StatusCode)
	c.log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("upstream_request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Service: c.service, Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if dst == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.service, err)
	}
	return nil
}
