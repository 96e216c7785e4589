package internal

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/time/rate"

	"github.com/jamesprial/go-fbgraph/pkg/jsonvalue"
)

// Requestor performs the HTTP round trips of the Graph client. It throttles
// outgoing requests, honors the server's back-off headers and decodes
// compressed bodies. It never interprets status codes or bodies.
type Requestor struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger

	limiter        *rate.Limiter
	usageWait      time.Duration
	mu             sync.Mutex
	forceWaitUntil time.Time
}

// RateLimitConfig controls how requests are throttled before reaching the Graph API.
type RateLimitConfig struct {
	// RequestsPerMinute caps steady-state throughput. Defaults to 200 if zero.
	RequestsPerMinute float64
	// Burst allows short spikes above the steady-state rate. Defaults to 20 if zero.
	Burst int
	// UsageBackoff is how long requests are deferred once X-App-Usage reports
	// a quota at 100%. Defaults to one minute if zero.
	UsageBackoff time.Duration
}

const (
	DefaultRequestsPerMinute = 200
	DefaultRateLimitBurst    = 20
	DefaultUsageBackoff      = time.Minute
	SecondsPerMinute         = 60.0
	ParseFloatBitSize        = 64

	// usageExhausted is the X-App-Usage percentage at which calls start failing
	usageExhausted = 100
)

// redactedParams are query parameters never written to logs.
var redactedParams = []string{"access_token", "appsecret_proof", "client_secret"}

// NewRequestor returns a Requestor. A nil httpClient means http.DefaultClient
// and a nil logger discards output.
func NewRequestor(httpClient *http.Client, userAgent string, rateCfg *RateLimitConfig, logger *slog.Logger) *Requestor {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if rateCfg == nil {
		rateCfg = &RateLimitConfig{}
	}

	return &Requestor{
		client:    httpClient,
		userAgent: userAgent,
		logger:    logger,
		limiter:   buildLimiter(*rateCfg),
		usageWait: usageBackoff(*rateCfg),
	}
}

// Get performs a GET request and returns the status code and decoded body.
func (r *Requestor) Get(ctx context.Context, rawURL string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, "", &ClientError{OriginalErr: err}
	}
	return r.Do(req)
}

// Post performs a form-encoded POST request.
func (r *Requestor) Post(ctx context.Context, rawURL string, form url.Values) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, "", &ClientError{OriginalErr: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r.Do(req)
}

// Delete performs a DELETE request.
func (r *Requestor) Delete(ctx context.Context, rawURL string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, rawURL, nil)
	if err != nil {
		return 0, "", &ClientError{OriginalErr: err}
	}
	return r.Do(req)
}

// Do sends req after waiting for the rate limiter and returns the status
// code and the decoded body, whatever the status.
func (r *Requestor) Do(req *http.Request) (int, string, error) {
	if err := r.waitForRateLimit(req.Context()); err != nil {
		return 0, "", &ClientError{OriginalErr: err}
	}

	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "br, gzip")

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Debug("graph request failed",
			"method", req.Method, "url", RedactURL(req.URL.String()), "error", err)
		return 0, "", &ClientError{OriginalErr: err}
	}
	defer resp.Body.Close()

	r.applyRateHeaders(resp)

	body, err := readBody(resp)
	if err != nil {
		return resp.StatusCode, "", &ClientError{OriginalErr: fmt.Errorf("failed to read response body: %w", err)}
	}

	r.logger.Debug("graph request",
		"method", req.Method,
		"url", RedactURL(req.URL.String()),
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration", time.Since(start))

	return resp.StatusCode, body, nil
}

// readBody drains resp.Body, undoing the content encoding requested in Do.
func readBody(resp *http.Response) (string, error) {
	var reader io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", err
		}
		defer gz.Close()
		reader = gz
	}

	b, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func buildLimiter(cfg RateLimitConfig) *rate.Limiter {
	requestsPerMinute := cfg.RequestsPerMinute
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultRequestsPerMinute
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = DefaultRateLimitBurst
	}

	limitPerSecond := rate.Limit(requestsPerMinute / SecondsPerMinute)
	if limitPerSecond <= 0 {
		limitPerSecond = rate.Limit(1)
	}

	return rate.NewLimiter(limitPerSecond, burst)
}

func usageBackoff(cfg RateLimitConfig) time.Duration {
	if cfg.UsageBackoff > 0 {
		return cfg.UsageBackoff
	}
	return DefaultUsageBackoff
}

func (r *Requestor) waitForRateLimit(ctx context.Context) error {
	if err := r.waitForForcedDelay(ctx); err != nil {
		return err
	}

	if r.limiter == nil {
		return nil
	}

	return r.limiter.Wait(ctx)
}

func (r *Requestor) waitForForcedDelay(ctx context.Context) error {
	for {
		r.mu.Lock()
		waitUntil := r.forceWaitUntil
		r.mu.Unlock()

		if waitUntil.IsZero() {
			return nil
		}

		now := time.Now()
		if !now.Before(waitUntil) {
			r.clearForcedDelay(waitUntil)
			return nil
		}

		timer := time.NewTimer(waitUntil.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			r.clearForcedDelay(waitUntil)
		}
	}
}

func (r *Requestor) clearForcedDelay(previous time.Time) {
	r.mu.Lock()
	if previous.Equal(r.forceWaitUntil) {
		r.forceWaitUntil = time.Time{}
	}
	r.mu.Unlock()
}

// applyRateHeaders defers later requests when the response says so: an
// explicit Retry-After, an exhausted X-App-Usage quota, or a business use case
// header carrying estimated_time_to_regain_access (minutes).
func (r *Requestor) applyRateHeaders(resp *http.Response) {
	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.ParseFloat(retryAfter, ParseFloatBitSize); err == nil && seconds > 0 {
			r.deferRequests(time.Duration(seconds * float64(time.Second)))
		}
	}

	for _, header := range []string{"X-App-Usage", "X-Ad-Account-Usage"} {
		if usage := resp.Header.Get(header); usage != "" && usageExceeded(usage) {
			r.logger.Warn("graph usage quota exhausted, deferring requests", "header", header, "usage", usage, "backoff", r.usageWait)
			r.deferRequests(r.usageWait)
		}
	}

	if buc := resp.Header.Get("X-Business-Use-Case-Usage"); buc != "" {
		if minutes := regainAccessMinutes(buc); minutes > 0 {
			r.deferRequests(time.Duration(minutes * float64(time.Minute)))
		}
	}
}

// usageExceeded reports whether any percentage in an X-App-Usage style
// header, e.g. {"call_count":100,"total_time":12,"total_cputime":9}, is exhausted.
func usageExceeded(header string) bool {
	usage, err := jsonvalue.Parse(header)
	if err != nil {
		return false
	}
	for _, m := range usage.Members() {
		n, ok := m.Value.AsNumber()
		if !ok {
			continue
		}
		if f, err := n.Float64(); err == nil && f >= usageExhausted {
			return true
		}
	}
	return false
}

// regainAccessMinutes returns the largest estimated_time_to_regain_access in
// the header, which maps business IDs to lists of usage objects.
func regainAccessMinutes(header string) float64 {
	usage, err := jsonvalue.Parse(header)
	if err != nil {
		return 0
	}
	longest := 0.0
	for _, business := range usage.Members() {
		for _, entry := range business.Value.Items() {
			v, ok := entry.Get("estimated_time_to_regain_access")
			if !ok {
				continue
			}
			n, ok := v.AsNumber()
			if !ok {
				continue
			}
			if f, err := n.Float64(); err == nil && f > longest {
				longest = f
			}
		}
	}
	return longest
}

func (r *Requestor) deferRequests(d time.Duration) {
	if d <= 0 {
		return
	}

	until := time.Now().Add(d)

	r.mu.Lock()
	if until.After(r.forceWaitUntil) {
		r.forceWaitUntil = until
	}
	r.mu.Unlock()
}

// RedactURL replaces credentials in rawURL's query string so it can be logged.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<unparseable url>"
	}
	q := u.Query()
	changed := false
	for _, name := range redactedParams {
		if q.Has(name) {
			q.Set(name, "REDACTED")
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// ClientError represents a failure to complete an HTTP round trip.
type ClientError struct {
	OriginalErr error
}

func (e *ClientError) Error() string {
	return e.OriginalErr.Error()
}

func (e *ClientError) Unwrap() error {
	return e.OriginalErr
}
