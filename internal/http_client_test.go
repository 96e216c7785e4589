package internal

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/time/rate"
)

func fastLimits() *RateLimitConfig {
	return &RateLimitConfig{RequestsPerMinute: 60000, Burst: 1000}
}

func TestNewRequestor_DefaultRateLimiter(t *testing.T) {
	r := NewRequestor(nil, "agent", nil, nil)

	if r.limiter == nil {
		t.Fatalf("expected limiter to be initialized")
	}
	if got, want := r.limiter.Limit(), rate.Limit(DefaultRequestsPerMinute/SecondsPerMinute); got != want {
		t.Errorf("expected default limit %v req/sec, got %v", want, got)
	}
	if got := r.limiter.Burst(); got != DefaultRateLimitBurst {
		t.Errorf("expected default burst of %d, got %d", DefaultRateLimitBurst, got)
	}
	if r.usageWait != DefaultUsageBackoff {
		t.Errorf("expected default usage backoff %v, got %v", DefaultUsageBackoff, r.usageWait)
	}
}

func TestNewRequestor_CustomLimiterConfig(t *testing.T) {
	r := NewRequestor(nil, "agent", &RateLimitConfig{RequestsPerMinute: 120, Burst: 5, UsageBackoff: time.Second}, nil)

	if got := r.limiter.Limit(); got != rate.Limit(2) {
		t.Errorf("expected limit of 2 req/sec, got %v", got)
	}
	if got := r.limiter.Burst(); got != 5 {
		t.Errorf("expected burst of 5, got %d", got)
	}
	if r.usageWait != time.Second {
		t.Errorf("expected usage backoff of 1s, got %v", r.usageWait)
	}
}

func TestRequestor_GetSetsHeadersAndReturnsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "my-agent" {
			t.Errorf("expected User-Agent my-agent, got %q", got)
		}
		if got := r.Header.Get("Accept-Encoding"); !strings.Contains(got, "br") {
			t.Errorf("expected brotli in Accept-Encoding, got %q", got)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"4"}`))
	}))
	t.Cleanup(server.Close)

	r := NewRequestor(server.Client(), "my-agent", fastLimits(), nil)
	status, body, err := r.Get(context.Background(), server.URL+"/4")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if status != http.StatusOK || body != `{"id":"4"}` {
		t.Fatalf("unexpected result: %d %q", status, body)
	}
}

func TestRequestor_NonSuccessStatusIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"temporary"}`))
	}))
	t.Cleanup(server.Close)

	r := NewRequestor(server.Client(), "agent", fastLimits(), nil)
	status, body, err := r.Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if status != http.StatusServiceUnavailable || body != `{"error":"temporary"}` {
		t.Fatalf("unexpected result: %d %q", status, body)
	}
}

func TestRequestor_PostSendsForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("Content-Type"); got != "application/x-www-form-urlencoded" {
			t.Errorf("unexpected Content-Type %q", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if got := r.PostForm.Get("message"); got != "hello world" {
			t.Errorf("expected message form value, got %q", got)
		}
		_, _ = w.Write([]byte(`{"id":"1_2"}`))
	}))
	t.Cleanup(server.Close)

	r := NewRequestor(server.Client(), "agent", fastLimits(), nil)
	_, body, err := r.Post(context.Background(), server.URL+"/me/feed", url.Values{"message": {"hello world"}})
	if err != nil {
		t.Fatalf("Post returned error: %v", err)
	}
	if body != `{"id":"1_2"}` {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestRequestor_DeleteUsesMethod(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", r.Method)
		}
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	t.Cleanup(server.Close)

	r := NewRequestor(server.Client(), "agent", fastLimits(), nil)
	if _, _, err := r.Delete(context.Background(), server.URL+"/123"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
}

func TestRequestor_DecodesCompressedBodies(t *testing.T) {
	payload := `{"data":[{"id":"1"},{"id":"2"}]}`

	encoders := map[string]func(io.Writer) io.WriteCloser{
		"br":   func(w io.Writer) io.WriteCloser { return brotli.NewWriter(w) },
		"gzip": func(w io.Writer) io.WriteCloser { return gzip.NewWriter(w) },
	}

	for encoding, newWriter := range encoders {
		t.Run(encoding, func(t *testing.T) {
			var buf bytes.Buffer
			w := newWriter(&buf)
			if _, err := w.Write([]byte(payload)); err != nil {
				t.Fatalf("compress: %v", err)
			}
			if err := w.Close(); err != nil {
				t.Fatalf("close compressor: %v", err)
			}

			server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
				rw.Header().Set("Content-Encoding", encoding)
				_, _ = rw.Write(buf.Bytes())
			}))
			t.Cleanup(server.Close)

			r := NewRequestor(server.Client(), "agent", fastLimits(), nil)
			_, body, err := r.Get(context.Background(), server.URL)
			if err != nil {
				t.Fatalf("Get returned error: %v", err)
			}
			if body != payload {
				t.Fatalf("expected decoded body %q, got %q", payload, body)
			}
		})
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestRequestor_TransportErrorWrapped(t *testing.T) {
	expectedErr := errors.New("boom")
	httpClient := &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		return nil, expectedErr
	})}

	r := NewRequestor(httpClient, "agent", nil, nil)
	_, _, err := r.Get(context.Background(), "https://graph.example.com/me")
	if err == nil {
		t.Fatal("expected transport error")
	}

	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("expected ClientError, got %T", err)
	}
	if !errors.Is(clientErr, expectedErr) {
		t.Fatalf("expected wrapped error %v, got %v", expectedErr, clientErr)
	}
}

func TestRequestor_HonorsCanceledContextBeforeSend(t *testing.T) {
	transportCalled := false
	httpClient := &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		transportCalled = true
		return nil, errors.New("unexpected transport call")
	})}

	r := NewRequestor(httpClient, "agent", nil, nil)
	r.deferRequests(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := r.Get(ctx, "https://graph.example.com/me")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if transportCalled {
		t.Fatal("transport should not be invoked when context already canceled")
	}
}

func TestRequestor_EnforcesRetryAfter(t *testing.T) {
	var (
		mu        sync.Mutex
		callCount int
		firstHit  time.Time
		secondHit time.Time
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		callCount++
		if callCount == 1 {
			firstHit = time.Now()
			w.Header().Set("Retry-After", "0.1")
		} else {
			secondHit = time.Now()
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(server.Close)

	r := NewRequestor(server.Client(), "agent", fastLimits(), nil)
	ctx := context.Background()

	if _, _, err := r.Get(ctx, server.URL+"/first"); err != nil {
		t.Fatalf("first request returned error: %v", err)
	}
	if _, _, err := r.Get(ctx, server.URL+"/second"); err != nil {
		t.Fatalf("second request returned error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if callCount != 2 {
		t.Fatalf("expected 2 calls to server, got %d", callCount)
	}
	if diff := secondHit.Sub(firstHit); diff < 90*time.Millisecond {
		t.Fatalf("expected at least 90ms between requests, got %v", diff)
	}
}

func TestRequestor_WaitForForcedDelayBlocksAndClears(t *testing.T) {
	r := &Requestor{}
	r.forceWaitUntil = time.Now().Add(30 * time.Millisecond)

	start := time.Now()
	if err := r.waitForForcedDelay(context.Background()); err != nil {
		t.Fatalf("waitForForcedDelay returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Fatalf("expected waitForForcedDelay to block, elapsed %v", elapsed)
	}
	if !r.forceWaitUntil.IsZero() {
		t.Fatal("expected forced delay to be cleared after waiting")
	}
}

func TestRequestor_DeferRequestsExtendsDelay(t *testing.T) {
	r := &Requestor{}

	r.deferRequests(-time.Second)
	if !r.forceWaitUntil.IsZero() {
		t.Fatal("negative duration should not set forced delay")
	}

	r.deferRequests(20 * time.Millisecond)
	first := r.forceWaitUntil
	if first.IsZero() {
		t.Fatal("expected forced delay to be set")
	}

	r.deferRequests(5 * time.Millisecond)
	if !r.forceWaitUntil.Equal(first) {
		t.Fatalf("shorter defer should not reduce wait")
	}

	r.deferRequests(40 * time.Millisecond)
	if !r.forceWaitUntil.After(first) {
		t.Fatalf("longer defer should extend wait")
	}
}

func TestRequestor_ApplyRateHeaders(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		value     string
		wantDefer bool
		minDelay  time.Duration
	}{
		{"retry after", "Retry-After", "0.05", true, 0},
		{"app usage exhausted", "X-App-Usage", `{"call_count":100,"total_time":20,"total_cputime":10}`, true, 50 * time.Second},
		{"app usage fine", "X-App-Usage", `{"call_count":42,"total_time":20,"total_cputime":10}`, false, 0},
		{"app usage malformed", "X-App-Usage", `{call_count`, false, 0},
		{"ad account usage exhausted", "X-Ad-Account-Usage", `{"acc_id_util_pct":100}`, true, 50 * time.Second},
		{
			"business use case regain",
			"X-Business-Use-Case-Usage",
			`{"112":[{"type":"pages","call_count":100,"total_cputime":25,"total_time":25,"estimated_time_to_regain_access":5}]}`,
			true,
			4 * time.Minute,
		},
		{
			"business use case without wait",
			"X-Business-Use-Case-Usage",
			`{"112":[{"type":"pages","call_count":12,"estimated_time_to_regain_access":0}]}`,
			false,
			0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Requestor{usageWait: time.Minute, logger: slog.New(slog.DiscardHandler)}
			resp := &http.Response{Header: make(http.Header)}
			resp.Header.Set(tt.header, tt.value)

			r.applyRateHeaders(resp)

			if got := !r.forceWaitUntil.IsZero(); got != tt.wantDefer {
				t.Fatalf("deferred = %v, want %v", got, tt.wantDefer)
			}
			if tt.wantDefer && time.Until(r.forceWaitUntil) < tt.minDelay {
				t.Fatalf("expected delay of at least %v, got %v", tt.minDelay, time.Until(r.forceWaitUntil))
			}
		})
	}
}

func TestRequestor_ApplyRateHeadersDoesNotShortenDelay(t *testing.T) {
	r := &Requestor{logger: slog.New(slog.DiscardHandler)}
	r.deferRequests(60 * time.Millisecond)
	initial := r.forceWaitUntil

	resp := &http.Response{Header: make(http.Header)}
	resp.Header.Set("Retry-After", "0.01")
	r.applyRateHeaders(resp)

	if !r.forceWaitUntil.Equal(initial) {
		t.Fatalf("expected shorter retry-after to be ignored")
	}
}

func TestRequestor_LogsRedactedURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(server.Close)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := NewRequestor(server.Client(), "agent", fastLimits(), logger)

	if _, _, err := r.Get(context.Background(), server.URL+"/me?access_token=secret-token&appsecret_proof=abc"); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "secret-token") || strings.Contains(out, "appsecret_proof=abc") {
		t.Fatalf("credentials leaked into log output: %s", out)
	}
	if !strings.Contains(out, "REDACTED") {
		t.Fatalf("expected redacted URL in log output: %s", out)
	}
}

func TestRedactURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://graph.facebook.com/me?fields=id", "https://graph.facebook.com/me?fields=id"},
		{"https://graph.facebook.com/me?access_token=t&fields=id", "https://graph.facebook.com/me?access_token=REDACTED&fields=id"},
		{"https://graph.facebook.com/oauth/access_token?client_id=1&client_secret=s", "https://graph.facebook.com/oauth/access_token?client_id=1&client_secret=REDACTED"},
		{"://bad", "<unparseable url>"},
	}

	for _, tt := range tests {
		if got := RedactURL(tt.in); got != tt.want {
			t.Errorf("RedactURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClientError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	err := &ClientError{OriginalErr: inner}
	if !errors.Is(err, inner) {
		t.Fatal("expected ClientError to unwrap to the original error")
	}
	if err.Error() != "inner" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
