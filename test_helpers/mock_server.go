package test_helpers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"
)

// MockServer provides a configurable mock Graph API server for testing
type MockServer struct {
	server  *httptest.Server
	handler *MockHandler
}

// RequestEntry logs incoming requests for debugging
type RequestEntry struct {
	Method       string
	Path         string
	Query        url.Values
	Headers      http.Header
	Body         string
	Timestamp    time.Time
	ResponseCode int
}

// MockHandler handles mock API responses
type MockHandler struct {
	responses   map[string]*MockResponse
	defaultResp *MockResponse
	// matchParams are query parameters that select a response, e.g.
	// "/me/feed?after=abc" is tried before "/me/feed"
	matchParams []string
	delay       time.Duration

	mutex      sync.RWMutex
	requestLog []RequestEntry
	callCount  map[string]int
}

// MockResponse defines a mock API response
type MockResponse struct {
	Status  int
	Body    string
	Headers map[string]string
	Delay   time.Duration
	// MaxCalls makes the response answer 404 once exceeded. 0 = unlimited
	MaxCalls int
}

// NewMockServer creates a new mock server instance
func NewMockServer() *MockServer {
	handler := &MockHandler{
		responses:   make(map[string]*MockResponse),
		callCount:   make(map[string]int),
		matchParams: []string{"page", "after", "before", "ids", "q"},
		defaultResp: &MockResponse{
			Status: http.StatusNotFound,
			Body:   `{"error":{"message":"Unknown path components","type":"OAuthException","code":2500}}`,
		},
	}

	return &MockServer{
		server:  httptest.NewServer(handler),
		handler: handler,
	}
}

// URL returns the base URL of the mock server
func (ms *MockServer) URL() string {
	return ms.server.URL
}

// Close shuts down the mock server
func (ms *MockServer) Close() {
	ms.server.Close()
}

// SetResponse configures a response for a path, optionally qualified by one
// query parameter, e.g. "/v21.0/me/feed?after=abc".
func (ms *MockServer) SetResponse(key string, response *MockResponse) {
	ms.handler.mutex.Lock()
	defer ms.handler.mutex.Unlock()
	ms.handler.responses[key] = response
}

// SetJSON is SetResponse with status 200 and a JSON body.
func (ms *MockServer) SetJSON(key, body string) {
	ms.SetResponse(key, &MockResponse{
		Status:  http.StatusOK,
		Body:    body,
		Headers: map[string]string{"Content-Type": "application/json"},
	})
}

// SetDefaultResponse configures the response for unmatched requests
func (ms *MockServer) SetDefaultResponse(response *MockResponse) {
	ms.handler.mutex.Lock()
	defer ms.handler.mutex.Unlock()
	ms.handler.defaultResp = response
}

// SetDelay adds delay to all responses
func (ms *MockServer) SetDelay(delay time.Duration) {
	ms.handler.mutex.Lock()
	defer ms.handler.mutex.Unlock()
	ms.handler.delay = delay
}

// GetRequestLog returns the request log
func (ms *MockServer) GetRequestLog() []RequestEntry {
	ms.handler.mutex.RLock()
	defer ms.handler.mutex.RUnlock()
	return append([]RequestEntry{}, ms.handler.requestLog...)
}

// GetCallCount returns the call count for a path
func (ms *MockServer) GetCallCount(path string) int {
	ms.handler.mutex.RLock()
	defer ms.handler.mutex.RUnlock()
	return ms.handler.callCount[path]
}

// ClearLog clears the request log and call counts
func (ms *MockServer) ClearLog() {
	ms.handler.mutex.Lock()
	defer ms.handler.mutex.Unlock()
	ms.handler.requestLog = nil
	ms.handler.callCount = make(map[string]int)
}

// ServeHTTP implements http.Handler
func (h *MockHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	entry := RequestEntry{
		Method:    r.Method,
		Path:      r.URL.Path,
		Query:     r.URL.Query(),
		Headers:   r.Header.Clone(),
		Timestamp: time.Now(),
	}
	if r.Body != nil {
		body, _ := io.ReadAll(r.Body)
		entry.Body = string(body)
	}

	h.mutex.Lock()
	h.callCount[r.URL.Path]++
	calls := h.callCount[r.URL.Path]
	response := h.lookup(r)
	delay := h.delay + response.Delay
	h.mutex.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	status := response.Status
	if response.MaxCalls > 0 && calls > response.MaxCalls {
		status = http.StatusNotFound
		w.WriteHeader(status)
	} else {
		for key, value := range response.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response.Body))
	}

	entry.ResponseCode = status
	h.mutex.Lock()
	h.requestLog = append(h.requestLog, entry)
	h.mutex.Unlock()
}

// lookup must be called with the mutex held.
func (h *MockHandler) lookup(r *http.Request) *MockResponse {
	q := r.URL.Query()
	for _, name := range h.matchParams {
		if !q.Has(name) {
			continue
		}
		key := r.URL.Path + "?" + name + "=" + q.Get(name)
		if resp, ok := h.responses[key]; ok {
			return resp
		}
	}
	if resp, ok := h.responses[r.URL.Path]; ok {
		return resp
	}
	return h.defaultResp
}

// GraphMockServer provides Graph-specific mock responses under one API version
type GraphMockServer struct {
	*MockServer
	Version string
}

// NewGraphMockServer creates a mock server pre-configured with the app token endpoint
func NewGraphMockServer(version string) *GraphMockServer {
	server := &GraphMockServer{
		MockServer: NewMockServer(),
		Version:    version,
	}
	server.SetJSON(server.Path("oauth/access_token"), `{"access_token":"mock_app_token","token_type":"bearer"}`)
	return server
}

// Path returns the server path of a Graph path, e.g. "me" -> "/v21.0/me".
func (gms *GraphMockServer) Path(graphPath string) string {
	return "/" + gms.Version + "/" + strings.Trim(graphPath, "/")
}

// PageURL returns the absolute URL of a page of a connection.
func (gms *GraphMockServer) PageURL(graphPath, param, value string) string {
	return gms.URL() + gms.Path(graphPath) + "?" + param + "=" + url.QueryEscape(value)
}

// SetupObject serves body for GET requests to a Graph path.
func (gms *GraphMockServer) SetupObject(graphPath, body string) {
	gms.SetJSON(gms.Path(graphPath), body)
}

// SetupPages serves a connection as offset pages linked by next/previous
// URLs that carry page=1..n. items holds the JSON text of each page's items.
// The first page is also served for the bare path.
func (gms *GraphMockServer) SetupPages(graphPath string, items ...[]string) {
	for i, page := range items {
		number := i + 1
		var paging []string
		if i > 0 {
			paging = append(paging, fmt.Sprintf(`"previous":%q`, gms.PageURL(graphPath, "page", fmt.Sprint(number-1))))
		}
		if i < len(items)-1 {
			paging = append(paging, fmt.Sprintf(`"next":%q`, gms.PageURL(graphPath, "page", fmt.Sprint(number+1))))
		}
		body := fmt.Sprintf(`{"data":[%s],"paging":{%s}}`, strings.Join(page, ","), strings.Join(paging, ","))

		gms.SetJSON(gms.Path(graphPath)+"?page="+fmt.Sprint(number), body)
		if i == 0 {
			gms.SetJSON(gms.Path(graphPath), body)
		}
	}
}

// SetupError makes every unmatched request fail with a Graph error payload
func (gms *GraphMockServer) SetupError(status, code int, errType, message string) {
	gms.SetDefaultResponse(&MockResponse{
		Status:  status,
		Body:    fmt.Sprintf(`{"error":{"message":%q,"type":%q,"code":%d,"fbtrace_id":"mocktrace"}}`, message, errType, code),
		Headers: map[string]string{"Content-Type": "application/json"},
	})
}

// SetupUsage makes every unmatched request succeed with an X-App-Usage header
func (gms *GraphMockServer) SetupUsage(callCount int) {
	gms.SetDefaultResponse(&MockResponse{
		Status: http.StatusOK,
		Body:   `{"success":true}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"X-App-Usage":  fmt.Sprintf(`{"call_count":%d,"total_time":1,"total_cputime":1}`, callCount),
		},
	})
}

// WaitForRequests waits for a specific number of requests to be made
func (ms *MockServer) WaitForRequests(count int, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for %d requests", count)
		case <-ticker.C:
			if len(ms.GetRequestLog()) >= count {
				return nil
			}
		}
	}
}

// AssertRequestCount asserts that a specific number of requests were made to a path
func (ms *MockServer) AssertRequestCount(path string, expectedCount int) error {
	actualCount := ms.GetCallCount(path)
	if actualCount != expectedCount {
		return fmt.Errorf("expected %d requests to %s, got %d", expectedCount, path, actualCount)
	}
	return nil
}

// GetLastRequest returns the last request made to a specific path
func (ms *MockServer) GetLastRequest(path string) (*RequestEntry, error) {
	log := ms.GetRequestLog()
	for i := len(log) - 1; i >= 0; i-- {
		if log[i].Path == path {
			return &log[i], nil
		}
	}
	return nil, fmt.Errorf("no requests found for path: %s", path)
}
