package test_helpers

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	fbgraph "github.com/jamesprial/go-fbgraph"
)

// MockClientConfig provides configuration for mock clients
type MockClientConfig struct {
	APIVersion  string
	UserAgent   string
	Timeout     time.Duration
	AccessToken string
	// AppID and AppSecret are used when AccessToken is empty
	AppID             string
	AppSecret         string
	UseAppSecretProof bool
	Logger            *slog.Logger
}

// DefaultMockClientConfig returns default configuration for mock clients
func DefaultMockClientConfig() MockClientConfig {
	return MockClientConfig{
		APIVersion:  "v21.0",
		UserAgent:   "test-client/1.0",
		Timeout:     5 * time.Second,
		AccessToken: "mock_user_token",
		AppSecret:   "mock_app_secret",
	}
}

// TestClient provides a Graph client wired to a mock server
type TestClient struct {
	*fbgraph.Client
	mockServer *GraphMockServer
}

// NewTestClient creates a new test client with a mock server
func NewTestClient(config *MockClientConfig) *TestClient {
	if config == nil {
		defaultConfig := DefaultMockClientConfig()
		config = &defaultConfig
	}

	mockServer := NewGraphMockServer(config.APIVersion)

	client, err := fbgraph.NewClient(&fbgraph.Config{
		AccessToken:       config.AccessToken,
		AppID:             config.AppID,
		AppSecret:         config.AppSecret,
		UseAppSecretProof: config.UseAppSecretProof,
		APIVersion:        config.APIVersion,
		BaseURL:           mockServer.URL(),
		UserAgent:         config.UserAgent,
		HTTPClient:        &http.Client{Timeout: config.Timeout},
		Logger:            config.Logger,
		// generous limits so tests are never throttled client-side
		RateLimit: &fbgraph.RateLimitConfig{RequestsPerMinute: 60000, Burst: 1000},
	})
	if err != nil {
		mockServer.Close()
		panic(fmt.Sprintf("failed to create graph client: %v", err))
	}

	return &TestClient{
		Client:     client,
		mockServer: mockServer,
	}
}

// MockServer returns the underlying mock server
func (tc *TestClient) MockServer() *GraphMockServer {
	return tc.mockServer
}

// Close closes the mock server
func (tc *TestClient) Close() {
	tc.mockServer.Close()
}

// Reset clears the mock server's request log
func (tc *TestClient) Reset() {
	tc.mockServer.ClearLog()
}

// LastRequest returns the last request made to a Graph path
func (tc *TestClient) LastRequest(graphPath string) (*RequestEntry, error) {
	return tc.mockServer.GetLastRequest(tc.mockServer.Path(graphPath))
}
