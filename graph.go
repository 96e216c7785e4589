package fbgraph

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jamesprial/go-fbgraph/internal"
	pkgerrs "github.com/jamesprial/go-fbgraph/pkg/errors"
	"github.com/jamesprial/go-fbgraph/pkg/jsonvalue"
	"github.com/jamesprial/go-fbgraph/pkg/mapper"
)

const (
	// DefaultBaseURL is the default Graph API base URL
	DefaultBaseURL = "https://graph.facebook.com/"
	// DefaultAPIVersion is the Graph API version used when Config.APIVersion is empty
	DefaultAPIVersion = "v21.0"
	// DefaultUserAgent is the default user agent string
	DefaultUserAgent = "go-fbgraph/0.1"
	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = 30 * time.Second
)

// Config holds the configuration for the Graph client.
//
// Provide either an AccessToken, or an AppID and AppSecret from which an app
// access token is obtained on Connect.
//
//	config := &Config{
//		AccessToken: os.Getenv("FB_ACCESS_TOKEN"),
//		AppSecret:   os.Getenv("FB_APP_SECRET"),
//		UseAppSecretProof: true,
//	}
type Config struct {
	// AccessToken is sent with every request. Leave empty to use an app token.
	AccessToken string `yaml:"access_token"`

	// AppID and AppSecret identify the application. Both are required to
	// obtain an app token, and AppSecret is required for appsecret_proof.
	AppID     string `yaml:"app_id"`
	AppSecret string `yaml:"app_secret"`

	// APIVersion such as "v21.0". Defaults to DefaultAPIVersion.
	APIVersion string `yaml:"api_version"`

	// BaseURL of the Graph API. Defaults to DefaultBaseURL.
	BaseURL string `yaml:"base_url"`

	// UserAgent identifies the application. Defaults to DefaultUserAgent.
	UserAgent string `yaml:"user_agent"`

	// UseAppSecretProof signs every request with appsecret_proof.
	UseAppSecretProof bool `yaml:"use_appsecret_proof"`

	// RateLimit throttles outgoing requests. Nil uses the defaults.
	RateLimit *RateLimitConfig `yaml:"rate_limit"`

	// HTTPClient to use for requests.
	// Defaults to a client with DefaultTimeout if not specified.
	HTTPClient *http.Client `yaml:"-"`

	// Logger for structured diagnostics. Optional.
	Logger *slog.Logger `yaml:"-"`

	// Mapper converts responses to Go values. Defaults to mapper.New with Logger.
	Mapper *mapper.Mapper `yaml:"-"`
}

// RateLimitConfig controls client-side throttling. Zero fields use the defaults
// of the internal requestor.
type RateLimitConfig struct {
	RequestsPerMinute float64       `yaml:"requests_per_minute"`
	Burst             int           `yaml:"burst"`
	UsageBackoff      time.Duration `yaml:"usage_backoff"`
}

// Client is the Graph API client. It is safe for concurrent use; the
// Connections it returns are not.
type Client struct {
	config    *Config
	requestor *internal.Requestor
	auth      *internal.Authenticator
	validator *internal.Validator
	conn      *internal.ConnectionManager
	mapper    *mapper.Mapper
	logger    *slog.Logger
	baseURL   *url.URL

	mu    sync.RWMutex
	token string
}

// NewClient creates a new Graph client with the provided configuration.
// It validates the configuration and applies defaults, but performs no
// network calls; see Connect.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, &pkgerrs.ConfigError{Message: "config cannot be nil"}
	}

	if config.AccessToken == "" && (config.AppID == "" || config.AppSecret == "") {
		return nil, &pkgerrs.ConfigError{Field: "AccessToken", Message: "an AccessToken, or an AppID and AppSecret, are required"}
	}
	if config.UseAppSecretProof && config.AppSecret == "" {
		return nil, &pkgerrs.ConfigError{Field: "AppSecret", Message: "AppSecret is required when UseAppSecretProof is set"}
	}

	// Set defaults
	if config.APIVersion == "" {
		config.APIVersion = DefaultAPIVersion
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	validator := internal.NewValidator()
	if err := validator.ValidateAPIVersion(config.APIVersion); err != nil {
		return nil, err
	}
	if err := validator.ValidateUserAgent(config.UserAgent); err != nil {
		return nil, &pkgerrs.ConfigError{Field: "UserAgent", Message: err.Error()}
	}

	base, err := url.Parse(config.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, &pkgerrs.ConfigError{Field: "BaseURL", Message: "BaseURL must be an absolute URL"}
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	base = base.JoinPath(config.APIVersion)
	base.Path += "/"

	m := config.Mapper
	if m == nil {
		m = mapper.New(mapper.WithLogger(logger))
	}

	var rateCfg *internal.RateLimitConfig
	if config.RateLimit != nil {
		rateCfg = &internal.RateLimitConfig{
			RequestsPerMinute: config.RateLimit.RequestsPerMinute,
			Burst:             config.RateLimit.Burst,
			UsageBackoff:      config.RateLimit.UsageBackoff,
		}
	}
	requestor := internal.NewRequestor(config.HTTPClient, config.UserAgent, rateCfg, logger)

	c := &Client{
		config:    config,
		requestor: requestor,
		validator: validator,
		conn:      internal.NewConnectionManager(),
		mapper:    m,
		logger:    logger,
		baseURL:   base,
		token:     config.AccessToken,
	}

	if config.AccessToken == "" {
		auth, err := internal.NewAuthenticator(requestor, m, config.AppID, config.AppSecret, base.String(), "")
		if err != nil {
			return nil, err
		}
		c.auth = auth
	}

	return c, nil
}

// Connect prepares the client for API calls, obtaining an app access token
// when none was configured. It is safe to call Connect multiple times; once it
// has succeeded later calls return immediately, and a failed attempt is retried
// by the next call. Every API method connects lazily, so calling Connect is
// only needed to surface credential problems early.
func (c *Client) Connect(ctx context.Context) error {
	return c.conn.Initialize(ctx, c.initialize)
}

func (c *Client) initialize(ctx context.Context) error {
	if c.auth == nil {
		return nil
	}

	token, err := c.auth.GetToken(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	c.logger.Debug("obtained app access token", "app_id", c.config.AppID)
	return nil
}

// IsConnected returns true once Connect has succeeded.
func (c *Client) IsConnected() bool {
	return c.conn.IsInitialized()
}

// Mapper returns the mapper used to decode responses.
func (c *Client) Mapper() *mapper.Mapper {
	return c.mapper
}

// BaseURL returns the versioned API root, e.g. "https://graph.facebook.com/v21.0/".
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func (c *Client) accessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// FetchObject fetches a single object, e.g. "me" or "20531316728", and maps it to T.
func FetchObject[T any](ctx context.Context, c *Client, object string, params ...Parameter) (T, error) {
	var zero T
	if err := c.validator.ValidateObjectPath(object); err != nil {
		return zero, err
	}

	body, err := c.getJSON(ctx, object, params)
	if err != nil {
		return zero, err
	}
	return mapper.Object[T](c.mapper, body)
}

// FetchObjects fetches several objects in one call through the ids parameter.
// The result is keyed by the IDs as the API echoes them.
func FetchObjects[T any](ctx context.Context, c *Client, ids []string, params ...Parameter) (map[string]T, error) {
	if err := c.validator.ValidateObjectIDs(ids); err != nil {
		return nil, err
	}

	all := append([]Parameter{Param("ids", strings.Join(ids, ","))}, params...)
	body, err := c.getJSON(ctx, "", all)
	if err != nil {
		return nil, err
	}

	out, err := mapper.Object[map[string]T](c.mapper, body)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]T{}
	}
	return out, nil
}

// FetchConnection fetches the first page of a connection such as "me/feed".
func FetchConnection[T any](ctx context.Context, c *Client, connection string, params ...Parameter) (*Connection[T], error) {
	if err := c.validator.ValidateObjectPath(connection); err != nil {
		return nil, err
	}

	rawURL, err := c.requestURL(connection, params)
	if err != nil {
		return nil, err
	}
	body, err := c.FetchPage(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return NewConnection[T](c, c.mapper, rawURL, body)
}

// ExecuteFQLQuery runs a legacy FQL query and maps each result row to T.
func ExecuteFQLQuery[T any](ctx context.Context, c *Client, query string, params ...Parameter) ([]T, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &pkgerrs.ConfigError{Field: "query", Message: "FQL query cannot be empty"}
	}

	all := append([]Parameter{Param("q", query)}, params...)
	body, err := c.getJSON(ctx, "fql", all)
	if err != nil {
		return nil, err
	}

	root, err := c.mapper.Parse(body)
	if err != nil {
		return nil, err
	}
	env := internal.ParseEnvelope(root)
	return mapper.ListFromValue[T](c.mapper, jsonvalue.Array(env.Data...))
}

// Publish POSTs params to a connection such as "me/feed" and returns the
// parsed response, typically {"id":"..."}.
func Publish(ctx context.Context, c *Client, connection string, params ...Parameter) (jsonvalue.Value, error) {
	if err := c.validator.ValidateObjectPath(connection); err != nil {
		return jsonvalue.Value{}, err
	}
	body, err := c.post(ctx, connection, params)
	if err != nil {
		return jsonvalue.Value{}, err
	}
	return c.mapper.Parse(body)
}

// PublishAs is Publish with the response mapped to T.
func PublishAs[T any](ctx context.Context, c *Client, connection string, params ...Parameter) (T, error) {
	var zero T
	if err := c.validator.ValidateObjectPath(connection); err != nil {
		return zero, err
	}
	body, err := c.post(ctx, connection, params)
	if err != nil {
		return zero, err
	}
	return mapper.Object[T](c.mapper, body)
}

// DeleteObject deletes an object and reports whether the API confirmed it.
// Both the {"success":true} and the bare true response forms are accepted.
func (c *Client) DeleteObject(ctx context.Context, object string) (bool, error) {
	if err := c.validator.ValidateObjectPath(object); err != nil {
		return false, err
	}
	if err := c.Connect(ctx); err != nil {
		return false, err
	}

	rawURL, err := c.requestURL(object, nil)
	if err != nil {
		return false, err
	}
	status, body, err := c.requestor.Delete(ctx, rawURL)
	if err != nil {
		return false, &pkgerrs.TransportError{URL: internal.RedactURL(rawURL), Err: err}
	}
	if err := c.checkResponse(rawURL, status, body); err != nil {
		return false, err
	}

	root, err := c.mapper.Parse(body)
	if err != nil {
		return false, err
	}
	if b, ok := root.AsBool(); ok {
		return b, nil
	}
	if success, ok := root.Get("success"); ok {
		b, _ := success.AsBool()
		return b, nil
	}
	return false, nil
}

// FetchPage implements PageFetcher. rawURL must be absolute; the URLs Graph
// returns in paging blocks already carry the access token.
func (c *Client) FetchPage(ctx context.Context, rawURL string) (string, error) {
	if err := c.Connect(ctx); err != nil {
		return "", err
	}

	status, body, err := c.requestor.Get(ctx, rawURL)
	if err != nil {
		return "", &pkgerrs.TransportError{URL: internal.RedactURL(rawURL), Err: err}
	}
	if err := c.checkResponse(rawURL, status, body); err != nil {
		return "", err
	}
	return body, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params []Parameter) (string, error) {
	if err := c.Connect(ctx); err != nil {
		return "", err
	}
	rawURL, err := c.requestURL(path, params)
	if err != nil {
		return "", err
	}
	return c.FetchPage(ctx, rawURL)
}

// post sends params form-encoded to path. An empty path addresses the API root.
func (c *Client) post(ctx context.Context, path string, params []Parameter) (string, error) {
	if err := c.Connect(ctx); err != nil {
		return "", err
	}

	form, err := c.formValues(params)
	if err != nil {
		return "", err
	}
	target := c.baseURL.String()
	if p := strings.Trim(path, "/"); p != "" {
		target = c.baseURL.JoinPath(p).String()
	}

	status, body, err := c.requestor.Post(ctx, target, form)
	if err != nil {
		return "", &pkgerrs.TransportError{URL: target, Err: err}
	}
	if err := c.checkResponse(target, status, body); err != nil {
		return "", err
	}
	return body, nil
}

// requestURL builds the absolute URL of a GET request for path. An empty path
// addresses the API root, as used by the ids parameter.
func (c *Client) requestURL(path string, params []Parameter) (string, error) {
	values, err := c.formValues(params)
	if err != nil {
		return "", err
	}

	u := *c.baseURL
	if p := strings.Trim(path, "/"); p != "" {
		u = *u.JoinPath(p)
	}
	u.RawQuery = values.Encode()
	return u.String(), nil
}

// formValues encodes params and adds the parameters every request carries.
func (c *Client) formValues(params []Parameter) (url.Values, error) {
	if err := c.validator.ValidateParameterNames(parameterNames(params)); err != nil {
		return nil, err
	}
	for _, p := range params {
		if p.Name != "fields" {
			continue
		}
		if s, ok := p.Value.(string); ok {
			if err := c.validator.ValidateFields(s); err != nil {
				return nil, err
			}
		}
	}

	values := url.Values{}
	if err := encodeParameters(c.mapper, values, params); err != nil {
		return nil, &pkgerrs.RequestError{Operation: "encode parameters", Err: err}
	}

	token := c.accessToken()
	if token != "" {
		values.Set("access_token", token)
		if c.config.UseAppSecretProof {
			values.Set("appsecret_proof", internal.AppSecretProof(token, c.config.AppSecret))
		}
	}
	values.Set("format", "json")
	return values, nil
}

// checkResponse turns an error payload into a GraphError and any other
// non-2xx response into a TransportError.
func (c *Client) checkResponse(rawURL string, status int, body string) error {
	if root, err := jsonvalue.Parse(body); err == nil {
		if graphErr := internal.ParseGraphError(status, root); graphErr != nil {
			c.logger.Debug("graph API returned an error",
				"url", internal.RedactURL(rawURL), "status", status, "code", graphErr.Code, "kind", graphErr.Kind.String())
			return graphErr
		}
	}

	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return &pkgerrs.TransportError{URL: internal.RedactURL(rawURL), StatusCode: status, Body: body}
	}
	return nil
}
