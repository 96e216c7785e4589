package internal

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	pkgerrs "github.com/jamesprial/go-fbgraph/pkg/errors"
	"github.com/jamesprial/go-fbgraph/pkg/jsonvalue"
	"github.com/jamesprial/go-fbgraph/pkg/mapper"
)

const defaultTokenEndpointPath = "oauth/access_token"

// Authenticator obtains an app access token through the client credentials grant.
type Authenticator struct {
	requestor *Requestor
	mapper    *mapper.Mapper
	appID     string
	appSecret string
	BaseURL   *url.URL
	tokenURL  *url.URL
}

// NewAuthenticator creates a new authenticator.
// The tokenPath parameter can be an empty string to use the default token endpoint.
func NewAuthenticator(requestor *Requestor, m *mapper.Mapper, appID, appSecret, baseURL, tokenPath string) (*Authenticator, error) {
	if requestor == nil {
		requestor = NewRequestor(nil, "", nil, nil)
	}
	if m == nil {
		m = mapper.New()
	}
	if appID == "" || appSecret == "" {
		return nil, &pkgerrs.AuthError{Message: "app ID and app secret are both required"}
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, &pkgerrs.AuthError{Err: fmt.Errorf("failed to parse base URL: %w", err)}
	}
	if !strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path += "/"
	}

	if tokenPath == "" {
		tokenPath = defaultTokenEndpointPath
	}

	resolvedTokenURL, err := parsedURL.Parse(tokenPath)
	if err != nil {
		return nil, &pkgerrs.AuthError{Err: fmt.Errorf("failed to parse token endpoint path: %w", err)}
	}

	q := resolvedTokenURL.Query()
	q.Set("client_id", appID)
	q.Set("client_secret", appSecret)
	q.Set("grant_type", "client_credentials")
	resolvedTokenURL.RawQuery = q.Encode()

	return &Authenticator{
		requestor: requestor,
		mapper:    m,
		appID:     appID,
		appSecret: appSecret,
		BaseURL:   parsedURL,
		tokenURL:  resolvedTokenURL,
	}, nil
}

type tokenResponse struct {
	AccessToken string `facebook:"access_token"`
	TokenType   string `facebook:"token_type"`
	ExpiresIn   int64  `facebook:"expires_in"`
}

// GetToken requests an app access token. Both the JSON response and the
// legacy "access_token=...&expires=..." form are accepted.
func (a *Authenticator) GetToken(ctx context.Context) (string, error) {
	status, body, err := a.requestor.Get(ctx, a.tokenURL.String())
	if err != nil {
		return "", &pkgerrs.AuthError{Err: fmt.Errorf("failed to execute token request: %w", err)}
	}

	if status != http.StatusOK {
		authErr := &pkgerrs.AuthError{StatusCode: status, Body: body}
		if root, perr := jsonvalue.Parse(body); perr == nil {
			if graphErr := ParseGraphError(status, root); graphErr != nil {
				authErr.Message = graphErr.Message
				authErr.Err = graphErr
			}
		}
		return "", authErr
	}

	token, err := a.parseToken(body)
	if err != nil {
		return "", &pkgerrs.AuthError{StatusCode: status, Body: body, Err: err}
	}
	if token == "" {
		return "", &pkgerrs.AuthError{
			StatusCode: status,
			Body:       body,
			Err:        fmt.Errorf("access token was empty in response"),
		}
	}
	return token, nil
}

func (a *Authenticator) parseToken(body string) (string, error) {
	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "{") {
		resp, err := mapper.Object[tokenResponse](a.mapper, trimmed)
		if err != nil {
			return "", fmt.Errorf("failed to map token response: %w", err)
		}
		return resp.AccessToken, nil
	}

	values, err := url.ParseQuery(trimmed)
	if err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}
	return values.Get("access_token"), nil
}

// AppSecretProof returns the appsecret_proof parameter for token: the hex
// HMAC-SHA256 of the token keyed with the app secret.
func AppSecretProof(token, appSecret string) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}
