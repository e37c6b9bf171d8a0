// Package usertoken implements the sign-in and token exchange protocol
// against the external token-vending service. The client is a thin,
// stateless adapter: the (userId, channelId, connectionName) state lives
// in the external service, never here.
package usertoken

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/soyeahso/botway/internal/auth"
	"github.com/soyeahso/botway/internal/connector"
	"github.com/soyeahso/botway/internal/logging"
)

// DefaultEndpoint is the token service used when none is configured.
const DefaultEndpoint = "https://api.botframework.com"

// DefaultScope is this client's own fixed app-only scope, distinct from
// the connector's per-activity scope selection.
const DefaultScope = "https://api.botframework.com/.default"

// Client talks to the token-vending service. All calls are app-only
// authenticated for the client's fixed scope.
type Client struct {
	endpoint   string
	scope      string
	tokens     auth.TokenProvider
	httpClient *http.Client
	log        *logging.Logger
	observe    connector.Observer
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the token service endpoint.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = strings.TrimRight(endpoint, "/") }
}

// WithScope overrides the client's app-only scope.
func WithScope(scope string) Option {
	return func(c *Client) { c.scope = scope }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithObserver registers a per-call observer.
func WithObserver(o connector.Observer) Option {
	return func(c *Client) { c.observe = o }
}

// New creates a user token client.
func New(tokens auth.TokenProvider, log *logging.Logger, opts ...Option) *Client {
	c := &Client{
		endpoint:   DefaultEndpoint,
		scope:      DefaultScope,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.Sub("usertoken"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetTokenStatus reports whether the user holds a token on the channel.
// A 404 from the service is the protocol's way of saying "no token" and
// yields a non-error status with HasToken false.
func (c *Client) GetTokenStatus(ctx context.Context, userID, channelID, include string) (*TokenStatus, error) {
	q := url.Values{}
	q.Set("userid", userID)
	q.Set("channelId", channelID)
	if include != "" {
		q.Set("include", include)
	}

	var statuses []TokenStatus
	found, err := c.call(ctx, "get token status", http.MethodGet, "api/usertoken/GetTokenStatus", q, nil, &statuses, true)
	if err != nil {
		return nil, err
	}
	if !found || len(statuses) == 0 {
		return &TokenStatus{HasToken: false}, nil
	}
	return &statuses[0], nil
}

// GetToken fetches the user's token for a connection, optionally
// redeeming a magic code. A nil result with nil error means the user has
// no token yet.
func (c *Client) GetToken(ctx context.Context, userID, connectionName, channelID, magicCode string) (*TokenResult, error) {
	q := url.Values{}
	q.Set("userid", userID)
	q.Set("connectionName", connectionName)
	q.Set("channelId", channelID)
	if magicCode != "" {
		q.Set("code", magicCode)
	}

	var result TokenResult
	found, err := c.call(ctx, "get token", http.MethodGet, "api/usertoken/GetToken", q, nil, &result, true)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &result, nil
}

// GetTokenOrSignInResource returns the sign-in resource the user must
// follow to produce a token. The state parameter round-trips through the
// external OAuth provider and is rebuilt byte-for-byte from the inputs.
func (c *Client) GetTokenOrSignInResource(ctx context.Context, userID, connectionName, channelID string) (*SignInResource, error) {
	q := url.Values{}
	q.Set("userid", userID)
	q.Set("connectionName", connectionName)
	q.Set("channelId", channelID)
	q.Set("state", ExchangeState(connectionName, userID))

	var result SignInResource
	if _, err := c.call(ctx, "get sign-in resource", http.MethodGet, "api/usertoken/GetTokenOrSignInResource", q, nil, &result, false); err != nil {
		return nil, err
	}
	return &result, nil
}

// SignOut signs the user out of a connection. Sign-out is best effort:
// any failure is logged and reported as false, never propagated.
func (c *Client) SignOut(ctx context.Context, userID, connectionName, channelID string) bool {
	q := url.Values{}
	q.Set("userid", userID)
	if connectionName != "" {
		q.Set("connectionName", connectionName)
	}
	if channelID != "" {
		q.Set("channelId", channelID)
	}

	if _, err := c.call(ctx, "sign out", http.MethodDelete, "api/usertoken/SignOut", q, nil, nil, false); err != nil {
		c.log.Error().Err(err).Str("userId", userID).Msg("failed to sign out user")
		return false
	}
	return true
}

// ExchangeToken swaps an exchangeable token for a user token.
func (c *Client) ExchangeToken(ctx context.Context, userID, connectionName, channelID, exchangeToken string) (*TokenResult, error) {
	q := url.Values{}
	q.Set("userid", userID)
	q.Set("connectionName", connectionName)
	q.Set("channelId", channelID)

	body := map[string]any{
		"exchangeable": map[string]string{"token": exchangeToken},
	}
	var result TokenResult
	if _, err := c.call(ctx, "exchange token", http.MethodPost, "api/usertoken/exchange", q, body, &result, false); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetAADTokens fetches AAD tokens for the given resource URLs, keyed by
// resource URL.
func (c *Client) GetAADTokens(ctx context.Context, userID, connectionName, channelID string, resourceURLs []string) (map[string]TokenResult, error) {
	if resourceURLs == nil {
		resourceURLs = []string{}
	}
	body := map[string]any{
		"channelId":      channelID,
		"connectionName": connectionName,
		"userId":         userID,
		"resourceUrls":   resourceURLs,
	}
	var result map[string]TokenResult
	if _, err := c.call(ctx, "get aad tokens", http.MethodPost, "api/usertoken/GetAadTokens", nil, body, &result, false); err != nil {
		return nil, err
	}
	return result, nil
}

// ExchangeState encodes the opaque state round-tripped by the external
// OAuth provider: base64 over the canonical JSON of the connection name
// and the user's conversation reference. Same inputs, same bytes.
func ExchangeState(connectionName, userID string) string {
	type stateUser struct {
		ID string `json:"id"`
	}
	type stateConversation struct {
		User stateUser `json:"user"`
	}
	type exchangeState struct {
		ConnectionName string            `json:"connectionName"`
		Conversation   stateConversation `json:"conversation"`
	}
	raw, _ := json.Marshal(exchangeState{
		ConnectionName: connectionName,
		Conversation:   stateConversation{User: stateUser{ID: userID}},
	})
	return base64.StdEncoding.EncodeToString(raw)
}

// call performs one token-service request. When notFoundOK is set, a 404
// is a recoverable "no token" outcome reported as found=false; any other
// non-2xx is a *connector.ProtocolError.
func (c *Client) call(ctx context.Context, operation, method, apiPath string, q url.Values, body, out any, notFoundOK bool) (bool, error) {
	token, err := c.tokens.AppToken(ctx, c.scope)
	if err != nil {
		return false, fmt.Errorf("%s: %w", operation, err)
	}

	u := c.endpoint + "/" + apiPath
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}

	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return false, fmt.Errorf("%s: encoding body: %w", operation, err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, payload)
	if err != nil {
		return false, fmt.Errorf("%s: creating request: %w", operation, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%s: %w", operation, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("%s: reading response: %w", operation, err)
	}

	if c.observe != nil {
		c.observe(operation, resp.StatusCode, time.Since(start))
	}
	c.log.Debug().
		Str("operation", operation).
		Str("method", method).
		Int("status", resp.StatusCode).
		Msg("token service call")

	if resp.StatusCode == http.StatusNotFound && notFoundOK {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, &connector.ProtocolError{Operation: operation, Status: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return false, fmt.Errorf("%s: parsing response: %w", operation, err)
		}
	}
	return true, nil
}
