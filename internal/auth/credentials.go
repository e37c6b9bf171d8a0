package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/soyeahso/botway/internal/logging"
)

// DefaultAuthority is the token issuer used when none is configured.
const DefaultAuthority = "https://login.microsoftonline.com"

// exchangeScope is the intermediate scope used to mint the assertions
// that carry the delegated (agent-user) token flow.
const exchangeScope = "api://AzureADTokenExchange/.default"

const clientAssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// CredentialsConfig holds the identity configuration for token acquisition.
type CredentialsConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	Authority    string // defaults to DefaultAuthority
}

// Credentials implements TokenProvider against the tenant's OAuth2 token
// endpoint. App-only tokens use the client-credentials grant; delegated
// tokens run the federated user_fic exchange on behalf of an agent user.
// Tokens are cached per scope until shortly before expiry.
type Credentials struct {
	cfg        CredentialsConfig
	httpClient *http.Client
	log        *logging.Logger

	mu    sync.Mutex
	cache map[string]*oauth2.Token // app-only tokens keyed by scope
}

// NewCredentials creates a Credentials provider. A nil httpClient gets a
// default with a 30s timeout.
func NewCredentials(cfg CredentialsConfig, httpClient *http.Client, log *logging.Logger) *Credentials {
	if cfg.Authority == "" {
		cfg.Authority = DefaultAuthority
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Credentials{
		cfg:        cfg,
		httpClient: httpClient,
		log:        log.Sub("credentials"),
		cache:      make(map[string]*oauth2.Token),
	}
}

func (c *Credentials) tokenURL() string {
	return fmt.Sprintf("%s/%s/oauth2/v2.0/token", strings.TrimRight(c.cfg.Authority, "/"), c.cfg.TenantID)
}

// AppToken acquires (or returns a cached) client-credential token for
// the given scope.
func (c *Credentials) AppToken(ctx context.Context, scope string) (string, error) {
	c.mu.Lock()
	if tok, ok := c.cache[scope]; ok && tok.Valid() {
		c.mu.Unlock()
		return tok.AccessToken, nil
	}
	c.mu.Unlock()

	conf := &clientcredentials.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		TokenURL:     c.tokenURL(),
		Scopes:       []string{scope},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := conf.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("acquiring app token for %s: %w", scope, err)
	}

	c.mu.Lock()
	c.cache[scope] = tok
	c.mu.Unlock()

	c.log.Debug().Str("scope", scope).Time("expiry", tok.Expiry).Msg("app token acquired")
	return tok.AccessToken, nil
}

// DelegatedToken acquires a token bound to the agent-user identity named
// by the originating activity. Three legs: a client-credential assertion
// for the exchange scope, an agent-identity assertion minted with it, and
// finally the user_fic grant carrying the agent user id.
func (c *Credentials) DelegatedToken(ctx context.Context, scope, agentAppID, agentUserID string) (string, error) {
	appAssertion, err := c.AppToken(ctx, exchangeScope)
	if err != nil {
		return "", err
	}

	agentAssertion, err := c.requestToken(ctx, url.Values{
		"client_id":             {agentAppID},
		"client_assertion":      {appAssertion},
		"client_assertion_type": {clientAssertionType},
		"grant_type":            {"client_credentials"},
		"scope":                 {exchangeScope},
	})
	if err != nil {
		return "", fmt.Errorf("acquiring agent identity assertion: %w", err)
	}

	userToken, err := c.requestToken(ctx, url.Values{
		"client_id":                          {agentAppID},
		"client_assertion":                   {appAssertion},
		"client_assertion_type":              {clientAssertionType},
		"grant_type":                         {"user_fic"},
		"user_federated_identity_credential": {agentAssertion},
		"user_id":                            {agentUserID},
		"scope":                              {scope},
	})
	if err != nil {
		return "", fmt.Errorf("acquiring delegated token for user %s: %w", agentUserID, err)
	}

	c.log.Debug().Str("scope", scope).Str("agentUserId", agentUserID).Msg("delegated token acquired")
	return userToken, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// requestToken posts a form to the tenant token endpoint and returns the
// access token.
func (c *Credentials) requestToken(ctx context.Context, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("parsing token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned no access_token")
	}
	return tr.AccessToken, nil
}
