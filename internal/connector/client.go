// Package connector implements the outbound conversation protocol: the
// REST surface rooted at an activity's serviceUrl that sends, replies to,
// updates, and deletes activities and queries conversation membership.
package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/soyeahso/botway/internal/auth"
	"github.com/soyeahso/botway/internal/logging"
	"github.com/soyeahso/botway/internal/schema"
)

// DefaultScope is the app-only connector scope. When the configured
// outbound scope equals it, delegated identity selection never applies.
const DefaultScope = "https://api.botframework.com/.default"

// Observer is notified after each connector call, for metrics.
type Observer func(operation string, status int, elapsed time.Duration)

// Client is a conversation-protocol client scoped to one inbound
// request. It is bound to the originating activity so the auth mode
// (app-only vs delegated) can be recomputed from that activity's sender
// on every call.
type Client struct {
	activity   *schema.Activity
	scope      string
	tokens     auth.TokenProvider
	httpClient *http.Client
	log        *logging.Logger
	observe    Observer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithObserver registers a per-call observer.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observe = o }
}

// New creates a connector client bound to the originating activity. An
// empty scope means DefaultScope.
func New(activity *schema.Activity, scope string, tokens auth.TokenProvider, log *logging.Logger, opts ...Option) *Client {
	if scope == "" {
		scope = DefaultScope
	}
	c := &Client{
		activity:   activity,
		scope:      scope,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.Sub("connector"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// bearer selects the auth mode for one call. Delegated identity is used
// only when the scope is not the default connector scope and the
// originating sender carries both agentic identifiers; everything else
// gets an app-only token. Recomputed per call: concurrent requests may
// carry different originating identities.
func (c *Client) bearer(ctx context.Context) (string, error) {
	if c.scope != DefaultScope && c.activity != nil && c.activity.From != nil {
		appID, okApp := c.activity.From.Properties.GetString("agenticAppId")
		userID, okUser := c.activity.From.Properties.GetString("agenticUserId")
		if okApp && okUser {
			return c.tokens.DelegatedToken(ctx, c.scope, appID, userID)
		}
	}
	return c.tokens.AppToken(ctx, c.scope)
}

// baseURL returns the serviceUrl of the bound activity without a
// trailing slash.
func (c *Client) baseURL() (string, error) {
	if c.activity == nil || c.activity.GetServiceURL() == "" {
		return "", fmt.Errorf("activity has no serviceUrl")
	}
	return strings.TrimRight(c.activity.GetServiceURL(), "/"), nil
}

// SendActivity posts an activity to its conversation.
func (c *Client) SendActivity(ctx context.Context, act *schema.Activity) (*schema.ResourceResponse, error) {
	convID := act.ConversationID()
	if convID == "" {
		return nil, fmt.Errorf("activity has no conversation id")
	}
	var out schema.ResourceResponse
	path := fmt.Sprintf("/v3/conversations/%s/activities", url.PathEscape(convID))
	if err := c.do(ctx, "send activity", http.MethodPost, path, act, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReplyToActivity posts a reply threaded to the activity named by the
// reply's replyToId.
func (c *Client) ReplyToActivity(ctx context.Context, act *schema.Activity) (*schema.ResourceResponse, error) {
	convID := act.ConversationID()
	replyTo := deref(act.ReplyToID)
	if convID == "" || replyTo == "" {
		return nil, fmt.Errorf("reply requires conversation id and replyToId")
	}
	var out schema.ResourceResponse
	path := fmt.Sprintf("/v3/conversations/%s/activities/%s", url.PathEscape(convID), url.PathEscape(replyTo))
	if err := c.do(ctx, "reply to activity", http.MethodPost, path, act, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateActivity replaces a previously sent activity.
func (c *Client) UpdateActivity(ctx context.Context, act *schema.Activity) (*schema.ResourceResponse, error) {
	convID := act.ConversationID()
	actID := act.GetID()
	if convID == "" || actID == "" {
		return nil, fmt.Errorf("update requires conversation id and activity id")
	}
	var out schema.ResourceResponse
	path := fmt.Sprintf("/v3/conversations/%s/activities/%s", url.PathEscape(convID), url.PathEscape(actID))
	if err := c.do(ctx, "update activity", http.MethodPut, path, act, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteActivity removes a previously sent activity.
func (c *Client) DeleteActivity(ctx context.Context, conversationID, activityID string) error {
	path := fmt.Sprintf("/v3/conversations/%s/activities/%s", url.PathEscape(conversationID), url.PathEscape(activityID))
	return c.do(ctx, "delete activity", http.MethodDelete, path, nil, nil)
}

// CreateConversation starts a new conversation.
func (c *Client) CreateConversation(ctx context.Context, params *schema.ConversationParameters) (*schema.ConversationResourceResponse, error) {
	var out schema.ConversationResourceResponse
	if err := c.do(ctx, "create conversation", http.MethodPost, "/v3/conversations", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetConversationMembers lists the members of a conversation.
func (c *Client) GetConversationMembers(ctx context.Context, conversationID string) ([]schema.ConversationAccount, error) {
	var out []schema.ConversationAccount
	path := fmt.Sprintf("/v3/conversations/%s/members", url.PathEscape(conversationID))
	if err := c.do(ctx, "get conversation members", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetPagedMembers lists conversation members one page at a time. Zero
// pageSize and empty continuationToken are omitted from the query.
func (c *Client) GetPagedMembers(ctx context.Context, conversationID string, pageSize int, continuationToken string) (*schema.PagedMembersResult, error) {
	q := url.Values{}
	if pageSize > 0 {
		q.Set("pageSize", strconv.Itoa(pageSize))
	}
	if continuationToken != "" {
		q.Set("continuationToken", continuationToken)
	}
	path := fmt.Sprintf("/v3/conversations/%s/pagedmembers", url.PathEscape(conversationID))
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}
	var out schema.PagedMembersResult
	if err := c.do(ctx, "get paged members", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetActivityMembers lists the members addressed by one activity.
func (c *Client) GetActivityMembers(ctx context.Context, conversationID, activityID string) ([]schema.ConversationAccount, error) {
	var out []schema.ConversationAccount
	path := fmt.Sprintf("/v3/conversations/%s/activities/%s/members", url.PathEscape(conversationID), url.PathEscape(activityID))
	if err := c.do(ctx, "get activity members", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UploadAttachment uploads attachment data to a conversation.
func (c *Client) UploadAttachment(ctx context.Context, conversationID string, att *schema.AttachmentData) (*schema.ResourceResponse, error) {
	var out schema.ResourceResponse
	path := fmt.Sprintf("/v3/conversations/%s/attachments", url.PathEscape(conversationID))
	if err := c.do(ctx, "upload attachment", http.MethodPost, path, att, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do performs one connector call: bearer selection, JSON round trip,
// protocol-error mapping. A 2xx with an empty body leaves out untouched
// (zero-valued DTO).
func (c *Client) do(ctx context.Context, operation, method, path string, body, out any) error {
	base, err := c.baseURL()
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}

	token, err := c.bearer(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}

	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encoding body: %w", operation, err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, base+path, payload)
	if err != nil {
		return fmt.Errorf("%s: creating request: %w", operation, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: reading response: %w", operation, err)
	}

	if c.observe != nil {
		c.observe(operation, resp.StatusCode, time.Since(start))
	}
	c.log.Debug().
		Str("operation", operation).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Msg("connector call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ProtocolError{Operation: operation, Status: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("%s: parsing response: %w", operation, err)
		}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
