package connector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/botway/internal/logging"
	"github.com/soyeahso/botway/internal/schema"
)

// recordingProvider tracks which token mode the client asked for.
type recordingProvider struct {
	appCalls       int
	delegatedCalls int
	appID, userID  string
}

func (p *recordingProvider) AppToken(ctx context.Context, scope string) (string, error) {
	p.appCalls++
	return "app-token", nil
}

func (p *recordingProvider) DelegatedToken(ctx context.Context, scope, agentAppID, agentUserID string) (string, error) {
	p.delegatedCalls++
	p.appID = agentAppID
	p.userID = agentUserID
	return "delegated-token", nil
}

func testLogger() *logging.Logger {
	return logging.New(nil, "silent")
}

func inboundActivity(t *testing.T, serviceURL string) *schema.Activity {
	t.Helper()
	a, err := schema.ParseActivity([]byte(`{
		"type": "message",
		"id": "act-1",
		"serviceUrl": "` + serviceURL + `",
		"from": {"id": "user-1"},
		"conversation": {"id": "conv-1"}
	}`))
	require.NoError(t, err)
	return a
}

func TestSendActivityPathAndAuth(t *testing.T) {
	var gotPath, gotAuth, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotMethod = r.Method
		w.Write([]byte(`{"id": "sent-1"}`))
	}))
	defer srv.Close()

	activity := inboundActivity(t, srv.URL)
	provider := &recordingProvider{}
	c := New(activity, DefaultScope, provider, testLogger())

	resp, err := c.SendActivity(context.Background(), activity.CreateReply("hi"))
	require.NoError(t, err)
	assert.Equal(t, "sent-1", resp.ID)
	assert.Equal(t, "/v3/conversations/conv-1/activities", gotPath)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "Bearer app-token", gotAuth)
	assert.Equal(t, 1, provider.appCalls)
	assert.Equal(t, 0, provider.delegatedCalls)
}

func TestDelegatedAuthSelection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	a, err := schema.ParseActivity([]byte(`{
		"type": "message",
		"serviceUrl": "` + srv.URL + `",
		"from": {"id": "u1", "agenticAppId": "agent-app", "agenticUserId": "agent-user"},
		"conversation": {"id": "conv-1"}
	}`))
	require.NoError(t, err)

	provider := &recordingProvider{}
	c := New(a, "api://custom/.default", provider, testLogger())

	_, err = c.SendActivity(context.Background(), a.CreateReply("hi"))
	require.NoError(t, err)
	assert.Equal(t, 1, provider.delegatedCalls)
	assert.Equal(t, 0, provider.appCalls)
	assert.Equal(t, "agent-app", provider.appID)
	assert.Equal(t, "agent-user", provider.userID)
}

func TestDefaultScopeNeverDelegates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	// Sender carries agentic identifiers, but the scope is the default
	// connector scope, so the app-only path wins.
	a, err := schema.ParseActivity([]byte(`{
		"type": "message",
		"serviceUrl": "` + srv.URL + `",
		"from": {"id": "u1", "agenticAppId": "agent-app", "agenticUserId": "agent-user"},
		"conversation": {"id": "conv-1"}
	}`))
	require.NoError(t, err)

	provider := &recordingProvider{}
	c := New(a, DefaultScope, provider, testLogger())

	_, err = c.SendActivity(context.Background(), a.CreateReply("hi"))
	require.NoError(t, err)
	assert.Equal(t, 1, provider.appCalls)
	assert.Equal(t, 0, provider.delegatedCalls)
}

func TestPartialAgenticIdentityFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	a, err := schema.ParseActivity([]byte(`{
		"type": "message",
		"serviceUrl": "` + srv.URL + `",
		"from": {"id": "u1", "agenticAppId": "agent-app"},
		"conversation": {"id": "conv-1"}
	}`))
	require.NoError(t, err)

	provider := &recordingProvider{}
	c := New(a, "api://custom/.default", provider, testLogger())

	_, err = c.SendActivity(context.Background(), a.CreateReply("hi"))
	require.NoError(t, err)
	assert.Equal(t, 1, provider.appCalls)
	assert.Equal(t, 0, provider.delegatedCalls)
}

func TestReplyToActivityPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"id": "r1"}`))
	}))
	defer srv.Close()

	activity := inboundActivity(t, srv.URL)
	c := New(activity, DefaultScope, &recordingProvider{}, testLogger())

	reply := activity.CreateReply("pong")
	_, err := c.ReplyToActivity(context.Background(), reply)
	require.NoError(t, err)
	assert.Equal(t, "/v3/conversations/conv-1/activities/act-1", gotPath)
}

func TestUpdateAndDeleteActivity(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	activity := inboundActivity(t, srv.URL)
	c := New(activity, DefaultScope, &recordingProvider{}, testLogger())

	updated := activity.CreateReply("edited")
	updated.ID = schema.String("sent-9")
	resp, err := c.UpdateActivity(context.Background(), updated)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/v3/conversations/conv-1/activities/sent-9", gotPath)
	// Empty 200 body leaves the DTO zero-valued.
	assert.Equal(t, "", resp.ID)

	require.NoError(t, c.DeleteActivity(context.Background(), "conv-1", "sent-9"))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/v3/conversations/conv-1/activities/sent-9", gotPath)
}

func TestGetPagedMembersQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"continuationToken": "next", "members": [{"id": "u1"}]}`))
	}))
	defer srv.Close()

	activity := inboundActivity(t, srv.URL)
	c := New(activity, DefaultScope, &recordingProvider{}, testLogger())

	page, err := c.GetPagedMembers(context.Background(), "conv-1", 25, "tok")
	require.NoError(t, err)
	assert.Equal(t, "continuationToken=tok&pageSize=25", gotQuery)
	assert.Equal(t, "next", page.ContinuationToken)
	require.Len(t, page.Members, 1)

	// No options, no query string.
	_, err = c.GetPagedMembers(context.Background(), "conv-1", 0, "")
	require.NoError(t, err)
	assert.Equal(t, "", gotQuery)
}

func TestProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": "nope"}`))
	}))
	defer srv.Close()

	activity := inboundActivity(t, srv.URL)
	c := New(activity, DefaultScope, &recordingProvider{}, testLogger())

	_, err := c.SendActivity(context.Background(), activity.CreateReply("hi"))
	require.Error(t, err)

	var protoErr *ProtocolError
	require.True(t, errors.As(err, &protoErr))
	assert.Equal(t, http.StatusForbidden, protoErr.Status)
	assert.Equal(t, "send activity", protoErr.Operation)
	assert.Contains(t, protoErr.Body, "nope")
}

func TestMissingServiceURL(t *testing.T) {
	a, err := schema.ParseActivity([]byte(`{"type": "message", "conversation": {"id": "c1"}}`))
	require.NoError(t, err)

	c := New(a, DefaultScope, &recordingProvider{}, testLogger())
	_, err = c.SendActivity(context.Background(), a.CreateReply("hi"))
	assert.Error(t, err)
}

func TestPathEscaping(t *testing.T) {
	var gotEscaped string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEscaped = r.URL.EscapedPath()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	activity := inboundActivity(t, srv.URL)
	c := New(activity, DefaultScope, &recordingProvider{}, testLogger())

	require.NoError(t, c.DeleteActivity(context.Background(), "19:abc@thread/tacv2", "act 1"))
	assert.Equal(t, "/v3/conversations/19:abc@thread%2Ftacv2/activities/act%201", gotEscaped)
}

func TestObserver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var seenOp string
	var seenStatus int
	activity := inboundActivity(t, srv.URL)
	c := New(activity, DefaultScope, &recordingProvider{}, testLogger(),
		WithObserver(func(operation string, status int, _ time.Duration) {
			seenOp = operation
			seenStatus = status
		}))

	require.NoError(t, c.DeleteActivity(context.Background(), "conv-1", "a1"))
	assert.Equal(t, "delete activity", seenOp)
	assert.Equal(t, http.StatusOK, seenStatus)
}
