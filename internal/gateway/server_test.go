package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/botway/internal/auth"
	"github.com/soyeahso/botway/internal/config"
	"github.com/soyeahso/botway/internal/connector"
	"github.com/soyeahso/botway/internal/dispatch"
	"github.com/soyeahso/botway/internal/logging"
	"github.com/soyeahso/botway/internal/metrics"
	"github.com/soyeahso/botway/internal/schema"
	"github.com/soyeahso/botway/internal/store"
	"github.com/soyeahso/botway/internal/usertoken"
)

func testLogger() *logging.Logger {
	return logging.New(nil, "silent")
}

func testRuntime(authenticator auth.RequestAuthenticator, handlers dispatch.Handlers, opts ...dispatch.Option) *dispatch.Runtime {
	provider := &auth.StaticTokenProvider{Token: "t"}
	log := testLogger()
	conversations := func(activity *schema.Activity) *connector.Client {
		return connector.New(activity, connector.DefaultScope, provider, log)
	}
	userTokens := func() *usertoken.Client {
		return usertoken.New(provider, log)
	}
	return dispatch.New(handlers, authenticator, conversations, userTokens, log, opts...)
}

func testServer(t *testing.T, authenticator auth.RequestAuthenticator, handlers dispatch.Handlers, opts ...ServerOption) *httptest.Server {
	t.Helper()
	return testServerWithConfig(t, config.Defaults(), authenticator, handlers, opts...)
}

func testServerWithConfig(t *testing.T, cfg config.Config, authenticator auth.RequestAuthenticator, handlers dispatch.Handlers, opts ...ServerOption) *httptest.Server {
	t.Helper()
	rt := testRuntime(authenticator, handlers)
	s := New(cfg, rt, testLogger(), opts...)
	srv := httptest.NewServer(withMiddleware(s.routes(), testLogger(), nil))
	t.Cleanup(srv.Close)
	return srv
}

// staticAuthConfig is a config whose resolved authenticator requires
// the given bearer token on every guarded endpoint.
func staticAuthConfig(token string) config.Config {
	cfg := config.Defaults()
	cfg.Auth.Mode = "static"
	cfg.Auth.Token = token
	return cfg
}

func postActivity(t *testing.T, srv *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/messages", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestActivityEndpointSuccess(t *testing.T) {
	srv := testServer(t, auth.AllowAll{}, dispatch.Handlers{})

	resp := postActivity(t, srv, `{"type": "message", "text": "hi"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "processed activity: message", string(body))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestActivityEndpointMalformedBody(t *testing.T) {
	srv := testServer(t, auth.AllowAll{}, dispatch.Handlers{})

	resp := postActivity(t, srv, `{"text": "no type"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestActivityEndpointUnauthorized(t *testing.T) {
	srv := testServer(t, &auth.StaticToken{Token: "sekrit"}, dispatch.Handlers{})

	resp := postActivity(t, srv, `{"type": "message"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestActivityEndpointAuthorized(t *testing.T) {
	srv := testServer(t, &auth.StaticToken{Token: "sekrit"}, dispatch.Handlers{})

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/messages", strings.NewReader(`{"type": "message"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer sekrit")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestActivityEndpointHandlerFailure(t *testing.T) {
	srv := testServer(t, auth.AllowAll{}, dispatch.Handlers{
		OnMessage: func(ctx context.Context, turn *dispatch.TurnContext) error {
			// A connector call against a dead endpoint fails.
			_, err := turn.Reply(ctx, "echo")
			return err
		},
	})

	resp := postActivity(t, srv, `{"type": "message", "serviceUrl": "http://127.0.0.1:1", "conversation": {"id": "c1"}}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestActivityEndpointMethodNotAllowed(t *testing.T) {
	srv := testServer(t, auth.AllowAll{}, dispatch.Handlers{})

	resp, err := http.Get(srv.URL + "/api/messages")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t, auth.AllowAll{}, dispatch.Handlers{})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t, auth.AllowAll{}, dispatch.Handlers{}, WithMetrics(metrics.NewMetrics()))

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpointDisabled(t *testing.T) {
	srv := testServer(t, auth.AllowAll{}, dispatch.Handlers{})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTapBroadcast(t *testing.T) {
	hub := NewTapHub(testLogger())
	srv := testServer(t, auth.AllowAll{}, dispatch.Handlers{}, WithTap(hub))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/tap"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Wait for registration before publishing.
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	hub.Record(context.Background(), "in", "message", "a1", "c1", []byte(`{"type":"message"}`))

	var ev TapEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "in", ev.Direction)
	assert.Equal(t, "message", ev.Type)
	assert.Equal(t, "a1", ev.ActivityID)
	assert.Equal(t, "c1", ev.ConversationID)
}

func TestTapUpgradeBehindMetricsMiddleware(t *testing.T) {
	hub := NewTapHub(testLogger())
	m := metrics.NewMetrics()
	rt := testRuntime(auth.AllowAll{}, dispatch.Handlers{})
	s := New(config.Defaults(), rt, testLogger(), WithTap(hub), WithMetrics(m))
	srv := httptest.NewServer(withMiddleware(s.routes(), testLogger(), m))
	t.Cleanup(srv.Close)

	// The full middleware chain must still allow the connection
	// handoff the upgrade needs.
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/tap"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	conn.Close()
}

func TestTapRequiresAuth(t *testing.T) {
	hub := NewTapHub(testLogger())
	srv := testServerWithConfig(t, staticAuthConfig("sekrit"), &auth.StaticToken{Token: "sekrit"}, dispatch.Handlers{}, WithTap(hub))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/tap"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer sekrit")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, hdr)
	require.NoError(t, err)
	conn.Close()
}

func TestTraceRequiresAuth(t *testing.T) {
	db, err := store.Open(":memory:", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	srv := testServerWithConfig(t, staticAuthConfig("sekrit"), &auth.StaticToken{Token: "sekrit"}, dispatch.Handlers{}, WithTraceStore(store.NewTraceStore(db)))

	resp, err := http.Get(srv.URL + "/api/trace")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/trace", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer sekrit")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestResolveBindAddr(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.ServerConfig
		want string
	}{
		{"loopback", config.ServerConfig{Bind: "loopback", Port: 3978}, "127.0.0.1:3978"},
		{"lan", config.ServerConfig{Bind: "lan", Port: 3978}, "0.0.0.0:3978"},
		{"auto", config.ServerConfig{Bind: "auto", Port: 80}, "0.0.0.0:80"},
		{"custom", config.ServerConfig{Bind: "custom", CustomBindHost: "10.0.0.5", Port: 9000}, "10.0.0.5:9000"},
		{"custom without host", config.ServerConfig{Bind: "custom", Port: 9000}, "0.0.0.0:9000"},
		{"unknown falls back to loopback", config.ServerConfig{Bind: "bogus", Port: 1}, "127.0.0.1:1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveBindAddr(tt.cfg))
		})
	}
}

func TestResolveAuthenticator(t *testing.T) {
	assert.IsType(t, auth.AllowAll{}, ResolveAuthenticator(config.AuthConfig{Mode: "none"}))
	assert.IsType(t, &auth.StaticToken{}, ResolveAuthenticator(config.AuthConfig{Mode: "static", Token: "t"}))
	assert.IsType(t, &auth.JWTAuthenticator{}, ResolveAuthenticator(config.AuthConfig{Mode: "jwt", JWT: config.JWTAuthConfig{Secret: "s"}}))
	assert.IsType(t, auth.AllowAll{}, ResolveAuthenticator(config.AuthConfig{}))
}
