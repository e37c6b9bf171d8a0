package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/botway/internal/logging"
)

func testCredentials(t *testing.T, handler http.HandlerFunc) (*Credentials, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := CredentialsConfig{
		TenantID:     "tenant",
		ClientID:     "app-id",
		ClientSecret: "app-secret",
		Authority:    srv.URL,
	}
	return NewCredentials(cfg, srv.Client(), logging.New(nil, "silent")), srv
}

func TestTokenURL(t *testing.T) {
	creds := NewCredentials(CredentialsConfig{TenantID: "tid", Authority: "https://login.example.com/"}, nil, logging.New(nil, "silent"))
	assert.Equal(t, "https://login.example.com/tid/oauth2/v2.0/token", creds.tokenURL())

	creds = NewCredentials(CredentialsConfig{TenantID: "tid"}, nil, logging.New(nil, "silent"))
	assert.Equal(t, DefaultAuthority+"/tid/oauth2/v2.0/token", creds.tokenURL())
}

func TestAppTokenCaching(t *testing.T) {
	var calls atomic.Int64
	creds, _ := testCredentials(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/tenant/oauth2/v2.0/token", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"app-token","token_type":"Bearer","expires_in":3600}`))
	})

	tok, err := creds.AppToken(context.Background(), "https://api.example.com/.default")
	require.NoError(t, err)
	assert.Equal(t, "app-token", tok)

	// second call for the same scope must hit the cache
	tok, err = creds.AppToken(context.Background(), "https://api.example.com/.default")
	require.NoError(t, err)
	assert.Equal(t, "app-token", tok)
	assert.Equal(t, int64(1), calls.Load())

	// a different scope is a separate cache entry
	_, err = creds.AppToken(context.Background(), "https://other.example.com/.default")
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestAppTokenError(t *testing.T) {
	creds, _ := testCredentials(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	})

	_, err := creds.AppToken(context.Background(), "https://api.example.com/.default")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acquiring app token")
}

func TestDelegatedToken(t *testing.T) {
	var sawUserID atomic.Value
	creds, _ := testCredentials(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.PostForm.Get("grant_type") == "user_fic":
			assert.Equal(t, "agent-app", r.PostForm.Get("client_id"))
			assert.Equal(t, "agent-assertion", r.PostForm.Get("user_federated_identity_credential"))
			assert.Equal(t, "https://graph.example.com/.default", r.PostForm.Get("scope"))
			sawUserID.Store(r.PostForm.Get("user_id"))
			w.Write([]byte(`{"access_token":"delegated-token","token_type":"Bearer","expires_in":600}`))
		case r.PostForm.Get("client_assertion") != "":
			assert.Equal(t, "exchange-token", r.PostForm.Get("client_assertion"))
			w.Write([]byte(`{"access_token":"agent-assertion","token_type":"Bearer","expires_in":600}`))
		default:
			// initial client-credentials leg for the exchange scope
			w.Write([]byte(`{"access_token":"exchange-token","token_type":"Bearer","expires_in":3600}`))
		}
	})

	tok, err := creds.DelegatedToken(context.Background(), "https://graph.example.com/.default", "agent-app", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "delegated-token", tok)
	assert.Equal(t, "user-1", sawUserID.Load())
}

func TestDelegatedTokenLegFailure(t *testing.T) {
	creds, _ := testCredentials(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("client_assertion") != "" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"exchange-token","token_type":"Bearer","expires_in":3600}`))
	})

	_, err := creds.DelegatedToken(context.Background(), "https://graph.example.com/.default", "agent-app", "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent identity assertion")
}
