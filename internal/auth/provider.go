// Package auth covers both directions of credential handling: acquiring
// bearer tokens for outbound protocol calls, and validating the bearer
// token on inbound webhook requests.
package auth

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned by request authenticators when the inbound
// credential is missing or invalid.
var ErrUnauthorized = errors.New("unauthorized")

// TokenProvider acquires bearer tokens for outbound calls. AppToken uses
// the application's own identity (client credentials); DelegatedToken is
// bound to a named agent-user identity and is selected by the connector
// client when the originating activity carries one.
type TokenProvider interface {
	AppToken(ctx context.Context, scope string) (string, error)
	DelegatedToken(ctx context.Context, scope, agentAppID, agentUserID string) (string, error)
}

// StaticTokenProvider returns a fixed token for every request. Useful in
// tests and against local emulators that skip token validation.
type StaticTokenProvider struct {
	Token string
}

// AppToken returns the fixed token.
func (s *StaticTokenProvider) AppToken(ctx context.Context, scope string) (string, error) {
	return s.Token, nil
}

// DelegatedToken returns the fixed token.
func (s *StaticTokenProvider) DelegatedToken(ctx context.Context, scope, agentAppID, agentUserID string) (string, error) {
	return s.Token, nil
}
