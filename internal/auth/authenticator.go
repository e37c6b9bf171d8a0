package auth

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// RequestAuthenticator validates the credential on an inbound webhook
// request before any activity is parsed or routed. Implementations are
// interchangeable black boxes to the dispatch runtime.
type RequestAuthenticator interface {
	Authenticate(r *http.Request) error
}

// AllowAll accepts every request. For local development and tests only.
type AllowAll struct{}

// Authenticate always succeeds.
func (AllowAll) Authenticate(r *http.Request) error { return nil }

// StaticToken compares the request's bearer token against a shared
// secret in constant time.
type StaticToken struct {
	Token string
}

// Authenticate checks the Authorization header.
func (s *StaticToken) Authenticate(r *http.Request) error {
	if s.Token == "" {
		return fmt.Errorf("%w: no webhook token configured", ErrUnauthorized)
	}
	got, err := bearerToken(r)
	if err != nil {
		return err
	}
	if !safeEqual(got, s.Token) {
		return fmt.Errorf("%w: token mismatch", ErrUnauthorized)
	}
	return nil
}

// JWTAuthenticator validates HS256-signed bearer tokens with optional
// issuer and audience checks.
type JWTAuthenticator struct {
	Secret   []byte
	Issuer   string
	Audience string
}

// Authenticate parses and validates the bearer JWT.
func (j *JWTAuthenticator) Authenticate(r *http.Request) error {
	raw, err := bearerToken(r)
	if err != nil {
		return err
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if j.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.Issuer))
	}
	if j.Audience != "" {
		opts = append(opts, jwt.WithAudience(j.Audience))
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return j.Secret, nil
	}, opts...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if !token.Valid {
		return fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}
	return nil
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("%w: missing Authorization header", ErrUnauthorized)
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", fmt.Errorf("%w: not a bearer credential", ErrUnauthorized)
	}
	return header[len(prefix):], nil
}

// safeEqual performs a constant-time string comparison to prevent timing
// attacks. Length is compared in constant time as well so secret length
// does not leak.
func safeEqual(a, b string) bool {
	lenMatch := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	cmp := subtle.ConstantTimeCompare([]byte(a), []byte(b))
	return subtle.ConstantTimeSelect(lenMatch, cmp, 0) == 1
}
