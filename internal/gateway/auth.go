package gateway

import (
	"github.com/soyeahso/botway/internal/auth"
	"github.com/soyeahso/botway/internal/config"
)

// ResolveAuthenticator builds the inbound request authenticator from
// config. Unknown modes fall back to static token when one is set,
// otherwise everything is allowed.
func ResolveAuthenticator(cfg config.AuthConfig) auth.RequestAuthenticator {
	switch cfg.Mode {
	case "jwt":
		return &auth.JWTAuthenticator{
			Secret:   []byte(cfg.JWT.Secret),
			Issuer:   cfg.JWT.Issuer,
			Audience: cfg.JWT.Audience,
		}
	case "static":
		return &auth.StaticToken{Token: cfg.Token}
	case "none":
		return auth.AllowAll{}
	default:
		if cfg.Token != "" {
			return &auth.StaticToken{Token: cfg.Token}
		}
		return auth.AllowAll{}
	}
}
