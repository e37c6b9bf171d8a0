package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "server.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Server.Port),
		})
	}

	validBinds := []string{"auto", "lan", "loopback", "custom"}
	if cfg.Server.Bind != "" && !slices.Contains(validBinds, cfg.Server.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "server.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Server.Bind),
		})
	}

	if cfg.Server.Bind == "custom" && cfg.Server.CustomBindHost == "" {
		issues = append(issues, ValidationIssue{
			Path:    "server.customBindHost",
			Message: "required when bind is custom",
		})
	}

	if cfg.Server.Path != "" && !strings.HasPrefix(cfg.Server.Path, "/") {
		issues = append(issues, ValidationIssue{
			Path:    "server.path",
			Message: fmt.Sprintf("must start with /, got %q", cfg.Server.Path),
		})
	}

	if cfg.Server.TLS.Enabled {
		if cfg.Server.TLS.CertPath == "" {
			issues = append(issues, ValidationIssue{
				Path:    "server.tls.certPath",
				Message: "required when TLS is enabled",
			})
		}
		if cfg.Server.TLS.KeyPath == "" {
			issues = append(issues, ValidationIssue{
				Path:    "server.tls.keyPath",
				Message: "required when TLS is enabled",
			})
		}
	}

	validAuthModes := []string{"none", "static", "jwt"}
	if cfg.Auth.Mode != "" && !slices.Contains(validAuthModes, cfg.Auth.Mode) {
		issues = append(issues, ValidationIssue{
			Path:    "auth.mode",
			Message: fmt.Sprintf("must be one of %v, got %q", validAuthModes, cfg.Auth.Mode),
		})
	}
	if cfg.Auth.Mode == "static" && cfg.Auth.Token == "" {
		issues = append(issues, ValidationIssue{
			Path:    "auth.token",
			Message: "required when auth.mode is static",
		})
	}
	if cfg.Auth.Mode == "jwt" && cfg.Auth.JWT.Secret == "" {
		issues = append(issues, ValidationIssue{
			Path:    "auth.jwt.secret",
			Message: "required when auth.mode is jwt",
		})
	}

	// Outbound credentials are all-or-nothing. Leaving all three empty
	// is valid for anonymous local development.
	hasAny := cfg.Azure.TenantID != "" || cfg.Azure.ClientID != "" || cfg.Azure.ClientSecret != ""
	hasAll := cfg.Azure.TenantID != "" && cfg.Azure.ClientID != "" && cfg.Azure.ClientSecret != ""
	if hasAny && !hasAll {
		issues = append(issues, ValidationIssue{
			Path:    "azure",
			Message: "tenantId, clientId and clientSecret must be set together",
		})
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	validStyles := []string{"pretty", "json"}
	if cfg.Logging.Style != "" && !slices.Contains(validStyles, cfg.Logging.Style) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.style",
			Message: fmt.Sprintf("must be one of %v, got %q", validStyles, cfg.Logging.Style),
		})
	}

	return issues
}
