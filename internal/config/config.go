package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 3978,
			Bind: "loopback",
			Path: "/api/messages",
		},
		Auth: AuthConfig{
			Mode: "none",
		},
		Azure: AzureConfig{
			Authority: "https://login.microsoftonline.com",
			Scope:     "https://api.botframework.com/.default",
		},
		UserToken: UserTokenConfig{
			Endpoint: "https://token.botframework.com",
			Scope:    "https://api.botframework.com/.default",
		},
		Logging: LoggingConfig{
			Level: "info",
			Style: "pretty",
		},
	}
}
