package config

// Config is the root configuration for Botway.
type Config struct {
	Server    ServerConfig    `yaml:"server,omitempty"`
	Auth      AuthConfig      `yaml:"auth,omitempty"`
	Azure     AzureConfig     `yaml:"azure,omitempty"`
	UserToken UserTokenConfig `yaml:"userToken,omitempty"`
	Trace     TraceConfig     `yaml:"trace,omitempty"`
	Metrics   MetricsConfig   `yaml:"metrics,omitempty"`
	Tap       TapConfig       `yaml:"tap,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
}

// ServerConfig controls the webhook HTTP server.
type ServerConfig struct {
	Port           int       `yaml:"port,omitempty"`
	Bind           string    `yaml:"bind,omitempty"` // "auto" | "lan" | "loopback" | "custom"
	CustomBindHost string    `yaml:"customBindHost,omitempty"`
	Path           string    `yaml:"path,omitempty"` // inbound activity endpoint path
	TLS            ServerTLS `yaml:"tls,omitempty"`
}

// ServerTLS configures TLS for the webhook server.
type ServerTLS struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty"`
}

// AuthConfig configures inbound request authentication.
type AuthConfig struct {
	Mode  string        `yaml:"mode,omitempty"` // "none" | "static" | "jwt"
	Token string        `yaml:"token,omitempty"`
	JWT   JWTAuthConfig `yaml:"jwt,omitempty"`
}

// JWTAuthConfig configures JWT validation of inbound requests.
type JWTAuthConfig struct {
	Secret   string `yaml:"secret,omitempty"`
	Issuer   string `yaml:"issuer,omitempty"`
	Audience string `yaml:"audience,omitempty"`
}

// AzureConfig holds the Entra application identity used for outbound
// service calls.
type AzureConfig struct {
	TenantID     string `yaml:"tenantId,omitempty"`
	ClientID     string `yaml:"clientId,omitempty"`
	ClientSecret string `yaml:"clientSecret,omitempty"`
	Authority    string `yaml:"authority,omitempty"`
	Scope        string `yaml:"scope,omitempty"`
}

// UserTokenConfig configures the user token service client.
type UserTokenConfig struct {
	Endpoint       string `yaml:"endpoint,omitempty"`
	Scope          string `yaml:"scope,omitempty"`
	ConnectionName string `yaml:"connectionName,omitempty"`
}

// TraceConfig controls the SQLite activity log.
type TraceConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"` // defaults to <base>/data/trace.db
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`
}

// TapConfig controls the WebSocket activity tap.
type TapConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	Style string `yaml:"style,omitempty"` // "pretty" | "json"
}
