// ABOUTME: Configuration loading and parsing for bridge-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete bridge-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds inbound server configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	// BaseURL is the externally visible URL used in discovery documents
	// and re-authentication hints. Auto-derived from http_addr if empty.
	BaseURL string `yaml:"base_url"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Hostname  string `yaml:"hostname"`
	AuthKey   string `yaml:"auth_key"`
	StateDir  string `yaml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral"`
	HTTPS     bool   `yaml:"https"`  // Serve TLS with Tailscale certs on :443
	Funnel    bool   `yaml:"funnel"` // Enable public Funnel (implies HTTPS)
}

// UpstreamConfig holds the LangGraph agent runner connection settings
type UpstreamConfig struct {
	BaseURL           string `yaml:"base_url"`
	AssistantID       string `yaml:"assistant_id"`        // default assistant for invocations
	HealthAssistantID string `yaml:"health_assistant_id"` // assistant used for health diagnostics

	InvokeTimeout time.Duration `yaml:"-"`
	StreamTimeout time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	InvokeTimeoutRaw string `yaml:"invoke_timeout"`
	StreamTimeoutRaw string `yaml:"stream_timeout"`
}

// DatabaseConfig holds the issued-token database configuration.
// When path is empty, tokens live in memory and are lost on restart.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ClientCredential is a statically configured OAuth client for the
// client-credentials grant. Secret may be a bcrypt hash ($2...) or plaintext.
type ClientCredential struct {
	ID     string `yaml:"id"`
	Secret string `yaml:"secret"`
	Scope  string `yaml:"scope"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	Enabled bool `yaml:"enabled"`

	// APIKeys is a comma-separated list of static opaque keys.
	APIKeys string `yaml:"api_keys"`

	// JWTSecret enables HS256 issued tokens when set. Without it the
	// token endpoint issues opaque random tokens.
	JWTSecret string `yaml:"jwt_secret"`

	// Clients accepted by the /oauth/token endpoint.
	Clients []ClientCredential `yaml:"clients"`

	// External introspection endpoint and its client-credential basic auth.
	IntrospectURL          string `yaml:"introspect_url"`
	IntrospectClientID     string `yaml:"introspect_client_id"`
	IntrospectClientSecret string `yaml:"introspect_client_secret"`

	// AuthorizeURL, when set, is included in 401 bodies as a
	// re-authentication hint for interactive callers.
	AuthorizeURL string `yaml:"authorize_url"`

	TokenTTL time.Duration `yaml:"-"`

	TokenTTLRaw string `yaml:"token_ttl"`
}

// APIKeySet returns the configured API keys as a set, trimming whitespace
// and dropping empty entries.
func (a *AuthConfig) APIKeySet() map[string]struct{} {
	keys := make(map[string]struct{})
	for _, k := range strings.Split(a.APIKeys, ",") {
		k = strings.TrimSpace(k)
		if k != "" {
			keys[k] = struct{}{}
		}
	}
	return keys
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults applied when the config file leaves fields unset.
const (
	DefaultUpstreamBaseURL = "http://localhost:2024"
	DefaultAssistantID     = "agent"
	DefaultHealthAssistant = "health"
	DefaultTokenTTL        = time.Hour
	DefaultInvokeTimeout   = 120 * time.Second
	DefaultStreamTimeout   = 30 * time.Second
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = DefaultUpstreamBaseURL
	}
	c.Upstream.BaseURL = strings.TrimSuffix(c.Upstream.BaseURL, "/")
	if c.Upstream.AssistantID == "" {
		c.Upstream.AssistantID = DefaultAssistantID
	}
	if c.Upstream.HealthAssistantID == "" {
		c.Upstream.HealthAssistantID = DefaultHealthAssistant
	}
	if c.Upstream.InvokeTimeout == 0 {
		c.Upstream.InvokeTimeout = DefaultInvokeTimeout
	}
	if c.Upstream.StreamTimeout == 0 {
		c.Upstream.StreamTimeout = DefaultStreamTimeout
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = DefaultTokenTTL
	}
	if c.Server.BaseURL == "" && c.Server.HTTPAddr != "" {
		c.Server.BaseURL = "http://" + strings.TrimPrefix(c.Server.HTTPAddr, "0.0.0.0")
	}
	c.Server.BaseURL = strings.TrimSuffix(c.Server.BaseURL, "/")
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// A listen address is required unless Tailscale provides the listener
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Auth.IntrospectURL != "" && c.Auth.IntrospectClientID == "" {
		return fmt.Errorf("auth.introspect_client_id is required when auth.introspect_url is set")
	}

	for i, client := range c.Auth.Clients {
		if client.ID == "" || client.Secret == "" {
			return fmt.Errorf("auth.clients[%d]: id and secret are required", i)
		}
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Upstream.InvokeTimeoutRaw != "" {
		cfg.Upstream.InvokeTimeout, err = time.ParseDuration(cfg.Upstream.InvokeTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing invoke_timeout %q: %w", cfg.Upstream.InvokeTimeoutRaw, err)
		}
	}

	if cfg.Upstream.StreamTimeoutRaw != "" {
		cfg.Upstream.StreamTimeout, err = time.ParseDuration(cfg.Upstream.StreamTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing stream_timeout %q: %w", cfg.Upstream.StreamTimeoutRaw, err)
		}
	}

	if cfg.Auth.TokenTTLRaw != "" {
		cfg.Auth.TokenTTL, err = time.ParseDuration(cfg.Auth.TokenTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing token_ttl %q: %w", cfg.Auth.TokenTTLRaw, err)
		}
	}

	return nil
}
