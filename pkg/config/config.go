package config

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SSOMode selects how the SSO endpoint authenticates callers.
type SSOMode string

const (
	// SSOModeSession authenticates via the Ghost members session cookie.
	SSOModeSession SSOMode = "session"
	// SSOModeJWT authenticates via a Ghost-issued bearer token.
	SSOModeJWT SSOMode = "jwt"
	// SSOModeObscure authenticates via email and uuid query parameters,
	// for deployments where the publisher and the bridge sit on different
	// origins and the members session cookie never reaches the bridge.
	SSOModeObscure SSOMode = "obscure"
)

// DeleteAction selects what happens to the forum account when a member is
// deleted from Ghost.
type DeleteAction string

const (
	DeleteActionNone      DeleteAction = "none"
	DeleteActionSync      DeleteAction = "sync"
	DeleteActionSuspend   DeleteAction = "suspend"
	DeleteActionAnonymize DeleteAction = "anonymize"
	DeleteActionDelete    DeleteAction = "delete"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Ghost     GhostConfig     `yaml:"ghost"`
	Discourse DiscourseConfig `yaml:"discourse"`
	SSO       SSOConfig       `yaml:"sso"`
	Webhooks  WebhookConfig   `yaml:"webhooks"`
	Sync      SyncConfig      `yaml:"sync"`

	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	BasePath        string        `yaml:"base_path"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// GhostConfig holds the publisher API configuration
type GhostConfig struct {
	URL            string        `yaml:"url"`
	AdminAPIKey    string        `yaml:"admin_api_key"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// DiscourseConfig holds the forum API configuration
type DiscourseConfig struct {
	URL            string        `yaml:"url"`
	SSOSecret      string        `yaml:"sso_secret"`
	APIKey         string        `yaml:"api_key"`
	APIUser        string        `yaml:"api_user"`
	MaxConcurrency int           `yaml:"max_concurrency"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// SSOConfig holds SSO endpoint configuration
type SSOConfig struct {
	Mode SSOMode `yaml:"mode"`
	// NoAuthRedirect overrides where unauthenticated session-mode callers
	// are sent. Defaults to the Ghost portal account page.
	NoAuthRedirect string `yaml:"no_auth_redirect"`
	// JWTIssuer is the expected issuer claim for jwt mode. Defaults to the
	// Ghost URL.
	JWTIssuer string `yaml:"jwt_issuer"`
}

// WebhookConfig holds webhook ingress configuration
type WebhookConfig struct {
	Enabled            bool         `yaml:"enabled"`
	MemberUpdatedRoute string       `yaml:"member_updated_route"`
	MemberDeletedRoute string       `yaml:"member_deleted_route"`
	DeleteAction       DeleteAction `yaml:"delete_action"`
	// Secret signs inbound deliveries; empty disables verification for
	// trusted-network deployments.
	Secret  string `yaml:"secret"`
	Version string `yaml:"version"`
}

// SyncConfig holds member sync configuration
type SyncConfig struct {
	JobDelay time.Duration `yaml:"job_delay"`
	// TiersCron optionally schedules a recurring tier-to-group sync.
	TiersCron string `yaml:"tiers_cron"`
}

// ObservabilityConfig holds logging and metrics settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
}

// LoadConfig loads configuration from the optional YAML file at configPath
// (skipped when empty) and then from environment variables, which take
// precedence.
func LoadConfig(configPath string) (*Config, error) {
	cfg := defaultConfig()

	if configPath != "" {
		raw, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read config file %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("unable to parse config file %s: %w", configPath, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDerivedDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "3286",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Ghost: GhostConfig{
			RequestTimeout: 30 * time.Second,
		},
		Discourse: DiscourseConfig{
			APIUser:        "system",
			MaxConcurrency: 3,
			RequestTimeout: 30 * time.Second,
		},
		SSO: SSOConfig{
			Mode: SSOModeSession,
		},
		Webhooks: WebhookConfig{
			DeleteAction: DeleteActionNone,
			Version:      "2",
		},
		Sync: SyncConfig{
			JobDelay: time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			MetricsEnabled: true,
		},
	}
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnv("DOG_HOST", c.Server.Host)
	c.Server.Port = getEnv("DOG_PORT", c.Server.Port)
	c.Server.BasePath = getEnv("DOG_BASE_PATH", c.Server.BasePath)
	c.Server.ReadTimeout = getEnvDuration("DOG_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("DOG_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvDuration("DOG_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("DOG_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Ghost.URL = getEnv("DOG_GHOST_URL", c.Ghost.URL)
	c.Ghost.AdminAPIKey = getEnv("DOG_GHOST_ADMIN_API_KEY", c.Ghost.AdminAPIKey)
	c.Ghost.RequestTimeout = getEnvDuration("DOG_GHOST_REQUEST_TIMEOUT", c.Ghost.RequestTimeout)

	c.Discourse.URL = getEnv("DOG_DISCOURSE_URL", c.Discourse.URL)
	c.Discourse.SSOSecret = getEnv("DOG_DISCOURSE_SSO_SECRET", c.Discourse.SSOSecret)
	c.Discourse.APIKey = getEnv("DOG_DISCOURSE_API_KEY", c.Discourse.APIKey)
	c.Discourse.APIUser = getEnv("DOG_DISCOURSE_API_USER", c.Discourse.APIUser)
	c.Discourse.MaxConcurrency = getEnvInt("DOG_DISCOURSE_MAX_CONCURRENCY", c.Discourse.MaxConcurrency)
	c.Discourse.RequestTimeout = getEnvDuration("DOG_DISCOURSE_REQUEST_TIMEOUT", c.Discourse.RequestTimeout)

	c.SSO.Mode = SSOMode(getEnv("DOG_SSO_MODE", string(c.SSO.Mode)))
	c.SSO.NoAuthRedirect = getEnv("DOG_SSO_NO_AUTH_REDIRECT", c.SSO.NoAuthRedirect)
	c.SSO.JWTIssuer = getEnv("DOG_SSO_JWT_ISSUER", c.SSO.JWTIssuer)

	c.Webhooks.Enabled = getEnvBool("DOG_GHOST_WEBHOOKS_ENABLED", c.Webhooks.Enabled)
	c.Webhooks.MemberUpdatedRoute = getEnv("DOG_GHOST_MEMBER_UPDATED_ROUTE", c.Webhooks.MemberUpdatedRoute)
	c.Webhooks.MemberDeletedRoute = getEnv("DOG_GHOST_MEMBER_DELETED_ROUTE", c.Webhooks.MemberDeletedRoute)
	c.Webhooks.DeleteAction = DeleteAction(getEnv("DOG_GHOST_MEMBER_DELETE_ACTION", string(c.Webhooks.DeleteAction)))
	c.Webhooks.Secret = getEnv("DOG_GHOST_WEBHOOK_SECRET", c.Webhooks.Secret)
	c.Webhooks.Version = getEnv("DOG_GHOST_WEBHOOK_VERSION", c.Webhooks.Version)

	c.Sync.JobDelay = getEnvDuration("DOG_SYNC_JOB_DELAY", c.Sync.JobDelay)
	c.Sync.TiersCron = getEnv("DOG_SYNC_TIERS_CRON", c.Sync.TiersCron)

	c.Observability.LogLevel = getEnv("DOG_LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.MetricsEnabled = getEnvBool("DOG_METRICS_ENABLED", c.Observability.MetricsEnabled)
}

// applyDerivedDefaults fills values that depend on other settings.
func (c *Config) applyDerivedDefaults() {
	ghostURL, err := url.Parse(c.Ghost.URL)
	if err != nil || c.Ghost.URL == "" {
		return
	}

	if c.Server.BasePath == "" {
		c.Server.BasePath = path.Join("/", ghostURL.Path, "ghost/sso")
	}

	if c.SSO.JWTIssuer == "" {
		c.SSO.JWTIssuer = strings.TrimSuffix(c.Ghost.URL, "/")
	}
}

// Validate checks configuration for correctness
func (c *Config) Validate() error {
	if c.Ghost.URL == "" {
		return fmt.Errorf("ghost URL is required")
	}
	if err := validateURL(c.Ghost.URL, "ghost URL"); err != nil {
		return err
	}
	if c.Ghost.AdminAPIKey != "" && !strings.Contains(c.Ghost.AdminAPIKey, ":") {
		return fmt.Errorf("ghost admin API key must be in id:secret form")
	}

	if c.Discourse.URL == "" {
		return fmt.Errorf("discourse URL is required")
	}
	if err := validateURL(c.Discourse.URL, "discourse URL"); err != nil {
		return err
	}
	if c.Discourse.SSOSecret == "" {
		return fmt.Errorf("discourse SSO secret is required")
	}
	if c.Discourse.MaxConcurrency < 1 {
		return fmt.Errorf("discourse max concurrency must be at least 1")
	}

	switch c.SSO.Mode {
	case SSOModeSession, SSOModeJWT, SSOModeObscure:
	default:
		return fmt.Errorf("invalid SSO mode %q (expected session, jwt or obscure)", c.SSO.Mode)
	}

	switch c.Webhooks.DeleteAction {
	case DeleteActionNone, DeleteActionSync, DeleteActionSuspend, DeleteActionAnonymize, DeleteActionDelete:
	default:
		return fmt.Errorf("invalid delete action %q", c.Webhooks.DeleteAction)
	}

	if c.Webhooks.Enabled {
		if c.Webhooks.MemberUpdatedRoute == "" || c.Webhooks.MemberDeletedRoute == "" {
			return fmt.Errorf("webhook routes are required when webhooks are enabled")
		}
	}

	if strings.Contains(c.Server.BasePath, "..") {
		return fmt.Errorf("base path must not contain parent directory segments")
	}

	if c.Sync.JobDelay < 0 {
		return fmt.Errorf("sync job delay must not be negative")
	}

	return nil
}

func validateURL(raw, what string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", what, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid %s: scheme must be http or https", what)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid %s: missing host", what)
	}
	return nil
}
