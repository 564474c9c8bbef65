// ABOUTME: Configuration loading and parsing for storefront-gateway
// ABOUTME: Supports YAML files with environment variable expansion, duration parsing and STOREFRONT_* overrides

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "STOREFRONT_"

// Config represents the complete storefront-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	WebApp    WebAppConfig    `yaml:"webapp"`
	Dialogue  DialogueConfig  `yaml:"dialogue"`
	State     StateConfig     `yaml:"state"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Tenants   TenantsConfig   `yaml:"tenants"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	// PublicBaseURL is where the platform can reach the webhook route.
	// Empty (and no Funnel) means every bot long-polls.
	PublicBaseURL string `yaml:"public_base_url"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Hostname  string `yaml:"hostname"`
	AuthKey   string `yaml:"auth_key"`
	StateDir  string `yaml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral"`
	Funnel    bool   `yaml:"funnel"` // public HTTPS ingress, supplies the webhook base URL
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret  string `yaml:"jwt_secret"`
	AdminToken string `yaml:"admin_token"`

	LoginTokenTTL    time.Duration `yaml:"-"`
	LoginTokenTTLRaw string        `yaml:"login_token_ttl"`
}

// WebAppConfig points at the companion web storefront
type WebAppConfig struct {
	BaseURL string `yaml:"base_url"`
}

// DialogueConfig holds conversation timing
type DialogueConfig struct {
	StateTTL      time.Duration `yaml:"-"`
	ResetCooldown time.Duration `yaml:"-"`
	// SupportUsername is shown to blocked users of tenants without their own
	SupportUsername string `yaml:"support_username"`

	StateTTLRaw      string `yaml:"state_ttl"`
	ResetCooldownRaw string `yaml:"reset_cooldown"`
}

// Conversation state backends
const (
	StateBackendMemory = "memory"
	StateBackendRedis  = "redis"
)

// StateConfig selects where conversation state lives
type StateConfig struct {
	Backend       string `yaml:"backend"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	MaxEntries    int    `yaml:"max_entries"`
}

// BroadcastConfig holds scheduler settings
type BroadcastConfig struct {
	PollInterval  time.Duration `yaml:"-"`
	LeaseTTL      time.Duration `yaml:"-"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	UseLease      bool          `yaml:"use_lease"`

	PollIntervalRaw string `yaml:"poll_interval"`
	LeaseTTLRaw     string `yaml:"lease_ttl"`
}

// TenantsConfig locates the tenant catalogue
type TenantsConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// envOverrides are read from STOREFRONT_* variables after the file is parsed.
// Empty values leave the file's setting alone.
type envOverrides struct {
	HTTPAddr      string        `env:"HTTP_ADDR"`
	PublicBaseURL string        `env:"PUBLIC_BASE_URL"`
	DatabasePath  string        `env:"DATABASE_PATH"`
	JWTSecret     string        `env:"JWT_SECRET"`
	AdminToken    string        `env:"ADMIN_TOKEN"`
	WebAppBaseURL string        `env:"WEBAPP_BASE_URL"`
	StateBackend  string        `env:"STATE_BACKEND"`
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	TenantsPath   string        `env:"TENANTS_PATH"`
	LogLevel      string        `env:"LOG_LEVEL"`
	LogFormat     string        `env:"LOG_FORMAT"`
	TailscaleKey  string        `env:"TS_AUTHKEY"`
	PollInterval  time.Duration `env:"BROADCAST_POLL_INTERVAL"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded, STOREFRONT_*
// overrides are applied, and relative paths are resolved against the file's directory.
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

	if err := applyEnv(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	cfg.applyDefaults()
	cfg.resolvePaths(filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func applyEnv(cfg *Config) error {
	var o envOverrides
	if err := env.ParseWithOptions(&o, env.Options{Prefix: EnvPrefix}); err != nil {
		return err
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Server.HTTPAddr, o.HTTPAddr)
	set(&cfg.Server.PublicBaseURL, o.PublicBaseURL)
	set(&cfg.Database.Path, o.DatabasePath)
	set(&cfg.Auth.JWTSecret, o.JWTSecret)
	set(&cfg.Auth.AdminToken, o.AdminToken)
	set(&cfg.WebApp.BaseURL, o.WebAppBaseURL)
	set(&cfg.State.Backend, o.StateBackend)
	set(&cfg.State.RedisAddr, o.RedisAddr)
	set(&cfg.State.RedisPassword, o.RedisPassword)
	set(&cfg.Tenants.Path, o.TenantsPath)
	set(&cfg.Logging.Level, o.LogLevel)
	set(&cfg.Logging.Format, o.LogFormat)
	set(&cfg.Tailscale.AuthKey, o.TailscaleKey)
	if o.PollInterval > 0 {
		cfg.Broadcast.PollInterval = o.PollInterval
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" && !c.Tailscale.Enabled {
		c.Server.HTTPAddr = "0.0.0.0:8080"
	}
	if c.Auth.LoginTokenTTL == 0 {
		c.Auth.LoginTokenTTL = 30 * 24 * time.Hour
	}
	if c.Dialogue.StateTTL == 0 {
		c.Dialogue.StateTTL = 24 * time.Hour
	}
	if c.Dialogue.ResetCooldown == 0 {
		c.Dialogue.ResetCooldown = 5 * time.Minute
	}
	if c.State.Backend == "" {
		c.State.Backend = StateBackendMemory
	}
	if c.State.MaxEntries == 0 {
		c.State.MaxEntries = 100000
	}
	if c.Broadcast.PollInterval == 0 {
		c.Broadcast.PollInterval = 30 * time.Second
	}
	if c.Broadcast.LeaseTTL == 0 {
		c.Broadcast.LeaseTTL = 2 * time.Minute
	}
	if c.Broadcast.RatePerSecond == 0 {
		c.Broadcast.RatePerSecond = 25
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// resolvePaths makes relative file paths relative to the config file
func (c *Config) resolvePaths(baseDir string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) || p == ":memory:" {
			return p
		}
		return filepath.Join(baseDir, p)
	}
	c.Database.Path = resolve(c.Database.Path)
	c.Tenants.Path = resolve(c.Tenants.Path)
	c.Tailscale.StateDir = resolve(c.Tailscale.StateDir)
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return errors.New("server.http_addr is required (or enable tailscale)")
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return errors.New("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Server.PublicBaseURL != "" && !strings.HasPrefix(c.Server.PublicBaseURL, "https://") {
		return fmt.Errorf("server.public_base_url must use https, got %q", c.Server.PublicBaseURL)
	}

	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}

	if c.Tenants.Path == "" {
		return errors.New("tenants.path is required")
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		return errors.New("auth.jwt_secret must be at least 32 bytes")
	}

	switch c.State.Backend {
	case StateBackendMemory:
	case StateBackendRedis:
		if c.State.RedisAddr == "" {
			return errors.New("state.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("state.backend must be %q or %q, got %q", StateBackendMemory, StateBackendRedis, c.State.Backend)
	}

	if c.Broadcast.RatePerSecond < 0 {
		return errors.New("broadcast.rate_per_second must not be negative")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"login_token_ttl", cfg.Auth.LoginTokenTTLRaw, &cfg.Auth.LoginTokenTTL},
		{"state_ttl", cfg.Dialogue.StateTTLRaw, &cfg.Dialogue.StateTTL},
		{"reset_cooldown", cfg.Dialogue.ResetCooldownRaw, &cfg.Dialogue.ResetCooldown},
		{"poll_interval", cfg.Broadcast.PollIntervalRaw, &cfg.Broadcast.PollInterval},
		{"lease_ttl", cfg.Broadcast.LeaseTTLRaw, &cfg.Broadcast.LeaseTTL},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %q", f.name, f.raw)
		}
		*f.dst = d
	}
	return nil
}

// DefaultPath resolves the config file location: $STOREFRONT_CONFIG, then
// $XDG_CONFIG_HOME/storefront/gateway.yaml, then ~/.config/storefront/gateway.yaml.
func DefaultPath() (string, error) {
	if p := os.Getenv(EnvPrefix + "CONFIG"); p != "" {
		return p, nil
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "storefront", "gateway.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "storefront", "gateway.yaml"), nil
}
