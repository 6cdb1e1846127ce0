package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/meltforce/allworkouts/internal/matcher"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	LLM       LLMConfig       `yaml:"llm"`
	Matching  MatchingConfig  `yaml:"matching"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Import    ImportConfig    `yaml:"import"`
	Sentry    SentryConfig    `yaml:"sentry"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// LLMConfig selects the completion provider. An empty model or endpoint
// takes the provider's default.
type LLMConfig struct {
	Provider       string  `yaml:"provider"`
	Model          string  `yaml:"model"`
	APIKey         string  `yaml:"api_key"`
	Endpoint       string  `yaml:"endpoint"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

type MatchingConfig struct {
	HighThreshold   float64 `yaml:"high_threshold"`
	MediumThreshold float64 `yaml:"medium_threshold"`
	LowThreshold    float64 `yaml:"low_threshold"`
	TopN            int     `yaml:"top_n"`
}

// Thresholds returns the configured tier boundaries.
func (m MatchingConfig) Thresholds() matcher.Thresholds {
	return matcher.Thresholds{High: m.HighThreshold, Medium: m.MediumThreshold, Low: m.LowThreshold}
}

type CatalogConfig struct {
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
}

type ImportConfig struct {
	MatchConcurrency       int `yaml:"match_concurrency"`
	FinalizeTimeoutSeconds int `yaml:"finalize_timeout_seconds"`
}

type SentryConfig struct {
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Timeout returns the completion timeout.
func (l LLMConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// CacheTTL returns the catalog cache lifetime.
func (c CatalogConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// FinalizeTimeout returns the bound on post-extraction work.
func (i ImportConfig) FinalizeTimeout() time.Duration {
	return time.Duration(i.FinalizeTimeoutSeconds) * time.Second
}

// Default returns a Config populated with default values. Load starts from
// these and overlays the YAML file.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Tailscale: TailscaleConfig{
			Hostname: "allworkouts",
			StateDir: "tsnet-state",
		},
		LLM: LLMConfig{
			Provider:       "openai",
			Temperature:    0.1,
			MaxTokens:      4000,
			TimeoutSeconds: 60,
		},
		Matching: MatchingConfig{
			HighThreshold:   0.90,
			MediumThreshold: 0.80,
			LowThreshold:    0.70,
			TopN:            5,
		},
		Catalog: CatalogConfig{CacheTTLSeconds: 300},
		Import: ImportConfig{
			MatchConcurrency:       4,
			FinalizeTimeoutSeconds: 10,
		},
	}
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix ALLWORKOUTS_ and underscore-separated paths:
//
//	ALLWORKOUTS_SERVER_HOST, ALLWORKOUTS_SERVER_PORT,
//	ALLWORKOUTS_DB_HOST, ALLWORKOUTS_DB_PORT, ALLWORKOUTS_DB_NAME,
//	ALLWORKOUTS_DB_USER, ALLWORKOUTS_DB_PASSWORD, ALLWORKOUTS_DB_SSLMODE,
//	ALLWORKOUTS_AUTH_API_KEY,
//	ALLWORKOUTS_TAILSCALE_ENABLED, ALLWORKOUTS_TAILSCALE_HOSTNAME,
//	ALLWORKOUTS_LLM_PROVIDER, ALLWORKOUTS_LLM_MODEL, ALLWORKOUTS_LLM_API_KEY,
//	ALLWORKOUTS_LLM_ENDPOINT, ALLWORKOUTS_LLM_TIMEOUT_SECONDS,
//	ALLWORKOUTS_SENTRY_DSN, ALLWORKOUTS_SENTRY_ENVIRONMENT
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ALLWORKOUTS_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("ALLWORKOUTS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ALLWORKOUTS_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("ALLWORKOUTS_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("ALLWORKOUTS_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("ALLWORKOUTS_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("ALLWORKOUTS_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("ALLWORKOUTS_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("ALLWORKOUTS_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("ALLWORKOUTS_TAILSCALE_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = enabled
		}
	}
	if v := os.Getenv("ALLWORKOUTS_TAILSCALE_HOSTNAME"); v != "" {
		cfg.Tailscale.Hostname = v
	}
	if v := os.Getenv("ALLWORKOUTS_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("ALLWORKOUTS_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("ALLWORKOUTS_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("ALLWORKOUTS_LLM_ENDPOINT"); v != "" {
		cfg.LLM.Endpoint = v
	}
	if v := os.Getenv("ALLWORKOUTS_LLM_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.LLM.TimeoutSeconds = secs
		}
	}
	if v := os.Getenv("ALLWORKOUTS_LLM_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.LLM.Temperature = f
		}
	}
	if v := os.Getenv("ALLWORKOUTS_LLM_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LLM.MaxTokens = n
		}
	}
	if v := os.Getenv("ALLWORKOUTS_MATCHING_HIGH_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Matching.HighThreshold = f
		}
	}
	if v := os.Getenv("ALLWORKOUTS_MATCHING_MEDIUM_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Matching.MediumThreshold = f
		}
	}
	if v := os.Getenv("ALLWORKOUTS_MATCHING_LOW_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Matching.LowThreshold = f
		}
	}
	if v := os.Getenv("ALLWORKOUTS_SENTRY_DSN"); v != "" {
		cfg.Sentry.DSN = v
	}
	if v := os.Getenv("ALLWORKOUTS_SENTRY_ENVIRONMENT"); v != "" {
		cfg.Sentry.Environment = v
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Port == 0 {
		return fmt.Errorf("database.port is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be positive")
	}
	if c.LLM.TimeoutSeconds <= 0 {
		return fmt.Errorf("llm.timeout_seconds must be positive")
	}
	if err := c.Matching.Thresholds().Validate(); err != nil {
		return fmt.Errorf("matching: %w", err)
	}
	if c.Matching.TopN <= 0 {
		return fmt.Errorf("matching.top_n must be positive")
	}
	if c.Import.MatchConcurrency <= 0 {
		return fmt.Errorf("import.match_concurrency must be positive")
	}
	if c.Import.FinalizeTimeoutSeconds <= 0 {
		return fmt.Errorf("import.finalize_timeout_seconds must be positive")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	return nil
}
