package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/drewdunne/prbounty/internal/scoring"
)

// Config represents the server configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Database   DatabaseConfig   `yaml:"database"`
	Aggregator AggregatorConfig `yaml:"aggregator"`
	Oracle     OracleConfig     `yaml:"oracle"`
	Webhooks   WebhooksConfig   `yaml:"webhooks"`
	Scoring    scoring.Config   `yaml:"scoring"`
	Projects   []ProjectConfig  `yaml:"projects"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig holds logging settings. Dir is where per-pull-request
// scoring journals are written; an empty Dir disables the journal.
type LoggingConfig struct {
	Level         string `yaml:"level"`
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
}

// ProvidersConfig holds git provider configurations.
type ProvidersConfig struct {
	GitHub GitHubConfig `yaml:"github"`
	GitLab GitLabConfig `yaml:"gitlab"`
}

// GitHubConfig holds GitHub-specific settings. BaseURL points at a
// GitHub Enterprise API root; empty means api.github.com.
type GitHubConfig struct {
	Token         string `yaml:"token"`
	BaseURL       string `yaml:"base_url"`
	Host          string `yaml:"host"`
	WebhookSecret string `yaml:"webhook_secret"`
}

// GitLabConfig holds GitLab-specific settings.
type GitLabConfig struct {
	Token         string `yaml:"token"`
	BaseURL       string `yaml:"base_url"`
	Host          string `yaml:"host"`
	WebhookSecret string `yaml:"webhook_secret"`
}

// DatabaseConfig selects and configures the claim store.
type DatabaseConfig struct {
	Driver         string        `yaml:"driver"`
	DSN            string        `yaml:"dsn"`
	MaxConns       int32         `yaml:"max_conns"`
	MinConns       int32         `yaml:"min_conns"`
	QueryTimeout   time.Duration `yaml:"query_timeout"`
	MigrateTimeout time.Duration `yaml:"migrate_timeout"`
}

// AggregatorConfig bounds the optional signal fetches.
type AggregatorConfig struct {
	OptionalTimeout time.Duration `yaml:"optional_timeout"`
	OptionalRetries int           `yaml:"optional_retries"`
	RetryWait       time.Duration `yaml:"retry_wait"`
}

// OracleConfig configures the external categorization oracle.
type OracleConfig struct {
	Strategy   string        `yaml:"strategy"`
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Model      string        `yaml:"model"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// WebhooksConfig controls merged pull request recording.
type WebhooksConfig struct {
	Enabled         bool `yaml:"enabled"`
	DebounceSeconds int  `yaml:"debounce_seconds"`
}

// ProjectConfig declares a project to register at startup if its
// repository has none yet.
type ProjectConfig struct {
	ID            string  `yaml:"id"`
	Repo          string  `yaml:"repo"`
	LowestBounty  float64 `yaml:"lowest_bounty"`
	HighestBounty float64 `yaml:"highest_bounty"`
}

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// envVarPattern matches ${VAR_NAME} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            7000,
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:         "info",
			Dir:           "/var/log/prbounty",
			RetentionDays: 30,
		},
		Database: DatabaseConfig{
			Driver:         DriverMemory,
			MaxConns:       10,
			MinConns:       1,
			QueryTimeout:   5 * time.Second,
			MigrateTimeout: time.Minute,
		},
		Aggregator: AggregatorConfig{
			OptionalTimeout: 10 * time.Second,
			OptionalRetries: 1,
			RetryWait:       500 * time.Millisecond,
		},
		Oracle: OracleConfig{
			Timeout:    15 * time.Second,
			MaxRetries: 1,
		},
		Webhooks: WebhooksConfig{
			Enabled:         true,
			DebounceSeconds: 5,
		},
		Scoring: scoring.DefaultConfig(),
	}
}

// Load reads and parses the config file at the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Substitute environment variables
	data = envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := envVarPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(varName)))
	})

	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate reports every problem found in the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}

	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for the postgres driver"))
		}
		if c.Database.MinConns > c.Database.MaxConns {
			errs = append(errs, errors.New("database.min_conns exceeds database.max_conns"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}

	if c.Aggregator.OptionalTimeout <= 0 {
		errs = append(errs, errors.New("aggregator.optional_timeout must be positive"))
	}
	if c.Aggregator.OptionalRetries < 0 {
		errs = append(errs, errors.New("aggregator.optional_retries must not be negative"))
	}

	switch c.Oracle.Strategy {
	case "", "none":
	case "api":
		if c.Oracle.BaseURL == "" {
			errs = append(errs, errors.New("oracle.base_url is required for the api strategy"))
		}
	case "gemini":
		if c.Oracle.APIKey == "" {
			errs = append(errs, errors.New("oracle.api_key is required for the gemini strategy"))
		}
	default:
		errs = append(errs, fmt.Errorf("oracle.strategy %q is not supported", c.Oracle.Strategy))
	}
	if c.Oracle.Timeout <= 0 {
		errs = append(errs, errors.New("oracle.timeout must be positive"))
	}

	for i, p := range c.Projects {
		if p.Repo == "" {
			errs = append(errs, fmt.Errorf("projects[%d].repo is required", i))
		}
		if p.LowestBounty <= 0 || p.LowestBounty >= p.HighestBounty {
			errs = append(errs, fmt.Errorf("projects[%d]: bounty range [%v, %v] must satisfy 0 < lowest < highest", i, p.LowestBounty, p.HighestBounty))
		}
	}

	if err := c.Scoring.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("scoring: %w", err))
	}

	return errors.Join(errs...)
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
