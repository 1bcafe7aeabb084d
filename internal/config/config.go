// Package config loads and validates stager configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Crawl     CrawlConfig     `mapstructure:"crawl"`
	Staging   StagingConfig   `mapstructure:"staging"`
	Output    OutputConfig    `mapstructure:"output"`
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Publisher PublisherConfig `mapstructure:"publisher"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// HTTPConfig controls the outbound HTTP client.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// CrawlConfig governs the resolution and staging pipeline.
type CrawlConfig struct {
	Concurrency    int      `mapstructure:"concurrency"`
	EmbeddablePath string   `mapstructure:"embeddable_path"`
	DenyAssets     []string `mapstructure:"deny_assets"`
}

// StagingConfig sets the run-scoped staging root. The root is an explicit
// value, never derived from the process working directory.
type StagingConfig struct {
	Root string `mapstructure:"root"`
}

// OutputConfig controls where archives and the results manifest land.
type OutputConfig struct {
	Dir         string `mapstructure:"dir"`
	ResultsFile string `mapstructure:"results_file"`
}

// ServerConfig controls the optional read-only status server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// StoreConfig selects and configures the result store provider.
type StoreConfig struct {
	Provider string         `mapstructure:"provider"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig controls access to the Postgres result store.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PublisherConfig selects and configures the completion-event publisher.
type PublisherConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// Load builds a Config from disk and environment. Path may be empty, in
// which case defaults and STAGER_* environment variables apply.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STAGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.user_agent", "concord-stager/0.1")
	v.SetDefault("crawl.concurrency", 4)
	v.SetDefault("crawl.embeddable_path", "/embeddable.html")
	v.SetDefault("crawl.deny_assets", []string{"ga.js", "analytics.js", "gtag.js", "*.beacon.js"})
	v.SetDefault("staging.root", "")
	v.SetDefault("output.dir", "packages")
	v.SetDefault("output.results_file", "results.json")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("store.provider", "noop")
	v.SetDefault("store.postgres.table", "package_results")
	v.SetDefault("publisher.provider", "noop")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Crawl.Concurrency <= 0 {
		return fmt.Errorf("crawl.concurrency must be > 0")
	}
	if !strings.HasPrefix(c.Crawl.EmbeddablePath, "/") {
		return fmt.Errorf("crawl.embeddable_path must start with /")
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir is required")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the server is enabled")
	}
	switch c.Store.Provider {
	case "noop", "memory":
	case "postgres":
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("store.postgres.dsn is required when store.provider is postgres")
		}
	default:
		return fmt.Errorf("unknown store provider: %s", c.Store.Provider)
	}
	switch c.Publisher.Provider {
	case "noop", "memory":
	case "pubsub":
		if c.Publisher.ProjectID == "" || c.Publisher.TopicID == "" {
			return fmt.Errorf("publisher.project_id and publisher.topic_id are required when publisher.provider is pubsub")
		}
	default:
		return fmt.Errorf("unknown publisher provider: %s", c.Publisher.Provider)
	}
	return nil
}

// HTTPTimeout converts the configured timeout into a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
