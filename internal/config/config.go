// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig          `mapstructure:"server"`
	Redis    RedisConfig           `mapstructure:"redis"`
	DB       DBConfig              `mapstructure:"db"`
	Crawler  CrawlerConfig         `mapstructure:"crawler"`
	Fetch    FetchConfig           `mapstructure:"fetch"`
	Headless HeadlessConfig        `mapstructure:"headless"`
	Quality  QualityConfig         `mapstructure:"quality"`
	AI       AIConfig              `mapstructure:"ai"`
	PubSub   PubSubConfig          `mapstructure:"pubsub"`
	Archive  ArchiveConfig         `mapstructure:"archive"`
	Logging  LoggingConfig         `mapstructure:"logging"`
	Sites    map[string]SiteConfig `mapstructure:"sites"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// RedisConfig locates the queue/cache service and its key names.
type RedisConfig struct {
	Addr        string `mapstructure:"addr"`
	Password    string `mapstructure:"password"`
	DB          int    `mapstructure:"db"`
	QueuePrefix string `mapstructure:"queue_prefix"`
	VisitedKey  string `mapstructure:"visited_key"`
	RunPrefix   string `mapstructure:"run_prefix"`
	RunTTLHours int    `mapstructure:"run_ttl_hours"`
}

// DBConfig controls access to the document store.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"max_conns"`
}

// CrawlerConfig governs worker pool and scheduling behavior.
type CrawlerConfig struct {
	Concurrency       int    `mapstructure:"concurrency"`
	MaxAttempts       int    `mapstructure:"max_attempts"`
	MaxRecordsDefault int    `mapstructure:"max_records_default"`
	UserAgent         string `mapstructure:"user_agent"`
}

// FetchConfig configures the two-tier fetch strategy.
type FetchConfig struct {
	TimeoutSeconds     int     `mapstructure:"timeout_seconds"`
	MaxRetries         int     `mapstructure:"max_retries"`
	BackoffBaseSeconds float64 `mapstructure:"backoff_base_seconds"`
	BackoffMaxSeconds  float64 `mapstructure:"backoff_max_seconds"`
}

// HeadlessConfig configures the rendering fetch tier.
type HeadlessConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
	ScrollCount   int  `mapstructure:"scroll_count"`
}

// QualityConfig sets the deterministic acceptance floor.
type QualityConfig struct {
	MinScore float64 `mapstructure:"min_score"`
}

// AIConfig configures the external judging/expansion service.
type AIConfig struct {
	Enabled            bool    `mapstructure:"enabled"`
	BaseURL            string  `mapstructure:"base_url"`
	APIKey             string  `mapstructure:"api_key"`
	Model              string  `mapstructure:"model"`
	MinScore           int     `mapstructure:"min_score"`
	NeutralScore       int     `mapstructure:"neutral_score"`
	BatchSize          int     `mapstructure:"batch_size"`
	BatchDelaySeconds  float64 `mapstructure:"batch_delay_seconds"`
	MaxRetries         int     `mapstructure:"max_retries"`
	BackoffBaseSeconds float64 `mapstructure:"backoff_base_seconds"`
	TimeoutSeconds     int     `mapstructure:"timeout_seconds"`
}

// PubSubConfig holds metadata for run-summary notifications. An empty
// project ID disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ArchiveConfig controls raw-HTML archival. An empty bucket disables it.
type ArchiveConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// SiteConfig describes one external job board.
type SiteConfig struct {
	BaseURL      string            `mapstructure:"base_url"`
	SearchPath   string            `mapstructure:"search_path"`
	KeywordParam string            `mapstructure:"keyword_param"`
	ExtraParams  map[string]string `mapstructure:"extra_params"`
	Selectors    SelectorConfig    `mapstructure:"selectors"`
	RateLimitRPS float64           `mapstructure:"rate_limit_rps"`
	SalaryScale  int64             `mapstructure:"salary_scale"`
}

// SelectorConfig maps a site's markup to raw record fields.
type SelectorConfig struct {
	JobList    string `mapstructure:"job_list"`
	Title      string `mapstructure:"title"`
	Company    string `mapstructure:"company"`
	Location   string `mapstructure:"location"`
	Experience string `mapstructure:"experience"`
	Salary     string `mapstructure:"salary"`
	Deadline   string `mapstructure:"deadline"`
	URL        string `mapstructure:"url"`
	Tags       string `mapstructure:"tags"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.queue_prefix", "harvest:queue")
	v.SetDefault("redis.visited_key", "harvest:visited")
	v.SetDefault("redis.run_prefix", "harvest:run:")
	v.SetDefault("redis.run_ttl_hours", 72)
	v.SetDefault("db.max_conns", 4)
	// The external AI quota caps useful concurrency at 1-2 workers.
	v.SetDefault("crawler.concurrency", 2)
	v.SetDefault("crawler.max_attempts", 3)
	v.SetDefault("crawler.max_records_default", 50)
	v.SetDefault("crawler.user_agent",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("fetch.timeout_seconds", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.backoff_base_seconds", 2)
	v.SetDefault("fetch.backoff_max_seconds", 5)
	v.SetDefault("headless.enabled", true)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 30)
	v.SetDefault("headless.scroll_count", 3)
	v.SetDefault("quality.min_score", 0.5)
	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.model", "gemini-2.0-flash-exp")
	v.SetDefault("ai.min_score", 70)
	v.SetDefault("ai.neutral_score", 75)
	v.SetDefault("ai.batch_size", 5)
	v.SetDefault("ai.batch_delay_seconds", 2)
	v.SetDefault("ai.max_retries", 5)
	v.SetDefault("ai.backoff_base_seconds", 5)
	v.SetDefault("ai.timeout_seconds", 60)
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr must be set")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	// External AI quota makes more than two workers counterproductive.
	if c.Crawler.Concurrency > 2 {
		return fmt.Errorf("crawler.concurrency must be <= 2")
	}
	if c.Crawler.MaxAttempts <= 0 {
		return fmt.Errorf("crawler.max_attempts must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Quality.MinScore < 0 || c.Quality.MinScore > 1 {
		return fmt.Errorf("quality.min_score must be in [0,1]")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.AI.Enabled && c.AI.BaseURL == "" {
		return fmt.Errorf("ai.base_url must be set when ai is enabled")
	}
	return nil
}

// FetchTimeout converts the fetch timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}
