// Package config loads and validates newssearch configuration from a YAML file
// with environment-variable overrides. Every optional subsystem (metrics,
// query cache, analytics, crawl ledger) is disabled unless enabled here.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Crawl    CrawlConfig    `yaml:"crawl"`
	Index    IndexConfig    `yaml:"index"`
	Query    QueryConfig    `yaml:"query"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// CrawlConfig controls input files, connection bounds and fetch behaviour.
type CrawlConfig struct {
	FeedsFile         string        `yaml:"feedsFile"`
	StopwordsFile     string        `yaml:"stopwordsFile"`
	WelcomeFile       string        `yaml:"welcomeFile"`
	MaxConnections    int           `yaml:"maxConnections"`
	MaxRedirects      int           `yaml:"maxRedirects"`
	RequestTimeout    time.Duration `yaml:"requestTimeout"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	UserAgent         string        `yaml:"userAgent"`
}

// IndexConfig controls word normalisation.
type IndexConfig struct {
	Stemming bool `yaml:"stemming"`
}

// QueryConfig controls how many ranked articles an answer lists.
type QueryConfig struct {
	TopN int `yaml:"topN"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the ops server (Prometheus scrape and health checks).
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// RedisConfig holds the query cache connection.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds the analytics event sink.
type KafkaConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Brokers    []string `yaml:"brokers"`
	Topic      string   `yaml:"topic"`
	BufferSize int      `yaml:"bufferSize"`
}

// LedgerConfig selects the SQL database that records crawl runs.
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Driver  string `yaml:"driver"`
	DSN     string `yaml:"dsn"`
}

// PostgresConfig holds PostgreSQL connection parameters for the ledger.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// LedgerDSN resolves the data source for the configured ledger driver.
func (c *Config) LedgerDSN() string {
	if c.Ledger.DSN != "" {
		return c.Ledger.DSN
	}
	if c.Ledger.Driver == "postgres" {
		return c.Postgres.DSN()
	}
	return "newssearch.db"
}

// DefaultPath is the config file looked up when no path is given.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "newssearch", "config.yaml")
}

// Load reads a YAML config file and applies environment-variable overrides.
// An empty path falls back to DefaultPath, which may be absent; an explicit
// path must exist.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	applyEnvOverrides(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Crawl: CrawlConfig{
			FeedsFile:      "data/feeds.txt",
			StopwordsFile:  "data/stop-words.txt",
			MaxConnections: 24,
			MaxRedirects:   5,
			RequestTimeout: 30 * time.Second,
			UserAgent:      "newssearch/1.0",
		},
		Query: QueryConfig{
			TopN: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Port: 9090,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:    []string{"localhost:9092"},
			Topic:      "newssearch-events",
			BufferSize: 10000,
		},
		Ledger: LedgerConfig{
			Driver: "sqlite",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "newssearch",
			User:            "newssearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			ConnMaxLifetime: 5 * time.Minute,
		},
	}
}

// applyEnvOverrides reads NS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NS_FEEDS_FILE"); v != "" {
		cfg.Crawl.FeedsFile = v
	}
	if v := os.Getenv("NS_STOPWORDS_FILE"); v != "" {
		cfg.Crawl.StopwordsFile = v
	}
	if v := os.Getenv("NS_MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Crawl.MaxConnections = n
		}
	}
	if v := os.Getenv("NS_MAX_REDIRECTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Crawl.MaxRedirects = n
		}
	}
	if v := os.Getenv("NS_QUERY_TOPN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Query.TopN = n
		}
	}
	if v := os.Getenv("NS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("NS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("NS_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
	if v := os.Getenv("NS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("NS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("NS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("NS_LEDGER_DSN"); v != "" {
		cfg.Ledger.DSN = v
	}
	if v := os.Getenv("NS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
}

func validate(cfg *Config) error {
	if cfg.Crawl.MaxConnections < 1 {
		return fmt.Errorf("crawl.maxConnections must be positive, got %d", cfg.Crawl.MaxConnections)
	}
	if cfg.Crawl.MaxRedirects < 1 {
		return fmt.Errorf("crawl.maxRedirects must be positive, got %d", cfg.Crawl.MaxRedirects)
	}
	if cfg.Query.TopN < 1 {
		return fmt.Errorf("query.topN must be positive, got %d", cfg.Query.TopN)
	}
	switch cfg.Ledger.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("ledger.driver must be sqlite or postgres, got %q", cfg.Ledger.Driver)
	}
	return nil
}
