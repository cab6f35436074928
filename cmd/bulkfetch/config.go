package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/bulkfetch/pkg/logging"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envPrefix is prepended to every environment variable name.
const envPrefix = "BULKFETCH_"

// Config holds the full crawler configuration.
type Config struct {
	BaseURL        string `yaml:"base_url"`
	ListEndpoint   string `yaml:"list_endpoint"`
	DetailEndpoint string `yaml:"detail_endpoint"`
	RootID         string `yaml:"root_id"`

	// Field layout of the remote API.
	RootField     string `yaml:"root_field"`
	ItemsField    string `yaml:"items_field"`
	IDPath        string `yaml:"id_path"`
	DetailIDField string `yaml:"detail_id_field"`

	PageSize      int           `yaml:"page_size"`
	MaxPages      int           `yaml:"max_pages"`
	Workers       int           `yaml:"workers"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxAttempts   int           `yaml:"max_attempts"`
	MinInterval   time.Duration `yaml:"min_interval"`
	RetryPasses   int           `yaml:"retry_passes"`
	ProgressEvery int           `yaml:"progress_every"`

	StoreDir string `yaml:"store_dir"`

	LogLevel    string `yaml:"log_level"`
	LogPretty   bool   `yaml:"log_pretty"`
	MetricsAddr string `yaml:"metrics_addr"`

	RedisAddr    string        `yaml:"redis_addr"`
	PageCacheTTL time.Duration `yaml:"page_cache_ttl"`

	PostgresDSN   string `yaml:"postgres_dsn"`
	PostgresTable string `yaml:"postgres_table"`

	Session SessionConfig `yaml:"session"`
}

// SessionConfig carries credentials captured outside the crawler.
type SessionConfig struct {
	Cookie       string `yaml:"cookie"`
	XSRFToken    string `yaml:"xsrf_token"`
	BuildVersion string `yaml:"build_version"`
	UserAgent    string `yaml:"user_agent"`
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:        "https://www.kaggle.com",
		ListEndpoint:   "/api/i/competitions.HackathonService/ListHackathonWriteUps",
		DetailEndpoint: "/api/i/discussions.WriteUpsService/GetWriteUpById",
		RootField:      "competitionId",
		ItemsField:     "hackathonWriteUps",
		IDPath:         "writeUp.id",
		DetailIDField:  "writeUpId",
		PageSize:       50,
		Workers:        4,
		Timeout:        60 * time.Second,
		MaxAttempts:    8,
		MinInterval:    250 * time.Millisecond,
		RetryPasses:    3,
		ProgressEvery:  50,
		StoreDir:       "writeups",
		LogLevel:       "info",
		PageCacheTTL:   6 * time.Hour,
		PostgresTable:  "bulkfetch_summary",
		Session: SessionConfig{
			UserAgent: "bulkfetch/1.0",
		},
	}
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if c.ListEndpoint == "" || c.DetailEndpoint == "" {
		return fmt.Errorf("list_endpoint and detail_endpoint are required")
	}
	if c.RootID == "" {
		return fmt.Errorf("root_id is required")
	}
	if c.IDPath == "" {
		return fmt.Errorf("id_path is required")
	}
	if c.StoreDir == "" {
		return fmt.Errorf("store_dir is required")
	}
	if c.PageSize < 1 {
		return fmt.Errorf("page_size must be >= 1 (got %d)", c.PageSize)
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("max_pages must be >= 0 (got %d)", c.MaxPages)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1 (got %d)", c.Workers)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be >= 1 (got %d)", c.MaxAttempts)
	}
	if c.RetryPasses < 0 {
		return fmt.Errorf("retry_passes must be >= 0 (got %d)", c.RetryPasses)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0")
	}
	if c.MinInterval < 0 {
		return fmt.Errorf("min_interval must be >= 0")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// loadEnvFiles loads .env files without overriding the real environment.
func loadEnvFiles() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
}

// loadConfig layers defaults, the YAML file named by --config, the
// environment and finally explicit flags.
func loadConfig(args []string, getenv func(string) string, stderr io.Writer) (*Config, error) {
	// First pass only locates --config; every flag is parsed again below.
	var configPath string
	pre := newFlagSet(DefaultConfig(), &configPath, io.Discard)
	if err := pre.Parse(args); err != nil {
		if err == flag.ErrHelp {
			newFlagSet(DefaultConfig(), new(string), stderr).Usage()
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", configPath, err)
		}
	}

	if err := applyEnv(cfg, getenv); err != nil {
		return nil, err
	}

	fs := newFlagSet(cfg, &configPath, stderr)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 && cfg.RootID == "" {
		cfg.RootID = fs.Arg(0)
	}

	return cfg, cfg.Validate()
}

func newFlagSet(cfg *Config, configPath *string, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("bulkfetch", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: bulkfetch [flags] [root-id]")
		fs.PrintDefaults()
	}

	fs.StringVar(configPath, "config", *configPath, "YAML config file")
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "API base URL")
	fs.StringVar(&cfg.ListEndpoint, "list-endpoint", cfg.ListEndpoint, "listing endpoint path")
	fs.StringVar(&cfg.DetailEndpoint, "detail-endpoint", cfg.DetailEndpoint, "detail endpoint path")
	fs.StringVar(&cfg.RootID, "root-id", cfg.RootID, "collection to harvest")
	fs.StringVar(&cfg.IDPath, "id-path", cfg.IDPath, "dotted path of the item ID inside a listing item")
	fs.IntVar(&cfg.PageSize, "page-size", cfg.PageSize, "listing page size")
	fs.IntVar(&cfg.MaxPages, "max-pages", cfg.MaxPages, "abort the listing walk after this many pages (0 = unbounded)")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "concurrent detail fetches")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "per-request timeout")
	fs.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "attempts per request, including the first")
	fs.DurationVar(&cfg.MinInterval, "min-interval", cfg.MinInterval, "minimum spacing between requests per endpoint class")
	fs.IntVar(&cfg.RetryPasses, "retry-passes", cfg.RetryPasses, "extra passes over missing items")
	fs.IntVar(&cfg.ProgressEvery, "progress-every", cfg.ProgressEvery, "log progress every N items")
	fs.StringVar(&cfg.StoreDir, "out", cfg.StoreDir, "output directory")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.BoolVar(&cfg.LogPretty, "log-pretty", cfg.LogPretty, "human-readable console logs")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve /metrics on this address")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for the listing page cache")
	fs.DurationVar(&cfg.PageCacheTTL, "page-cache-ttl", cfg.PageCacheTTL, "listing page cache TTL")
	fs.StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "write the summary to Postgres as well")
	return fs
}

// applyEnv overrides cfg with BULKFETCH_* variables that are set.
func applyEnv(cfg *Config, getenv func(string) string) error {
	strs := map[string]*string{
		"BASE_URL":        &cfg.BaseURL,
		"LIST_ENDPOINT":   &cfg.ListEndpoint,
		"DETAIL_ENDPOINT": &cfg.DetailEndpoint,
		"ROOT_ID":         &cfg.RootID,
		"ID_PATH":         &cfg.IDPath,
		"STORE_DIR":       &cfg.StoreDir,
		"LOG_LEVEL":       &cfg.LogLevel,
		"METRICS_ADDR":    &cfg.MetricsAddr,
		"REDIS_ADDR":      &cfg.RedisAddr,
		"POSTGRES_DSN":    &cfg.PostgresDSN,
		"POSTGRES_TABLE":  &cfg.PostgresTable,
		"COOKIE":          &cfg.Session.Cookie,
		"XSRF_TOKEN":      &cfg.Session.XSRFToken,
		"BUILD_VERSION":   &cfg.Session.BuildVersion,
		"USER_AGENT":      &cfg.Session.UserAgent,
	}
	for name, dst := range strs {
		if v := getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"PAGE_SIZE":      &cfg.PageSize,
		"MAX_PAGES":      &cfg.MaxPages,
		"WORKERS":        &cfg.Workers,
		"MAX_ATTEMPTS":   &cfg.MaxAttempts,
		"RETRY_PASSES":   &cfg.RetryPasses,
		"PROGRESS_EVERY": &cfg.ProgressEvery,
	}
	for name, dst := range ints {
		v := getenv(envPrefix + name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = n
	}

	durations := map[string]*time.Duration{
		"TIMEOUT":        &cfg.Timeout,
		"MIN_INTERVAL":   &cfg.MinInterval,
		"PAGE_CACHE_TTL": &cfg.PageCacheTTL,
	}
	for name, dst := range durations {
		v := getenv(envPrefix + name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = d
	}

	if v := getenv(envPrefix + "LOG_PRETTY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sLOG_PRETTY: %w", envPrefix, err)
		}
		cfg.LogPretty = b
	}
	return nil
}
