package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Version is injected at build time.
var Version = "dev"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	TMDB      TMDBConfig      `mapstructure:"tmdb"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Proxy     ProxyConfig     `mapstructure:"proxy"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
	BufferSize int    `mapstructure:"buffer_size"`
}

// TMDBConfig holds identifier provider configuration.
type TMDBConfig struct {
	APIKey            string `mapstructure:"api_key"`
	BaseURL           string `mapstructure:"base_url"`
	Language          string `mapstructure:"language"`
	AlternativeTitles bool   `mapstructure:"alternative_titles"`
}

// CatalogConfig describes the third-party catalog site.
type CatalogConfig struct {
	BaseURL             string        `mapstructure:"base_url"`
	SearchPath          string        `mapstructure:"search_path"`
	DownloadPath        string        `mapstructure:"download_path"`
	DetailsPathPrefix   string        `mapstructure:"details_path_prefix"`
	FallbackDetailsPath string        `mapstructure:"fallback_details_path"`
	UserAgent           string        `mapstructure:"user_agent"`
	AcceptLanguage      string        `mapstructure:"accept_language"`
	ClientTimezone      string        `mapstructure:"client_timezone"`
	SearchTimeout       time.Duration `mapstructure:"search_timeout"`
	DownloadTimeout     time.Duration `mapstructure:"download_timeout"`
	MinOverlap          float64       `mapstructure:"min_overlap"`
	YearTolerance       int           `mapstructure:"year_tolerance"`
	MaxCandidates       int           `mapstructure:"max_candidates"`
	AlternateCountries  []string      `mapstructure:"alternate_countries"`
}

// RetryConfig holds the backoff policy for outbound requests.
type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	BaseDelay      time.Duration `mapstructure:"base_delay"`
	MaxDelay       time.Duration `mapstructure:"max_delay"`
	MaxJitter      time.Duration `mapstructure:"max_jitter"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
}

// CacheConfig holds resolution cache configuration.
type CacheConfig struct {
	TTL                  time.Duration `mapstructure:"ttl"`
	StaleWhileRevalidate bool          `mapstructure:"stale_while_revalidate"`
	StaleWindow          time.Duration `mapstructure:"stale_window"`
	RefreshTimeout       time.Duration `mapstructure:"refresh_timeout"`
	MaxEntries           int           `mapstructure:"max_entries"`
	PruneCron            string        `mapstructure:"prune_cron"`
	// PersistPath is an SQLite file the cache is restored from and written
	// through to. Empty keeps the cache in memory only.
	PersistPath string `mapstructure:"persist_path"`
}

// RateLimitConfig holds per-IP inbound rate limiting configuration.
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// ProxyConfig holds the asset passthrough targets.
type ProxyConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	StreamTarget   string `mapstructure:"stream_target"`
	SubtitleTarget string `mapstructure:"subtitle_target"`
	Referer        string `mapstructure:"referer"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3000,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			BufferSize: 500,
		},
		TMDB: TMDBConfig{
			APIKey:            EmbeddedTMDBKey,
			BaseURL:           "https://api.themoviedb.org/3",
			Language:          "en-US",
			AlternativeTitles: true,
		},
		Catalog: CatalogConfig{
			BaseURL:             "https://moviebox.ph",
			SearchPath:          "/web/searchResult",
			DownloadPath:        "/wefeed-h5-bff/web/subject/download",
			DetailsPathPrefix:   "/movies/",
			FallbackDetailsPath: "/detail",
			UserAgent:           "Mozilla/5.0",
			AcceptLanguage:      "en-US,en;q=0.9",
			ClientTimezone:      "Asia/Manila",
			SearchTimeout:       5 * time.Second,
			DownloadTimeout:     4 * time.Second,
			MinOverlap:          0.6,
			YearTolerance:       1,
			MaxCandidates:       8,
		},
		Retry: RetryConfig{
			MaxAttempts:    4,
			AttemptTimeout: 5 * time.Second,
			BaseDelay:      500 * time.Millisecond,
			MaxDelay:       3 * time.Second,
			MaxBodyBytes:   8 << 20,
		},
		Cache: CacheConfig{
			TTL:            10 * time.Minute,
			StaleWindow:    30 * time.Minute,
			RefreshTimeout: 30 * time.Second,
			MaxEntries:     1000,
			PruneCron:      "*/5 * * * *",
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 50,
			Window:   15 * time.Minute,
		},
		Proxy: ProxyConfig{
			Enabled:        true,
			StreamTarget:   "https://valiw.hakunaymatata.com",
			SubtitleTarget: "https://cacdn.hakunaymatata.com",
			Referer:        "https://moviebox.ph",
		},
	}
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > .env file > config file > defaults
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.mediabridge")
	}

	v.SetEnvPrefix("MEDIABRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The original deployment exported these without a prefix.
	_ = v.BindEnv("tmdb.api_key", "MEDIABRIDGE_TMDB_API_KEY", "TMDB_API_KEY")
	_ = v.BindEnv("server.port", "MEDIABRIDGE_SERVER_PORT", "PORT")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults mirrors Default() into viper so every key is env-addressable.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.path", d.Logging.Path)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", d.Logging.Compress)
	v.SetDefault("logging.buffer_size", d.Logging.BufferSize)

	v.SetDefault("tmdb.api_key", d.TMDB.APIKey)
	v.SetDefault("tmdb.base_url", d.TMDB.BaseURL)
	v.SetDefault("tmdb.language", d.TMDB.Language)
	v.SetDefault("tmdb.alternative_titles", d.TMDB.AlternativeTitles)

	v.SetDefault("catalog.base_url", d.Catalog.BaseURL)
	v.SetDefault("catalog.search_path", d.Catalog.SearchPath)
	v.SetDefault("catalog.download_path", d.Catalog.DownloadPath)
	v.SetDefault("catalog.details_path_prefix", d.Catalog.DetailsPathPrefix)
	v.SetDefault("catalog.fallback_details_path", d.Catalog.FallbackDetailsPath)
	v.SetDefault("catalog.user_agent", d.Catalog.UserAgent)
	v.SetDefault("catalog.accept_language", d.Catalog.AcceptLanguage)
	v.SetDefault("catalog.client_timezone", d.Catalog.ClientTimezone)
	v.SetDefault("catalog.search_timeout", d.Catalog.SearchTimeout)
	v.SetDefault("catalog.download_timeout", d.Catalog.DownloadTimeout)
	v.SetDefault("catalog.min_overlap", d.Catalog.MinOverlap)
	v.SetDefault("catalog.year_tolerance", d.Catalog.YearTolerance)
	v.SetDefault("catalog.max_candidates", d.Catalog.MaxCandidates)
	v.SetDefault("catalog.alternate_countries", d.Catalog.AlternateCountries)

	v.SetDefault("retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("retry.attempt_timeout", d.Retry.AttemptTimeout)
	v.SetDefault("retry.base_delay", d.Retry.BaseDelay)
	v.SetDefault("retry.max_delay", d.Retry.MaxDelay)
	v.SetDefault("retry.max_jitter", d.Retry.MaxJitter)
	v.SetDefault("retry.max_body_bytes", d.Retry.MaxBodyBytes)

	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.stale_while_revalidate", d.Cache.StaleWhileRevalidate)
	v.SetDefault("cache.stale_window", d.Cache.StaleWindow)
	v.SetDefault("cache.refresh_timeout", d.Cache.RefreshTimeout)
	v.SetDefault("cache.max_entries", d.Cache.MaxEntries)
	v.SetDefault("cache.prune_cron", d.Cache.PruneCron)
	v.SetDefault("cache.persist_path", d.Cache.PersistPath)

	v.SetDefault("ratelimit.enabled", d.RateLimit.Enabled)
	v.SetDefault("ratelimit.requests", d.RateLimit.Requests)
	v.SetDefault("ratelimit.window", d.RateLimit.Window)

	v.SetDefault("proxy.enabled", d.Proxy.Enabled)
	v.SetDefault("proxy.stream_target", d.Proxy.StreamTarget)
	v.SetDefault("proxy.subtitle_target", d.Proxy.SubtitleTarget)
	v.SetDefault("proxy.referer", d.Proxy.Referer)
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 {
		return errors.New("retry delays must not be negative")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL)
	}
	if c.Catalog.MinOverlap <= 0 || c.Catalog.MinOverlap > 1 {
		return fmt.Errorf("catalog.min_overlap must be in (0,1], got %v", c.Catalog.MinOverlap)
	}
	if c.Catalog.BaseURL == "" {
		return errors.New("catalog.base_url is required")
	}
	return nil
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
