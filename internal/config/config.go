package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vertextoedge/movie-catalog/internal/domain"
)

// EnvPrefix prefixes environment variable overrides, e.g.
// MOVIECATALOG_PROVIDER_API_KEY overrides provider.api_key
const EnvPrefix = "MOVIECATALOG"

// Config represents the entire application configuration
type Config struct {
	Provider    ProviderConfig    `mapstructure:"provider"`
	Sync        SyncConfig        `mapstructure:"sync"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Scoring     ScoringConfig     `mapstructure:"scoring"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Database    DatabaseConfig    `mapstructure:"database"`
}

// ProviderConfig contains catalog provider API configuration
type ProviderConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	APIKey            string `mapstructure:"api_key"`
	Language          string `mapstructure:"language"`
	Timeout           string `mapstructure:"timeout"`
	MaxPage           int    `mapstructure:"max_page"`
	RequestsPerWindow int    `mapstructure:"requests_per_window"`
	Window            string `mapstructure:"window"`
	BreakerFailures   uint32 `mapstructure:"breaker_failures"`
	BreakerTimeout    string `mapstructure:"breaker_timeout"`
}

// SyncConfig contains synchronization settings
type SyncConfig struct {
	Categories         []string `mapstructure:"categories"`
	Pages              int      `mapstructure:"pages"`
	Interval           string   `mapstructure:"interval"`
	MaxRetries         int      `mapstructure:"max_retries"`
	BaseBackoff        string   `mapstructure:"base_backoff"`
	MaxBackoff         string   `mapstructure:"max_backoff"`
	RateLimitCooldown  string   `mapstructure:"rate_limit_cooldown"`
	MaxRateLimitPauses int      `mapstructure:"max_rate_limit_pauses"`
	FetchTimeout       string   `mapstructure:"fetch_timeout"`
	RunOnStart         bool     `mapstructure:"run_on_start"`
	MaxRunHistory      int      `mapstructure:"max_run_history"`
}

// CacheConfig contains cache settings
type CacheConfig struct {
	Backend           string `mapstructure:"backend"` // "memory" or "badger"
	Dir               string `mapstructure:"dir"`
	SweepInterval     string `mapstructure:"sweep_interval"`
	DetailTTL         string `mapstructure:"detail_ttl"`
	ListTTL           string `mapstructure:"list_ttl"`
	TrendingTTL       string `mapstructure:"trending_ttl"`
	SearchTTL         string `mapstructure:"search_ttl"`
	RecommendationTTL string `mapstructure:"recommendation_ttl"`
	MatchTTL          string `mapstructure:"match_ttl"`
	SimilarTTL        string `mapstructure:"similar_ttl"`
	PopularityTTL     string `mapstructure:"popularity_ttl"`
	StatsTTL          string `mapstructure:"stats_ttl"`
}

// ScoringConfig contains match scoring settings
type ScoringConfig struct {
	MinRatingCount   int     `mapstructure:"min_rating_count"`
	NeutralQuality   float64 `mapstructure:"neutral_quality"`
	PopularityCap    float64 `mapstructure:"popularity_cap"`
	TopRatedMinCount int     `mapstructure:"top_rated_min_count"`
}

// MaintenanceConfig contains periodic cleanup settings
type MaintenanceConfig struct {
	CleanupInterval         string  `mapstructure:"cleanup_interval"`
	StaleMovieAge           string  `mapstructure:"stale_movie_age"`
	StaleMovieMaxPopularity float64 `mapstructure:"stale_movie_max_popularity"`
	RefreshInterval         string  `mapstructure:"refresh_interval"`
	RefreshBatchSize        int     `mapstructure:"refresh_batch_size"`
}

// HTTPConfig contains HTTP server configuration
type HTTPConfig struct {
	BindAddr      string `mapstructure:"bind_addr"`
	AdminUsername string `mapstructure:"admin_username"`
	AdminPassword string `mapstructure:"admin_password"`
	ReadTimeout   string `mapstructure:"read_timeout"`
	WriteTimeout  string `mapstructure:"write_timeout"`
	IdleTimeout   string `mapstructure:"idle_timeout"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path          string `mapstructure:"path"`
	CacheSizeMB   int    `mapstructure:"cache_size_mb"`
	BusyTimeoutMs int    `mapstructure:"busy_timeout_ms"`
}

// setDefaults registers a default for every key so environment overrides
// reach Unmarshal
func setDefaults(v *viper.Viper) {
	v.SetDefault("provider.base_url", "https://api.themoviedb.org/3")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.language", "en-US")
	v.SetDefault("provider.timeout", "10s")
	v.SetDefault("provider.max_page", 500)
	v.SetDefault("provider.requests_per_window", 40)
	v.SetDefault("provider.window", "10s")
	v.SetDefault("provider.breaker_failures", 5)
	v.SetDefault("provider.breaker_timeout", "30s")

	v.SetDefault("sync.categories", []string{"popular", "trending", "top_rated"})
	v.SetDefault("sync.pages", 5)
	v.SetDefault("sync.interval", "6h")
	v.SetDefault("sync.max_retries", 3)
	v.SetDefault("sync.base_backoff", "1s")
	v.SetDefault("sync.max_backoff", "30s")
	v.SetDefault("sync.rate_limit_cooldown", "10s")
	v.SetDefault("sync.max_rate_limit_pauses", 5)
	v.SetDefault("sync.fetch_timeout", "30s")
	v.SetDefault("sync.run_on_start", true)
	v.SetDefault("sync.max_run_history", 50)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.sweep_interval", "5m")
	v.SetDefault("cache.detail_ttl", "1h")
	v.SetDefault("cache.list_ttl", "10m")
	v.SetDefault("cache.trending_ttl", "30m")
	v.SetDefault("cache.search_ttl", "15m")
	v.SetDefault("cache.recommendation_ttl", "30m")
	v.SetDefault("cache.match_ttl", "30m")
	v.SetDefault("cache.similar_ttl", "1h")
	v.SetDefault("cache.popularity_ttl", "10m")
	v.SetDefault("cache.stats_ttl", "10m")

	v.SetDefault("scoring.min_rating_count", 50)
	v.SetDefault("scoring.neutral_quality", 50.0)
	v.SetDefault("scoring.popularity_cap", 1000.0)
	v.SetDefault("scoring.top_rated_min_count", 100)

	v.SetDefault("maintenance.cleanup_interval", "24h")
	v.SetDefault("maintenance.stale_movie_age", "4320h")
	v.SetDefault("maintenance.stale_movie_max_popularity", 1.0)
	v.SetDefault("maintenance.refresh_interval", "24h")
	v.SetDefault("maintenance.refresh_batch_size", 50)

	v.SetDefault("http.bind_addr", "0.0.0.0:8080")
	v.SetDefault("http.admin_username", "admin")
	v.SetDefault("http.admin_password", "")
	v.SetDefault("http.read_timeout", "30s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("http.idle_timeout", "60s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.path", "/var/lib/movie-catalog/catalog.db")
	v.SetDefault("database.cache_size_mb", 64)
	v.SetDefault("database.busy_timeout_ms", 5000)
}

// Load loads configuration from the specified file path. An empty path
// loads defaults and environment overrides only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate provider config
	if c.Provider.BaseURL == "" {
		return fmt.Errorf("provider.base_url is required")
	}
	if c.Provider.APIKey == "" {
		return fmt.Errorf("provider.api_key is required")
	}
	if c.Provider.RequestsPerWindow < 1 {
		return fmt.Errorf("provider.requests_per_window must be positive")
	}

	// Validate sync config
	for _, name := range c.Sync.Categories {
		if _, err := domain.ParseCategory(name); err != nil {
			return fmt.Errorf("invalid sync.categories: %w", err)
		}
	}
	if c.Sync.Pages < 1 {
		return fmt.Errorf("sync.pages must be positive")
	}
	if c.Sync.MaxRetries < 0 {
		return fmt.Errorf("sync.max_retries must not be negative")
	}

	// Validate cache config
	switch c.Cache.Backend {
	case "memory":
	case "badger":
		if c.Cache.Dir == "" {
			return fmt.Errorf("cache.dir is required for the badger backend")
		}
	default:
		return fmt.Errorf("invalid cache.backend: %s", c.Cache.Backend)
	}

	// Validate scoring config
	if c.Scoring.MinRatingCount < 0 {
		return fmt.Errorf("scoring.min_rating_count must not be negative")
	}
	if c.Scoring.NeutralQuality < 0 || c.Scoring.NeutralQuality > 100 {
		return fmt.Errorf("scoring.neutral_quality must be between 0 and 100")
	}
	if c.Scoring.PopularityCap <= 0 {
		return fmt.Errorf("scoring.popularity_cap must be positive")
	}
	if c.Maintenance.RefreshBatchSize < 0 || c.Maintenance.RefreshBatchSize > domain.MaxQueryLimit {
		return fmt.Errorf("maintenance.refresh_batch_size must be between 0 and %d", domain.MaxQueryLimit)
	}

	// Validate durations
	durations := map[string]string{
		"provider.timeout":             c.Provider.Timeout,
		"provider.window":              c.Provider.Window,
		"provider.breaker_timeout":     c.Provider.BreakerTimeout,
		"sync.interval":                c.Sync.Interval,
		"sync.base_backoff":            c.Sync.BaseBackoff,
		"sync.max_backoff":             c.Sync.MaxBackoff,
		"sync.rate_limit_cooldown":     c.Sync.RateLimitCooldown,
		"sync.fetch_timeout":           c.Sync.FetchTimeout,
		"cache.sweep_interval":         c.Cache.SweepInterval,
		"cache.detail_ttl":             c.Cache.DetailTTL,
		"cache.list_ttl":               c.Cache.ListTTL,
		"cache.trending_ttl":           c.Cache.TrendingTTL,
		"cache.search_ttl":             c.Cache.SearchTTL,
		"cache.recommendation_ttl":     c.Cache.RecommendationTTL,
		"cache.match_ttl":              c.Cache.MatchTTL,
		"cache.similar_ttl":            c.Cache.SimilarTTL,
		"cache.popularity_ttl":         c.Cache.PopularityTTL,
		"cache.stats_ttl":              c.Cache.StatsTTL,
		"maintenance.cleanup_interval": c.Maintenance.CleanupInterval,
		"maintenance.stale_movie_age":  c.Maintenance.StaleMovieAge,
		"maintenance.refresh_interval": c.Maintenance.RefreshInterval,
		"http.read_timeout":            c.HTTP.ReadTimeout,
		"http.write_timeout":           c.HTTP.WriteTimeout,
		"http.idle_timeout":            c.HTTP.IdleTimeout,
	}
	for key, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	// Validate logging config
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
		// Valid formats
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	return nil
}

// durationOr parses s, falling back to def when empty or invalid
func durationOr(s string, def time.Duration) time.Duration {
	d, _ := time.ParseDuration(s)
	if d <= 0 {
		return def
	}
	return d
}

// GetTimeout returns the provider request timeout as time.Duration
func (c *ProviderConfig) GetTimeout() time.Duration {
	return durationOr(c.Timeout, 10*time.Second)
}

// GetWindow returns the provider rate window as time.Duration
func (c *ProviderConfig) GetWindow() time.Duration {
	return durationOr(c.Window, 10*time.Second)
}

// GetBreakerTimeout returns the circuit breaker open period as time.Duration
func (c *ProviderConfig) GetBreakerTimeout() time.Duration {
	return durationOr(c.BreakerTimeout, 30*time.Second)
}

// GetInterval returns the scheduled sync interval as time.Duration
func (c *SyncConfig) GetInterval() time.Duration {
	return durationOr(c.Interval, 6*time.Hour)
}

// GetBaseBackoff returns the first retry delay as time.Duration
func (c *SyncConfig) GetBaseBackoff() time.Duration {
	return durationOr(c.BaseBackoff, time.Second)
}

// GetMaxBackoff returns the retry delay cap as time.Duration
func (c *SyncConfig) GetMaxBackoff() time.Duration {
	return durationOr(c.MaxBackoff, 30*time.Second)
}

// GetRateLimitCooldown returns the pause used when the provider gives no
// Retry-After as time.Duration
func (c *SyncConfig) GetRateLimitCooldown() time.Duration {
	return durationOr(c.RateLimitCooldown, 10*time.Second)
}

// GetFetchTimeout returns the per-page fetch timeout as time.Duration
func (c *SyncConfig) GetFetchTimeout() time.Duration {
	return durationOr(c.FetchTimeout, 30*time.Second)
}

// GetSweepInterval returns the expired entry sweep interval as time.Duration
func (c *CacheConfig) GetSweepInterval() time.Duration {
	return durationOr(c.SweepInterval, 5*time.Minute)
}

// GetDetailTTL returns the movie detail TTL as time.Duration
func (c *CacheConfig) GetDetailTTL() time.Duration {
	return durationOr(c.DetailTTL, time.Hour)
}

// GetListTTL returns the filtered listing TTL as time.Duration
func (c *CacheConfig) GetListTTL() time.Duration {
	return durationOr(c.ListTTL, 10*time.Minute)
}

// GetTrendingTTL returns the trending and top rated TTL as time.Duration
func (c *CacheConfig) GetTrendingTTL() time.Duration {
	return durationOr(c.TrendingTTL, 30*time.Minute)
}

// GetSearchTTL returns the provider search TTL as time.Duration
func (c *CacheConfig) GetSearchTTL() time.Duration {
	return durationOr(c.SearchTTL, 15*time.Minute)
}

// GetRecommendationTTL returns the recommendation list TTL as time.Duration
func (c *CacheConfig) GetRecommendationTTL() time.Duration {
	return durationOr(c.RecommendationTTL, 30*time.Minute)
}

// GetMatchTTL returns the match score TTL as time.Duration
func (c *CacheConfig) GetMatchTTL() time.Duration {
	return durationOr(c.MatchTTL, 30*time.Minute)
}

// GetSimilarTTL returns the similar movies TTL as time.Duration
func (c *CacheConfig) GetSimilarTTL() time.Duration {
	return durationOr(c.SimilarTTL, time.Hour)
}

// GetPopularityTTL returns the popularity index TTL as time.Duration
func (c *CacheConfig) GetPopularityTTL() time.Duration {
	return durationOr(c.PopularityTTL, 10*time.Minute)
}

// GetStatsTTL returns the user statistics TTL as time.Duration
func (c *CacheConfig) GetStatsTTL() time.Duration {
	return durationOr(c.StatsTTL, 10*time.Minute)
}

// GetCleanupInterval returns the stale movie cleanup interval as time.Duration
func (c *MaintenanceConfig) GetCleanupInterval() time.Duration {
	return durationOr(c.CleanupInterval, 24*time.Hour)
}

// GetStaleMovieAge returns the age after which unrated movies may be
// removed as time.Duration
func (c *MaintenanceConfig) GetStaleMovieAge() time.Duration {
	return durationOr(c.StaleMovieAge, 180*24*time.Hour)
}

// GetRefreshInterval returns the stored movie refresh interval as
// time.Duration
func (c *MaintenanceConfig) GetRefreshInterval() time.Duration {
	return durationOr(c.RefreshInterval, 24*time.Hour)
}

// GetReadTimeout returns the read timeout as time.Duration
func (c *HTTPConfig) GetReadTimeout() time.Duration {
	return durationOr(c.ReadTimeout, 30*time.Second)
}

// GetWriteTimeout returns the write timeout as time.Duration
func (c *HTTPConfig) GetWriteTimeout() time.Duration {
	return durationOr(c.WriteTimeout, 30*time.Second)
}

// GetIdleTimeout returns the idle timeout as time.Duration
func (c *HTTPConfig) GetIdleTimeout() time.Duration {
	return durationOr(c.IdleTimeout, 60*time.Second)
}
