package adapter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mmcdole/anidex/internal/adapter/source/jikan"
	"github.com/mmcdole/anidex/internal/domain"
	"github.com/mmcdole/anidex/internal/fetch"
	"github.com/mmcdole/anidex/internal/query"
	"github.com/mmcdole/anidex/internal/ratelimit"
	"github.com/mmcdole/anidex/internal/store"
)

// Config holds all application configuration
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Favorites FavoritesConfig `mapstructure:"favorites"`
	UI        UIConfig        `mapstructure:"ui"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// APIConfig holds catalog API access settings
type APIConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	UserAgent         string        `mapstructure:"user_agent"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	BackoffBase       time.Duration `mapstructure:"backoff_base"`
	AttemptTimeout    time.Duration `mapstructure:"attempt_timeout"`
	BulkDelay         time.Duration `mapstructure:"bulk_delay"` // Pause between sequential id lookups
}

// CacheConfig holds query cache settings
type CacheConfig struct {
	GCInterval time.Duration `mapstructure:"gc_interval"` // 0 disables eviction
}

// FavoritesConfig holds favorites persistence settings
type FavoritesConfig struct {
	Backend string `mapstructure:"backend"` // "bolt" or "sqlite"
	Path    string `mapstructure:"path"`    // Directory; empty keeps favorites in memory
}

// UIConfig holds UI configuration
type UIConfig struct {
	PageSize    int      `mapstructure:"page_size"`
	SFW         bool     `mapstructure:"sfw"`
	Browser     string   `mapstructure:"browser"` // Empty for the system default
	BrowserArgs []string `mapstructure:"browser_args"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:           jikan.DefaultBaseURL,
			UserAgent:         "anidex/1.0",
			RequestsPerSecond: ratelimit.DefaultRequestsPerSecond,
			MaxAttempts:       fetch.DefaultMaxAttempts,
			BackoffBase:       fetch.DefaultBase,
			AttemptTimeout:    fetch.DefaultAttemptTimeout,
			BulkDelay:         jikan.DefaultBulkDelay,
		},
		Cache: CacheConfig{
			GCInterval: query.DefaultGCInterval,
		},
		Favorites: FavoritesConfig{
			Backend: store.BackendBolt,
			Path:    defaultDataPath(),
		},
		UI: UIConfig{
			PageSize:    domain.DefaultPageSize,
			SFW:         true,
			BrowserArgs: []string{},
		},
		Logging: LoggingConfig{
			File:  filepath.Join(defaultDataPath(), "anidex.log"),
			Level: "INFO",
		},
	}
}

// Validate rejects settings that would make the client misbehave
func (c *Config) Validate() error {
	var errs []error
	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	}
	if c.API.RequestsPerSecond <= 0 {
		errs = append(errs, fmt.Errorf("api.requests_per_second must be positive, got %v", c.API.RequestsPerSecond))
	}
	if c.API.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("api.max_attempts must be at least 1, got %d", c.API.MaxAttempts))
	}
	if c.UI.PageSize < 1 || c.UI.PageSize > domain.MaxPageSize {
		errs = append(errs, fmt.Errorf("ui.page_size must be between 1 and %d, got %d", domain.MaxPageSize, c.UI.PageSize))
	}
	switch c.Favorites.Backend {
	case store.BackendBolt, store.BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("favorites.backend must be %q or %q, got %q", store.BackendBolt, store.BackendSQLite, c.Favorites.Backend))
	}
	return errors.Join(errs...)
}

// defaultDataPath returns the default data directory for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "anidex")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "anidex")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "anidex")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "anidex")
	}
}

// setDefaults registers every key so environment overrides apply to keys
// that are absent from the config file
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("api.base_url", cfg.API.BaseURL)
	v.SetDefault("api.user_agent", cfg.API.UserAgent)
	v.SetDefault("api.requests_per_second", cfg.API.RequestsPerSecond)
	v.SetDefault("api.max_attempts", cfg.API.MaxAttempts)
	v.SetDefault("api.backoff_base", cfg.API.BackoffBase)
	v.SetDefault("api.attempt_timeout", cfg.API.AttemptTimeout)
	v.SetDefault("api.bulk_delay", cfg.API.BulkDelay)
	v.SetDefault("cache.gc_interval", cfg.Cache.GCInterval)
	v.SetDefault("favorites.backend", cfg.Favorites.Backend)
	v.SetDefault("favorites.path", cfg.Favorites.Path)
	v.SetDefault("ui.page_size", cfg.UI.PageSize)
	v.SetDefault("ui.sfw", cfg.UI.SFW)
	v.SetDefault("ui.browser", cfg.UI.Browser)
	v.SetDefault("ui.browser_args", cfg.UI.BrowserArgs)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)
}

// LoadConfig loads configuration from file and environment. An empty path
// searches the default config directory and the working directory.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(defaultConfigPath())
		v.AddConfigPath(".")
	}

	// Environment variable overrides, e.g. ANIDEX_API_BASE_URL
	v.SetEnvPrefix("ANIDEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	cfg.Favorites.Path = expandHome(cfg.Favorites.Path)
	cfg.Logging.File = expandHome(cfg.Logging.File)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path, or to the default config file when path is empty
func SaveConfig(cfg *Config, path string) error {
	if path == "" {
		path = filepath.Join(defaultConfigPath(), "config.yaml")
	}

	// Ensure config directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Set fields individually to ensure correct key names (snake_case)
	v := viper.New()
	v.Set("api.base_url", cfg.API.BaseURL)
	v.Set("api.user_agent", cfg.API.UserAgent)
	v.Set("api.requests_per_second", cfg.API.RequestsPerSecond)
	v.Set("api.max_attempts", cfg.API.MaxAttempts)
	v.Set("api.backoff_base", cfg.API.BackoffBase.String())
	v.Set("api.attempt_timeout", cfg.API.AttemptTimeout.String())
	v.Set("api.bulk_delay", cfg.API.BulkDelay.String())

	v.Set("cache.gc_interval", cfg.Cache.GCInterval.String())

	v.Set("favorites.backend", cfg.Favorites.Backend)
	v.Set("favorites.path", cfg.Favorites.Path)

	v.Set("ui.page_size", cfg.UI.PageSize)
	v.Set("ui.sfw", cfg.UI.SFW)
	v.Set("ui.browser", cfg.UI.Browser)
	v.Set("ui.browser_args", cfg.UI.BrowserArgs)

	v.Set("logging.file", cfg.Logging.File)
	v.Set("logging.level", cfg.Logging.Level)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// expandHome replaces a leading ~ with the user's home directory
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
