package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Supported LLM providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Supported storage backends.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config holds all application configuration
type Config struct {
	Version    int              `toml:"version"`
	Market     MarketConfig     `toml:"market"`
	Generation GenerationConfig `toml:"generation"`
	Storage    StorageConfig    `toml:"storage"`
	Pipeline   PipelineConfig   `toml:"pipeline"`
	Server     ServerConfig     `toml:"server"`
}

type MarketConfig struct {
	APIBase  string `toml:"api_base"`
	Email    string `toml:"email"`
	Password string `toml:"password"`
}

type GenerationConfig struct {
	Provider  string `toml:"provider"`
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	MinWords  int    `toml:"min_words"`
	MaxTokens int    `toml:"max_tokens"`
}

type StorageConfig struct {
	Backend     string `toml:"backend"`
	CacheDir    string `toml:"cache_dir"`
	RedisURL    string `toml:"redis_url"`
	MaxArticles int    `toml:"max_articles"`
	TTLSeconds  int    `toml:"ttl_seconds"`
}

type PipelineConfig struct {
	GenerateIntervalMinutes   int      `toml:"generate_interval_minutes"`
	ResolutionIntervalMinutes int      `toml:"resolution_interval_minutes"`
	MaxMarketsToFetch         int      `toml:"max_markets_to_fetch"`
	MaxArticlesPerCycle       int      `toml:"max_articles_per_cycle"`
	MaxResultsPerCycle        int      `toml:"max_results_per_cycle"`
	CallPauseMillis           int      `toml:"call_pause_ms"`
	ExcludedTickerPrefixes    []string `toml:"excluded_ticker_prefixes"`
}

type ServerConfig struct {
	ListenAddr string `toml:"listen_addr"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Market: MarketConfig{
			APIBase: "https://api.elections.kalshi.com/trade-api/v2",
		},
		Generation: GenerationConfig{
			Provider:  ProviderAnthropic,
			Model:     "claude-sonnet-4-20250514",
			MinWords:  400,
			MaxTokens: 2000,
		},
		Storage: StorageConfig{
			Backend:     BackendFile,
			RedisURL:    "redis://localhost:6379/0",
			MaxArticles: 50,
			TTLSeconds:  3600,
		},
		Pipeline: PipelineConfig{
			GenerateIntervalMinutes:   20,
			ResolutionIntervalMinutes: 10,
			MaxMarketsToFetch:         15,
			MaxArticlesPerCycle:       3,
			MaxResultsPerCycle:        2,
			CallPauseMillis:           300,
			// Sports markets churn too fast to write about.
			ExcludedTickerPrefixes: []string{"KXNFL", "KXNBA", "KXMLB", "KXNHL"},
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
	}
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "oddspress"), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the directory used for the file backend and LLM exchange
// logs, honoring storage.cache_dir when set.
func (c *Config) CacheDirPath() (string, error) {
	if c.Storage.CacheDir != "" {
		return c.Storage.CacheDir, nil
	}
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "oddspress"), nil
}

// Load reads config from disk and applies environment overrides.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}

// ApplyEnv overlays secrets and deploy-specific settings from the
// environment. File config never needs to carry credentials.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("KALSHI_EMAIL"); v != "" {
		c.Market.Email = v
	}
	if v := os.Getenv("KALSHI_PASSWORD"); v != "" {
		c.Market.Password = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && c.Generation.Provider == ProviderAnthropic {
		c.Generation.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.Generation.Provider == ProviderOpenAI {
		c.Generation.APIKey = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Storage.RedisURL = v
	}
	if v := os.Getenv("ODDSPRESS_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("ODDSPRESS_LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("ODDSPRESS_CACHE_DIR"); v != "" {
		c.Storage.CacheDir = v
	}
	if v := os.Getenv("ODDSPRESS_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Storage.TTLSeconds = n
		}
	}
}

// Validate rejects unknown provider/backend names so selection happens once,
// at construction, instead of failing deep inside a cycle.
func (c *Config) Validate() error {
	switch c.Generation.Provider {
	case ProviderAnthropic, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown LLM provider: %s", c.Generation.Provider)
	}

	switch c.Storage.Backend {
	case BackendFile, BackendRedis, BackendSQLite:
	default:
		return fmt.Errorf("unknown storage backend: %s", c.Storage.Backend)
	}

	if c.Storage.MaxArticles <= 0 {
		return fmt.Errorf("storage.max_articles must be positive, got %d", c.Storage.MaxArticles)
	}
	if c.Pipeline.MaxArticlesPerCycle < 0 || c.Pipeline.MaxResultsPerCycle < 0 {
		return fmt.Errorf("pipeline per-cycle limits must not be negative")
	}

	return nil
}
