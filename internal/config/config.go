// Package config provides configuration loading and validation for the
// server and CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config represents the service configuration that can be loaded from a
// JSON file. All fields are optional; missing values come from the
// environment and then from Defaults.
type Config struct {
	// Server
	Port           int      `json:"port,omitempty"`            // HTTP listen port
	AllowedOrigins []string `json:"allowed_origins,omitempty"` // CORS origins; empty allows any
	RequireAuth    bool     `json:"require_auth,omitempty"`    // Require a bearer token bound to the subject

	// Storage
	DatabaseURL    string `json:"database_url,omitempty"`     // PostgreSQL connection URL; empty keeps versions in memory
	FactsDir       string `json:"facts_dir,omitempty"`        // Directory of <subject>.json fact files
	CacheDir       string `json:"cache_dir,omitempty"`        // Badger directory; empty uses an in-memory cache
	CacheTTLHours  int    `json:"cache_ttl_hours,omitempty"`  // Multi-option cache lifetime
	CacheGCMinutes int    `json:"cache_gc_minutes,omitempty"` // Badger value-log GC period

	// Completion service
	Provider          string `json:"provider,omitempty"`            // gemini or openai
	APIKey            string `json:"api_key,omitempty"`             // Provider API key
	RequestsPerMinute int    `json:"requests_per_minute,omitempty"` // Upstream rate limit
	Parallel          bool   `json:"parallel,omitempty"`            // Generate the three options concurrently

	// Generation
	WeightsPath     string  `json:"weights_path,omitempty"`     // YAML strategy weight set
	BaseTemperature float64 `json:"base_temperature,omitempty"` // Before strategy and focus deltas
	MinScore        float64 `json:"min_score,omitempty"`        // Quality gate threshold
	MaxRetries      *int    `json:"max_retries,omitempty"`      // Quality gate retries; nil uses the default
	DisableGate     bool    `json:"disable_gate,omitempty"`     // Accept the first candidate regardless of score

	Verbose bool `json:"verbose,omitempty"` // Debug logging
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	retries := 2
	return Config{
		Port:              8080,
		CacheTTLHours:     24,
		CacheGCMinutes:    10,
		Provider:          "gemini",
		RequestsPerMinute: 60,
		BaseTemperature:   0.7,
		MinScore:          60,
		MaxRetries:        &retries,
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// FromEnv reads the configuration from environment variables. Unset or
// unparsable values are left zero.
func FromEnv() Config {
	cfg := Config{
		Port:              envInt("PORT"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		FactsDir:          os.Getenv("FACTS_DIR"),
		CacheDir:          os.Getenv("CACHE_DIR"),
		CacheTTLHours:     envInt("CACHE_TTL_HOURS"),
		CacheGCMinutes:    envInt("CACHE_GC_MINUTES"),
		Provider:          os.Getenv("LLM_PROVIDER"),
		RequestsPerMinute: envInt("LLM_REQUESTS_PER_MINUTE"),
		WeightsPath:       os.Getenv("STRATEGY_WEIGHTS"),
		RequireAuth:       envBool("REQUIRE_AUTH"),
		Verbose:           envBool("VERBOSE"),
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}
	if cfg.Provider == "openai" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	} else {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	return cfg
}

// Resolve layers a config file (optional), the environment and Defaults,
// in that order of precedence, and validates the result.
func Resolve(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}
	merged := cfg.MergeWithDefaults(FromEnv()).MergeWithDefaults(Defaults())
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' %d is out of range", c.Port)
	}
	switch c.Provider {
	case "", "gemini", "openai":
	default:
		return fmt.Errorf("config error: unknown provider %q", c.Provider)
	}
	if c.CacheTTLHours < 0 {
		return fmt.Errorf("config error: 'cache_ttl_hours' must be non-negative")
	}
	if c.CacheGCMinutes < 0 {
		return fmt.Errorf("config error: 'cache_gc_minutes' must be non-negative")
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("config error: 'requests_per_minute' must be non-negative")
	}
	if c.BaseTemperature < 0 || c.BaseTemperature > 1 {
		return fmt.Errorf("config error: 'base_temperature' must be between 0 and 1")
	}
	if c.MinScore < 0 || c.MinScore > 100 {
		return fmt.Errorf("config error: 'min_score' must be between 0 and 100")
	}
	if c.MaxRetries != nil && (*c.MaxRetries < 0 || *c.MaxRetries > 5) {
		return fmt.Errorf("config error: 'max_retries' must be between 0 and 5")
	}

	// Validate file paths exist (if specified)
	if c.WeightsPath != "" {
		if _, err := os.Stat(c.WeightsPath); os.IsNotExist(err) {
			return fmt.Errorf("config error: weights file not found: %s", c.WeightsPath)
		}
	}
	if c.FactsDir != "" {
		if info, err := os.Stat(c.FactsDir); err != nil || !info.IsDir() {
			return fmt.Errorf("config error: facts directory not found: %s", c.FactsDir)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from
// defaults. Bools cannot distinguish unset from false, so true wins.
func (c Config) MergeWithDefaults(defaults Config) Config {
	result := c

	// String fields: use default if empty
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.FactsDir == "" {
		result.FactsDir = defaults.FactsDir
	}
	if result.CacheDir == "" {
		result.CacheDir = defaults.CacheDir
	}
	if result.Provider == "" {
		result.Provider = defaults.Provider
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.WeightsPath == "" {
		result.WeightsPath = defaults.WeightsPath
	}
	if len(result.AllowedOrigins) == 0 {
		result.AllowedOrigins = defaults.AllowedOrigins
	}

	// Numeric fields: use default if zero
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.CacheTTLHours == 0 {
		result.CacheTTLHours = defaults.CacheTTLHours
	}
	if result.CacheGCMinutes == 0 {
		result.CacheGCMinutes = defaults.CacheGCMinutes
	}
	if result.RequestsPerMinute == 0 {
		result.RequestsPerMinute = defaults.RequestsPerMinute
	}
	if result.BaseTemperature == 0 {
		result.BaseTemperature = defaults.BaseTemperature
	}
	if result.MinScore == 0 {
		result.MinScore = defaults.MinScore
	}
	if result.MaxRetries == nil {
		result.MaxRetries = defaults.MaxRetries
	}

	result.RequireAuth = result.RequireAuth || defaults.RequireAuth
	result.Parallel = result.Parallel || defaults.Parallel
	result.DisableGate = result.DisableGate || defaults.DisableGate
	result.Verbose = result.Verbose || defaults.Verbose

	return result
}

// CacheTTL returns the cache lifetime as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}

// CacheGCInterval returns how often the Badger cache runs value-log GC.
func (c *Config) CacheGCInterval() time.Duration {
	return time.Duration(c.CacheGCMinutes) * time.Minute
}

// Retries returns the quality gate retry count.
func (c *Config) Retries() int {
	if c.MaxRetries == nil {
		return *Defaults().MaxRetries
	}
	return *c.MaxRetries
}

func envInt(key string) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return 0
}

func envBool(key string) bool {
	b, _ := strconv.ParseBool(os.Getenv(key))
	return b
}
