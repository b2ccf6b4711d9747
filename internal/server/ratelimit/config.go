package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Endpoint path pattern (supports prefix matching)
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// LoadConfig reads RATE_LIMIT_* from the environment. Unparseable values
// fall back to the defaults.
func LoadConfig() *Config {
	if !envOr("RATE_LIMIT_ENABLED", true, strconv.ParseBool) {
		return &Config{Enabled: false}
	}

	return &Config{
		Enabled:         true,
		DefaultLimit:    envOr("RATE_LIMIT_DEFAULT_LIMIT", 1000, strconv.Atoi),
		DefaultWindow:   envOr("RATE_LIMIT_DEFAULT_WINDOW", time.Minute, time.ParseDuration),
		CleanupInterval: envOr("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute, time.ParseDuration),
		IdleTTL:         envOr("RATE_LIMIT_IDLE_TTL", time.Hour, time.ParseDuration),
		Whitelist:       parseIPList(os.Getenv("RATE_LIMIT_WHITELIST")),
		Blacklist:       parseIPList(os.Getenv("RATE_LIMIT_BLACKLIST")),
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

// DefaultEndpointConfigs returns the default endpoint-specific configurations.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// Tier 1: completion-backed operations (strictest limits)
		{Path: "/recommendations", Method: "POST", Limit: 30, Window: time.Hour, Burst: 5},
		{Path: "/recommendations/stream", Method: "POST", Limit: 30, Window: time.Hour, Burst: 5},
		{Path: "/recommendations/options", Method: "POST", Limit: 10, Window: time.Hour, Burst: 2},
		{Path: "/recommendations/options/stream", Method: "POST", Limit: 10, Window: time.Hour, Burst: 2},
		{Path: "/recommendations/refine", Method: "POST", Limit: 60, Window: time.Hour, Burst: 5},
		{Path: "/recommendations/regenerate", Method: "POST", Limit: 30, Window: time.Hour, Burst: 5},

		// Tier 2: ledger and experiment writes (moderate limits)
		{Path: "/subjects/", Method: "POST", Limit: 100, Window: time.Minute, Burst: 10},
		{Path: "/experiments/", Method: "POST", Limit: 100, Window: time.Minute, Burst: 10},

		// Tier 3: Read operations (more lenient) - handled by default limit
		// Tier 4: health and metrics (unlimited) - handled by special case in matcher
	}
}

func envOr[T any](key string, fallback T, parse func(string) (T, error)) T {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := parse(raw)
	if err != nil {
		return fallback
	}
	return v
}

// parseIPList turns "a, b," into a set. Blank entries are dropped.
func parseIPList(list string) map[string]bool {
	set := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			set[ip] = true
		}
	}
	return set
}
