package ratelimit

import "strings"

// MatchEndpoint returns the config for a request, or nil when the default
// limit applies. An exact path wins over a prefix config (one whose Path
// ends in "/"), so "/subjects/" covers every per-subject write.
// GET /health and GET /metrics get a zero-limit config, meaning unlimited.
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	if method == "GET" && (path == "/health" || path == "/metrics") {
		return &EndpointConfig{}
	}

	var prefix *EndpointConfig
	for i := range configs {
		c := &configs[i]
		if c.Method != method {
			continue
		}
		if c.Path == path {
			return c
		}
		if prefix == nil && strings.HasSuffix(c.Path, "/") && strings.HasPrefix(path, c.Path) {
			prefix = c
		}
	}
	return prefix
}
