package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_ValidJSON(t *testing.T) {
	content := `{
		"port": 9090,
		"provider": "openai",
		"facts_dir": "/srv/facts",
		"min_score": 70,
		"max_retries": 0,
		"allowed_origins": ["https://example.com"],
		"verbose": true
	}`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0644))

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "/srv/facts", cfg.FactsDir)
	assert.Equal(t, 70.0, cfg.MinScore)
	require.NotNil(t, cfg.MaxRetries)
	assert.Equal(t, 0, *cfg.MaxRetries)
	assert.Equal(t, []string{"https://example.com"}, cfg.AllowedOrigins)
	assert.True(t, cfg.Verbose)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(`{ invalid json }`), 0644))

	cfg, err := LoadConfig(tmpFile)
	assert.Nil(t, cfg)
	assert.ErrorContains(t, err, "failed to parse config JSON")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	assert.Nil(t, cfg)
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Nil(t, cfg)
	assert.ErrorContains(t, err, "config path is empty")
}

func TestValidate(t *testing.T) {
	retries := 9
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"defaults", Defaults(), ""},
		{"port", Config{Port: 70000}, "'port'"},
		{"provider", Config{Provider: "llama"}, "unknown provider"},
		{"temperature", Config{BaseTemperature: 1.5}, "base_temperature"},
		{"min score", Config{MinScore: 101}, "min_score"},
		{"retries", Config{MaxRetries: &retries}, "max_retries"},
		{"negative ttl", Config{CacheTTLHours: -1}, "cache_ttl_hours"},
		{"negative gc", Config{CacheGCMinutes: -5}, "cache_gc_minutes"},
		{"weights", Config{WeightsPath: "/nonexistent/weights.yaml"}, "weights file not found"},
		{"facts", Config{FactsDir: "/nonexistent/facts"}, "facts directory not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestMergeWithDefaults(t *testing.T) {
	zero := 0
	partial := Config{
		Provider:   "openai",
		MaxRetries: &zero,
		Parallel:   true,
	}

	merged := partial.MergeWithDefaults(Defaults())

	// Custom values should be preserved
	assert.Equal(t, "openai", merged.Provider)
	assert.Equal(t, 0, merged.Retries())
	assert.True(t, merged.Parallel)

	// Default values should fill in empty fields
	assert.Equal(t, 8080, merged.Port)
	assert.Equal(t, 60.0, merged.MinScore)
	assert.Equal(t, 0.7, merged.BaseTemperature)
	assert.Equal(t, 24*time.Hour, merged.CacheTTL())
	assert.Equal(t, 10*time.Minute, merged.CacheGCInterval())
}

func TestMergeWithDefaults_EmptyDefaults(t *testing.T) {
	cfg := Config{Port: 1234}
	merged := cfg.MergeWithDefaults(Config{})

	assert.Equal(t, 1234, merged.Port)
	assert.Nil(t, merged.MaxRetries)
	assert.Equal(t, 2, merged.Retries())
}

func TestFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_URL", "postgres://localhost/recs")
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GEMINI_API_KEY", "gm-test")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("REQUIRE_AUTH", "true")
	t.Setenv("CACHE_TTL_HOURS", "not-a-number")

	cfg := FromEnv()
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "postgres://localhost/recs", cfg.DatabaseURL)
	assert.Equal(t, "sk-test", cfg.APIKey)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.True(t, cfg.RequireAuth)
	assert.Zero(t, cfg.CacheTTLHours)
}

func TestResolve_Precedence(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("GEMINI_API_KEY", "gm-env")

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(`{"port": 7000}`), 0644))

	cfg, err := Resolve(tmpFile)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Port, "file wins over env")
	assert.Equal(t, "gm-env", cfg.APIKey, "env fills what the file leaves out")
	assert.Equal(t, "gemini", cfg.Provider, "defaults fill the rest")

	cfg, err = Resolve("")
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
}

func TestResolve_Invalid(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(`{"min_score": 500}`), 0644))

	_, err := Resolve(tmpFile)
	assert.ErrorContains(t, err, "min_score")
}
