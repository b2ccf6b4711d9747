package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = strings.Repeat("k", 32)

func TestNewJWTConfig_DefaultValues(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("JWT_EXPIRATION_HOURS", "")
	t.Setenv("JWT_ISSUER", "")

	cfg, err := NewJWTConfig()
	require.NoError(t, err)
	assert.Equal(t, testSecret, cfg.Secret)
	assert.Equal(t, 24, cfg.ExpirationHours, "should use default expiration of 24 hours")
	assert.Equal(t, 24*time.Hour, cfg.Expiration())
	assert.Empty(t, cfg.Issuer)
}

func TestNewJWTConfig_Env(t *testing.T) {
	tests := []struct {
		name       string
		secret     string
		expiration string
		wantHours  int
		wantErr    string
	}{
		{name: "custom expiration", secret: testSecret, expiration: "48", wantHours: 48},
		{name: "missing secret", secret: "", wantErr: "JWT_SECRET is required"},
		{name: "short secret", secret: "short", wantErr: "at least 32 bytes"},
		{name: "bad expiration", secret: testSecret, expiration: "soon", wantErr: "invalid JWT_EXPIRATION_HOURS"},
		{name: "zero expiration", secret: testSecret, expiration: "0", wantErr: "at least 1 hour"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", tt.secret)
			t.Setenv("JWT_EXPIRATION_HOURS", tt.expiration)
			t.Setenv("JWT_ISSUER", "recommendation-writer")

			cfg, err := NewJWTConfig()
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHours, cfg.ExpirationHours)
			assert.Equal(t, "recommendation-writer", cfg.Issuer)
		})
	}
}
