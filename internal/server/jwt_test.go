package server

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/recommendation-writer/internal/config"
)

func testJWTService(issuer string) *JWTService {
	svc := NewJWTService(&config.JWTConfig{
		Secret:          strings.Repeat("s", 32),
		Issuer:          issuer,
		ExpirationHours: 24,
	})
	svc.now = func() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestJWTService_RoundTrip(t *testing.T) {
	svc := testJWTService("recommendation-writer")

	token, err := svc.GenerateToken("alice")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.SubjectID())
	assert.Equal(t, "recommendation-writer", claims.Issuer)

	validator := svc.AsTokenValidator()
	getter, err := validator.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", getter.SubjectID())
}

func TestJWTService_GenerateRequiresSubject(t *testing.T) {
	_, err := testJWTService("").GenerateToken("")
	assert.Error(t, err)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := testJWTService("recommendation-writer")
	token, err := svc.GenerateToken("alice")
	require.NoError(t, err)

	t.Run("empty", func(t *testing.T) {
		_, err := svc.ValidateToken("")
		assert.ErrorContains(t, err, "empty")
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := svc.ValidateToken("not.a.token")
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		later := testJWTService("recommendation-writer")
		later.now = func() time.Time { return time.Date(2026, 10, 20, 12, 0, 0, 0, time.UTC) }
		_, err := later.ValidateToken(token)
		assert.ErrorContains(t, err, "token expired")
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTService(&config.JWTConfig{
			Secret:          strings.Repeat("x", 32),
			Issuer:          "recommendation-writer",
			ExpirationHours: 24,
		})
		other.now = svc.now
		_, err := other.ValidateToken(token)
		assert.ErrorContains(t, err, "invalid token signature")
	})

	t.Run("wrong issuer", func(t *testing.T) {
		elsewhere := testJWTService("someone-else")
		_, err := elsewhere.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("unsigned", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "alice",
				ExpiresAt: jwt.NewNumericDate(svc.now().Add(time.Hour)),
			},
		})
		raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = svc.ValidateToken(raw)
		assert.Error(t, err)
	})
}
