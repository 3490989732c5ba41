package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestNewJWTServiceRequiresSecret(t *testing.T) {
	_, err := NewJWTService(JWTConfig{})
	require.EqualError(t, err, "jwt: secret must be provided")
}

func TestGenerateAndValidateAccessToken(t *testing.T) {
	current := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	svc, err := NewJWTService(JWTConfig{
		Secret:         "super-secret",
		Issuer:         "inspectd",
		AccessTokenTTL: "24h",
		Clock:          func() time.Time { return current },
	})
	require.NoError(t, err)
	require.Equal(t, 24*time.Hour, svc.TTL())

	token, err := svc.GenerateAccessToken("user-123", "inspector")
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, "user-123", claims.UserID)
	require.Equal(t, "inspector", claims.Role)
	require.Equal(t, "inspectd", claims.Issuer)
	require.True(t, claims.ExpiresAt.Time.Equal(current.Add(24*time.Hour)))
}

func TestDefaultTTLWhenUnparseable(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "s", AccessTokenTTL: "forever"})
	require.NoError(t, err)
	require.Equal(t, DefaultSessionTTL, svc.TTL())
}

func TestValidateAccessTokenInvalidSignature(t *testing.T) {
	now := func() time.Time { return time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC) }

	issuer, err := NewJWTService(JWTConfig{Secret: "issuer-secret", Clock: now})
	require.NoError(t, err)
	token, err := issuer.GenerateAccessToken("user-123", "admin")
	require.NoError(t, err)

	verifier, err := NewJWTService(JWTConfig{Secret: "other-secret", Clock: now})
	require.NoError(t, err)

	_, err = verifier.ValidateAccessToken(token)
	require.True(t, errors.Is(err, jwt.ErrTokenSignatureInvalid))
}

func TestValidateAccessTokenExpired(t *testing.T) {
	current := time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC)

	svc, err := NewJWTService(JWTConfig{
		Secret:         "secret",
		AccessTokenTTL: "1m",
		Clock:          func() time.Time { return current },
	})
	require.NoError(t, err)

	token, err := svc.GenerateAccessToken("user-123", "admin")
	require.NoError(t, err)

	current = current.Add(2 * time.Minute)

	_, err = svc.ValidateAccessToken(token)
	require.True(t, errors.Is(err, jwt.ErrTokenExpired))
}
