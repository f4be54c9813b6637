package jwt_test

import (
	"context"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-mcp-gateway/internal/errors"
	"github.com/jrsteele09/go-mcp-gateway/token/jwt"
	"github.com/stretchr/testify/require"
)

var hmacSecret = []byte("test-signing-secret")

func signHS256(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	s, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(hmacSecret)
	require.NoError(t, err)
	return s
}

func hmacKeyfunc(*jwtlib.Token) (any, error) {
	return hmacSecret, nil
}

func TestUnverifiedSubject(t *testing.T) {
	t.Run("user_id wins over sub", func(t *testing.T) {
		raw := signHS256(t, jwtlib.MapClaims{"user_id": "u-42", "sub": "auth0|x"})
		sub, err := jwt.UnverifiedSubject(raw)
		require.NoError(t, err)
		require.Equal(t, "u-42", sub)
	})

	t.Run("numeric user_id", func(t *testing.T) {
		raw := signHS256(t, jwtlib.MapClaims{"user_id": 1234})
		sub, err := jwt.UnverifiedSubject(raw)
		require.NoError(t, err)
		require.Equal(t, "1234", sub)
	})

	t.Run("falls back to sub", func(t *testing.T) {
		raw := signHS256(t, jwtlib.MapClaims{"sub": "s-1"})
		sub, err := jwt.UnverifiedSubject(raw)
		require.NoError(t, err)
		require.Equal(t, "s-1", sub)
	})

	t.Run("no subject", func(t *testing.T) {
		raw := signHS256(t, jwtlib.MapClaims{"email": "a@b.c"})
		_, err := jwt.UnverifiedSubject(raw)
		require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})

	t.Run("not a jwt", func(t *testing.T) {
		_, err := jwt.UnverifiedSubject("opaque-token")
		require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})
}

func TestInspector_Resolve(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	inspector := jwt.NewInspector(hmacKeyfunc,
		jwt.WithAlgorithms("HS256"),
		jwt.WithIssuer("https://idp.example"),
		jwt.WithNowTime(func() time.Time { return now }),
	)
	ctx := context.Background()

	t.Run("valid token", func(t *testing.T) {
		raw := signHS256(t, jwtlib.MapClaims{
			"iss":   "https://idp.example",
			"sub":   "user-1",
			"email": "user@example.com",
			"scope": "mcp tools",
			"exp":   now.Add(time.Hour).Unix(),
		})
		id, err := inspector.Resolve(ctx, raw)
		require.NoError(t, err)
		require.Equal(t, "user-1", id.Subject)
		require.Equal(t, "user@example.com", id.Email)
		require.Equal(t, []string{"mcp", "tools"}, id.Scopes)
		require.Equal(t, raw, id.Raw)
	})

	t.Run("expired token", func(t *testing.T) {
		raw := signHS256(t, jwtlib.MapClaims{
			"iss": "https://idp.example",
			"sub": "user-1",
			"exp": now.Add(-time.Hour).Unix(),
		})
		_, err := inspector.Resolve(ctx, raw)
		require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		raw := signHS256(t, jwtlib.MapClaims{
			"iss": "https://other.example",
			"sub": "user-1",
			"exp": now.Add(time.Hour).Unix(),
		})
		_, err := inspector.Resolve(ctx, raw)
		require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})

	t.Run("bad signature", func(t *testing.T) {
		raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
			"iss": "https://idp.example",
			"sub": "user-1",
			"exp": now.Add(time.Hour).Unix(),
		}).SignedString([]byte("another-secret"))
		require.NoError(t, err)
		_, err = inspector.Resolve(ctx, raw)
		require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := inspector.Resolve(ctx, " ")
		require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})
}
