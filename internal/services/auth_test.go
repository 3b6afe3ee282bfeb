package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/crosssale/internal/config"
	"github.com/temcen/crosssale/pkg/models"
)

func newTestAuthService(secret string) *AuthService {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	return NewAuthService(config.AuthConfig{
		JWTSecret: secret,
		TokenTTL:  time.Hour,
		APIKeys:   []string{"pos-key-1", ""},
	}, logger)
}

func TestAuthService_TokenRoundTrip(t *testing.T) {
	svc := newTestAuthService("s3cret")

	token, expiresAt, err := svc.GenerateToken("till-04")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "till-04", claims.Terminal)
	assert.Equal(t, "till-04", claims.Subject)

	caller, err := svc.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, models.Caller{Terminal: "till-04", Method: "jwt"}, caller)
}

func TestAuthService_ValidateToken_Rejects(t *testing.T) {
	svc := newTestAuthService("s3cret")

	t.Run("wrong secret", func(t *testing.T) {
		token, _, err := newTestAuthService("other").GenerateToken("till-04")
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		token, _, err := svc.GenerateToken("till-04")
		require.NoError(t, err)

		svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { svc.now = time.Now }()

		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("foreign issuer", func(t *testing.T) {
		claims := &models.TerminalClaims{
			Terminal: "till-04",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "someone-else",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s3cret"))
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("no secret configured", func(t *testing.T) {
		_, _, err := newTestAuthService("").GenerateToken("till-04")
		assert.ErrorIs(t, err, ErrNoJWTSecret)
	})
}

func TestAuthService_APIKeys(t *testing.T) {
	svc := newTestAuthService("s3cret")

	caller, err := svc.Authenticate("pos-key-1")
	require.NoError(t, err)
	assert.Equal(t, "api_key", caller.Method)

	_, err = svc.Authenticate("pos-key-2")
	assert.ErrorIs(t, err, ErrInvalidAPIKey)

	// an empty configured key never matches
	_, err = svc.Authenticate("")
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
}
