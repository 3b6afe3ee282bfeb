package services

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/temcen/crosssale/internal/config"
	"github.com/temcen/crosssale/pkg/models"
)

const tokenIssuer = "github.com/temcen/crosssale"

var (
	ErrInvalidAPIKey = errors.New("invalid API key")
	ErrNoJWTSecret   = errors.New("auth.jwt_secret is not configured")
)

type AuthService struct {
	tokenTTL  time.Duration
	apiKeys   []string
	jwtSecret []byte
	logger    *logrus.Logger
	now       func() time.Time
}

func NewAuthService(cfg config.AuthConfig, logger *logrus.Logger) *AuthService {
	return &AuthService{
		tokenTTL:  cfg.TokenTTL,
		apiKeys:   cfg.APIKeys,
		jwtSecret: []byte(cfg.JWTSecret),
		logger:    logger,
		now:       time.Now,
	}
}

// GenerateToken signs an HS256 token for terminal.
func (s *AuthService) GenerateToken(terminal string) (string, time.Time, error) {
	if len(s.jwtSecret) == 0 {
		return "", time.Time{}, ErrNoJWTSecret
	}

	now := s.now()
	expiresAt := now.Add(s.tokenTTL)
	claims := &models.TerminalClaims{
		Terminal: terminal,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   terminal,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"terminal":   terminal,
		"expires_at": expiresAt,
	}).Debug("Token issued")

	return tokenString, expiresAt, nil
}

func (s *AuthService) ValidateToken(tokenString string) (*models.TerminalClaims, error) {
	if len(s.jwtSecret) == 0 {
		return nil, ErrNoJWTSecret
	}

	token, err := jwt.ParseWithClaims(tokenString, &models.TerminalClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(s.now))

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*models.TerminalClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}

// ValidateAPIKey checks key against the configured static keys.
func (s *AuthService) ValidateAPIKey(key string) error {
	for _, candidate := range s.apiKeys {
		if candidate != "" && subtle.ConstantTimeCompare([]byte(candidate), []byte(key)) == 1 {
			return nil
		}
	}
	return ErrInvalidAPIKey
}

// Authenticate resolves a bearer credential. Credentials without a dot are
// treated as API keys, anything else as a JWT.
func (s *AuthService) Authenticate(credential string) (models.Caller, error) {
	if !strings.Contains(credential, ".") {
		if err := s.ValidateAPIKey(credential); err != nil {
			return models.Caller{}, err
		}
		return models.Caller{Terminal: "api-key", Method: "api_key"}, nil
	}

	claims, err := s.ValidateToken(credential)
	if err != nil {
		return models.Caller{}, err
	}
	return models.Caller{Terminal: claims.Terminal, Method: "jwt"}, nil
}
