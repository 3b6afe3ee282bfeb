package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// TerminalClaims identify the point-of-sale terminal calling the service.
type TerminalClaims struct {
	Terminal string `json:"terminal"`
	jwt.RegisteredClaims
}

// Caller is what authentication attaches to a request.
type Caller struct {
	Terminal string
	Method   string // "api_key" or "jwt"
}
