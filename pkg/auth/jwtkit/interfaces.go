package jwtkit

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Validator checks a bearer token and returns its claims.
type Validator interface {
	Validate(tokenStr string) (jwt.MapClaims, error)
}

// Signer mints bearer tokens valid for ttl.
type Signer interface {
	CreateToken(claims jwt.MapClaims, ttl time.Duration) (string, error)
}
