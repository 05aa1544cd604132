package jwtkit

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired  = errors.New("token has expired")
	ErrMissingExpiry = errors.New("expiration claim missing or invalid")
	ErrNotYetValid   = errors.New("token not valid yet")
	ErrIssuedFuture  = errors.New("token issued in the future")
)

// ValidateStandardClaims requires exp and checks nbf and iat when present.
func ValidateStandardClaims(claims jwt.MapClaims) error {
	now := time.Now()

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return ErrMissingExpiry
	}
	if now.After(exp.Time) {
		return ErrTokenExpired
	}

	if nbf, err := claims.GetNotBefore(); err == nil && nbf != nil && now.Before(nbf.Time) {
		return ErrNotYetValid
	}

	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil && now.Before(iat.Add(-time.Minute)) {
		return ErrIssuedFuture
	}

	return nil
}
