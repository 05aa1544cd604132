package jwtkit

import (
	"errors"
	"maps"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrMissingSecret = errors.New("jwtkit: missing signing secret")

type HMAC256Signer struct {
	Secret []byte
}

// CreateToken signs a copy of claims. iat is set to now and exp to now+ttl
// unless the caller already provided them.
func (tm *HMAC256Signer) CreateToken(claims jwt.MapClaims, ttl time.Duration) (string, error) {
	if len(tm.Secret) == 0 {
		return "", ErrMissingSecret
	}

	signed := maps.Clone(claims)
	if signed == nil {
		signed = jwt.MapClaims{}
	}
	now := time.Now()
	if _, ok := signed["iat"]; !ok {
		signed["iat"] = now.Unix()
	}
	if _, ok := signed["exp"]; !ok {
		signed["exp"] = now.Add(ttl).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, signed)
	return token.SignedString(tm.Secret)
}
