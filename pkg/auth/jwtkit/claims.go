package jwtkit

import (
	"fmt"
	"strings"

	"github.com/fgrzl/claims"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ClaimSubject = "sub"
	ClaimScopes  = "scopes"
)

// NewBridgeClaims builds the claims of a pubsub bridge token.
func NewBridgeClaims(subject string, scopes ...string) jwt.MapClaims {
	list := make([]any, 0, len(scopes))
	for _, s := range scopes {
		list = append(list, s)
	}
	return jwt.MapClaims{
		ClaimSubject: subject,
		ClaimScopes:  list,
	}
}

// Scopes reads the scopes claim, accepting a list or a comma or space
// separated string.
func Scopes(raw jwt.MapClaims) []string {
	switch v := raw[ClaimScopes].(type) {
	case string:
		return strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })
	case []any:
		scopes := make([]string, 0, len(v))
		for _, item := range v {
			scopes = append(scopes, fmt.Sprint(item))
		}
		return scopes
	default:
		return nil
	}
}

func NewClaimsPrincipal(raw jwt.MapClaims) claims.Principal {
	claimsMap := make(map[string]claims.Claim, len(raw))

	for k, v := range raw {
		switch val := v.(type) {
		case string:
			claimsMap[k] = claims.NewClaim(k, val)
		case float64:
			claimsMap[k] = claims.NewClaim(k, fmt.Sprintf("%v", val))
		case []any:
			strs := make([]string, 0, len(val))
			for _, item := range val {
				strs = append(strs, fmt.Sprint(item))
			}
			claimsMap[k] = claims.NewClaim(k, strings.Join(strs, ","))
		case nil:
		default:
			claimsMap[k] = claims.NewClaim(k, fmt.Sprint(val))
		}
	}

	return claims.NewClaimsPrincipal(claimsMap)
}
