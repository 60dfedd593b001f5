// Package identity resolves a caller to a user id.
//
// Two strategies exist: JWT verifies a bearer token issued by the external
// identity provider; Static answers with a fixed id and backs the
// deliberately anonymous prototype endpoints. Which one guards a route is
// wiring, never an inline placeholder string.
package identity

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/insightdeck/insightdeck/internal/apperr"
)

type Resolver interface {
	// Resolve maps an Authorization header value to a user id.
	Resolve(authHeader string) (string, error)
}

type JWT struct {
	secret []byte
}

func NewJWT(secret string) *JWT {
	return &JWT{secret: []byte(secret)}
}

func (r *JWT) Resolve(authHeader string) (string, error) {
	raw := strings.TrimSpace(authHeader)
	if raw == "" {
		return "", apperr.ErrUnauthorized
	}
	raw = strings.TrimPrefix(raw, "Bearer ")
	raw = strings.TrimPrefix(raw, "bearer ")
	if raw == "" {
		return "", apperr.ErrUnauthorized
	}

	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperr.ErrUnauthorized
		}
		return r.secret, nil
	})
	if err != nil || !tok.Valid {
		return "", apperr.ErrUnauthorized
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", apperr.ErrUnauthorized
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", apperr.ErrUnauthorized
	}
	return sub, nil
}

// Static resolves every request to one configured identity.
type Static struct {
	UserID string
}

func NewStatic(userID string) *Static {
	return &Static{UserID: userID}
}

func (r *Static) Resolve(string) (string, error) {
	if r.UserID == "" {
		return "", apperr.ErrUnauthorized
	}
	return r.UserID, nil
}
