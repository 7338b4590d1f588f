package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type idClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// JWTAuthenticator verifies HS256 tokens carrying user_id and name
// claims for the configured audience.
type JWTAuthenticator struct {
	secret   []byte
	audience string
}

func NewJWTAuthenticator(secret []byte, audience string) *JWTAuthenticator {
	return &JWTAuthenticator{secret: secret, audience: audience}
}

func (a *JWTAuthenticator) Authenticate(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrBadToken
	}

	var claims idClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithAudience(a.audience),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrBadToken, err)
	}
	if claims.UserID == "" {
		return Identity{}, fmt.Errorf("%w: missing user_id claim", ErrBadToken)
	}
	return Identity{UserID: claims.UserID, Name: claims.Name}, nil
}
