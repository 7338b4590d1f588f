// Package auth verifies client credential tokens and resolves the
// identity-to-color and color-to-name mappings the session core needs.
package auth

import (
	"context"
	"errors"
)

// Identity is the result of a successful token verification.
type Identity struct {
	UserID string
	Name   string
}

var (
	ErrBadToken    = errors.New("invalid credential token")
	ErrUnknownUser = errors.New("no color registered for user")
	ErrUnavailable = errors.New("identity backend unavailable")
)

// Authenticator verifies an opaque credential token.
type Authenticator interface {
	Authenticate(token string) (Identity, error)
}

// Directory resolves user colors and display names. ColorOf may hit a
// remote backend; DisplayNameOf is a cache lookup and returns "" for
// colors it has never seen.
type Directory interface {
	ColorOf(ctx context.Context, userID string) (string, error)
	DisplayNameOf(color string) string
	RecordName(userID, name string)
}
