// Package auth resolves the caller's identity. Every component that needs
// the current user receives a Session explicitly, through the request
// context, instead of reading ambient global state.
package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotAuthenticated is returned when no valid session accompanies a
// request. Operations short-circuit on it before any mutation.
var ErrNotAuthenticated = errors.New("not authenticated")

// Session identifies the authenticated user of a request.
type Session struct {
	ID     string
	UserID string
	Admin  bool
}

// Repository looks up sessions by the HMAC hash of their bearer token.
type Repository interface {
	FindByTokenHash(ctx context.Context, hash string) (*Session, error)
}

type sessionKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session stored in ctx, or ErrNotAuthenticated.
func FromContext(ctx context.Context) (Session, error) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	if !ok || s.UserID == "" {
		return Session{}, ErrNotAuthenticated
	}
	return s, nil
}
