// Package auth defines the narrow identity contract the core depends on.
// Session management itself (login, registration, expiry policy) is external;
// the storefront only needs "who is the current actor" and "is it an admin".
package auth

import (
	"context"
	"time"
)

// Session holds the identity resolved from a validated bearer token.
type Session struct {
	ID        string
	TokenHash string
	UserID    string
	IsAdmin   bool
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Repository provides lookup of sessions by the HMAC-SHA256 hash of their
// bearer token.
type Repository interface {
	FindByTokenHash(ctx context.Context, hash string) (*Session, error)
}
