package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/strhma/ukm-catalog/internal/domain/auth"
)

// Security authenticates requests from opaque bearer session tokens. Tokens
// are HMAC-SHA256 hashed with a server-side pepper before lookup, so the
// session table never stores a usable credential.
type Security struct {
	sessions auth.Repository
	pepper   []byte
	now      func() time.Time
}

// NewSecurity creates a Security with the given session repository and HMAC
// pepper.
func NewSecurity(sessions auth.Repository, pepper []byte) *Security {
	return &Security{
		sessions: sessions,
		pepper:   pepper,
		now:      time.Now,
	}
}

// hashToken computes the peppered HMAC-SHA256 of a bearer token.
func (s *Security) hashToken(token string) []byte {
	mac := hmac.New(sha256.New, s.pepper)
	mac.Write([]byte(token))
	return mac.Sum(nil)
}

// authenticate resolves the bearer token into a session, or nil when the
// request carries no valid credential.
func (s *Security) authenticate(r *http.Request) *auth.Session {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil
	}

	hash := s.hashToken(token)
	info, err := s.sessions.FindByTokenHash(r.Context(), hex.EncodeToString(hash))
	if err != nil {
		return nil
	}

	// Constant-time comparison guards against timing side-channels even
	// though the lookup already succeeded.
	stored, err := hex.DecodeString(info.TokenHash)
	if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
		return nil
	}

	if info.Expired(s.now()) {
		return nil
	}
	return info
}

// Require wraps next so only authenticated requests reach it. The validated
// session is injected into the request context.
func (s *Security) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := s.authenticate(r)
		if session == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":401,"message":"authentication required"}`))
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), session)))
	})
}

// RequireAdmin wraps next so only sessions carrying the admin scope reach it.
func (s *Security) RequireAdmin(next http.Handler) http.Handler {
	return s.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := auth.SessionFromContext(r.Context())
		if session == nil || !session.IsAdmin {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"code":403,"message":"admin access required"}`))
			return
		}
		next.ServeHTTP(w, r)
	}))
}
