package middleware

import (
	"context"
	"net/http"

	"github.com/khojghar/khojghar-api/internal/http/response"
	"github.com/khojghar/khojghar-api/pkg/auth"
	"github.com/khojghar/khojghar-api/pkg/logger"
)

type ctxKey string

const ctxAuth ctxKey = "auth"

// AuthContext is the verified caller identity, populated once at the
// boundary from the session cookie and never re-derived mid-handler.
// The cookie is the only identity source; header or body fallbacks are
// deliberately not supported.
type AuthContext struct {
	AccountID string
	Email     string
	Role      string
}

type Sessions struct {
	Secret     string
	CookieName string
}

func (s *Sessions) fromCookie(r *http.Request) *AuthContext {
	c, err := r.Cookie(s.CookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	claims, err := auth.Parse(c.Value, s.Secret)
	if err != nil {
		return nil
	}
	return &AuthContext{AccountID: claims.ID, Email: claims.Email, Role: claims.Role}
}

// Require rejects requests without a valid, unexpired session.
func (s *Sessions) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac := s.fromCookie(r)
		if ac == nil {
			response.Unauthorized(w, "not authenticated")
			return
		}
		ctx := context.WithValue(r.Context(), ctxAuth, ac)
		ctx = context.WithValue(ctx, logger.AccountIDKey, ac.AccountID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Optional populates the AuthContext when a valid session is present
// and passes the request through anonymously otherwise. Used only by
// routes whose contract is 200-with-null for anonymous callers.
func (s *Sessions) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ac := s.fromCookie(r); ac != nil {
			ctx := context.WithValue(r.Context(), ctxAuth, ac)
			ctx = context.WithValue(ctx, logger.AccountIDKey, ac.AccountID)
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// Auth returns the caller identity placed in the context by Require or
// Optional, or nil for anonymous requests.
func Auth(r *http.Request) *AuthContext {
	if v := r.Context().Value(ctxAuth); v != nil {
		if ac, ok := v.(*AuthContext); ok {
			return ac
		}
	}
	return nil
}
