package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

// ErrMissing indicates no session was attached to the request or context.
var ErrMissing = errors.New("session missing")

// Session carries the backend-issued authentication token for one operator.
// It is created at login, passed explicitly into every backend call, and
// discarded at logout. There is no ambient token storage.
type Session struct {
	Token    string
	Username string
	IssuedAt time.Time
}

// Valid reports whether the session carries a token.
func (s *Session) Valid() bool {
	return s != nil && strings.TrimSpace(s.Token) != ""
}

// AuthorizationValue renders the header value the backend expects.
func (s *Session) AuthorizationValue() string {
	return "Token " + s.Token
}

type contextKey struct{}

// WithSession attaches the session to the context.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext extracts the session placed by the middleware.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	if !ok || !s.Valid() {
		return nil, false
	}
	return s, true
}

// FromRequest builds a session from the Authorization header. Both the
// backend's "Token <value>" scheme and plain "Bearer <value>" are accepted.
func FromRequest(r *http.Request) (*Session, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return nil, ErrMissing
	}
	for _, scheme := range []string{"Token ", "Bearer "} {
		if len(header) > len(scheme) && strings.EqualFold(header[:len(scheme)], scheme) {
			token := strings.TrimSpace(header[len(scheme):])
			if token == "" {
				return nil, ErrMissing
			}
			return &Session{Token: token, IssuedAt: time.Now()}, nil
		}
	}
	return nil, ErrMissing
}

// Middleware extracts the request session into the context. Requests without
// a token are rejected; the login endpoint is mounted outside this guard.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := FromRequest(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"missing or malformed token"}}`))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
	})
}
