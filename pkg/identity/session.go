package identity

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionCookieName is the cookie carrying the visitor session.
const SessionCookieName = "roast_session"

// SessionMaxAge is how long a session cookie lives.
const SessionMaxAge = 365 * 24 * time.Hour

type contextKey string

const sessionIDKey contextKey = "session_id"

// Sessions issues and verifies signed visitor session cookies.
type Sessions struct {
	secret []byte
	secure bool
}

// NewSessions creates a session manager signing cookies with secret.
// Secure marks cookies HTTPS-only.
func NewSessions(secret string, secure bool) *Sessions {
	return &Sessions{secret: []byte(secret), secure: secure}
}

// Middleware attaches the visitor's session id to the request context,
// issuing a new cookie when the request has none or its signature is bad.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := ""
		if c, err := r.Cookie(SessionCookieName); err == nil {
			sessionID = s.verify(c.Value)
		}

		if sessionID == "" {
			sessionID = uuid.New().String()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookieName,
				Value:    s.sign(sessionID),
				Path:     "/",
				MaxAge:   int(SessionMaxAge.Seconds()),
				HttpOnly: true,
				Secure:   s.secure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := WithSessionID(r.Context(), sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Sessions) sign(id string) string {
	return id + "." + s.mac(id)
}

// verify returns the session id in value, or "" when the signature does not match.
func (s *Sessions) verify(value string) string {
	id, sig, ok := strings.Cut(value, ".")
	if !ok || id == "" {
		return ""
	}
	if !hmac.Equal([]byte(sig), []byte(s.mac(id))) {
		return ""
	}
	return id
}

func (s *Sessions) mac(id string) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// WithSessionID stores a session id in ctx.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionID returns the session id stored in ctx, or "".
func SessionID(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey).(string); ok {
		return id
	}
	return ""
}

// FromRequest builds the Identity for r from its session and resolved address.
func (res *Resolver) FromRequest(r *http.Request) Identity {
	return New(SessionID(r.Context()), res.IPHash(r))
}
