package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/liamwears/marquee/internal/browse"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// SessionIDContextKey is the key for storing the session ID in context
	SessionIDContextKey ContextKey = "sessionID"
	// ControllerContextKey is the key for storing the session's browse controller in context
	ControllerContextKey ContextKey = "controller"
)

// SessionRegistry hands out the browse controller of a session
type SessionRegistry interface {
	GetOrCreate(sessionID string) (*browse.Controller, bool)
}

// SessionMiddleware attaches a browsing session to every request. Sessions
// are identified by a cookie holding a random UUID.
type SessionMiddleware struct {
	registry     SessionRegistry
	cookieName   string
	isProduction bool
}

// NewSessionMiddleware creates a new session middleware
func NewSessionMiddleware(registry SessionRegistry, cookieName string, isProduction bool) *SessionMiddleware {
	if cookieName == "" {
		cookieName = "session"
	}
	return &SessionMiddleware{
		registry:     registry,
		cookieName:   cookieName,
		isProduction: isProduction,
	}
}

// Attach resolves the session cookie, issuing a new one when it is missing
// or malformed, and stores the session's controller in the request context.
func (m *SessionMiddleware) Attach(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := ""
		if cookie, err := r.Cookie(m.cookieName); err == nil {
			if id, err := uuid.Parse(cookie.Value); err == nil {
				sessionID = id.String()
			}
		}
		if sessionID == "" {
			sessionID = uuid.NewString()
			m.SetSessionCookie(w, sessionID)
		}

		controller, _ := m.registry.GetOrCreate(sessionID)

		next.ServeHTTP(w, r.WithContext(WithController(r.Context(), sessionID, controller)))
	})
}

// SessionIDFromContext retrieves the session ID from request context
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(SessionIDContextKey).(string)
	return id, ok
}

// ControllerFromContext retrieves the session's browse controller from request context
func ControllerFromContext(ctx context.Context) (*browse.Controller, bool) {
	c, ok := ctx.Value(ControllerContextKey).(*browse.Controller)
	return c, ok && c != nil
}

// WithController returns a copy of ctx carrying sessionID and c
func WithController(ctx context.Context, sessionID string, c *browse.Controller) context.Context {
	ctx = context.WithValue(ctx, SessionIDContextKey, sessionID)
	return context.WithValue(ctx, ControllerContextKey, c)
}

// SetSessionCookie sets a session cookie
func (m *SessionMiddleware) SetSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}
