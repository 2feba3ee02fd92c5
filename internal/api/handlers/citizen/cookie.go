package citizen

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

const (
	sessionName  = "civic_dashboard"
	sessionIDKey = "dashboard_id"

	// MinCookieSecretLength is the shortest accepted cookie signing secret
	MinCookieSecretLength = 32
)

// SessionCookies keeps the dashboard session ID in a signed cookie
type SessionCookies struct {
	store sessions.Store
}

// NewSessionCookies creates a signed cookie store for dashboard session IDs
func NewSessionCookies(secret []byte, secure bool) (*SessionCookies, error) {
	if len(secret) < MinCookieSecretLength {
		return nil, fmt.Errorf("cookie secret must be at least %d bytes", MinCookieSecretLength)
	}

	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}

	return &SessionCookies{store: store}, nil
}

// ID returns the session ID carried by the request, if any
func (c *SessionCookies) ID(r *http.Request) (string, bool) {
	session, err := c.store.Get(r, sessionName)
	if err != nil {
		return "", false
	}
	id, ok := session.Values[sessionIDKey].(string)
	return id, ok && id != ""
}

// Ensure returns the request's session ID, issuing a new one if needed
func (c *SessionCookies) Ensure(w http.ResponseWriter, r *http.Request) (string, error) {
	// A cookie that fails to decode (rotated secret) is replaced
	session, _ := c.store.Get(r, sessionName)
	if id, ok := session.Values[sessionIDKey].(string); ok && id != "" {
		return id, nil
	}

	id := uuid.NewString()
	session.Values[sessionIDKey] = id
	if err := session.Save(r, w); err != nil {
		return "", fmt.Errorf("failed to save session cookie: %w", err)
	}
	return id, nil
}

// Clear expires the session cookie
func (c *SessionCookies) Clear(w http.ResponseWriter, r *http.Request) error {
	session, _ := c.store.Get(r, sessionName)
	session.Options.MaxAge = -1
	delete(session.Values, sessionIDKey)
	return session.Save(r, w)
}
