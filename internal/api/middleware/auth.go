package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/UjjawalMishra93/civic-issue-system/internal/core/users"
)

// Context keys for storing user information
type contextKey string

const (
	UserKey       contextKey = "user"
	roleClaim                = "app_role"
	emailClaim               = "email"
	clockSkewSlop            = 30 * time.Second
)

// JWTAuthMiddleware authenticates requests with HS256 access tokens issued by
// the hosted auth backend using the project's JWT secret
type JWTAuthMiddleware struct {
	logger *slog.Logger
	issuer string
	secret []byte
}

// NewJWTAuthMiddleware creates a new auth middleware.
// issuer may be empty to skip the iss check.
func NewJWTAuthMiddleware(secret []byte, issuer string, logger *slog.Logger) *JWTAuthMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &JWTAuthMiddleware{
		secret: secret,
		issuer: issuer,
		logger: logger,
	}
}

// RequireAuth rejects requests without a valid bearer token with 401
func (m *JWTAuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeAuthError(w, "Missing Authorization header")
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeAuthError(w, "Invalid Authorization header format. Expected: Bearer <token>")
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		user, err := m.verify(token)
		if err != nil {
			m.logger.Warn("authentication failed",
				"ip", r.RemoteAddr,
				"method", r.Method,
				"path", r.URL.Path,
				"error", err)
			writeAuthError(w, "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// OptionalAuth loads the user if a valid token is present but never rejects.
// Handlers behind it decide what an anonymous caller may do.
func (m *JWTAuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			next.ServeHTTP(w, r)
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		user, err := m.verify(token)
		if err != nil {
			m.logger.Debug("optional auth failed", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// verify checks signature, expiry and issuer and maps claims to a User
func (m *JWTAuthMiddleware) verify(token string) (*users.User, error) {
	parsed, err := jwt.Parse([]byte(token),
		jwt.WithKey(jwa.HS256, m.secret),
		jwt.WithValidate(false),
	)
	if err != nil {
		return nil, err
	}

	opts := []jwt.ValidateOption{jwt.WithAcceptableSkew(clockSkewSlop)}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if err := jwt.Validate(parsed, opts...); err != nil {
		return nil, err
	}

	if parsed.Subject() == "" {
		return nil, errMissingSubject
	}

	user := &users.User{
		ID:   parsed.Subject(),
		Role: users.RoleCitizen,
	}
	if email, ok := parsed.Get(emailClaim); ok {
		user.Email, _ = email.(string)
	}
	if role, ok := parsed.Get(roleClaim); ok {
		switch r, _ := role.(string); users.Role(r) {
		case users.RoleAdmin, users.RoleStaff, users.RoleCitizen:
			user.Role = users.Role(r)
		}
	}
	return user, nil
}

type authError string

func (e authError) Error() string { return string(e) }

const errMissingSubject = authError("token has no subject")

func withUser(ctx context.Context, user *users.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// GetUser extracts the authenticated user from the request context
// Returns nil if not authenticated
func GetUser(r *http.Request) *users.User {
	return UserFromContext(r.Context())
}

// UserFromContext extracts the authenticated user from a context
func UserFromContext(ctx context.Context) *users.User {
	user, _ := ctx.Value(UserKey).(*users.User)
	return user
}

// SetTestUser sets the user in the context for testing purposes
// This function should ONLY be used in tests to mock authenticated users
func SetTestUser(ctx context.Context, user *users.User) context.Context {
	return withUser(ctx, user)
}

// ContextAuthProvider resolves the current user from the request context
// populated by JWTAuthMiddleware
type ContextAuthProvider struct{}

// CurrentUser returns the authenticated user or nil
func (ContextAuthProvider) CurrentUser(ctx context.Context) *users.User {
	return UserFromContext(ctx)
}

// writeAuthError writes a JSON error response for authentication failures
func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "AuthRequired",
		"message": message,
	})
}
