package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tcglibrary/catalog/internal/api"
	"github.com/tcglibrary/catalog/internal/apperr"
	"github.com/tcglibrary/catalog/internal/auth"
	appctx "github.com/tcglibrary/catalog/internal/context"
	"github.com/tcglibrary/catalog/internal/repository"
)

// ErrAdminRequired is returned to authenticated non-admin callers
var ErrAdminRequired = apperr.Authorization("Admin privileges required")

// SessionResolver resolves a session token to the current session
type SessionResolver interface {
	GetCurrentSession(ctx context.Context, token string) (*auth.CurrentSession, error)
}

// AuthMiddleware authenticates requests from the session cookie
type AuthMiddleware struct {
	sessions SessionResolver
	logger   *slog.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware instance
func NewAuthMiddleware(sessions SessionResolver, logger *slog.Logger) *AuthMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthMiddleware{
		sessions: sessions,
		logger:   logger,
	}
}

// Authenticate rejects requests without a live session with 401
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current, err := m.sessions.GetCurrentSession(r.Context(), auth.TokenFromRequest(r))
		if err != nil {
			api.WriteAppError(w, m.logger, apperr.Internal("failed to load session", err))
			return
		}
		if current == nil {
			api.WriteAppError(w, m.logger, auth.ErrNotAuthenticated)
			return
		}

		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), current)))
	})
}

// Optional attaches the identity when a live session exists and otherwise
// lets the request through anonymously. Store failures are logged, not fatal.
func (m *AuthMiddleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.TokenFromRequest(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		current, err := m.sessions.GetCurrentSession(r.Context(), token)
		if err != nil {
			m.logger.Warn("Optional session lookup failed", "error", err)
		}
		if current == nil {
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), current)))
	})
}

// RequireAdmin authenticates the request and rejects non-admins with 403
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if role, _ := appctx.ExtractRole(r.Context()); role != repository.RoleAdmin {
			api.WriteAppError(w, m.logger, ErrAdminRequired)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func withSession(ctx context.Context, current *auth.CurrentSession) context.Context {
	return appctx.WithIdentity(ctx, appctx.Identity{
		UserID:   current.User.ID,
		Username: current.User.Username,
		Email:    current.User.Email,
		Role:     current.User.Role,
		Token:    current.Token,
	})
}

// ExtractUserID extracts the user ID from the request context
func ExtractUserID(ctx context.Context) (string, bool) {
	return appctx.ExtractUserID(ctx)
}

// ExtractEmail extracts the email from the request context
func ExtractEmail(ctx context.Context) (string, bool) {
	return appctx.ExtractEmail(ctx)
}
