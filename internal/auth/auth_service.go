package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tcglibrary/catalog/internal/apperr"
	"github.com/tcglibrary/catalog/internal/metrics"
	"github.com/tcglibrary/catalog/internal/repository"
	"github.com/tcglibrary/catalog/internal/validation"
)

// Error codes for API responses
const (
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeUsernameExists     = "USERNAME_EXISTS"
	CodeEmailExists        = "EMAIL_EXISTS"
	CodeInvalidResetToken  = "INVALID_RESET_TOKEN"
	CodeResetTokenExpired  = "RESET_TOKEN_EXPIRED"
)

// Auth service errors
var (
	ErrInvalidCredentials = &apperr.Error{Kind: apperr.KindAuthentication, Code: CodeInvalidCredentials, Message: "Invalid credentials"}
	ErrNotAuthenticated   = apperr.Authentication("Not authenticated")
	ErrUsernameTaken      = apperr.Conflict(CodeUsernameExists, "Username is already taken")
	ErrEmailTaken         = apperr.Conflict(CodeEmailExists, "An account with this email already exists")
)

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=50"`
	Email    string `json:"email" validate:"required,simpleemail"`
	Password string `json:"password" validate:"required"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	EmailOrUsername string `json:"emailOrUsername" validate:"required"`
	Password        string `json:"password" validate:"required"`
}

// SessionUser is the identity carried by a session token
type SessionUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// IsAdmin reports whether the user holds the ADMIN role
func (u SessionUser) IsAdmin() bool {
	return u.Role == repository.RoleAdmin
}

// AuthResult is returned by Register and Login
type AuthResult struct {
	User      SessionUser
	Token     string
	ExpiresAt time.Time
}

// CurrentSession is a verified token backed by a live session row
type CurrentSession struct {
	Session *repository.Session
	User    SessionUser
	Token   string
}

// AuthService handles authentication business logic
type AuthService struct {
	userRepo          repository.UserRepository
	sessionRepo       repository.SessionRepository
	tokenService      *TokenService
	passwordValidator *PasswordValidator
	logger            *slog.Logger
}

// NewAuthService creates a new AuthService instance
func NewAuthService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	tokenService *TokenService,
	passwordValidator *PasswordValidator,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		userRepo:          userRepo,
		sessionRepo:       sessionRepo,
		tokenService:      tokenService,
		passwordValidator: passwordValidator,
		logger:            logger,
	}
}

// Register creates a new account and signs it in
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	var passwordErr error
	if req.Password != "" {
		passwordErr = s.passwordValidator.ValidatePassword("password", req.Password)
	}
	if err := validation.Merge(validation.Struct(req), passwordErr); err != nil {
		return nil, err
	}

	exists, err := s.userRepo.UsernameExists(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUsernameTaken
	}

	exists, err = s.userRepo.EmailExists(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailTaken
	}

	passwordHash, err := s.passwordValidator.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &repository.User{
		ID:           uuid.New(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: passwordHash,
		Role:         repository.RoleUser,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrUsernameAlreadyExists):
			return nil, ErrUsernameTaken
		case errors.Is(err, repository.ErrEmailAlreadyExists):
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.logger.Info("User registered", "user_id", user.ID, "username", user.Username)

	return s.issueSession(ctx, user)
}

// Login authenticates a user. Any prior session of the user is revoked
// before the new one is created.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByEmailOrUsername(ctx, req.EmailOrUsername)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			metrics.AuthLoginsTotal.WithLabelValues("invalid_credentials").Inc()
			return nil, ErrInvalidCredentials
		}
		metrics.AuthLoginsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if err := s.passwordValidator.VerifyPassword(req.Password, user.PasswordHash); err != nil {
		metrics.AuthLoginsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, ErrInvalidCredentials
	}

	if err := s.sessionRepo.DeleteByUserID(ctx, user.ID); err != nil {
		metrics.AuthLoginsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	result, err := s.issueSession(ctx, user)
	if err != nil {
		metrics.AuthLoginsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.AuthLoginsTotal.WithLabelValues("success").Inc()

	// Maintenance only; the response does not wait for it
	go s.CleanExpiredSessions(context.WithoutCancel(ctx))

	return result, nil
}

// Logout revokes the session behind token. Unknown or empty tokens are not
// an error.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.DeleteSession(ctx, token)
}

// GetCurrentSession resolves a bearer token to a live session. It returns
// nil without error when the token is malformed, expired, revoked or has no
// session row; an error means the session store could not be read.
func (s *AuthService) GetCurrentSession(ctx context.Context, token string) (*CurrentSession, error) {
	if token == "" {
		return nil, nil
	}

	claims, err := s.tokenService.ValidateToken(token)
	if err != nil {
		return nil, nil
	}

	session, err := s.sessionRepo.GetByTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if session.UserID.String() != claims.UserID() || !time.Now().UTC().Before(session.ExpiresAt) {
		return nil, nil
	}

	return &CurrentSession{
		Session: session,
		Token:   token,
		User: SessionUser{
			ID:       claims.UserID(),
			Username: claims.Username,
			Email:    claims.Email,
			Role:     claims.Role,
		},
	}, nil
}

// RequireAuth returns the authenticated user or ErrNotAuthenticated.
// Store failures are reported as internal errors, never as 401.
func (s *AuthService) RequireAuth(ctx context.Context, token string) (*SessionUser, error) {
	current, err := s.GetCurrentSession(ctx, token)
	if err != nil {
		return nil, apperr.Internal("failed to load session", err)
	}
	if current == nil {
		return nil, ErrNotAuthenticated
	}
	return &current.User, nil
}

// CreateSession persists the session row for a freshly minted token
func (s *AuthService) CreateSession(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	return s.sessionRepo.Create(ctx, &repository.Session{
		UserID:    userID,
		TokenHash: HashToken(token),
		ExpiresAt: expiresAt.UTC(),
	})
}

// DeleteSession removes the session behind token; a missing row is not an error
func (s *AuthService) DeleteSession(ctx context.Context, token string) error {
	err := s.sessionRepo.DeleteByTokenHash(ctx, HashToken(token))
	if err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		return err
	}
	return nil
}

// CleanExpiredSessions deletes expired session rows. Failures are logged.
func (s *AuthService) CleanExpiredSessions(ctx context.Context) {
	n, err := s.sessionRepo.CleanupExpiredSessions(ctx)
	if err != nil {
		s.logger.Warn("Failed to clean expired sessions", "error", err)
		return
	}
	if n > 0 {
		metrics.AuthSessionsSwept.Add(float64(n))
		s.logger.Debug("Cleaned expired sessions", "count", n)
	}
}

func (s *AuthService) issueSession(ctx context.Context, user *repository.User) (*AuthResult, error) {
	token, expiresAt, err := s.tokenService.GenerateToken(user)
	if err != nil {
		return nil, err
	}

	if err := s.CreateSession(ctx, user.ID, token, expiresAt); err != nil {
		return nil, err
	}

	return &AuthResult{
		User: SessionUser{
			ID:       user.ID.String(),
			Username: user.Username,
			Email:    user.Email,
			Role:     user.Role,
		},
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}
