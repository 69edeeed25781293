package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/tcglibrary/catalog/internal/apperr"
	"github.com/tcglibrary/catalog/internal/repository"
	"github.com/tcglibrary/catalog/internal/validation"
)

// resetTokenBytes is the entropy of a reset token before hex encoding
const resetTokenBytes = 32

// Reset flow errors
var (
	ErrInvalidResetToken = &apperr.Error{Kind: apperr.KindValidation, Code: CodeInvalidResetToken, Message: "Invalid or expired token"}
	ErrResetTokenExpired = &apperr.Error{Kind: apperr.KindValidation, Code: CodeResetTokenExpired, Message: "Token has expired, please request a new one"}
	ErrMailUnavailable   = apperr.Unavailable("Email service is not configured")
)

// ResetMailer delivers the reset token to the account owner
type ResetMailer interface {
	SendPasswordReset(ctx context.Context, to, token, displayName string) error
}

// ForgotPasswordRequest represents the forgot-password payload
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,simpleemail"`
}

// ResetPasswordRequest represents the reset-password payload
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

// ResetService implements the token-based credential reset protocol
type ResetService struct {
	userRepo          repository.UserRepository
	sessionRepo       repository.SessionRepository
	resetRepo         repository.ResetTokenRepository
	passwordValidator *PasswordValidator
	mailer            ResetMailer
	ttl               time.Duration
	now               func() time.Time
	logger            *slog.Logger
}

// NewResetService creates a new ResetService. A nil mailer disables the
// forgot-password flow.
func NewResetService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	resetRepo repository.ResetTokenRepository,
	passwordValidator *PasswordValidator,
	mailer ResetMailer,
	ttl time.Duration,
	logger *slog.Logger,
) *ResetService {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ResetService{
		userRepo:          userRepo,
		sessionRepo:       sessionRepo,
		resetRepo:         resetRepo,
		passwordValidator: passwordValidator,
		mailer:            mailer,
		ttl:               ttl,
		now:               func() time.Time { return time.Now().UTC() },
		logger:            logger,
	}
}

// RequestReset issues a reset token and mails it. An unknown email is
// reported as success so the response never reveals which accounts exist.
func (s *ResetService) RequestReset(ctx context.Context, req ForgotPasswordRequest) error {
	req.Email = strings.TrimSpace(req.Email)
	if err := validation.Struct(req); err != nil {
		return err
	}
	if s.mailer == nil {
		return ErrMailUnavailable
	}

	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil
		}
		return err
	}

	if err := s.resetRepo.DeleteByUserID(ctx, user.ID); err != nil {
		return err
	}

	raw, err := generateResetToken()
	if err != nil {
		return err
	}

	token := &repository.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: HashToken(raw),
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.resetRepo.Create(ctx, token); err != nil {
		return err
	}

	if err := s.mailer.SendPasswordReset(ctx, user.Email, raw, user.Username); err != nil {
		// No valid token may outlive a mail that was never delivered
		if delErr := s.resetRepo.Delete(ctx, token.ID); delErr != nil {
			s.logger.Error("Failed to roll back reset token", "user_id", user.ID, "error", delErr)
		}
		return apperr.Internal("failed to send reset email", err)
	}

	s.logger.Info("Password reset requested", "user_id", user.ID)
	return nil
}

// ConsummateReset sets a new password from a valid reset token. Every reset
// token and every session of the user is revoked afterwards.
func (s *ResetService) ConsummateReset(ctx context.Context, req ResetPasswordRequest) error {
	var passwordErr error
	if req.NewPassword != "" {
		passwordErr = s.passwordValidator.ValidatePassword("newPassword", req.NewPassword)
	}
	if err := validation.Merge(validation.Struct(req), passwordErr); err != nil {
		return err
	}

	token, err := s.resetRepo.GetByTokenHash(ctx, HashToken(req.Token))
	if err != nil {
		if errors.Is(err, repository.ErrResetTokenNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}

	if !s.now().Before(token.ExpiresAt) {
		if err := s.resetRepo.Delete(ctx, token.ID); err != nil {
			s.logger.Warn("Failed to delete expired reset token", "token_id", token.ID, "error", err)
		}
		return ErrResetTokenExpired
	}

	passwordHash, err := s.passwordValidator.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}

	if err := s.userRepo.UpdatePassword(ctx, token.UserID, passwordHash); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}

	if err := s.resetRepo.DeleteByUserID(ctx, token.UserID); err != nil {
		return err
	}
	if err := s.sessionRepo.DeleteByUserID(ctx, token.UserID); err != nil {
		return err
	}

	s.logger.Info("Password reset completed", "user_id", token.UserID)
	return nil
}

// CleanExpiredTokens deletes expired reset tokens. Failures are logged.
func (s *ResetService) CleanExpiredTokens(ctx context.Context) {
	n, err := s.resetRepo.CleanupExpired(ctx)
	if err != nil {
		s.logger.Warn("Failed to clean expired reset tokens", "error", err)
		return
	}
	if n > 0 {
		s.logger.Debug("Cleaned expired reset tokens", "count", n)
	}
}

func generateResetToken() (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
