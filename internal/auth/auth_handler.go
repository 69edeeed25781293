package auth

import (
	"log/slog"
	"net/http"

	"github.com/tcglibrary/catalog/internal/api"
	appctx "github.com/tcglibrary/catalog/internal/context"
)

// AuthHandler handles HTTP requests for authentication endpoints
type AuthHandler struct {
	authService   *AuthService
	resetService  *ResetService
	secureCookies bool
	logger        *slog.Logger
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(authService *AuthService, resetService *ResetService, secureCookies bool, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		authService:   authService,
		resetService:  resetService,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// Register handles user registration
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}

	result, err := h.authService.Register(r.Context(), req)
	if err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}

	SetSessionCookie(w, result.Token, h.secureCookies)
	api.WriteSuccess(w, http.StatusCreated, map[string]string{
		"message":  "User registered successfully",
		"username": result.User.Username,
	})
}

// Login handles user authentication
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}

	result, err := h.authService.Login(r.Context(), req)
	if err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}

	SetSessionCookie(w, result.Token, h.secureCookies)
	api.WriteSuccess(w, http.StatusOK, map[string]string{
		"message":  "Login successful",
		"username": result.User.Username,
	})
}

// Logout revokes the current session and clears the cookie
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.Logout(r.Context(), TokenFromRequest(r)); err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}

	ClearSessionCookie(w, h.secureCookies)
	api.WriteSuccess(w, http.StatusOK, map[string]string{
		"message": "Logged out successfully",
	})
}

// GetMe returns the identity of the current session
// GET /auth/me
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := appctx.ExtractUserID(r.Context())
	if !ok {
		api.WriteAppError(w, h.logger, ErrNotAuthenticated)
		return
	}

	username, _ := r.Context().Value(appctx.UsernameKey).(string)
	email, _ := appctx.ExtractEmail(r.Context())
	role, _ := appctx.ExtractRole(r.Context())

	api.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"user": SessionUser{
			ID:       userID,
			Username: username,
			Email:    email,
			Role:     role,
		},
	})
}

// ForgotPassword starts the reset flow
// POST /auth/forgot-password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}

	if err := h.resetService.RequestReset(r.Context(), req); err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}

	api.WriteSuccess(w, http.StatusOK, map[string]string{
		"message": "If the email exists, a reset link has been sent",
	})
}

// ResetPassword completes the reset flow
// POST /auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}

	if err := h.resetService.ConsummateReset(r.Context(), req); err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}

	api.WriteSuccess(w, http.StatusOK, map[string]string{
		"message": "Password updated successfully",
	})
}
