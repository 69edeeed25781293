package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Middleware is an interface for HTTP middleware
type Middleware func(http.Handler) http.Handler

// RouteMiddleware groups the middleware the auth routes depend on
type RouteMiddleware struct {
	Authenticate Middleware
	LoginLimit   Middleware
	ForgotLimit  Middleware
}

func passthrough(next http.Handler) http.Handler { return next }

func orPassthrough(m Middleware) Middleware {
	if m == nil {
		return passthrough
	}
	return m
}

// RegisterRoutes registers all authentication routes with the Chi router
// Public routes: /register, /login, /logout, /forgot-password, /reset-password
// Protected routes: /me
func RegisterRoutes(r chi.Router, handler *AuthHandler, mw RouteMiddleware) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", handler.Register)
		r.With(orPassthrough(mw.LoginLimit)).Post("/login", handler.Login)
		r.Post("/logout", handler.Logout)
		r.With(orPassthrough(mw.ForgotLimit)).Post("/forgot-password", handler.ForgotPassword)
		r.Post("/reset-password", handler.ResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(orPassthrough(mw.Authenticate))
			r.Get("/me", handler.GetMe)
		})
	})
}
