package deck

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Middleware is an HTTP middleware
type Middleware func(http.Handler) http.Handler

// RouteMiddleware groups the session middleware the deck routes depend on
type RouteMiddleware struct {
	Authenticate Middleware
	Optional     Middleware
}

func passthrough(next http.Handler) http.Handler { return next }

func orPassthrough(m Middleware) Middleware {
	if m == nil {
		return passthrough
	}
	return m
}

// RegisterRoutes registers the deck routes with the Chi router.
// Public routes (viewer optional): /decks/community, GET /decks/{id}
// Protected routes: everything else under /decks
func RegisterRoutes(r chi.Router, handler *Handler, mw RouteMiddleware) {
	r.Route("/decks", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(orPassthrough(mw.Optional))
			r.Get("/community", handler.Community)
			r.Get("/{id}", handler.Get)
		})

		r.Group(func(r chi.Router) {
			r.Use(orPassthrough(mw.Authenticate))
			r.Post("/", handler.Create)
			r.Get("/", handler.ListMine)
			r.Put("/{id}", handler.Update)
			r.Delete("/{id}", handler.Delete)
			r.Post("/{id}/copy", handler.Copy)
			r.Post("/{id}/like", handler.ToggleLike)
			r.Get("/{id}/like", handler.LikeStatus)
		})
	})
}
