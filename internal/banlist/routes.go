package banlist

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the banlist and rotation routes.
// Public routes: /banlist, /rotation
// Admin routes: /admin/banlist, /admin/rotation
func RegisterRoutes(r chi.Router, handler *Handler, requireAdmin func(http.Handler) http.Handler) {
	r.Get("/banlist", handler.Banlist)
	r.Get("/rotation", handler.Rotation)

	r.Group(func(r chi.Router) {
		r.Use(requireAdmin)

		r.Get("/admin/banlist", handler.ListBanlist)
		r.Post("/admin/banlist", handler.UpsertBanlist)
		r.Delete("/admin/banlist", handler.DeleteBanlist)

		r.Get("/admin/rotation", handler.ListRotation)
		r.Post("/admin/rotation", handler.UpsertRotation)
		r.Delete("/admin/rotation", handler.DeleteRotation)
	})
}
