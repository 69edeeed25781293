package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the catalog routes with the Chi router.
// Public routes: /cards/*, /expansions
// Admin routes: /admin/cards, /admin/expansions
func RegisterRoutes(r chi.Router, handler *Handler, requireAdmin func(http.Handler) http.Handler) {
	r.Route("/cards", func(r chi.Router) {
		r.Get("/catalog", handler.Catalog)
		r.Post("/batch", handler.Batch)
		r.Get("/versions", handler.Versions)
	})
	r.Get("/expansions", handler.ListExpansions)

	r.Group(func(r chi.Router) {
		r.Use(requireAdmin)

		r.Get("/admin/cards", handler.AdminList)
		r.Post("/admin/cards", handler.CreateCard)
		r.Get("/admin/cards/{id}", handler.GetCard)
		r.Put("/admin/cards/{id}", handler.UpdateCard)
		r.Patch("/admin/cards/{id}/active", handler.SetActive)
		r.Post("/admin/expansions", handler.CreateExpansion)
	})
}
