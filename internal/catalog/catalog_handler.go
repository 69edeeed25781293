package catalog

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tcglibrary/catalog/internal/api"
	"github.com/tcglibrary/catalog/internal/apperr"
)

// Handler handles HTTP requests for cards and expansions
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a new catalog Handler
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

type batchRequest struct {
	IDs []string `json:"ids"`
}

type activeRequest struct {
	IsActive *bool `json:"is_active"`
}

func queryFromRequest(r *http.Request) Query {
	q := r.URL.Query()
	return Query{
		Expansion: q.Get("expansion"),
		Search:    q.Get("search"),
		Type:      q.Get("type"),
		Race:      q.Get("race"),
		Rarity:    q.Get("rarity"),
		Page:      api.QueryInt(r, "page", DefaultPage),
		Limit:     api.QueryInt(r, "limit", DefaultLimit),
	}
}

// Catalog lists active cards. page defaults to 1; limit defaults to 20 and
// anything above 100 is served as 100. Missing or non-positive values fall
// back to the defaults.
// GET /cards/catalog
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.Query(r.Context(), queryFromRequest(r))
	if err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, page)
}

// AdminList lists every card, inactive ones included
// GET /admin/cards
func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	q := queryFromRequest(r)
	q.IncludeInactive = true

	page, err := h.service.Query(r.Context(), q)
	if err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, page)
}

// Batch resolves a list of card ids
// POST /cards/batch
func (h *Handler) Batch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}

	cards, err := h.service.Batch(r.Context(), req.IDs)
	if err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]interface{}{"cards": cards})
}

// Versions lists the printings of one card name
// GET /cards/versions?name=
func (h *Handler) Versions(w http.ResponseWriter, r *http.Request) {
	cards, err := h.service.Versions(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, cards)
}

// GetCard returns one card for the admin editor
// GET /admin/cards/{id}
func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	id, ok := h.cardID(w, r)
	if !ok {
		return
	}
	card, err := h.service.GetCard(r.Context(), id)
	if err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, card)
}

// CreateCard handles POST /admin/cards
func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	var in CardInput
	if err := api.DecodeJSON(r, &in); err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}

	card, err := h.service.CreateCard(r.Context(), in)
	if err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, http.StatusCreated, card)
}

// UpdateCard handles PUT /admin/cards/{id}
func (h *Handler) UpdateCard(w http.ResponseWriter, r *http.Request) {
	id, ok := h.cardID(w, r)
	if !ok {
		return
	}

	var in CardInput
	if err := api.DecodeJSON(r, &in); err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}

	card, err := h.service.UpdateCard(r.Context(), id, in)
	if err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, card)
}

// SetActive handles PATCH /admin/cards/{id}/active
func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.cardID(w, r)
	if !ok {
		return
	}

	var req activeRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}
	if req.IsActive == nil {
		api.WriteAppError(w, h.logger, apperr.Field("is_active", "is_active is required"))
		return
	}

	if err := h.service.SetActive(r.Context(), id, *req.IsActive); err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"id":        id,
		"is_active": *req.IsActive,
	})
}

// ListExpansions handles GET /expansions
func (h *Handler) ListExpansions(w http.ResponseWriter, r *http.Request) {
	expansions, err := h.service.ListExpansions(r.Context())
	if err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, expansions)
}

// CreateExpansion handles POST /admin/expansions
func (h *Handler) CreateExpansion(w http.ResponseWriter, r *http.Request) {
	var in ExpansionInput
	if err := api.DecodeJSON(r, &in); err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}

	expansion, err := h.service.CreateExpansion(r.Context(), in)
	if err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, http.StatusCreated, expansion)
}

func (h *Handler) cardID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.WriteAppError(w, h.logger, apperr.Field("id", "invalid card id"))
		return uuid.Nil, false
	}
	return id, true
}
