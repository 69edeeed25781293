package deck

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tcglibrary/catalog/internal/api"
	"github.com/tcglibrary/catalog/internal/apperr"
	"github.com/tcglibrary/catalog/internal/auth"
	appctx "github.com/tcglibrary/catalog/internal/context"
)

// Handler handles HTTP requests for decks
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a new deck Handler
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// viewer returns the caller's id, or uuid.Nil for anonymous requests
func viewer(r *http.Request) uuid.UUID {
	raw, ok := appctx.ExtractUserID(r.Context())
	if !ok {
		return uuid.Nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// requireUser writes 401 and returns false when the caller is anonymous
func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id := viewer(r)
	if id == uuid.Nil {
		api.WriteAppError(w, h.logger, auth.ErrNotAuthenticated)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) deckID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.WriteAppError(w, h.logger, apperr.Field("id", "invalid deck id"))
		return uuid.Nil, false
	}
	return id, true
}

// Create handles POST /decks
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var in Input
	if err := api.DecodeJSON(r, &in); err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}

	deck, err := h.service.Create(r.Context(), userID, in)
	if err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, http.StatusCreated, deck)
}

// ListMine handles GET /decks
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	decks, err := h.service.ListMine(r.Context(), userID)
	if err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, decks)
}

// Get handles GET /decks/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.deckID(w, r)
	if !ok {
		return
	}

	deck, err := h.service.Get(r.Context(), viewer(r), id)
	if err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, deck)
}

// Update handles PUT /decks/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := h.deckID(w, r)
	if !ok {
		return
	}

	var in Input
	if err := api.DecodeJSON(r, &in); err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}

	deck, err := h.service.Update(r.Context(), userID, id, in)
	if err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, deck)
}

// Delete handles DELETE /decks/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := h.deckID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, id); err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]string{"message": "Deck deleted"})
}

// Copy handles POST /decks/{id}/copy
func (h *Handler) Copy(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := h.deckID(w, r)
	if !ok {
		return
	}

	deck, err := h.service.Copy(r.Context(), userID, id)
	if err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, http.StatusCreated, deck)
}

// ToggleLike handles POST /decks/{id}/like
func (h *Handler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := h.deckID(w, r)
	if !ok {
		return
	}

	status, err := h.service.ToggleLike(r.Context(), userID, id)
	if err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, status)
}

// LikeStatus handles GET /decks/{id}/like
func (h *Handler) LikeStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := h.deckID(w, r)
	if !ok {
		return
	}

	status, err := h.service.LikeStatus(r.Context(), userID, id)
	if err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, status)
}

// Community handles GET /decks/community?page&limit&sortBy&race
func (h *Handler) Community(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.service.Community(r.Context(), viewer(r), CommunityQuery{
		Page:   api.QueryInt(r, "page", 1),
		Limit:  api.QueryInt(r, "limit", DefaultCommunityLimit),
		SortBy: q.Get("sortBy"),
		Race:   q.Get("race"),
	})
	if err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, page)
}
