package banlist

import (
	"log/slog"
	"net/http"

	"github.com/tcglibrary/catalog/internal/api"
)

// Handler handles HTTP requests for banlists and rotations
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a new banlist Handler
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Banlist handles GET /banlist?format=
func (h *Handler) Banlist(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Banlist(r.Context(), r.URL.Query().Get("format"))
	if err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, entries)
}

// Rotation handles GET /rotation?format=
func (h *Handler) Rotation(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Rotation(r.Context(), r.URL.Query().Get("format"))
	if err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, entries)
}

// ListBanlist handles GET /admin/banlist?format=
func (h *Handler) ListBanlist(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListBanlistEntries(r.Context(), r.URL.Query().Get("format"))
	if err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, entries)
}

// UpsertBanlist handles POST /admin/banlist
func (h *Handler) UpsertBanlist(w http.ResponseWriter, r *http.Request) {
	var in BanlistInput
	if err := api.DecodeJSON(r, &in); err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}

	entry, err := h.service.UpsertBanlist(r.Context(), in)
	if err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, entry)
}

// DeleteBanlist handles DELETE /admin/banlist?card_name=&format=
func (h *Handler) DeleteBanlist(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if err := h.service.DeleteBanlist(r.Context(), q.Get("card_name"), q.Get("format")); err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]string{"message": "Banlist entry deleted"})
}

// ListRotation handles GET /admin/rotation?format=
func (h *Handler) ListRotation(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListRotationEntries(r.Context(), r.URL.Query().Get("format"))
	if err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, entries)
}

// UpsertRotation handles POST /admin/rotation
func (h *Handler) UpsertRotation(w http.ResponseWriter, r *http.Request) {
	var in RotationInput
	if err := api.DecodeJSON(r, &in); err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}

	entry, err := h.service.UpsertRotation(r.Context(), in)
	if err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, entry)
}

// DeleteRotation handles DELETE /admin/rotation?card_name=&format=
func (h *Handler) DeleteRotation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if err := h.service.DeleteRotation(r.Context(), q.Get("card_name"), q.Get("format")); err != nil {
		api.WriteAppError(w, h.logger, err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]string{"message": "Rotation entry deleted"})
}
