package menu

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	menuModel "github.com/takeawayhq/voicedesk/backend/internal/model/menu"
	"github.com/takeawayhq/voicedesk/backend/pkg/utils"
)

// Handler exposes the grounding menu snapshot to transports that render
// it visually alongside the voice dialog.
type Handler struct {
	provider menuModel.Provider
}

// New creates the menu handler.
func New(provider menuModel.Provider) *Handler {
	return &Handler{provider: provider}
}

// RegisterRoutes mounts the menu endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/menu", h.handleList)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.provider.Snapshot(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load menu")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"products": snapshot})
}
