package orders

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	model "github.com/takeawayhq/voicedesk/backend/internal/model/order"
	orderService "github.com/takeawayhq/voicedesk/backend/internal/service/order"
	"github.com/takeawayhq/voicedesk/backend/pkg/utils"
)

// Handler serves order status lookups and the direct cancellation path
// used by callers who skip the voice dialog.
type Handler struct {
	store        orderService.Store
	cancellation *orderService.Cancellation
	clock        orderService.Clock
}

// New creates the orders handler.
func New(store orderService.Store, cancellation *orderService.Cancellation, clock orderService.Clock) *Handler {
	return &Handler{store: store, cancellation: cancellation, clock: clock}
}

// RegisterRoutes mounts the order endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/orders/{code}/status", h.handleStatus)
	r.Post("/orders/{code}/cancel", h.handleCancel)
}

type statusResponse struct {
	Code     string    `json:"code"`
	Status   string    `json:"status"`
	PickupAt time.Time `json:"pickupAt"`
	Total    float64   `json:"total"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	o, err := h.store.FindByCode(r.Context(), code)
	if errors.Is(err, orderService.ErrOrderNotFound) {
		utils.RespondError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load order")
		return
	}

	utils.RespondJSON(w, http.StatusOK, statusResponse{
		Code:     o.Code,
		Status:   o.Status,
		PickupAt: o.PickupAt,
		Total:    o.Total,
	})
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	o, err := h.store.FindByCode(r.Context(), code)
	if errors.Is(err, orderService.ErrOrderNotFound) {
		utils.RespondError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load order")
		return
	}

	ok, reason := h.cancellation.CanCancel(o, h.clock.Now())
	if !ok {
		utils.RespondError(w, http.StatusConflict, reason)
		return
	}

	if err := h.store.UpdateStatus(r.Context(), o.ID, model.StatusCancelled); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to cancel order")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"code":   o.Code,
		"status": model.StatusCancelled,
	})
}
