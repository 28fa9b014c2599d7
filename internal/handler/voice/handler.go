package voice

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	analysis "github.com/takeawayhq/voicedesk/backend/internal/analysis/intent"
	model "github.com/takeawayhq/voicedesk/backend/internal/model/dialog"
	dialogService "github.com/takeawayhq/voicedesk/backend/internal/service/dialog"
	intentService "github.com/takeawayhq/voicedesk/backend/internal/service/intent"
	"github.com/takeawayhq/voicedesk/backend/pkg/utils"
)

// Handler drives one dialog turn per request.
type Handler struct {
	sessions *dialogService.SessionStore
	machine  *dialogService.Machine
	intents  *intentService.Service
}

// New creates the voice dialog handler. intents may be nil.
func New(sessions *dialogService.SessionStore, machine *dialogService.Machine, intents *intentService.Service) *Handler {
	return &Handler{sessions: sessions, machine: machine, intents: intents}
}

// RegisterRoutes mounts the voice session endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/voice/session", h.handleTurn)
}

type turnRequest struct {
	CallerID  string               `json:"callerId"`
	EventType string               `json:"eventType"`
	Utterance string               `json:"utterance"`
	Metadata  map[string]string    `json:"metadata"`
	Slots     *model.SlotsSnapshot `json:"slots"`
}

type turnResponse struct {
	CallerID          string              `json:"callerId"`
	State             model.State         `json:"state"`
	PromptText        string              `json:"promptText"`
	IsSessionComplete bool                `json:"isSessionComplete"`
	Metadata          map[string]string   `json:"metadata"`
	Slots             model.SlotsSnapshot `json:"slots"`
}

func (h *Handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	var payload turnRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	callerID := payload.CallerID
	if callerID == "" {
		callerID = uuid.NewString()
	}

	eventType := model.EventUtterance
	switch payload.EventType {
	case "", string(model.EventUtterance):
	case string(model.EventSystem):
		eventType = model.EventSystem
	case string(model.EventTimeout):
		eventType = model.EventTimeout
	default:
		utils.RespondError(w, http.StatusBadRequest, "unknown event type")
		return
	}

	session, err := h.sessions.GetOrCreate(callerID)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	session.Lock()
	defer session.Unlock()

	if payload.Slots != nil {
		session.Context.Slots.ApplySnapshot(*payload.Slots)
	}

	metadata := make(map[string]string, len(payload.Metadata)+2)
	for k, v := range payload.Metadata {
		metadata[k] = v
	}
	if eventType == model.EventUtterance && payload.Utterance != "" {
		prediction := h.classify(r, payload.Utterance)
		if prediction.HasPrediction() {
			metadata[model.MetaIntentLabel] = prediction.Label
			metadata[model.MetaIntentScore] = fmt.Sprintf("%.2f", prediction.Confidence)
		}
	}

	event := model.Event{
		Type:          eventType,
		UtteranceText: payload.Utterance,
		Metadata:      metadata,
	}

	result := h.machine.Handle(r.Context(), session, event)

	h.sessions.Save(session)
	if result.IsSessionComplete {
		h.sessions.Remove(callerID)
	}

	utils.RespondJSON(w, http.StatusOK, turnResponse{
		CallerID:          callerID,
		State:             result.State,
		PromptText:        result.PromptText,
		IsSessionComplete: result.IsSessionComplete,
		Metadata:          result.Metadata,
		Slots:             result.Slots,
	})
}

func (h *Handler) classify(r *http.Request, utterance string) analysis.Prediction {
	if h.intents == nil {
		return analysis.Classify(utterance)
	}
	return h.intents.Predict(r.Context(), utterance)
}
