package conversation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/symposium-ai/symposium/backend/internal/model/thinker"
	"github.com/symposium-ai/symposium/backend/internal/orchestrator"
	conversationService "github.com/symposium-ai/symposium/backend/internal/service/conversation"
	"github.com/symposium-ai/symposium/backend/pkg/utils"
)

// Handler serves conversation CRUD plus user message append.
type Handler struct {
	convSvc  *conversationService.Service
	thinkers thinker.Store
	orc      *orchestrator.Orchestrator
}

// New creates the conversation handler.
func New(convSvc *conversationService.Service, thinkers thinker.Store, orc *orchestrator.Orchestrator) *Handler {
	return &Handler{convSvc: convSvc, thinkers: thinkers, orc: orc}
}

// RegisterRoutes mounts conversation routes on the API router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/conversations", h.handleCreate)
	r.Get("/conversations/{conversationID}", h.handleGet)
	r.Get("/conversations/{conversationID}/messages", h.handleMessages)
	r.Post("/conversations/{conversationID}/messages", h.handleUserMessage)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Topic      string            `json:"topic"`
		UserName   string            `json:"userName"`
		ThinkerIDs []string          `json:"thinkerIds"`
		Thinkers   []thinker.Thinker `json:"thinkers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	roster := make([]thinker.Thinker, 0, len(payload.ThinkerIDs)+len(payload.Thinkers))
	for _, id := range payload.ThinkerIDs {
		t, ok := h.thinkers.FindByID(id)
		if !ok {
			utils.RespondError(w, http.StatusBadRequest, "thinker not found: "+id)
			return
		}
		roster = append(roster, t)
	}
	for _, t := range payload.Thinkers {
		if t.Name == "" {
			utils.RespondError(w, http.StatusBadRequest, "custom thinkers require a name")
			return
		}
		roster = append(roster, t)
	}

	conv, err := h.convSvc.CreateConversation(r.Context(), payload.Topic, payload.UserName, roster)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusCreated, conv)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	conv, err := h.convSvc.GetConversation(r.Context(), conversationID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, conv)
}

func (h *Handler) handleMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	messages, err := h.convSvc.Messages(r.Context(), conversationID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, messages)
}

// handleUserMessage persists a user message, then notifies every
// connected client. Agents observe the new message on their next poll.
func (h *Handler) handleUserMessage(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	var payload struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Content == "" {
		utils.RespondError(w, http.StatusBadRequest, "content is required")
		return
	}

	msg, err := h.convSvc.AppendUserMessage(r.Context(), conversationID, payload.Content)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, conversationService.ErrConversationNotFound) {
			status = http.StatusNotFound
		}
		utils.RespondError(w, status, err.Error())
		return
	}

	if h.orc != nil {
		h.orc.BroadcastUserMessage(conversationID, payload.Content)
	}
	utils.RespondJSON(w, http.StatusCreated, msg)
}
