package thinker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/symposium-ai/symposium/backend/internal/model/thinker"
	"github.com/symposium-ai/symposium/backend/internal/orchestrator"
	"github.com/symposium-ai/symposium/backend/pkg/utils"
)

// Suggester is the slice of the AI service the thinker endpoints use.
type Suggester interface {
	SuggestThinkers(ctx context.Context, topic string, count int, exclude []string) ([]thinker.Suggestion, error)
	ValidateThinker(ctx context.Context, name string) (bool, *thinker.Profile, error)
}

// Handler serves the thinker roster and LLM-backed suggestion and
// validation endpoints.
type Handler struct {
	store thinker.Store
	ai    Suggester
}

// New creates the thinker handler. ai may be nil when the model
// backend is not configured; suggestion endpoints then return 503.
func New(store thinker.Store, ai Suggester) *Handler {
	return &Handler{store: store, ai: ai}
}

// RegisterRoutes mounts thinker routes on the API router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/thinkers", h.handleList)
	r.Post("/thinkers/suggest", h.handleSuggest)
	r.Post("/thinkers/validate", h.handleValidate)
}

func (h *Handler) handleList(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.store.List())
}

func (h *Handler) handleSuggest(w http.ResponseWriter, r *http.Request) {
	if h.ai == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "ai suggestions unavailable")
		return
	}

	var payload struct {
		Topic   string   `json:"topic"`
		Count   int      `json:"count"`
		Exclude []string `json:"exclude"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Topic == "" {
		utils.RespondError(w, http.StatusBadRequest, "topic is required")
		return
	}
	if payload.Count == 0 {
		payload.Count = 3
	}

	suggestions, err := h.ai.SuggestThinkers(r.Context(), payload.Topic, payload.Count, payload.Exclude)
	if err != nil {
		respondAIError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, suggestions)
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	if h.ai == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "ai validation unavailable")
		return
	}

	var payload struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Name == "" {
		utils.RespondError(w, http.StatusBadRequest, "name is required")
		return
	}

	valid, profile, err := h.ai.ValidateThinker(r.Context(), payload.Name)
	if err != nil {
		respondAIError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"valid":   valid,
		"profile": profile,
	})
}

func respondAIError(w http.ResponseWriter, err error) {
	var apiErr *orchestrator.APIError
	if errors.As(err, &apiErr) && apiErr.Quota {
		utils.RespondError(w, http.StatusPaymentRequired, apiErr.Message)
		return
	}
	utils.RespondError(w, http.StatusBadGateway, err.Error())
}
