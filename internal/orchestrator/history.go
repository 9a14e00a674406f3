package orchestrator

import (
	"context"

	"github.com/symposium-ai/symposium/backend/internal/model/conversation"
)

// History is the persistence adapter the orchestrator calls without
// knowing storage details. Messages returns the full ordered
// transcript; SaveThinkerMessage appends a thinker message with its
// cost and returns it with id and timestamp assigned. Implementations
// are expected to fold cost into any owning spend totals as a side
// effect.
type History interface {
	Messages(ctx context.Context, conversationID string) ([]conversation.Message, error)
	SaveThinkerMessage(ctx context.Context, conversationID, thinkerName, content string, cost float64) (conversation.Message, error)
}
