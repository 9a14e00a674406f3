package conversation

import (
	"time"

	"github.com/symposium-ai/symposium/backend/internal/model/thinker"
)

// Conversation captures one group discussion: a topic prompt shared by
// all agents and the immutable thinker roster attached at creation.
type Conversation struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	UserName  string            `json:"userName,omitempty"`
	Thinkers  []thinker.Thinker `json:"thinkers"`
	CreatedAt time.Time         `json:"createdAt"`
}
