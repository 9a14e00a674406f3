package conversation

import "time"

// SenderType classifies who produced a message.
type SenderType string

const (
	SenderUser    SenderType = "user"
	SenderThinker SenderType = "thinker"
	SenderSystem  SenderType = "system"
)

// Message is one append-only entry in a conversation transcript.
// Cost is set only for thinker messages and is never negative.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversationId"`
	SenderType     SenderType `json:"senderType"`
	SenderName     string     `json:"senderName,omitempty"`
	Content        string     `json:"content"`
	Cost           *float64   `json:"cost,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}
