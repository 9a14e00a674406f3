package orchestrator

import "time"

// EventKind discriminates outbound event variants on the wire.
type EventKind string

const (
	KindMessage              EventKind = "message"
	KindThinkerTyping        EventKind = "thinker_typing"
	KindThinkerStoppedTyping EventKind = "thinker_stopped_typing"
	KindThinkerThinking      EventKind = "thinker_thinking"
	KindUserJoined           EventKind = "user_joined"
	KindUserLeft             EventKind = "user_left"
	KindPaused               EventKind = "paused"
	KindResumed              EventKind = "resumed"
	KindSpeedChanged         EventKind = "speed_changed"
	KindError                EventKind = "error"
)

// Event is one server-generated notification fanned out to every
// connection in a room. Each kind carries only the fields it needs.
type Event interface {
	Kind() EventKind
}

// MessageEvent announces a finalized message (one bubble).
type MessageEvent struct {
	ConversationID string    `json:"conversationId"`
	MessageID      string    `json:"messageId,omitempty"`
	SenderType     string    `json:"senderType"`
	SenderName     string    `json:"senderName,omitempty"`
	Content        string    `json:"content"`
	Cost           *float64  `json:"cost,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

func (MessageEvent) Kind() EventKind { return KindMessage }

// ThinkerTypingEvent shows a typing indicator for one thinker.
type ThinkerTypingEvent struct {
	ConversationID string `json:"conversationId"`
	ThinkerName    string `json:"senderName"`
}

func (ThinkerTypingEvent) Kind() EventKind { return KindThinkerTyping }

// ThinkerStoppedTypingEvent clears a typing indicator.
type ThinkerStoppedTypingEvent struct {
	ConversationID string `json:"conversationId"`
	ThinkerName    string `json:"senderName"`
}

func (ThinkerStoppedTypingEvent) Kind() EventKind { return KindThinkerStoppedTyping }

// ThinkerThinkingEvent carries a live preview of what a thinker is
// mulling over, shown instead of a bare "thinking..." placeholder.
type ThinkerThinkingEvent struct {
	ConversationID string `json:"conversationId"`
	ThinkerName    string `json:"senderName"`
	Content        string `json:"content"`
}

func (ThinkerThinkingEvent) Kind() EventKind { return KindThinkerThinking }

// UserJoinedEvent signals a new client connection in the room.
type UserJoinedEvent struct {
	ConversationID string `json:"conversationId"`
}

func (UserJoinedEvent) Kind() EventKind { return KindUserJoined }

// UserLeftEvent signals a client disconnect.
type UserLeftEvent struct {
	ConversationID string `json:"conversationId"`
}

func (UserLeftEvent) Kind() EventKind { return KindUserLeft }

// PausedEvent signals that the conversation was paused.
type PausedEvent struct {
	ConversationID string `json:"conversationId"`
}

func (PausedEvent) Kind() EventKind { return KindPaused }

// ResumedEvent signals that the conversation resumed.
type ResumedEvent struct {
	ConversationID string `json:"conversationId"`
}

func (ResumedEvent) Kind() EventKind { return KindResumed }

// SpeedChangedEvent carries the clamped speed multiplier after a change.
type SpeedChangedEvent struct {
	ConversationID  string  `json:"conversationId"`
	SpeedMultiplier float64 `json:"speedMultiplier"`
}

func (SpeedChangedEvent) Kind() EventKind { return KindSpeedChanged }

// ErrorEvent carries a user-facing error notice.
type ErrorEvent struct {
	ConversationID string `json:"conversationId,omitempty"`
	Content        string `json:"content"`
}

func (ErrorEvent) Kind() EventKind { return KindError }
