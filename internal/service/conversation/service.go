package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	convmodel "github.com/symposium-ai/symposium/backend/internal/model/conversation"
	"github.com/symposium-ai/symposium/backend/internal/model/thinker"
	"github.com/symposium-ai/symposium/backend/internal/orchestrator"
)

var (
	ErrTopicRequired        = errors.New("topic is required")
	ErrThinkersRequired     = errors.New("at least one thinker is required")
	ErrConversationNotFound = errors.New("conversation not found")
)

// Service is the in-memory conversation store. It implements
// orchestrator.History and keeps a running spend total per
// conversation, enforcing a hard limit when thinker messages land.
type Service struct {
	mu            sync.RWMutex
	conversations map[string]convmodel.Conversation
	messages      map[string][]convmodel.Message
	spend         map[string]float64
	spendLimit    float64
}

// NewService bootstraps the store. A spendLimit of 0 disables the cap.
func NewService(spendLimit float64) *Service {
	return &Service{
		conversations: make(map[string]convmodel.Conversation),
		messages:      make(map[string][]convmodel.Message),
		spend:         make(map[string]float64),
		spendLimit:    spendLimit,
	}
}

// CreateConversation provisions a conversation with its immutable
// thinker roster and topic.
func (s *Service) CreateConversation(_ context.Context, topic, userName string, thinkers []thinker.Thinker) (convmodel.Conversation, error) {
	if topic == "" {
		return convmodel.Conversation{}, ErrTopicRequired
	}
	if len(thinkers) == 0 {
		return convmodel.Conversation{}, ErrThinkersRequired
	}

	conv := convmodel.Conversation{
		ID:        uuid.NewString(),
		Topic:     topic,
		UserName:  userName,
		Thinkers:  append([]thinker.Thinker(nil), thinkers...),
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.conversations[conv.ID] = conv
	s.messages[conv.ID] = make([]convmodel.Message, 0, 32)
	s.mu.Unlock()

	return conv, nil
}

// GetConversation retrieves a conversation by identifier.
func (s *Service) GetConversation(_ context.Context, conversationID string) (convmodel.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return convmodel.Conversation{}, ErrConversationNotFound
	}
	return conv, nil
}

// Messages returns the ordered transcript. Part of orchestrator.History.
func (s *Service) Messages(_ context.Context, conversationID string) ([]convmodel.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	messages, ok := s.messages[conversationID]
	if !ok {
		return nil, ErrConversationNotFound
	}
	copied := make([]convmodel.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}

// AppendUserMessage appends a user-authored message. Cost stays nil.
func (s *Service) AppendUserMessage(_ context.Context, conversationID, content string) (convmodel.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[conversationID]; !ok {
		return convmodel.Message{}, ErrConversationNotFound
	}

	msg := convmodel.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderType:     convmodel.SenderUser,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	s.messages[conversationID] = append(s.messages[conversationID], msg)
	return msg, nil
}

// SaveThinkerMessage appends a thinker message with its cost and folds
// the cost into the conversation's running total. Crossing the spend
// limit rejects the save with orchestrator.ErrSpendLimitExceeded.
// Part of orchestrator.History.
func (s *Service) SaveThinkerMessage(_ context.Context, conversationID, thinkerName, content string, cost float64) (convmodel.Message, error) {
	if cost < 0 {
		cost = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[conversationID]; !ok {
		return convmodel.Message{}, ErrConversationNotFound
	}

	if s.spendLimit > 0 && s.spend[conversationID]+cost > s.spendLimit {
		return convmodel.Message{}, orchestrator.ErrSpendLimitExceeded
	}

	msgCost := cost
	msg := convmodel.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderType:     convmodel.SenderThinker,
		SenderName:     thinkerName,
		Content:        content,
		Cost:           &msgCost,
		CreatedAt:      time.Now().UTC(),
	}
	s.messages[conversationID] = append(s.messages[conversationID], msg)
	s.spend[conversationID] += cost
	return msg, nil
}

// Spend returns the conversation's accumulated thinker-message cost.
func (s *Service) Spend(conversationID string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.spend[conversationID]
}
