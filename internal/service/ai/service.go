package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/symposium-ai/symposium/backend/internal/config"
	"github.com/symposium-ai/symposium/backend/internal/orchestrator"
)

// PortraitFetcher resolves a public portrait URL for a person's name.
type PortraitFetcher interface {
	ImageURL(ctx context.Context, name string) (string, error)
}

// Service is the LLM provider boundary: streaming chat completions for
// the orchestrator plus thinker suggestion and validation for the API.
type Service struct {
	chatModel model.ChatModel
	portraits PortraitFetcher
}

// NewService builds the chat model from configuration.
func NewService(ctx context.Context, cfg config.AIConfig, portraits PortraitFetcher) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return &Service{chatModel: chatModel, portraits: portraits}, nil
}

// StreamChat implements orchestrator.ChatStreamer: one streamed
// completion with a response budget and an extended-thinking budget.
func (s *Service) StreamChat(ctx context.Context, prompt string, maxTokens, thinkingBudget int) (orchestrator.ChatStream, error) {
	reader, err := s.chatModel.Stream(ctx,
		[]*schema.Message{schema.UserMessage(prompt)},
		model.WithMaxTokens(maxTokens+thinkingBudget),
	)
	if err != nil {
		return nil, wrapProviderError(err)
	}
	return &modelStream{reader: reader}, nil
}

// modelStream adapts the eino stream reader to the orchestrator's
// ChatStream: reasoning deltas become thinking, content becomes text,
// token usage is read off the trailing chunks. Thinking tokens are
// estimated from accumulated reasoning length (~4 chars per token).
type modelStream struct {
	reader        *schema.StreamReader[*schema.Message]
	usage         orchestrator.TokenUsage
	thinkingChars int
}

func (s *modelStream) Recv() (orchestrator.StreamDelta, error) {
	chunk, err := s.reader.Recv()
	if errors.Is(err, io.EOF) {
		s.usage.ThinkingTokens = s.thinkingChars / 4
		return orchestrator.StreamDelta{}, io.EOF
	}
	if err != nil {
		return orchestrator.StreamDelta{}, wrapProviderError(err)
	}
	if chunk == nil {
		return orchestrator.StreamDelta{}, nil
	}

	if chunk.ResponseMeta != nil && chunk.ResponseMeta.Usage != nil {
		s.usage.InputTokens = chunk.ResponseMeta.Usage.PromptTokens
		s.usage.OutputTokens = chunk.ResponseMeta.Usage.CompletionTokens
	}
	s.thinkingChars += len(chunk.ReasoningContent)

	return orchestrator.StreamDelta{
		Thinking: chunk.ReasoningContent,
		Text:     chunk.Content,
	}, nil
}

func (s *modelStream) Usage() orchestrator.TokenUsage {
	return s.usage
}

func (s *modelStream) Close() {
	s.reader.Close()
}

// wrapProviderError types a provider failure, distinguishing
// quota/billing exhaustion from transient service errors by message
// content, since the provider exposes no structured code for it.
func wrapProviderError(err error) error {
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "credit balance") ||
		strings.Contains(lower, "billing") ||
		strings.Contains(lower, "quota") {
		return &orchestrator.APIError{
			Message: "API credit limit reached. Please check your provider billing.",
			Quota:   true,
		}
	}
	return &orchestrator.APIError{Message: "AI service error: " + msg}
}
