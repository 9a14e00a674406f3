package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/symposium-ai/symposium/backend/internal/model/conversation"
	"github.com/symposium-ai/symposium/backend/internal/model/thinker"
)

// Per-token cost rates, matching the provider's published pricing.
// Extended thinking is billed at the output rate.
const (
	inputCostPerToken    = 0.000003
	outputCostPerToken   = 0.000015
	thinkingCostPerToken = 0.000015
)

// historyWindow is how many trailing messages go into the prompt.
const historyWindow = 20

// StreamDelta is one increment from a streaming chat completion:
// either reasoning text, response text, or both empty (keepalive).
type StreamDelta struct {
	Thinking string
	Text     string
}

// TokenUsage is the final usage report for one completion.
type TokenUsage struct {
	InputTokens    int
	OutputTokens   int
	ThinkingTokens int
}

// ChatStream yields deltas until io.EOF. Usage is valid once Recv has
// returned io.EOF.
type ChatStream interface {
	Recv() (StreamDelta, error)
	Usage() TokenUsage
	Close()
}

// ChatStreamer is the LLM provider boundary: a streaming completion
// with a response token budget and an extended-thinking budget.
type ChatStreamer interface {
	StreamChat(ctx context.Context, prompt string, maxTokens, thinkingBudget int) (ChatStream, error)
}

// Generator produces thinker-voiced text plus its cost for one turn,
// streaming throttled thinking previews into the room as it goes.
type Generator struct {
	streamer        ChatStreamer
	thinkingBudget  int
	previewInterval time.Duration
}

// NewGenerator wires a generator over the given provider boundary.
func NewGenerator(streamer ChatStreamer, thinkingBudget int, previewInterval time.Duration) *Generator {
	if thinkingBudget <= 0 {
		thinkingBudget = 2000
	}
	if previewInterval <= 0 {
		previewInterval = 300 * time.Millisecond
	}
	return &Generator{
		streamer:        streamer,
		thinkingBudget:  thinkingBudget,
		previewInterval: previewInterval,
	}
}

// Generate runs one streamed completion for the thinker. Thinking
// previews are broadcast at a throttled interval scaled by the room's
// speed multiplier; when paused() flips true the stream keeps being
// drained but previews stop immediately. Returns the trimmed response
// text and its computed cost.
func (g *Generator) Generate(
	ctx context.Context,
	room *Room,
	paused func() bool,
	t thinker.Thinker,
	messages []conversation.Message,
	topic string,
	style responseStyle,
) (string, float64, error) {
	prompt := buildPrompt(t, messages, topic, style.instruction)

	stream, err := g.streamer.StreamChat(ctx, prompt, style.maxTokens, g.thinkingBudget)
	if err != nil {
		return "", 0, err
	}
	defer stream.Close()

	var responseText strings.Builder
	var thinkingText strings.Builder
	var lastPreview time.Time

	for {
		delta, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", 0, recvErr
		}

		if delta.Thinking != "" {
			thinkingText.WriteString(delta.Thinking)

			interval := time.Duration(float64(g.previewInterval) * room.Speed())
			if !paused() && time.Since(lastPreview) >= interval {
				display := extractThinkingDisplay(thinkingText.String())
				if len(display) >= minThinkingPreview {
					room.Broadcast(ThinkerThinkingEvent{
						ConversationID: room.conversationID,
						ThinkerName:    t.Name,
						Content:        monologue(display),
					})
				}
				lastPreview = time.Now()
			}
		}
		if delta.Text != "" {
			responseText.WriteString(delta.Text)
		}
	}

	usage := stream.Usage()
	cost := float64(usage.InputTokens)*inputCostPerToken +
		float64(usage.OutputTokens)*outputCostPerToken +
		float64(usage.ThinkingTokens)*thinkingCostPerToken

	return strings.TrimSpace(responseText.String()), cost, nil
}

// buildPrompt assembles the persona prompt: profile, topic, the
// trailing message window, and the chosen style instruction.
func buildPrompt(t thinker.Thinker, messages []conversation.Message, topic, styleInstruction string) string {
	window := messages
	if len(window) > historyWindow {
		window = window[len(window)-historyWindow:]
	}

	var history strings.Builder
	for i, m := range window {
		if i > 0 {
			history.WriteByte('\n')
		}
		history.WriteString(senderLabel(m))
		history.WriteString(": ")
		history.WriteString(m.Content)
	}

	return fmt.Sprintf(`You are simulating %s in a group discussion.

ABOUT %s:
Bio: %s
Known positions: %s
Communication style: %s

DISCUSSION TOPIC: %s

CONVERSATION SO FAR:
%s

Now respond as %s would. Guidelines:
- Stay in character based on their known views and communication style
- Use modern English regardless of their era
- If discussing something that didn't exist in their time, acknowledge it (e.g., "In my era we didn't have X, but...")
- Engage with what others have said - agree, disagree, build on ideas
- Don't be preachy or lecture-like
- Show personality through your response style

RESPONSE STYLE: %s

Respond with ONLY what %s would say, nothing else.`,
		t.Name,
		strings.ToUpper(t.Name),
		t.Bio,
		t.Positions,
		t.Style,
		topic,
		history.String(),
		t.Name,
		styleInstruction,
		t.Name,
	)
}

func senderLabel(m conversation.Message) string {
	switch m.SenderType {
	case conversation.SenderUser:
		return "User"
	case conversation.SenderSystem:
		return "System"
	default:
		if m.SenderName != "" {
			return m.SenderName
		}
		return "Unknown"
	}
}
