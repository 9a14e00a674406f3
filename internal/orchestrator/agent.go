package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/symposium-ai/symposium/backend/internal/model/conversation"
	"github.com/symposium-ai/symposium/backend/internal/model/thinker"
)

// agentRunner is one thinker's autonomous loop in one conversation.
// It decides whether and what to say next, forever, until cancelled.
type agentRunner struct {
	orc     *Orchestrator
	room    *Room
	history History
	gen     *Generator
	rng     *rand.Rand
	cfg     Config

	conversationID string
	thinker        thinker.Thinker
	topic          string
	userName       string
}

// run is the scheduling loop: wait for users, wait while paused,
// observe, maybe respond, repeat. Cancellation always wins; nothing is
// persisted or broadcast after ctx is done.
func (a *agentRunner) run(ctx context.Context) {
	lastResponseCount := 0
	consecutiveSilence := 0
	var lastSentAt time.Time

	for {
		if ctx.Err() != nil {
			return
		}

		// Inactive room: no message fetch, no cost incurred.
		if !a.room.IsActive() {
			if !sleepCtx(ctx, a.cfg.InactivePoll) {
				return
			}
			continue
		}

		if a.orc.IsPaused(a.conversationID) {
			if !sleepCtx(ctx, a.cfg.PausedPoll) {
				return
			}
			continue
		}

		messages, err := a.history.Messages(ctx, a.conversationID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[agent] %s/%s: message fetch failed: %v", a.conversationID, a.thinker.Name, err)
			a.notifyError("Something went wrong reading the conversation. Retrying shortly.")
			if !sleepCtx(ctx, a.cfg.InternalErrorBackoff) {
				return
			}
			continue
		}

		speed := a.room.Speed()
		invite := a.shouldInviteUser(messages, speed)
		respond := invite || shouldRespond(a.rng, a.thinker.Name, messages, lastResponseCount, consecutiveSilence)

		// Per-thinker pacing floor; scales super-linearly with speed.
		if respond && !lastSentAt.IsZero() &&
			time.Since(lastSentAt) < minMessageInterval(a.cfg.BaseMessageInterval, speed) {
			respond = false
		}

		if !respond {
			consecutiveSilence++
			if !sleepCtx(ctx, observeWait(a.rng, consecutiveSilence, speed)) {
				return
			}
			continue
		}

		consecutiveSilence = 0
		sent, terminal := a.respond(ctx, messages, invite)
		if terminal {
			return
		}
		if sent > 0 {
			lastResponseCount = len(messages) + sent
			lastSentAt = time.Now()

			if a.rng.Float64() < a.cfg.FollowUpChance {
				newCount, term := a.followUp(ctx)
				if term {
					return
				}
				if newCount >= 0 {
					lastResponseCount = newCount
					lastSentAt = time.Now()
				}
			}
		}

		if !sleepCtx(ctx, observeWait(a.rng, consecutiveSilence, a.room.Speed())) {
			return
		}
	}
}

// respond runs one generation turn: typing indicator, generation with
// streamed thinking, bubble persistence and broadcast. Pause is
// checked before generation, after generation, and before each bubble,
// so nothing lands once the conversation is paused. Returns the number
// of bubbles sent and whether the loop must terminate.
func (a *agentRunner) respond(ctx context.Context, messages []conversation.Message, invite bool) (int, bool) {
	name := a.thinker.Name
	a.room.TypingStart(name)
	// Cancellation paths exit without a TypingStop broadcast; this
	// keeps the typing set itself from going stale. Redundant after a
	// normal TypingStop, which is fine.
	defer a.room.clearTyping(name)

	if !sleepCtx(ctx, uniformDuration(a.rng, a.cfg.TypingLeadMin, a.cfg.TypingLeadMax)) {
		return 0, true
	}

	// Pause check 1: before any spend.
	if a.orc.IsPaused(a.conversationID) {
		a.room.TypingStop(name)
		return 0, false
	}

	style := chooseResponseStyle(a.rng, name, messages)
	if invite {
		style = invitationStyle(a.userName)
	}

	text, cost, err := a.gen.Generate(ctx, a.room, a.pausedFn(), a.thinker, messages, a.topic, style)
	if err != nil {
		if ctx.Err() != nil {
			return 0, true
		}
		return 0, a.handleGenerateError(ctx, err)
	}

	// Pause check 2: generation may have raced a pause; persist nothing.
	if a.orc.IsPaused(a.conversationID) {
		a.room.TypingStop(name)
		return 0, false
	}
	if text == "" {
		a.room.TypingStop(name)
		return 0, false
	}

	bubbles := splitIntoBubbles(a.rng, text)
	share := splitCost(cost, len(bubbles))

	sent := 0
	for i, bubble := range bubbles {
		// Pause check 3: stop mid-burst, dropping unsent bubbles.
		if a.orc.IsPaused(a.conversationID) {
			break
		}

		msg, saveErr := a.history.SaveThinkerMessage(ctx, a.conversationID, name, bubble, share)
		if saveErr != nil {
			if ctx.Err() != nil {
				return sent, true
			}
			if errors.Is(saveErr, ErrSpendLimitExceeded) {
				a.haltForSpend("The conversation spend limit has been reached. The discussion is paused.")
				return sent, true
			}
			log.Printf("[agent] %s/%s: save failed: %v", a.conversationID, name, saveErr)
			a.notifyError("Failed to save a message. Retrying shortly.")
			break
		}

		bubbleCost := share
		a.room.Broadcast(MessageEvent{
			ConversationID: a.conversationID,
			MessageID:      msg.ID,
			SenderType:     string(conversation.SenderThinker),
			SenderName:     name,
			Content:        bubble,
			Cost:           &bubbleCost,
			Timestamp:      msg.CreatedAt,
		})
		sent++

		if i < len(bubbles)-1 {
			if !sleepCtx(ctx, a.bubbleDelay()) {
				return sent, true
			}
		}
	}

	a.room.TypingStop(name)
	return sent, false
}

// handleGenerateError applies the error taxonomy: quota errors halt the
// agent for good, API errors retry after a long backoff, anything else
// retries after a short one. Returns whether the loop must terminate.
func (a *agentRunner) handleGenerateError(ctx context.Context, err error) bool {
	name := a.thinker.Name

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Quota {
			a.haltForSpend("The AI provider's credit limit has been reached. The discussion is paused until billing is resolved.")
			return true
		}
		log.Printf("[agent] %s/%s: AI service error: %v", a.conversationID, name, err)
		a.notifyError(fmt.Sprintf("%s hit a temporary AI service error. Retrying soon.", name))
		a.room.TypingStop(name)
		return !sleepCtx(ctx, a.cfg.APIErrorBackoff)
	}

	log.Printf("[agent] %s/%s: unexpected error: %v", a.conversationID, name, err)
	a.notifyError("Something went wrong generating a response. Retrying shortly.")
	a.room.TypingStop(name)
	return !sleepCtx(ctx, a.cfg.InternalErrorBackoff)
}

// haltForSpend pauses the whole conversation and tells everyone why.
// Spend limits are a hard stop; the caller terminates the loop.
func (a *agentRunner) haltForSpend(reason string) {
	log.Printf("[agent] %s/%s: halting: %s", a.conversationID, a.thinker.Name, reason)
	a.orc.Pause(a.conversationID)
	a.notifyError(reason)
	a.room.TypingStop(a.thinker.Name)
}

// followUp gives the thinker a chance to append a short second thought
// right after speaking. Returns the new last-response count (or -1 for
// no change) and whether the loop must terminate.
func (a *agentRunner) followUp(ctx context.Context) (int, bool) {
	if !sleepCtx(ctx, uniformDuration(a.rng, 2*time.Second, 5*time.Second)) {
		return -1, true
	}
	if a.orc.IsPaused(a.conversationID) {
		return -1, false
	}

	messages, err := a.history.Messages(ctx, a.conversationID)
	if err != nil {
		if ctx.Err() != nil {
			return -1, true
		}
		return -1, false
	}

	text, cost, err := a.gen.Generate(ctx, a.room, a.pausedFn(), a.thinker, messages, a.topic, styleVeryBrief)
	if err != nil {
		if ctx.Err() != nil {
			return -1, true
		}
		return -1, a.handleGenerateError(ctx, err)
	}
	if text == "" || a.orc.IsPaused(a.conversationID) {
		return -1, false
	}

	msg, err := a.history.SaveThinkerMessage(ctx, a.conversationID, a.thinker.Name, text, cost)
	if err != nil {
		if ctx.Err() != nil {
			return -1, true
		}
		if errors.Is(err, ErrSpendLimitExceeded) {
			a.haltForSpend("The conversation spend limit has been reached. The discussion is paused.")
			return -1, true
		}
		return -1, false
	}

	followCost := cost
	a.room.Broadcast(MessageEvent{
		ConversationID: a.conversationID,
		MessageID:      msg.ID,
		SenderType:     string(conversation.SenderThinker),
		SenderName:     a.thinker.Name,
		Content:        text,
		Cost:           &followCost,
		Timestamp:      msg.CreatedAt,
	})
	return len(messages) + 1, false
}

// shouldInviteUser triggers the occasional "prompt the user" turn when
// thinkers have had the floor to themselves for a while.
func (a *agentRunner) shouldInviteUser(messages []conversation.Message, speed float64) bool {
	if len(messages) == 0 {
		return false
	}
	if thinkerMessagesSinceUser(messages) < userPromptThreshold(speed) {
		return false
	}
	return a.rng.Float64() < a.cfg.InvitationChance
}

func invitationStyle(userName string) responseStyle {
	display := userName
	if display == "" {
		display = "the user"
	}
	return responseStyle{
		tier: "invitation",
		instruction: fmt.Sprintf(
			"The human participant (%s) has been quiet for a while. Warmly invite them back into the discussion with one direct question addressed to them by name. 1-2 sentences.",
			display,
		),
		maxTokens: 120,
	}
}

func (a *agentRunner) pausedFn() func() bool {
	return func() bool {
		return a.orc.IsPaused(a.conversationID)
	}
}

func (a *agentRunner) notifyError(content string) {
	a.room.Broadcast(ErrorEvent{ConversationID: a.conversationID, Content: content})
}

// bubbleDelay spaces consecutive bubbles of one response, scaled by
// the room speed.
func (a *agentRunner) bubbleDelay() time.Duration {
	base := uniformDuration(a.rng, time.Second, 2500*time.Millisecond)
	return time.Duration(float64(base) * a.room.Speed())
}

func uniformDuration(rng *rand.Rand, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rng.Int63n(int64(max-min)))
}

// sleepCtx sleeps for d or until ctx is done; false means cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
