package orchestrator

import (
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/symposium-ai/symposium/backend/internal/model/conversation"
)

// Selection-policy constants. The numbers are deliberately soft:
// agents are damped probabilistically rather than scheduled, which is
// what keeps several independent loops from turning into round-robin.
const (
	baseRespondProbability = 0.25
	perMessageBoost        = 0.12
	baseProbabilityCap     = 0.7
	addressedBoost         = 0.5
	addressedCap           = 0.95
	silenceBoostPerTurn    = 0.1
	silenceCap             = 0.9
	selfReplyProbability   = 0.05
	forcedSilenceChance    = 0.15
	addressedWindow        = 3
)

// wasAddressed reports whether the thinker's name appears in any of
// the last few messages. Case-insensitive substring match by design;
// false positives on short name fragments are accepted (no NLP).
func wasAddressed(name string, messages []conversation.Message) bool {
	lower := strings.ToLower(name)
	start := len(messages) - addressedWindow
	if start < 0 {
		start = 0
	}
	for _, m := range messages[start:] {
		if strings.Contains(strings.ToLower(m.Content), lower) {
			return true
		}
	}
	return false
}

// shouldRespond decides whether a thinker speaks this cycle.
// Probabilistic, not deterministic, so independently scheduled agents
// never fall into synchronized turn-taking.
func shouldRespond(rng *rand.Rand, name string, messages []conversation.Message, lastResponseCount, consecutiveSilence int) bool {
	if len(messages) == 0 {
		return false
	}

	newMessages := len(messages) - lastResponseCount
	if newMessages <= 0 {
		return false
	}

	addressed := wasAddressed(name, messages)

	probability := baseRespondProbability + float64(newMessages)*perMessageBoost
	if probability > baseProbabilityCap {
		probability = baseProbabilityCap
	}

	if addressed {
		probability = math.Min(probability+addressedBoost, addressedCap)
	}

	// Silence pressure: a thinker that keeps losing the draw must
	// eventually speak.
	if consecutiveSilence > 2 {
		probability = math.Min(probability+float64(consecutiveSilence)*silenceBoostPerTurn, silenceCap)
	}

	// Never pile onto your own last message; follow-ups are a
	// separate mechanism in the agent loop.
	if messages[len(messages)-1].SenderName == name {
		probability = selfReplyProbability
	}

	// Flat chance of staying out of the round entirely, for variety.
	if !addressed && rng.Float64() < forcedSilenceChance {
		return false
	}

	return rng.Float64() < probability
}

// responseStyle is a length/tone tier passed to the generator.
type responseStyle struct {
	tier        string
	instruction string
	maxTokens   int
}

var (
	styleVeryBrief = responseStyle{
		tier:        "very-brief",
		instruction: "Respond with a VERY brief follow-up thought (1 short sentence, like 'Though I should add...' or 'Actually, on reflection...')",
		maxTokens:   60,
	}
	styleBrief = responseStyle{
		tier:        "brief",
		instruction: "Give a brief, direct reaction (1 short sentence, like 'I couldn't agree more' or 'That's precisely my concern')",
		maxTokens:   100,
	}
	styleMedium = responseStyle{
		tier:        "medium",
		instruction: "Give a concise response making one clear point (2-3 sentences)",
		maxTokens:   200,
	}
	styleSubstantive = responseStyle{
		tier:        "substantive",
		instruction: "Give a substantive response (2-4 sentences)",
		maxTokens:   300,
	}
	styleExtended = responseStyle{
		tier:        "extended",
		instruction: "Give a more extended response exploring the idea deeply (4-6 sentences)",
		maxTokens:   500,
	}
)

// chooseResponseStyle picks a length tier biased by context: a thinker
// that just spoke leans toward an ultra-brief follow-up, one that was
// addressed leans toward fuller replies. The spread avoids every reply
// landing at the same robotic length.
func chooseResponseStyle(rng *rand.Rand, name string, messages []conversation.Message) responseStyle {
	recent := messages
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}

	justSpoke := len(recent) > 0 && recent[len(recent)-1].SenderName == name

	addressed := false
	tail := recent
	if len(tail) > 2 {
		tail = tail[len(tail)-2:]
	}
	lower := strings.ToLower(name)
	for _, m := range tail {
		if strings.Contains(strings.ToLower(m.Content), lower) {
			addressed = true
			break
		}
	}

	roll := rng.Float64()

	switch {
	case justSpoke && roll < 0.3:
		return styleVeryBrief
	case addressed:
		switch {
		case roll < 0.2:
			return styleBrief
		case roll < 0.85:
			return styleSubstantive
		default:
			return styleExtended
		}
	default:
		switch {
		case roll < 0.2:
			return styleBrief
		case roll < 0.5:
			return styleMedium
		case roll < 0.85:
			return styleSubstantive
		default:
			return styleExtended
		}
	}
}

// minMessageInterval is the per-thinker floor between two of its own
// messages. It scales super-linearly with the speed multiplier so a 6x
// room feels genuinely unhurried rather than merely stretched.
func minMessageInterval(base time.Duration, speed float64) time.Duration {
	return time.Duration(float64(base) * math.Pow(speed, 1.5))
}

// observeWait is the pause before the next policy evaluation: short
// while the conversation is moving, longer once it has gone quiet, and
// scaled by the room speed.
func observeWait(rng *rand.Rand, consecutiveSilence int, speed float64) time.Duration {
	var seconds float64
	if consecutiveSilence > 3 {
		seconds = 5.0 + rng.Float64()*7.0
	} else {
		seconds = 2.0 + rng.Float64()*4.0
	}
	return time.Duration(seconds * speed * float64(time.Second))
}

// userPromptThreshold is how many consecutive thinker messages may
// pass before an agent considers inviting the user back in. Slower
// rooms (higher multiplier) prompt sooner.
func userPromptThreshold(speed float64) int {
	threshold := 8 - int(speed)
	if threshold < 3 {
		threshold = 3
	}
	return threshold
}

// thinkerMessagesSinceUser counts trailing thinker messages since the
// user (or system) last spoke.
func thinkerMessagesSinceUser(messages []conversation.Message) int {
	count := 0
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].SenderType != conversation.SenderThinker {
			break
		}
		count++
	}
	return count
}
