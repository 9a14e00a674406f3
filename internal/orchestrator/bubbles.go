package orchestrator

import (
	"math/rand"
	"strings"
)

// Bubble-splitting thresholds. A finished response is broken into
// 1..N display chunks to mimic natural multi-message texting.
const (
	neverSplitBelow  = 60
	singleBubbleMax  = 250
	forcedSplitAbove = 300
)

// transitionMarkers are discourse pivots that read well at the start
// of a fresh bubble.
var transitionMarkers = []string{
	"However, ",
	"But ",
	"Yet ",
	"Still, ",
	"That said, ",
	"On the other hand, ",
	"And yet ",
}

// splitIntoBubbles breaks a response into display chunks. Short text is
// never split; otherwise a random strategy keeps one bubble or splits
// at sentence boundaries around a randomly chosen target size, with a
// preference for starting a new bubble at a discourse transition.
func splitIntoBubbles(rng *rand.Rand, text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) < neverSplitBelow {
		return []string{text}
	}

	// Some responses stay whole on purpose; one longer bubble now and
	// then reads more naturally than relentless chunking.
	if len(text) <= singleBubbleMax && rng.Float64() < 0.4 {
		return []string{text}
	}

	sentences := splitSentences(text)
	if len(sentences) <= 1 {
		return []string{text}
	}

	target := chooseTargetSize(rng)
	bubbles := packSentences(sentences, target)

	if len(bubbles) == 1 && len(bubbles[0]) > forcedSplitAbove {
		bubbles = forceSplit(sentences)
	}
	return bubbles
}

// splitCost divides a generation's cost evenly across its bubbles.
func splitCost(cost float64, bubbles int) float64 {
	if bubbles <= 0 {
		return 0
	}
	return cost / float64(bubbles)
}

// chooseTargetSize picks the rough chunk length for this split.
func chooseTargetSize(rng *rand.Rand) int {
	switch roll := rng.Float64(); {
	case roll < 0.3: // small: rapid-fire texting
		return 80 + rng.Intn(60)
	case roll < 0.8: // normal
		return 140 + rng.Intn(80)
	default: // large: fewer, meatier bubbles
		return 220 + rng.Intn(80)
	}
}

// splitSentences cuts text at sentence terminators, keeping the
// terminator with its sentence.
func splitSentences(text string) []string {
	var sentences []string
	var b strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			// Treat runs like "..." or "?!" as one terminator.
			if i+1 < len(runes) && (runes[i+1] == '.' || runes[i+1] == '!' || runes[i+1] == '?') {
				continue
			}
			if s := strings.TrimSpace(b.String()); s != "" {
				sentences = append(sentences, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// packSentences greedily accumulates sentences into chunks near the
// target size, starting a new bubble early at transition markers.
func packSentences(sentences []string, target int) []string {
	var bubbles []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			bubbles = append(bubbles, s)
		}
		current.Reset()
	}

	for _, sentence := range sentences {
		if current.Len() > 0 && startsWithTransition(sentence) {
			flush()
		}
		if current.Len() > 0 && current.Len()+1+len(sentence) > target {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	flush()
	return bubbles
}

func startsWithTransition(sentence string) bool {
	for _, marker := range transitionMarkers {
		if strings.HasPrefix(sentence, marker) {
			return true
		}
	}
	return false
}

// forceSplit breaks an oversized single bubble at the sentence
// boundary nearest past the midpoint.
func forceSplit(sentences []string) []string {
	total := 0
	for _, s := range sentences {
		total += len(s) + 1
	}
	mid := total / 2

	var first strings.Builder
	splitAt := len(sentences) - 1
	running := 0
	for i, s := range sentences {
		running += len(s) + 1
		if running >= mid && i < len(sentences)-1 {
			splitAt = i
			break
		}
	}

	for i := 0; i <= splitAt; i++ {
		if first.Len() > 0 {
			first.WriteByte(' ')
		}
		first.WriteString(sentences[i])
	}
	var second strings.Builder
	for i := splitAt + 1; i < len(sentences); i++ {
		if second.Len() > 0 {
			second.WriteByte(' ')
		}
		second.WriteString(sentences[i])
	}

	if second.Len() == 0 {
		return []string{first.String()}
	}
	return []string{first.String(), second.String()}
}
