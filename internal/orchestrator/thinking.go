package orchestrator

import (
	"hash/fnv"
	"strings"
	"unicode"
)

// minThinkingPreview suppresses previews too short to read as a
// thought; flashing two-word fragments looks like a rendering bug.
const minThinkingPreview = 20

// contemplativePrefixes open a preview so it reads as an internal
// monologue. Selection is a hash of the fragment, not a random draw,
// so the same partial thought keeps the same prefix within a run.
var contemplativePrefixes = []string{
	"Hmm... ",
	"Let me see... ",
	"I wonder... ",
	"Now then... ",
	"Curious... ",
}

// monologueRewrites turn assistant-flavored reasoning into first-person
// musing. Ordered; earlier pairs win on overlap.
var monologueRewrites = [][2]string{
	{"I should ", "Perhaps I should "},
	{"I need to ", "I suppose I must "},
	{"I will ", "I think I shall "},
	{"The user ", "They "},
	{"the user ", "they "},
	{"Let me ", "Let me just "},
}

// extractThinkingDisplay pulls a displayable tail from accumulated
// reasoning text: roughly the last 150 characters, trimmed to start at
// a sentence boundary when one is close, with an ellipsis if cut off.
func extractThinkingDisplay(thinking string) string {
	text := strings.TrimSpace(thinking)
	if text == "" {
		return ""
	}

	if len(text) > 150 {
		text = text[len(text)-150:]
		for _, punct := range []string{". ", "! ", "? ", "\n"} {
			idx := strings.Index(text, punct)
			if idx != -1 && idx < 50 {
				text = text[idx+len(punct):]
				break
			}
		}
	}

	// Drop a leading word fragment left over from the byte cut.
	if text != "" && !startsUpper(text) {
		if space := strings.IndexByte(text, ' '); space != -1 {
			text = text[space+1:]
		}
	}

	text = strings.TrimSpace(text)
	if text != "" && !strings.HasSuffix(text, ".") && !strings.HasSuffix(text, "!") &&
		!strings.HasSuffix(text, "?") && !strings.HasSuffix(text, "...") {
		text += "..."
	}
	return text
}

func startsUpper(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r)
	}
	return false
}

// monologue rewrites a preview fragment into internal-monologue style
// and attaches its deterministic contemplative prefix.
func monologue(fragment string) string {
	if fragment == "" {
		return ""
	}
	for _, pair := range monologueRewrites {
		fragment = strings.ReplaceAll(fragment, pair[0], pair[1])
	}
	return contemplativePrefix(fragment) + fragment
}

// contemplativePrefix hashes the opening of the fragment to pick a
// stable prefix.
func contemplativePrefix(fragment string) string {
	seed := fragment
	if len(seed) > 24 {
		seed = seed[:24]
	}
	h := fnv.New32a()
	h.Write([]byte(seed))
	return contemplativePrefixes[int(h.Sum32())%len(contemplativePrefixes)]
}
