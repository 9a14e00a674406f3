package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/sync/errgroup"

	"github.com/symposium-ai/symposium/backend/internal/model/thinker"
	"github.com/symposium-ai/symposium/backend/internal/orchestrator"
)

// perspectives rotate across parallel suggestion batches so the
// combined result covers genuinely different viewpoints.
var perspectives = []string{
	"scientific or analytical",
	"philosophical or ethical",
	"artistic or creative",
	"political or social",
	"religious or spiritual",
}

// SuggestThinkers proposes historical or contemporary figures with
// diverse perspectives on the topic. Counts above two fan out into
// parallel batches; results are deduplicated by name. A quota error is
// propagated only when no batch produced anything.
func (s *Service) SuggestThinkers(ctx context.Context, topic string, count int, exclude []string) ([]thinker.Suggestion, error) {
	if count < 1 {
		count = 1
	}
	if count > 5 {
		count = 5
	}

	if count <= 2 {
		return s.suggestBatch(ctx, topic, count, "", exclude)
	}

	type batch struct {
		size        int
		perspective string
	}
	var batches []batch
	remaining := count
	for i := 0; remaining > 0; i++ {
		size := remaining
		if size > 2 {
			size = 2
		}
		batches = append(batches, batch{size: size, perspective: perspectives[i%len(perspectives)]})
		remaining -= size
	}

	results := make([][]thinker.Suggestion, len(batches))
	errs := make([]error, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	for i, b := range batches {
		g.Go(func() error {
			suggestions, err := s.suggestBatch(gctx, topic, b.size, b.perspective, exclude)
			results[i] = suggestions
			errs[i] = err
			// Failures are collected, not fatal; other batches go on.
			return nil
		})
	}
	_ = g.Wait()

	var apiErr *orchestrator.APIError
	for _, err := range errs {
		if err != nil && errors.As(err, &apiErr) && apiErr.Quota {
			break
		}
		apiErr = nil
	}

	var combined []thinker.Suggestion
	seen := make(map[string]struct{})
	for i, suggestions := range results {
		if errs[i] != nil {
			log.Printf("[ai] suggestion batch %d failed: %v", i, errs[i])
			continue
		}
		for _, suggestion := range suggestions {
			key := strings.ToLower(suggestion.Name)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			combined = append(combined, suggestion)
		}
	}

	if len(combined) == 0 && apiErr != nil {
		return nil, apiErr
	}
	if len(combined) > count {
		combined = combined[:count]
	}
	return combined, nil
}

func (s *Service) suggestBatch(ctx context.Context, topic string, count int, perspective string, exclude []string) ([]thinker.Suggestion, error) {
	perspectiveText := ""
	if perspective != "" {
		perspectiveText = fmt.Sprintf("\nFocus on thinkers with a %s perspective.", perspective)
	}

	excludeText := ""
	if len(exclude) > 0 {
		excludeText = fmt.Sprintf(
			"\n\nIMPORTANT: Do NOT suggest any of these people (they have already been suggested): %s",
			strings.Join(exclude, ", "),
		)
	}

	prompt := fmt.Sprintf(`Suggest %d historical or contemporary thinkers who would have interesting and diverse perspectives on this topic: "%s"%s%s

For each thinker, provide:
1. Their full name
2. A brief reason why they would be interesting for this discussion (1-2 sentences)
3. A profile including:
   - Bio: A 2-3 sentence biographical summary
   - Positions: Their known positions and beliefs relevant to the topic (2-3 sentences)
   - Style: How they communicate - their rhetorical style, tone, and manner (1-2 sentences)

Aim for diversity: include people from different eras, backgrounds, and viewpoints.
People who might disagree with each other make for more interesting discussions.

Format your response as JSON with this structure:
[
  {
    "name": "Full Name",
    "reason": "Why they're interesting for this topic",
    "profile": {
      "name": "Full Name",
      "bio": "Biographical summary",
      "positions": "Their positions and beliefs",
      "style": "Communication style"
    }
  }
]

Return ONLY the JSON array, no other text.`, count, topic, perspectiveText, excludeText)

	response, err := s.chatModel.Generate(ctx,
		[]*schema.Message{schema.UserMessage(prompt)},
		model.WithMaxTokens(1000),
	)
	if err != nil {
		return nil, wrapProviderError(err)
	}

	var suggestions []thinker.Suggestion
	if err := json.Unmarshal([]byte(stripCodeFences(response.Content)), &suggestions); err != nil {
		log.Printf("[ai] failed to parse suggestions: %v (raw: %.200s)", err, response.Content)
		return nil, nil
	}

	s.attachPortraits(ctx, suggestions)
	return suggestions, nil
}

// ValidateThinker asks the model whether the name refers to a real,
// notable figure and returns the profile when it does.
func (s *Service) ValidateThinker(ctx context.Context, name string) (bool, *thinker.Profile, error) {
	prompt := fmt.Sprintf(`Is "%s" a real historical or contemporary figure who is notable enough to be discussed?

If YES, respond with a JSON object:
{
  "valid": true,
  "profile": {
    "name": "Their correct full name",
    "bio": "A 2-3 sentence biographical summary",
    "positions": "Their known positions and beliefs (2-3 sentences)",
    "style": "How they communicate - their rhetorical style, tone, manner (1-2 sentences)"
  }
}

If NO (fictional, unknown, or too obscure), respond with:
{
  "valid": false,
  "reason": "Brief explanation why"
}

Return ONLY the JSON, no other text.`, name)

	response, err := s.chatModel.Generate(ctx,
		[]*schema.Message{schema.UserMessage(prompt)},
		model.WithMaxTokens(500),
	)
	if err != nil {
		return false, nil, wrapProviderError(err)
	}

	var verdict struct {
		Valid   bool            `json:"valid"`
		Reason  string          `json:"reason"`
		Profile thinker.Profile `json:"profile"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(response.Content)), &verdict); err != nil {
		log.Printf("[ai] failed to parse validation verdict: %v", err)
		return false, nil, nil
	}
	if !verdict.Valid {
		return false, nil, nil
	}

	profile := verdict.Profile
	if s.portraits != nil {
		if url, err := s.portraits.ImageURL(ctx, profile.Name); err == nil {
			profile.ImageURL = url
		}
	}
	return true, &profile, nil
}

// attachPortraits fills image URLs in parallel; lookup failures leave
// the field empty.
func (s *Service) attachPortraits(ctx context.Context, suggestions []thinker.Suggestion) {
	if s.portraits == nil {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := range suggestions {
		g.Go(func() error {
			url, err := s.portraits.ImageURL(gctx, suggestions[i].Name)
			if err == nil {
				suggestions[i].Profile.ImageURL = url
			}
			return nil
		})
	}
	_ = g.Wait()
}

// stripCodeFences removes a wrapping markdown fence the model
// sometimes adds despite instructions.
func stripCodeFences(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		if idx := strings.IndexByte(content, '\n'); idx != -1 {
			content = content[idx+1:]
		} else {
			content = content[3:]
		}
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}
