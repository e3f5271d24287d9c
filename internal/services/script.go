package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/bobarin/factshorts/internal/models"
)

// ScriptWriter turns a fact into narration plus publishing metadata.
type ScriptWriter interface {
	Name() string
	GenerateScript(ctx context.Context, fact string) (*models.Script, error)
}

const (
	maxTitleRunes     = 60
	scriptKeywordsMax = 3
)

var fallbackHashtags = []string{"facts", "interesting", "shorts", "viral", "amazing"}

const scriptPromptTemplate = `You are a viral YouTube Shorts scriptwriter. Create an ENGAGING, ENTHUSIASTIC script from this fact.

FACT: %s

Transform this fact into an exciting 30-second narration.

Rules:
1. Open with a question or a surprising statement that hooks the viewer
2. Explain the fact in simple, conversational language
3. Add energy with phrases like "Believe it or not!", "Get this:", "Here's the crazy part:"
4. End with "Follow for more amazing facts!"
5. Write exactly what will be spoken out loud, no stage directions
6. Keep it under 50 words

Return ONLY valid JSON with no other text:
{
    "hook": "Opening question or surprising statement",
    "script": "The complete narration (40-50 words)",
    "title": "Catchy title (under 60 chars)",
    "description": "Brief description with hashtags",
    "hashtags": ["facts", "interesting", "shorts", "viral", "science"],
    "keywords": ["keyword1", "keyword2", "keyword3"]
}`

func buildScriptPrompt(fact string) string {
	return fmt.Sprintf(scriptPromptTemplate, fact)
}

// ExtractJSONPayload pulls the JSON object out of an LLM response that may be
// wrapped in markdown fences or surrounded by prose.
func ExtractJSONPayload(raw string) string {
	for _, fence := range []string{"```json", "```"} {
		if i := strings.Index(raw, fence); i >= 0 {
			rest := raw[i+len(fence):]
			if j := strings.Index(rest, "```"); j >= 0 {
				return strings.TrimSpace(rest[:j])
			}
		}
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return strings.TrimSpace(raw)
}

// ParseScript decodes an LLM response into a Script. Anything unusable
// degrades to FallbackScript so generation can continue.
func ParseScript(raw, fact string) *models.Script {
	var s models.Script
	if err := json.Unmarshal([]byte(ExtractJSONPayload(raw)), &s); err != nil {
		log.Printf("[Script] Response was not valid JSON (%v), using fallback script", err)
		return FallbackScript(fact)
	}
	if strings.TrimSpace(s.Script) == "" {
		log.Printf("[Script] Response had no script field, using fallback script")
		return FallbackScript(fact)
	}

	s.Script = strings.TrimSpace(s.Script)
	if s.Hook == "" {
		s.Hook = truncateRunes(fact, 100)
	}
	if s.Title == "" {
		s.Title = fallbackTitle(fact)
	}
	if s.Description == "" {
		s.Description = fallbackDescription(fact)
	}
	if len(s.Hashtags) == 0 {
		s.Hashtags = fallbackHashtags
	}
	if len(s.Keywords) == 0 {
		s.Keywords = ExtractKeywords(fact, scriptKeywordsMax)
	}
	return normalizeScript(&s)
}

// FallbackScript narrates the fact verbatim with generic metadata.
func FallbackScript(fact string) *models.Script {
	return normalizeScript(&models.Script{
		Hook:        truncateRunes(fact, 100),
		Script:      fact,
		Title:       fallbackTitle(fact),
		Description: fallbackDescription(fact),
		Hashtags:    fallbackHashtags,
		Keywords:    ExtractKeywords(fact, scriptKeywordsMax),
	})
}

func fallbackTitle(fact string) string {
	return "Amazing Fact: " + truncateRunes(fact, 40) + "..."
}

func fallbackDescription(fact string) string {
	return fact + "\n\n#facts #interesting #shorts"
}

func normalizeScript(s *models.Script) *models.Script {
	s.Title = truncateRunes(strings.TrimSpace(s.Title), maxTitleRunes)

	tags := lo.FilterMap(s.Hashtags, func(tag string, _ int) (string, bool) {
		tag = strings.TrimLeft(strings.TrimSpace(tag), "#")
		if tag == "" {
			return "", false
		}
		return "#" + tag, true
	})
	s.Hashtags = lo.Uniq(tags)

	s.Keywords = lo.Uniq(lo.Compact(lo.Map(s.Keywords, func(k string, _ int) string {
		return strings.ToLower(strings.TrimSpace(k))
	})))
	return s
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// truncateString truncates a string to maxLen and appends "..." if truncated.
func truncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return truncateRunes(s, maxLen) + "..."
}
