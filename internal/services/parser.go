package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/bobarin/factshorts/internal/models"
)

var ErrFactRejected = errors.New("fact rejected")

const (
	minFactChars  = 10
	longFactChars = 500
)

var keywordStopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true, "in": true,
	"on": true, "at": true, "to": true, "for": true, "of": true, "with": true, "by": true,
	"from": true, "as": true, "is": true, "was": true, "are": true, "were": true, "been": true,
	"be": true, "have": true, "has": true, "had": true, "do": true, "does": true, "did": true,
	"will": true, "would": true, "could": true, "should": true, "may": true, "might": true,
	"can": true, "that": true, "this": true, "these": true, "those": true, "i": true,
	"you": true, "he": true, "she": true, "it": true, "we": true, "they": true, "their": true,
	"them": true, "over": true, "years": true, "year": true, "however": true, "because": true,
	"only": true, "also": true, "when": true, "made": true, "make": true, "used": true,
	"than": true,
}

// Words that tend to return good stock footage.
var keywordPriorityIndicators = []string{
	"pyramid", "ocean", "mountain", "space", "animal", "city",
	"country", "planet", "star", "galaxy", "earth", "sun", "moon",
}

var keywordFallbackTopics = []string{"nature", "science", "discovery"}

// ParseFact normalises raw fact text and rejects anything too short to narrate.
func ParseFact(raw string) (*models.Fact, error) {
	text := strings.Join(strings.Fields(raw), " ")
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", ErrFactRejected)
	}

	length := utf8.RuneCountInString(text)
	if length < minFactChars {
		return nil, fmt.Errorf("%w: %d characters is too short", ErrFactRejected, length)
	}
	if length > longFactChars {
		log.Printf("[Parser] WARNING: fact is %d characters, narration will run long", length)
	}

	return &models.Fact{
		Text:      text,
		Length:    length,
		WordCount: len(strings.Fields(text)),
	}, nil
}

// CleanFactText collapses whitespace and makes sure the text ends a sentence.
func CleanFactText(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" || strings.HasSuffix(text, ".") || strings.HasSuffix(text, "!") || strings.HasSuffix(text, "?") {
		return text
	}
	return text + "."
}

// ExtractKeywords picks footage search terms from a fact: priority subjects
// first, then the remaining content words in order.
func ExtractKeywords(text string, max int) []string {
	var priority, rest []string
	for _, word := range strings.Fields(strings.ToLower(text)) {
		clean := strings.Trim(word, ".,!?;:()[]{}\"'-")
		if utf8.RuneCountInString(clean) < 4 || keywordStopWords[clean] {
			continue
		}
		isPriority := lo.ContainsBy(keywordPriorityIndicators, func(ind string) bool {
			return strings.Contains(clean, ind)
		})
		if isPriority {
			priority = append(priority, clean)
		} else {
			rest = append(rest, clean)
		}
	}

	keywords := append(lo.Uniq(priority), lo.Uniq(rest)...)
	if len(keywords) < 2 {
		keywords = append(keywords, keywordFallbackTopics...)
	}
	if max > 0 && len(keywords) > max {
		keywords = keywords[:max]
	}
	return keywords
}
