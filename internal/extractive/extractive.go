// Package extractive builds a local summary from an item's own text when no
// remote summarizer answers.
package extractive

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"

	"NewsAgent/internal/domain"
)

const (
	MaxSummaryRunes = 180
	MaxTitleRunes   = 120
	maxSentences    = 2
)

var (
	urlPattern = regexp.MustCompile(`https?://\S+`)
	policy     = bluemonday.StrictPolicy()
)

// Summarize returns the first one or two sentences of the cleaned description,
// falling back to the title. It returns "" when both inputs are empty.
func Summarize(title, description string) string {
	title = strings.TrimSpace(title)
	desc := Clean(description)
	if desc == "" {
		return domain.TruncateRunes(title, MaxTitleRunes)
	}

	sentences := splitSentences(desc)
	if len(sentences) > maxSentences {
		sentences = sentences[:maxSentences]
	}
	out := strings.TrimSpace(strings.Join(sentences, " "))
	if out == "" {
		return domain.TruncateRunes(title, MaxTitleRunes)
	}
	return domain.TruncateRunes(out, MaxSummaryRunes)
}

// Clean strips markup, decodes entities, drops URLs and collapses whitespace.
func Clean(text string) string {
	if text == "" {
		return ""
	}
	text = html.UnescapeString(policy.Sanitize(text))
	text = urlPattern.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}

// splitSentences breaks after a terminator that is followed by whitespace.
func splitSentences(text string) []string {
	runes := []rune(text)
	var (
		out   []string
		start int
	)
	for i := 0; i < len(runes)-1; i++ {
		if !isTerminator(runes[i]) || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		out = append(out, string(runes[start:i+1]))
		for i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			i++
		}
		start = i + 1
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

func isTerminator(r rune) bool {
	switch r {
	case '。', '！', '？', '.', '!', '?':
		return true
	}
	return false
}
