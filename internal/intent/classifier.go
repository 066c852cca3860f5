// Package intent maps free-form utterances to actionable commands.
package intent

import (
	"strings"
	"unicode"

	"sitespeak/internal/domain"
)

// triggerPhrases are matched as substrings of the normalized utterance.
var triggerPhrases = []string{
	"build website",
	"create website",
	"generate website",
}

// Classify maps an utterance to a command intent. It is total: any input,
// including empty text, yields a valid intent and never an error.
func Classify(text string) domain.CommandIntent {
	normalized := normalize(text)
	if normalized == "" {
		return domain.IntentNone
	}
	for _, phrase := range triggerPhrases {
		if strings.Contains(normalized, phrase) {
			return domain.IntentGenerateWebsite
		}
	}
	return domain.IntentNone
}

// normalize lowercases the text, replaces every non-alphanumeric rune with a
// space and collapses runs of whitespace, so "Create, Website!" still hits
// the "create website" trigger.
func normalize(text string) string {
	lowered := strings.ToLower(text)
	var b strings.Builder
	for _, r := range lowered {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteRune(' ')
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
