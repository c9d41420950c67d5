package diagnostic

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/WessleyAI/wessley-diagnostics/pkg/fn"
)

// DefaultVocabulary is the canonical symptom phrase list scanned for in the
// free-text description.
var DefaultVocabulary = []string{
	"rough idle",
	"engine misfire",
	"check engine light",
	"poor fuel economy",
	"stalling",
	"loss of power",
	"car won't start",
	"slow cranking",
	"grinding noise",
	"squealing brakes",
	"vibration when braking",
	"brake pedal pulsation",
	"overheating",
	"coolant leak",
	"dimming headlights",
	"battery warning light",
	"delayed shifting",
	"transmission slipping",
	"whining noise",
	"burning smell",
	"rotten egg smell",
	"fuel smell",
}

// DefaultStopWords are dropped from keyword extraction. Words of three runes
// or fewer are dropped regardless.
var DefaultStopWords = []string{
	"when", "that", "this", "with", "from", "have", "been", "will", "would",
	"there", "their", "they", "them", "then", "than", "what", "some", "also",
	"just", "like", "very", "into", "after", "about",
}

const minKeywordLen = 4

// ExtractSymptoms returns the vocabulary phrases found in text, in
// vocabulary order.
func (e *Engine) ExtractSymptoms(text string) []string {
	lower := strings.ToLower(text)
	out := []string{}
	for _, phrase := range e.vocab {
		if strings.Contains(lower, phrase) {
			out = append(out, phrase)
		}
	}
	return out
}

// ExtractKeywords tokenizes text on anything that is not a letter or digit
// and returns the distinct lowercase words that survive the length and
// stop-word filters, in first-seen order.
func (e *Engine) ExtractKeywords(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	kept := fn.Filter(words, func(w string) bool {
		return utf8.RuneCountInString(w) >= minKeywordLen && !e.stop[w]
	})
	out := fn.Unique(kept)
	if out == nil {
		return []string{}
	}
	return out
}
