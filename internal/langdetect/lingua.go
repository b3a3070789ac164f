// Package langdetect resolves the language of article text.
package langdetect

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	lingua "github.com/pemistahl/lingua-go"
)

const (
	// minLetters is the shortest sample lingua is asked to classify.
	minLetters = 6
	// maxSampleBytes caps how much of a long article is classified.
	maxSampleBytes = 2000
	// minRelativeDistance makes lingua abstain on near ties instead of guessing.
	minRelativeDistance = 0.1
)

var detector = sync.OnceValue(func() lingua.LanguageDetector {
	return lingua.NewLanguageDetectorBuilder().
		FromAllLanguages().
		WithPreloadedLanguageModels().
		WithMinimumRelativeDistance(minRelativeDistance).
		Build()
})

// DetectISO6391 returns the two-letter code of text or "" when the sample is
// too short or ambiguous.
func DetectISO6391(text string) string {
	sample := detectionSample(text)
	if !hasLetters(sample, minLetters) {
		return ""
	}

	language, ok := detector().DetectLanguageOf(sample)
	if !ok {
		return ""
	}
	return NormalizeCode(language.IsoCode639_1().String())
}

// Resolve prefers an explicit language tag and falls back to detection.
func Resolve(explicit, text string) string {
	if code := NormalizeCode(explicit); code != "" {
		return code
	}
	return DetectISO6391(text)
}

// Compatible reports whether two articles may describe the same story.
// Unknown languages are compatible with everything.
func Compatible(left, right string) bool {
	return left == "" || right == "" || left == right
}

func detectionSample(text string) string {
	sample := strings.TrimSpace(text)
	if len(sample) <= maxSampleBytes {
		return sample
	}
	cut := maxSampleBytes
	for cut > 0 && !utf8.RuneStart(sample[cut]) {
		cut--
	}
	return sample[:cut]
}

func hasLetters(sample string, n int) bool {
	count := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			count++
			if count >= n {
				return true
			}
		}
	}
	return false
}
