package reader

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	readability "codeberg.org/readeck/go-readability/v2"
)

// DefaultExcerptChars bounds the article content sent to a judge.
const DefaultExcerptChars = 500

var (
	htmlTagPattern = regexp.MustCompile(`(?i)<\s*(html|body|p|div|article|br|span|a|h[1-6]|section|main)[\s>/]`)
	placeholderURL = &url.URL{Scheme: "https", Host: "storychain.invalid", Path: "/article"}
)

// LooksLikeHTML reports whether content carries block-level markup.
func LooksLikeHTML(content string) bool {
	return htmlTagPattern.MatchString(content)
}

// ExtractText returns readable plain text. Plain text passes through
// CleanText; markup is reduced with readability, falling back to the
// document excerpt when the main content is empty.
func ExtractText(content string) (string, error) {
	if !LooksLikeHTML(content) {
		return CleanText(content), nil
	}

	article, err := readability.FromReader(strings.NewReader(content), placeholderURL)
	if err != nil {
		return "", fmt.Errorf("readability parse: %w", err)
	}

	var renderedText bytes.Buffer
	if err := article.RenderText(&renderedText); err != nil {
		return "", fmt.Errorf("render readability text: %w", err)
	}

	text := CleanText(renderedText.String())
	if text == "" {
		text = CleanText(article.Excerpt())
	}
	return text, nil
}

// CleanText collapses in-line whitespace and keeps one blank line between
// non-empty lines. CR and CRLF endings count as line breaks.
func CleanText(raw string) string {
	var b strings.Builder
	for line := range strings.FieldsFuncSeq(raw, func(r rune) bool { return r == '\n' || r == '\r' }) {
		words := strings.Fields(line)
		if len(words) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.Join(words, " "))
	}
	return b.String()
}

const ellipsis = "…"

// TruncateText trims raw and clips it to maxChars runes, the last of which
// is an ellipsis when anything was cut. maxChars <= 0 disables clipping.
func TruncateText(raw string, maxChars int) (string, bool) {
	text := strings.TrimSpace(raw)
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text, false
	}
	runes := []rune(text)
	head := strings.TrimSpace(string(runes[:maxChars-1]))
	return head + ellipsis, true
}

// Excerpt flattens content to one paragraph-joined line and clips it.
func Excerpt(content string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultExcerptChars
	}
	flat := strings.Join(strings.Fields(content), " ")
	out, _ := TruncateText(flat, maxChars)
	return out
}
