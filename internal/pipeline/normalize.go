package pipeline

import (
	"fmt"
	"strings"
	"unicode"
)

// noValueLiterals are cell values spreadsheets and dataframes emit for
// missing data.
var noValueLiterals = map[string]struct{}{
	"nan":  {},
	"none": {},
	"null": {},
	"nil":  {},
}

// Normalize is total over arbitrary cell values. Text is normalized with
// NormalizeText; nil, numbers, and every other non-text value map to "".
func Normalize(value any) (out string) {
	defer func() {
		if recover() != nil {
			out = ""
		}
	}()

	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return NormalizeText(v)
	case *string:
		if v == nil {
			return ""
		}
		return NormalizeText(*v)
	case []byte:
		return NormalizeText(string(v))
	case fmt.Stringer:
		return NormalizeText(v.String())
	default:
		return ""
	}
}

// NormalizeText lowercases text, drops punctuation and symbols without
// inserting spaces, and collapses whitespace runs to one space.
func NormalizeText(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	if _, ok := noValueLiterals[strings.ToLower(trimmed)]; ok {
		return ""
	}

	var b strings.Builder
	b.Grow(len(trimmed))
	lastSpace := false
	for _, r := range strings.ToLower(trimmed) {
		switch {
		case unicode.IsSpace(r):
			if !lastSpace && b.Len() > 0 {
				b.WriteByte(' ')
				lastSpace = true
			}
		case isWordRune(r):
			b.WriteRune(r)
			lastSpace = false
		}
	}
	return strings.TrimRight(b.String(), " ")
}

func isWordRune(r rune) bool {
	return r == '_' ||
		unicode.IsLetter(r) ||
		unicode.IsNumber(r) ||
		unicode.In(r, unicode.Mn, unicode.Mc)
}
