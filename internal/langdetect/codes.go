package langdetect

import "strings"

// NormalizeCode reduces a language tag such as "en_US", "EN-gb" or "fi" to
// its lowercase two-letter primary subtag. Anything else, "und" included,
// resolves to "".
func NormalizeCode(raw string) string {
	tag := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "_", "-")
	primary, _, _ := strings.Cut(tag, "-")
	if len(primary) != 2 {
		return ""
	}
	for _, r := range primary {
		if r < 'a' || r > 'z' {
			return ""
		}
	}
	return primary
}
