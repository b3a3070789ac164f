package langdetect

import "testing"

func TestNormalizeCode(t *testing.T) {
	t.Parallel()

	if got := NormalizeCode(" PL-pl "); got != "pl" {
		t.Fatalf("unexpected normalized code: %q", got)
	}
	if got := NormalizeCode("und"); got != "" {
		t.Fatalf("expected und to normalize to empty code, got %q", got)
	}
	if got := NormalizeCode("en_GB"); got != "en" {
		t.Fatalf("unexpected underscore code: %q", got)
	}
	if got := NormalizeCode("e1-US"); got != "" {
		t.Fatalf("expected non-letter subtag to be rejected, got %q", got)
	}
	if got := NormalizeCode(" "); got != "" {
		t.Fatalf("expected empty code for blank input, got %q", got)
	}
}

func TestResolvePrefersExplicitTag(t *testing.T) {
	t.Parallel()

	if got := Resolve("fi-FI", "This text is English but the column says Finnish."); got != "fi" {
		t.Fatalf("unexpected resolved language: %q", got)
	}
	if got := Resolve("", "abc"); got != "" {
		t.Fatalf("expected short sample to stay undetected, got %q", got)
	}
}

func TestCompatible(t *testing.T) {
	t.Parallel()

	if !Compatible("", "fi") || !Compatible("en", "") {
		t.Fatalf("expected unknown language to be compatible")
	}
	if !Compatible("pl", "pl") {
		t.Fatalf("expected same language to be compatible")
	}
	if Compatible("pl", "en") {
		t.Fatalf("expected different languages to be incompatible")
	}
}
