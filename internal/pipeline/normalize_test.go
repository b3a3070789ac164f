package pipeline

import (
	"math"
	"testing"
	"time"
)

type panickyStringer struct{}

func (*panickyStringer) String() string { panic("boom") }

func TestNormalizeTextStripsPunctuationAndCollapses(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"  Hello,   WORLD!! ":          "hello world",
		"U.S. talks - day two":         "us talks day two",
		"Don't\tstop\n\nnow":           "dont stop now",
		"Helsingin Sanomat: Ääni 2025": "helsingin sanomat ääni 2025",
		"snake_case stays":             "snake_case stays",
		"!!!":                          "",
		"NaN":                          "",
		" None ":                       "",
		"null":                         "",
	}
	for input, want := range cases {
		if got := NormalizeText(input); got != want {
			t.Fatalf("NormalizeText(%q): got %q want %q", input, got, want)
		}
	}
}

func TestNormalizeIsTotal(t *testing.T) {
	t.Parallel()

	var nilString *string
	var nilStringer *panickyStringer
	values := []any{
		nil,
		"",
		42,
		int64(7),
		3.14,
		math.NaN(),
		true,
		nilString,
		nilStringer,
		[]int{1, 2},
		map[string]string{"a": "b"},
		struct{}{},
	}
	for _, value := range values {
		if got := Normalize(value); got != "" {
			t.Fatalf("Normalize(%#v): got %q want empty", value, got)
		}
	}

	text := "Breaking: Strike!"
	if got := Normalize(&text); got != "breaking strike" {
		t.Fatalf("unexpected pointer normalization: %q", got)
	}
	if got := Normalize([]byte("Ferry, Line")); got != "ferry line" {
		t.Fatalf("unexpected byte normalization: %q", got)
	}
	if got := Normalize(time.Duration(0)); got != "0s" {
		t.Fatalf("unexpected stringer normalization: %q", got)
	}
}
