package judge

import (
	"errors"
	"strings"
	"testing"
)

func TestParseVerdictPlainJSON(t *testing.T) {
	t.Parallel()

	verdict, err := ParseVerdict(`{"same_story": true, "confidence": 0.86, "reason": "Both cover the port strike."}`)
	if err != nil {
		t.Fatalf("ParseVerdict failed: %v", err)
	}
	if !verdict.SameStory || verdict.Confidence != 0.86 {
		t.Fatalf("unexpected verdict: %+v", verdict)
	}
	if verdict.Reason != "Both cover the port strike." {
		t.Fatalf("unexpected reason: %q", verdict.Reason)
	}
}

func TestParseVerdictToleratesFencesAndChatter(t *testing.T) {
	t.Parallel()

	raw := "Here is my answer:\n```json\n{\"same_story\": false, \"confidence\": 0.2}\n```"
	verdict, err := ParseVerdict(raw)
	if err != nil {
		t.Fatalf("ParseVerdict failed: %v", err)
	}
	if verdict.SameStory || verdict.Confidence != 0.2 {
		t.Fatalf("unexpected verdict: %+v", verdict)
	}
	if verdict.Reason != "No reason provided" {
		t.Fatalf("unexpected default reason: %q", verdict.Reason)
	}
}

func TestParseVerdictRejectsMalformedReplies(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"no json":            "SAME_STORY: yes\nCONFIDENCE: 0.9",
		"missing same_story": `{"confidence": 0.9}`,
		"missing confidence": `{"same_story": true}`,
		"confidence too big": `{"same_story": true, "confidence": 1.4}`,
		"negative":           `{"same_story": true, "confidence": -0.1}`,
		"wrong type":         `{"same_story": "yes", "confidence": 0.9}`,
	}
	for name, raw := range cases {
		if _, err := ParseVerdict(raw); !errors.Is(err, ErrMalformedVerdict) {
			t.Fatalf("%s: expected ErrMalformedVerdict, got %v", name, err)
		}
	}
}

func TestBuildPromptIncludesBothArticles(t *testing.T) {
	t.Parallel()

	prompt := buildPrompt(Request{
		First:  ArticleExcerpt{Date: "3 March 2025", Headline: "Dock workers strike", Content: "Ports closed."},
		Second: ArticleExcerpt{Date: "4 March 2025", Headline: "Strike enters day two", Content: "Talks stall."},
	})
	for _, want := range []string{"Date: 3 March 2025", "Headline: Strike enters day two", "Content: Talks stall.", `"same_story"`} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}
