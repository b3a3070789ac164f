package judge

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

const systemPrompt = "You are an expert news analyst who determines if articles are about the same story. " +
	"Always answer with a single JSON object."

func buildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("Determine if these two articles are about the SAME NEWS STORY or different stories.\n\n")
	writeExcerpt(&b, "Article 1", req.First)
	b.WriteString("\n")
	writeExcerpt(&b, "Article 2", req.Second)
	b.WriteString(`
Are these articles about the SAME ongoing news story, or about DIFFERENT stories?

Consider:
- Are they reporting on the same event or development?
- Do they involve the same key people or organizations?
- Are they part of the same narrative arc?
- Similar topics alone do not make the same story (two different crimes are different stories).

Respond with JSON only, in this exact shape:
{"same_story": true or false, "confidence": number between 0.0 and 1.0, "reason": "one sentence"}`)
	return b.String()
}

func writeExcerpt(b *strings.Builder, label string, excerpt ArticleExcerpt) {
	fmt.Fprintf(b, "%s:\nDate: %s\nHeadline: %s\nContent: %s\n", label, excerpt.Date, excerpt.Headline, excerpt.Content)
}

type verdictPayload struct {
	SameStory  *bool    `json:"same_story"`
	Confidence *float64 `json:"confidence"`
	Reason     string   `json:"reason"`
}

// ParseVerdict decodes a model reply into a Verdict. Markdown code fences and
// text around the JSON object are tolerated; missing fields and confidences
// outside [0,1] are not.
func ParseVerdict(raw string) (*Verdict, error) {
	body := extractJSONObject(raw)
	if body == "" {
		return nil, fmt.Errorf("%w: no JSON object in reply", ErrMalformedVerdict)
	}

	var payload verdictPayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedVerdict, err)
	}
	if payload.SameStory == nil {
		return nil, fmt.Errorf("%w: same_story is missing", ErrMalformedVerdict)
	}
	if payload.Confidence == nil {
		return nil, fmt.Errorf("%w: confidence is missing", ErrMalformedVerdict)
	}
	confidence := *payload.Confidence
	if math.IsNaN(confidence) || math.IsInf(confidence, 0) || confidence < 0 || confidence > 1 {
		return nil, fmt.Errorf("%w: confidence %v outside [0,1]", ErrMalformedVerdict, confidence)
	}

	reason := strings.TrimSpace(payload.Reason)
	if reason == "" {
		reason = "No reason provided"
	}
	return &Verdict{
		SameStory:  *payload.SameStory,
		Confidence: confidence,
		Reason:     reason,
	}, nil
}

func extractJSONObject(raw string) string {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
