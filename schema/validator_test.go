package payloadschema

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestValidateArticleTable_Array(t *testing.T) {
	payload := json.RawMessage(`[
		{"date":"13 February 2025","headline":"Ferry strike","content":"Workers walked out."},
		{"Date":"14 February 2025","Headline":"Strike day two","Content":null,"Language":"en"},
		{"date":20250215,"headline":"","content":""}
	]`)

	rows, err := ValidateArticleTable(payload)
	if err != nil {
		t.Fatalf("expected payload to be valid, got error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[1].Content != "" || rows[1].Headline != "Strike day two" || rows[1].Language != "en" {
		t.Fatalf("unexpected second row: %+v", rows[1])
	}
	if rows[2].Date != "20250215" {
		t.Fatalf("expected numeric date to be kept as text, got %q", rows[2].Date)
	}
}

func TestValidateArticleTable_Envelope(t *testing.T) {
	payload := json.RawMessage(`{"articles":[{"date":"1 May 2025","headline":"A","content":"alpha"}]}`)

	rows, err := ValidateArticleTable(payload)
	if err != nil {
		t.Fatalf("expected envelope to be valid, got error: %v", err)
	}
	if len(rows) != 1 || rows[0].Headline != "A" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestValidateArticleTable_MissingColumn(t *testing.T) {
	payload := json.RawMessage(`[{"date":"1 May 2025","headline":"No content field"}]`)

	_, err := ValidateArticleTable(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for missing content")
	}
	if !errors.Is(err, ErrInvalidTable) {
		t.Fatalf("expected ErrInvalidTable, got %v", err)
	}
}

func TestValidateArticleTable_RejectsMalformed(t *testing.T) {
	for _, raw := range []string{``, `{"articles":`, `[] []`, `"text"`, `[{"date":[],"headline":"x","content":"y"}]`} {
		if _, err := ValidateArticleTable(json.RawMessage(raw)); !errors.Is(err, ErrInvalidTable) {
			t.Fatalf("expected ErrInvalidTable for %q, got %v", raw, err)
		}
	}
}
