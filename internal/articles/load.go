// Package articles reads the input article table and writes chained output.
package articles

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"horse.fit/storychain/internal/pipeline"
	payloadschema "horse.fit/storychain/schema"
)

var requiredColumns = []string{"Date", "Headline", "Content"}

// SchemaError reports an input table that cannot be chained at all, such as
// a missing required column. Bad cell values are never schema errors.
type SchemaError struct {
	Source string
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Source == "" {
		return "article table: " + e.Reason
	}
	return fmt.Sprintf("article table %s: %s", e.Source, e.Reason)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

func IsSchemaError(err error) bool {
	var schemaErr *SchemaError
	return errors.As(err, &schemaErr)
}

// LoadFile picks the decoder from the file extension (.json or .csv).
func LoadFile(path string) ([]pipeline.ArticleInput, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("input path is empty")
	}

	file, err := os.Open(trimmed)
	if err != nil {
		return nil, fmt.Errorf("open article table %s: %w", trimmed, err)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(trimmed)) {
	case ".json":
		return LoadJSON(file, trimmed)
	case ".csv":
		return LoadCSV(file, trimmed)
	default:
		return nil, fmt.Errorf("unsupported article table format %q (want .json or .csv)", filepath.Ext(trimmed))
	}
}

// LoadJSON reads an array of {date, headline, content} objects or an
// {"articles": [...]} envelope.
func LoadJSON(r io.Reader, source string) ([]pipeline.ArticleInput, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read article table %s: %w", source, err)
	}

	rows, err := payloadschema.ValidateArticleTable(raw)
	if err != nil {
		if errors.Is(err, payloadschema.ErrInvalidTable) {
			return nil, &SchemaError{Source: source, Reason: err.Error(), Err: err}
		}
		return nil, err
	}

	inputs := make([]pipeline.ArticleInput, 0, len(rows))
	for _, row := range rows {
		inputs = append(inputs, pipeline.ArticleInput{
			Date:     row.Date,
			Headline: row.Headline,
			Content:  row.Content,
			Language: row.Language,
		})
	}
	return inputs, nil
}

// LoadCSV reads a table whose header names Date, Headline, and Content in
// any order and case. A Language column is optional.
func LoadCSV(r io.Reader, source string) ([]pipeline.ArticleInput, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &SchemaError{Source: source, Reason: "missing header row"}
	}
	if err != nil {
		return nil, fmt.Errorf("read article table header %s: %w", source, err)
	}

	columns := make(map[string]int, len(header))
	for idx, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := columns[key]; !dup {
			columns[key] = idx
		}
	}
	var missing []string
	for _, name := range requiredColumns {
		if _, ok := columns[strings.ToLower(name)]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{
			Source: source,
			Reason: fmt.Sprintf("required column(s) not found: %s", strings.Join(missing, ", ")),
		}
	}
	languageIdx, hasLanguage := columns["language"]

	var inputs []pipeline.ArticleInput
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read article table %s: %w", source, err)
		}

		input := pipeline.ArticleInput{
			Date:     cell(record, columns["date"]),
			Headline: cell(record, columns["headline"]),
			Content:  cell(record, columns["content"]),
		}
		if hasLanguage {
			input.Language = cell(record, languageIdx)
		}
		inputs = append(inputs, input)
	}
	return inputs, nil
}

func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}
