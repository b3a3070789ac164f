package payloadschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed article_table.schema.json
var articleTableSchemaJSON string

// ErrInvalidTable marks payloads that do not have the article table shape.
var ErrInvalidTable = errors.New("invalid article table")

// ArticleRow is one validated article. Null and absent-valued cells are "".
type ArticleRow struct {
	Date     string `json:"date"`
	Headline string `json:"headline"`
	Content  string `json:"content"`
	Language string `json:"language,omitempty"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidateArticleTable accepts either a bare array of articles or an object
// with an "articles" array. Field names are matched case-insensitively, so
// "Date"/"Headline"/"Content" exports validate too.
func ValidateArticleTable(payload json.RawMessage) ([]ArticleRow, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: decode payload JSON: %v", ErrInvalidTable, err)
	}
	value = lowercaseArticleKeys(value)

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("%w: schema validation failed: %v", ErrInvalidTable, err)
	}

	items := articleItems(value)
	rows := make([]ArticleRow, 0, len(items))
	for _, item := range items {
		obj, _ := item.(map[string]any)
		rows = append(rows, ArticleRow{
			Date:     cellText(obj["date"]),
			Headline: cellText(obj["headline"]),
			Content:  cellText(obj["content"]),
			Language: cellText(obj["language"]),
		})
	}
	return rows, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		if err := compiler.AddResource("article_table.schema.json", strings.NewReader(articleTableSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("article_table.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}

func lowercaseArticleKeys(value any) any {
	switch v := value.(type) {
	case []any:
		for i, item := range v {
			v[i] = lowercaseKeys(item)
		}
		return v
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, inner := range v {
			lower := strings.ToLower(strings.TrimSpace(key))
			if lower == "articles" {
				inner = lowercaseArticleKeys(inner)
			}
			out[lower] = inner
		}
		return out
	default:
		return value
	}
}

func lowercaseKeys(value any) any {
	obj, ok := value.(map[string]any)
	if !ok {
		return value
	}
	out := make(map[string]any, len(obj))
	for key, inner := range obj {
		out[strings.ToLower(strings.TrimSpace(key))] = inner
	}
	return out
}

func articleItems(value any) []any {
	switch v := value.(type) {
	case []any:
		return v
	case map[string]any:
		items, _ := v["articles"].([]any)
		return items
	default:
		return nil
	}
}

func cellText(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}
