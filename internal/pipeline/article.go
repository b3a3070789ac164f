package pipeline

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/storychain/internal/langdetect"
	"horse.fit/storychain/internal/reader"
)

// ArticleInput is one row of the input table. Missing cells arrive as "".
type ArticleInput struct {
	Date     string `json:"date"`
	Headline string `json:"headline"`
	Content  string `json:"content"`
	Language string `json:"language,omitempty"`
}

// Article is an input row plus the fields derived once per run. IDs are the
// row positions 0..N-1.
type Article struct {
	ID       int
	Date     string
	Headline string
	Content  string

	// Text is the body the judge reads: readability output for markup,
	// Content unchanged otherwise.
	Text              string
	NormalizedContent string
	Keywords          map[string]struct{}
	Language          string
	PublishedOn       *time.Time
}

type prepareOptions struct {
	detectLanguage bool
}

func prepareArticles(inputs []ArticleInput, opts prepareOptions, logger zerolog.Logger) []Article {
	articles := make([]Article, len(inputs))
	for i, input := range inputs {
		content := input.Content
		if reader.LooksLikeHTML(content) {
			text, err := reader.ExtractText(content)
			if err != nil {
				logger.Warn().Err(err).Int("article_id", i).Msg("html extraction failed; using raw content")
			} else {
				content = text
			}
		}

		article := Article{
			ID:                i,
			Date:              strings.TrimSpace(input.Date),
			Headline:          input.Headline,
			Content:           input.Content,
			Text:              content,
			NormalizedContent: NormalizeText(content),
			Keywords:          map[string]struct{}{},
		}
		if parsed, ok := ParseArticleDate(article.Date); ok {
			article.PublishedOn = &parsed
		}
		if opts.detectLanguage {
			article.Language = langdetect.Resolve(input.Language, input.Headline+"\n"+content)
		} else {
			article.Language = langdetect.NormalizeCode(input.Language)
		}
		articles[i] = article
	}
	return articles
}

func normalizedCorpus(articles []Article) []string {
	docs := make([]string, len(articles))
	for i, article := range articles {
		docs[i] = article.NormalizedContent
	}
	return docs
}
