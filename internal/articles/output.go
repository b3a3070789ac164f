package articles

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"horse.fit/storychain/internal/pipeline"
)

// ChainedArticle is one article as handed to the merging stage.
type ChainedArticle struct {
	ID       int    `json:"id"`
	Date     string `json:"date"`
	Headline string `json:"headline"`
	Content  string `json:"content"`
}

// Story is one chain. StoryID is 1-based and follows chain order.
type Story struct {
	StoryID    int              `json:"story_id"`
	ArticleIDs []int            `json:"article_ids"`
	Articles   []ChainedArticle `json:"articles"`
}

type ChainOutput struct {
	Mode        string              `json:"mode"`
	Interrupted bool                `json:"interrupted"`
	Stats       pipeline.ChainStats `json:"stats"`
	Candidates  int                 `json:"candidates"`
	Accepted    int                 `json:"accepted"`
	JudgeCalls  int                 `json:"judge_calls"`
	Stories     []Story             `json:"chains"`
}

func BuildOutput(result pipeline.ChainResult) ChainOutput {
	out := ChainOutput{
		Mode:        string(result.Mode),
		Interrupted: result.Interrupted,
		Stats:       result.Stats,
		Candidates:  len(result.Candidates),
		Accepted:    len(result.Accepted),
		JudgeCalls:  result.JudgeCalls,
		Stories:     make([]Story, 0, len(result.Chains)),
	}
	for idx, chain := range result.Chains {
		story := Story{
			StoryID:    idx + 1,
			ArticleIDs: append([]int(nil), chain...),
			Articles:   make([]ChainedArticle, 0, len(chain)),
		}
		for _, id := range chain {
			if id < 0 || id >= len(result.Articles) {
				continue
			}
			article := result.Articles[id]
			story.Articles = append(story.Articles, ChainedArticle{
				ID:       article.ID,
				Date:     article.Date,
				Headline: article.Headline,
				Content:  article.Content,
			})
		}
		out.Stories = append(out.Stories, story)
	}
	return out
}

func WriteJSON(w io.Writer, out ChainOutput) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		return fmt.Errorf("encode chain output: %w", err)
	}
	return nil
}

// WriteCSV flattens chains into "Story Group ID, Date, Headline, Content"
// rows, one per article.
func WriteCSV(w io.Writer, out ChainOutput) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Story Group ID", "Date", "Headline", "Content"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, story := range out.Stories {
		groupID := strconv.Itoa(story.StoryID)
		for _, article := range story.Articles {
			if err := writer.Write([]string{groupID, article.Date, article.Headline, article.Content}); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv output: %w", err)
	}
	return nil
}
