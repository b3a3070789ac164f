package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"horse.fit/storychain/internal/pipeline"
)

const (
	defaultRunListLimit = 20
	maxRunListLimit     = 200
	candidateBatchSize  = 500
)

// ChainRunRecord is a chaining result flattened into rows, ready to insert.
type ChainRunRecord struct {
	Run        ChainRun
	Candidates []ChainCandidate
	Members    []ChainMember
}

// BuildChainRunRecord converts a pipeline result into rows. Candidates keep
// their ranked order; verdict columns are only filled for validated ones.
func BuildChainRunRecord(result pipeline.ChainResult, source string, options any) (ChainRunRecord, error) {
	var optionsJSON json.RawMessage
	if options != nil {
		raw, err := json.Marshal(options)
		if err != nil {
			return ChainRunRecord{}, fmt.Errorf("encode chain options: %w", err)
		}
		optionsJSON = raw
	}

	started := result.StartedAt.UTC()
	record := ChainRunRecord{
		Run: ChainRun{
			ChainRunUUID:   uuid.NewString(),
			Source:         strings.TrimSpace(source),
			Mode:           string(result.Mode),
			ArticleCount:   len(result.Articles),
			CandidateCount: len(result.Candidates),
			AcceptedCount:  len(result.Accepted),
			ChainCount:     result.Stats.Chains,
			SingletonCount: result.Stats.Singletons,
			MaxChainSize:   result.Stats.MaxSize,
			JudgeCalls:     result.JudgeCalls,
			JudgeFallbacks: result.Fallbacks,
			Interrupted:    result.Interrupted,
			Options:        optionsJSON,
			StartedAt:      started,
			FinishedAt:     started.Add(result.Elapsed),
		},
		Candidates: make([]ChainCandidate, 0, len(result.Candidates)),
	}

	validated := make(map[pipeline.Pair]pipeline.ValidationResult, len(result.Validations))
	for _, v := range result.Validations {
		validated[v.Pair.Pair()] = v
	}
	for rank, candidate := range result.Candidates {
		row := ChainCandidate{
			Rank:           rank + 1,
			ArticleI:       candidate.I,
			ArticleJ:       candidate.J,
			Similarity:     candidate.Similarity,
			DaysApart:      candidate.DaysApart,
			KeywordOverlap: candidate.KeywordOverlap,
			CompositeScore: candidate.CompositeScore,
		}
		if v, ok := validated[candidate.Pair()]; ok {
			row.Accepted = v.Accepted
			row.Fallback = v.Fallback
			if v.Adjudicated || v.Fallback {
				sameStory, confidence, reason := v.SameStory, v.Confidence, v.Reason
				row.SameStory = &sameStory
				row.Confidence = &confidence
				row.Reason = &reason
			}
		}
		record.Candidates = append(record.Candidates, row)
	}

	for chainIdx, chain := range result.Chains {
		for _, articleIdx := range chain {
			member := ChainMember{
				ChainIndex:   chainIdx,
				ArticleIndex: articleIdx,
			}
			if articleIdx >= 0 && articleIdx < len(result.Articles) {
				member.ArticleDate = result.Articles[articleIdx].Date
				member.Headline = result.Articles[articleIdx].Headline
			}
			record.Members = append(record.Members, member)
		}
	}
	return record, nil
}

// SaveChainRun inserts the run and its rows in one transaction and returns
// the run UUID.
func (p *Pool) SaveChainRun(ctx context.Context, record ChainRunRecord) (string, error) {
	if record.Run.ChainRunUUID == "" {
		record.Run.ChainRunUUID = uuid.NewString()
	}
	err := p.InTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&record.Run).Error; err != nil {
			return fmt.Errorf("insert chain run: %w", err)
		}
		runID := record.Run.ChainRunID
		for i := range record.Candidates {
			record.Candidates[i].ChainRunID = runID
		}
		for i := range record.Members {
			record.Members[i].ChainRunID = runID
		}
		if len(record.Candidates) > 0 {
			if err := tx.CreateInBatches(record.Candidates, candidateBatchSize).Error; err != nil {
				return fmt.Errorf("insert chain candidates: %w", err)
			}
		}
		if len(record.Members) > 0 {
			if err := tx.CreateInBatches(record.Members, candidateBatchSize).Error; err != nil {
				return fmt.Errorf("insert chain members: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return record.Run.ChainRunUUID, nil
}

// ChainRunSummary is the list read model for stored runs.
type ChainRunSummary struct {
	RunUUID        string    `json:"run_uuid"`
	Source         string    `json:"source"`
	Mode           string    `json:"mode"`
	Articles       int       `json:"articles"`
	Candidates     int       `json:"candidates"`
	Accepted       int       `json:"accepted"`
	Chains         int       `json:"chains"`
	Singletons     int       `json:"singletons"`
	MaxChainSize   int       `json:"max_chain_size"`
	JudgeCalls     int       `json:"judge_calls"`
	JudgeFallbacks int       `json:"judge_fallbacks"`
	Interrupted    bool      `json:"interrupted"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

type ChainRunCandidate struct {
	Rank           int      `json:"rank"`
	ArticleI       int      `json:"article_i"`
	ArticleJ       int      `json:"article_j"`
	Similarity     float64  `json:"similarity"`
	DaysApart      int      `json:"days_apart"`
	KeywordOverlap int      `json:"keyword_overlap"`
	CompositeScore float64  `json:"composite_score"`
	SameStory      *bool    `json:"same_story,omitempty"`
	Confidence     *float64 `json:"confidence,omitempty"`
	Reason         *string  `json:"reason,omitempty"`
	Fallback       bool     `json:"fallback"`
	Accepted       bool     `json:"accepted"`
}

type ChainRunMember struct {
	ArticleIndex int    `json:"article_index"`
	Date         string `json:"date"`
	Headline     string `json:"headline"`
}

// ChainRunDetail is one stored run with its candidates and chains.
type ChainRunDetail struct {
	ChainRunSummary
	Options    json.RawMessage     `json:"options,omitempty"`
	Candidates []ChainRunCandidate `json:"candidates"`
	Chains     [][]ChainRunMember  `json:"chains"`
}

const chainRunSummaryColumns = `
	r.chain_run_uuid::text,
	r.source,
	r.mode,
	r.article_count,
	r.candidate_count,
	r.accepted_count,
	r.chain_count,
	r.singleton_count,
	r.max_chain_size,
	r.judge_calls,
	r.judge_fallbacks,
	r.interrupted,
	r.started_at,
	r.finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanChainRunSummary(row scanner, extra ...any) (ChainRunSummary, error) {
	var s ChainRunSummary
	dest := []any{
		&s.RunUUID,
		&s.Source,
		&s.Mode,
		&s.Articles,
		&s.Candidates,
		&s.Accepted,
		&s.Chains,
		&s.Singletons,
		&s.MaxChainSize,
		&s.JudgeCalls,
		&s.JudgeFallbacks,
		&s.Interrupted,
		&s.StartedAt,
		&s.FinishedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return ChainRunSummary{}, err
	}
	s.StartedAt = s.StartedAt.UTC()
	s.FinishedAt = s.FinishedAt.UTC()
	return s, nil
}

// ListChainRuns returns the most recent runs first.
func (p *Pool) ListChainRuns(ctx context.Context, limit int) ([]ChainRunSummary, error) {
	limit = clampRunListLimit(limit)

	rows, err := p.Query(ctx, `
SELECT`+chainRunSummaryColumns+`
FROM chaining.chain_runs r
ORDER BY r.started_at DESC, r.chain_run_id DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query chain runs: %w", err)
	}
	defer rows.Close()

	runs := make([]ChainRunSummary, 0, limit)
	for rows.Next() {
		summary, err := scanChainRunSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chain run: %w", err)
		}
		runs = append(runs, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chain runs: %w", err)
	}
	return runs, nil
}

// GetChainRun loads one run by UUID. A missing run returns ErrNoRows.
func (p *Pool) GetChainRun(ctx context.Context, runUUID string) (*ChainRunDetail, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	parsed, err := uuid.Parse(strings.TrimSpace(runUUID))
	if err != nil {
		return nil, fmt.Errorf("invalid run uuid %q: %w", runUUID, err)
	}

	var (
		runID   int64
		options []byte
	)
	summary, err := scanChainRunSummary(p.QueryRow(ctx, `
SELECT`+chainRunSummaryColumns+`,
	r.options,
	r.chain_run_id
FROM chaining.chain_runs r
WHERE r.chain_run_uuid = $1
`, parsed.String()), &options, &runID)
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("query chain run: %w", err)
	}

	detail := &ChainRunDetail{
		ChainRunSummary: summary,
		Candidates:      make([]ChainRunCandidate, 0, summary.Candidates),
		Chains:          make([][]ChainRunMember, 0, summary.Chains),
	}
	if len(options) > 0 {
		detail.Options = json.RawMessage(options)
	}

	candidateRows, err := p.Query(ctx, `
SELECT
	c.rank,
	c.article_i,
	c.article_j,
	c.similarity,
	c.days_apart,
	c.keyword_overlap,
	c.composite_score,
	c.same_story,
	c.confidence,
	c.reason,
	c.fallback,
	c.accepted
FROM chaining.chain_candidates c
WHERE c.chain_run_id = $1
ORDER BY c.rank ASC
`, runID)
	if err != nil {
		return nil, fmt.Errorf("query chain candidates: %w", err)
	}
	defer candidateRows.Close()
	for candidateRows.Next() {
		var c ChainRunCandidate
		if err := candidateRows.Scan(
			&c.Rank,
			&c.ArticleI,
			&c.ArticleJ,
			&c.Similarity,
			&c.DaysApart,
			&c.KeywordOverlap,
			&c.CompositeScore,
			&c.SameStory,
			&c.Confidence,
			&c.Reason,
			&c.Fallback,
			&c.Accepted,
		); err != nil {
			return nil, fmt.Errorf("scan chain candidate: %w", err)
		}
		detail.Candidates = append(detail.Candidates, c)
	}
	if err := candidateRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chain candidates: %w", err)
	}

	memberRows, err := p.Query(ctx, `
SELECT
	m.chain_index,
	m.article_index,
	m.article_date,
	m.headline
FROM chaining.chain_members m
WHERE m.chain_run_id = $1
ORDER BY m.chain_index ASC, m.article_index ASC
`, runID)
	if err != nil {
		return nil, fmt.Errorf("query chain members: %w", err)
	}
	defer memberRows.Close()

	members := make([]memberRow, 0, summary.Articles)
	for memberRows.Next() {
		var m memberRow
		if err := memberRows.Scan(&m.chainIndex, &m.member.ArticleIndex, &m.member.Date, &m.member.Headline); err != nil {
			return nil, fmt.Errorf("scan chain member: %w", err)
		}
		members = append(members, m)
	}
	if err := memberRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chain members: %w", err)
	}
	detail.Chains = groupChainMembers(members)
	return detail, nil
}

type memberRow struct {
	chainIndex int
	member     ChainRunMember
}

// groupChainMembers folds rows sorted by chain index into chains.
func groupChainMembers(rows []memberRow) [][]ChainRunMember {
	chains := make([][]ChainRunMember, 0)
	last := -1
	for _, row := range rows {
		if row.chainIndex != last || len(chains) == 0 {
			chains = append(chains, make([]ChainRunMember, 0, 4))
			last = row.chainIndex
		}
		chains[len(chains)-1] = append(chains[len(chains)-1], row.member)
	}
	return chains
}

func clampRunListLimit(limit int) int {
	if limit <= 0 {
		return defaultRunListLimit
	}
	return min(limit, maxRunListLimit)
}
