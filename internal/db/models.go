package db

import (
	"encoding/json"
	"time"
)

// ChainRun maps chaining.chain_runs.
type ChainRun struct {
	ChainRunID     int64           `gorm:"column:chain_run_id;primaryKey;autoIncrement"`
	ChainRunUUID   string          `gorm:"column:chain_run_uuid;type:uuid;not null;unique"`
	Source         string          `gorm:"column:source;type:text;not null;default:''"`
	Mode           string          `gorm:"column:mode;type:text;not null"`
	ArticleCount   int             `gorm:"column:article_count;type:integer;not null;default:0"`
	CandidateCount int             `gorm:"column:candidate_count;type:integer;not null;default:0"`
	AcceptedCount  int             `gorm:"column:accepted_count;type:integer;not null;default:0"`
	ChainCount     int             `gorm:"column:chain_count;type:integer;not null;default:0"`
	SingletonCount int             `gorm:"column:singleton_count;type:integer;not null;default:0"`
	MaxChainSize   int             `gorm:"column:max_chain_size;type:integer;not null;default:0"`
	JudgeCalls     int             `gorm:"column:judge_calls;type:integer;not null;default:0"`
	JudgeFallbacks int             `gorm:"column:judge_fallbacks;type:integer;not null;default:0"`
	Interrupted    bool            `gorm:"column:interrupted;type:boolean;not null;default:false"`
	Options        json.RawMessage `gorm:"column:options;type:jsonb"`
	StartedAt      time.Time       `gorm:"column:started_at;type:timestamptz;not null"`
	FinishedAt     time.Time       `gorm:"column:finished_at;type:timestamptz;not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (ChainRun) TableName() string { return "chaining.chain_runs" }

// ChainCandidate maps chaining.chain_candidates. Verdict columns are null
// for candidates that were never sent to a judge.
type ChainCandidate struct {
	ChainCandidateID int64    `gorm:"column:chain_candidate_id;primaryKey;autoIncrement"`
	ChainRunID       int64    `gorm:"column:chain_run_id;type:bigint;not null"`
	Rank             int      `gorm:"column:rank;type:integer;not null"`
	ArticleI         int      `gorm:"column:article_i;type:integer;not null"`
	ArticleJ         int      `gorm:"column:article_j;type:integer;not null"`
	Similarity       float64  `gorm:"column:similarity;type:double precision;not null"`
	DaysApart        int      `gorm:"column:days_apart;type:integer;not null"`
	KeywordOverlap   int      `gorm:"column:keyword_overlap;type:integer;not null"`
	CompositeScore   float64  `gorm:"column:composite_score;type:double precision;not null"`
	SameStory        *bool    `gorm:"column:same_story;type:boolean"`
	Confidence       *float64 `gorm:"column:confidence;type:double precision"`
	Reason           *string  `gorm:"column:reason;type:text"`
	Fallback         bool     `gorm:"column:fallback;type:boolean;not null;default:false"`
	Accepted         bool     `gorm:"column:accepted;type:boolean;not null;default:false"`
}

func (ChainCandidate) TableName() string { return "chaining.chain_candidates" }

// ChainMember maps chaining.chain_members.
type ChainMember struct {
	ChainMemberID int64  `gorm:"column:chain_member_id;primaryKey;autoIncrement"`
	ChainRunID    int64  `gorm:"column:chain_run_id;type:bigint;not null"`
	ChainIndex    int    `gorm:"column:chain_index;type:integer;not null"`
	ArticleIndex  int    `gorm:"column:article_index;type:integer;not null"`
	ArticleDate   string `gorm:"column:article_date;type:text;not null;default:''"`
	Headline      string `gorm:"column:headline;type:text;not null;default:''"`
}

func (ChainMember) TableName() string { return "chaining.chain_members" }

func autoMigrateModels() []any {
	return []any{
		&ChainRun{},
		&ChainCandidate{},
		&ChainMember{},
	}
}
