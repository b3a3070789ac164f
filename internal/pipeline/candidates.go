package pipeline

import (
	"sort"

	"horse.fit/storychain/internal/langdetect"
)

const (
	DefaultSimilarityThreshold = 0.25
	DefaultDecayWindowDays     = 30.0
	keywordOverlapBoost        = 0.1
)

// Pair is an unordered article pair stored with I < J.
type Pair struct {
	I int `json:"i"`
	J int `json:"j"`
}

// CandidatePair is a pair whose lexical similarity cleared the floor.
type CandidatePair struct {
	I              int     `json:"i"`
	J              int     `json:"j"`
	Similarity     float64 `json:"similarity"`
	DaysApart      int     `json:"days_apart"`
	KeywordOverlap int     `json:"keyword_overlap"`
	CompositeScore float64 `json:"composite_score"`
}

func (c CandidatePair) Pair() Pair {
	return Pair{I: c.I, J: c.J}
}

type CandidateOptions struct {
	SimilarityThreshold float64
	DecayWindowDays     float64
	// SkipCrossLanguage drops pairs whose detected languages differ.
	SkipCrossLanguage bool
}

// FindCandidates scores every pair of articles over the shared space and
// returns those at or above the similarity floor, best composite score
// first. Ties keep (I, J) order.
func FindCandidates(articles []Article, space *VectorSpace, opts CandidateOptions) []CandidatePair {
	window := opts.DecayWindowDays
	if window <= 0 {
		window = DefaultDecayWindowDays
	}

	n := min(len(articles), space.Len())
	var candidates []CandidatePair
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			similarity := space.Cosine(i, j)
			if similarity < opts.SimilarityThreshold {
				continue
			}
			if opts.SkipCrossLanguage && !langdetect.Compatible(articles[i].Language, articles[j].Language) {
				continue
			}

			days := DaysApart(articles[i].PublishedOn, articles[j].PublishedOn)
			overlap := KeywordOverlap(articles[i].Keywords, articles[j].Keywords)
			candidates = append(candidates, CandidatePair{
				I:              i,
				J:              j,
				Similarity:     similarity,
				DaysApart:      days,
				KeywordOverlap: overlap,
				CompositeScore: CompositeScore(similarity, days, overlap, window),
			})
		}
	}

	SortCandidates(candidates)
	return candidates
}

// CompositeScore ranks a candidate: similarity decayed linearly over the
// window and boosted 10% per shared keyword. Pairs further apart than the
// window score below zero and rank last.
func CompositeScore(similarity float64, daysApart, keywordOverlap int, windowDays float64) float64 {
	if windowDays <= 0 {
		windowDays = DefaultDecayWindowDays
	}
	decay := 1 - float64(daysApart)/windowDays
	boost := 1 + float64(keywordOverlap)*keywordOverlapBoost
	return similarity * decay * boost
}

func SortCandidates(candidates []CandidatePair) {
	sort.SliceStable(candidates, func(a, b int) bool {
		left, right := candidates[a], candidates[b]
		if left.CompositeScore != right.CompositeScore {
			return left.CompositeScore > right.CompositeScore
		}
		if left.I != right.I {
			return left.I < right.I
		}
		return left.J < right.J
	})
}
