package pipeline

import (
	"math"
	"testing"
	"time"
)

func TestParseArticleDate(t *testing.T) {
	t.Parallel()

	want := time.Date(2025, time.February, 13, 0, 0, 0, 0, time.UTC)
	for _, input := range []string{
		"13 February 2025",
		"  13   February 2025 ",
		"February 13, 2025",
		"13 Feb 2025",
		"2025-02-13",
		"2025-02-13T18:30:00Z",
	} {
		got, ok := ParseArticleDate(input)
		if !ok {
			t.Fatalf("ParseArticleDate(%q): expected success", input)
		}
		if !got.Equal(want) {
			t.Fatalf("ParseArticleDate(%q): got %v want %v", input, got, want)
		}
	}

	for _, input := range []string{"", "nan", "sometime last week"} {
		if _, ok := ParseArticleDate(input); ok {
			t.Fatalf("ParseArticleDate(%q): expected failure", input)
		}
	}
}

func TestDaysApart(t *testing.T) {
	t.Parallel()

	first := time.Date(2025, time.February, 13, 0, 0, 0, 0, time.UTC)
	second := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)
	if got := DaysApart(&first, &second); got != 18 {
		t.Fatalf("unexpected days apart: got %d want 18", got)
	}
	if got := DaysApart(&second, &first); got != 18 {
		t.Fatalf("days apart must be symmetric, got %d", got)
	}
	if got := DaysApart(&first, nil); got != UnknownDaysApart {
		t.Fatalf("unexpected sentinel: got %d want %d", got, UnknownDaysApart)
	}
}

func TestCompositeScore(t *testing.T) {
	t.Parallel()

	cases := []struct {
		similarity float64
		days       int
		overlap    int
		want       float64
	}{
		{similarity: 0.9, days: 1, overlap: 2, want: 0.9 * (1 - 1.0/30) * 1.2},
		{similarity: 0.5, days: 0, overlap: 0, want: 0.5},
		{similarity: 0.5, days: 30, overlap: 3, want: 0},
		{similarity: 0.4, days: UnknownDaysApart, overlap: 0, want: 0.4 * (1 - 999.0/30)},
	}
	for _, tc := range cases {
		got := CompositeScore(tc.similarity, tc.days, tc.overlap, 30)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("CompositeScore(%v,%d,%d): got %f want %f", tc.similarity, tc.days, tc.overlap, got, tc.want)
		}
	}
	if CompositeScore(0.4, 60, 0, 30) >= 0 {
		t.Fatalf("expected distant pairs to score below zero")
	}
}

func TestFindCandidatesRanksAndFilters(t *testing.T) {
	t.Parallel()

	articles := testArticles(t, []ArticleInput{
		{Date: "1 March 2025", Content: "ferry workers strike at helsinki harbour over wages"},
		{Date: "2 March 2025", Content: "ferry workers strike continues at helsinki harbour wages talks"},
		{Date: "25 March 2025", Content: "helsinki harbour reopens after ferry strike"},
		{Date: "not a date", Content: "central bank raises interest rates again"},
		{Date: "3 March 2025", Content: "parliament debates new forestry law"},
	})
	space := BuildVectorSpace(normalizedCorpus(articles), VectorOptions{})
	for i := range articles {
		articles[i].Keywords = space.Keywords(i, DefaultKeywordCount)
	}

	candidates := FindCandidates(articles, space, CandidateOptions{SimilarityThreshold: 0.2})
	if len(candidates) == 0 {
		t.Fatalf("expected candidates")
	}
	for idx, c := range candidates {
		if c.I >= c.J {
			t.Fatalf("candidate %d not ordered: %+v", idx, c)
		}
		if c.Similarity < 0.2 {
			t.Fatalf("candidate %d below threshold: %+v", idx, c)
		}
		if idx > 0 && candidates[idx-1].CompositeScore < c.CompositeScore {
			t.Fatalf("candidates not sorted by composite score at %d", idx)
		}
		if c.I == 3 || c.J == 3 || c.I == 4 || c.J == 4 {
			t.Fatalf("unrelated article produced a candidate: %+v", c)
		}
	}
	if top := candidates[0]; top.I != 0 || top.J != 1 {
		t.Fatalf("expected (0,1) to rank first, got %+v", top)
	}
	if candidates[0].DaysApart != 1 {
		t.Fatalf("unexpected days apart: %+v", candidates[0])
	}
}

func TestFindCandidatesSkipsCrossLanguage(t *testing.T) {
	t.Parallel()

	articles := []Article{
		{ID: 0, NormalizedContent: "ferry strike helsinki", Language: "en"},
		{ID: 1, NormalizedContent: "ferry strike helsinki", Language: "fi"},
		{ID: 2, NormalizedContent: "ferry strike helsinki"},
	}
	space := BuildVectorSpace(normalizedCorpus(articles), VectorOptions{})

	candidates := FindCandidates(articles, space, CandidateOptions{SimilarityThreshold: 0.2, SkipCrossLanguage: true})
	for _, c := range candidates {
		if c.I == 0 && c.J == 1 {
			t.Fatalf("expected cross-language pair to be skipped")
		}
	}
	if len(candidates) != 2 {
		t.Fatalf("unexpected candidate count: got %d want 2", len(candidates))
	}

	all := FindCandidates(articles, space, CandidateOptions{SimilarityThreshold: 0.2})
	if len(all) != 3 {
		t.Fatalf("unexpected candidate count without guard: got %d want 3", len(all))
	}
}

func testArticles(t *testing.T, inputs []ArticleInput) []Article {
	t.Helper()
	return prepareArticles(inputs, prepareOptions{}, testLogger())
}
