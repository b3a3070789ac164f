package pipeline

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	DefaultMaxFeatures  = 1000
	DefaultKeywordCount = 5
	minTokenRunes       = 2
)

type VectorOptions struct {
	// MaxFeatures caps the vocabulary to the most frequent corpus terms.
	MaxFeatures int
	// KeepStopWords disables English stop word removal.
	KeepStopWords bool
}

// VectorSpace is a TF-IDF representation shared by every document of one
// batch. Rows are L2-normalized, so the dot product of two rows is their
// cosine similarity.
type VectorSpace struct {
	terms []string
	idf   []float64
	rows  []sparseVector
}

// sparseVector holds non-zero weights ordered by term index.
type sparseVector struct {
	index  []int
	weight []float64
}

// BuildVectorSpace fits one TF-IDF space over the whole batch. IDF uses the
// smoothed form ln((1+n)/(1+df)) + 1.
func BuildVectorSpace(docs []string, opts VectorOptions) *VectorSpace {
	maxFeatures := opts.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = DefaultMaxFeatures
	}

	counts := make([]map[string]int, len(docs))
	corpusFreq := make(map[string]int)
	docFreq := make(map[string]int)
	for i, doc := range docs {
		docCounts := make(map[string]int)
		for _, token := range tokenizeTerms(doc, !opts.KeepStopWords) {
			docCounts[token]++
		}
		for token, count := range docCounts {
			corpusFreq[token] += count
			docFreq[token]++
		}
		counts[i] = docCounts
	}

	vocabulary := make([]string, 0, len(corpusFreq))
	for term := range corpusFreq {
		vocabulary = append(vocabulary, term)
	}
	sort.Slice(vocabulary, func(a, b int) bool {
		fa, fb := corpusFreq[vocabulary[a]], corpusFreq[vocabulary[b]]
		if fa != fb {
			return fa > fb
		}
		return vocabulary[a] < vocabulary[b]
	})
	if len(vocabulary) > maxFeatures {
		vocabulary = vocabulary[:maxFeatures]
	}
	sort.Strings(vocabulary)

	termIndex := make(map[string]int, len(vocabulary))
	idf := make([]float64, len(vocabulary))
	n := float64(len(docs))
	for i, term := range vocabulary {
		termIndex[term] = i
		idf[i] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}

	rows := make([]sparseVector, len(docs))
	for i, docCounts := range counts {
		var row sparseVector
		for term := range docCounts {
			idx, ok := termIndex[term]
			if !ok {
				continue
			}
			row.index = append(row.index, idx)
		}
		sort.Ints(row.index)

		row.weight = make([]float64, len(row.index))
		norm := 0.0
		for k, idx := range row.index {
			w := float64(docCounts[vocabulary[idx]]) * idf[idx]
			row.weight[k] = w
			norm += w * w
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for k := range row.weight {
				row.weight[k] /= norm
			}
		}
		rows[i] = row
	}

	return &VectorSpace{
		terms: vocabulary,
		idf:   idf,
		rows:  rows,
	}
}

func (s *VectorSpace) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rows)
}

func (s *VectorSpace) VocabularySize() int {
	if s == nil {
		return 0
	}
	return len(s.terms)
}

// Cosine returns the similarity of documents i and j clamped to [0,1].
// Empty documents score 0 against everything.
func (s *VectorSpace) Cosine(i, j int) float64 {
	if s == nil || i < 0 || j < 0 || i >= len(s.rows) || j >= len(s.rows) {
		return 0
	}
	left, right := s.rows[i], s.rows[j]

	dot := 0.0
	a, b := 0, 0
	for a < len(left.index) && b < len(right.index) {
		switch {
		case left.index[a] == right.index[b]:
			dot += left.weight[a] * right.weight[b]
			a++
			b++
		case left.index[a] < right.index[b]:
			a++
		default:
			b++
		}
	}

	switch {
	case dot < 0 || math.IsNaN(dot):
		return 0
	case dot > 1:
		return 1
	default:
		return dot
	}
}

// Keywords returns the k highest-weighted terms of document i.
func (s *VectorSpace) Keywords(i, k int) map[string]struct{} {
	out := make(map[string]struct{})
	if s == nil || k <= 0 || i < 0 || i >= len(s.rows) {
		return out
	}
	row := s.rows[i]

	order := make([]int, len(row.index))
	for pos := range order {
		order[pos] = pos
	}
	sort.Slice(order, func(a, b int) bool {
		wa, wb := row.weight[order[a]], row.weight[order[b]]
		if wa != wb {
			return wa > wb
		}
		return s.terms[row.index[order[a]]] < s.terms[row.index[order[b]]]
	})
	for _, pos := range order[:min(k, len(order))] {
		out[s.terms[row.index[pos]]] = struct{}{}
	}
	return out
}

// ExtractKeywords picks the top k terms of a single document. It never fails;
// empty or stop-word-only text yields an empty set.
func ExtractKeywords(normalizedText string, k int) map[string]struct{} {
	if strings.TrimSpace(normalizedText) == "" || k <= 0 {
		return map[string]struct{}{}
	}
	return BuildVectorSpace([]string{normalizedText}, VectorOptions{}).Keywords(0, k)
}

// KeywordOverlap counts the terms shared by two keyword sets.
func KeywordOverlap(left, right map[string]struct{}) int {
	if len(left) > len(right) {
		left, right = right, left
	}
	overlap := 0
	for term := range left {
		if _, ok := right[term]; ok {
			overlap++
		}
	}
	return overlap
}

func tokenizeTerms(text string, dropStopWords bool) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordRune(r)
	})
	tokens := fields[:0]
	for _, field := range fields {
		if utf8.RuneCountInString(field) < minTokenRunes {
			continue
		}
		if dropStopWords && IsStopWord(field) {
			continue
		}
		tokens = append(tokens, field)
	}
	return tokens
}
