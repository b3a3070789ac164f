package pipeline

import "sort"

// DisjointSet is a union-find forest over article indices 0..n-1.
type DisjointSet struct {
	parent []int
	size   []int
}

func NewDisjointSet(n int) *DisjointSet {
	if n < 0 {
		n = 0
	}
	ds := &DisjointSet{
		parent: make([]int, n),
		size:   make([]int, n),
	}
	for i := range ds.parent {
		ds.parent[i] = i
		ds.size[i] = 1
	}
	return ds
}

func (d *DisjointSet) Len() int {
	return len(d.parent)
}

// Find returns the root of x, compressing the path behind it.
func (d *DisjointSet) Find(x int) int {
	root := x
	for d.parent[root] != root {
		root = d.parent[root]
	}
	for d.parent[x] != root {
		next := d.parent[x]
		d.parent[x] = root
		x = next
	}
	return root
}

// Union merges the sets of a and b and reports whether they were separate.
func (d *DisjointSet) Union(a, b int) bool {
	rootA, rootB := d.Find(a), d.Find(b)
	if rootA == rootB {
		return false
	}
	if d.size[rootA] < d.size[rootB] {
		rootA, rootB = rootB, rootA
	}
	d.parent[rootB] = rootA
	d.size[rootA] += d.size[rootB]
	return true
}

// Components lists every set with members ascending, ordered by smallest
// member.
func (d *DisjointSet) Components() [][]int {
	byRoot := make(map[int]int, len(d.parent))
	var out [][]int
	for i := range d.parent {
		root := d.Find(i)
		pos, ok := byRoot[root]
		if !ok {
			pos = len(out)
			byRoot[root] = pos
			out = append(out, nil)
		}
		out[pos] = append(out[pos], i)
	}
	return out
}

// BuildChains unions every accepted pair and returns the resulting
// partition of 0..n-1. Pairs that are out of range or self-links are
// ignored. The output does not depend on the order of pairs.
func BuildChains(pairs []Pair, n int) [][]int {
	ds := NewDisjointSet(n)
	for _, pair := range pairs {
		if pair.I < 0 || pair.J < 0 || pair.I >= n || pair.J >= n || pair.I == pair.J {
			continue
		}
		ds.Union(pair.I, pair.J)
	}
	return ds.Components()
}

// SingletonChains is the partition with no links.
func SingletonChains(n int) [][]int {
	out := make([][]int, 0, max(n, 0))
	for i := 0; i < n; i++ {
		out = append(out, []int{i})
	}
	return out
}

// GreedyChains groups articles in a single pass: each unused article opens a
// group and absorbs every unused article at or above the threshold. It is
// neither transitive nor order-independent and serves as a baseline only.
func GreedyChains(space *VectorSpace, threshold float64) [][]int {
	n := space.Len()
	used := make([]bool, n)
	var out [][]int
	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}
		used[i] = true
		group := []int{i}
		for j := 0; j < n; j++ {
			if used[j] || space.Cosine(i, j) < threshold {
				continue
			}
			used[j] = true
			group = append(group, j)
		}
		sort.Ints(group)
		out = append(out, group)
	}
	return out
}

// DefaultBaselineThreshold is the similarity cut-off of the legacy grouping.
const DefaultBaselineThreshold = 0.2

// BaselineChains rebuilds the vector space over already prepared articles
// and groups them with GreedyChains.
func BaselineChains(articles []Article, maxFeatures int, threshold float64) [][]int {
	if maxFeatures <= 0 {
		maxFeatures = DefaultMaxFeatures
	}
	space := BuildVectorSpace(normalizedCorpus(articles), VectorOptions{MaxFeatures: maxFeatures})
	return GreedyChains(space, threshold)
}
