package pipeline

import "time"

type ChainStats struct {
	Chains      int     `json:"chains"`
	Articles    int     `json:"articles"`
	AverageSize float64 `json:"average_size"`
	MaxSize     int     `json:"max_size"`
	Singletons  int     `json:"singletons"`
}

func ComputeStats(chains [][]int) ChainStats {
	stats := ChainStats{Chains: len(chains)}
	for _, chain := range chains {
		stats.Articles += len(chain)
		stats.MaxSize = max(stats.MaxSize, len(chain))
		if len(chain) == 1 {
			stats.Singletons++
		}
	}
	if stats.Chains > 0 {
		stats.AverageSize = float64(stats.Articles) / float64(stats.Chains)
	}
	return stats
}

// Comparison lines up a baseline grouping against a chaining run.
type Comparison struct {
	Baseline        ChainStats    `json:"baseline"`
	Chained         ChainStats    `json:"chained"`
	ChainDelta      int           `json:"chain_delta"`
	AverageDelta    float64       `json:"average_delta"`
	MaxDelta        int           `json:"max_delta"`
	SingletonDelta  int           `json:"singleton_delta"`
	BaselineElapsed time.Duration `json:"baseline_elapsed"`
	ChainedElapsed  time.Duration `json:"chained_elapsed"`
	JudgeCalls      int           `json:"judge_calls"`
	// Split counts baseline groups whose members the chaining run spread over
	// more than one chain.
	Split int `json:"split"`
}

func Compare(baseline, chained [][]int) Comparison {
	b, c := ComputeStats(baseline), ComputeStats(chained)
	return Comparison{
		Baseline:       b,
		Chained:        c,
		ChainDelta:     c.Chains - b.Chains,
		AverageDelta:   c.AverageSize - b.AverageSize,
		MaxDelta:       c.MaxSize - b.MaxSize,
		SingletonDelta: c.Singletons - b.Singletons,
		Split:          countSplitGroups(baseline, chained),
	}
}

func countSplitGroups(baseline, chained [][]int) int {
	chainOf := make(map[int]int)
	for idx, chain := range chained {
		for _, id := range chain {
			chainOf[id] = idx
		}
	}

	split := 0
	for _, group := range baseline {
		seen := make(map[int]struct{})
		for _, id := range group {
			seen[chainOf[id]] = struct{}{}
		}
		if len(seen) > 1 {
			split++
		}
	}
	return split
}
