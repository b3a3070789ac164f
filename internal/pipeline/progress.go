package pipeline

type Stage string

const (
	StagePrepare    Stage = "prepare"
	StageCandidates Stage = "candidates"
	StageValidation Stage = "validation"
	StageChains     Stage = "chains"
	StageDone       Stage = "done"
)

type Progress struct {
	Stage   Stage
	Current int
	Total   int
}

// ProgressFunc receives stage boundaries and per-pair validation ticks.
// Calls are serialized.
type ProgressFunc func(Progress)

func (f ProgressFunc) report(stage Stage, current, total int) {
	if f == nil {
		return
	}
	f(Progress{Stage: stage, Current: current, Total: total})
}
