package domain

import "time"

// Stage enumerates the per-user pipeline milestones.
type Stage string

const (
	StageCollecting  Stage = "collecting"
	StageSelecting   Stage = "selecting"
	StageEnriching   Stage = "enriching"
	StageSummarizing Stage = "summarizing"
	StageComposing   Stage = "composing"
	StageRendering   Stage = "rendering"
	StageDelivering  Stage = "delivering"
	StageRecording   Stage = "recording"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

// RunReport summarizes one user's run.
type RunReport struct {
	User       User
	Stage      Stage
	FailedAt   Stage
	Err        error
	Candidates int
	Selected   int
	Articles   int
	Documents  []string
	Delivered  bool
	Recorded   int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Failed reports whether the run ended in the failed state.
func (r RunReport) Failed() bool {
	return r.Stage == StageFailed
}
