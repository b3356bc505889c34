package model

type PullStatus string

const (
	PullPulled   PullStatus = "PULLED"
	PullUpToDate PullStatus = "UP_TO_DATE"
	PullFailed   PullStatus = "FAILED"
)

type PullResult struct {
	Status      PullStatus
	Files       int
	Resolutions []Resolution
	Stashed     bool
	Err         error
}

func (r PullResult) OK() bool {
	return r.Status == PullPulled || r.Status == PullUpToDate
}

func (r PullResult) count(match func(Resolution) bool) int {
	n := 0
	for _, res := range r.Resolutions {
		if match(res) {
			n++
		}
	}
	return n
}

func (r PullResult) Resolved() int {
	return r.count(Resolution.Resolved)
}

func (r PullResult) Skipped() int {
	return r.count(func(res Resolution) bool { return res.Outcome == OutcomeSkipped })
}

func (r PullResult) FailedFiles() int {
	return r.count(func(res Resolution) bool { return res.Outcome == OutcomeFailed })
}

type PushStatus string

const (
	PushPushed    PushStatus = "PUSHED"
	PushNoChanges PushStatus = "NO_CHANGES"
	PushFailed    PushStatus = "FAILED"
)

type PushResult struct {
	Status  PushStatus
	Retried bool
	Pull    *PullResult
	Err     error
}

type RepoAction string

const (
	ActionPull   RepoAction = "PULL"
	ActionPush   RepoAction = "PUSH"
	ActionClone  RepoAction = "CLONE"
	ActionRetire RepoAction = "RETIRE"
	ActionSkip   RepoAction = "SKIP"
)

type RepoStatus string

const (
	RepoSuccess  RepoStatus = "SUCCESS"
	RepoUpToDate RepoStatus = "UP_TO_DATE"
	RepoSkipped  RepoStatus = "SKIPPED"
	RepoFailed   RepoStatus = "FAILED"
)

// RepoReport is what the orchestrator records for one repository.
type RepoReport struct {
	Name   string
	Action RepoAction
	Status RepoStatus
	Detail string
	Err    error
}
