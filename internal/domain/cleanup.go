package domain

import "time"

type CleanupCandidate struct {
	Path                  string
	IsDirectory           bool
	EstimatedReclaimBytes int64
	RiskLevel             RiskLevel
	Domain                Domain
	SafeReason            string
	BlockedReason         string
}

func (candidate CleanupCandidate) Blocked() bool {
	return candidate.BlockedReason != ""
}

type DryRunResult struct {
	CleanableItems int
	CleanableBytes int64
	BlockedItems   int
	CoveredItems   int
}

// CleanupPlan is an immutable snapshot; accessors hand out copies.
type CleanupPlan struct {
	ID         string
	ActionType ActionType
	CreatedAt  time.Time
	DryRun     DryRunResult
	candidates []CleanupCandidate
}

func NewCleanupPlan(id string, action ActionType, createdAt time.Time, candidates []CleanupCandidate, dryRun DryRunResult) CleanupPlan {
	return CleanupPlan{
		ID:         id,
		ActionType: action,
		CreatedAt:  createdAt,
		DryRun:     dryRun,
		candidates: append([]CleanupCandidate(nil), candidates...),
	}
}

func (plan CleanupPlan) Candidates() []CleanupCandidate {
	return append([]CleanupCandidate(nil), plan.candidates...)
}

func (plan CleanupPlan) Executable() []CleanupCandidate {
	result := make([]CleanupCandidate, 0, len(plan.candidates))
	for _, candidate := range plan.candidates {
		if !candidate.Blocked() {
			result = append(result, candidate)
		}
	}
	return result
}

type ItemFailure struct {
	Path    string
	Message string
}

type TrashRecord struct {
	OriginalPath string
	TrashPath    string
	IsDirectory  bool
	Bytes        int64
	TrashedAt    time.Time
}

// Execution notes a plan that ran, whatever its action. Undo only ever
// looks at the most recent one.
type Execution struct {
	PlanID     string
	ActionType ActionType
	ExecutedAt time.Time
}

// UndoToken restores the effects of an executed moveToTrash plan.
type UndoToken struct {
	ID        string
	PlanID    string
	CreatedAt time.Time
	Records   []TrashRecord
}

type CleanupExecutionResult struct {
	PlanID          string
	ActionType      ActionType
	CleanedBytes    int64
	CleanedItems    int
	ExcludedItems   int
	FailedItems     int
	Failed          []ItemFailure
	CleanedPaths    []string
	ExcludedPaths   []string
	BeforeUsedBytes *uint64
	AfterUsedBytes  *uint64
	Cancelled       bool
	UndoToken       *UndoToken
}
