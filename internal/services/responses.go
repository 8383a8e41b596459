package services

import (
	"time"

	"tonic/internal/domain"
)

// ScanSummary describes a finished session. It is final once the session's
// Done channel is closed.
type ScanSummary struct {
	SessionID    string
	Request      ScanRequest
	Phase        domain.ScanPhase
	FilesScanned int64
	BytesScanned int64
	Warnings     int64
	StartedAt    time.Time
	FinishedAt   time.Time
	Insight      *domain.Insight
	// Err is set when the session was aborted by a fatal condition rather
	// than by a cancel request.
	Err error
}

func (summary ScanSummary) Duration() time.Duration {
	return summary.FinishedAt.Sub(summary.StartedAt)
}

type UndoResult struct {
	TokenID  string
	PlanID   string
	Restored []string
	Failed   []domain.ItemFailure
}
