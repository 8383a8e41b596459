package domain

type EventKind string

const (
	EventPhaseStarted     EventKind = "phaseStarted"
	EventProgress         EventKind = "progress"
	EventNodeIndexed      EventKind = "nodeIndexed"
	EventNodeIndexedBatch EventKind = "nodeIndexedBatch"
	EventInsightReady     EventKind = "insightReady"
	EventWarning          EventKind = "warning"
	EventCompleted        EventKind = "completed"
	EventCancelled        EventKind = "cancelled"
)

type ScanProgress struct {
	FilesScanned int64
	BytesScanned int64
	CurrentPath  string
}

// Insight is the derived observation attached to insightReady.
type Insight struct {
	RootPath       string
	Largest        []StorageNode
	EstimatedNodes int64
	Warnings       int64
}

// ScanEvent is one element of a scan session's ordered event stream. Only the
// fields relevant to Kind are set.
type ScanEvent struct {
	SessionID string
	Kind      EventKind
	Phase     ScanPhase
	Progress  ScanProgress
	Nodes     []StorageNode
	Insight   *Insight
	Message   string
}

func (event ScanEvent) Terminal() bool {
	return event.Kind == EventCompleted || event.Kind == EventCancelled
}
