package domain

type SortMode string

const (
	SortBySize SortMode = "size"
	SortByName SortMode = "name"
	SortByMod  SortMode = "mod"
)

type ScanMode string

const (
	ScanQuick    ScanMode = "quick"
	ScanDeep     ScanMode = "deep"
	ScanTargeted ScanMode = "targeted"
)

func (mode ScanMode) Valid() bool {
	switch mode {
	case ScanQuick, ScanDeep, ScanTargeted:
		return true
	default:
		return false
	}
}

type ScanPhase string

const (
	PhaseIdle      ScanPhase = "idle"
	PhasePreparing ScanPhase = "preparing"
	PhaseScanning  ScanPhase = "scanning"
	PhaseIndexing  ScanPhase = "indexing"
	PhaseCompleted ScanPhase = "completed"
	PhaseCancelled ScanPhase = "cancelled"
)

func (phase ScanPhase) Terminal() bool {
	return phase == PhaseCompleted || phase == PhaseCancelled
}

type ActionType string

const (
	ActionMoveToTrash    ActionType = "moveToTrash"
	ActionExcludeForever ActionType = "excludeForever"
	ActionSecureDelete   ActionType = "secureDelete"
)

func (action ActionType) Valid() bool {
	switch action {
	case ActionMoveToTrash, ActionExcludeForever, ActionSecureDelete:
		return true
	default:
		return false
	}
}

// Reversible reports whether executing the action produces an undo token.
func (action ActionType) Reversible() bool {
	return action == ActionMoveToTrash
}
