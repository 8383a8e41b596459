package ui

import (
	"tonic/internal/domain"
	"tonic/internal/services"
)

type startScanMsg struct {
	mode domain.ScanMode
}

type scanEventMsg struct {
	session *services.Session
	event   domain.ScanEvent
}

type scanDoneMsg struct {
	session *services.Session
	summary services.ScanSummary
}

type planMsg struct {
	plan domain.CleanupPlan
	err  error
}

type cleanupResultMsg struct {
	result domain.CleanupExecutionResult
	err    error
}

type undoResultMsg struct {
	result services.UndoResult
	err    error
}
