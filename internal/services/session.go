package services

import (
	"context"
	"sync"

	"tonic/internal/domain"
)

// Session is one scan run. Its event stream ends with exactly one terminal
// event (completed or cancelled), after which Events is closed.
type Session struct {
	ID      string
	Request ScanRequest

	events      chan domain.ScanEvent
	cancel      context.CancelFunc
	done        chan struct{}
	released    chan struct{}
	releaseOnce sync.Once
	summary     ScanSummary

	phaseMu sync.Mutex
	phase   domain.ScanPhase
}

// Events must be drained until it is closed, or the session released. A
// reader that is a full buffer behind when the session ends still receives
// the terminal event once it catches up.
func (session *Session) Events() <-chan domain.ScanEvent {
	return session.events
}

// Release tells a session that its reader has gone away. A terminal event
// still waiting for buffer room is dropped and Events is closed.
func (session *Session) Release() {
	session.releaseOnce.Do(func() { close(session.released) })
}

// Cancel stops the session. Cancelling a finished session has no effect.
func (session *Session) Cancel() {
	session.cancel()
}

// Done is closed once the session no longer mutates the index.
func (session *Session) Done() <-chan struct{} {
	return session.done
}

func (session *Session) Phase() domain.ScanPhase {
	session.phaseMu.Lock()
	defer session.phaseMu.Unlock()
	return session.phase
}

// Summary blocks until the session is done.
func (session *Session) Summary() ScanSummary {
	<-session.done
	return session.summary
}

// Wait drains the event stream and returns the summary.
func (session *Session) Wait() ScanSummary {
	for range session.events {
	}
	return session.Summary()
}

func (session *Session) setPhase(phase domain.ScanPhase) {
	session.phaseMu.Lock()
	defer session.phaseMu.Unlock()
	session.phase = phase
}
