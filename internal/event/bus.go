// Package event is an in-process bus for collaborators that react to scan
// and cleanup outcomes without sitting on the scan event stream.
package event

import (
	"log/slog"
	"sync"
	"time"
)

type Type string

const (
	ScanCompleted    Type = "scan.completed"
	ScanCancelled    Type = "scan.cancelled"
	InsightReady     Type = "scan.insight"
	CleanupExecuted  Type = "cleanup.executed"
	CleanupUndone    Type = "cleanup.undone"
	ExclusionChanged Type = "exclusion.changed"
)

type Event struct {
	Type      Type
	Timestamp time.Time
	Data      map[string]any
}

type Handler func(Event)

// Bus is backed by a buffered channel drained by Start.
type Bus struct {
	ch      chan Event
	mu      sync.RWMutex
	subs    map[Type][]Handler
	logger  *slog.Logger
	done    chan struct{}
	drained chan struct{}
	stopped bool
}

func NewBus(logger *slog.Logger, bufSize int) *Bus {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &Bus{
		ch:      make(chan Event, bufSize),
		subs:    make(map[Type][]Handler),
		logger:  logger,
		done:    make(chan struct{}),
		drained: make(chan struct{}),
	}
}

func (bus *Bus) Subscribe(eventType Type, handler Handler) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.subs[eventType] = append(bus.subs[eventType], handler)
}

// Publish never blocks; the event is dropped with a warning when the buffer is full.
func (bus *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	select {
	case bus.ch <- e:
	default:
		bus.logger.Warn("event bus full, dropping event", "type", string(e.Type))
	}
}

// Start dispatches until Stop is called, then drains what is buffered.
func (bus *Bus) Start() {
	defer close(bus.drained)
	for {
		select {
		case e := <-bus.ch:
			bus.dispatch(e)
		case <-bus.done:
			for {
				select {
				case e := <-bus.ch:
					bus.dispatch(e)
				default:
					return
				}
			}
		}
	}
}

func (bus *Bus) Stop() {
	bus.mu.Lock()
	if !bus.stopped {
		bus.stopped = true
		close(bus.done)
	}
	bus.mu.Unlock()
}

// Wait blocks until Start has returned after Stop.
func (bus *Bus) Wait() {
	<-bus.drained
}

func (bus *Bus) dispatch(e Event) {
	bus.mu.RLock()
	handlers := bus.subs[e.Type]
	bus.mu.RUnlock()

	for _, handler := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					bus.logger.Error("event handler panicked", "type", string(e.Type), "panic", r)
				}
			}()
			handler(e)
		}()
	}
}
