// Package annotations provides a low-overhead event system for tracking
// mesh store operations: ledger flushes, skinning, exports and diffs.
package annotations

import (
	"runtime"
	"strconv"
	"sync"
	"time"
)

// Event name constants following hierarchical naming pattern
const (
	// Ledger lifecycle
	LedgerRecord  = "ledger/record"
	LedgerFlush   = "ledger/flush"
	LedgerDiscard = "ledger/discard"

	// Store materialization
	EntitiesLoaded = "entities/loaded"

	// Topology
	TopologyIndexed = "topology/indexed"
	TopologySkinned = "topology/skinned"

	// Selection and set operations
	SelectorCaptured = "selector/captured"
	SetOpApplied     = "setops/applied"

	// Derived stores
	ExportCompleted = "export/completed"
	DiffCompleted   = "diff/completed"

	// Errors
	ErrorFlush = "error/flush"
)

// Event represents a single annotation event.
type Event struct {
	Name    string                 // Event name using hierarchical constants above
	Start   time.Time              // Start timestamp
	End     time.Time              // End timestamp
	Latency time.Duration          // Duration (End - Start)
	Data    map[string]interface{} // Event-specific data
	Caller  string                 // Optional: file:line where event occurred
}

// Handler processes annotation events as they occur.
type Handler func(event Event)

// Collector accumulates events and forwards them to a handler.
// A nil *Collector is valid and discards everything.
type Collector struct {
	handler    Handler
	events     []Event
	withCaller bool
	mu         sync.Mutex
}

// NewCollector creates a new annotation collector. A nil handler yields a
// disabled collector.
func NewCollector(handler Handler) *Collector {
	if handler == nil {
		return nil
	}
	return &Collector{
		handler: handler,
		events:  make([]Event, 0, 32),
	}
}

// WithCaller makes the collector stamp events with the caller's file:line.
func (c *Collector) WithCaller() *Collector {
	if c != nil {
		c.withCaller = true
	}
	return c
}

// Enabled reports whether events are being collected
func (c *Collector) Enabled() bool {
	return c != nil
}

// Handler returns the underlying event handler.
func (c *Collector) Handler() Handler {
	if c == nil {
		return nil
	}
	return c.handler
}

// Add records a new event.
// Thread-safe for concurrent access.
func (c *Collector) Add(event Event) {
	if c == nil {
		return
	}

	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()

	// Call handler outside the lock to avoid deadlocks
	c.handler(event)
}

// AddTiming records an event that started at start and ends now.
func (c *Collector) AddTiming(name string, start time.Time, data map[string]interface{}) {
	if c == nil {
		return
	}

	end := time.Now()
	event := Event{
		Name:    name,
		Start:   start,
		End:     end,
		Latency: end.Sub(start),
		Data:    data,
	}
	if c.withCaller {
		if _, file, line, ok := runtime.Caller(1); ok {
			event.Caller = file + ":" + strconv.Itoa(line)
		}
	}

	c.Add(event)
}

// Events returns all collected events.
func (c *Collector) Events() []Event {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	eventsCopy := make([]Event, len(c.events))
	copy(eventsCopy, c.events)
	return eventsCopy
}

// Named returns the collected events with the given name
func (c *Collector) Named(name string) []Event {
	var out []Event
	for _, e := range c.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// Reset clears the collected events, keeping the handler.
func (c *Collector) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = c.events[:0]
}
