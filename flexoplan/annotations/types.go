// Package annotations provides a low-overhead event stream for tracking
// scheduling runs: what the planner decided, how long the optimizer
// took, and which data inconsistencies were tolerated along the way.
package annotations

import (
	"sync"
	"time"
)

// Event name constants following hierarchical naming pattern
const (
	// Schedule lifecycle
	ScheduleRequested = "schedule/requested"
	ScheduleComputed  = "schedule/computed"
	SchedulePersisted = "schedule/persisted"

	// Genetic optimizer
	OptimizeBegin    = "optimize/begin"
	OptimizeComplete = "optimize/complete"
	OptimizeSkipped  = "optimize/skipped"

	// Multi-machine planning
	GraphBuilt     = "planner/graph.built"
	ReassignMove   = "planner/reassign.move"
	ReassignReport = "planner/reassign.report"

	// Prioritization
	PriorityApplied = "priority/applied"

	// Date recalculation
	DatesComputed = "dates/computed"

	// Tolerated anomalies
	WarnOrderDropped    = "warn/order.dropped"
	WarnRowWithoutQueue = "warn/row.without-queue"
	WarnParse           = "warn/parse"

	// Errors
	ErrorStore    = "error/store"
	ErrorInternal = "error/internal"
)

// Event represents a single annotation event during a scheduling run.
type Event struct {
	Name    string         // Event name using hierarchical constants above
	Start   time.Time      // Start timestamp
	End     time.Time      // End timestamp
	Latency time.Duration  // Duration (End - Start)
	Data    map[string]any // Additional event-specific data
}

// Handler processes annotation events as they occur.
type Handler func(event Event)

// Collector accumulates events during a scheduling run.
type Collector struct {
	enabled bool
	handler Handler

	mu     sync.Mutex
	events []Event
}

// NewCollector creates a new annotation collector. A nil handler
// disables collection entirely.
func NewCollector(handler Handler) *Collector {
	return &Collector{
		enabled: handler != nil,
		handler: handler,
		events:  make([]Event, 0, 32),
	}
}

// Handler returns the underlying event handler.
func (c *Collector) Handler() Handler {
	if c == nil {
		return nil
	}
	return c.handler
}

// Add records a new event. Thread-safe for concurrent access.
func (c *Collector) Add(event Event) {
	if c == nil || !c.enabled {
		return
	}

	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()

	// Call handler outside the lock to avoid deadlocks
	if c.handler != nil {
		c.handler(event)
	}
}

// Emit records an instantaneous event with data.
func (c *Collector) Emit(name string, data map[string]any) {
	now := time.Now()
	c.Add(Event{Name: name, Start: now, End: now, Data: data})
}

// AddTiming records an event that started at start and ends now.
func (c *Collector) AddTiming(name string, start time.Time, data map[string]any) {
	if c == nil || !c.enabled {
		return
	}
	end := time.Now()
	c.Add(Event{
		Name:    name,
		Start:   start,
		End:     end,
		Latency: end.Sub(start),
		Data:    data,
	})
}

// Events returns a copy of all collected events.
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

// Reset clears the collector for reuse.
func (c *Collector) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = c.events[:0]
}
