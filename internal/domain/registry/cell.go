/*
Package registry hosts session actors the way a hibernating actor runtime would.

Key Architectural Concepts:
  - Cells: every live session id owns a Cell that serialises events and keeps
    the tagged socket registry. Events for one session run one at a time,
    events for different sessions run concurrently.
  - Hibernation: actor instances are resident only in a bounded, expiring
    LRU. An evicted actor is rebuilt on the next event from its durable store
    and the cell registry, so it must never keep state in memory.
  - Tags: a connection is described solely by the tags attached when it was
    accepted (see model.Participant.Tags).
*/
package registry

import (
	"sync"
	"time"
)

// Cell implements [ISOLATED_EXECUTION] for a single session.
type Cell struct {
	// [IDENTITY]
	sessionID string

	// [SERIALIZATION]
	// Held for the whole duration of an event handler.
	mu sync.Mutex

	// [SOCKETS]
	// Outlives the actor: hibernation drops the actor, never the registry.
	sockets SocketRegistry

	// refs counts callers that acquired the cell. Guarded by Hub.mu.
	refs int

	// lastActivityAt records the start of the last event. Guarded by mu.
	lastActivityAt time.Time
}

func newCell(sessionID string) *Cell {
	return &Cell{
		sessionID:      sessionID,
		sockets:        NewMemoryRegistry(),
		lastActivityAt: time.Now(),
	}
}

// SessionID returns the session this cell serves.
func (c *Cell) SessionID() string { return c.sessionID }

// Sockets exposes the cell registry.
func (c *Cell) Sockets() SocketRegistry { return c.sockets }

// run executes fn with the cell locked.
func (c *Cell) run(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActivityAt = time.Now()
	fn()
}

// idle reports whether the cell can be dropped. Caller holds Hub.mu.
func (c *Cell) idle() bool {
	return c.refs == 0 && c.sockets.Len() == 0
}
