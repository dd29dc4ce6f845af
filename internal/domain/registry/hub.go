package registry

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/webitel/im-relay-service/internal/domain/model"
)

// Actor is the per-session event handler hosted by the Hub.
type Actor interface {
	Initialize(ctx context.Context, controllerToken, satelliteToken string) error
	Fetch(ctx context.Context, r *http.Request, up Upgrade) Response
	OnMessage(ctx context.Context, sock Socket, data []byte)
	OnClose(ctx context.Context, sock Socket, c Closure)
	OnAlarm(ctx context.Context)
	Terminate(ctx context.Context, reason string) error
}

// ActorFactory builds (or rebuilds after hibernation) the actor of a session.
type ActorFactory func(sessionID string, sockets SocketRegistry) Actor

// Hubber defines the gateway used by transport handlers and the scheduler.
type Hubber interface {
	// Do runs fn against the session actor; no other event for the same
	// session runs until fn returns.
	Do(sessionID string, fn func(a Actor))
	// Live reports whether the session currently holds a cell.
	Live(sessionID string) bool
	Sessions() []string
	Stats() model.HubStats
	Shutdown(ctx context.Context)
}

// Interface guard
var _ Hubber = (*Hub)(nil)

type hubConfig struct {
	maxResident int
	idleTTL     time.Duration
}

// resident binds a woken actor to the cell it was built for.
type resident struct {
	cell  *Cell
	actor Actor
}

// Hub implements a [HIBERNATING_REGISTRY] of session cells.
type Hub struct {
	mu    sync.Mutex
	cells map[string]*Cell

	// actors is the resident set. Eviction is hibernation.
	actors *expirable.LRU[string, resident]

	factory   ActorFactory
	config    hubConfig
	logger    *slog.Logger
	startedAt time.Time
}

func NewHub(factory ActorFactory, opts ...Option) *Hub {
	h := &Hub{
		cells:   make(map[string]*Cell),
		factory: factory,
		config: hubConfig{
			maxResident: 4096,
			idleTTL:     10 * time.Minute,
		},
		logger:    slog.Default(),
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.actors = expirable.NewLRU[string, resident](h.config.maxResident, h.onHibernate, h.config.idleTTL)
	return h
}

func (h *Hub) Do(sessionID string, fn func(a Actor)) {
	cell := h.acquire(sessionID)
	defer h.release(cell)

	cell.run(func() {
		fn(h.wake(cell))
	})
}

// acquire returns the live cell of a session, creating it lazily.
func (h *Hub) acquire(sessionID string) *Cell {
	h.mu.Lock()
	defer h.mu.Unlock()

	cell, ok := h.cells[sessionID]
	if !ok {
		cell = newCell(sessionID)
		h.cells[sessionID] = cell
	}
	cell.refs++
	return cell
}

// release performs [GRACEFUL_RECLAMATION]: a cell with no sockets and no
// in-flight events is dropped. Durable state stays in the store.
func (h *Hub) release(cell *Cell) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cell.refs--
	if !cell.idle() {
		return
	}
	if h.cells[cell.sessionID] == cell {
		delete(h.cells, cell.sessionID)
		h.actors.Remove(cell.sessionID)
	}
}

// wake returns the resident actor of cell, rebuilding it if it hibernated.
// Caller holds the cell lock.
func (h *Hub) wake(cell *Cell) Actor {
	if r, ok := h.actors.Get(cell.sessionID); ok && r.cell == cell {
		// Re-adding refreshes the residency deadline.
		h.actors.Add(cell.sessionID, r)
		return r.actor
	}

	a := h.factory(cell.sessionID, cell.sockets)
	h.actors.Add(cell.sessionID, resident{cell: cell, actor: a})
	h.logger.Debug("[HUB] actor woken", slog.String("session_id", cell.sessionID))
	return a
}

func (h *Hub) onHibernate(sessionID string, _ resident) {
	h.logger.Debug("[HUB] actor hibernated", slog.String("session_id", sessionID))
}

func (h *Hub) Live(sessionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.cells[sessionID]
	return ok
}

func (h *Hub) Sessions() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids := make([]string, 0, len(h.cells))
	for id := range h.cells {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (h *Hub) Stats() model.HubStats {
	h.mu.Lock()
	cells := make([]*Cell, 0, len(h.cells))
	for _, c := range h.cells {
		cells = append(cells, c)
	}
	h.mu.Unlock()

	stats := model.HubStats{
		ActiveSessions: len(cells),
		ResidentActors: h.actors.Len(),
		Uptime:         time.Since(h.startedAt),
		Sessions:       make([]model.SessionStats, 0, len(cells)),
	}
	for _, c := range cells {
		s := model.SessionStats{
			SessionID:   c.sessionID,
			Controllers: len(c.sockets.List(model.RoleTag(model.RoleController))),
			Satellites:  len(c.sockets.List(model.RoleTag(model.RoleSatellite))),
			Unknown:     len(c.sockets.List(model.RoleTag(model.RoleUnknown))),
		}
		stats.TotalConnections += c.sockets.Len()
		stats.Sessions = append(stats.Sessions, s)
	}
	sort.Slice(stats.Sessions, func(i, j int) bool {
		return stats.Sessions[i].SessionID < stats.Sessions[j].SessionID
	})
	return stats
}

// Shutdown closes every live session with the server sentinel reason.
func (h *Hub) Shutdown(ctx context.Context) {
	for _, id := range h.Sessions() {
		h.Do(id, func(a Actor) {
			if err := a.Terminate(ctx, "shutdown"); err != nil {
				h.logger.Warn("[HUB] terminate on shutdown failed",
					slog.String("session_id", id),
					slog.Any("err", err),
				)
			}
		})
	}
	h.actors.Purge()
}
