package registry

import "sync"

// Socket is the server half of an accepted connection as seen by the actor.
type Socket interface {
	Send(data []byte) error
	Close(code int, reason string) error
}

// Upgrade is a pending socket pair for an upgrade request that has not yet
// been answered. Exactly one of Accept or Reject is called.
type Upgrade interface {
	// Accept completes the handshake and returns the server half.
	Accept() (Socket, error)
	// Reject abandons the pair, closing the server half with code and reason.
	Reject(code int, reason string)
}

// Response is the outcome of a forwarded request.
// Socket is set only for a switched-protocols answer.
type Response struct {
	Status int
	Body   string
	Socket Socket
}

// Closure describes how a connection ended. Local is set when the server
// chose the close, so only then does Reason come from this process.
type Closure struct {
	Code   int
	Reason string
	Clean  bool
	Local  bool
}

// Interface guard
var _ SocketRegistry = (*memoryRegistry)(nil)

// SocketRegistry is the tagged connection registry of a single session.
// Tags are opaque strings attached at accept time and never change.
type SocketRegistry interface {
	Accept(sock Socket, tags ...string)
	// List returns sockets carrying tag in accept order; empty tag lists all.
	List(tag string) []Socket
	Tags(sock Socket) []string
	Remove(sock Socket)
	Len() int
}

// memoryRegistry is the in-process registry. It lives in the session cell,
// not in the actor, so tags outlive actor hibernation.
type memoryRegistry struct {
	mu    sync.RWMutex
	order []Socket
	tags  map[Socket][]string
}

// NewMemoryRegistry returns an empty in-process registry.
func NewMemoryRegistry() SocketRegistry {
	return &memoryRegistry{
		tags: make(map[Socket][]string),
	}
}

func (r *memoryRegistry) Accept(sock Socket, tags ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tags[sock]; !ok {
		r.order = append(r.order, sock)
	}
	r.tags[sock] = append([]string(nil), tags...)
}

func (r *memoryRegistry) List(tag string) []Socket {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]Socket, 0, len(r.order))
	for _, sock := range r.order {
		if tag == "" || hasTag(r.tags[sock], tag) {
			res = append(res, sock)
		}
	}
	return res
}

func (r *memoryRegistry) Tags(sock Socket) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.tags[sock]...)
}

func (r *memoryRegistry) Remove(sock Socket) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tags[sock]; !ok {
		return
	}
	delete(r.tags, sock)
	for i, s := range r.order {
		if s == sock {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *memoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
