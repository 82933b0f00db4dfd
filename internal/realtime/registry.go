package realtime

import (
	"sync"

	"mercado/internal/logger"
	"mercado/pkg/metrics"
)

// Conn is a push-capable client connection. Send must not block: it either
// queues the frame for delivery or returns an error.
type Conn interface {
	ID() string
	Send(msg []byte) error
	Close() error
}

// BroadcastResult summarises one fan-out.
type BroadcastResult struct {
	Attempted int
	Delivered int
	Failed    int
}

// Registry is the set of live connections. It is owned by the process that
// serves the real-time endpoint and shared with whatever needs to broadcast.
type Registry struct {
	mu     sync.Mutex
	conns  map[string]Conn
	order  []string
	logger logger.Logger
}

func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		conns:  make(map[string]Conn),
		logger: log,
	}
}

// Register adds conn. Registering an id that is already present is a no-op.
func (r *Registry) Register(conn Conn) {
	r.mu.Lock()
	if _, ok := r.conns[conn.ID()]; ok {
		r.mu.Unlock()
		return
	}
	r.conns[conn.ID()] = conn
	r.order = append(r.order, conn.ID())
	count := len(r.conns)
	r.mu.Unlock()

	metrics.SetConnectionsActive(count)
	metrics.IncConnectionEvent("registered")
	r.logger.Infow("Client connected", "connection_id", conn.ID(), "connections", count)
}

// Unregister removes conn and reports whether it was present. Calling it
// for an unknown or already removed connection has no effect.
func (r *Registry) Unregister(conn Conn) bool {
	removed, count := r.remove(conn.ID())
	if removed {
		metrics.SetConnectionsActive(count)
		metrics.IncConnectionEvent("unregistered")
		r.logger.Infow("Client disconnected", "connection_id", conn.ID(), "connections", count)
	}
	return removed
}

func (r *Registry) remove(id string) (bool, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[id]; !ok {
		return false, len(r.conns)
	}
	delete(r.conns, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true, len(r.conns)
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

func (r *Registry) snapshot() []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := make([]Conn, 0, len(r.order))
	for _, id := range r.order {
		conns = append(conns, r.conns[id])
	}
	return conns
}

// Broadcast sends msg to every registered connection in registration order.
// A connection whose send fails is unregistered and closed; the remaining
// connections still receive the message.
func (r *Registry) Broadcast(msg []byte) BroadcastResult {
	conns := r.snapshot()
	result := BroadcastResult{Attempted: len(conns)}

	for _, conn := range conns {
		if err := conn.Send(msg); err != nil {
			result.Failed++
			r.logger.Warnw("Dropping connection after failed send", "connection_id", conn.ID(), "error", err)
			r.Unregister(conn)
			_ = conn.Close()
			continue
		}
		result.Delivered++
	}

	if result.Failed > 0 {
		metrics.AddSendFailures(result.Failed)
	}
	return result
}

// CloseAll closes every registered connection. Their read loops then
// unregister them.
func (r *Registry) CloseAll() int {
	conns := r.snapshot()
	for _, conn := range conns {
		_ = conn.Close()
	}
	return len(conns)
}
