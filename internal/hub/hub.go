// Package hub maintains the registry of live subscriber connections and
// performs fan-out of relay frames.
package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tgfeed/internal/domain"
	"tgfeed/internal/metrics"
)

// Subscriber is one live transport endpoint. Send failures mean the
// endpoint is gone; the hub removes it and never retries.
type Subscriber interface {
	ID() string
	Send(v any) error
	Close() error
}

// StatusFunc reports current session health. The hub consults it before
// admitting a new subscriber.
type StatusFunc func(ctx context.Context) domain.SessionStatus

// Hub fans frames out to every registered subscriber. Delivery is
// at-most-once with no buffering or replay: a subscriber registered after a
// broadcast never sees that frame.
type Hub struct {
	status   StatusFunc
	logger   *slog.Logger
	failures *metrics.Counter

	mu    sync.RWMutex
	subs  map[string]*entry
	order []string // registration order, drives broadcast iteration
}

type entry struct {
	sub         Subscriber
	connectedAt time.Time
}

func New(status StatusFunc, logger *slog.Logger) *Hub {
	return &Hub{
		status: status,
		logger: logger,
		subs:   make(map[string]*entry),
	}
}

// Connect admits a subscriber after the session-health precondition. When
// the session requires reconnection the handshake is still answered: the
// subscriber gets a single diagnostic frame and is closed, never
// registered. Returns whether the subscriber was registered.
func (h *Hub) Connect(ctx context.Context, sub Subscriber) bool {
	st := h.status(ctx)
	if st.RequiresReconnect {
		frame := domain.NewErrorFrame("upstream session requires reconnection", &st)
		if err := sub.Send(frame); err != nil {
			h.logger.Debug("diagnostic frame send failed", "subscriber", sub.ID(), "err", err)
		}
		sub.Close()
		h.logger.Warn("subscriber rejected, session unhealthy",
			"subscriber", sub.ID(), "session_status", st.Status)
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub.ID()]; !ok {
		h.subs[sub.ID()] = &entry{sub: sub, connectedAt: time.Now()}
		h.order = append(h.order, sub.ID())
	}
	h.logger.Info("subscriber connected", "subscriber", sub.ID(), "total", len(h.subs))
	return true
}

// InstrumentFailures counts subscribers removed because a send failed.
func (h *Hub) InstrumentFailures(c *metrics.Counter) {
	h.failures = c
}

// Disconnect removes a subscriber. Idempotent.
func (h *Hub) Disconnect(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub.ID())
}

func (h *Hub) removeLocked(id string) {
	if _, ok := h.subs[id]; !ok {
		return
	}
	delete(h.subs, id)
	for i, o := range h.order {
		if o == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	h.logger.Info("subscriber disconnected", "subscriber", id, "total", len(h.subs))
}

// Broadcast sends the frame to every subscriber registered at call time, in
// registration order. A failed send removes that subscriber and delivery
// continues to the rest. Returns the number of successful deliveries.
func (h *Hub) Broadcast(frame any) int {
	h.mu.RLock()
	targets := make([]Subscriber, 0, len(h.order))
	for _, id := range h.order {
		targets = append(targets, h.subs[id].sub)
	}
	h.mu.RUnlock()

	delivered := 0
	var failed []Subscriber
	for _, sub := range targets {
		if err := sub.Send(frame); err != nil {
			h.logger.Warn("subscriber send failed, removing", "subscriber", sub.ID(), "err", err)
			failed = append(failed, sub)
			h.countFailure()
			continue
		}
		delivered++
	}

	if len(failed) > 0 {
		h.mu.Lock()
		for _, sub := range failed {
			h.removeLocked(sub.ID())
		}
		h.mu.Unlock()
		for _, sub := range failed {
			sub.Close()
		}
	}
	return delivered
}

// SendTo delivers a frame to one subscriber, used for connection-scoped
// acknowledgements. A failed send removes the subscriber.
func (h *Hub) SendTo(sub Subscriber, frame any) error {
	if err := sub.Send(frame); err != nil {
		h.mu.Lock()
		h.removeLocked(sub.ID())
		h.mu.Unlock()
		sub.Close()
		h.countFailure()
		return err
	}
	return nil
}

func (h *Hub) countFailure() {
	if h.failures != nil {
		h.failures.Inc()
	}
}

// Len reports the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
