package broadcast

import (
	"sync"

	"github.com/google/uuid"

	"flightstream-service/internal/domain/entity"
	"flightstream-service/pkg/logger"
	"flightstream-service/pkg/metrics"
)

const defaultBuffer = 4

// Subscription receives every batch broadcast after it was created.
// C is closed by Unsubscribe or Hub.Close. Batches are shared between
// subscribers and must not be modified.
type Subscription struct {
	ID uuid.UUID
	C  <-chan []entity.Flight

	ch chan []entity.Flight
}

// Hub fans batches out to live subscribers. A full subscriber queue drops its
// oldest batch, so a slow reader never stalls the broadcaster or its peers.
type Hub struct {
	mu      sync.Mutex
	subs    map[uuid.UUID]*Subscription
	buffer  int
	closed  bool
	logger  logger.Logger
	metrics *metrics.Metrics
}

// NewHub creates a hub whose subscribers queue up to buffer batches
func NewHub(buffer int, log logger.Logger, m *metrics.Metrics) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		subs:    make(map[uuid.UUID]*Subscription),
		buffer:  buffer,
		logger:  log.With("component", "broadcast_hub"),
		metrics: m,
	}
}

// Subscribe registers a new subscriber. After Close it returns an already
// closed subscription.
func (h *Hub) Subscribe() *Subscription {
	ch := make(chan []entity.Flight, h.buffer)
	sub := &Subscription{ID: uuid.New(), C: ch, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return sub
	}
	h.subs[sub.ID] = sub
	h.metrics.Subscribers.Set(float64(len(h.subs)))
	h.logger.Debug("Subscriber attached", "subscriberId", sub.ID, "subscribers", len(h.subs))
	return sub
}

// Unsubscribe detaches sub and closes its channel. Safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub.ID]; !ok {
		return
	}
	delete(h.subs, sub.ID)
	close(sub.ch)
	h.metrics.Subscribers.Set(float64(len(h.subs)))
	h.logger.Debug("Subscriber detached", "subscriberId", sub.ID, "subscribers", len(h.subs))
}

// Broadcast delivers batch to every subscriber without blocking and returns
// the number of subscribers reached.
func (h *Hub) Broadcast(batch []entity.Flight) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs {
		select {
		case sub.ch <- batch:
			continue
		default:
		}

		// Queue full: drop the oldest batch and retry once
		select {
		case <-sub.ch:
			h.metrics.DroppedBatches.Inc()
			h.logger.Warn("Dropping oldest batch; subscriber queue full", "subscriberId", sub.ID)
		default:
		}
		select {
		case sub.ch <- batch:
		default:
			h.metrics.DroppedBatches.Inc()
		}
	}
	return len(h.subs)
}

// Len returns the number of live subscribers
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close detaches every subscriber. Later subscriptions are closed immediately.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		close(sub.ch)
		delete(h.subs, id)
	}
	h.metrics.Subscribers.Set(0)
}
