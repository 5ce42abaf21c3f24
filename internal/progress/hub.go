package progress

import (
	"sync"

	"go.uber.org/zap"

	"github.com/modelwatch/modelwatch/internal/telemetry"
)

// hub fans records out to the subscriber channels registered per model name.
// Sends never block: a subscriber whose channel is full simply misses that
// update. The producer is therefore never backpressured by a slow consumer,
// and one stalled subscriber cannot starve its siblings.
type hub struct {
	mu        sync.Mutex
	buffer    int
	listeners map[string]map[chan Record]struct{}
	logger    *zap.Logger
}

func newHub(buffer int, logger *zap.Logger) *hub {
	if buffer <= 0 {
		buffer = defaultChannelBuffer
	}
	return &hub{
		buffer:    buffer,
		listeners: make(map[string]map[chan Record]struct{}),
		logger:    logger,
	}
}

// register creates a bounded channel and adds it to the set for name.
func (h *hub) register(name string) chan Record {
	ch := make(chan Record, h.buffer)
	h.mu.Lock()
	set := h.listeners[name]
	if set == nil {
		set = make(map[chan Record]struct{})
		h.listeners[name] = set
	}
	set[ch] = struct{}{}
	count := len(set)
	h.mu.Unlock()
	telemetry.SubscriberAdded()
	h.logger.Info("subscriber registered",
		zap.String("model", name),
		zap.Int("listeners", count),
	)
	return ch
}

// deregister removes ch from the set for name, dropping the name entry once
// the set is empty. Removing an absent channel is a no-op.
func (h *hub) deregister(name string, ch chan Record) {
	h.mu.Lock()
	set, removed := h.listeners[name], false
	if set != nil {
		if _, present := set[ch]; present {
			delete(set, ch)
			removed = true
		}
		if len(set) == 0 {
			delete(h.listeners, name)
		}
	}
	remaining := len(h.listeners[name])
	h.mu.Unlock()
	if removed {
		telemetry.SubscriberRemoved()
		h.logger.Info("subscriber deregistered",
			zap.String("model", name),
			zap.Int("listeners", remaining),
		)
	}
}

// notify enqueues a copy of rec to every subscriber currently registered for
// name. Full channels drop the update for that subscriber only.
func (h *hub) notify(name string, rec Record) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.listeners[name] {
		select {
		case ch <- rec:
		default:
			telemetry.ObserveDroppedUpdate(name)
			h.logger.Debug("subscriber channel full, dropping update",
				zap.String("model", name),
				zap.String("status", string(rec.Status)),
			)
		}
	}
}

// listenerCount reports the number of live subscribers for name.
func (h *hub) listenerCount(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners[name])
}
