package realtime

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Hub dispatches changes to registered handlers in registration order
type Hub struct {
	handlers map[uint64]Handler
	logger   *slog.Logger
	nextID   uint64
	mu       sync.RWMutex
}

// NewHub creates an empty hub
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		handlers: make(map[uint64]Handler),
		logger:   logger,
	}
}

// OnChange registers handler and returns a func that removes it
func (h *Hub) OnChange(handler Handler) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	h.handlers[id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.handlers, id)
		})
	}
}

// Publish delivers change to every registered handler synchronously
func (h *Hub) Publish(ctx context.Context, change Change) {
	if change.ReceivedAt.IsZero() {
		change.ReceivedAt = time.Now().UTC()
	}

	h.mu.RLock()
	ids := make([]uint64, 0, len(h.handlers))
	for id := range h.handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	handlers := make([]Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, h.handlers[id])
	}
	h.mu.RUnlock()

	h.logger.Debug("publishing change",
		"table", change.Table,
		"type", change.Type,
		"record", change.RecordID,
		"handlers", len(handlers))

	for _, handler := range handlers {
		handler(ctx, change)
	}
}

// Len returns the number of registered handlers
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.handlers)
}
