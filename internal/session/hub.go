package session

import (
	"sync"

	"golang.org/x/mobile/event/key"
)

// Hub fans window-level events out to subscribers. The host owns one hub per
// window and emits into it from its event loop.
type Hub struct {
	mu     sync.Mutex
	next   int
	resize map[int]func(w, h float64)
	keys   map[int]func(key.Event)
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{resize: map[int]func(w, h float64){}, keys: map[int]func(key.Event){}}
}

// Subscription is a registered handler. Release removes it; releasing twice is
// harmless.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Release unregisters the handler.
func (s *Subscription) Release() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

// OnResize registers fn for display size changes.
func (h *Hub) OnResize(fn func(w, h float64)) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	h.resize[id] = fn
	return &Subscription{cancel: func() {
		h.mu.Lock()
		delete(h.resize, id)
		h.mu.Unlock()
	}}
}

// OnKey registers fn for key events.
func (h *Hub) OnKey(fn func(key.Event)) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	h.keys[id] = fn
	return &Subscription{cancel: func() {
		h.mu.Lock()
		delete(h.keys, id)
		h.mu.Unlock()
	}}
}

// EmitResize calls every resize handler.
func (h *Hub) EmitResize(w, ht float64) {
	for _, fn := range h.snapshotResize() {
		fn(w, ht)
	}
}

// EmitKey calls every key handler.
func (h *Hub) EmitKey(e key.Event) {
	h.mu.Lock()
	fns := make([]func(key.Event), 0, len(h.keys))
	for _, fn := range h.keys {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn(e)
	}
}

func (h *Hub) snapshotResize() []func(w, h float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fns := make([]func(w, h float64), 0, len(h.resize))
	for _, fn := range h.resize {
		fns = append(fns, fn)
	}
	return fns
}

// Subscribers returns the number of live handlers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.resize) + len(h.keys)
}
