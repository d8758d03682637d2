// Package hub is the in-process dispatch registry that fans events out to
// subscribers keyed by event tag.
package hub

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/nfrund/actwatch/internal/event"
)

// Handler receives a published event. A returned error is logged and does not
// stop dispatch to other handlers.
type Handler func(event.Event) error

type subscription struct {
	id      string
	handler Handler
}

// Hub is a synchronous publish/subscribe registry. Global handlers see every
// published event and always run before the handlers attached to its tag.
//
// Handler lists are copied under a read lock before dispatch, so handlers may
// attach, detach and publish re-entrantly.
type Hub struct {
	mu     sync.RWMutex
	global []subscription
	byTag  map[event.Tag][]subscription
	logger *slog.Logger
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger used to report failing handlers.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// New creates an empty Hub.
func New(opts ...Option) *Hub {
	h := &Hub{
		byTag:  make(map[event.Tag][]subscription),
		logger: slog.Default().With("component", "hub"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Attach subscribes handler to tag and returns the subscription id.
func (h *Hub) Attach(tag event.Tag, handler Handler) string {
	id := uuid.NewString()
	h.mu.Lock()
	h.byTag[tag] = append(h.byTag[tag], subscription{id: id, handler: handler})
	total := len(h.byTag[tag])
	h.mu.Unlock()

	h.logger.Debug("Subscriber attached", "tag", tag, "subscription_id", id, "total_subscribers", total)
	return id
}

// AttachGlobal subscribes handler to every event.
func (h *Hub) AttachGlobal(handler Handler) string {
	id := uuid.NewString()
	h.mu.Lock()
	h.global = append(h.global, subscription{id: id, handler: handler})
	total := len(h.global)
	h.mu.Unlock()

	h.logger.Debug("Global subscriber attached", "subscription_id", id, "total_subscribers", total)
	return id
}

// Detach removes a tag subscription. It reports whether id was attached to tag.
func (h *Hub) Detach(tag event.Tag, id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := remove(h.byTag[tag], id)
	if !ok {
		return false
	}
	if len(subs) == 0 {
		delete(h.byTag, tag)
	} else {
		h.byTag[tag] = subs
	}
	return true
}

// DetachGlobal removes a global subscription.
func (h *Hub) DetachGlobal(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := remove(h.global, id)
	if ok {
		h.global = subs
	}
	return ok
}

// remove returns a new slice without id so snapshots held by in-flight
// publishes are never mutated.
func remove(subs []subscription, id string) ([]subscription, bool) {
	for i, s := range subs {
		if s.id != id {
			continue
		}
		out := make([]subscription, 0, len(subs)-1)
		out = append(out, subs[:i]...)
		return append(out, subs[i+1:]...), true
	}
	return subs, false
}

// Publish runs every global handler and then every handler attached to tag,
// each in registration order.
func (h *Hub) Publish(tag event.Tag, e event.Event) {
	h.mu.RLock()
	global := h.global
	tagged := h.byTag[tag]
	h.mu.RUnlock()

	for _, s := range global {
		h.invoke(tag, s, e)
	}
	for _, s := range tagged {
		h.invoke(tag, s, e)
	}
}

// Emit publishes e under its own tag.
func (h *Hub) Emit(e event.Event) {
	h.Publish(e.Tag(), e)
}

// Count returns the number of handlers attached to tag, excluding global ones.
func (h *Hub) Count(tag event.Tag) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byTag[tag])
}

// CountGlobal returns the number of global handlers.
func (h *Hub) CountGlobal() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.global)
}

func (h *Hub) invoke(tag event.Tag, s subscription, e event.Event) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Handler panicked",
				"tag", tag,
				"subscription_id", s.id,
				"error", fmt.Sprint(r))
		}
	}()

	if err := s.handler(e); err != nil {
		h.logger.Error("Handler failed",
			"tag", tag,
			"subscription_id", s.id,
			"error", err)
	}
}
