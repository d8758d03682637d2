// Package ability tracks charges and activation history for the abilities of
// the tracked player.
package ability

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nfrund/actwatch/internal/domain"
	"github.com/nfrund/actwatch/internal/event"
)

// Bindings maps UI segments to ability names. It is owned by the profile.
type Bindings interface {
	AbilityForSegment(segment int) (string, bool)
	SegmentForAbility(name string) (int, bool)
}

// segmentLister is implemented by bindings that can enumerate their segments,
// which lets NewTracker reject bindings to unknown abilities.
type segmentLister interface {
	Segments() []int
}

type slot struct {
	mu    sync.Mutex
	state event.AbilityState
}

// Tracker owns the mutable state of every known ability. The set of abilities
// is fixed at construction; each ability is guarded by its own mutex and every
// method returns a deep copy.
type Tracker struct {
	abilities map[string]*slot
	bindings  Bindings
	now       func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock sets the time source recorded on activation.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTracker creates a fully charged tracker for descriptors. bindings may be
// nil, in which case no segment resolves.
func NewTracker(descriptors []event.AbilityDescriptor, bindings Bindings, opts ...Option) (*Tracker, error) {
	t := &Tracker{
		abilities: make(map[string]*slot, len(descriptors)),
		bindings:  bindings,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}

	for _, d := range descriptors {
		if _, dup := t.abilities[d.Name]; dup {
			return nil, fmt.Errorf("ability %q is defined twice", d.Name)
		}
		t.abilities[d.Name] = &slot{state: event.NewAbilityState(d)}
	}

	if lister, ok := bindings.(segmentLister); ok {
		for _, seg := range lister.Segments() {
			name, _ := bindings.AbilityForSegment(seg)
			if _, known := t.abilities[name]; !known {
				return nil, fmt.Errorf("binding at segment %d: %w %q", seg, domain.ErrUnknownAbility, name)
			}
		}
	}
	return t, nil
}

// Len returns the number of known abilities.
func (t *Tracker) Len() int {
	return len(t.abilities)
}

// ByName returns the state of the named ability.
func (t *Tracker) ByName(name string) (event.AbilityState, bool) {
	s, ok := t.abilities[name]
	if !ok {
		return event.AbilityState{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone(), true
}

// BySegment returns the state of the ability bound to segment.
func (t *Tracker) BySegment(segment int) (event.AbilityState, bool) {
	if t.bindings == nil {
		return event.AbilityState{}, false
	}
	name, ok := t.bindings.AbilityForSegment(segment)
	if !ok {
		return event.AbilityState{}, false
	}
	return t.ByName(name)
}

// Segment returns the segment bound to the named ability.
func (t *Tracker) Segment(name string) (int, bool) {
	if t.bindings == nil {
		return 0, false
	}
	return t.bindings.SegmentForAbility(name)
}

// ConsumeCharge spends one charge, floored at zero, and records the activation
// at the front of the history ring. The activation is recorded even when no
// charge was left.
func (t *Tracker) ConsumeCharge(name string) (event.AbilityState, bool) {
	s, ok := t.abilities[name]
	if !ok {
		return event.AbilityState{}, false
	}
	now := t.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.CurrentCharges > 0 {
		s.state.CurrentCharges--
	}
	h := s.state.ActivationHistory
	copy(h[1:], h[:len(h)-1])
	h[0] = now
	return s.state.Clone(), true
}

// RestoreCharge gives back one charge, capped at the ability's maximum.
func (t *Tracker) RestoreCharge(name string) (event.AbilityState, bool) {
	s, ok := t.abilities[name]
	if !ok {
		return event.AbilityState{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.CurrentCharges < s.state.Descriptor.MaxCharges {
		s.state.CurrentCharges++
	}
	return s.state.Clone(), true
}

// Snapshot returns every ability state sorted by name.
func (t *Tracker) Snapshot() []event.AbilityState {
	out := make([]event.AbilityState, 0, len(t.abilities))
	for name := range t.abilities {
		st, _ := t.ByName(name)
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Descriptor.Name < out[j].Descriptor.Name
	})
	return out
}
