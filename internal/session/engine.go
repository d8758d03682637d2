// Package session wires the decoder, dispatch hub and ability tracker together
// and derives cooldown, combat and player status events from the log stream.
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nfrund/actwatch/internal/ability"
	"github.com/nfrund/actwatch/internal/clock"
	"github.com/nfrund/actwatch/internal/event"
	"github.com/nfrund/actwatch/internal/hub"
)

const (
	// DefaultIdleTimeout is how long the player may go without a qualifying
	// event before leaving combat.
	DefaultIdleTimeout = 20 * time.Second

	// DefaultIdlePoll is the period of the idle check while in combat.
	DefaultIdlePoll = 200 * time.Millisecond
)

// Detection selects how combat state is derived.
type Detection int

const (
	// DetectIdle enters combat on qualifying log events and leaves after the
	// idle timeout or when the status feed reports inactivity.
	DetectIdle Detection = iota
	// DetectFeed follows the status feed only.
	DetectFeed
)

func (d Detection) String() string {
	if d == DetectFeed {
		return "feed"
	}
	return "idle"
}

// LineSource delivers raw log lines in arrival order until ctx is done.
type LineSource interface {
	Run(ctx context.Context, onLine func(string)) error
}

// Status is a snapshot of the tracked player as seen by the engine.
type Status struct {
	PlayerID     string        `json:"playerId"`
	PlayerName   string        `json:"playerName"`
	JobID        string        `json:"jobId"`
	InCombat     bool          `json:"inCombat"`
	Detection    string        `json:"detection"`
	OnlineStatus string        `json:"onlineStatus,omitempty"`
	Entity       *event.Entity `json:"entity,omitempty"`
	LastCombatAt *time.Time    `json:"lastCombatAt,omitempty"`
}

// Engine processes one stream of lines and feed events for a single player.
//
// All processing is serialised by mu: an event and every handler it triggers
// complete before the next event is decoded. Cooldown timers take the same lock
// so derived events never interleave with another event's dispatch. Player
// state is additionally guarded by stateMu so handlers may read it while mu is
// held.
type Engine struct {
	mu      sync.Mutex
	hub     *hub.Hub
	tracker *ability.Tracker
	decoder *event.Decoder
	clock   clock.Clock
	logger  *slog.Logger

	idleTimeout     time.Duration
	idlePoll        time.Duration
	leniency        time.Duration
	combatAbilities map[string]struct{}
	detection       Detection

	// guarded by mu
	idleTimer clock.Timer
	cooldowns map[uint64]clock.Timer
	nextTimer uint64
	closed    bool

	stateMu    sync.RWMutex
	playerID   string
	playerName string
	jobID      string
	inCombat   bool
	lastCombat time.Time
	online     *event.OnlineStatusChanged
	entity     *event.Entity
}

// Option configures an Engine.
type Option func(*Engine)

func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithIdleTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.idleTimeout = d
		}
	}
}

func WithIdlePoll(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.idlePoll = d
		}
	}
}

// WithLeniency shortens every cooldown by d to absorb log latency.
func WithLeniency(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.leniency = d
		}
	}
}

// WithCombatAbilities sets the ability names that count as combat activity.
// Names are compared case-insensitively; an empty list makes every ability
// qualify.
func WithCombatAbilities(names ...string) Option {
	return func(e *Engine) {
		e.combatAbilities = make(map[string]struct{}, len(names))
		for _, n := range names {
			if n = strings.TrimSpace(n); n != "" {
				e.combatAbilities[strings.ToLower(n)] = struct{}{}
			}
		}
	}
}

func WithDetection(d Detection) Option {
	return func(e *Engine) {
		e.detection = d
	}
}

// WithPrimaryPlayer sets the player name used until a ChangePrimaryPlayer event
// supplies an ID.
func WithPrimaryPlayer(name string) Option {
	return func(e *Engine) {
		e.playerName = name
	}
}

// New creates an engine tracking descriptors. Segment lookups go through
// bindings, which may be nil.
func New(descriptors []event.AbilityDescriptor, bindings ability.Bindings, opts ...Option) (*Engine, error) {
	e := &Engine{
		clock:           clock.Real{},
		logger:          slog.Default().With("component", "session"),
		idleTimeout:     DefaultIdleTimeout,
		idlePoll:        DefaultIdlePoll,
		combatAbilities: map[string]struct{}{"attack": {}},
		cooldowns:       make(map[uint64]clock.Timer),
	}
	for _, opt := range opts {
		opt(e)
	}

	tracker, err := ability.NewTracker(descriptors, bindings, ability.WithClock(e.clock.Now))
	if err != nil {
		return nil, err
	}
	e.tracker = tracker
	e.decoder = event.NewDecoder(event.WithClock(e.clock.Now))
	e.hub = hub.New()
	e.attachRules()

	e.logger.Info("Session engine ready",
		"abilities", tracker.Len(),
		"detection", e.detection.String(),
		"idle_timeout", e.idleTimeout,
		"leniency", e.leniency)
	return e, nil
}

// Hub returns the registry on which all decoded and derived events are published.
func (e *Engine) Hub() *hub.Hub { return e.hub }

// Tracker returns the ability tracker.
func (e *Engine) Tracker() *ability.Tracker { return e.tracker }

// HandleLine decodes one raw log line and dispatches it. It returns the decoded
// event, or nil once the engine is closed.
func (e *Engine) HandleLine(line string) event.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}

	ev := e.decoder.Decode(line)
	if u, ok := ev.(event.Unrecognized); ok && u.Tag() == event.TagUnknown {
		e.logger.Debug("Skipping short line", "fields", len(u.Fields))
	}
	e.hub.Emit(ev)
	return ev
}

// HandleEvent accepts a structured event from the status feed.
func (e *Engine) HandleEvent(ev event.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || ev == nil {
		return
	}

	switch v := ev.(type) {
	case event.CombatStatus:
		e.hub.Emit(v)
		e.applyFeedCombat(v.InCombat)
	case event.OnlineStatusChanged:
		id, _ := e.PrimaryPlayer()
		if id == "" || v.TargetID != id {
			return
		}
		e.stateMu.Lock()
		e.online = &v
		e.stateMu.Unlock()
		e.hub.Emit(v)
	default:
		e.hub.Emit(ev)
	}
}

// Follow feeds every line from src into the engine until src returns.
func (e *Engine) Follow(ctx context.Context, src LineSource) error {
	return src.Run(ctx, func(line string) {
		e.HandleLine(line)
	})
}

// InCombat reports the current combat state.
func (e *Engine) InCombat() bool {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.inCombat
}

// PrimaryPlayer returns the tracked player's ID and name.
func (e *Engine) PrimaryPlayer() (id, name string) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.playerID, e.playerName
}

// JobID returns the last job reported by PlayerStats.
func (e *Engine) JobID() string {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.jobID
}

// Status returns a snapshot of the tracked player.
func (e *Engine) Status() Status {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	s := Status{
		PlayerID:   e.playerID,
		PlayerName: e.playerName,
		JobID:      e.jobID,
		InCombat:   e.inCombat,
		Detection:  e.detection.String(),
	}
	if e.online != nil {
		s.OnlineStatus = e.online.Status
	}
	if e.entity != nil {
		ent := *e.entity
		s.Entity = &ent
	}
	if !e.lastCombat.IsZero() {
		at := e.lastCombat
		s.LastCombatAt = &at
	}
	return s
}

// Close stops the idle poll and every pending cooldown timer. Lines handled
// after Close are ignored.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	if e.idleTimer != nil {
		e.idleTimer.Stop()
		e.idleTimer = nil
	}
	for id, t := range e.cooldowns {
		t.Stop()
		delete(e.cooldowns, id)
	}
	e.logger.Info("Session engine stopped")
	return nil
}
