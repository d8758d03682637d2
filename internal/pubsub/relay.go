package pubsub

import (
	"context"
	"log/slog"
	"time"

	"github.com/nfrund/actwatch/internal/event"
	"github.com/nfrund/actwatch/internal/hub"
)

// Metadata keys set on relayed messages.
const (
	MetaEventTag  = "event_tag"
	MetaTimestamp = "timestamp"
)

// Relay attaches to a hub as a global subscriber and republishes derived
// events on their topics. Decoded log events are not relayed.
type Relay struct {
	pub    Publisher
	logger *slog.Logger

	hub *hub.Hub
	id  string
}

// NewRelay creates a relay publishing to pub.
func NewRelay(pub Publisher, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default().With("component", "relay")
	}
	return &Relay{pub: pub, logger: logger}
}

// Attach subscribes the relay to h. Attaching again moves it to the new hub.
func (r *Relay) Attach(h *hub.Hub) {
	r.Detach()
	r.hub = h
	r.id = h.AttachGlobal(r.handle)
}

// Detach removes the relay from its hub.
func (r *Relay) Detach() {
	if r.hub != nil {
		r.hub.DetachGlobal(r.id)
		r.hub, r.id = nil, ""
	}
}

func (r *Relay) handle(ev event.Event) error {
	ctx := context.Background()
	md := map[string]string{
		MetaEventTag:  string(ev.Tag()),
		MetaTimestamp: ev.Time().UTC().Format(time.RFC3339Nano),
	}

	switch e := ev.(type) {
	case event.InCombat:
		return Publish(ctx, r.pub, CombatStateIn, e, md)
	case event.OutOfCombat:
		return Publish(ctx, r.pub, CombatStateOut, e, md)
	case event.OnCooldown:
		return Publish(ctx, r.pub, CooldownOn, e, md)
	case event.OffCooldown:
		return Publish(ctx, r.pub, CooldownOff, e, md)
	case event.CombatStatus:
		return Publish(ctx, r.pub, CombatStatus, e, md)
	case event.PrimaryEntityStatus:
		return Publish(ctx, r.pub, PlayerStatus, e, md)
	case event.EnmityTargetData:
		return Publish(ctx, r.pub, OverlayEnmity, e, md)
	case event.OnlineStatusChanged:
		return Publish(ctx, r.pub, PlayerOnline, e, md)
	}
	return nil
}
