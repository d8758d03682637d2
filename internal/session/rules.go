package session

import (
	"strings"
	"time"

	"github.com/nfrund/actwatch/internal/event"
)

// attachRules subscribes the engine's own state machines. They run inside
// Publish, so mu is already held.
func (e *Engine) attachRules() {
	e.hub.Attach(event.TagNetworkAbility, e.onNetworkAbility)
	e.hub.Attach(event.TagNetworkAOEAbility, e.onNetworkAbility)
	e.hub.Attach(event.TagChangePrimaryPlayer, e.onChangePrimaryPlayer)
	e.hub.Attach(event.TagPlayerStats, e.onPlayerStats)
	e.hub.Attach(event.TagNetworkUpdateHP, e.onEntityUpdate)
	e.hub.Attach(event.TagAddCombatant, e.onEntityUpdate)
	e.hub.Attach(event.TagPrimaryEntityStatus, e.onPrimaryEntityStatus)
}

func (e *Engine) isPrimary(ent event.Entity) bool {
	id, name := e.PrimaryPlayer()
	return ent.Is(id, name)
}

func (e *Engine) onChangePrimaryPlayer(ev event.Event) error {
	cp, ok := ev.(event.ChangePrimaryPlayer)
	if !ok {
		return nil
	}

	e.stateMu.Lock()
	e.playerID, e.playerName = cp.PlayerID, cp.PlayerName
	e.stateMu.Unlock()

	e.logger.Info("Changing primary player", "player_id", cp.PlayerID, "player_name", cp.PlayerName)
	return nil
}

func (e *Engine) onPlayerStats(ev event.Event) error {
	ps, ok := ev.(event.PlayerStats)
	if !ok {
		return nil
	}

	e.stateMu.Lock()
	changed := e.jobID != ps.JobID
	e.jobID = ps.JobID
	e.stateMu.Unlock()

	if changed {
		e.logger.Info("Job changed", "job_id", ps.JobID)
	}
	return nil
}

func (e *Engine) onEntityUpdate(ev event.Event) error {
	var ent event.Entity
	switch v := ev.(type) {
	case event.NetworkUpdateHP:
		ent = v.Entity
	case event.AddCombatant:
		ent = v.Entity
	default:
		return nil
	}

	if e.isPrimary(ent) {
		e.emitPrimaryStatus(ent)
	}
	return nil
}

func (e *Engine) onPrimaryEntityStatus(ev event.Event) error {
	ps, ok := ev.(event.PrimaryEntityStatus)
	if !ok {
		return nil
	}
	ent := ps.Entity
	e.stateMu.Lock()
	e.entity = &ent
	e.stateMu.Unlock()
	return nil
}

func (e *Engine) emitPrimaryStatus(ent event.Entity) {
	e.hub.Emit(event.PrimaryEntityStatus{
		Header: event.NewHeader(event.TagPrimaryEntityStatus, e.clock.Now()),
		Entity: ent,
	})
}

func (e *Engine) onNetworkAbility(ev event.Event) error {
	na, ok := ev.(event.NetworkAbility)
	if !ok {
		return nil
	}

	sourceIsPrimary := e.isPrimary(na.Source)
	targetIsPrimary := !sourceIsPrimary && e.isPrimary(na.Target)

	switch {
	case sourceIsPrimary:
		e.emitPrimaryStatus(na.Source)
	case targetIsPrimary:
		e.emitPrimaryStatus(na.Target)
	}

	if (sourceIsPrimary || targetIsPrimary) && e.qualifies(na.AbilityName) {
		e.enterCombatFromLog()
	}

	if sourceIsPrimary {
		e.startCooldown(na)
	}
	return nil
}

func (e *Engine) qualifies(ability string) bool {
	if len(e.combatAbilities) == 0 {
		return true
	}
	_, ok := e.combatAbilities[strings.ToLower(strings.TrimSpace(ability))]
	return ok
}

// startCooldown consumes a charge and schedules its recovery. Every activation
// gets its own timer; timers are never rebased by later activations.
func (e *Engine) startCooldown(na event.NetworkAbility) {
	name := na.AbilityName
	st, ok := e.tracker.ByName(name)
	if !ok || st.Descriptor.CooldownSeconds <= 0 {
		return
	}

	st, ok = e.tracker.ConsumeCharge(name)
	if !ok {
		return
	}
	e.logger.Debug("Ability on cooldown", "ability", name, "charges", st.CurrentCharges)
	e.hub.Emit(event.OnCooldown{
		Header:  event.NewHeader(event.TagOnCooldown, e.clock.Now()),
		Ability: st,
	})

	delay := st.Descriptor.Cooldown() - e.leniency
	if delay < 0 {
		delay = 0
	}
	e.scheduleRestore(name, na.Time(), delay)
}

// scheduleRestore must be called with mu held.
func (e *Engine) scheduleRestore(name string, startedAt time.Time, delay time.Duration) {
	e.nextTimer++
	id := e.nextTimer
	e.cooldowns[id] = e.clock.AfterFunc(delay, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.cooldowns, id)
		if e.closed {
			return
		}

		st, ok := e.tracker.RestoreCharge(name)
		if !ok {
			return
		}
		e.logger.Debug("Ability off cooldown", "ability", name, "charges", st.CurrentCharges)
		e.hub.Emit(event.OffCooldown{
			Header:    event.NewHeader(event.TagOffCooldown, e.clock.Now()),
			StartedAt: startedAt,
			Ability:   st,
		})
	})
}

func (e *Engine) enterCombatFromLog() {
	if e.detection != DetectIdle {
		return
	}
	now := e.clock.Now()
	e.stateMu.Lock()
	e.lastCombat = now
	e.stateMu.Unlock()

	e.setCombat(true, "combat action")
	e.armIdlePoll()
}

// applyFeedCombat applies a status feed report. In idle detection an active
// report also counts as combat activity so the idle poll does not fight the
// feed.
func (e *Engine) applyFeedCombat(active bool) {
	if active && e.detection == DetectIdle {
		now := e.clock.Now()
		e.stateMu.Lock()
		e.lastCombat = now
		e.stateMu.Unlock()
	}

	e.setCombat(active, "status feed")
	if active {
		e.armIdlePoll()
	}
}

// setCombat emits InCombat or OutOfCombat on an edge only.
func (e *Engine) setCombat(active bool, reason string) {
	e.stateMu.Lock()
	changed := e.inCombat != active
	e.inCombat = active
	e.stateMu.Unlock()
	if !changed {
		return
	}

	now := e.clock.Now()
	if active {
		e.logger.Info("Entered combat", "reason", reason)
		e.hub.Emit(event.InCombat{Header: event.NewHeader(event.TagInCombat, now)})
		return
	}
	e.logger.Info("Left combat", "reason", reason)
	e.hub.Emit(event.OutOfCombat{Header: event.NewHeader(event.TagOutOfCombat, now)})
}

// armIdlePoll starts the self-rearming idle check unless it is already running
// or detection is feed driven.
func (e *Engine) armIdlePoll() {
	if e.detection != DetectIdle || e.idleTimer != nil || e.closed {
		return
	}
	e.idleTimer = e.clock.AfterFunc(e.idlePoll, e.checkIdle)
}

func (e *Engine) checkIdle() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.idleTimer = nil
	if e.closed || !e.InCombat() {
		return
	}

	e.stateMu.RLock()
	idle := e.clock.Now().Sub(e.lastCombat)
	e.stateMu.RUnlock()

	if idle >= e.idleTimeout {
		e.setCombat(false, "idle timeout")
		return
	}
	e.armIdlePoll()
}
