package pubsub

import "github.com/nfrund/actwatch/internal/event"

// Topics carrying derived session events.
var (
	CombatStateIn = NewEvent[event.InCombat](
		"combat.state.in",
		"The tracked player entered combat",
		`{"tag":"C00","timestamp":"2026-03-01T12:00:00Z"}`,
	)
	CombatStateOut = NewEvent[event.OutOfCombat](
		"combat.state.out",
		"The tracked player left combat",
		`{"tag":"C01","timestamp":"2026-03-01T12:00:20Z"}`,
	)
	CooldownOn = NewEvent[event.OnCooldown](
		"cooldown.on",
		"A charge of a tracked ability was consumed",
		`{"tag":"C02","ability":{"descriptor":{"name":"Swiftcast","cooldown":60,"charges":1},"currentCharges":0}}`,
	)
	CooldownOff = NewEvent[event.OffCooldown](
		"cooldown.off",
		"A charge of a tracked ability recovered",
		`{"tag":"C03","startedAt":"2026-03-01T12:00:00Z","ability":{"currentCharges":1}}`,
	)
	CombatStatus = NewEvent[event.CombatStatus](
		"combat.status",
		"Encounter report from the status feed",
		`{"tag":"C04","encounter":{"title":"Striking Dummy"},"active":true,"inCombat":true}`,
	)
	PlayerStatus = NewEvent[event.PrimaryEntityStatus](
		"player.status",
		"Latest vitals and position of the tracked player",
		`{"tag":"C05","entity":{"id":"10642AC0","name":"Alyx Ward","hp":100,"maxHp":100}}`,
	)
	OverlayEnmity = NewEvent[event.EnmityTargetData](
		"overlay.enmity",
		"Current target and aggression from the status feed",
		`{"tag":"C06","target":{"name":"Striking Dummy"},"aggression":"aggressive","targetType":"monster"}`,
	)
	PlayerOnline = NewEvent[event.OnlineStatusChanged](
		"player.online",
		"Online status change of the tracked player",
		`{"tag":"C07","targetId":"10642AC0","status":"Busy"}`,
	)
)

// RelayTopics lists every topic the relay publishes on.
func RelayTopics() []string {
	return []string{
		CombatStateIn.Name(),
		CombatStateOut.Name(),
		CooldownOn.Name(),
		CooldownOff.Name(),
		CombatStatus.Name(),
		PlayerStatus.Name(),
		OverlayEnmity.Name(),
		PlayerOnline.Name(),
	}
}
