package session

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nfrund/actwatch/internal/clock"
	"github.com/nfrund/actwatch/internal/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)

const (
	playerID   = "10FF0001"
	playerName = "Alyx Ward"
	dummyID    = "40001234"
	dummyName  = "Striking Dummy"
)

var bane = event.AbilityDescriptor{Name: "Bane", CooldownSeconds: 60, MaxCharges: 2}

// recorder collects every event published on a hub.
type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) handle(e event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) byTag(tag event.Tag) []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event.Event
	for _, e := range r.events {
		if e.Tag() == tag {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) count(tag event.Tag) int {
	return len(r.byTag(tag))
}

func newEngine(t *testing.T, opts ...Option) (*Engine, *clock.Manual, *recorder) {
	t.Helper()
	m := clock.NewManual(start)
	opts = append([]Option{WithClock(m), WithPrimaryPlayer(playerName)}, opts...)
	eng, err := New([]event.AbilityDescriptor{bane, {Name: "attack"}}, nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	rec := &recorder{}
	eng.Hub().AttachGlobal(rec.handle)
	return eng, m, rec
}

func abilityLine(at time.Time, srcID, srcName, ability, tgtID, tgtName string) string {
	f := make([]string, 44)
	f[0], f[1] = "21", at.Format(time.RFC3339Nano)
	f[2], f[3], f[4], f[5] = srcID, srcName, "1E", ability
	f[6], f[7] = tgtID, tgtName
	f[34], f[35] = "52000", "52000"
	return strings.Join(f, event.Delimiter)
}

func use(eng *Engine, m *clock.Manual, ability string) {
	eng.HandleLine(abilityLine(m.Now(), playerID, playerName, ability, dummyID, dummyName))
}

func charges(t *testing.T, eng *Engine, name string) int {
	t.Helper()
	st, ok := eng.Tracker().ByName(name)
	require.True(t, ok)
	return st.CurrentCharges
}

func TestBaneChargesRecoverIndependently(t *testing.T) {
	eng, m, rec := newEngine(t)

	use(eng, m, "Bane")
	assert.Equal(t, 1, charges(t, eng, "Bane"))

	m.Advance(time.Second)
	use(eng, m, "Bane")
	assert.Equal(t, 0, charges(t, eng, "Bane"))

	on := rec.byTag(event.TagOnCooldown)
	require.Len(t, on, 2)
	assert.Equal(t, 1, on[0].(event.OnCooldown).Ability.CurrentCharges)
	assert.Equal(t, 0, on[1].(event.OnCooldown).Ability.CurrentCharges)

	m.Advance(58 * time.Second)
	assert.Equal(t, 0, rec.count(event.TagOffCooldown))

	m.Advance(time.Second)
	off := rec.byTag(event.TagOffCooldown)
	require.Len(t, off, 1)
	assert.Equal(t, start, off[0].(event.OffCooldown).StartedAt)
	assert.Equal(t, 1, off[0].(event.OffCooldown).Ability.CurrentCharges)
	assert.Equal(t, 1, charges(t, eng, "Bane"))

	m.Advance(time.Second)
	off = rec.byTag(event.TagOffCooldown)
	require.Len(t, off, 2)
	assert.Equal(t, start.Add(time.Second), off[1].(event.OffCooldown).StartedAt)
	assert.Equal(t, 2, charges(t, eng, "Bane"))
}

func TestLeniencyShortensCooldown(t *testing.T) {
	eng, m, rec := newEngine(t, WithLeniency(2*time.Second))

	use(eng, m, "Bane")
	m.Advance(58 * time.Second)
	assert.Equal(t, 1, rec.count(event.TagOffCooldown))
}

func TestUnknownAndZeroCooldownAbilitiesAreIgnored(t *testing.T) {
	eng, m, rec := newEngine(t, WithCombatAbilities("other"))

	use(eng, m, "Fester")
	use(eng, m, "attack")

	assert.Equal(t, 0, rec.count(event.TagOnCooldown))
	assert.Equal(t, 0, m.Pending())
}

func TestOtherPlayersDoNotConsumeCharges(t *testing.T) {
	eng, m, rec := newEngine(t)

	eng.HandleLine(abilityLine(m.Now(), "10FF0002", "Someone Else", "Bane", dummyID, dummyName))

	assert.Equal(t, 0, rec.count(event.TagOnCooldown))
	assert.Equal(t, 2, charges(t, eng, "Bane"))
}

func TestIdleTimeoutLeavesCombatOnce(t *testing.T) {
	eng, m, rec := newEngine(t)

	use(eng, m, "attack")
	require.True(t, eng.InCombat())
	assert.Equal(t, 1, rec.count(event.TagInCombat))

	m.Advance(5 * time.Second)
	use(eng, m, "attack")
	assert.Equal(t, 1, rec.count(event.TagInCombat), "entry is edge triggered")

	m.Advance(19 * time.Second)
	assert.True(t, eng.InCombat())
	assert.Equal(t, 0, rec.count(event.TagOutOfCombat))

	m.Advance(time.Second)
	assert.False(t, eng.InCombat())
	assert.Equal(t, 1, rec.count(event.TagOutOfCombat))

	m.Advance(time.Minute)
	assert.Equal(t, 1, rec.count(event.TagOutOfCombat))
	assert.Equal(t, 0, m.Pending(), "idle poll stops outside combat")

	use(eng, m, "attack")
	assert.Equal(t, 2, rec.count(event.TagInCombat))
	m.Advance(20 * time.Second)
	assert.Equal(t, 2, rec.count(event.TagOutOfCombat))
}

func TestBeingAttackedEntersCombat(t *testing.T) {
	eng, m, rec := newEngine(t)

	eng.HandleLine(abilityLine(m.Now(), dummyID, dummyName, "attack", playerID, playerName))

	assert.True(t, eng.InCombat())
	assert.Equal(t, 1, rec.count(event.TagInCombat))
	status := rec.byTag(event.TagPrimaryEntityStatus)
	require.Len(t, status, 1)
	assert.Equal(t, playerName, status[0].(event.PrimaryEntityStatus).Entity.Name)
}

func TestEmptyCombatSetQualifiesEverything(t *testing.T) {
	eng, m, _ := newEngine(t, WithCombatAbilities())

	use(eng, m, "Bane")
	assert.True(t, eng.InCombat())
}

func TestPrimaryPlayerIDIsAuthoritative(t *testing.T) {
	eng, m, rec := newEngine(t)

	eng.HandleLine("02|" + m.Now().Format(time.RFC3339Nano) + "|" + playerID + "|" + playerName)
	id, name := eng.PrimaryPlayer()
	assert.Equal(t, playerID, id)
	assert.Equal(t, playerName, name)

	eng.HandleLine(abilityLine(m.Now(), "10FF0009", playerName, "Bane", dummyID, dummyName))
	assert.Equal(t, 0, rec.count(event.TagOnCooldown), "same name, different ID")

	eng.HandleLine(abilityLine(m.Now(), playerID, "Renamed", "Bane", dummyID, dummyName))
	assert.Equal(t, 1, rec.count(event.TagOnCooldown))
}

func TestPrimaryEntityStatusFromUpdates(t *testing.T) {
	eng, m, rec := newEngine(t)
	ts := m.Now().Format(time.RFC3339Nano)

	eng.HandleLine("39|" + ts + "|" + playerID + "|" + playerName + "|40000|52000|9000|10000|||1|2|3|0")
	eng.HandleLine("39|" + ts + "|" + dummyID + "|" + dummyName + "|1|2|3|4|||1|2|3|0")
	eng.HandleLine("12|" + ts + "|27")

	status := rec.byTag(event.TagPrimaryEntityStatus)
	require.Len(t, status, 1)
	assert.Equal(t, 40000, status[0].(event.PrimaryEntityStatus).Entity.HP)

	s := eng.Status()
	require.NotNil(t, s.Entity)
	assert.Equal(t, 40000, s.Entity.HP)
	assert.Equal(t, "27", s.JobID)
	assert.Equal(t, "27", eng.JobID())
}

func TestStatusFeedDrivesCombat(t *testing.T) {
	eng, m, rec := newEngine(t, WithDetection(DetectFeed))

	use(eng, m, "attack")
	assert.False(t, eng.InCombat(), "log events do not enter combat in feed mode")

	eng.HandleEvent(event.CombatStatus{Header: event.NewHeader(event.TagCombatStatus, m.Now()), Active: true, InCombat: true})
	eng.HandleEvent(event.CombatStatus{Header: event.NewHeader(event.TagCombatStatus, m.Now()), Active: true, InCombat: true})
	assert.True(t, eng.InCombat())
	assert.Equal(t, 1, rec.count(event.TagInCombat))
	assert.Equal(t, 2, rec.count(event.TagCombatStatus))

	m.Advance(time.Minute)
	assert.True(t, eng.InCombat(), "no idle exit in feed mode")

	eng.HandleEvent(event.CombatStatus{Header: event.NewHeader(event.TagCombatStatus, m.Now())})
	assert.False(t, eng.InCombat())
	assert.Equal(t, 1, rec.count(event.TagOutOfCombat))
}

func TestStatusFeedExitsIdleCombatImmediately(t *testing.T) {
	eng, m, rec := newEngine(t)

	use(eng, m, "attack")
	eng.HandleEvent(event.CombatStatus{Header: event.NewHeader(event.TagCombatStatus, m.Now())})

	assert.False(t, eng.InCombat())
	assert.Equal(t, 1, rec.count(event.TagOutOfCombat))
	m.Advance(time.Minute)
	assert.Equal(t, 1, rec.count(event.TagOutOfCombat))
}

func TestOnlineStatusOnlyForPrimaryPlayer(t *testing.T) {
	eng, m, rec := newEngine(t)
	h := event.NewHeader(event.TagOnlineStatusChanged, m.Now())

	eng.HandleEvent(event.OnlineStatusChanged{Header: h, TargetID: playerID, Status: "Busy"})
	assert.Equal(t, 0, rec.count(event.TagOnlineStatusChanged), "no ID known yet")

	eng.HandleEvent(event.ChangePrimaryPlayer{Header: event.NewHeader(event.TagChangePrimaryPlayer, m.Now()), PlayerID: playerID, PlayerName: playerName})
	eng.HandleEvent(event.OnlineStatusChanged{Header: h, TargetID: "10FF0002", Status: "AFK"})
	eng.HandleEvent(event.OnlineStatusChanged{Header: h, TargetID: playerID, Status: "Busy"})

	assert.Equal(t, 1, rec.count(event.TagOnlineStatusChanged))
	assert.Equal(t, "Busy", eng.Status().OnlineStatus)
}

func TestFailingSubscriberDoesNotStopEngine(t *testing.T) {
	eng, m, rec := newEngine(t)
	eng.Hub().Attach(event.TagOnCooldown, func(event.Event) error { panic("subscriber bug") })

	use(eng, m, "Bane")
	m.Advance(time.Minute)

	assert.Equal(t, 1, rec.count(event.TagOffCooldown))
}

func TestSubscriberMayQueryEngine(t *testing.T) {
	eng, m, _ := newEngine(t)
	var seen bool
	eng.Hub().Attach(event.TagInCombat, func(event.Event) error {
		seen = eng.InCombat()
		return nil
	})

	use(eng, m, "attack")
	assert.True(t, seen)
}

func TestCloseCancelsPendingTimers(t *testing.T) {
	eng, m, rec := newEngine(t)

	use(eng, m, "Bane")
	use(eng, m, "attack")
	require.NoError(t, eng.Close())
	assert.Equal(t, 0, m.Pending())

	m.Advance(time.Minute)
	assert.Equal(t, 0, rec.count(event.TagOffCooldown))
	assert.Nil(t, eng.HandleLine(abilityLine(m.Now(), playerID, playerName, "Bane", dummyID, dummyName)))
}

func TestNewRejectsUnknownBinding(t *testing.T) {
	_, err := New([]event.AbilityDescriptor{bane}, badBindings{})
	assert.Error(t, err)
}

type badBindings struct{}

func (badBindings) AbilityForSegment(int) (string, bool) { return "Nope", true }
func (badBindings) SegmentForAbility(string) (int, bool) { return 0, true }
func (badBindings) Segments() []int                      { return []int{0} }
