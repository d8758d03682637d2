package ability

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/nfrund/actwatch/internal/domain"
	"github.com/nfrund/actwatch/internal/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapBindings map[int]string

func (m mapBindings) AbilityForSegment(segment int) (string, bool) {
	name, ok := m[segment]
	return name, ok
}

func (m mapBindings) SegmentForAbility(name string) (int, bool) {
	for seg, n := range m {
		if n == name {
			return seg, true
		}
	}
	return 0, false
}

func (m mapBindings) Segments() []int {
	out := make([]int, 0, len(m))
	for seg := range m {
		out = append(out, seg)
	}
	return out
}

var (
	bane      = event.AbilityDescriptor{Name: "Bane", CooldownSeconds: 60, MaxCharges: 2}
	swiftcast = event.AbilityDescriptor{Name: "Swiftcast", CooldownSeconds: 40}
	start     = time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
)

func newTracker(t *testing.T, now *time.Time) *Tracker {
	t.Helper()
	tr, err := NewTracker(
		[]event.AbilityDescriptor{bane, swiftcast},
		mapBindings{0: "Bane", 3: "Swiftcast"},
		WithClock(func() time.Time { return *now }),
	)
	require.NoError(t, err)
	return tr
}

func TestNewTrackerRejectsUnknownBinding(t *testing.T) {
	_, err := NewTracker([]event.AbilityDescriptor{bane}, mapBindings{1: "Energy Drain"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownAbility)
}

func TestNewTrackerRejectsDuplicates(t *testing.T) {
	_, err := NewTracker([]event.AbilityDescriptor{bane, bane}, nil)
	assert.Error(t, err)
}

func TestLookups(t *testing.T) {
	now := start
	tr := newTracker(t, &now)

	st, ok := tr.ByName("Bane")
	require.True(t, ok)
	assert.Equal(t, 2, st.CurrentCharges)
	assert.Equal(t, []time.Time{event.Epoch, event.Epoch}, st.ActivationHistory)

	st, ok = tr.BySegment(3)
	require.True(t, ok)
	assert.Equal(t, "Swiftcast", st.Descriptor.Name)
	assert.Equal(t, 1, st.Descriptor.MaxCharges)

	seg, ok := tr.Segment("Swiftcast")
	assert.True(t, ok)
	assert.Equal(t, 3, seg)

	_, ok = tr.ByName("Fester")
	assert.False(t, ok)
	_, ok = tr.BySegment(7)
	assert.False(t, ok)
	_, ok = tr.ConsumeCharge("Fester")
	assert.False(t, ok)
	_, ok = tr.RestoreCharge("Fester")
	assert.False(t, ok)
}

func TestNilBindings(t *testing.T) {
	tr, err := NewTracker([]event.AbilityDescriptor{bane}, nil)
	require.NoError(t, err)

	_, ok := tr.BySegment(0)
	assert.False(t, ok)
	_, ok = tr.Segment("Bane")
	assert.False(t, ok)
}

func TestConsumeAndRestore(t *testing.T) {
	now := start
	tr := newTracker(t, &now)

	st, _ := tr.ConsumeCharge("Bane")
	assert.Equal(t, 1, st.CurrentCharges)
	assert.Equal(t, []time.Time{start, event.Epoch}, st.ActivationHistory)

	now = start.Add(time.Second)
	st, _ = tr.ConsumeCharge("Bane")
	assert.Equal(t, 0, st.CurrentCharges)
	assert.Equal(t, []time.Time{now, start}, st.ActivationHistory)

	t.Run("consume at zero still records", func(t *testing.T) {
		now = start.Add(2 * time.Second)
		st, _ := tr.ConsumeCharge("Bane")
		assert.Equal(t, 0, st.CurrentCharges)
		assert.Equal(t, []time.Time{now, start.Add(time.Second)}, st.ActivationHistory)
	})

	t.Run("restore saturates", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			tr.RestoreCharge("Bane")
		}
		st, _ := tr.ByName("Bane")
		assert.Equal(t, 2, st.CurrentCharges)
	})
}

func TestReturnedStatesAreCopies(t *testing.T) {
	now := start
	tr := newTracker(t, &now)

	st, _ := tr.ConsumeCharge("Swiftcast")
	st.ActivationHistory[0] = time.Time{}
	st.CurrentCharges = 9

	again, _ := tr.ByName("Swiftcast")
	assert.Equal(t, start, again.ActivationHistory[0])
	assert.Equal(t, 0, again.CurrentCharges)
}

func TestChargesStayInRange(t *testing.T) {
	now := start
	tr := newTracker(t, &now)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 2000; i++ {
		name := "Bane"
		if rng.Intn(2) == 0 {
			name = "Swiftcast"
		}
		var st event.AbilityState
		if rng.Intn(2) == 0 {
			st, _ = tr.ConsumeCharge(name)
		} else {
			st, _ = tr.RestoreCharge(name)
		}
		require.GreaterOrEqual(t, st.CurrentCharges, 0)
		require.LessOrEqual(t, st.CurrentCharges, st.Descriptor.MaxCharges)
		require.Len(t, st.ActivationHistory, st.Descriptor.MaxCharges)
	}
}

func TestConcurrentMutation(t *testing.T) {
	tr, err := NewTracker([]event.AbilityDescriptor{{Name: "Bane", CooldownSeconds: 60, MaxCharges: 50}}, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.ConsumeCharge("Bane")
		}()
	}
	wg.Wait()

	st, _ := tr.ByName("Bane")
	assert.Equal(t, 0, st.CurrentCharges)
	assert.Equal(t, 50, st.CoolingSlots(time.Now()))
}

func TestSnapshotSorted(t *testing.T) {
	now := start
	tr := newTracker(t, &now)

	snap := tr.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "Bane", snap[0].Descriptor.Name)
	assert.Equal(t, "Swiftcast", snap[1].Descriptor.Name)
}
