package event

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ts = "2024-01-02T15:04:05.1230000-07:00"

// abilityLine builds a tag 21 line with the given overrides applied by index.
func abilityLine(overrides map[int]string) string {
	f := make([]string, 48)
	f[0], f[1] = "21", ts
	for i, v := range map[int]string{
		2: "10FF0001", 3: "Alyx Ward", 4: "7469", 5: "Bane",
		6: "40001234", 7: "Striking Dummy", 8: "710003", 9: "1F40000",
		24: "41000", 25: "44000", 26: "10000", 27: "10000",
		30: "100", 31: "100", 32: "0", 33: "0",
		34: "52000", 35: "52000", 36: "9000", 37: "10000",
		40: "100", 41: "103", 42: "0", 43: "1.57",
	} {
		f[i] = v
	}
	for i, v := range overrides {
		f[i] = v
	}
	return strings.Join(f, Delimiter)
}

func TestDecodeNetworkAbility(t *testing.T) {
	ev := Decode(abilityLine(nil))

	na, ok := ev.(NetworkAbility)
	require.True(t, ok, "expected NetworkAbility, got %T", ev)

	want, err := time.Parse(time.RFC3339Nano, ts)
	require.NoError(t, err)
	assert.True(t, want.Equal(na.Time()))
	assert.Equal(t, TagNetworkAbility, na.Tag())

	assert.Equal(t, "10FF0001", na.Source.ID)
	assert.Equal(t, "Alyx Ward", na.Source.Name)
	assert.Equal(t, 52000, na.Source.HP)
	assert.Equal(t, 10000, na.Source.MaxMP)
	assert.Equal(t, Vec3{X: 100, Y: 103, Z: 0}, na.Source.Position)
	assert.InDelta(t, 1.57, na.Source.Heading, 1e-9)

	assert.Equal(t, "40001234", na.Target.ID)
	assert.Equal(t, "Striking Dummy", na.Target.Name)
	assert.Equal(t, 41000, na.Target.HP)
	assert.Equal(t, 44000, na.Target.MaxHP)

	assert.Equal(t, "7469", na.AbilityID)
	assert.Equal(t, "Bane", na.AbilityName)
	assert.Equal(t, "710003", na.Flags)
	assert.Equal(t, "1F40000", na.RawDamage)
	assert.Equal(t, Front, na.Directional)
}

func TestDecodeAOEAbilityKeepsTag(t *testing.T) {
	ev := Decode(strings.Replace(abilityLine(nil), "21|", "22|", 1))
	na, ok := ev.(NetworkAbility)
	require.True(t, ok)
	assert.Equal(t, TagNetworkAOEAbility, na.Tag())
}

func TestDecodeMalformedFieldsAreIndependent(t *testing.T) {
	ev := Decode(abilityLine(map[int]string{24: "lots", 30: "", 43: "north"}))
	na := ev.(NetworkAbility)

	assert.Equal(t, Missing, na.Target.HP)
	assert.Equal(t, 44000, na.Target.MaxHP)
	assert.True(t, math.IsNaN(na.Target.Position.X))
	assert.Equal(t, float64(100), na.Target.Position.Y)
	assert.True(t, math.IsNaN(na.Source.Heading))
	assert.Equal(t, "Bane", na.AbilityName)
	assert.Equal(t, DirectionalNone, na.Directional)
}

func TestDecodeShortAbilityLine(t *testing.T) {
	ev := Decode("21|" + ts + "|10FF0001|Alyx Ward")
	na := ev.(NetworkAbility)
	assert.Equal(t, "Alyx Ward", na.Source.Name)
	assert.Equal(t, "", na.AbilityName)
	assert.Equal(t, Missing, na.Source.HP)
	assert.True(t, math.IsNaN(na.Source.Heading))
}

func TestDecodeEmptyLine(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	d := NewDecoder(WithClock(func() time.Time { return now }))

	ev := d.Decode("")
	u, ok := ev.(Unrecognized)
	require.True(t, ok)
	assert.Equal(t, TagUnknown, u.Tag())
	assert.Equal(t, now, u.Time())

	ev = d.Decode("21")
	assert.Equal(t, TagUnknown, ev.Tag())
}

func TestDecodeUnknownTagPreservesFields(t *testing.T) {
	ev := Decode("00|" + ts + "|0839||You use Bane.|hash\r\n")
	u, ok := ev.(Unrecognized)
	require.True(t, ok)
	assert.Equal(t, TagLogLine, u.Tag())
	assert.False(t, u.Time().IsZero())
	assert.Equal(t, []string{"00", ts, "0839", "", "You use Bane.", "hash"}, u.Fields)
}

func TestDecodeInvalidTimestamp(t *testing.T) {
	ev := Decode("12|yesterday|24")
	ps, ok := ev.(PlayerStats)
	require.True(t, ok)
	assert.True(t, ps.Time().IsZero())
	assert.Equal(t, "24", ps.JobID)
}

func TestDecodeOtherVariants(t *testing.T) {
	t.Run("ChangePrimaryPlayer", func(t *testing.T) {
		ev := Decode("02|" + ts + "|10FF0001|Alyx Ward|")
		assert.Equal(t, ChangePrimaryPlayer{
			Header:     ev.(ChangePrimaryPlayer).Header,
			PlayerID:   "10FF0001",
			PlayerName: "Alyx Ward",
		}, ev)
	})

	t.Run("PartyList", func(t *testing.T) {
		ev := Decode("11|" + ts + "|2|10FF0001|10FF0002|10FF0003")
		pl := ev.(PartyList)
		assert.Equal(t, 2, pl.Size)
		assert.Equal(t, []string{"10FF0001", "10FF0002"}, pl.PlayerIDs)

		pl = Decode("11|" + ts + "|x").(PartyList)
		assert.Equal(t, Missing, pl.Size)
		assert.Empty(t, pl.PlayerIDs)
	})

	t.Run("NetworkDeath", func(t *testing.T) {
		nd := Decode("25|" + ts + "|40001234|Striking Dummy|10FF0001|Alyx Ward").(NetworkDeath)
		assert.Equal(t, "40001234", nd.TargetID)
		assert.Equal(t, "Striking Dummy", nd.TargetName)
		assert.Equal(t, "10FF0001", nd.SourceID)
		assert.Equal(t, "Alyx Ward", nd.SourceName)
	})

	t.Run("NetworkUpdateHP", func(t *testing.T) {
		line := "39|" + ts + "|10FF0001|Alyx Ward|50000|52000|9000|10000|||1.5|2.5|3.5|0.25"
		e := Decode(line).(NetworkUpdateHP).Entity
		assert.Equal(t, 50000, e.HP)
		assert.Equal(t, 52000, e.MaxHP)
		assert.Equal(t, Vec3{X: 1.5, Y: 2.5, Z: 3.5}, e.Position)
		assert.Equal(t, 0.25, e.Heading)
	})

	t.Run("AddCombatant", func(t *testing.T) {
		f := make([]string, 21)
		f[0], f[1], f[2], f[3] = "03", ts, "10FF0001", "Alyx Ward"
		f[11], f[12], f[13], f[14] = "1", "2", "3", "4"
		f[17], f[18], f[19], f[20] = "5", "6", "7", "8"
		e := Decode(strings.Join(f, Delimiter)).(AddCombatant).Entity
		assert.Equal(t, Entity{ID: "10FF0001", Name: "Alyx Ward", HP: 1, MaxHP: 2, MP: 3, MaxMP: 4,
			Position: Vec3{X: 5, Y: 6, Z: 7}, Heading: 8}, e)
	})
}

func TestEntityJSONRendersNaNAsNull(t *testing.T) {
	e := Entity{ID: "1", HP: Missing, Position: Vec3{X: math.NaN(), Y: 2, Z: 3}, Heading: math.NaN()}

	b, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1","name":"","hp":-1,"maxHp":0,"mp":0,"maxMp":0,
		"position":{"x":null,"y":2,"z":3},"heading":null}`, string(b))

	var back Entity
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, math.IsNaN(back.Heading))
	assert.True(t, math.IsNaN(back.Position.X))
	assert.Equal(t, float64(2), back.Position.Y)
}

func TestParseTag(t *testing.T) {
	tag, ok := ParseTag("21")
	assert.True(t, ok)
	assert.Equal(t, TagNetworkAbility, tag)

	tag, ok = ParseTag(" oncooldown ")
	assert.True(t, ok)
	assert.Equal(t, TagOnCooldown, tag)

	_, ok = ParseTag("nope")
	assert.False(t, ok)

	assert.True(t, TagOffCooldown.Synthetic())
	assert.False(t, TagNetworkAbility.Synthetic())
	assert.Equal(t, "99", Tag("99").Name())
}
