package event

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Delimiter separates the fields of a raw log line.
const Delimiter = "|"

type constructor func(h Header, f fields) Event

// decoders is the fixed dispatch table. Tags missing here decode to Unrecognized.
var decoders = map[Tag]constructor{
	TagNetworkAbility:      decodeNetworkAbility,
	TagNetworkAOEAbility:   decodeNetworkAbility,
	TagChangePrimaryPlayer: decodeChangePrimaryPlayer,
	TagAddCombatant:        decodeAddCombatant,
	TagPartyList:           decodePartyList,
	TagPlayerStats:         decodePlayerStats,
	TagNetworkDeath:        decodeNetworkDeath,
	TagNetworkUpdateHP:     decodeNetworkUpdateHP,
}

// Decoder turns raw lines into events. The zero value is not usable; use
// NewDecoder.
type Decoder struct {
	now func() time.Time
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithClock sets the time source used to stamp lines that carry no timestamp.
func WithClock(now func() time.Time) DecoderOption {
	return func(d *Decoder) {
		if now != nil {
			d.now = now
		}
	}
}

func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var defaultDecoder = NewDecoder()

// Decode decodes line with the default decoder.
func Decode(line string) Event {
	return defaultDecoder.Decode(line)
}

// Decode never fails: malformed fields become sentinels and unknown tags become
// Unrecognized.
func (d *Decoder) Decode(line string) Event {
	line = strings.TrimRight(line, "\r\n")
	f := fields(strings.Split(line, Delimiter))
	if len(f) < 2 {
		return Unrecognized{Header: NewHeader(TagUnknown, d.now()), Fields: f}
	}

	h := NewHeader(Tag(f[0]), f.timestamp(1))
	if build, ok := decoders[h.EventTag]; ok {
		return build(h, f)
	}
	return Unrecognized{Header: h, Fields: f}
}

// fields gives bounds-checked, independently coerced access to a split line.
type fields []string

func (f fields) str(i int) string {
	if i < 0 || i >= len(f) {
		return ""
	}
	return f[i]
}

func (f fields) integer(i int) int {
	n, err := strconv.Atoi(strings.TrimSpace(f.str(i)))
	if err != nil {
		return Missing
	}
	return n
}

func (f fields) number(i int) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(f.str(i)), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func (f fields) timestamp(i int) time.Time {
	t, err := time.Parse(time.RFC3339Nano, f.str(i))
	if err != nil {
		return time.Time{}
	}
	return t
}

// entity reads the ID at id and the name right after it, HP/maxHP/MP/maxMP
// from vitals on and x/y/z/heading from pos on.
func (f fields) entity(id, vitals, pos int) Entity {
	return Entity{
		ID:    f.str(id),
		Name:  f.str(id + 1),
		HP:    f.integer(vitals),
		MaxHP: f.integer(vitals + 1),
		MP:    f.integer(vitals + 2),
		MaxMP: f.integer(vitals + 3),
		Position: Vec3{
			X: f.number(pos),
			Y: f.number(pos + 1),
			Z: f.number(pos + 2),
		},
		Heading: f.number(pos + 3),
	}
}

func decodeNetworkAbility(h Header, f fields) Event {
	e := NetworkAbility{
		Header:      h,
		Source:      f.entity(2, 34, 40),
		AbilityID:   f.str(4),
		AbilityName: f.str(5),
		Target:      f.entity(6, 24, 30),
		Flags:       f.str(8),
		RawDamage:   f.str(9),
	}
	e.Directional = CalculateDirectional(e.Source, e.Target)
	return e
}

func decodeChangePrimaryPlayer(h Header, f fields) Event {
	return ChangePrimaryPlayer{Header: h, PlayerID: f.str(2), PlayerName: f.str(3)}
}

func decodeAddCombatant(h Header, f fields) Event {
	return AddCombatant{Header: h, Entity: f.entity(2, 11, 17)}
}

func decodeNetworkUpdateHP(h Header, f fields) Event {
	return NetworkUpdateHP{Header: h, Entity: f.entity(2, 4, 10)}
}

func decodePartyList(h Header, f fields) Event {
	e := PartyList{Header: h, Size: f.integer(2), PlayerIDs: []string{}}
	for i := 0; i < e.Size && 3+i < len(f); i++ {
		e.PlayerIDs = append(e.PlayerIDs, f[3+i])
	}
	return e
}

func decodePlayerStats(h Header, f fields) Event {
	return PlayerStats{Header: h, JobID: f.str(2)}
}

func decodeNetworkDeath(h Header, f fields) Event {
	return NetworkDeath{
		Header:     h,
		TargetID:   f.str(2),
		TargetName: f.str(3),
		SourceID:   f.str(4),
		SourceName: f.str(5),
	}
}
