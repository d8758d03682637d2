// Package event defines the closed set of combat log events and the decoder
// that turns raw ACT network log lines into them.
//
// Decoded variants come from the pipe-delimited log; the C-prefixed variants are
// synthetic and only ever produced by the session engine or the overlay status
// feed.
package event

import (
	"sort"
	"strings"
	"time"
)

// Tag is the short identifier in field 0 of a log line selecting its variant.
type Tag string

const (
	TagLogLine             Tag = "00"
	TagChangeZone          Tag = "01"
	TagChangePrimaryPlayer Tag = "02"
	TagAddCombatant        Tag = "03"
	TagRemoveCombatant     Tag = "04"
	TagPartyList           Tag = "11"
	TagPlayerStats         Tag = "12"
	TagStartsCasting       Tag = "20"
	TagNetworkAbility      Tag = "21"
	TagNetworkAOEAbility   Tag = "22"
	TagNetworkDeath        Tag = "25"
	TagNetworkUpdateHP     Tag = "39"
	TagUnknown             Tag = "UNKNOWN"

	TagInCombat            Tag = "C00"
	TagOutOfCombat         Tag = "C01"
	TagOnCooldown          Tag = "C02"
	TagOffCooldown         Tag = "C03"
	TagCombatStatus        Tag = "C04"
	TagPrimaryEntityStatus Tag = "C05"
	TagEnmityTargetData    Tag = "C06"
	TagOnlineStatusChanged Tag = "C07"
)

var tagNames = map[Tag]string{
	TagLogLine:             "LogLine",
	TagChangeZone:          "ChangeZone",
	TagChangePrimaryPlayer: "ChangePrimaryPlayer",
	TagAddCombatant:        "AddCombatant",
	TagRemoveCombatant:     "RemoveCombatant",
	TagPartyList:           "PartyList",
	TagPlayerStats:         "PlayerStats",
	TagStartsCasting:       "StartsCasting",
	TagNetworkAbility:      "NetworkAbility",
	TagNetworkAOEAbility:   "NetworkAOEAbility",
	TagNetworkDeath:        "NetworkDeath",
	TagNetworkUpdateHP:     "NetworkUpdateHP",
	TagUnknown:             "Unknown",
	TagInCombat:            "InCombat",
	TagOutOfCombat:         "OutOfCombat",
	TagOnCooldown:          "OnCooldown",
	TagOffCooldown:         "OffCooldown",
	TagCombatStatus:        "CombatStatus",
	TagPrimaryEntityStatus: "PrimaryEntityStatus",
	TagEnmityTargetData:    "EnmityTargetData",
	TagOnlineStatusChanged: "OnlineStatusChanged",
}

var tagsByName = func() map[string]Tag {
	m := make(map[string]Tag, len(tagNames))
	for t, n := range tagNames {
		m[strings.ToLower(n)] = t
	}
	return m
}()

// Name returns the human readable name of a tag, or the raw tag when it has none.
func (t Tag) Name() string {
	if n, ok := tagNames[t]; ok {
		return n
	}
	return string(t)
}

// Synthetic reports whether the tag is produced locally rather than decoded.
func (t Tag) Synthetic() bool {
	return strings.HasPrefix(string(t), "C")
}

// ParseTag accepts either a raw tag ("21") or a case-insensitive name
// ("networkability").
func ParseTag(s string) (Tag, bool) {
	s = strings.TrimSpace(s)
	if _, ok := tagNames[Tag(s)]; ok {
		return Tag(s), true
	}
	t, ok := tagsByName[strings.ToLower(s)]
	return t, ok
}

// TagNames returns every known tag name, sorted.
func TagNames() []string {
	names := make([]string, 0, len(tagNames))
	for _, n := range tagNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Event is implemented by every variant in this package. The unexported marker
// keeps the set closed; consumers switch on the concrete type.
type Event interface {
	Tag() Tag
	Time() time.Time
	isEvent()
}

// Header carries the fields common to every variant.
type Header struct {
	EventTag  Tag       `json:"tag"`
	Timestamp time.Time `json:"timestamp"`
}

// NewHeader builds a header for a synthetic event.
func NewHeader(tag Tag, at time.Time) Header {
	return Header{EventTag: tag, Timestamp: at}
}

func (h Header) Tag() Tag        { return h.EventTag }
func (h Header) Time() time.Time { return h.Timestamp }
func (Header) isEvent()          {}

// NetworkAbility is one entity's use of an ability against a target (tags 21 and 22).
type NetworkAbility struct {
	Header
	Source      Entity      `json:"source"`
	Target      Entity      `json:"target"`
	AbilityID   string      `json:"abilityId"`
	AbilityName string      `json:"abilityName"`
	Flags       string      `json:"flags"`
	RawDamage   string      `json:"rawDamage"`
	Directional Directional `json:"directional,omitempty"`
}

// ChangePrimaryPlayer announces the tracked subject.
type ChangePrimaryPlayer struct {
	Header
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

type PartyList struct {
	Header
	Size      int      `json:"size"`
	PlayerIDs []string `json:"playerIds"`
}

type PlayerStats struct {
	Header
	JobID string `json:"jobId"`
}

type NetworkUpdateHP struct {
	Header
	Entity Entity `json:"entity"`
}

type AddCombatant struct {
	Header
	Entity Entity `json:"entity"`
}

type NetworkDeath struct {
	Header
	SourceID   string `json:"sourceId"`
	SourceName string `json:"sourceName"`
	TargetID   string `json:"targetId"`
	TargetName string `json:"targetName"`
}

// InCombat is emitted once on each entry into combat.
type InCombat struct {
	Header
}

// OutOfCombat is emitted once on each exit from combat.
type OutOfCombat struct {
	Header
}

// OnCooldown is emitted after a charge of Ability was consumed.
type OnCooldown struct {
	Header
	Ability AbilityState `json:"ability"`
}

// OffCooldown is emitted when a charge recovers. StartedAt is the timestamp of
// the log line that consumed it.
type OffCooldown struct {
	Header
	StartedAt time.Time    `json:"startedAt"`
	Ability   AbilityState `json:"ability"`
}

// CombatStatus mirrors the overlay CombatData message. InCombat is true when the
// encounter is active and the local player ("YOU") is among the combatants.
type CombatStatus struct {
	Header
	Encounter  map[string]string            `json:"encounter"`
	Combatants map[string]map[string]string `json:"combatants"`
	Active     bool                         `json:"active"`
	InCombat   bool                         `json:"inCombat"`
}

type PrimaryEntityStatus struct {
	Header
	Entity Entity `json:"entity"`
}

// Aggression levels reported with EnmityTargetData.
const (
	AggressionPassive    = "passive"
	AggressionAggressive = "aggressive"
)

// EnmityTargetData reports the player's current target. Target is nil when
// nothing is targeted.
type EnmityTargetData struct {
	Header
	Target     *Entity `json:"target"`
	Aggression string  `json:"aggression"`
	TargetType string  `json:"targetType"`
}

type OnlineStatusChanged struct {
	Header
	TargetID string `json:"targetId"`
	Status   string `json:"status"`
}

// Unrecognized is the fallback for every tag without a dedicated decoder.
type Unrecognized struct {
	Header
	Fields []string `json:"fields"`
}
