package overlay

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nfrund/actwatch/internal/domain"
	"github.com/nfrund/actwatch/internal/event"
)

// Message types pushed by OverlayPlugin.
const (
	TypeLogLine             = "LogLine"
	TypeCombatData          = "CombatData"
	TypeChangePrimaryPlayer = "ChangePrimaryPlayer"
	TypeEnmityTargetData    = "EnmityTargetData"
	TypeOnlineStatusChanged = "OnlineStatusChanged"
)

// DefaultEvents is the subscription sent on every connect.
var DefaultEvents = []string{
	TypeCombatData,
	TypeChangePrimaryPlayer,
	TypeLogLine,
	TypeEnmityTargetData,
	TypeOnlineStatusChanged,
}

// youCombatant is the key OverlayPlugin uses for the local player.
const youCombatant = "YOU"

type subscribeRequest struct {
	Call   string   `json:"call"`
	Events []string `json:"events"`
}

type envelope struct {
	Type string `json:"type"`
}

type logLineMsg struct {
	RawLine string `json:"rawLine" validate:"required"`
}

type combatDataMsg struct {
	Encounter map[string]string            `json:"Encounter"`
	Combatant map[string]map[string]string `json:"Combatant"`
	IsActive  string                       `json:"isActive" validate:"oneof=true false"`
}

type changePrimaryPlayerMsg struct {
	CharID   uint64 `json:"charID" validate:"gt=0"`
	CharName string `json:"charName" validate:"notblank"`
}

type enmityTarget struct {
	ID        uint64  `json:"ID" validate:"gt=0"`
	Name      string  `json:"Name" validate:"notblank"`
	MaxHP     int     `json:"MaxHP"`
	CurrentHP int     `json:"CurrentHP"`
	PosX      float64 `json:"PosX"`
	PosY      float64 `json:"PosY"`
	PosZ      float64 `json:"PosZ"`
	Rotation  float64 `json:"Rotation"`
	Type      int     `json:"Type"`
}

type enmityTargetDataMsg struct {
	Target  *enmityTarget `json:"Target"`
	Entries []struct {
		IsMe bool `json:"isMe"`
	} `json:"Entries"`
}

type onlineStatusChangedMsg struct {
	Target uint64 `json:"target" validate:"gt=0"`
	Status string `json:"status" validate:"notblank"`
}

// hexID renders a numeric actor ID the way the log does.
func hexID(id uint64) string {
	return strings.ToUpper(strconv.FormatUint(id, 16))
}

func targetType(t int) string {
	switch t {
	case 1:
		return "player"
	case 2:
		return "monster"
	case 3:
		return "npc"
	default:
		return "item"
	}
}

// decodeMessage turns one OverlayPlugin message into either a raw log line or a
// typed event. Both are empty for message types that are not handled. Invalid
// payloads return an error wrapping domain.ErrInvalidPayload.
func decodeMessage(data []byte, now time.Time) (string, event.Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	switch env.Type {
	case TypeLogLine:
		var m logLineMsg
		if err := unmarshalValid(data, &m); err != nil {
			return "", nil, err
		}
		return m.RawLine, nil, nil

	case TypeCombatData:
		var m combatDataMsg
		if err := unmarshalValid(data, &m); err != nil {
			return "", nil, err
		}
		_, you := m.Combatant[youCombatant]
		active := m.IsActive == "true"
		return "", event.CombatStatus{
			Header:     event.NewHeader(event.TagCombatStatus, now),
			Encounter:  m.Encounter,
			Combatants: m.Combatant,
			Active:     active,
			InCombat:   active && you,
		}, nil

	case TypeChangePrimaryPlayer:
		var m changePrimaryPlayerMsg
		if err := unmarshalValid(data, &m); err != nil {
			return "", nil, err
		}
		return "", event.ChangePrimaryPlayer{
			Header:     event.NewHeader(event.TagChangePrimaryPlayer, now),
			PlayerID:   hexID(m.CharID),
			PlayerName: m.CharName,
		}, nil

	case TypeEnmityTargetData:
		var m enmityTargetDataMsg
		if err := unmarshalValid(data, &m); err != nil {
			return "", nil, err
		}
		ev := event.EnmityTargetData{
			Header:     event.NewHeader(event.TagEnmityTargetData, now),
			Aggression: event.AggressionPassive,
		}
		for _, e := range m.Entries {
			if e.IsMe {
				ev.Aggression = event.AggressionAggressive
				break
			}
		}
		if m.Target != nil {
			// Pointer fields are skipped by struct validation when nil, so the
			// target is checked on its own.
			if err := domain.Validate(domain.ErrInvalidPayload, m.Target); err != nil {
				return "", nil, err
			}
			t := m.Target
			ev.Target = &event.Entity{
				ID:       hexID(t.ID),
				Name:     t.Name,
				HP:       t.CurrentHP,
				MaxHP:    t.MaxHP,
				Position: event.Vec3{X: t.PosX, Y: t.PosY, Z: t.PosZ},
				Heading:  t.Rotation,
			}
			ev.TargetType = targetType(t.Type)
		}
		return "", ev, nil

	case TypeOnlineStatusChanged:
		var m onlineStatusChangedMsg
		if err := unmarshalValid(data, &m); err != nil {
			return "", nil, err
		}
		return "", event.OnlineStatusChanged{
			Header:   event.NewHeader(event.TagOnlineStatusChanged, now),
			TargetID: hexID(m.Target),
			Status:   m.Status,
		}, nil
	}
	return "", nil, nil
}

func unmarshalValid(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	return domain.Validate(domain.ErrInvalidPayload, v)
}
