package event

import (
	"encoding/json"
	"math"
)

// Missing is the value of an integer field that was absent or malformed.
const Missing = -1

// Vec3 is a position in game world coordinates.
type Vec3 struct {
	X float64
	Y float64
	Z float64
}

// Entity is a snapshot of a player or NPC as reported by a single log line.
// Integer fields hold Missing and float fields hold NaN when unparseable.
type Entity struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	HP       int     `json:"hp"`
	MaxHP    int     `json:"maxHp"`
	MP       int     `json:"mp"`
	MaxMP    int     `json:"maxMp"`
	Position Vec3    `json:"position"`
	Heading  float64 `json:"heading"`
}

// Is reports whether e identifies the subject. The ID is authoritative once one
// is known; the name is only compared while id is empty.
func (e Entity) Is(id, name string) bool {
	if id != "" {
		return e.ID == id
	}
	return name != "" && e.Name == name
}

func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// MarshalJSON renders NaN components as null; encoding/json rejects NaN.
func (v Vec3) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
		Z *float64 `json:"z"`
	}{finite(v.X), finite(v.Y), finite(v.Z)})
}

// UnmarshalJSON maps null components back to NaN.
func (v *Vec3) UnmarshalJSON(data []byte) error {
	var raw struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
		Z *float64 `json:"z"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v.X, v.Y, v.Z = orNaN(raw.X), orNaN(raw.Y), orNaN(raw.Z)
	return nil
}

type entityJSON Entity

func (e Entity) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		entityJSON
		Heading *float64 `json:"heading"`
	}{entityJSON(e), finite(e.Heading)})
}

func (e *Entity) UnmarshalJSON(data []byte) error {
	aux := struct {
		*entityJSON
		Heading *float64 `json:"heading"`
	}{entityJSON: (*entityJSON)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	e.Heading = orNaN(aux.Heading)
	return nil
}

func orNaN(f *float64) float64 {
	if f == nil {
		return math.NaN()
	}
	return *f
}
