package event

import "time"

// Epoch fills unused activation slots. It is always outside any cooldown window.
var Epoch = time.Unix(0, 0).UTC()

// AbilityDescriptor is the static definition of a tracked ability.
type AbilityDescriptor struct {
	Name            string  `json:"name" yaml:"name" validate:"notblank"`
	CooldownSeconds float64 `json:"cooldown" yaml:"cooldown" validate:"gte=0"`
	MaxCharges      int     `json:"charges" yaml:"charges" validate:"gte=0"`
}

// Charges returns MaxCharges, treating anything below one as one.
func (d AbilityDescriptor) Charges() int {
	if d.MaxCharges < 1 {
		return 1
	}
	return d.MaxCharges
}

// Cooldown returns the recovery time of one charge.
func (d AbilityDescriptor) Cooldown() time.Duration {
	return time.Duration(d.CooldownSeconds * float64(time.Second))
}

// AbilityState is a point-in-time copy of an ability's charges.
//
// ActivationHistory always holds Charges() entries, newest first; slots that
// were never used hold Epoch.
type AbilityState struct {
	Descriptor        AbilityDescriptor `json:"descriptor"`
	CurrentCharges    int               `json:"currentCharges"`
	ActivationHistory []time.Time       `json:"activationHistory"`
}

// NewAbilityState returns a fully charged state for d.
func NewAbilityState(d AbilityDescriptor) AbilityState {
	d.MaxCharges = d.Charges()
	history := make([]time.Time, d.MaxCharges)
	for i := range history {
		history[i] = Epoch
	}
	return AbilityState{Descriptor: d, CurrentCharges: d.MaxCharges, ActivationHistory: history}
}

// Clone returns a deep copy.
func (s AbilityState) Clone() AbilityState {
	s.ActivationHistory = append([]time.Time(nil), s.ActivationHistory...)
	return s
}

// CoolingSlots counts activations whose cooldown has not elapsed at now.
func (s AbilityState) CoolingSlots(now time.Time) int {
	cd := s.Descriptor.Cooldown()
	n := 0
	for _, at := range s.ActivationHistory {
		if at.Add(cd).After(now) {
			n++
		}
	}
	return n
}

// NextReady returns the earliest time a cooling slot recovers. ok is false when
// no slot is cooling.
func (s AbilityState) NextReady(now time.Time) (ready time.Time, ok bool) {
	cd := s.Descriptor.Cooldown()
	for _, at := range s.ActivationHistory {
		end := at.Add(cd)
		if !end.After(now) {
			continue
		}
		if !ok || end.Before(ready) {
			ready, ok = end, true
		}
	}
	return ready, ok
}
