// Package profile loads ability profiles: the abilities to track for a job and
// the UI segments they are bound to.
package profile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/nfrund/actwatch/internal/domain"
	"github.com/nfrund/actwatch/internal/event"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Binding ties a UI segment to an ability. Command is the key sequence the
// macro collaborator sends when the segment is chosen.
type Binding struct {
	Segment int      `yaml:"segment" json:"segment" validate:"gte=0"`
	Ability string   `yaml:"ability" json:"ability" validate:"notblank"`
	Command []string `yaml:"command,omitempty" json:"command,omitempty"`
}

// Profile is a validated ability profile. It implements ability.Bindings.
type Profile struct {
	Name      string                    `yaml:"name" json:"name" validate:"notblank"`
	JobID     string                    `yaml:"job,omitempty" json:"job,omitempty"`
	Abilities []event.AbilityDescriptor `yaml:"abilities" json:"abilities" validate:"dive"`
	Bindings  []Binding                 `yaml:"bindings,omitempty" json:"bindings,omitempty" validate:"dive"`

	bySegment map[int]Binding
	byAbility map[string]int
}

// Load reads and validates the profile at path.
func Load(fs afero.Fs, path string) (*Profile, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read profile %q: %w", path, err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("profile %q: %w", path, err)
	}
	return p, nil
}

// Parse decodes a YAML profile. Unknown keys are rejected.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", domain.ErrInvalidProfile)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidProfile, err)
	}
	if err := p.init(); err != nil {
		return nil, err
	}
	return &p, nil
}

// init normalises charges, validates the profile and builds the lookup indexes.
func (p *Profile) init() error {
	if err := domain.Validate(domain.ErrInvalidProfile, p); err != nil {
		return err
	}

	known := make(map[string]struct{}, len(p.Abilities))
	for i := range p.Abilities {
		a := &p.Abilities[i]
		if a.MaxCharges < 1 {
			a.MaxCharges = 1
		}
		if _, dup := known[a.Name]; dup {
			return fmt.Errorf("%w: ability %q is defined twice", domain.ErrInvalidProfile, a.Name)
		}
		known[a.Name] = struct{}{}
	}

	p.bySegment = make(map[int]Binding, len(p.Bindings))
	p.byAbility = make(map[string]int, len(p.Bindings))
	for _, b := range p.Bindings {
		if _, ok := known[b.Ability]; !ok {
			return fmt.Errorf("%w: binding at segment %d: %w %q", domain.ErrInvalidProfile, b.Segment, domain.ErrUnknownAbility, b.Ability)
		}
		if _, dup := p.bySegment[b.Segment]; dup {
			return fmt.Errorf("%w: segment %d is bound twice", domain.ErrInvalidProfile, b.Segment)
		}
		p.bySegment[b.Segment] = b
		if _, seen := p.byAbility[b.Ability]; !seen {
			p.byAbility[b.Ability] = b.Segment
		}
	}
	return nil
}

// Descriptors returns a copy of the profile's abilities.
func (p *Profile) Descriptors() []event.AbilityDescriptor {
	return append([]event.AbilityDescriptor(nil), p.Abilities...)
}

func (p *Profile) AbilityForSegment(segment int) (string, bool) {
	b, ok := p.bySegment[segment]
	return b.Ability, ok
}

// SegmentForAbility returns the lowest-listed segment bound to name.
func (p *Profile) SegmentForAbility(name string) (int, bool) {
	seg, ok := p.byAbility[name]
	return seg, ok
}

// Binding returns the full binding for segment.
func (p *Profile) Binding(segment int) (Binding, bool) {
	b, ok := p.bySegment[segment]
	return b, ok
}

// Segments returns every bound segment in ascending order.
func (p *Profile) Segments() []int {
	out := make([]int, 0, len(p.bySegment))
	for seg := range p.bySegment {
		out = append(out, seg)
	}
	sort.Ints(out)
	return out
}
