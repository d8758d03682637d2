package topicmgr

import (
	"fmt"
	"regexp"
	"strings"
)

// Validator checks topic definitions.
type Validator struct {
	namePattern *regexp.Regexp
}

// NewValidator creates a validator accepting dotted lower-case names such as
// cooldown.on or combat.state.in.
func NewValidator() *Validator {
	return &Validator{
		namePattern: regexp.MustCompile(`^[a-z][a-z0-9]*(\.[a-z][a-z0-9]*)+$`),
	}
}

// ValidateDefinition validates a topic before registration.
func (v *Validator) ValidateDefinition(topic Topic) error {
	if topic == nil {
		return fmt.Errorf("topic cannot be nil")
	}
	if err := v.ValidateName(topic.Name()); err != nil {
		return err
	}
	if strings.TrimSpace(topic.Description()) == "" {
		return fmt.Errorf("topic %s: description cannot be empty", topic.Name())
	}
	return nil
}

// ValidateName validates a topic name.
func (v *Validator) ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("topic name cannot be empty")
	}
	if len(name) > 100 {
		return fmt.Errorf("topic name too long (max 100 characters): %s", name)
	}
	if !v.namePattern.MatchString(name) {
		return fmt.Errorf("topic name %q must be dotted lower-case segments", name)
	}
	return nil
}

// ValidatePattern validates a subscription pattern: a topic name whose
// segments may be "*".
func (v *Validator) ValidatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("pattern cannot be empty")
	}
	for _, seg := range strings.Split(pattern, ".") {
		if seg == "*" {
			continue
		}
		if !v.namePattern.MatchString(seg + ".x") {
			return fmt.Errorf("invalid pattern segment %q in %q", seg, pattern)
		}
	}
	return nil
}

// Match reports whether name matches pattern. A "*" segment matches exactly
// one segment; a trailing "*" also matches any number of further segments.
func Match(pattern, name string) bool {
	ps := strings.Split(pattern, ".")
	ns := strings.Split(name, ".")
	for i, p := range ps {
		if i >= len(ns) {
			return false
		}
		if p == "*" {
			if i == len(ps)-1 {
				return true
			}
			continue
		}
		if p != ns[i] {
			return false
		}
	}
	return len(ps) == len(ns)
}
