package domain

import "errors"

// Sentinel errors shared across packages. Callers wrap them with context and
// check them with errors.Is.
var (
	ErrUnknownAbility = errors.New("unknown ability")
	ErrUnboundSegment = errors.New("segment is not bound to an ability")
	ErrNoLogFiles     = errors.New("no log files found")
	ErrInvalidPayload = errors.New("invalid status feed payload")
	ErrInvalidProfile = errors.New("invalid profile")
	ErrInvalidConfig  = errors.New("invalid configuration")
)
