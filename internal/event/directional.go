package event

import "math"

// Directional is the attacker's position relative to the defender's facing.
type Directional string

const (
	DirectionalNone Directional = ""
	Front           Directional = "FRONT"
	FlankLeft       Directional = "FLANK_LEFT"
	FlankRight      Directional = "FLANK_RIGHT"
	Rear            Directional = "REAR"
)

// CalculateDirectional classifies source's position around target. It returns
// DirectionalNone when either entity has no ID or the coordinates are
// degenerate (NaN).
func CalculateDirectional(source, target Entity) Directional {
	if source.ID == "" || target.ID == "" {
		return DirectionalNone
	}

	dx := source.Position.X - target.Position.X
	dy := source.Position.Y - target.Position.Y

	angle := -target.Heading
	sin, cos := math.Sincos(angle)
	x := cos*dx + sin*dy
	y := -sin*dx + cos*dy

	switch {
	case y >= 0 && math.Abs(x) <= y:
		return Front
	case y <= 0 && math.Abs(x) <= -y:
		return Rear
	case x >= 0 && math.Abs(y) <= x:
		return FlankLeft
	case x <= 0 && math.Abs(y) <= -x:
		return FlankRight
	}
	return DirectionalNone
}
