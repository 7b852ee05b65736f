package forces

import (
	"time"

	"github.com/san-kum/orbitsim/internal/orbit"
	"github.com/san-kum/orbitsim/internal/spacecraft"
)

// StandardGravity converts specific impulse to exhaust velocity.
const StandardGravity = 9.80665

// ConstantThrust fires along the inertial velocity between Start and
// Start+Duration. Duration may be negative for firings ending at Start.
type ConstantThrust struct {
	Start    time.Time
	Duration time.Duration
	Thrust   float64 // N
	Isp      float64 // s
}

func (c *ConstantThrust) Name() string { return "constant_thrust" }

func (c *ConstantThrust) active(date time.Time) bool {
	a, b := c.Start, c.Start.Add(c.Duration)
	if b.Before(a) {
		a, b = b, a
	}
	return !date.Before(a) && date.Before(b)
}

// Boundaries returns the start and end dates of the firing, where the
// derivative is discontinuous.
func (c *ConstantThrust) Boundaries() []time.Time {
	return []time.Time{c.Start, c.Start.Add(c.Duration)}
}

func (c *ConstantThrust) Contribution(s spacecraft.State) (orbit.Vector3, float64, error) {
	if !c.active(s.Date()) || s.Mass() <= 0 {
		return orbit.Vector3{}, 0, nil
	}
	dir := s.Orbit().Velocity().Normalize()
	return dir.Scale(c.Thrust / s.Mass()), -c.Thrust / (StandardGravity * c.Isp), nil
}

// MassLeak is a constant mass rate with no acceleration, such as a
// venting tank. It is valid in every representation.
type MassLeak struct {
	Rate float64 // kg/s, negative when losing mass
}

func (m MassLeak) Name() string { return "mass_leak" }
func (MassLeak) massOnly()      {}

func (m MassLeak) Contribution(spacecraft.State) (orbit.Vector3, float64, error) {
	return orbit.Vector3{}, m.Rate, nil
}
