package events

import (
	"time"

	"github.com/san-kum/orbitsim/internal/spacecraft"
)

// NewDateDetector triggers when the propagation reaches date, in either
// direction.
func NewDateDetector(date time.Time, opts ...Option) *FuncDetector {
	g := func(s spacecraft.State) (float64, error) {
		return s.Date().Sub(date).Seconds(), nil
	}
	return New(g, append([]Option{WithName("date")}, opts...)...)
}

// NewApsideDetector triggers at periapsis (increasing) and apoapsis
// (decreasing), where the radial velocity vanishes. The default handler
// stops at periapsis.
func NewApsideDetector(opts ...Option) *FuncDetector {
	g := func(s spacecraft.State) (float64, error) {
		o := s.Orbit()
		return o.Position().Dot(o.Velocity()), nil
	}
	return New(g, append([]Option{WithName("apside"), WithHandler(StopOnIncreasing)}, opts...)...)
}

// NewNodeDetector triggers at the ascending (increasing) and descending
// (decreasing) nodes with respect to the frame equator. The default
// handler stops at the ascending node.
func NewNodeDetector(opts ...Option) *FuncDetector {
	g := func(s spacecraft.State) (float64, error) {
		return s.Orbit().Position()[2], nil
	}
	return New(g, append([]Option{WithName("node"), WithHandler(StopOnIncreasing)}, opts...)...)
}
