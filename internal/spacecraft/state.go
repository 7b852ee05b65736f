// Package spacecraft defines the state that is propagated: an orbit, an
// attitude, a mass and any number of named additional states.
//
// State is an immutable value. Every With* method returns a modified copy
// and additional payloads are copied on insertion and on read, so a State
// can be shared freely between goroutines.
package spacecraft

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/san-kum/orbitsim/internal/attitude"
	"github.com/san-kum/orbitsim/internal/orbit"
)

const DefaultMass = 1000.0

var ErrDateMismatch = errors.New("spacecraft: orbit and attitude dates differ")

type State struct {
	orbit      orbit.Orbit
	attitude   attitude.Attitude
	mass       float64
	additional map[string][]float64
}

// New builds a state with no additional data. The attitude must refer to
// the orbit date.
func New(o orbit.Orbit, att attitude.Attitude, mass float64) (State, error) {
	if !att.Date.IsZero() && !att.Date.Equal(o.Date()) {
		return State{}, fmt.Errorf("%w: orbit %s, attitude %s", ErrDateMismatch, o.Date(), att.Date)
	}
	return State{orbit: o, attitude: att, mass: mass}, nil
}

// FromOrbit builds a state with an inertial identity attitude and the
// default mass.
func FromOrbit(o orbit.Orbit) State {
	return State{
		orbit:    o,
		attitude: attitude.Attitude{Date: o.Date(), Frame: o.Frame(), Rotation: attitude.Identity},
		mass:     DefaultMass,
	}
}

func (s State) Orbit() orbit.Orbit          { return s.orbit }
func (s State) Attitude() attitude.Attitude { return s.attitude }
func (s State) Mass() float64               { return s.mass }
func (s State) Date() time.Time             { return s.orbit.Date() }
func (s State) Frame() orbit.Frame          { return s.orbit.Frame() }
func (s State) Mu() float64                 { return s.orbit.Mu() }
func (s State) IsZero() bool                { return s.orbit.IsZero() }

func (s State) WithMass(m float64) State {
	s.mass = m
	return s
}

func (s State) WithOrbit(o orbit.Orbit) State {
	s.orbit = o
	return s
}

func (s State) WithAttitude(a attitude.Attitude) State {
	s.attitude = a
	return s
}

// WithAdditional returns a copy of s where name maps to a copy of value.
func (s State) WithAdditional(name string, value ...float64) State {
	m := make(map[string][]float64, len(s.additional)+1)
	maps.Copy(m, s.additional)
	m[name] = slices.Clone(value)
	s.additional = m
	return s
}

// WithAdditionalStates returns a copy of s with every entry of m added,
// replacing payloads with the same name.
func (s State) WithAdditionalStates(m map[string][]float64) State {
	if len(m) == 0 {
		return s
	}
	out := make(map[string][]float64, len(s.additional)+len(m))
	maps.Copy(out, s.additional)
	for k, v := range m {
		out[k] = slices.Clone(v)
	}
	s.additional = out
	return s
}

// Additional returns a copy of the named payload.
func (s State) Additional(name string) ([]float64, bool) {
	v, ok := s.additional[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(v), true
}

func (s State) HasAdditional(name string) bool {
	_, ok := s.additional[name]
	return ok
}

// AdditionalNames returns the sorted names of the additional states.
func (s State) AdditionalNames() []string {
	return slices.Sorted(maps.Keys(s.additional))
}

// AdditionalStates returns a deep copy of all additional payloads.
func (s State) AdditionalStates() map[string][]float64 {
	m := make(map[string][]float64, len(s.additional))
	for k, v := range s.additional {
		m[k] = slices.Clone(v)
	}
	return m
}

func (s State) String() string {
	return fmt.Sprintf("state{%s mass=%.3f additional=%v}", s.orbit, s.mass, s.AdditionalNames())
}
