// Package forces computes the primary derivative of a spacecraft state:
// central Keplerian attraction in any orbit representation, plus optional
// perturbing models.
package forces

import (
	"errors"
	"fmt"

	"github.com/san-kum/orbitsim/internal/orbit"
	"github.com/san-kum/orbitsim/internal/spacecraft"
)

// Dimension of the primary derivative: six orbit parameters and mass.
const Dimension = 7

var ErrUnsupportedType = errors.New("forces: perturbing accelerations require the cartesian representation")

// Model is a perturbation. It returns an acceleration in the orbit frame
// (m/s²) and a mass rate (kg/s).
type Model interface {
	Name() string
	Contribution(s spacecraft.State) (acc orbit.Vector3, massRate float64, err error)
}

// Equations is the primary derivative for a given representation.
type Equations struct {
	typ    orbit.Type
	angle  orbit.PositionAngle
	models []Model
}

func NewEquations(typ orbit.Type, angle orbit.PositionAngle, models ...Model) (*Equations, error) {
	if typ != orbit.Cartesian {
		for _, m := range models {
			if _, ok := m.(massOnly); !ok {
				return nil, fmt.Errorf("%w: %s with %s", ErrUnsupportedType, m.Name(), typ)
			}
		}
	}
	return &Equations{typ: typ, angle: angle, models: models}, nil
}

// ComputeDerivatives returns d/dt of the six orbit parameters and mass.
func (e *Equations) ComputeDerivatives(s spacecraft.State) ([]float64, error) {
	out := make([]float64, Dimension)
	if err := e.kepler(s.Orbit(), out); err != nil {
		return nil, err
	}
	for _, m := range e.models {
		acc, dm, err := m.Contribution(s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.Name(), err)
		}
		if e.typ == orbit.Cartesian {
			out[3] += acc[0]
			out[4] += acc[1]
			out[5] += acc[2]
		}
		out[6] += dm
	}
	return out, nil
}

func (e *Equations) kepler(o orbit.Orbit, out []float64) error {
	switch e.typ {
	case orbit.Cartesian:
		p, v := o.Position(), o.Velocity()
		r := p.Norm()
		acc := p.Scale(-o.Mu() / (r * r * r))
		copy(out, []float64{v[0], v[1], v[2], acc[0], acc[1], acc[2]})
	case orbit.Keplerian, orbit.Equinoctial:
		rate, err := o.AngleRate(e.angle)
		if err != nil {
			return err
		}
		out[5] = rate
	default:
		return orbit.ErrUnknownType
	}
	return nil
}

// massOnly marks models without acceleration, usable in any
// representation.
type massOnly interface {
	massOnly()
}
