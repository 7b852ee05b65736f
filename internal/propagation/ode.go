package propagation

import (
	"fmt"

	"github.com/san-kum/orbitsim/internal/dynamo"
	"github.com/san-kum/orbitsim/internal/spacecraft"
)

// PrimaryEquations computes the derivative of the primary block for a
// reconstructed state. The result has PrimaryDimension values laid out
// like the mapper's vector.
type PrimaryEquations interface {
	ComputeDerivatives(s spacecraft.State) ([]float64, error)
}

// PrimaryFactory builds the primary equations matching a mapper
// configuration, since the derivative depends on the representation.
type PrimaryFactory func(cfg MapperConfig) (PrimaryEquations, error)

// run holds everything that is fixed for the duration of one solver call.
type run struct {
	mapper    StateMapper
	layout    layout
	sets      []*equationSet
	providers []AdditionalStateProvider
	// carried are the additional states of the initial state that nothing
	// manages; they are passed through unchanged.
	carried map[string][]float64
	primary PrimaryEquations
	calls   *int
}

// completeState rebuilds the full spacecraft state from a composite vector.
func (r *run) completeState(t float64, y []float64) (spacecraft.State, error) {
	s, err := r.mapper.ToState(t, y[:PrimaryDimension])
	if err != nil {
		return spacecraft.State{}, err
	}
	s = s.WithAdditionalStates(r.carried)
	if s, err = updateProviders(r.providers, s); err != nil {
		return spacecraft.State{}, err
	}
	return s.WithAdditionalStates(r.layout.secondary(y)), nil
}

// toVector is the inverse of completeState; every additional block must
// be present in s.
func (r *run) toVector(s spacecraft.State) ([]float64, error) {
	primary, err := r.mapper.ToVector(s)
	if err != nil {
		return nil, err
	}
	y := make([]float64, r.layout.total)
	copy(y, primary)
	if err := r.layout.seed(s, y); err != nil {
		return nil, err
	}
	return y, nil
}

func (r *run) Dimension() int { return r.layout.total }

func (r *run) Derive(t float64, y dynamo.State) (dynamo.State, error) {
	s, err := r.completeState(t, y)
	if err != nil {
		return nil, err
	}

	mainDot, err := r.primary.ComputeDerivatives(s)
	if err != nil {
		return nil, err
	}
	if len(mainDot) != PrimaryDimension {
		return nil, fmt.Errorf("%w: primary derivative has %d values", dynamo.ErrDimensionMismatch, len(mainDot))
	}
	*r.calls++

	yDot := make(dynamo.State, r.layout.total)
	copy(yDot, mainDot)
	for i, set := range r.sets {
		b := r.layout.blocks[i]
		own := make([]float64, b.dim)
		copy(own, y[b.offset:b.offset+b.dim])

		d, err := set.eqs.ComputeDerivatives(s, own)
		if err != nil {
			return nil, err
		}
		if len(d.Own) != b.dim {
			return nil, fmt.Errorf("%w: %q derivative has %d values, expected %d", ErrAdditionalDimension, b.name, len(d.Own), b.dim)
		}
		if len(d.Primary) > PrimaryDimension {
			return nil, fmt.Errorf("%w: %q primary contribution has %d values", ErrAdditionalDimension, b.name, len(d.Primary))
		}
		copy(yDot[b.offset:], d.Own)
		for j, v := range d.Primary {
			yDot[j] += v
		}
	}
	return yDot, nil
}
