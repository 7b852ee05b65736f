package propagation

import (
	"fmt"
	"slices"

	"github.com/san-kum/orbitsim/internal/spacecraft"
)

// Derivatives is the result of a set of additional equations. Primary,
// when not nil, is added to the primary derivative; it is the only way an
// additional set can influence the main trajectory.
type Derivatives struct {
	Own     []float64
	Primary []float64
}

// AdditionalEquations are integrated alongside the primary state. s is the
// fully reconstructed state, including every additional state, and own is
// a copy of this set's current block.
type AdditionalEquations interface {
	ComputeDerivatives(s spacecraft.State, own []float64) (Derivatives, error)
}

// AdditionalEquationsFunc adapts a function to AdditionalEquations.
type AdditionalEquationsFunc func(s spacecraft.State, own []float64) (Derivatives, error)

func (f AdditionalEquationsFunc) ComputeDerivatives(s spacecraft.State, own []float64) (Derivatives, error) {
	return f(s, own)
}

// AdditionalStateProvider computes an additional state directly from the
// current state instead of integrating it.
type AdditionalStateProvider interface {
	Name() string
	AdditionalState(s spacecraft.State) ([]float64, error)
}

type equationSet struct {
	name string
	dim  int
	eqs  AdditionalEquations
}

// block locates a set in the composite vector.
type block struct {
	name   string
	offset int
	dim    int
}

// layout is the arrangement of the composite vector for one run: the
// primary block followed by one block per additional set, in registration
// order.
type layout struct {
	blocks []block
	total  int
}

func newLayout(sets []*equationSet) layout {
	l := layout{total: PrimaryDimension}
	for _, s := range sets {
		l.blocks = append(l.blocks, block{name: s.name, offset: l.total, dim: s.dim})
		l.total += s.dim
	}
	return l
}

func (l layout) names() []string {
	out := make([]string, len(l.blocks))
	for i, b := range l.blocks {
		out[i] = b.name
	}
	return out
}

// secondary extracts copies of every additional block of y.
func (l layout) secondary(y []float64) map[string][]float64 {
	if len(l.blocks) == 0 {
		return nil
	}
	m := make(map[string][]float64, len(l.blocks))
	for _, b := range l.blocks {
		m[b.name] = slices.Clone(y[b.offset : b.offset+b.dim])
	}
	return m
}

// seed copies the additional blocks from s into y.
func (l layout) seed(s spacecraft.State, y []float64) error {
	for _, b := range l.blocks {
		v, ok := s.Additional(b.name)
		if !ok {
			return fmt.Errorf("%w: %q", ErrMissingAdditionalState, b.name)
		}
		if len(v) != b.dim {
			return fmt.Errorf("%w: %q has %d values, expected %d", ErrAdditionalDimension, b.name, len(v), b.dim)
		}
		copy(y[b.offset:], v)
	}
	return nil
}

// AddAdditionalEquations registers a set of dim equations under name. The
// initial state must hold a payload of that name and size when a run
// starts.
func (p *Propagator) AddAdditionalEquations(name string, dim int, eqs AdditionalEquations) error {
	if eqs == nil {
		return fmt.Errorf("%w: %q", ErrNilAdditional, name)
	}
	if p.IsAdditionalStateManaged(name) {
		return fmt.Errorf("%w: %q", ErrDuplicateAdditionalName, name)
	}
	if dim <= 0 {
		return fmt.Errorf("%w: %q declares dimension %d", ErrAdditionalDimension, name, dim)
	}
	p.equations = append(p.equations, &equationSet{name: name, dim: dim, eqs: eqs})
	return nil
}

func (p *Propagator) ClearAdditionalEquations() {
	p.equations = nil
}

// AddAdditionalStateProvider registers a provider whose value is merged
// into every state the propagator builds.
func (p *Propagator) AddAdditionalStateProvider(sp AdditionalStateProvider) error {
	if sp == nil {
		return ErrNilAdditional
	}
	if p.IsAdditionalStateManaged(sp.Name()) {
		return fmt.Errorf("%w: %q", ErrDuplicateAdditionalName, sp.Name())
	}
	p.providers = append(p.providers, sp)
	return nil
}

// IsAdditionalStateManaged reports whether name is computed by a provider
// or integrated by a set of additional equations.
func (p *Propagator) IsAdditionalStateManaged(name string) bool {
	return slices.Contains(p.ManagedStates(), name)
}

// ManagedStates returns provider names followed by additional equation
// names in registration order.
func (p *Propagator) ManagedStates() []string {
	out := make([]string, 0, len(p.providers)+len(p.equations))
	for _, sp := range p.providers {
		out = append(out, sp.Name())
	}
	for _, e := range p.equations {
		out = append(out, e.name)
	}
	return out
}

// updateProviders merges the provider values into s.
func updateProviders(providers []AdditionalStateProvider, s spacecraft.State) (spacecraft.State, error) {
	if len(providers) == 0 {
		return s, nil
	}
	m := make(map[string][]float64, len(providers))
	for _, sp := range providers {
		v, err := sp.AdditionalState(s)
		if err != nil {
			return spacecraft.State{}, fmt.Errorf("provider %q: %w", sp.Name(), err)
		}
		m[sp.Name()] = v
	}
	return s.WithAdditionalStates(m), nil
}
