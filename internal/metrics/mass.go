package metrics

import "github.com/san-kum/orbitsim/internal/spacecraft"

type MassConsumed struct {
	name    string
	initial float64
	current float64
	samples int
}

func NewMassConsumed() *MassConsumed {
	return &MassConsumed{
		name: "mass_consumed",
	}
}

func (m *MassConsumed) Name() string {
	return m.name
}

func (m *MassConsumed) Observe(s spacecraft.State) {
	if m.samples == 0 {
		m.initial = s.Mass()
	}
	m.current = s.Mass()
	m.samples++
}

func (m *MassConsumed) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.initial - m.current
}

func (m *MassConsumed) Reset() {
	m.initial = 0
	m.current = 0
	m.samples = 0
}
