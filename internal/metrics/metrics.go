package metrics

import "github.com/san-kum/orbitsim/internal/spacecraft"

// Metric accumulates a scalar over the sampled states of a run.
type Metric interface {
	Name() string
	Observe(s spacecraft.State)
	Value() float64
	Reset()
}

// Set observes every sample with all its metrics.
type Set []Metric

// Defaults returns the metrics reported for every run.
func Defaults() Set {
	return Set{
		NewEnergyDrift(),
		NewMinAltitude(),
		NewMaxAltitude(),
		NewMassConsumed(),
	}
}

func (ms Set) Observe(s spacecraft.State) {
	for _, m := range ms {
		m.Observe(s)
	}
}

func (ms Set) Values() map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}

func (ms Set) Reset() {
	for _, m := range ms {
		m.Reset()
	}
}
