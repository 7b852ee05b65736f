package metrics

import (
	"math"

	"github.com/san-kum/orbitsim/internal/spacecraft"
)

// Altitude tracks an extremum of the altitude above the equatorial radius.
type Altitude struct {
	name    string
	lowest  bool
	value   float64
	samples int
}

func NewMinAltitude() *Altitude {
	return &Altitude{name: "min_altitude", lowest: true}
}

func NewMaxAltitude() *Altitude {
	return &Altitude{name: "max_altitude"}
}

func (a *Altitude) Name() string {
	return a.name
}

func (a *Altitude) Observe(s spacecraft.State) {
	h := s.Orbit().Altitude()
	switch {
	case a.samples == 0:
		a.value = h
	case a.lowest:
		a.value = math.Min(a.value, h)
	default:
		a.value = math.Max(a.value, h)
	}
	a.samples++
}

// Value is NaN before the first sample.
func (a *Altitude) Value() float64 {
	if a.samples == 0 {
		return math.NaN()
	}
	return a.value
}

func (a *Altitude) Reset() {
	a.value = 0
	a.samples = 0
}
