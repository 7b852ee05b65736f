package propagation

import (
	"slices"
	"time"

	"github.com/san-kum/orbitsim/internal/dynamo"
	"github.com/san-kum/orbitsim/internal/spacecraft"
)

// Ephemeris is the dense trajectory of a completed run. It does not refer
// to the propagator that produced it and is safe for concurrent use.
type Ephemeris struct {
	start    time.Time
	min, max time.Time
	model    *dynamo.ContinuousOutput
	run      *run
	names    []string
}

func newEphemeris(r *run, model *dynamo.ContinuousOutput) *Ephemeris {
	tI, tF := model.InitialTime(), model.FinalTime()
	start := r.mapper.TimeToEpoch(tI)
	lo, hi := start, r.mapper.TimeToEpoch(tF)
	if tF < tI {
		lo, hi = hi, lo
	}
	// the run is not shared with later runs: the mapper is an immutable
	// value and the slices are fixed once the run starts
	return &Ephemeris{
		start: start,
		min:   lo,
		max:   hi,
		model: model,
		run:   r,
		names: r.layout.names(),
	}
}

func (e *Ephemeris) StartDate() time.Time { return e.start }
func (e *Ephemeris) MinDate() time.Time   { return e.min }
func (e *Ephemeris) MaxDate() time.Time   { return e.max }

// AdditionalNames returns the names of the integrated additional states.
func (e *Ephemeris) AdditionalNames() []string { return slices.Clone(e.names) }

// Propagate returns the state at date. Dates outside [MinDate, MaxDate]
// are extrapolated from the nearest step.
func (e *Ephemeris) Propagate(date time.Time) (spacecraft.State, error) {
	t := e.run.mapper.EpochToTime(date)
	return e.run.completeState(t, e.model.Interpolate(t))
}
