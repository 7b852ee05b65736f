package propagation

import (
	"fmt"
	"time"

	"github.com/san-kum/orbitsim/internal/dynamo"
	"github.com/san-kum/orbitsim/internal/spacecraft"
)

// Mode selects how intermediate steps are delivered. It is one of
// SlaveMode, MasterMode or EphemerisMode.
type Mode interface {
	isMode()
}

// SlaveMode only produces the final state of each run.
type SlaveMode struct{}

// MasterMode hands every accepted step to Handler while the run proceeds.
type MasterMode struct {
	Handler StepHandler
}

// EphemerisMode stores every step and builds an Ephemeris at the end of
// the run.
type EphemerisMode struct{}

func (SlaveMode) isMode()     {}
func (MasterMode) isMode()    {}
func (EphemerisMode) isMode() {}

// StepHandler receives the steps of a run in Master mode.
type StepHandler interface {
	Init(s spacecraft.State, target time.Time) error
	// HandleStep is called once per accepted step. The view is only valid
	// during the call.
	HandleStep(v *StepView, isLast bool) error
}

// StepHandlerFunc adapts a function to StepHandler with a no-op Init.
type StepHandlerFunc func(v *StepView, isLast bool) error

func (f StepHandlerFunc) Init(spacecraft.State, time.Time) error { return nil }

func (f StepHandlerFunc) HandleStep(v *StepView, isLast bool) error { return f(v, isLast) }

// StepView exposes one accepted step. It holds a single interpolation
// cursor which starts at the current date.
type StepView struct {
	run    *run
	interp dynamo.StepInterpolator
	cursor float64
}

func (v *StepView) PreviousDate() time.Time {
	return v.run.mapper.TimeToEpoch(v.interp.PreviousTime())
}

func (v *StepView) CurrentDate() time.Time {
	return v.run.mapper.TimeToEpoch(v.interp.CurrentTime())
}

func (v *StepView) InterpolatedDate() time.Time {
	return v.run.mapper.TimeToEpoch(v.cursor)
}

// SetInterpolatedDate moves the cursor. Dates slightly outside the step
// are extrapolated with reduced accuracy.
func (v *StepView) SetInterpolatedDate(d time.Time) {
	v.cursor = v.run.mapper.EpochToTime(d)
}

func (v *StepView) InterpolatedState() (spacecraft.State, error) {
	return v.stateAt(v.cursor)
}

func (v *StepView) PreviousState() (spacecraft.State, error) {
	return v.stateAt(v.interp.PreviousTime())
}

func (v *StepView) CurrentState() (spacecraft.State, error) {
	return v.stateAt(v.interp.CurrentTime())
}

func (v *StepView) IsForward() bool { return v.interp.IsForward() }

func (v *StepView) stateAt(t float64) (spacecraft.State, error) {
	return v.run.completeState(t, v.interp.InterpolatedState(t))
}

// modeHandler is the live variant of a mode, registered on the solver as
// a step handler.
type modeHandler interface {
	dynamo.StepHandler
	// initialize prepares a run; inactive handlers ignore all steps.
	initialize(r *run, active bool)
}

type masterHandler struct {
	handler StepHandler
	run     *run
	active  bool
}

func (m *masterHandler) initialize(r *run, active bool) {
	m.run, m.active = r, active
}

func (m *masterHandler) Init(t0 float64, y0 dynamo.State, t float64) error {
	if !m.active {
		return nil
	}
	s, err := m.run.completeState(t0, y0)
	if err != nil {
		return err
	}
	return m.handler.Init(s, m.run.mapper.TimeToEpoch(t))
}

func (m *masterHandler) HandleStep(interp dynamo.StepInterpolator, isLast bool) error {
	if !m.active {
		return nil
	}
	v := &StepView{run: m.run, interp: interp, cursor: interp.CurrentTime()}
	return m.handler.HandleStep(v, isLast)
}

type ephemerisHandler struct {
	run       *run
	active    bool
	model     *dynamo.ContinuousOutput
	ephemeris *Ephemeris
}

func (e *ephemerisHandler) initialize(r *run, active bool) {
	e.run, e.active = r, active
	e.model = dynamo.NewContinuousOutput()
	e.ephemeris = nil
}

func (e *ephemerisHandler) Init(t0 float64, y0 dynamo.State, t float64) error {
	if !e.active {
		return nil
	}
	return e.model.Init(t0, y0, t)
}

func (e *ephemerisHandler) HandleStep(interp dynamo.StepInterpolator, isLast bool) error {
	if !e.active {
		return nil
	}
	if err := e.model.HandleStep(interp, isLast); err != nil {
		return err
	}
	if isLast {
		e.ephemeris = newEphemeris(e.run, e.model)
	}
	return nil
}

// FixedStepHandler receives states at regular intervals.
type FixedStepHandler interface {
	Init(s spacecraft.State, target time.Time) error
	HandleFixedStep(s spacecraft.State, isLast bool) error
}

// FixedStepHandlerFunc adapts a function to FixedStepHandler with a no-op
// Init.
type FixedStepHandlerFunc func(s spacecraft.State, isLast bool) error

func (f FixedStepHandlerFunc) Init(spacecraft.State, time.Time) error { return nil }

func (f FixedStepHandlerFunc) HandleFixedStep(s spacecraft.State, isLast bool) error {
	return f(s, isLast)
}

// stepNormalizer turns variable solver steps into calls at a fixed
// interval from the start of the run. The final state is always reported,
// even when it is not on the grid.
type stepNormalizer struct {
	step    time.Duration
	handler FixedStepHandler

	started  bool
	lastDate time.Time
	last     spacecraft.State
}

func newStepNormalizer(step time.Duration, h FixedStepHandler) (*stepNormalizer, error) {
	if step <= 0 {
		return nil, fmt.Errorf("fixed step must be positive, got %v", step)
	}
	return &stepNormalizer{step: step, handler: h}, nil
}

func (n *stepNormalizer) Init(s spacecraft.State, target time.Time) error {
	n.started = false
	return n.handler.Init(s, target)
}

func (n *stepNormalizer) HandleStep(v *StepView, isLast bool) error {
	h := n.step
	if !v.IsForward() {
		h = -h
	}
	if !n.started {
		n.lastDate = v.PreviousDate()
		s, err := v.PreviousState()
		if err != nil {
			return err
		}
		n.last, n.started = s, true
	}

	current := v.CurrentDate()
	next := n.lastDate.Add(h)
	for inStep(next, current, h) {
		if err := n.handler.HandleFixedStep(n.last, false); err != nil {
			return err
		}
		v.SetInterpolatedDate(next)
		s, err := v.InterpolatedState()
		if err != nil {
			return err
		}
		n.lastDate, n.last = next, s
		next = next.Add(h)
	}

	if isLast {
		if !n.lastDate.Equal(current) {
			if err := n.handler.HandleFixedStep(n.last, false); err != nil {
				return err
			}
			s, err := v.CurrentState()
			if err != nil {
				return err
			}
			n.last = s
		}
		return n.handler.HandleFixedStep(n.last, true)
	}
	return nil
}

// inStep reports whether next does not go past current in the direction
// of h.
func inStep(next, current time.Time, h time.Duration) bool {
	if h > 0 {
		return !next.After(current)
	}
	return !next.Before(current)
}
