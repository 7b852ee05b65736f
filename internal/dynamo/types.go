package dynamo

import (
	"fmt"
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ODE is a first order system dY/dt = f(t, Y).
//
// Derive must not retain or modify y.
type ODE interface {
	Dimension() int
	Derive(t float64, y State) (State, error)
}

// Action tells the solver what to do once an event has been located.
type Action int

const (
	Continue Action = iota
	Stop
	ResetState
	ResetDerivatives
)

func (a Action) String() string {
	switch a {
	case Continue:
		return "continue"
	case Stop:
		return "stop"
	case ResetState:
		return "reset_state"
	case ResetDerivatives:
		return "reset_derivatives"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// EventHandler is a switching function monitored during integration.
// A root of G is an event.
type EventHandler interface {
	Init(t0 float64, y0 State, t float64) error
	G(t float64, y State) (float64, error)
	EventOccurred(t float64, y State, increasing bool) (Action, error)
	// ResetState may overwrite y in place. It is only called after
	// EventOccurred returned ResetState.
	ResetState(t float64, y State) error
}

// EventConfig controls how an event handler is checked and located.
type EventConfig struct {
	// MaxCheckInterval is the maximal time between two switching function checks.
	MaxCheckInterval float64
	// Threshold is the convergence threshold on event time.
	Threshold float64
	// MaxIterations bounds the root solver.
	MaxIterations int
}

func DefaultEventConfig() EventConfig {
	return EventConfig{
		MaxCheckInterval: 600,
		Threshold:        1e-6,
		MaxIterations:    100,
	}
}

// StepInterpolator gives access to the state anywhere in an accepted step.
// Asking for a time outside [PreviousTime, CurrentTime] extrapolates the
// step polynomial.
type StepInterpolator interface {
	PreviousTime() float64
	CurrentTime() float64
	IsForward() bool
	InterpolatedState(t float64) State
}

// StepHandler observes accepted steps.
type StepHandler interface {
	Init(t0 float64, y0 State, t float64) error
	HandleStep(interp StepInterpolator, isLast bool) error
}

// Integrator integrates an ODE between two times, forward or backward.
type Integrator interface {
	Name() string
	AddEventHandler(h EventHandler, cfg EventConfig)
	ClearEventHandlers()
	AddStepHandler(h StepHandler)
	ClearStepHandlers()
	// Integrate returns the time reached (t, or an earlier event time
	// when a handler stopped the run) and the state there.
	Integrate(ode ODE, t0 float64, y0 State, t float64) (float64, State, error)
}
