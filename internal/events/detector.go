// Package events defines discrete events that can be watched during a
// propagation: a continuous switching function of the spacecraft state
// whose sign changes mark the event, and a handler deciding what the
// propagation does when one is found.
package events

import (
	"fmt"
	"time"

	"github.com/san-kum/orbitsim/internal/spacecraft"
)

const (
	DefaultMaxCheck      = 600.0
	DefaultThreshold     = 1e-6
	DefaultMaxIterations = 100
)

// Action is the reaction of the propagation to an event.
type Action int

const (
	Stop Action = iota
	ResetState
	ResetDerivatives
	Continue
)

func (a Action) String() string {
	switch a {
	case Stop:
		return "stop"
	case ResetState:
		return "reset_state"
	case ResetDerivatives:
		return "reset_derivatives"
	case Continue:
		return "continue"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Detector is watched by a propagator. G must be continuous in time
// around its roots; MaxCheckInterval (seconds) must be small enough that
// no two roots fall inside the same interval.
type Detector interface {
	Init(s spacecraft.State, target time.Time) error
	G(s spacecraft.State) (float64, error)
	EventOccurred(s spacecraft.State, increasing bool) (Action, error)
	ResetState(s spacecraft.State) (spacecraft.State, error)

	MaxCheckInterval() float64
	Threshold() float64
	MaxIterations() int
}

type (
	SwitchingFunc func(s spacecraft.State) (float64, error)
	InitFunc      func(s spacecraft.State, target time.Time) error
	ResetFunc     func(s spacecraft.State) (spacecraft.State, error)
	Handler       func(s spacecraft.State, increasing bool) (Action, error)
)

// FuncDetector is a Detector assembled from functions.
type FuncDetector struct {
	name          string
	g             SwitchingFunc
	init          InitFunc
	handler       Handler
	reset         ResetFunc
	maxCheck      float64
	threshold     float64
	maxIterations int
}

type Option func(*FuncDetector)

func WithName(name string) Option {
	return func(d *FuncDetector) { d.name = name }
}

func WithMaxCheck(seconds float64) Option {
	return func(d *FuncDetector) { d.maxCheck = seconds }
}

func WithThreshold(seconds float64) Option {
	return func(d *FuncDetector) { d.threshold = seconds }
}

func WithMaxIterations(n int) Option {
	return func(d *FuncDetector) { d.maxIterations = n }
}

func WithHandler(h Handler) Option {
	return func(d *FuncDetector) { d.handler = h }
}

// WithReset sets the function applied when the handler returns ResetState.
func WithReset(r ResetFunc) Option {
	return func(d *FuncDetector) { d.reset = r }
}

func WithInit(f InitFunc) Option {
	return func(d *FuncDetector) { d.init = f }
}

// New returns a detector for g. Without options it stops the propagation
// at the first root.
func New(g SwitchingFunc, opts ...Option) *FuncDetector {
	d := &FuncDetector{
		name:          "event",
		g:             g,
		handler:       StopOnEvent,
		maxCheck:      DefaultMaxCheck,
		threshold:     DefaultThreshold,
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *FuncDetector) Name() string              { return d.name }
func (d *FuncDetector) MaxCheckInterval() float64 { return d.maxCheck }
func (d *FuncDetector) Threshold() float64        { return d.threshold }
func (d *FuncDetector) MaxIterations() int        { return d.maxIterations }

func (d *FuncDetector) Init(s spacecraft.State, target time.Time) error {
	if d.init == nil {
		return nil
	}
	return d.init(s, target)
}

func (d *FuncDetector) G(s spacecraft.State) (float64, error) {
	return d.g(s)
}

func (d *FuncDetector) EventOccurred(s spacecraft.State, increasing bool) (Action, error) {
	return d.handler(s, increasing)
}

// ResetState applies the reset function, or returns s unchanged when
// there is none.
func (d *FuncDetector) ResetState(s spacecraft.State) (spacecraft.State, error) {
	if d.reset == nil {
		return s, nil
	}
	return d.reset(s)
}

func StopOnEvent(spacecraft.State, bool) (Action, error)     { return Stop, nil }
func ContinueOnEvent(spacecraft.State, bool) (Action, error) { return Continue, nil }
func ResetOnEvent(spacecraft.State, bool) (Action, error)    { return ResetState, nil }

func StopOnIncreasing(_ spacecraft.State, increasing bool) (Action, error) {
	if increasing {
		return Stop, nil
	}
	return Continue, nil
}

func StopOnDecreasing(_ spacecraft.State, increasing bool) (Action, error) {
	if increasing {
		return Continue, nil
	}
	return Stop, nil
}
