package propagation

import (
	"errors"
	"fmt"
)

var (
	ErrMissingInitialState     = errors.New("propagation: initial state not set")
	ErrNonPositiveMass         = errors.New("propagation: spacecraft mass is not positive")
	ErrDuplicateAdditionalName = errors.New("propagation: additional state name already in use")
	ErrMissingAdditionalState  = errors.New("propagation: additional state data missing")
	ErrAdditionalDimension     = errors.New("propagation: additional state dimension mismatch")
	ErrNilAdditional           = errors.New("propagation: nil additional equations or provider")
	ErrNumericSolverFailure    = errors.New("propagation: numeric solver failure")
	ErrNotEphemerisMode        = errors.New("propagation: propagator is not in ephemeris mode")
	ErrNoEphemeris             = errors.New("propagation: no ephemeris generated yet")
	ErrUnresolvedMu            = errors.New("propagation: gravitational parameter not resolved")
	ErrSharedPropagator        = errors.New("propagation: propagator used by more than one batch job")
)

// MassError reports a non-positive mass found before or during a run.
type MassError struct {
	Mass float64
}

func (e *MassError) Error() string {
	return fmt.Sprintf("%v: %g kg", ErrNonPositiveMass, e.Mass)
}

func (e *MassError) Is(target error) bool { return target == ErrNonPositiveMass }

// SolverError wraps a failure of the numeric solver itself, as opposed to
// an error returned by one of the propagation callbacks.
type SolverError struct {
	Err error
}

func (e *SolverError) Error() string {
	return fmt.Sprintf("%v: %v", ErrNumericSolverFailure, e.Err)
}

func (e *SolverError) Is(target error) bool { return target == ErrNumericSolverFailure }

func (e *SolverError) Unwrap() error { return e.Err }
