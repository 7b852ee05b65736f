package dynamo

import (
	"errors"
	"fmt"
)

// Solver errors.
var (
	// ErrInvalidState indicates a state vector containing NaN or Inf.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrStepTooSmall indicates adaptive timestep became too small.
	ErrStepTooSmall = errors.New("dynamo: adaptive timestep below minimum")

	// ErrDimensionMismatch indicates a vector whose length differs from the ODE dimension.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and equations")

	// ErrTooManyIterations indicates the event root solver did not converge.
	ErrTooManyIterations = errors.New("dynamo: event root finding exceeded max iterations")

	// ErrTooManyEvaluations indicates the derivative evaluation budget was exhausted.
	ErrTooManyEvaluations = errors.New("dynamo: maximal number of evaluations exceeded")
)

// IntegrationError wraps a solver failure with integration context.
type IntegrationError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("step %d (t=%.6f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *IntegrationError) Unwrap() error {
	return e.Wrapped
}

// CallbackError carries an error returned by user code (derivatives,
// switching functions, resets, step handlers) out of the solver.
type CallbackError struct {
	Time float64
	Err  error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("callback failed at t=%.6f: %v", e.Time, e.Err)
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}

// WrapCallback tags err as a callback failure at time t. Errors already
// tagged are returned unchanged, nil stays nil.
func WrapCallback(t float64, err error) error {
	if err == nil {
		return nil
	}
	var cb *CallbackError
	if errors.As(err, &cb) {
		return err
	}
	return &CallbackError{Time: t, Err: err}
}
