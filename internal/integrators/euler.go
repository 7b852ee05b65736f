package integrators

import (
	"fmt"
	"math"

	"github.com/san-kum/orbitsim/internal/dynamo"
)

// Euler is the explicit first order method. Mostly useful as a cheap
// reference in tests and benchmarks.
type Euler struct {
	base
	step float64
}

func NewEuler(step float64) *Euler {
	e := &Euler{step: math.Abs(step)}
	e.base.name = "euler"
	e.base.stepper = e
	return e
}

func (e *Euler) minStep() float64 { return 0 }

func (e *Euler) initialStep(f derivFunc, t0 float64, y0, yDot0 dynamo.State, span float64) (float64, error) {
	if e.step == 0 {
		return 0, fmt.Errorf("euler: step must be positive")
	}
	return e.step, nil
}

func (e *Euler) attempt(f derivFunc, t float64, x, dx dynamo.State, dt float64) (trial, error) {
	result := make(dynamo.State, len(x))
	for i := range x {
		result[i] = x[i] + dt*dx[i]
	}
	f1, err := f(t+dt, result)
	if err != nil {
		return trial{}, err
	}
	return trial{
		y:    result,
		yDot: f1,
		next: e.step,
		poly: &hermite{h: dt, y0: x, y1: result, f0: dx, f1: f1},
	}, nil
}
