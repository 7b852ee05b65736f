package integrators

import (
	"fmt"
	"math"

	"github.com/san-kum/orbitsim/internal/dynamo"
)

// RK4 is the classical fourth order Runge-Kutta method with a fixed step
// and cubic Hermite dense output.
type RK4 struct {
	base
	step    float64
	scratch dynamo.State
}

func NewRK4(step float64) *RK4 {
	r := &RK4{step: math.Abs(step)}
	r.base.name = "rk4"
	r.base.stepper = r
	return r
}

func (r *RK4) minStep() float64 { return 0 }

func (r *RK4) initialStep(f derivFunc, t0 float64, y0, yDot0 dynamo.State, span float64) (float64, error) {
	if r.step == 0 {
		return 0, fmt.Errorf("rk4: step must be positive")
	}
	return r.step, nil
}

func (r *RK4) attempt(f derivFunc, t float64, x, k1 dynamo.State, dt float64) (trial, error) {
	n := len(x)
	if len(r.scratch) != n {
		r.scratch = make(dynamo.State, n)
	}

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*0.5*k1[i]
	}
	k2, err := f(t+dt*0.5, r.scratch)
	if err != nil {
		return trial{}, err
	}

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*0.5*k2[i]
	}
	k3, err := f(t+dt*0.5, r.scratch)
	if err != nil {
		return trial{}, err
	}

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*k3[i]
	}
	k4, err := f(t+dt, r.scratch)
	if err != nil {
		return trial{}, err
	}

	result := make(dynamo.State, n)
	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		result[i] = x[i] + dt6*(k1[i]+2*k2[i]+2*k3[i]+k4[i])
	}

	f1, err := f(t+dt, result)
	if err != nil {
		return trial{}, err
	}

	return trial{
		y:    result,
		yDot: f1,
		next: r.step,
		poly: &hermite{h: dt, y0: x, y1: result, f0: k1, f1: f1},
	}, nil
}
