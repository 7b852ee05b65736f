package dynamo

import (
	"math"
	"sort"
)

// ContinuousOutput accumulates accepted steps into a dense model covering
// a whole integration run. It implements StepHandler so it can be attached
// to an Integrator directly.
//
// Once the last step has been stored the model is never modified again
// and Interpolate is safe for concurrent use.
type ContinuousOutput struct {
	steps   []StepInterpolator
	forward bool
	t0, tF  float64
	done    bool
}

func NewContinuousOutput() *ContinuousOutput {
	return &ContinuousOutput{}
}

func (c *ContinuousOutput) Init(t0 float64, y0 State, t float64) error {
	c.steps = c.steps[:0]
	c.forward = t >= t0
	c.t0 = t0
	c.tF = t0
	c.done = false
	return nil
}

// HandleStep stores the step. Interpolators handed to step handlers are
// immutable values in this package, so keeping them is safe.
func (c *ContinuousOutput) HandleStep(interp StepInterpolator, isLast bool) error {
	if len(c.steps) == 0 {
		c.t0 = interp.PreviousTime()
		c.forward = interp.IsForward()
	}
	c.steps = append(c.steps, interp)
	c.tF = interp.CurrentTime()
	if isLast {
		c.done = true
	}
	return nil
}

func (c *ContinuousOutput) InitialTime() float64 { return c.t0 }
func (c *ContinuousOutput) FinalTime() float64   { return c.tF }
func (c *ContinuousOutput) IsForward() bool      { return c.forward }
func (c *ContinuousOutput) Done() bool           { return c.done }
func (c *ContinuousOutput) Len() int             { return len(c.steps) }

// Interpolate returns the state at time t. Times outside the covered range
// are extrapolated from the first or last step.
func (c *ContinuousOutput) Interpolate(t float64) State {
	if len(c.steps) == 0 {
		return nil
	}
	return c.steps[c.locate(t)].InterpolatedState(t)
}

func (c *ContinuousOutput) locate(t float64) int {
	n := len(c.steps)
	// steps are stored in integration order, so CurrentTime is monotonic
	// in the run direction
	if c.forward {
		return min(sort.Search(n, func(i int) bool {
			return c.steps[i].CurrentTime() >= t
		}), n-1)
	}
	return min(sort.Search(n, func(i int) bool {
		return c.steps[i].CurrentTime() <= t
	}), n-1)
}

// Span returns the covered interval ordered as [min, max].
func (c *ContinuousOutput) Span() (float64, float64) {
	return math.Min(c.t0, c.tF), math.Max(c.t0, c.tF)
}
