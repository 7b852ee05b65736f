package integrators

import "github.com/san-kum/orbitsim/internal/dynamo"

// polynomial evaluates the dense output of one step at the normalized
// abscissa theta in [0, 1].
type polynomial interface {
	at(theta float64) dynamo.State
}

// stepInterpolator is an immutable view over one accepted step. The visible
// window [prev, cur] may be narrower than the step itself when an event
// splits it.
type stepInterpolator struct {
	t0, t1    float64
	prev, cur float64
	y0, y1    dynamo.State
	poly      polynomial
}

func newStepInterpolator(t0, t1 float64, y0, y1 dynamo.State, poly polynomial) *stepInterpolator {
	return &stepInterpolator{
		t0: t0, t1: t1,
		prev: t0, cur: t1,
		y0: y0, y1: y1,
		poly: poly,
	}
}

func (s *stepInterpolator) PreviousTime() float64 { return s.prev }
func (s *stepInterpolator) CurrentTime() float64  { return s.cur }
func (s *stepInterpolator) IsForward() bool       { return s.t1 >= s.t0 }

func (s *stepInterpolator) InterpolatedState(t float64) dynamo.State {
	switch t {
	case s.t0:
		return s.y0.Clone()
	case s.t1:
		return s.y1.Clone()
	}
	return s.poly.at((t - s.t0) / (s.t1 - s.t0))
}

func (s *stepInterpolator) restrict(prev, cur float64) *stepInterpolator {
	c := *s
	c.prev, c.cur = prev, cur
	return &c
}

// hermite is the cubic Hermite polynomial built from both end states and
// derivatives, used by the fixed step methods.
type hermite struct {
	h              float64
	y0, y1, f0, f1 dynamo.State
}

func (p *hermite) at(theta float64) dynamo.State {
	t2 := theta * theta
	t3 := t2 * theta
	h00 := 2*t3 - 3*t2 + 1
	h10 := t3 - 2*t2 + theta
	h01 := -2*t3 + 3*t2
	h11 := t3 - t2

	out := make(dynamo.State, len(p.y0))
	for i := range out {
		out[i] = h00*p.y0[i] + h10*p.h*p.f0[i] + h01*p.y1[i] + h11*p.h*p.f1[i]
	}
	return out
}

// dopri is the fourth order continuous extension of Dormand-Prince 5(4).
type dopri struct {
	y0, ydiff, bspl, r4, r5 dynamo.State
}

func (p *dopri) at(theta float64) dynamo.State {
	theta1 := 1 - theta
	out := make(dynamo.State, len(p.y0))
	for i := range out {
		out[i] = p.y0[i] + theta*(p.ydiff[i]+theta1*(p.bspl[i]+theta*(p.r4[i]+theta1*p.r5[i])))
	}
	return out
}
