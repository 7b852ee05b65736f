package integrators

import (
	"math"

	"github.com/san-kum/orbitsim/internal/dynamo"
)

// eventState tracks one switching function across steps.
type eventState struct {
	handler dynamo.EventHandler
	cfg     dynamo.EventConfig

	t0         float64
	g0         float64
	g0Positive bool
	lastEvent  float64
}

func newEventState(h dynamo.EventHandler, cfg dynamo.EventConfig) *eventState {
	def := dynamo.DefaultEventConfig()
	if cfg.MaxCheckInterval <= 0 {
		cfg.MaxCheckInterval = def.MaxCheckInterval
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	return &eventState{handler: h, cfg: cfg, lastEvent: math.NaN()}
}

func (e *eventState) init(t0 float64, y0 dynamo.State, t float64) error {
	if err := e.handler.Init(t0, y0.Clone(), t); err != nil {
		return dynamo.WrapCallback(t0, err)
	}
	g, err := e.handler.G(t0, y0.Clone())
	if err != nil {
		return dynamo.WrapCallback(t0, err)
	}
	e.t0, e.g0, e.g0Positive = t0, g, g >= 0
	e.lastEvent = math.NaN()
	return nil
}

// reset moves the reference point of the switching function to t.
func (e *eventState) reset(t float64, y dynamo.State) error {
	g, err := e.handler.G(t, y.Clone())
	if err != nil {
		return dynamo.WrapCallback(t, err)
	}
	e.t0, e.g0, e.g0Positive = t, g, g >= 0
	return nil
}

// occurred records an event at t; the sign after the root is forced so
// the same root is not detected again.
func (e *eventState) occurred(t float64, y dynamo.State, increasing bool) error {
	if err := e.reset(t, y); err != nil {
		return err
	}
	e.g0Positive = increasing
	e.lastEvent = t
	return nil
}

type scan struct {
	found      bool
	root       float64
	increasing bool
	gEnd       float64
}

// find looks for the first sign change of g inside (e.t0, end] using the
// interpolator for intermediate states.
func (e *eventState) find(interp dynamo.StepInterpolator, end float64) (scan, error) {
	g := func(t float64) (float64, error) {
		v, err := e.handler.G(t, interp.InterpolatedState(t))
		if err != nil {
			return 0, dynamo.WrapCallback(t, err)
		}
		return v, nil
	}

	span := end - e.t0
	n := max(1, int(math.Ceil(math.Abs(span)/e.cfg.MaxCheckInterval)))
	hSub := span / float64(n)

	ta, ga, posA := e.t0, e.g0, e.g0Positive
	for i := 1; i <= n; i++ {
		tb := e.t0 + float64(i)*hSub
		if i == n {
			tb = end
		}
		gb, err := g(tb)
		if err != nil {
			return scan{}, err
		}

		if posA != (gb >= 0) && ga*gb <= 0 {
			root, err := solveBracketed(g, ta, tb, ga, gb, e.cfg.Threshold, e.cfg.MaxIterations)
			if err != nil {
				return scan{}, err
			}
			// a reset leaves the state within the convergence threshold of
			// the root it just handled, which must not fire again
			if math.IsNaN(e.lastEvent) || math.Abs(root-e.lastEvent) > 4*e.cfg.Threshold {
				return scan{found: true, root: root, increasing: gb >= ga}, nil
			}
		}
		ta, ga, posA = tb, gb, gb >= 0
	}
	return scan{gEnd: ga}, nil
}

// solveBracketed is Brent's method on [a, b] with f(a), f(b) of opposite
// signs. It returns the end of the final bracket lying on the same side
// of the root as b, so the switching function already has its new sign
// there.
func solveBracketed(f func(float64) (float64, error), a, b, fa, fb, tol float64, maxIter int) (float64, error) {
	if fb == 0 {
		return b, nil
	}
	if fa == 0 {
		return a, nil
	}
	wantPositive := fb > 0

	c, fc := a, fa
	d := b - a
	e := d
	for iter := 0; iter < maxIter; iter++ {
		if (fb > 0) == (fc > 0) {
			c, fc = a, fa
			d = b - a
			e = d
		}
		if math.Abs(fc) < math.Abs(fb) {
			a, b, c = b, c, b
			fa, fb, fc = fb, fc, fb
		}

		tol1 := 2*1e-16*math.Abs(b) + 0.5*tol
		xm := 0.5 * (c - b)
		if math.Abs(xm) <= tol1 || fb == 0 {
			if fb == 0 || (fb > 0) == wantPositive {
				return b, nil
			}
			return c, nil
		}

		if math.Abs(e) >= tol1 && math.Abs(fa) > math.Abs(fb) {
			var p, q float64
			s := fb / fa
			if a == c {
				p = 2 * xm * s
				q = 1 - s
			} else {
				q = fa / fc
				r := fb / fc
				p = s * (2*xm*q*(q-r) - (b-a)*(r-1))
				q = (q - 1) * (r - 1) * (s - 1)
			}
			if p > 0 {
				q = -q
			}
			p = math.Abs(p)
			if 2*p < math.Min(3*xm*q-math.Abs(tol1*q), math.Abs(e*q)) {
				e = d
				d = p / q
			} else {
				d = xm
				e = d
			}
		} else {
			d = xm
			e = d
		}

		a, fa = b, fb
		if math.Abs(d) > tol1 {
			b += d
		} else {
			b += math.Copysign(tol1, xm)
		}
		var err error
		if fb, err = f(b); err != nil {
			return 0, err
		}
	}
	return 0, dynamo.ErrTooManyIterations
}
