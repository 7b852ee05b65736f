package integrators

import (
	"math"

	"github.com/san-kum/orbitsim/internal/dynamo"
)

type derivFunc func(t float64, y dynamo.State) (dynamo.State, error)

// trial is the outcome of one step attempt.
type trial struct {
	y     dynamo.State
	yDot  dynamo.State
	ratio float64
	next  float64
	poly  polynomial
}

// stepper is the method specific part of an integrator: how to attempt a
// step and how to choose step sizes.
type stepper interface {
	initialStep(f derivFunc, t0 float64, y0, yDot0 dynamo.State, span float64) (float64, error)
	attempt(f derivFunc, t float64, y, yDot dynamo.State, h float64) (trial, error)
	minStep() float64
}

// base implements the integration loop shared by every method, including
// event location and step handler dispatch.
type base struct {
	name     string
	stepper  stepper
	events   []*eventState
	handlers []dynamo.StepHandler

	// MaxEvaluations bounds derivative evaluations per run, 0 means unbounded.
	MaxEvaluations int
	evaluations    int
	steps          int
}

func (b *base) Name() string { return b.name }

func (b *base) AddEventHandler(h dynamo.EventHandler, cfg dynamo.EventConfig) {
	b.events = append(b.events, newEventState(h, cfg))
}

func (b *base) ClearEventHandlers() { b.events = nil }

func (b *base) AddStepHandler(h dynamo.StepHandler) {
	b.handlers = append(b.handlers, h)
}

func (b *base) ClearStepHandlers() { b.handlers = nil }

// Evaluations returns the derivative evaluations of the last run.
func (b *base) Evaluations() int { return b.evaluations }

func (b *base) failure(t float64, err error) error {
	return &dynamo.IntegrationError{Step: b.steps, Time: t, Wrapped: err}
}

func (b *base) Integrate(ode dynamo.ODE, t0 float64, y0 dynamo.State, tEnd float64) (float64, dynamo.State, error) {
	n := ode.Dimension()
	if len(y0) != n {
		return t0, nil, b.failure(t0, dynamo.ErrDimensionMismatch)
	}
	b.evaluations = 0
	b.steps = 0

	derive := func(t float64, y dynamo.State) (dynamo.State, error) {
		if b.MaxEvaluations > 0 && b.evaluations >= b.MaxEvaluations {
			return nil, b.failure(t, dynamo.ErrTooManyEvaluations)
		}
		b.evaluations++
		yDot, err := ode.Derive(t, y)
		if err != nil {
			return nil, dynamo.WrapCallback(t, err)
		}
		if len(yDot) != n {
			return nil, b.failure(t, dynamo.ErrDimensionMismatch)
		}
		return yDot, nil
	}

	y := y0.Clone()
	for _, ev := range b.events {
		if err := ev.init(t0, y, tEnd); err != nil {
			return t0, nil, err
		}
	}
	for _, sh := range b.handlers {
		if err := sh.Init(t0, y.Clone(), tEnd); err != nil {
			return t0, nil, dynamo.WrapCallback(t0, err)
		}
	}
	if t0 == tEnd {
		return t0, y, nil
	}

	yDot, err := derive(t0, y)
	if err != nil {
		return t0, nil, err
	}

	forward := tEnd > t0
	hAbs, err := b.stepper.initialStep(derive, t0, y, yDot, tEnd-t0)
	if err != nil {
		return t0, nil, err
	}
	t := t0
	forced := false

	for {
		h := math.Copysign(hAbs, tEnd-t)
		remaining := tEnd - t
		last := false
		if math.Abs(h) >= math.Abs(remaining)*(1-1e-12) {
			h = remaining
			last = true
		}

		tr, err := b.stepper.attempt(derive, t, y, yDot, h)
		if err != nil {
			return t, nil, err
		}
		if tr.ratio > 1 && !forced {
			hEv, force, err := b.clampToEvent(t, h, y, tr)
			if err != nil {
				return t, nil, err
			}
			if hEv != 0 {
				hAbs, forced = math.Abs(hEv), force
				continue
			}
			if math.Abs(h) <= b.stepper.minStep() {
				return t, nil, b.failure(t, dynamo.ErrStepTooSmall)
			}
			hAbs = math.Max(tr.next, b.stepper.minStep())
			continue
		}
		forced = false
		if !tr.y.IsValid() {
			return t, nil, b.failure(t+h, dynamo.ErrInvalidState)
		}
		b.steps++

		t1 := t + h
		if last {
			t1 = tEnd
		}
		interp := newStepInterpolator(t, t1, y, tr.y, tr.poly)

		out, err := b.acceptStep(interp, forward, last)
		if err != nil {
			return t, nil, err
		}

		switch out.kind {
		case outcomeStop:
			return out.t, out.y, nil
		case outcomeReset:
			t, y = out.t, out.y
			if yDot, err = derive(t, y); err != nil {
				return t, nil, err
			}
			hAbs = tr.next
		default:
			if last {
				return tEnd, tr.y, nil
			}
			t, y, yDot = t1, tr.y, tr.yDot
			hAbs = tr.next
		}
	}
}

// clampToEvent shortens a rejected step that contains an event root, since
// the derivatives may switch there. The step first ends short of the root.
// Once the root is within three thresholds of t the step ends on the root
// and is accepted whatever its error estimate, which moves the switch by
// less than the event threshold. A step starting on an event just handled
// is accepted the same way over two thresholds. A zero step means no
// event was found.
func (b *base) clampToEvent(t, h float64, y dynamo.State, tr trial) (float64, bool, error) {
	if len(b.events) == 0 || tr.poly == nil || !tr.y.IsValid() {
		return 0, false, nil
	}
	for _, ev := range b.events {
		if !math.IsNaN(ev.lastEvent) && math.Abs(t-ev.lastEvent) <= 4*ev.cfg.Threshold {
			return math.Copysign(math.Min(2*ev.cfg.Threshold, math.Abs(h)), h), true, nil
		}
	}
	interp := newStepInterpolator(t, t+h, y, tr.y, tr.poly)

	var (
		found     bool
		root      float64
		threshold float64
	)
	for _, ev := range b.events {
		sc, err := ev.find(interp, t+h)
		if err != nil {
			return 0, false, err
		}
		if sc.found && (!found || math.Abs(sc.root-t) < math.Abs(root-t)) {
			found, root, threshold = true, sc.root, ev.cfg.Threshold
		}
	}
	if !found {
		return 0, false, nil
	}

	dist := math.Abs(root - t)
	switch {
	case dist > 3*threshold:
		return math.Copysign(dist-2*threshold, h), false, nil
	case dist > 0:
		return root - t, true, nil
	default:
		return 0, false, nil
	}
}

type outcomeKind int

const (
	outcomeNone outcomeKind = iota
	outcomeStop
	outcomeReset
)

type stepOutcome struct {
	kind outcomeKind
	t    float64
	y    dynamo.State
}

// acceptStep locates events inside an accepted step, in chronological
// order, and hands the (possibly split) step to the step handlers.
func (b *base) acceptStep(interp *stepInterpolator, forward, last bool) (stepOutcome, error) {
	ws := interp.prev
	for {
		var (
			first   *eventState
			firstSc scan
			ends    = make([]float64, len(b.events))
		)
		for i, ev := range b.events {
			sc, err := ev.find(interp, interp.cur)
			if err != nil {
				return stepOutcome{}, err
			}
			ends[i] = sc.gEnd
			if !sc.found {
				continue
			}
			if first == nil || (forward && sc.root < firstSc.root) || (!forward && sc.root > firstSc.root) {
				first, firstSc = ev, sc
			}
		}

		if first == nil {
			for i, ev := range b.events {
				ev.t0, ev.g0, ev.g0Positive = interp.cur, ends[i], ends[i] >= 0
			}
			if err := b.handleStep(interp.restrict(ws, interp.cur), last); err != nil {
				return stepOutcome{}, err
			}
			return stepOutcome{kind: outcomeNone}, nil
		}

		tEv := firstSc.root
		yEv := interp.InterpolatedState(tEv)
		action, err := first.handler.EventOccurred(tEv, yEv.Clone(), firstSc.increasing)
		if err != nil {
			return stepOutcome{}, dynamo.WrapCallback(tEv, err)
		}

		for _, ev := range b.events {
			if ev == first {
				err = ev.occurred(tEv, yEv, firstSc.increasing)
			} else {
				err = ev.reset(tEv, yEv)
			}
			if err != nil {
				return stepOutcome{}, err
			}
		}

		stop := action == dynamo.Stop
		if err := b.handleStep(interp.restrict(ws, tEv), stop); err != nil {
			return stepOutcome{}, err
		}

		switch action {
		case dynamo.Stop:
			return stepOutcome{kind: outcomeStop, t: tEv, y: yEv}, nil
		case dynamo.ResetState:
			y := yEv.Clone()
			if err := first.handler.ResetState(tEv, y); err != nil {
				return stepOutcome{}, dynamo.WrapCallback(tEv, err)
			}
			if len(y) != len(yEv) {
				return stepOutcome{}, b.failure(tEv, dynamo.ErrDimensionMismatch)
			}
			for _, ev := range b.events {
				if ev == first {
					g0Positive := ev.g0Positive
					if err := ev.reset(tEv, y); err != nil {
						return stepOutcome{}, err
					}
					ev.g0Positive = g0Positive
					continue
				}
				if err := ev.reset(tEv, y); err != nil {
					return stepOutcome{}, err
				}
			}
			return stepOutcome{kind: outcomeReset, t: tEv, y: y}, nil
		case dynamo.ResetDerivatives:
			return stepOutcome{kind: outcomeReset, t: tEv, y: yEv}, nil
		}

		ws = tEv
	}
}

func (b *base) handleStep(interp *stepInterpolator, isLast bool) error {
	for _, sh := range b.handlers {
		if err := sh.HandleStep(interp, isLast); err != nil {
			return dynamo.WrapCallback(interp.cur, err)
		}
	}
	return nil
}
