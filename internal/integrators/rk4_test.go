package integrators

import (
	"math"
	"testing"

	"github.com/san-kum/orbitsim/internal/dynamo"
)

type harmonicOscillator struct {
	calls int
}

func (h *harmonicOscillator) Dimension() int { return 2 }

func (h *harmonicOscillator) Derive(t float64, x dynamo.State) (dynamo.State, error) {
	h.calls++
	return dynamo.State{x[1], -x[0]}, nil
}

func (h *harmonicOscillator) Energy(x dynamo.State) float64 {
	return 0.5 * (x[0]*x[0] + x[1]*x[1])
}

func TestRK4Accuracy(t *testing.T) {
	integ := NewRK4(0.01)

	tEnd, x, err := integ.Integrate(&harmonicOscillator{}, 0, dynamo.State{1.0, 0.0}, 1.0)
	if err != nil {
		t.Fatalf("integrate failed: %v", err)
	}
	if tEnd != 1.0 {
		t.Errorf("expected final time 1.0, got %v", tEnd)
	}

	if math.Abs(x[0]-math.Cos(1)) > 1e-8 {
		t.Errorf("position error too large: got %.10f, expected %.10f", x[0], math.Cos(1))
	}
	if math.Abs(x[1]+math.Sin(1)) > 1e-8 {
		t.Errorf("velocity error too large: got %.10f, expected %.10f", x[1], -math.Sin(1))
	}
}

func TestRK4Backward(t *testing.T) {
	integ := NewRK4(0.01)

	tEnd, x, err := integ.Integrate(&harmonicOscillator{}, 1.0, dynamo.State{math.Cos(1), -math.Sin(1)}, 0)
	if err != nil {
		t.Fatalf("integrate failed: %v", err)
	}
	if tEnd != 0 {
		t.Errorf("expected final time 0, got %v", tEnd)
	}
	if math.Abs(x[0]-1) > 1e-8 || math.Abs(x[1]) > 1e-8 {
		t.Errorf("backward integration did not return to start: %v", x)
	}
}

func TestRK4ZeroStep(t *testing.T) {
	integ := NewRK4(0)
	if _, _, err := integ.Integrate(&harmonicOscillator{}, 0, dynamo.State{1, 0}, 1); err == nil {
		t.Error("expected error for zero step")
	}
}

func TestEulerConverges(t *testing.T) {
	coarse := NewEuler(0.01)
	fine := NewEuler(0.001)

	_, xc, err := coarse.Integrate(&harmonicOscillator{}, 0, dynamo.State{1, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	_, xf, err := fine.Integrate(&harmonicOscillator{}, 0, dynamo.State{1, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}

	ec := math.Abs(xc[0] - math.Cos(1))
	ef := math.Abs(xf[0] - math.Cos(1))
	if ef >= ec {
		t.Errorf("smaller step should be more accurate: coarse %e, fine %e", ec, ef)
	}
}
