package experiment

import (
	"math"

	"github.com/san-kum/orbitsim/internal/events"
	"github.com/san-kum/orbitsim/internal/forces"
	"github.com/san-kum/orbitsim/internal/orbit"
	"github.com/san-kum/orbitsim/internal/propagation"
	"github.com/san-kum/orbitsim/internal/spacecraft"
)

func primaryFactory(models []forces.Model) propagation.PrimaryFactory {
	return func(cfg propagation.MapperConfig) (propagation.PrimaryEquations, error) {
		eq, err := forces.NewEquations(cfg.OrbitType, cfg.AngleType, models...)
		if err != nil {
			return nil, err
		}
		return eq, nil
	}
}

// deltaV integrates the magnitude of the non-Keplerian acceleration.
func deltaV(models []forces.Model) propagation.AdditionalEquations {
	return propagation.AdditionalEquationsFunc(func(s spacecraft.State, _ []float64) (propagation.Derivatives, error) {
		var total orbit.Vector3
		for _, m := range models {
			acc, _, err := m.Contribution(s)
			if err != nil {
				return propagation.Derivatives{}, err
			}
			total = total.Add(acc)
		}
		return propagation.Derivatives{Own: []float64{total.Norm()}}, nil
	})
}

type altitudeProvider struct{}

func (altitudeProvider) Name() string { return AltitudeState }

func (altitudeProvider) AdditionalState(s spacecraft.State) ([]float64, error) {
	return []float64{s.Orbit().Altitude()}, nil
}

// impulse applies dv along the velocity and removes dm from the mass.
func impulse(dv, dm float64) events.ResetFunc {
	return func(s spacecraft.State) (spacecraft.State, error) {
		o := s.Orbit()
		vel := o.Velocity().Add(o.Velocity().Normalize().Scale(dv))
		burned, err := orbit.NewCartesian(o.Position(), vel, o.Frame(), o.Date(), o.Mu())
		if err != nil {
			return spacecraft.State{}, err
		}
		out := s.WithOrbit(burned).WithMass(s.Mass() - dm)
		if acc, ok := out.Additional(DeltaVState); ok {
			out = out.WithAdditional(DeltaVState, acc[0]+math.Abs(dv))
		}
		return out, nil
	}
}

func resetDerivatives(spacecraft.State, bool) (events.Action, error) {
	return events.ResetDerivatives, nil
}
