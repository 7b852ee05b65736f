package experiment

import (
	"fmt"
	"slices"

	"github.com/san-kum/orbitsim/internal/config"
	"github.com/san-kum/orbitsim/internal/dynamo"
	"github.com/san-kum/orbitsim/internal/integrators"
)

type Registry struct {
	integrators map[string]func(cfg *config.Config) dynamo.Integrator
}

func NewRegistry() *Registry {
	r := &Registry{
		integrators: make(map[string]func(*config.Config) dynamo.Integrator),
	}

	r.integrators["dopri5"] = func(cfg *config.Config) dynamo.Integrator {
		tol := integrators.DefaultTolerances()
		if t := cfg.Tolerances; t.AbsTol > 0 && t.RelTol > 0 {
			tol.AbsTol, tol.RelTol = t.AbsTol, t.RelTol
		}
		if cfg.Tolerances.MinStep > 0 {
			tol.MinStep = cfg.Tolerances.MinStep
		}
		if cfg.Tolerances.MaxStep > 0 {
			tol.MaxStep = cfg.Tolerances.MaxStep
		}
		if cfg.Step > 0 {
			tol.InitialStep = cfg.Step
		}
		return integrators.NewDormandPrince(tol)
	}
	r.integrators["rk4"] = func(cfg *config.Config) dynamo.Integrator { return integrators.NewRK4(cfg.Step) }
	r.integrators["euler"] = func(cfg *config.Config) dynamo.Integrator { return integrators.NewEuler(cfg.Step) }

	return r
}

func (r *Registry) GetIntegrator(cfg *config.Config) (dynamo.Integrator, error) {
	fn, ok := r.integrators[cfg.Integrator]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", cfg.Integrator)
	}
	return fn(cfg), nil
}

func (r *Registry) ListIntegrators() []string {
	names := make([]string, 0, len(r.integrators))
	for name := range r.integrators {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
