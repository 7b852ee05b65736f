package optim

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/san-kum/orbitsim/internal/config"
	"github.com/san-kum/orbitsim/internal/experiment"
)

// Setter applies one swept parameter to a scenario.
type Setter func(cfg *config.Config, v float64)

// Setters are the parameters a grid search can sweep.
var Setters = map[string]Setter{
	"step":        func(c *config.Config, v float64) { c.Step = v },
	"abs_tol":     func(c *config.Config, v float64) { c.Tolerances.AbsTol = v },
	"rel_tol":     func(c *config.Config, v float64) { c.Tolerances.RelTol = v },
	"max_step":    func(c *config.Config, v float64) { c.Tolerances.MaxStep = v },
	"maneuver_at": func(c *config.Config, v float64) { c.Events.ManeuverAt = v },
	"maneuver_dv": func(c *config.Config, v float64) { c.Events.ManeuverDV = v },
	"thrust":      func(c *config.Config, v float64) { c.Thrust.Thrust = v },
	"mass":        func(c *config.Config, v float64) { c.Mass = v },
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	limit      int
	options    []experiment.Option
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("%d parameters but %d ranges", len(params), len(ranges))
	}
	for _, name := range params {
		if _, ok := Setters[name]; !ok {
			return nil, fmt.Errorf("unknown parameter: %s", name)
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// WithLimit bounds the number of concurrent runs.
func (g *GridSearch) WithLimit(n int) *GridSearch {
	g.limit = n
	return g
}

func (g *GridSearch) WithOptions(opts ...experiment.Option) *GridSearch {
	g.options = opts
	return g
}

// Point is one evaluated parameter combination.
type Point struct {
	Params map[string]float64
	Value  float64
}

// Search runs base once per combination of the parameter ranges and
// returns the combination with the smallest value of metricName, with
// every evaluated point in grid order.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, metricName string) (Point, []Point, error) {
	var combos []map[string]float64
	g.expand(0, map[string]float64{}, &combos)

	exps := make([]*experiment.Experiment, len(combos))
	for i, params := range combos {
		cfg := *base
		cfg.Name = fmt.Sprintf("%s#%d", base.Name, i)
		for _, name := range g.paramNames {
			Setters[name](&cfg, params[name])
		}
		exps[i] = experiment.New(&cfg, g.options...)
		if err := exps[i].Setup(); err != nil {
			return Point{}, nil, fmt.Errorf("%v: %w", params, err)
		}
	}

	results, err := experiment.RunBatch(ctx, exps, g.limit)
	if err != nil {
		return Point{}, nil, err
	}

	best := Point{Value: math.Inf(1)}
	points := make([]Point, len(results))
	for i, res := range results {
		val, ok := res.Metrics[metricName]
		if !ok {
			return Point{}, nil, fmt.Errorf("unknown metric: %s", metricName)
		}
		points[i] = Point{Params: combos[i], Value: val}
		if val < best.Value {
			best = points[i]
		}
	}
	return best, points, nil
}

func (g *GridSearch) expand(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		*out = append(*out, maps.Clone(current))
		return
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		current[paramName] = val
		g.expand(depth+1, current, out)
	}
	delete(current, paramName)
}

// Parameters lists the names accepted by NewGridSearch.
func Parameters() []string {
	return slices.Sorted(maps.Keys(Setters))
}
