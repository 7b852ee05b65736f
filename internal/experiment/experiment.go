package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/san-kum/orbitsim/internal/attitude"
	"github.com/san-kum/orbitsim/internal/config"
	"github.com/san-kum/orbitsim/internal/events"
	"github.com/san-kum/orbitsim/internal/forces"
	"github.com/san-kum/orbitsim/internal/metrics"
	"github.com/san-kum/orbitsim/internal/orbit"
	"github.com/san-kum/orbitsim/internal/propagation"
	"github.com/san-kum/orbitsim/internal/spacecraft"
)

// Names of the additional states every experiment maintains.
const (
	DeltaVState   = "delta_v"
	AltitudeState = "altitude"
)

var ErrNotSetup = errors.New("experiment not setup")

// Sample is a state of the output grid. Time is in seconds from the
// scenario epoch.
type Sample struct {
	Time  float64
	State spacecraft.State
}

type Result struct {
	Name         string
	Samples      []Sample
	Final        spacecraft.State
	Events       []events.Occurrence
	Metrics      map[string]float64
	Calls        int
	Elapsed      time.Duration
	StoppedEarly bool
}

type Experiment struct {
	cfg      *config.Config
	registry *Registry
	logger   *slog.Logger

	prop     *propagation.Propagator
	initial  spacecraft.State
	metrics  metrics.Set
	log      events.Log
	samples  []Sample
	observer func(Sample)
	ctx      context.Context
}

type Option func(*Experiment)

func WithLogger(l *slog.Logger) Option {
	return func(e *Experiment) { e.logger = l }
}

func WithRegistry(r *Registry) Option {
	return func(e *Experiment) { e.registry = r }
}

// WithObserver calls f with every sample as soon as it is recorded, from
// the goroutine running the experiment.
func WithObserver(f func(Sample)) Option {
	return func(e *Experiment) { e.observer = f }
}

func New(cfg *config.Config, opts ...Option) *Experiment {
	e := &Experiment{
		cfg:      cfg,
		registry: NewRegistry(),
		logger:   slog.Default(),
		metrics:  metrics.Defaults(),
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Experiment) Config() *config.Config { return e.cfg }

// Propagator returns the propagator built by Setup.
func (e *Experiment) Propagator() *propagation.Propagator { return e.prop }

// Setup builds the propagator described by the configuration.
func (e *Experiment) Setup() error {
	cfg := e.cfg
	if err := cfg.Validate(); err != nil {
		return err
	}
	integ, err := e.registry.GetIntegrator(cfg)
	if err != nil {
		return err
	}
	typ, err := orbit.ParseType(cfg.OrbitType)
	if err != nil {
		return err
	}
	angle, err := orbit.ParsePositionAngle(cfg.AngleType)
	if err != nil {
		return err
	}
	initial, err := cfg.InitialState()
	if err != nil {
		return err
	}

	var models []forces.Model
	var thrust *forces.ConstantThrust
	if cfg.Thrust.Enabled() {
		thrust = &forces.ConstantThrust{
			Start:    cfg.Epoch.Add(seconds(cfg.Thrust.Start)),
			Duration: seconds(cfg.Thrust.Duration),
			Thrust:   cfg.Thrust.Thrust,
			Isp:      cfg.Thrust.Isp,
		}
		models = append(models, thrust)
	}
	if cfg.MassLeak != 0 {
		models = append(models, forces.MassLeak{Rate: cfg.MassLeak})
	}

	mc := propagation.DefaultMapperConfig().
		WithMu(cfg.Mu).
		WithOrbitType(typ).
		WithAngleType(angle).
		WithAttitudeProvider(attitude.VelocityAligned{})
	p, err := propagation.New(integ, primaryFactory(models),
		propagation.WithLogger(e.logger),
		propagation.WithMapperConfig(mc),
	)
	if err != nil {
		return err
	}

	if err := p.AddAdditionalStateProvider(altitudeProvider{}); err != nil {
		return err
	}
	if err := p.AddAdditionalEquations(DeltaVState, 1, deltaV(models)); err != nil {
		return err
	}
	initial = initial.WithAdditional(DeltaVState, 0)

	e.log.Clear()
	if cfg.Events.StopAtApogee {
		p.AddEventDetector(e.log.Monitor(events.NewApsideDetector(
			events.WithName("apogee"),
			events.WithHandler(events.StopOnDecreasing),
		)))
	}
	if cfg.Events.StopAtNode {
		p.AddEventDetector(e.log.Monitor(events.NewNodeDetector(events.WithName("ascending_node"))))
	}
	if cfg.Events.HasManeuver() {
		p.AddEventDetector(e.log.Monitor(events.NewDateDetector(
			cfg.Epoch.Add(seconds(cfg.Events.ManeuverAt)),
			events.WithName("maneuver"),
			events.WithHandler(events.ResetOnEvent),
			events.WithReset(impulse(cfg.Events.ManeuverDV, cfg.Events.ManeuverDM)),
		)))
	}
	if thrust != nil {
		// the thrust switches on and off, restart the solver there
		for _, d := range thrust.Boundaries() {
			p.AddEventDetector(e.log.Monitor(events.NewDateDetector(d,
				events.WithName("thrust_boundary"),
				events.WithHandler(resetDerivatives),
			)))
		}
	}

	switch cfg.Mode {
	case "ephemeris":
		p.SetEphemerisMode()
	default:
		err = p.SetMasterModeFixedStep(seconds(cfg.OutputStep), propagation.FixedStepHandlerFunc(
			func(s spacecraft.State, _ bool) error {
				if err := e.ctx.Err(); err != nil {
					return err
				}
				e.record(s)
				return nil
			}))
		if err != nil {
			return err
		}
	}

	e.prop, e.initial = p, initial
	return nil
}

// Run propagates the scenario from its initial state.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	if err := e.begin(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	final, err := e.prop.Propagate(e.cfg.Target())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.cfg.Name, err)
	}
	return e.finish(final, time.Since(start))
}

// RunBatch runs set up experiments concurrently, at most limit at a time.
// Results are in the order of exps.
func RunBatch(ctx context.Context, exps []*Experiment, limit int) ([]*Result, error) {
	jobs := make([]propagation.Job, len(exps))
	for i, e := range exps {
		if err := e.begin(ctx); err != nil {
			return nil, err
		}
		jobs[i] = propagation.Job{Propagator: e.prop, Target: e.cfg.Target()}
	}

	start := time.Now()
	finals, err := propagation.Batch(ctx, jobs, limit)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	results := make([]*Result, len(exps))
	for i, e := range exps {
		r, err := e.finish(finals[i], elapsed)
		if err != nil {
			return nil, err
		}
		results[i] = r
	}
	return results, nil
}

func (e *Experiment) begin(ctx context.Context) error {
	if e.prop == nil {
		return ErrNotSetup
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	e.ctx = ctx
	e.samples = nil
	e.metrics.Reset()
	e.log.Clear()
	return e.prop.SetInitialState(e.initial)
}

func (e *Experiment) finish(final spacecraft.State, elapsed time.Duration) (*Result, error) {
	if e.cfg.Mode == "ephemeris" {
		if err := e.sampleEphemeris(); err != nil {
			return nil, err
		}
	}

	res := &Result{
		Name:         e.cfg.Name,
		Samples:      e.samples,
		Final:        final,
		Events:       e.log.Occurrences(),
		Metrics:      e.metrics.Values(),
		Calls:        e.prop.Calls(),
		Elapsed:      elapsed,
		StoppedEarly: !final.Date().Equal(e.cfg.Target()),
	}
	e.logger.Info("experiment finished",
		slog.String("name", res.Name),
		slog.Int("samples", len(res.Samples)),
		slog.Int("events", len(res.Events)),
		slog.Int("calls", res.Calls),
		slog.Duration("elapsed", elapsed),
	)
	return res, nil
}

// sampleEphemeris fills the output grid from the generated ephemeris, from
// the start of the run towards its end.
func (e *Experiment) sampleEphemeris() error {
	eph, err := e.prop.GeneratedEphemeris()
	if err != nil {
		return err
	}
	step := seconds(e.cfg.OutputStep)
	end := eph.MaxDate()
	if eph.MinDate().Before(eph.StartDate()) {
		step, end = -step, eph.MinDate()
	}
	inRange := func(d time.Time) bool {
		if step > 0 {
			return !d.After(end)
		}
		return !d.Before(end)
	}

	var last time.Time
	for d := eph.StartDate(); inRange(d); d = d.Add(step) {
		if err := e.ctx.Err(); err != nil {
			return err
		}
		s, err := eph.Propagate(d)
		if err != nil {
			return err
		}
		e.record(s)
		last = d
	}
	if !last.Equal(end) {
		s, err := eph.Propagate(end)
		if err != nil {
			return err
		}
		e.record(s)
	}
	return nil
}

func (e *Experiment) record(s spacecraft.State) {
	sample := Sample{
		Time:  s.Date().Sub(e.cfg.Epoch).Seconds(),
		State: s,
	}
	e.samples = append(e.samples, sample)
	e.metrics.Observe(s)
	if e.observer != nil {
		e.observer(sample)
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
