package propagation

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/san-kum/orbitsim/internal/attitude"
	"github.com/san-kum/orbitsim/internal/dynamo"
	"github.com/san-kum/orbitsim/internal/events"
	"github.com/san-kum/orbitsim/internal/orbit"
	"github.com/san-kum/orbitsim/internal/spacecraft"
)

// Hooks are called around the solver call of every run that reaches
// integration. A hook error aborts the run.
type Hooks struct {
	BeforeIntegration func(initial spacecraft.State, target time.Time) error
	AfterIntegration  func() error
}

// Propagator integrates a spacecraft state with a numeric solver.
//
// A Propagator is not safe for concurrent use. Distinct propagators may
// run concurrently when their collaborators allow it.
type Propagator struct {
	integrator dynamo.Integrator
	newMapper  MapperFactory
	newPrimary PrimaryFactory
	hooks      Hooks
	logger     *slog.Logger

	mapper    StateMapper
	initial   spacecraft.State
	startDate time.Time

	equations []*equationSet
	providers []AdditionalStateProvider
	detectors []events.Detector

	mode    Mode
	handler modeHandler
	calls   int
}

type Option func(*Propagator)

func WithLogger(l *slog.Logger) Option {
	return func(p *Propagator) { p.logger = l }
}

func WithMapperFactory(f MapperFactory) Option {
	return func(p *Propagator) { p.newMapper = f }
}

func WithHooks(h Hooks) Option {
	return func(p *Propagator) { p.hooks = h }
}

// WithMapperConfig replaces the default mapper configuration.
func WithMapperConfig(cfg MapperConfig) Option {
	return func(p *Propagator) { p.mapper = OrbitMapper{cfg: cfg} }
}

// New returns a propagator in slave mode using integrator and the primary
// equations built by primary.
func New(integrator dynamo.Integrator, primary PrimaryFactory, opts ...Option) (*Propagator, error) {
	if integrator == nil || primary == nil {
		return nil, errors.New("propagation: integrator and primary factory are required")
	}
	p := &Propagator{
		integrator: integrator,
		newMapper:  NewMapper,
		newPrimary: primary,
		logger:     slog.Default(),
		mapper:     OrbitMapper{cfg: DefaultMapperConfig()},
		mode:       SlaveMode{},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	m, err := p.newMapper(p.mapper.Config())
	if err != nil {
		return nil, err
	}
	p.mapper = m
	p.integrator.ClearStepHandlers()
	return p, nil
}

func (p *Propagator) Integrator() dynamo.Integrator { return p.integrator }
func (p *Propagator) Mapper() StateMapper           { return p.mapper }
func (p *Propagator) Mode() Mode                    { return p.mode }

// Calls returns the number of primary derivative evaluations of the
// current or last run.
func (p *Propagator) Calls() int { return p.calls }

func (p *Propagator) InitialState() (spacecraft.State, bool) {
	return p.initial, !p.initial.IsZero()
}

// SetInitialState replaces the state runs start from and clears the start
// date.
func (p *Propagator) SetInitialState(s spacecraft.State) error {
	if s.IsZero() {
		return ErrMissingInitialState
	}
	p.initial = s
	p.startDate = time.Time{}
	return nil
}

// rebuild replaces the mapper. On failure the current mapper stays.
func (p *Propagator) rebuild(cfg MapperConfig) error {
	m, err := p.newMapper(cfg)
	if err != nil {
		return err
	}
	p.mapper = m
	return nil
}

func (p *Propagator) SetMu(mu float64) error {
	return p.rebuild(p.mapper.Config().WithMu(mu))
}

func (p *Propagator) Mu() float64 { return p.mapper.Config().Mu }

func (p *Propagator) SetOrbitType(t orbit.Type) error {
	return p.rebuild(p.mapper.Config().WithOrbitType(t))
}

func (p *Propagator) SetPositionAngle(a orbit.PositionAngle) error {
	return p.rebuild(p.mapper.Config().WithAngleType(a))
}

func (p *Propagator) SetAttitudeProvider(ap attitude.Provider) error {
	return p.rebuild(p.mapper.Config().WithAttitudeProvider(ap))
}

func (p *Propagator) SetFrame(f orbit.Frame) error {
	return p.rebuild(p.mapper.Config().WithFrame(f))
}

func (p *Propagator) AddEventDetector(d events.Detector) {
	p.detectors = append(p.detectors, d)
}

func (p *Propagator) EventDetectors() []events.Detector {
	return slices.Clone(p.detectors)
}

func (p *Propagator) ClearEventDetectors() {
	p.detectors = nil
}

// SetMode installs m, discarding the previous mode and whatever it had
// accumulated.
func (p *Propagator) SetMode(m Mode) {
	p.integrator.ClearStepHandlers()
	p.handler = nil
	switch v := m.(type) {
	case nil:
		m = SlaveMode{}
	case SlaveMode:
	case MasterMode:
		if v.Handler == nil {
			m = SlaveMode{}
			break
		}
		p.handler = &masterHandler{handler: v.Handler}
	case EphemerisMode:
		p.handler = &ephemerisHandler{}
	default:
		panic(fmt.Sprintf("propagation: unknown mode %T", m))
	}
	if p.handler != nil {
		p.integrator.AddStepHandler(p.handler)
	}
	p.mode = m
}

func (p *Propagator) SetSlaveMode() { p.SetMode(SlaveMode{}) }

func (p *Propagator) SetMasterMode(h StepHandler) { p.SetMode(MasterMode{Handler: h}) }

func (p *Propagator) SetEphemerisMode() { p.SetMode(EphemerisMode{}) }

// SetMasterModeFixedStep calls h every step from the start of each run
// and at its end.
func (p *Propagator) SetMasterModeFixedStep(step time.Duration, h FixedStepHandler) error {
	n, err := newStepNormalizer(step, h)
	if err != nil {
		return err
	}
	p.SetMode(MasterMode{Handler: n})
	return nil
}

// GeneratedEphemeris returns the trajectory of the last run in ephemeris
// mode.
func (p *Propagator) GeneratedEphemeris() (*Ephemeris, error) {
	e, ok := p.handler.(*ephemerisHandler)
	if !ok {
		return nil, ErrNotEphemerisMode
	}
	if e.ephemeris == nil {
		return nil, ErrNoEphemeris
	}
	return e.ephemeris, nil
}

// Propagate runs from the start date, or the initial state date when no
// start date is set, to target.
func (p *Propagator) Propagate(target time.Time) (spacecraft.State, error) {
	if p.startDate.IsZero() {
		if p.initial.IsZero() {
			return spacecraft.State{}, ErrMissingInitialState
		}
		p.startDate = p.initial.Date()
	}
	return p.PropagateBetween(p.startDate, target)
}

// PropagateBetween first moves the initial state to start without events
// or step handling, when needed, then runs from start to end.
func (p *Propagator) PropagateBetween(start, end time.Time) (spacecraft.State, error) {
	if p.initial.IsZero() {
		return spacecraft.State{}, ErrMissingInitialState
	}
	if !start.Equal(p.initial.Date()) {
		p.logger.Debug("pre-roll to start date",
			slog.Time("from", p.initial.Date()),
			slog.Time("start", start),
		)
		if _, err := p.propagate(start, false); err != nil {
			return spacecraft.State{}, err
		}
	}
	return p.propagate(end, true)
}

// propagate is a single run from the initial state to end. active
// enables events and step handling.
func (p *Propagator) propagate(end time.Time, active bool) (spacecraft.State, error) {
	initial := p.initial
	if initial.Date().Equal(end) {
		return initial, nil
	}

	cfg := p.mapper.Config().
		WithReferenceDate(initial.Date()).
		WithFrame(initial.Frame())
	if math.IsNaN(cfg.Mu) {
		cfg = cfg.WithMu(initial.Mu())
	}
	if err := p.rebuild(cfg); err != nil {
		return spacecraft.State{}, err
	}
	mapper := p.mapper

	if !(initial.Mass() > 0) {
		return spacecraft.State{}, &MassError{Mass: initial.Mass()}
	}

	primary, err := p.newPrimary(mapper.Config())
	if err != nil {
		return spacecraft.State{}, err
	}

	r := &run{
		mapper:    mapper,
		layout:    newLayout(p.equations),
		sets:      slices.Clone(p.equations),
		providers: slices.Clone(p.providers),
		primary:   primary,
		calls:     &p.calls,
	}
	r.carried = p.unmanaged(initial)

	y0, err := r.toVector(initial)
	if err != nil {
		return spacecraft.State{}, err
	}

	p.integrator.ClearEventHandlers()
	if active {
		for _, d := range p.detectors {
			a := newEventAdapter(r, d, p.logger)
			p.integrator.AddEventHandler(a, a.config())
		}
	}
	if p.handler != nil {
		p.handler.initialize(r, active)
	}
	p.calls = 0

	tEnd := mapper.EpochToTime(end)
	p.logger.Debug("propagation started",
		slog.String("integrator", p.integrator.Name()),
		slog.Time("start", initial.Date()),
		slog.Time("target", end),
		slog.Float64("span_s", tEnd),
		slog.Int("dimension", r.layout.total),
		slog.Bool("events", active && len(p.detectors) > 0),
	)

	if p.hooks.BeforeIntegration != nil {
		if err := p.hooks.BeforeIntegration(initial, end); err != nil {
			return spacecraft.State{}, err
		}
	}
	tF, yF, err := p.integrator.Integrate(r, 0, y0, tEnd)
	if err != nil {
		err = translate(err)
		p.logger.Debug("propagation failed", slog.Int("calls", p.calls), slog.Any("error", err))
		return spacecraft.State{}, err
	}
	if p.hooks.AfterIntegration != nil {
		if err := p.hooks.AfterIntegration(); err != nil {
			return spacecraft.State{}, err
		}
	}

	final, err := r.completeState(tF, yF)
	if err != nil {
		return spacecraft.State{}, err
	}
	p.initial = final
	p.startDate = final.Date()

	p.logger.Debug("propagation finished",
		slog.Time("date", final.Date()),
		slog.Int("calls", p.calls),
		slog.Bool("stopped_early", !final.Date().Equal(end)),
	)
	return final, nil
}

// unmanaged returns the additional states of s that no provider or
// equation set owns.
func (p *Propagator) unmanaged(s spacecraft.State) map[string][]float64 {
	all := s.AdditionalStates()
	for _, name := range p.ManagedStates() {
		delete(all, name)
	}
	if len(all) == 0 {
		return nil
	}
	return all
}

// translate returns callback errors as they were raised and wraps every
// other solver error as a SolverError.
func translate(err error) error {
	var cb *dynamo.CallbackError
	if errors.As(err, &cb) {
		return cb.Err
	}
	return &SolverError{Err: err}
}
