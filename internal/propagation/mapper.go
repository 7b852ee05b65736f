package propagation

import (
	"fmt"
	"math"
	"time"

	"github.com/san-kum/orbitsim/internal/attitude"
	"github.com/san-kum/orbitsim/internal/dynamo"
	"github.com/san-kum/orbitsim/internal/orbit"
	"github.com/san-kum/orbitsim/internal/spacecraft"
)

// PrimaryDimension is the size of the primary block of the solver vector:
// six orbit parameters followed by the mass.
const PrimaryDimension = 7

// MapperConfig is the complete description of a StateMapper. It is a
// value; the With* methods return modified copies.
type MapperConfig struct {
	ReferenceDate    time.Time
	Mu               float64
	OrbitType        orbit.Type
	AngleType        orbit.PositionAngle
	AttitudeProvider attitude.Provider
	Frame            orbit.Frame
}

// DefaultMapperConfig integrates equinoctial elements with the true
// longitude and leaves mu to be resolved from the first initial state.
func DefaultMapperConfig() MapperConfig {
	return MapperConfig{
		Mu:        math.NaN(),
		OrbitType: orbit.Equinoctial,
		AngleType: orbit.True,
	}
}

func (c MapperConfig) WithReferenceDate(d time.Time) MapperConfig {
	c.ReferenceDate = d
	return c
}

func (c MapperConfig) WithMu(mu float64) MapperConfig {
	c.Mu = mu
	return c
}

func (c MapperConfig) WithOrbitType(t orbit.Type) MapperConfig {
	c.OrbitType = t
	return c
}

func (c MapperConfig) WithAngleType(a orbit.PositionAngle) MapperConfig {
	c.AngleType = a
	return c
}

func (c MapperConfig) WithAttitudeProvider(p attitude.Provider) MapperConfig {
	c.AttitudeProvider = p
	return c
}

func (c MapperConfig) WithFrame(f orbit.Frame) MapperConfig {
	c.Frame = f
	return c
}

// StateMapper converts between spacecraft states and the primary block of
// the solver vector. Implementations are immutable.
type StateMapper interface {
	Config() MapperConfig
	ToVector(s spacecraft.State) ([]float64, error)
	ToState(t float64, y []float64) (spacecraft.State, error)
	TimeToEpoch(t float64) time.Time
	EpochToTime(d time.Time) float64
}

// MapperFactory builds the mapper for a configuration. Propagators call it
// on every setter and at the start of every run.
type MapperFactory func(cfg MapperConfig) (StateMapper, error)

// OrbitMapper lays out the orbit in the configured representation
// followed by the mass.
type OrbitMapper struct {
	cfg MapperConfig
}

func NewMapper(cfg MapperConfig) (StateMapper, error) {
	if !cfg.Frame.IsZero() && !cfg.Frame.Inertial {
		return nil, fmt.Errorf("%w: %s", orbit.ErrNonInertial, cfg.Frame)
	}
	if !math.IsNaN(cfg.Mu) && !(cfg.Mu > 0) {
		return nil, orbit.ErrInvalidMu
	}
	return OrbitMapper{cfg: cfg}, nil
}

func (m OrbitMapper) Config() MapperConfig { return m.cfg }

func (m OrbitMapper) TimeToEpoch(t float64) time.Time {
	return m.cfg.ReferenceDate.Add(time.Duration(math.Round(t * 1e9)))
}

func (m OrbitMapper) EpochToTime(d time.Time) float64 {
	return d.Sub(m.cfg.ReferenceDate).Seconds()
}

func (m OrbitMapper) ToVector(s spacecraft.State) ([]float64, error) {
	if !m.cfg.Frame.IsZero() && s.Frame() != m.cfg.Frame {
		return nil, fmt.Errorf("%w: state in %s, integration in %s", orbit.ErrFrameMismatch, s.Frame(), m.cfg.Frame)
	}
	p, err := m.cfg.OrbitType.ToArray(s.Orbit(), m.cfg.AngleType)
	if err != nil {
		return nil, err
	}
	y := make([]float64, PrimaryDimension)
	copy(y, p[:])
	y[6] = s.Mass()
	return y, nil
}

func (m OrbitMapper) ToState(t float64, y []float64) (spacecraft.State, error) {
	if math.IsNaN(m.cfg.Mu) {
		return spacecraft.State{}, ErrUnresolvedMu
	}
	if len(y) < PrimaryDimension {
		return spacecraft.State{}, fmt.Errorf("%w: primary block has %d values", dynamo.ErrDimensionMismatch, len(y))
	}
	date := m.TimeToEpoch(t)
	var p [6]float64
	copy(p[:], y)
	o, err := m.cfg.OrbitType.FromArray(p, m.cfg.AngleType, m.cfg.Frame, date, m.cfg.Mu)
	if err != nil {
		return spacecraft.State{}, err
	}

	att := attitude.Attitude{Date: date, Frame: m.cfg.Frame, Rotation: attitude.Identity}
	if m.cfg.AttitudeProvider != nil {
		if att, err = m.cfg.AttitudeProvider.Attitude(o, date, m.cfg.Frame); err != nil {
			return spacecraft.State{}, err
		}
	}
	return spacecraft.New(o, att, y[6])
}
