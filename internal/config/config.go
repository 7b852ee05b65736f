package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/orbitsim/internal/orbit"
	"github.com/san-kum/orbitsim/internal/spacecraft"
)

const (
	DefaultIntegrator = "dopri5"
	DefaultStep       = 10.0
	DefaultDuration   = 5400.0
	DefaultOutputStep = 60.0
	DefaultMass       = spacecraft.DefaultMass
	DefaultAltitude   = 500e3
)

// DefaultEpoch is the scenario epoch when none is configured.
var DefaultEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type Config struct {
	Name       string          `yaml:"name"`
	Epoch      time.Time       `yaml:"epoch"`
	Frame      string          `yaml:"frame"`
	Mu         float64         `yaml:"mu"`
	Mass       float64         `yaml:"mass"`
	Orbit      OrbitConfig     `yaml:"orbit"`
	Integrator string          `yaml:"integrator"`
	Step       float64         `yaml:"step"`
	Tolerances ToleranceConfig `yaml:"tolerances"`
	OrbitType  string          `yaml:"orbit_type"`
	AngleType  string          `yaml:"angle_type"`
	Mode       string          `yaml:"mode"`
	Duration   float64         `yaml:"duration"`
	OutputStep float64         `yaml:"output_step"`
	Events     EventConfig     `yaml:"events"`
	Thrust     ThrustConfig    `yaml:"thrust"`
	MassLeak   float64         `yaml:"mass_leak"`
}

// OrbitConfig is the initial orbit, either as Keplerian elements with
// angles in degrees or as a Cartesian position and velocity.
type OrbitConfig struct {
	Type          string     `yaml:"type"`
	SemiMajorAxis float64    `yaml:"a"`
	Eccentricity  float64    `yaml:"e"`
	Inclination   float64    `yaml:"i_deg"`
	PerigeeArg    float64    `yaml:"argp_deg"`
	RAAN          float64    `yaml:"raan_deg"`
	Anomaly       float64    `yaml:"anomaly_deg"`
	AnomalyType   string     `yaml:"anomaly_type"`
	Position      [3]float64 `yaml:"position"`
	Velocity      [3]float64 `yaml:"velocity"`
}

type ToleranceConfig struct {
	AbsTol  float64 `yaml:"abs_tol"`
	RelTol  float64 `yaml:"rel_tol"`
	MinStep float64 `yaml:"min_step"`
	MaxStep float64 `yaml:"max_step"`
}

type EventConfig struct {
	StopAtApogee bool    `yaml:"stop_at_apogee"`
	StopAtNode   bool    `yaml:"stop_at_node"`
	ManeuverAt   float64 `yaml:"maneuver_at"`
	ManeuverDV   float64 `yaml:"maneuver_dv"`
	ManeuverDM   float64 `yaml:"maneuver_dm"`
}

// HasManeuver reports whether an impulsive maneuver is configured.
func (e EventConfig) HasManeuver() bool {
	return e.ManeuverDV != 0 || e.ManeuverDM != 0
}

type ThrustConfig struct {
	Start    float64 `yaml:"start"`
	Duration float64 `yaml:"duration"`
	Thrust   float64 `yaml:"thrust"`
	Isp      float64 `yaml:"isp"`
}

func (t ThrustConfig) Enabled() bool {
	return t.Duration != 0 && t.Thrust != 0
}

func DefaultConfig() *Config {
	tol := ToleranceConfig{AbsTol: 1e-9, RelTol: 1e-11, MinStep: 1e-3, MaxStep: 300}
	return &Config{
		Name:       "default",
		Epoch:      DefaultEpoch,
		Frame:      orbit.GCRF.Name,
		Mu:         orbit.EarthMu,
		Mass:       DefaultMass,
		Integrator: DefaultIntegrator,
		Step:       DefaultStep,
		Tolerances: tol,
		OrbitType:  "equinoctial",
		AngleType:  "true",
		Mode:       "master",
		Duration:   DefaultDuration,
		OutputStep: DefaultOutputStep,
		Orbit: OrbitConfig{
			Type:          "keplerian",
			SemiMajorAxis: orbit.EarthRadius + DefaultAltitude,
			Eccentricity:  0.001,
			Inclination:   51.6,
			AnomalyType:   "true",
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the fields the propagator cannot check itself.
func (c *Config) Validate() error {
	var errs []error
	if c.Mass <= 0 {
		errs = append(errs, fmt.Errorf("mass must be positive, got %g", c.Mass))
	}
	if c.OutputStep <= 0 {
		errs = append(errs, fmt.Errorf("output_step must be positive, got %g", c.OutputStep))
	}
	if c.Duration == 0 {
		errs = append(errs, errors.New("duration must not be zero"))
	}
	if c.Step <= 0 && c.Integrator != DefaultIntegrator {
		errs = append(errs, fmt.Errorf("step must be positive for %s", c.Integrator))
	}
	if _, err := orbit.ParseType(c.OrbitType); err != nil {
		errs = append(errs, err)
	}
	if _, err := orbit.ParsePositionAngle(c.AngleType); err != nil {
		errs = append(errs, err)
	}
	switch c.Mode {
	case "master", "ephemeris":
	default:
		errs = append(errs, fmt.Errorf("unknown mode %q", c.Mode))
	}
	if c.Thrust.Enabled() {
		if c.Thrust.Isp <= 0 {
			errs = append(errs, errors.New("thrust isp must be positive"))
		}
		if c.OrbitType != "cartesian" {
			errs = append(errs, errors.New("thrust requires orbit_type cartesian"))
		}
	}
	return errors.Join(errs...)
}

// InitialOrbit builds the configured orbit at the epoch.
func (c *Config) InitialOrbit() (orbit.Orbit, error) {
	frame, err := orbit.FrameByName(c.Frame)
	if err != nil {
		return orbit.Orbit{}, err
	}
	switch c.Orbit.Type {
	case "cartesian":
		return orbit.NewCartesian(orbit.Vector3(c.Orbit.Position), orbit.Vector3(c.Orbit.Velocity), frame, c.Epoch, c.Mu)
	case "keplerian", "":
		angle, err := orbit.ParsePositionAngle(c.Orbit.AnomalyType)
		if err != nil {
			return orbit.Orbit{}, err
		}
		el := orbit.KeplerianElements{
			A:               c.Orbit.SemiMajorAxis,
			E:               c.Orbit.Eccentricity,
			I:               radians(c.Orbit.Inclination),
			PerigeeArgument: radians(c.Orbit.PerigeeArg),
			RAAN:            radians(c.Orbit.RAAN),
			Anomaly:         radians(c.Orbit.Anomaly),
		}
		return orbit.NewKeplerian(el, angle, frame, c.Epoch, c.Mu)
	default:
		return orbit.Orbit{}, fmt.Errorf("%w: %q", orbit.ErrUnknownType, c.Orbit.Type)
	}
}

// InitialState is the initial orbit with the configured mass.
func (c *Config) InitialState() (spacecraft.State, error) {
	o, err := c.InitialOrbit()
	if err != nil {
		return spacecraft.State{}, err
	}
	return spacecraft.FromOrbit(o).WithMass(c.Mass), nil
}

// Target returns the epoch plus the duration.
func (c *Config) Target() time.Time {
	return c.Epoch.Add(seconds(c.Duration))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
