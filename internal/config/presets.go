package config

import (
	"slices"

	"github.com/san-kum/orbitsim/internal/orbit"
)

func preset(name string, apply func(c *Config)) *Config {
	c := DefaultConfig()
	c.Name = name
	apply(c)
	return c
}

var Presets = map[string]*Config{
	"leo": preset("leo", func(c *Config) {
		c.Duration = 3 * 5554
	}),
	"geo": preset("geo", func(c *Config) {
		c.Orbit = OrbitConfig{Type: "keplerian", SemiMajorAxis: 42164e3, Eccentricity: 1e-4, Inclination: 0.05, AnomalyType: "mean"}
		c.Duration = 86164
		c.OutputStep = 600
		c.Tolerances.MaxStep = 1800
	}),
	"molniya": preset("molniya", func(c *Config) {
		c.Orbit = OrbitConfig{
			Type: "keplerian", SemiMajorAxis: 26600e3, Eccentricity: 0.74,
			Inclination: 63.4, PerigeeArg: 270, RAAN: 40, Anomaly: 10, AnomalyType: "mean",
		}
		c.Duration = 43082
		c.OutputStep = 300
		c.Events.StopAtApogee = true
	}),
	"transfer": preset("transfer", func(c *Config) {
		c.Orbit = OrbitConfig{
			Type:     "cartesian",
			Position: [3]float64{orbit.EarthRadius + 400e3, 0, 0},
			Velocity: [3]float64{0, 7668.6, 0},
		}
		c.OrbitType = "cartesian"
		c.Mass = 1500
		c.Duration = 2 * 5554
		c.Thrust = ThrustConfig{Start: 600, Duration: 900, Thrust: 400, Isp: 310}
		c.Events.ManeuverAt = 5000
		c.Events.ManeuverDV = 25
		c.Events.ManeuverDM = 12
	}),
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	c := *cfg
	return &c
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
