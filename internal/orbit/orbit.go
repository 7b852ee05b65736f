package orbit

import (
	"fmt"
	"math"
	"time"
)

// Physical constants for Earth.
const (
	EarthMu     = 3.986004418e14
	EarthRadius = 6378137.0
)

// Orbit is an immutable osculating orbit.
type Orbit struct {
	date  time.Time
	frame Frame
	mu    float64
	pos   Vector3
	vel   Vector3
}

func NewCartesian(pos, vel Vector3, frame Frame, date time.Time, mu float64) (Orbit, error) {
	if !(mu > 0) || math.IsInf(mu, 1) {
		return Orbit{}, ErrInvalidMu
	}
	if !pos.IsValid() || !vel.IsValid() || pos.Norm() == 0 {
		return Orbit{}, ErrInvalidOrbit
	}
	return Orbit{date: date, frame: frame, mu: mu, pos: pos, vel: vel}, nil
}

func (o Orbit) Date() time.Time   { return o.date }
func (o Orbit) Frame() Frame      { return o.frame }
func (o Orbit) Mu() float64       { return o.mu }
func (o Orbit) Position() Vector3 { return o.pos }
func (o Orbit) Velocity() Vector3 { return o.vel }
func (o Orbit) IsZero() bool      { return o.mu == 0 }
func (o Orbit) Radius() float64   { return o.pos.Norm() }
func (o Orbit) Altitude() float64 { return o.pos.Norm() - EarthRadius }
func (o Orbit) Momentum() Vector3 { return o.pos.Cross(o.vel) }
func (o Orbit) Energy() float64   { return 0.5*o.vel.Dot(o.vel) - o.mu/o.pos.Norm() }

func (o Orbit) WithDate(d time.Time) Orbit {
	o.date = d
	return o
}

// A returns the semi-major axis; it is negative for hyperbolic orbits.
func (o Orbit) A() float64 {
	return 1 / (2/o.pos.Norm() - o.vel.Dot(o.vel)/o.mu)
}

// EccentricityVector points to the periapsis with norm e.
func (o Orbit) EccentricityVector() Vector3 {
	r := o.pos.Norm()
	v2 := o.vel.Dot(o.vel)
	return o.pos.Scale(v2 - o.mu/r).Sub(o.vel.Scale(o.pos.Dot(o.vel))).Scale(1 / o.mu)
}

func (o Orbit) E() float64        { return o.EccentricityVector().Norm() }

func (o Orbit) I() float64 {
	h := o.Momentum()
	return math.Acos(math.Max(-1, math.Min(1, h[2]/h.Norm())))
}

// MeanMotion returns sqrt(mu/a³), NaN for unbound orbits.
func (o Orbit) MeanMotion() float64 {
	a := o.A()
	if a <= 0 {
		return math.NaN()
	}
	return math.Sqrt(o.mu / (a * a * a))
}

func (o Orbit) Period() time.Duration {
	return time.Duration(math.Round(2 * math.Pi / o.MeanMotion() * 1e9))
}

func (o Orbit) String() string {
	return fmt.Sprintf("orbit{%s %s r=%v v=%v}", o.date.Format(time.RFC3339Nano), o.frame, o.pos, o.vel)
}

// ShiftedBy returns the orbit after dt seconds of pure Keplerian motion.
func (o Orbit) ShiftedBy(dt float64) (Orbit, error) {
	eq, err := o.Equinoctial(Mean)
	if err != nil {
		return Orbit{}, err
	}
	eq.Longitude += o.MeanMotion() * dt
	date := o.date.Add(time.Duration(math.Round(dt * 1e9)))
	return NewEquinoctial(eq, Mean, o.frame, date, o.mu)
}

// AngleRate returns the time derivative of the anomaly (equivalently of
// the longitude) under unperturbed Keplerian motion. It is the only
// non-constant element of a two-body orbit.
func (o Orbit) AngleRate(angle PositionAngle) (float64, error) {
	n := o.MeanMotion()
	if math.IsNaN(n) {
		return 0, ErrNotElliptic
	}
	q, err := o.Equinoctial(True)
	if err != nil {
		return 0, err
	}
	return longitudeRate(n, q.Ex, q.Ey, q.Longitude, angle)
}
