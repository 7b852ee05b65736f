package orbit

import (
	"strings"
	"time"
)

// Type is the representation used to lay an orbit out as six parameters.
type Type int

const (
	Cartesian Type = iota
	Keplerian
	Equinoctial
)

func (t Type) String() string {
	switch t {
	case Cartesian:
		return "cartesian"
	case Keplerian:
		return "keplerian"
	case Equinoctial:
		return "equinoctial"
	default:
		return "unknown"
	}
}

func ParseType(s string) (Type, error) {
	for _, t := range []Type{Cartesian, Keplerian, Equinoctial} {
		if t.String() == strings.ToLower(s) {
			return t, nil
		}
	}
	return 0, ErrUnknownType
}

// ToArray returns the six parameters of o in this representation. The
// angle only matters for element representations.
func (t Type) ToArray(o Orbit, angle PositionAngle) ([6]float64, error) {
	switch t {
	case Cartesian:
		p, v := o.pos, o.vel
		return [6]float64{p[0], p[1], p[2], v[0], v[1], v[2]}, nil
	case Keplerian:
		k, err := o.Keplerian(angle)
		if err != nil {
			return [6]float64{}, err
		}
		return [6]float64{k.A, k.E, k.I, k.PerigeeArgument, k.RAAN, k.Anomaly}, nil
	case Equinoctial:
		q, err := o.Equinoctial(angle)
		if err != nil {
			return [6]float64{}, err
		}
		return [6]float64{q.A, q.Ex, q.Ey, q.Hx, q.Hy, q.Longitude}, nil
	default:
		return [6]float64{}, ErrUnknownType
	}
}

// FromArray is the inverse of ToArray.
func (t Type) FromArray(p [6]float64, angle PositionAngle, frame Frame, date time.Time, mu float64) (Orbit, error) {
	switch t {
	case Cartesian:
		return NewCartesian(Vector3{p[0], p[1], p[2]}, Vector3{p[3], p[4], p[5]}, frame, date, mu)
	case Keplerian:
		return NewKeplerian(KeplerianElements{
			A: p[0], E: p[1], I: p[2], PerigeeArgument: p[3], RAAN: p[4], Anomaly: p[5],
		}, angle, frame, date, mu)
	case Equinoctial:
		return NewEquinoctial(EquinoctialElements{
			A: p[0], Ex: p[1], Ey: p[2], Hx: p[3], Hy: p[4], Longitude: p[5],
		}, angle, frame, date, mu)
	default:
		return Orbit{}, ErrUnknownType
	}
}
