package orbit

import (
	"math"
	"time"
)

// KeplerianElements are the classical elements. Anomaly is interpreted
// according to the PositionAngle it is paired with.
type KeplerianElements struct {
	A               float64
	E               float64
	I               float64
	PerigeeArgument float64
	RAAN            float64
	Anomaly         float64
}

// EquinoctialElements are non-singular for circular and equatorial orbits:
//
//	ex = e cos(ω+Ω), ey = e sin(ω+Ω)
//	hx = tan(i/2) cos Ω, hy = tan(i/2) sin Ω
//	Longitude = anomaly + ω + Ω
type EquinoctialElements struct {
	A         float64
	Ex        float64
	Ey        float64
	Hx        float64
	Hy        float64
	Longitude float64
}

func NewKeplerian(el KeplerianElements, angle PositionAngle, frame Frame, date time.Time, mu float64) (Orbit, error) {
	if !(el.A > 0) || !(el.E >= 0 && el.E < 1) {
		return Orbit{}, ErrInvalidElements
	}
	if math.Abs(math.Cos(el.I/2)) < 1e-15 {
		return Orbit{}, ErrSingular
	}
	pa := el.PerigeeArgument + el.RAAN
	t := math.Tan(el.I / 2)
	return NewEquinoctial(EquinoctialElements{
		A:         el.A,
		Ex:        el.E * math.Cos(pa),
		Ey:        el.E * math.Sin(pa),
		Hx:        t * math.Cos(el.RAAN),
		Hy:        t * math.Sin(el.RAAN),
		Longitude: el.Anomaly + pa,
	}, angle, frame, date, mu)
}

func NewEquinoctial(el EquinoctialElements, angle PositionAngle, frame Frame, date time.Time, mu float64) (Orbit, error) {
	if !(el.A > 0) || !(el.Ex*el.Ex+el.Ey*el.Ey < 1) {
		return Orbit{}, ErrInvalidElements
	}
	if math.IsNaN(el.Hx) || math.IsNaN(el.Hy) || math.IsNaN(el.Longitude) {
		return Orbit{}, ErrInvalidElements
	}

	var lv float64
	switch angle {
	case True:
		lv = el.Longitude
	case Eccentric:
		lv = eccentricToTrueLongitude(el.Longitude, el.Ex, el.Ey)
	case Mean:
		le, err := meanToEccentricLongitude(el.Longitude, el.Ex, el.Ey)
		if err != nil {
			return Orbit{}, err
		}
		lv = eccentricToTrueLongitude(le, el.Ex, el.Ey)
	default:
		return Orbit{}, ErrUnknownAngle
	}

	f, g := equinoctialFrame(el.Hx, el.Hy)
	le := trueToEccentricLongitude(lv, el.Ex, el.Ey)
	cLe, sLe := math.Cos(le), math.Sin(le)
	ex, ey := el.Ex, el.Ey
	exey := ex * ey
	exCeyS := ex*cLe + ey*sLe
	beta := 1 / (1 + math.Sqrt(1-ex*ex-ey*ey))

	x := el.A * ((1-beta*ey*ey)*cLe + beta*exey*sLe - ex)
	y := el.A * ((1-beta*ex*ex)*sLe + beta*exey*cLe - ey)
	factor := math.Sqrt(mu/el.A) / (1 - exCeyS)
	xDot := factor * (-sLe + beta*ey*exCeyS)
	yDot := factor * (cLe - beta*ex*exCeyS)

	return NewCartesian(
		f.Scale(x).Add(g.Scale(y)),
		f.Scale(xDot).Add(g.Scale(yDot)),
		frame, date, mu,
	)
}

// equinoctialFrame returns the in-plane basis vectors f and g.
func equinoctialFrame(hx, hy float64) (Vector3, Vector3) {
	hx2, hy2 := hx*hx, hy*hy
	k := 1 / (1 + hx2 + hy2)
	f := Vector3{(1 + hx2 - hy2) * k, 2 * hx * hy * k, -2 * hy * k}
	g := Vector3{2 * hx * hy * k, (1 - hx2 + hy2) * k, 2 * hx * k}
	return f, g
}

func (o Orbit) Equinoctial(angle PositionAngle) (EquinoctialElements, error) {
	a := o.A()
	if !(a > 0) {
		return EquinoctialElements{}, ErrNotElliptic
	}
	w := o.Momentum().Normalize()
	if 1+w[2] < 1e-15 {
		return EquinoctialElements{}, ErrSingular
	}
	hx := -w[1] / (1 + w[2])
	hy := w[0] / (1 + w[2])

	f, g := equinoctialFrame(hx, hy)
	ev := o.EccentricityVector()
	ex, ey := ev.Dot(f), ev.Dot(g)
	if ex*ex+ey*ey >= 1 {
		return EquinoctialElements{}, ErrNotElliptic
	}
	lv := math.Atan2(o.pos.Dot(g), o.pos.Dot(f))

	var l float64
	switch angle {
	case True:
		l = lv
	case Eccentric:
		l = trueToEccentricLongitude(lv, ex, ey)
	case Mean:
		le := trueToEccentricLongitude(lv, ex, ey)
		l = le - ex*math.Sin(le) + ey*math.Cos(le)
	default:
		return EquinoctialElements{}, ErrUnknownAngle
	}
	return EquinoctialElements{A: a, Ex: ex, Ey: ey, Hx: hx, Hy: hy, Longitude: l}, nil
}

func (o Orbit) Keplerian(angle PositionAngle) (KeplerianElements, error) {
	eq, err := o.Equinoctial(angle)
	if err != nil {
		return KeplerianElements{}, err
	}
	raan := math.Atan2(eq.Hy, eq.Hx)
	pa := math.Atan2(eq.Ey, eq.Ex)
	return KeplerianElements{
		A:               eq.A,
		E:               math.Hypot(eq.Ex, eq.Ey),
		I:               2 * math.Atan(math.Hypot(eq.Hx, eq.Hy)),
		PerigeeArgument: NormalizeAngle(pa-raan, math.Pi),
		RAAN:            NormalizeAngle(raan, math.Pi),
		Anomaly:         NormalizeAngle(eq.Longitude-pa, math.Pi),
	}, nil
}
