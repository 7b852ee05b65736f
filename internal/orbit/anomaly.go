package orbit

import "math"

const keplerMaxIterations = 50

// PositionAngle selects which anomaly (or longitude) places the body on
// its orbit.
type PositionAngle int

const (
	Mean PositionAngle = iota
	Eccentric
	True
)

func (a PositionAngle) String() string {
	switch a {
	case Mean:
		return "mean"
	case Eccentric:
		return "eccentric"
	case True:
		return "true"
	default:
		return "unknown"
	}
}

func ParsePositionAngle(s string) (PositionAngle, error) {
	for _, a := range []PositionAngle{Mean, Eccentric, True} {
		if a.String() == s {
			return a, nil
		}
	}
	return 0, ErrUnknownAngle
}

func TrueToEccentric(v, e float64) float64 {
	return math.Atan2(math.Sqrt(1-e*e)*math.Sin(v), e+math.Cos(v))
}

func EccentricToTrue(E, e float64) float64 {
	return math.Atan2(math.Sqrt(1-e*e)*math.Sin(E), math.Cos(E)-e)
}

func EccentricToMean(E, e float64) float64 {
	return E - e*math.Sin(E)
}

// MeanToEccentric solves Kepler's equation M = E - e sin E.
func MeanToEccentric(M, e float64) (float64, error) {
	m := NormalizeAngle(M, 0)
	E := m
	if e > 0.8 {
		E = math.Copysign(math.Pi, m)
	}
	for i := 0; i < keplerMaxIterations; i++ {
		d := (E - e*math.Sin(E) - m) / (1 - e*math.Cos(E))
		E -= d
		if math.Abs(d) <= 1e-14 {
			return E + (M - m), nil
		}
	}
	return 0, ErrNoConvergence
}

func trueToEccentricLongitude(lv, ex, ey float64) float64 {
	eps := math.Sqrt(1 - ex*ex - ey*ey)
	c, s := math.Cos(lv), math.Sin(lv)
	return lv + 2*math.Atan((ey*c-ex*s)/(eps+1+ex*c+ey*s))
}

func eccentricToTrueLongitude(le, ex, ey float64) float64 {
	eps := math.Sqrt(1 - ex*ex - ey*ey)
	c, s := math.Cos(le), math.Sin(le)
	return le + 2*math.Atan((ex*s-ey*c)/(eps+1-ex*c-ey*s))
}

// meanToEccentricLongitude solves lm = le - ex sin le + ey cos le.
func meanToEccentricLongitude(lm, ex, ey float64) (float64, error) {
	l := NormalizeAngle(lm, 0)
	le := l
	for i := 0; i < keplerMaxIterations; i++ {
		c, s := math.Cos(le), math.Sin(le)
		d := (le - ex*s + ey*c - l) / (1 - ex*c - ey*s)
		le -= d
		if math.Abs(d) <= 1e-14 {
			return le + (lm - l), nil
		}
	}
	return 0, ErrNoConvergence
}

// longitudeRate is the Keplerian rate of the longitude for angle, given
// the true longitude lv. It equals the anomaly rate since ω and Ω are
// constant.
func longitudeRate(n, ex, ey, lv float64, angle PositionAngle) (float64, error) {
	switch angle {
	case Mean:
		return n, nil
	case Eccentric:
		le := trueToEccentricLongitude(lv, ex, ey)
		return n / (1 - ex*math.Cos(le) - ey*math.Sin(le)), nil
	case True:
		eps2 := 1 - ex*ex - ey*ey
		k := 1 + ex*math.Cos(lv) + ey*math.Sin(lv)
		return n * k * k / (eps2 * math.Sqrt(eps2)), nil
	default:
		return 0, ErrUnknownAngle
	}
}
