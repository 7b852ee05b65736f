package orbit

import "errors"

var (
	ErrInvalidMu       = errors.New("orbit: gravitational parameter must be positive")
	ErrInvalidOrbit    = errors.New("orbit: invalid position or velocity")
	ErrNotElliptic     = errors.New("orbit: trajectory is not elliptic")
	ErrSingular        = errors.New("orbit: equinoctial elements undefined for retrograde equatorial orbits")
	ErrNoConvergence   = errors.New("orbit: Kepler equation did not converge")
	ErrUnknownType     = errors.New("orbit: unknown orbit type")
	ErrUnknownAngle    = errors.New("orbit: unknown position angle")
	ErrFrameMismatch   = errors.New("orbit: frame mismatch")
	ErrNonInertial     = errors.New("orbit: frame is not inertial")
	ErrInvalidElements = errors.New("orbit: invalid orbital elements")
)
