// Package orbit holds the orbit value used as the primary state of a
// spacecraft and the conventions that turn it into six numbers.
//
// An Orbit is stored as Cartesian position and velocity together with its
// date, frame and gravitational parameter. Keplerian and equinoctial
// elements are derived on demand. Type and PositionAngle select how an
// orbit is laid out in a solver vector:
//
//	Cartesian   x, y, z, vx, vy, vz
//	Keplerian   a, e, i, perigee argument, RAAN, anomaly
//	Equinoctial a, ex, ey, hx, hy, longitude
//
// Units are SI throughout (m, m/s, rad, m³/s²). Only elliptic orbits have
// element representations; Cartesian works for any trajectory.
package orbit
