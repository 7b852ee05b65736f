// Package attitude provides the attitude of a spacecraft along its orbit.
package attitude

import (
	"math"
	"time"

	"github.com/san-kum/orbitsim/internal/orbit"
)

// Quaternion is a unit rotation quaternion, scalar first.
type Quaternion struct {
	W, X, Y, Z float64
}

var Identity = Quaternion{W: 1}

func (q Quaternion) Mul(o Quaternion) Quaternion {
	return Quaternion{
		W: q.W*o.W - q.X*o.X - q.Y*o.Y - q.Z*o.Z,
		X: q.W*o.X + q.X*o.W + q.Y*o.Z - q.Z*o.Y,
		Y: q.W*o.Y - q.X*o.Z + q.Y*o.W + q.Z*o.X,
		Z: q.W*o.Z + q.X*o.Y - q.Y*o.X + q.Z*o.W,
	}
}

func (q Quaternion) Norm() float64 {
	return math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
}

// Rotate applies q to v.
func (q Quaternion) Rotate(v orbit.Vector3) orbit.Vector3 {
	p := q.Mul(Quaternion{X: v[0], Y: v[1], Z: v[2]}).Mul(Quaternion{W: q.W, X: -q.X, Y: -q.Y, Z: -q.Z})
	return orbit.Vector3{p.X, p.Y, p.Z}
}

// Attitude is the orientation of the spacecraft body frame with respect
// to a reference frame at a date.
type Attitude struct {
	Date     time.Time
	Frame    orbit.Frame
	Rotation Quaternion
	Spin     orbit.Vector3
}

// Provider computes the attitude for a given orbit. Implementations used
// by concurrent propagators must be safe for concurrent use.
type Provider interface {
	Attitude(o orbit.Orbit, date time.Time, frame orbit.Frame) (Attitude, error)
}

// Inertial keeps a fixed orientation with respect to the reference frame.
type Inertial struct {
	Rotation Quaternion
}

func NewInertial(q Quaternion) *Inertial {
	n := q.Norm()
	if n == 0 {
		q, n = Identity, 1
	}
	return &Inertial{Rotation: Quaternion{q.W / n, q.X / n, q.Y / n, q.Z / n}}
}

func (p *Inertial) Attitude(o orbit.Orbit, date time.Time, frame orbit.Frame) (Attitude, error) {
	return Attitude{Date: date, Frame: frame, Rotation: p.Rotation}, nil
}

// VelocityAligned points the body x axis along the inertial velocity and
// the z axis along the orbital momentum.
type VelocityAligned struct{}

func (VelocityAligned) Attitude(o orbit.Orbit, date time.Time, frame orbit.Frame) (Attitude, error) {
	x := o.Velocity().Normalize()
	z := o.Momentum().Normalize()
	y := z.Cross(x)
	return Attitude{
		Date:     date,
		Frame:    frame,
		Rotation: fromAxes(x, y, z),
		Spin:     z.Scale(o.Momentum().Norm() / (o.Radius() * o.Radius())),
	}, nil
}

// fromAxes returns the rotation taking the reference axes onto x, y, z.
func fromAxes(x, y, z orbit.Vector3) Quaternion {
	m00, m11, m22 := x[0], y[1], z[2]
	trace := m00 + m11 + m22
	switch {
	case trace > 0:
		s := 2 * math.Sqrt(trace+1)
		return Quaternion{W: s / 4, X: (y[2] - z[1]) / s, Y: (z[0] - x[2]) / s, Z: (x[1] - y[0]) / s}
	case m00 > m11 && m00 > m22:
		s := 2 * math.Sqrt(1+m00-m11-m22)
		return Quaternion{W: (y[2] - z[1]) / s, X: s / 4, Y: (y[0] + x[1]) / s, Z: (z[0] + x[2]) / s}
	case m11 > m22:
		s := 2 * math.Sqrt(1+m11-m00-m22)
		return Quaternion{W: (z[0] - x[2]) / s, X: (y[0] + x[1]) / s, Y: s / 4, Z: (z[1] + y[2]) / s}
	default:
		s := 2 * math.Sqrt(1+m22-m00-m11)
		return Quaternion{W: (x[1] - y[0]) / s, X: (z[0] + x[2]) / s, Y: (z[1] + y[2]) / s, Z: s / 4}
	}
}
