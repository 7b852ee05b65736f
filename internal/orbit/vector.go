package orbit

import "math"

// Vector3 is a Cartesian vector in the orbit's frame.
type Vector3 [3]float64

func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3{v[0] + o[0], v[1] + o[1], v[2] + o[2]}
}

func (v Vector3) Sub(o Vector3) Vector3 {
	return Vector3{v[0] - o[0], v[1] - o[1], v[2] - o[2]}
}

func (v Vector3) Scale(k float64) Vector3 {
	return Vector3{k * v[0], k * v[1], k * v[2]}
}

func (v Vector3) Dot(o Vector3) float64 {
	return v[0]*o[0] + v[1]*o[1] + v[2]*o[2]
}

func (v Vector3) Cross(o Vector3) Vector3 {
	return Vector3{
		v[1]*o[2] - v[2]*o[1],
		v[2]*o[0] - v[0]*o[2],
		v[0]*o[1] - v[1]*o[0],
	}
}

func (v Vector3) Norm() float64 { return math.Sqrt(v.Dot(v)) }

// Normalize returns the unit vector along v, or v itself when it is zero.
func (v Vector3) Normalize() Vector3 {
	n := v.Norm()
	if n == 0 {
		return v
	}
	return v.Scale(1 / n)
}

func (v Vector3) IsValid() bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// NormalizeAngle returns the angle equivalent to a within [center-π, center+π).
func NormalizeAngle(a, center float64) float64 {
	return a - 2*math.Pi*math.Floor((a+math.Pi-center)/(2*math.Pi))
}
