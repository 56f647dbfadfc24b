package model

import (
	"fmt"
	"math"
)

// Vec3 is a cartesian triple used both as a position and as a direction.
// No unit system is enforced; propagator output units pass through unchanged.
type Vec3 struct {
	X, Y, Z float64
}

// Origin is the zero vector.
var Origin = Vec3{}

// Add returns v + other.
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Scale returns v with every component multiplied by k.
func (v Vec3) Scale(k float64) Vec3 {
	return Vec3{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	return v.Sub(other).Norm()
}

// AngleTo returns the angle between v and other in radians. It returns 0 when
// either vector has zero length.
func (v Vec3) AngleTo(other Vec3) float64 {
	n := v.Norm() * other.Norm()
	if n == 0 {
		return 0
	}
	c := v.Dot(other) / n
	// Rounding can push |c| slightly past 1 for (anti)parallel vectors.
	c = math.Max(-1, math.Min(1, c))
	return math.Acos(c)
}

// IsFinite reports whether no component is NaN or infinite.
func (v Vec3) IsFinite() bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func (v Vec3) String() string {
	return fmt.Sprintf("(x=%.3f, y=%.3f, z=%.3f)", v.X, v.Y, v.Z)
}
