package combat

import "math"

// Vec3 is a position or direction in world units. Y is up.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Add(o Vec3) Vec3         { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3         { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3    { return Vec3{v.X * s, v.Y * s, v.Z * s} }
func (v Vec3) Dot(o Vec3) float64      { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }
func (v Vec3) Len() float64            { return math.Sqrt(v.Dot(v)) }
func (v Vec3) Distance(o Vec3) float64 { return v.Sub(o).Len() }

// Flat drops the vertical component.
func (v Vec3) Flat() Vec3 { return Vec3{X: v.X, Z: v.Z} }

// PlanarDistance is the distance between v and o on the ground plane.
func (v Vec3) PlanarDistance(o Vec3) float64 { return v.Flat().Distance(o.Flat()) }

// Normalize returns the unit vector, or the zero vector for zero input.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l == 0 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// Pose is the caster's position and facing direction.
type Pose struct {
	Position Vec3 `json:"position"`
	Facing   Vec3 `json:"facing"`
}

// Direction returns the normalized facing, defaulting to -Z when unset.
func (p Pose) Direction() Vec3 {
	d := p.Facing.Normalize()
	if d == (Vec3{}) {
		return Vec3{Z: -1}
	}
	return d
}
