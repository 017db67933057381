// Package navigation builds the scene path through collectible positions and
// drives the camera along it, one frame at a time.
package navigation

import "math"

// Vec3 is a point or direction in scene space. It marshals as [x, y, z].
type Vec3 [3]float64

func V(x, y, z float64) Vec3 { return Vec3{x, y, z} }

func (a Vec3) X() float64 { return a[0] }
func (a Vec3) Y() float64 { return a[1] }
func (a Vec3) Z() float64 { return a[2] }

func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }
func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }
func (a Vec3) Scale(s float64) Vec3 {
	return Vec3{a[0] * s, a[1] * s, a[2] * s}
}
func (a Vec3) Dot(b Vec3) float64 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }
func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}
func (a Vec3) Len() float64            { return math.Sqrt(a.Dot(a)) }
func (a Vec3) Distance(b Vec3) float64 { return a.Sub(b).Len() }

// Normalize returns the unit vector, or the zero vector for zero input.
func (a Vec3) Normalize() Vec3 {
	l := a.Len()
	if l == 0 {
		return Vec3{}
	}
	return a.Scale(1 / l)
}

// Lerp moves a toward b by t.
func (a Vec3) Lerp(b Vec3, t float64) Vec3 {
	return a.Add(b.Sub(a).Scale(t))
}

// Quat is a rotation quaternion stored as [x, y, z, w].
type Quat [4]float64

// IdentityQuat is the rotation that looks down -Z.
var IdentityQuat = Quat{0, 0, 0, 1}

// Forward is the direction an unrotated camera looks.
var Forward = Vec3{0, 0, -1}

func (q Quat) Normalize() Quat {
	l := math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
	if l == 0 {
		return IdentityQuat
	}
	return Quat{q[0] / l, q[1] / l, q[2] / l, q[3] / l}
}

// QuatFromUnitVectors returns the shortest rotation taking unit vector from
// onto unit vector to.
func QuatFromUnitVectors(from, to Vec3) Quat {
	r := from.Dot(to) + 1
	var q Quat
	if r < 1e-6 {
		// Opposite vectors: rotate 180 degrees around any perpendicular axis.
		if math.Abs(from[0]) > math.Abs(from[2]) {
			q = Quat{-from[1], from[0], 0, 0}
		} else {
			q = Quat{0, -from[2], from[1], 0}
		}
	} else {
		c := from.Cross(to)
		q = Quat{c[0], c[1], c[2], r}
	}
	return q.Normalize()
}

// Rotate applies q to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	u := Vec3{q[0], q[1], q[2]}
	w := q[3]
	t := u.Cross(v).Scale(2)
	return v.Add(t.Scale(w)).Add(u.Cross(t))
}

// Slerp interpolates from q toward r by t along the shorter arc.
func (q Quat) Slerp(r Quat, t float64) Quat {
	if t <= 0 {
		return q
	}
	if t >= 1 {
		return r
	}
	cosHalf := q[0]*r[0] + q[1]*r[1] + q[2]*r[2] + q[3]*r[3]
	if cosHalf < 0 {
		r = Quat{-r[0], -r[1], -r[2], -r[3]}
		cosHalf = -cosHalf
	}
	if cosHalf >= 1 {
		return q
	}
	sqrSin := 1 - cosHalf*cosHalf
	if sqrSin <= math.SmallestNonzeroFloat64 {
		s := 1 - t
		return Quat{
			s*q[0] + t*r[0],
			s*q[1] + t*r[1],
			s*q[2] + t*r[2],
			s*q[3] + t*r[3],
		}.Normalize()
	}
	sinHalf := math.Sqrt(sqrSin)
	half := math.Atan2(sinHalf, cosHalf)
	a := math.Sin((1-t)*half) / sinHalf
	b := math.Sin(t*half) / sinHalf
	return Quat{
		q[0]*a + r[0]*b,
		q[1]*a + r[1]*b,
		q[2]*a + r[2]*b,
		q[3]*a + r[3]*b,
	}
}

// Damp converts a per-frame smoothing factor tuned at refHz into the factor
// for a step of dt seconds.
func Damp(factor, dt, refHz float64) float64 {
	if dt <= 0 || factor <= 0 {
		return 0
	}
	if factor >= 1 {
		return 1
	}
	return 1 - math.Pow(1-factor, dt*refHz)
}
