package navigation

import "math"

const minPolar = 1e-6

// FreeCamera is the orbit camera used outside trail mode. Orbit and pan
// input accumulates into deltas that decay each frame, which gives the
// inertial feel; zoom applies on the next update.
type FreeCamera struct {
	tuning Tuning

	target       Vec3
	radius       float64
	theta, phi   float64
	dTheta, dPhi float64
	pan          Vec3
	pendingScale float64
}

func NewFreeCamera(t Tuning) *FreeCamera {
	f := &FreeCamera{tuning: t}
	f.Reset(t.InitialEye, Vec3{})
	return f
}

// Reset places the eye at eye orbiting target, dropping any residual motion.
func (f *FreeCamera) Reset(eye, target Vec3) {
	off := eye.Sub(target)
	f.target = target
	f.radius = clampRange(off.Len(), f.tuning.MinDistance, f.tuning.MaxDistance)
	if off.Len() == 0 {
		f.theta, f.phi = 0, math.Pi/2
	} else {
		f.theta = math.Atan2(off[0], off[2])
		f.phi = math.Acos(clampRange(off[1]/off.Len(), -1, 1))
	}
	f.dTheta, f.dPhi = 0, 0
	f.pan = Vec3{}
	f.pendingScale = 1
}

// Orbit rotates around the target by the given azimuth and polar angles in
// radians.
func (f *FreeCamera) Orbit(azimuth, polar float64) {
	f.dTheta -= azimuth
	f.dPhi -= polar
}

// Pan moves the target in the view plane; dx is screen-right, dy screen-up.
func (f *FreeCamera) Pan(dx, dy float64) {
	right, up := f.basis()
	f.pan = f.pan.Add(right.Scale(-dx)).Add(up.Scale(dy))
}

// Zoom scales the orbit radius; values above 1 move the eye away.
func (f *FreeCamera) Zoom(scale float64) {
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return
	}
	f.pendingScale *= scale
}

// fly translates eye and target together from held keys: w/s along the
// view direction, a/d sideways, q/e vertically.
func (f *FreeCamera) fly(keys map[string]bool, dt float64) {
	step := f.tuning.FlySpeed * dt * f.tuning.FrameRate
	if step == 0 {
		return
	}
	fwd := f.target.Sub(f.eye()).Normalize()
	right, _ := f.basis()
	var move Vec3
	if keys["w"] {
		move = move.Add(fwd)
	}
	if keys["s"] {
		move = move.Sub(fwd)
	}
	if keys["d"] {
		move = move.Add(right)
	}
	if keys["a"] {
		move = move.Sub(right)
	}
	if keys["e"] {
		move = move.Add(Vec3{0, 1, 0})
	}
	if keys["q"] {
		move = move.Sub(Vec3{0, 1, 0})
	}
	f.target = f.target.Add(move.Scale(step))
}

// Update advances the camera by dt seconds.
func (f *FreeCamera) Update(dt float64, keys map[string]bool) Pose {
	f.fly(keys, dt)

	d := Damp(f.tuning.FreeDamping, dt, f.tuning.FrameRate)
	f.theta += f.dTheta * d
	f.phi = clampRange(f.phi+f.dPhi*d, minPolar, math.Pi-minPolar)
	f.dTheta *= 1 - d
	f.dPhi *= 1 - d

	f.target = f.target.Add(f.pan.Scale(d))
	f.pan = f.pan.Scale(1 - d)

	f.radius = clampRange(f.radius*f.pendingScale, f.tuning.MinDistance, f.tuning.MaxDistance)
	f.pendingScale = 1

	return f.Pose()
}

func (f *FreeCamera) Pose() Pose {
	eye := f.eye()
	return Pose{
		Position:    eye,
		Orientation: QuatFromUnitVectors(Forward, f.target.Sub(eye).Normalize()),
	}
}

func (f *FreeCamera) Target() Vec3 { return f.target }

func (f *FreeCamera) eye() Vec3 {
	s := math.Sin(f.phi)
	return f.target.Add(Vec3{
		f.radius * s * math.Sin(f.theta),
		f.radius * math.Cos(f.phi),
		f.radius * s * math.Cos(f.theta),
	})
}

func (f *FreeCamera) basis() (right, up Vec3) {
	fwd := f.target.Sub(f.eye()).Normalize()
	right = fwd.Cross(Vec3{0, 1, 0}).Normalize()
	if right == (Vec3{}) {
		right = Vec3{1, 0, 0}
	}
	up = right.Cross(fwd)
	return right, up
}

func clampRange(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
