package navigation

import (
	"math"
	"strings"
	"time"
)

// ProgressStore is where the controller reads and writes navigation state.
// *store.Store satisfies it.
type ProgressStore interface {
	Progress() float64
	SetProgress(p float64)
	PathMode() bool
	SetPathMode(on bool)
}

// Pose is a camera position and orientation.
type Pose struct {
	Position    Vec3 `json:"position"`
	Orientation Quat `json:"orientation"`
}

// Frame is the outcome of one camera update. Visible is false when there
// are too few items for a path.
type Frame struct {
	Pose       Pose    `json:"pose"`
	LookAt     Vec3    `json:"lookAt"`
	Progress   float64 `json:"progress"`
	FocusIndex int     `json:"focusIndex"`
	PathMode   bool    `json:"pathMode"`
	Visible    bool    `json:"visible"`
	ReachedEnd bool    `json:"reachedEnd"`
}

type tween struct {
	from, to float64
	elapsed  time.Duration
	duration time.Duration
}

// Controller turns input events into progress changes and progress into a
// camera pose. It is not safe for concurrent use; drive it from one
// goroutine, usually through a Runner.
type Controller struct {
	tuning Tuning
	store  ProgressStore

	positions []Vec3
	path      *CatmullRom

	keys  map[string]bool
	tween *tween
	auto  bool

	pose   Pose
	free   *FreeCamera
	lastTS time.Time
}

func NewController(s ProgressStore, t Tuning) *Controller {
	return &Controller{
		tuning: t,
		store:  s,
		keys:   map[string]bool{},
		pose:   Pose{Position: t.InitialEye, Orientation: IdentityQuat},
		free:   NewFreeCamera(t),
	}
}

// SetPositions replaces the item positions and rebuilds the camera path.
func (c *Controller) SetPositions(positions []Vec3) {
	c.positions = append(c.positions[:0], positions...)
	c.path, _ = BuildCameraPath(c.positions)
	c.tween = nil
}

func (c *Controller) Positions() []Vec3 { return c.positions }

func (c *Controller) Pose() Pose { return c.pose }

func (c *Controller) KeyDown(key string) { c.keys[strings.ToLower(key)] = true }

func (c *Controller) KeyUp(key string) { delete(c.keys, strings.ToLower(key)) }

// ReleaseKeys forgets every held key, as when the window loses focus.
func (c *Controller) ReleaseKeys() { clear(c.keys) }

// Press nudges progress one discrete step.
func (c *Controller) Press(forward bool) {
	c.nudge(forward, c.tuning.PressStep)
}

// Wheel nudges progress by the wheel step in the direction of deltaY.
func (c *Controller) Wheel(deltaY float64) {
	if deltaY == 0 || math.IsNaN(deltaY) {
		return
	}
	c.nudge(deltaY > 0, c.tuning.WheelStep)
}

// Swipe interprets a finished touch gesture in screen coordinates (y grows
// downward). A swipe right or up steps forward, left or down steps back.
// Gestures below the threshold or without a dominant axis are ignored.
// It reports whether a step was taken.
func (c *Controller) Swipe(startX, startY, endX, endY float64) bool {
	dx := endX - startX
	dy := endY - startY
	ax, ay := math.Abs(dx), math.Abs(dy)
	var forward bool
	switch {
	case ax > ay && ax > c.tuning.SwipeThreshold:
		forward = dx > 0
	case ay > ax && ay > c.tuning.SwipeThreshold:
		forward = dy < 0
	default:
		return false
	}
	c.Press(forward)
	return true
}

// SetAutoAdvance starts or stops the constant-rate advance toward the end.
func (c *Controller) SetAutoAdvance(on bool) { c.auto = on }

func (c *Controller) AutoAdvance() bool { return c.auto }

// GoToIndex eases progress to item i, replacing any running animation.
func (c *Controller) GoToIndex(i int) {
	if !c.store.PathMode() || len(c.positions) == 0 {
		return
	}
	i = max(0, min(i, len(c.positions)-1))
	c.tween = &tween{
		from:     c.store.Progress(),
		to:       IndexProgress(i, len(c.positions)),
		duration: c.tuning.GoToDuration,
	}
}

func (c *Controller) Animating() bool { return c.tween != nil }

// SetPathMode switches between trail and free camera. Leaving trail mode
// cancels animation and resets progress; the free camera starts from the
// current pose.
func (c *Controller) SetPathMode(on bool) {
	if on == c.store.PathMode() {
		return
	}
	c.tween = nil
	c.auto = false
	if !on {
		c.store.SetProgress(0)
		c.free.Reset(c.pose.Position, c.free.Target())
	}
	c.store.SetPathMode(on)
}

func (c *Controller) Orbit(azimuth, polar float64) {
	if !c.store.PathMode() {
		c.free.Orbit(azimuth, polar)
	}
}

func (c *Controller) Pan(dx, dy float64) {
	if !c.store.PathMode() {
		c.free.Pan(dx, dy)
	}
}

func (c *Controller) Zoom(scale float64) {
	if !c.store.PathMode() {
		c.free.Zoom(scale)
	}
}

func (c *Controller) nudge(forward bool, step float64) {
	if !c.store.PathMode() {
		return
	}
	c.tween = nil
	if !forward {
		step = -step
	}
	c.store.SetProgress(Clamp01(c.store.Progress() + step))
}

// Frame advances the camera to timestamp ts and returns the new state.
// Smoothing runs on every call whether or not progress moved.
func (c *Controller) Frame(ts time.Time) Frame {
	dt := c.delta(ts)
	n := len(c.positions)

	if !c.store.PathMode() {
		c.pose = c.free.Update(dt, c.keys)
		return Frame{
			Pose:     c.pose,
			LookAt:   c.free.Target(),
			PathMode: false,
			Visible:  n > 0,
		}
	}

	progress := c.advance(dt)
	idx := FocusIndex(progress, n)
	f := Frame{
		Progress:   progress,
		FocusIndex: idx,
		PathMode:   true,
		ReachedEnd: n > 0 && idx >= n-1,
	}
	if c.path == nil {
		f.Pose = c.pose
		return f
	}

	now := c.path.Point(progress)
	ahead := c.path.Point(math.Min(1, progress+c.tuning.LookAhead))
	dir := ahead.Sub(now).Normalize()

	focus := c.positions[idx]
	desired := focus.Add(dir.Scale(-c.tuning.Distance)).Add(Vec3{0, c.tuning.Height, 0})
	lookAt := focus.Add(Vec3{0, c.tuning.LookAtLift, 0})

	k := Damp(c.tuning.Damping, dt, c.tuning.FrameRate)
	c.pose.Position = c.pose.Position.Lerp(desired, k)
	if view := lookAt.Sub(c.pose.Position).Normalize(); view != (Vec3{}) {
		c.pose.Orientation = c.pose.Orientation.Slerp(QuatFromUnitVectors(Forward, view), k)
	}

	f.Pose = c.pose
	f.LookAt = lookAt
	f.Visible = true
	return f
}

// advance applies animation, held keys and auto-advance for dt seconds and
// returns the stored progress.
func (c *Controller) advance(dt float64) float64 {
	p := c.store.Progress()
	start := p

	if tw := c.tween; tw != nil {
		tw.elapsed += time.Duration(dt * float64(time.Second))
		t := float64(tw.elapsed) / float64(tw.duration)
		p = tw.from + (tw.to-tw.from)*EaseInOutQuad(t)
		if t >= 1 {
			p = tw.to
			c.tween = nil
		}
	}

	var dir float64
	if c.keys["w"] || c.keys["arrowup"] {
		dir++
	}
	if c.keys["s"] || c.keys["arrowdown"] {
		dir--
	}
	p += dir * c.tuning.HoldSpeed * dt

	if c.auto {
		p += c.tuning.AutoAdvanceRate * dt
		if p >= 1 {
			c.auto = false
		}
	}

	p = Clamp01(p)
	if p != start {
		c.store.SetProgress(p)
	}
	return p
}

func (c *Controller) delta(ts time.Time) float64 {
	last := c.lastTS
	c.lastTS = ts
	if last.IsZero() {
		return 1 / c.tuning.FrameRate
	}
	d := ts.Sub(last)
	if d < 0 {
		return 0
	}
	if c.tuning.MaxFrameDelta > 0 && d > c.tuning.MaxFrameDelta {
		d = c.tuning.MaxFrameDelta
	}
	return d.Seconds()
}
