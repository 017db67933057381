package navigation

import "math"

var cameraOffset = Vec3{0, 8, 15}

const trailSamples = 200

// SpiralLayout places n items on an outward spiral: item i sits at radius
// 30+8i, angle 0.8i and height sin(0.3i)*20.
func SpiralLayout(n int) []Vec3 {
	if n <= 0 {
		return nil
	}
	out := make([]Vec3, n)
	for i := range out {
		fi := float64(i)
		radius := 30 + fi*8
		angle := fi * 0.8
		out[i] = Vec3{
			math.Cos(angle) * radius,
			math.Sin(fi*0.3) * 20,
			math.Sin(angle) * radius,
		}
	}
	return out
}

// withMidpoints returns points interleaved with the midpoint of each
// consecutive pair, lifted by lift(i).
func withMidpoints(points []Vec3, lift func(i int) float64) []Vec3 {
	out := make([]Vec3, 0, 2*len(points)-1)
	for i, p := range points {
		out = append(out, p)
		if i < len(points)-1 {
			mid := p.Lerp(points[i+1], 0.5)
			mid[1] += lift(i)
			out = append(out, mid)
		}
	}
	return out
}

// BuildCameraPath builds the curve the camera travels: each item offset up
// and back, with a gently perturbed midpoint between neighbours. It reports
// false for fewer than two positions.
func BuildCameraPath(positions []Vec3) (*CatmullRom, bool) {
	if len(positions) < 2 {
		return nil, false
	}
	waypoints := make([]Vec3, len(positions))
	for i, p := range positions {
		waypoints[i] = p.Add(cameraOffset)
	}
	pts := withMidpoints(waypoints, func(i int) float64 { return math.Sin(float64(i)*0.3) * 3 })
	return NewCatmullRom(pts), true
}

// Trail is the visible line through the item positions. Walked is the
// prefix of Points already travelled; nil until at least two samples are
// covered.
type Trail struct {
	Points         []Vec3  `json:"points"`
	Walked         []Vec3  `json:"walked,omitempty"`
	TotalLength    float64 `json:"totalLength"`
	ProgressLength float64 `json:"progressLength"`
}

// BuildTrail samples the trail through positions and the prefix covered by
// progress. It reports false for fewer than two positions.
func BuildTrail(positions []Vec3, progress float64) (Trail, bool) {
	if len(positions) < 2 {
		return Trail{}, false
	}
	pts := withMidpoints(positions, func(i int) float64 { return math.Sin(float64(i)*0.5) * 0.5 })
	curve := NewCatmullRom(pts)
	samples := curve.Points(trailSamples)
	progress = Clamp01(progress)

	t := Trail{
		Points:         samples,
		TotalLength:    curve.Length(),
		ProgressLength: curve.Length() * progress,
	}
	if walked := int(math.Floor(float64(len(samples)) * progress)); walked >= 2 {
		t.Walked = samples[:walked]
	}
	return t, true
}

// MarkerReached reports whether the marker for item i of n is at or behind
// progress.
func MarkerReached(i, n int, progress float64) bool {
	if n <= 1 {
		return progress >= 0 && i == 0
	}
	return float64(i)/float64(n-1) <= progress
}
