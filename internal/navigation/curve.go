package navigation

import "math"

const lengthDivisions = 200

// CatmullRom is an open centripetal Catmull-Rom spline through its control
// points. The parameter t in [0, 1] is spread evenly over the segments, not
// over arc length.
type CatmullRom struct {
	points  []Vec3
	lengths []float64
}

// NewCatmullRom returns nil for fewer than two points.
func NewCatmullRom(points []Vec3) *CatmullRom {
	if len(points) < 2 {
		return nil
	}
	c := &CatmullRom{points: append([]Vec3(nil), points...)}
	c.lengths = c.cumulativeLengths(lengthDivisions)
	return c
}

// Point evaluates the curve at t, clamped to [0, 1].
func (c *CatmullRom) Point(t float64) Vec3 {
	t = Clamp01(t)
	n := len(c.points)
	p := float64(n-1) * t
	i := int(math.Floor(p))
	w := p - float64(i)
	if i >= n-1 {
		i = n - 2
		w = 1
	}

	p1 := c.points[i]
	p2 := c.points[i+1]
	var p0, p3 Vec3
	if i > 0 {
		p0 = c.points[i-1]
	} else {
		p0 = p1.Scale(2).Sub(p2)
	}
	if i+2 < n {
		p3 = c.points[i+2]
	} else {
		p3 = p2.Scale(2).Sub(p1)
	}

	dt0 := math.Pow(p0.Sub(p1).Dot(p0.Sub(p1)), 0.25)
	dt1 := math.Pow(p1.Sub(p2).Dot(p1.Sub(p2)), 0.25)
	dt2 := math.Pow(p2.Sub(p3).Dot(p2.Sub(p3)), 0.25)
	if dt1 < 1e-4 {
		dt1 = 1
	}
	if dt0 < 1e-4 {
		dt0 = dt1
	}
	if dt2 < 1e-4 {
		dt2 = dt1
	}

	var out Vec3
	for k := 0; k < 3; k++ {
		out[k] = nonUniform(p0[k], p1[k], p2[k], p3[k], dt0, dt1, dt2, w)
	}
	return out
}

func nonUniform(x0, x1, x2, x3, dt0, dt1, dt2, t float64) float64 {
	t1 := ((x1-x0)/dt0 - (x2-x0)/(dt0+dt1) + (x2-x1)/dt1) * dt1
	t2 := ((x2-x1)/dt1 - (x3-x1)/(dt1+dt2) + (x3-x2)/dt2) * dt1

	c0 := x1
	c1 := t1
	c2 := -3*x1 + 3*x2 - 2*t1 - t2
	c3 := 2*x1 - 2*x2 + t1 + t2
	return c0 + c1*t + c2*t*t + c3*t*t*t
}

// Points samples divisions+1 evenly spaced parameters, both ends included.
func (c *CatmullRom) Points(divisions int) []Vec3 {
	if divisions < 1 {
		divisions = 1
	}
	out := make([]Vec3, 0, divisions+1)
	for d := 0; d <= divisions; d++ {
		out = append(out, c.Point(float64(d)/float64(divisions)))
	}
	return out
}

// Length approximates arc length from the cached samples.
func (c *CatmullRom) Length() float64 {
	return c.lengths[len(c.lengths)-1]
}

func (c *CatmullRom) cumulativeLengths(divisions int) []float64 {
	out := make([]float64, 0, divisions+1)
	out = append(out, 0)
	prev := c.Point(0)
	sum := 0.0
	for d := 1; d <= divisions; d++ {
		cur := c.Point(float64(d) / float64(divisions))
		sum += cur.Distance(prev)
		out = append(out, sum)
		prev = cur
	}
	return out
}
