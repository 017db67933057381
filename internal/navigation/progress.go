package navigation

import "math"

// Clamp01 clamps p to [0, 1]. NaN clamps to 0.
func Clamp01(p float64) float64 {
	switch {
	case math.IsNaN(p), p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}

// FocusIndex is round(progress*(n-1)) clamped to [0, n-1]; 0 for empty lists.
func FocusIndex(progress float64, n int) int {
	if n <= 1 {
		return 0
	}
	i := int(math.Round(Clamp01(progress) * float64(n-1)))
	if i < 0 {
		return 0
	}
	if i > n-1 {
		return n - 1
	}
	return i
}

// IndexProgress is the progress value that focuses item i of n.
func IndexProgress(i, n int) float64 {
	if n <= 1 {
		return 0
	}
	return Clamp01(float64(i) / float64(n-1))
}

// EaseInOutQuad accelerates through the first half and decelerates through
// the second.
func EaseInOutQuad(t float64) float64 {
	t = Clamp01(t)
	if t < 0.5 {
		return 2 * t * t
	}
	return -1 + (4-2*t)*t
}
