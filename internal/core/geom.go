// Package core holds the types shared by the game and its hosts:
// geometry, the screen buffer, input frames and runtime config.
// It contains no external dependencies (especially no Bubble Tea) to keep game
// logic pure and testable.
package core

import "math"

// Rect represents an axis-aligned cell rectangle used for drawing.
type Rect struct {
	X, Y int // Top-left corner position
	W, H int // Width and height
}

// NewRect creates a new rectangle with the given position and dimensions.
func NewRect(x, y, w, h int) Rect {
	return Rect{X: x, Y: y, W: w, H: h}
}

// Right returns the x-coordinate of the right edge.
func (r Rect) Right() int {
	return r.X + r.W
}

// Bottom returns the y-coordinate of the bottom edge.
func (r Rect) Bottom() int {
	return r.Y + r.H
}

// Box is an axis-aligned bounding box in world pixels.
// Y grows upward from the ground plane.
type Box struct {
	X, Y float64 // Left edge and bottom edge
	W, H float64
}

// Right returns the x-coordinate of the right edge.
func (b Box) Right() float64 {
	return b.X + b.W
}

// Top returns the y-coordinate of the top edge.
func (b Box) Top() float64 {
	return b.Y + b.H
}

// Overlaps reports whether b, shrunk by pad on every side, strictly overlaps
// other. Touching edges do not count as an overlap.
func (b Box) Overlaps(other Box, pad float64) bool {
	return b.X+pad < other.Right() &&
		b.Right()-pad > other.X &&
		b.Y+pad < other.Top() &&
		b.Top()-pad > other.Y
}

// Clamp restricts a value to be within [lo, hi].
func Clamp(val, lo, hi int) int {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}

// ClampF restricts a float64 value to be within [lo, hi].
func ClampF(val, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, val))
}

// Lerp interpolates linearly between a and b.
// The explicit conversion keeps the product from being fused into an FMA,
// so results match across architectures.
func Lerp(a, b, t float64) float64 {
	return a + float64((b-a)*t)
}

// Smoothstep01 is the cubic Hermite ease on [0,1]; inputs are clamped.
func Smoothstep01(t float64) float64 {
	x := ClampF(t, 0, 1)
	return float64(x*x) * (3 - float64(2*x))
}

// Min returns the smaller of two integers.
func Min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of two integers.
func Max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
