package core

import "testing"

func TestBoxOverlaps(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Box
		pad      float64
		expected bool
	}{
		{
			name:     "overlapping boxes",
			a:        Box{X: 0, Y: 0, W: 10, H: 10},
			b:        Box{X: 5, Y: 5, W: 10, H: 10},
			expected: true,
		},
		{
			name:     "touching edges",
			a:        Box{X: 0, Y: 0, W: 10, H: 10},
			b:        Box{X: 10, Y: 0, W: 10, H: 10},
			expected: false,
		},
		{
			name:     "overlap removed by pad",
			a:        Box{X: 0, Y: 0, W: 10, H: 10},
			b:        Box{X: 8, Y: 0, W: 10, H: 10},
			pad:      3,
			expected: false,
		},
		{
			name:     "overlap survives small pad",
			a:        Box{X: 0, Y: 0, W: 10, H: 10},
			b:        Box{X: 8, Y: 0, W: 10, H: 10},
			pad:      1,
			expected: true,
		},
		{
			name:     "above obstacle",
			a:        Box{X: 0, Y: 30, W: 10, H: 10},
			b:        Box{X: 0, Y: 0, W: 10, H: 26},
			expected: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.a.Overlaps(tc.b, tc.pad); got != tc.expected {
				t.Errorf("Overlaps() = %v, expected %v", got, tc.expected)
			}
		})
	}
}

func TestRectEdges(t *testing.T) {
	r := NewRect(5, 10, 20, 15)

	if r.Right() != 25 {
		t.Errorf("Right() = %d, expected 25", r.Right())
	}
	if r.Bottom() != 25 {
		t.Errorf("Bottom() = %d, expected 25", r.Bottom())
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		val, min, max, expected int
	}{
		{5, 0, 10, 5},
		{-5, 0, 10, 0},
		{15, 0, 10, 10},
		{0, 0, 10, 0},
		{10, 0, 10, 10},
	}

	for _, tc := range tests {
		result := Clamp(tc.val, tc.min, tc.max)
		if result != tc.expected {
			t.Errorf("Clamp(%d, %d, %d) = %d, expected %d", tc.val, tc.min, tc.max, result, tc.expected)
		}
	}
}

func TestSmoothstep(t *testing.T) {
	tests := []struct {
		in, expected float64
	}{
		{-1, 0},
		{0, 0},
		{0.5, 0.5},
		{1, 1},
		{2, 1},
	}
	for _, tc := range tests {
		if got := Smoothstep01(tc.in); got != tc.expected {
			t.Errorf("Smoothstep01(%v) = %v, expected %v", tc.in, got, tc.expected)
		}
	}
}

func TestLerp(t *testing.T) {
	if got := Lerp(280, 520, 0.5); got != 400 {
		t.Errorf("Lerp(280, 520, 0.5) = %v, expected 400", got)
	}
	if got := Lerp(520, 190, 1); got != 190 {
		t.Errorf("Lerp(520, 190, 1) = %v, expected 190", got)
	}
}
