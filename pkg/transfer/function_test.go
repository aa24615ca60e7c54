package transfer

import (
	"testing"

	"volviz/pkg/volume"
)

// uniformVolume builds a volume where every sample has the same
// density, giving a zero noise floor
func uniformVolume(t *testing.T, density int16) *volume.Volume {
	t.Helper()
	data := make([]int16, 8)
	for i := range data {
		data[i] = density
	}
	vol, err := volume.New(data, 2, 2, 2)
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	return vol
}

// TestRainbowFallback verifies the hue ramp used when fewer than two
// control points exist
func TestRainbowFallback(t *testing.T) {
	f := New()
	f.SetVolume(uniformVolume(t, 100))

	// Density 0 is pure red with opacity still at the floor
	c := f.ColorAt(0)
	if c.R != 255 || c.G != 0 || c.B != 0 {
		t.Errorf("Expected red at density 0, got %+v", c)
	}
	if c.A != 0 {
		t.Errorf("Expected zero opacity at density 0, got %d", c.A)
	}

	// Density 50 sits mid-sweep at cyan, opacity sqrt(0.5)
	c = f.ColorAt(50)
	if c.R != 0 || c.G != 255 || c.B != 255 {
		t.Errorf("Expected cyan at density 50, got %+v", c)
	}
	if c.A != 180 {
		t.Errorf("Expected opacity 180 at density 50, got %d", c.A)
	}

	// Density at the maximum wraps the hue back to red, fully opaque
	c = f.ColorAt(100)
	if c.R != 255 || c.G != 0 || c.B != 0 || c.A != 255 {
		t.Errorf("Expected opaque red at max density, got %+v", c)
	}
}

// TestPiecewiseLinearLookup verifies interpolation between two control
// points and transparency outside their range. Positions are exact
// binary fractions so the midpoint lerp has no rounding slack.
func TestPiecewiseLinearLookup(t *testing.T) {
	f := New()
	f.SetVolume(uniformVolume(t, 100))
	f.AddPoint(Point{Position: 0.25, Opacity: 0})
	f.AddPoint(Point{Position: 0.75, Opacity: 1, R: 255, G: 255, B: 255})

	// Midway between the points every channel lerps to one half
	c := f.ColorAt(50)
	if c.R != 128 || c.G != 128 || c.B != 128 {
		t.Errorf("Expected mid-gray between points, got %+v", c)
	}
	if c.A != 128 {
		t.Errorf("Expected opacity 128 between points, got %d", c.A)
	}

	// Below the first point and at or past the last point is transparent
	for _, d := range []int16{10, 75, 95} {
		c = f.ColorAt(d)
		if c.A != 0 || c.R != 0 || c.G != 0 || c.B != 0 {
			t.Errorf("Expected transparent outside range at density %d, got %+v", d, c)
		}
	}
}

// TestPiecewiseLinearInexactPositions pins the lookup at a midpoint of
// control positions that are not exact binary fractions: the quotient
// may land a hair under one half, so channels settle within one step
// of the ideal value rather than on it.
func TestPiecewiseLinearInexactPositions(t *testing.T) {
	f := New()
	f.SetVolume(uniformVolume(t, 100))
	f.AddPoint(Point{Position: 0.2, Opacity: 0})
	f.AddPoint(Point{Position: 0.8, Opacity: 1, R: 255, G: 255, B: 255})

	c := f.ColorAt(50)
	for name, got := range map[string]uint8{"R": c.R, "G": c.G, "B": c.B, "A": c.A} {
		if got < 127 || got > 128 {
			t.Errorf("Channel %s = %d, want 127 or 128", name, got)
		}
	}
}

// TestNoiseFloorSuppression verifies that opacity below the histogram
// noise floor is forced to zero while color is preserved
func TestNoiseFloorSuppression(t *testing.T) {
	// Histogram: density 1 peaks at height 10, density 2 drops to
	// height 1 and becomes the noise floor; maximum density is 5, so
	// the floor sits at normalized position 0.4
	var data []int16
	for i := 0; i < 100; i++ {
		data = append(data, 1)
	}
	data = append(data, 2)
	for i := 0; i < 9; i++ {
		data = append(data, 5)
	}
	vol, err := volume.New(data, len(data), 1, 1)
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}

	f := New()
	f.SetVolume(vol)
	f.AddPoint(Point{Position: 0, Opacity: 1, R: 255, G: 255, B: 255})
	f.AddPoint(Point{Position: 1, Opacity: 1, R: 255, G: 255, B: 255})

	c := f.ColorAt(1)
	if c.A != 0 {
		t.Errorf("Expected suppressed opacity below noise floor, got %d", c.A)
	}
	if c.R != 255 {
		t.Errorf("Expected color preserved below noise floor, got %+v", c)
	}

	c = f.ColorAt(3)
	if c.A != 255 {
		t.Errorf("Expected full opacity above noise floor, got %d", c.A)
	}
}

// TestPointEditing verifies sorted insertion, removal and snapshot
// isolation
func TestPointEditing(t *testing.T) {
	f := New()
	f.AddPoint(Point{Position: 0.5})
	f.AddPoint(Point{Position: 0.2})
	f.AddPoint(Point{Position: 0.8})

	pts := f.Points()
	if len(pts) != 3 {
		t.Fatalf("Expected 3 points, got %d", len(pts))
	}
	for i, want := range []float64{0.2, 0.5, 0.8} {
		if pts[i].Position != want {
			t.Errorf("Expected position %v at index %d, got %v", want, i, pts[i].Position)
		}
	}

	// Mutating the snapshot must not affect the function
	pts[0].Position = 0.99
	if got := f.Points()[0].Position; got != 0.2 {
		t.Errorf("Expected snapshot isolation, first position changed to %v", got)
	}

	f.RemovePoint(1)
	pts = f.Points()
	if len(pts) != 2 || pts[0].Position != 0.2 || pts[1].Position != 0.8 {
		t.Errorf("Expected points 0.2 and 0.8 after removal, got %+v", pts)
	}

	// Out-of-range removals are ignored
	f.RemovePoint(-1)
	f.RemovePoint(2)
	if got := len(f.Points()); got != 2 {
		t.Errorf("Expected 2 points after ignored removals, got %d", got)
	}
}

// TestChangeNotifications verifies the one-shot read-and-clear contract
// per registered consumer
func TestChangeNotifications(t *testing.T) {
	f := New()
	f.Register("maximum")
	f.Register("composite")

	if f.Changed("maximum") {
		t.Errorf("Expected no notification before any change")
	}

	f.AddPoint(Point{Position: 0.5})
	if !f.Changed("maximum") {
		t.Errorf("Expected notification after adding a point")
	}
	if f.Changed("maximum") {
		t.Errorf("Expected notification to clear after reading")
	}
	if !f.Changed("composite") {
		t.Errorf("Expected independent notification per consumer")
	}

	f.RemovePoint(0)
	if !f.Changed("maximum") {
		t.Errorf("Expected notification after removing a point")
	}

	if f.Changed("unregistered") {
		t.Errorf("Expected false for unregistered consumer")
	}
}
