// Package transfer maps densities to colors and opacities through an
// editable piecewise-linear transfer function. Consumers register by
// name and poll a one-shot notification to learn when the control
// points changed under them.
package transfer

import (
	"image/color"
	"math"
	"sort"
	"sync"

	"volviz/pkg/volume"
)

// Point is one control point of the transfer function.
type Point struct {
	// Position is the normalized density the point controls, in [0,1]
	Position float64

	// Opacity is the alpha contribution at this point, in [0,1]
	Opacity float64

	// R, G and B are the 8-bit color channels at this point
	R, G, B uint8
}

// Function is a piecewise-linear transfer function over normalized
// density. With fewer than two control points it falls back to a
// rainbow ramp whose opacity rises from the histogram noise floor, so
// a freshly loaded volume is visible before any editing.
//
// All methods are safe for concurrent use; ray-casting workers look up
// colors while the function is being edited.
type Function struct {
	mu sync.RWMutex

	// points holds the control points sorted by position
	points []Point

	// maxDensity scales densities into normalized positions
	maxDensity float64

	// noiseFloor is the normalized density below which opacity is
	// suppressed
	noiseFloor float64

	// notified tracks the pending change notification per consumer name
	notified map[string]bool
}

// New creates an empty transfer function with no registered consumers.
func New() *Function {
	return &Function{notified: make(map[string]bool)}
}

// SetVolume adapts the function to a newly loaded volume: the maximum
// density becomes the normalization scale and the histogram noise floor
// the opacity cutoff. Control points are kept; their positions are
// normalized and stay meaningful across volumes.
func (f *Function) SetVolume(vol *volume.Volume) {
	maxDensity := float64(vol.MaxDensity())
	var floor float64
	if maxDensity > 0 {
		floor = float64(vol.ComputeHistogram().NoiseFloor) / maxDensity
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.maxDensity = maxDensity
	f.noiseFloor = floor
}

// Register adds a consumer name with no pending notification.
func (f *Function) Register(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified[name] = false
}

// MarkChanged flags a pending notification for every registered
// consumer. Point mutations call it implicitly.
func (f *Function) MarkChanged() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markChangedLocked()
}

func (f *Function) markChangedLocked() {
	for name := range f.notified {
		f.notified[name] = true
	}
}

// Changed reports and clears the pending notification for the given
// consumer. Unregistered names always report false.
func (f *Function) Changed(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.notified[name] {
		f.notified[name] = false
		return true
	}
	return false
}

// AddPoint inserts a control point, keeping the list sorted by
// position, and notifies every consumer.
func (f *Function) AddPoint(p Point) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := sort.Search(len(f.points), func(i int) bool {
		return f.points[i].Position > p.Position
	})
	f.points = append(f.points, Point{})
	copy(f.points[i+1:], f.points[i:])
	f.points[i] = p
	f.markChangedLocked()
}

// RemovePoint deletes the control point at the given index and notifies
// every consumer. Out-of-range indices are ignored.
func (f *Function) RemovePoint(i int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || len(f.points) <= i {
		return
	}
	f.points = append(f.points[:i], f.points[i+1:]...)
	f.markChangedLocked()
}

// Points returns a snapshot of the control points.
func (f *Function) Points() []Point {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Point, len(f.points))
	copy(out, f.points)
	return out
}

// ColorAt returns the color and opacity for a density value.
//
// With two or more control points the density is looked up in the
// piecewise-linear ramp: positions outside [first, last) are fully
// transparent, opacity below the noise floor is suppressed, and both
// color and opacity interpolate linearly between the bracketing
// points. With fewer than two points a rainbow ramp stands in, its
// opacity rising as the square root of the distance past the noise
// floor.
//
// Parameters:
//   - density: The raw density value to colorize
//
// Returns:
//   - The non-premultiplied color, with opacity in the alpha channel
func (f *Function) ColorAt(density int16) color.NRGBA {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var t float64
	if f.maxDensity > 0 {
		t = float64(density) / f.maxDensity
	}

	if len(f.points) >= 2 {
		first, last := f.points[0], f.points[len(f.points)-1]
		if !(first.Position <= t && t < last.Position) {
			return color.NRGBA{}
		}
		for i := 1; i < len(f.points); i++ {
			if t > f.points[i].Position {
				continue
			}
			p1, p2 := f.points[i-1], f.points[i]
			var dx float64
			if p2.Position > p1.Position {
				dx = math.Max((t-p1.Position)/(p2.Position-p1.Position), 0)
			}
			var a float64
			if t >= f.noiseFloor {
				a = p1.Opacity*(1-dx) + p2.Opacity*dx
			}
			lerp := func(c1, c2 uint8) uint8 {
				v := (float64(c1)/255)*(1-dx) + (float64(c2)/255)*dx
				return uint8(v*255 + 0.5)
			}
			return color.NRGBA{
				R: lerp(p1.R, p2.R),
				G: lerp(p1.G, p2.G),
				B: lerp(p1.B, p2.B),
				A: uint8(a*255 + 0.5),
			}
		}
		return color.NRGBA{}
	}

	// Rainbow fallback: full hue sweep across the density range.
	r, g, b := rainbow(t)
	var a float64
	if f.noiseFloor < 1 {
		a = math.Sqrt(math.Max(0, t-f.noiseFloor) / (1 - f.noiseFloor))
	}
	return color.NRGBA{R: r, G: g, B: b, A: uint8(a * 255)}
}

// rainbow converts a hue to fully saturated RGB. The fractional part of
// the hue selects the position on the color wheel, so values outside
// [0,1) wrap around.
func rainbow(hue float64) (r, g, b uint8) {
	h := (hue - math.Floor(hue)) * 6
	frac := h - math.Floor(h)
	q := uint8((1-frac)*255 + 0.5)
	t := uint8(frac*255 + 0.5)
	switch int(h) {
	case 0:
		return 255, t, 0
	case 1:
		return q, 255, 0
	case 2:
		return 0, 255, t
	case 3:
		return 0, q, 255
	case 4:
		return t, 0, 255
	default:
		return 255, 0, q
	}
}
