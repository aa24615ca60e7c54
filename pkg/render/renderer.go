// Package render holds the parallel ray-casting engine: a family of
// per-pixel compositing kernels driven by a master/worker scheduler
// that slices the output raster into row bands and recomputes it
// whenever the view or the settings move under it.
package render

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/spatial/r3"

	"volviz/internal/raster"
	"volviz/pkg/transfer"
	"volviz/pkg/volume"
)

// Algorithm selects the compositing rule a Renderer folds ray samples
// with. The set is closed; every value maps to one of the kernels
// below.
type Algorithm int

const (
	// Center samples the volume's central plane, with no ray march.
	Center Algorithm = iota

	// Maximum keeps the largest density seen along each ray.
	Maximum

	// Average keeps the mean density seen along each ray.
	Average

	// TransferFunction alpha-blends the transfer-function color of
	// every sample, front to back.
	TransferFunction

	// Isosurface blends transfer-function colors weighted by how close
	// each sample lies to the isovalue, scaled by gradient magnitude.
	Isosurface
)

// String returns the kernel name used in flags, config files and
// transfer-function registrations.
func (a Algorithm) String() string {
	switch a {
	case Center:
		return "center"
	case Maximum:
		return "maximum"
	case Average:
		return "average"
	case TransferFunction:
		return "transfer"
	case Isosurface:
		return "isosurface"
	default:
		return fmt.Sprintf("algorithm(%d)", int(a))
	}
}

// ParseAlgorithm maps a kernel name to its Algorithm value.
//
// Parameters:
//   - name: the kernel name, case-insensitive
//
// Returns:
//   - The matching Algorithm
//   - An error if the name matches no kernel
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "center":
		return Center, nil
	case "maximum", "mip":
		return Maximum, nil
	case "average":
		return Average, nil
	case "transfer":
		return TransferFunction, nil
	case "isosurface":
		return Isosurface, nil
	}
	return 0, fmt.Errorf("unknown algorithm %q", name)
}

// Algorithms lists every kernel in presentation order.
func Algorithms() []Algorithm {
	return []Algorithm{Center, Maximum, Average, TransferFunction, Isosurface}
}

// Params is the per-frame snapshot of the render settings. Values are
// validated and clamped by the configuration provider; the engine
// consumes them as given.
type Params struct {
	// StepSize is the ray marching stride in voxels
	StepSize int

	// Resolution is the pixel block side length; one ray is cast per
	// Resolution x Resolution block
	Resolution int

	// Workers is the number of band workers to slice with
	Workers int

	// Isovalue is the surface density the isosurface kernel traces
	Isovalue int16

	// Opacity scales the isosurface kernel's per-sample contribution
	Opacity float64

	// Thickness widens the density band around the isovalue that
	// counts as surface, in gradient-magnitude units
	Thickness float64
}

// masterPoll is how long the master sleeps between checks for a
// pending recompute while idle.
const masterPoll = 10 * time.Millisecond

// pass is the frozen input of one raster recompute. Workers only ever
// touch their pass, so a view change mid-flight can never tear the
// coordinates a band is sampling with; the stale pass aborts and a new
// pass snapshots fresh values.
type pass struct {
	vol        *volume.Volume
	img        *image.NRGBA
	view       mgl64.Mat4
	params     Params
	maxDensity int16

	// completed holds one success slot per worker id, fresh per pass
	completed []bool
	wg        *sync.WaitGroup
}

// Renderer computes a square raster projection of a volume with one of
// the ray-casting kernels. Each renderer owns its raster and its own
// worker pool; kernels are never shared.
type Renderer struct {
	alg  Algorithm
	name string
	tf   *transfer.Function

	state passState

	mu         sync.Mutex
	vol        *volume.Volume
	maxDensity int16
	img        *image.NRGBA
	view       mgl64.Mat4
	params     Params
	hasView    bool
	workers    int
	done       chan struct{}
}

// New creates a renderer for the given kernel. The name identifies the
// renderer to the transfer function's change notifications; kernels
// that consume the transfer function are registered with it here.
//
// Parameters:
//   - alg: the compositing kernel to drive
//   - name: the renderer name for notifications and file output
//   - tf: the transfer function, may be nil for grayscale kernels
//
// Returns:
//   - A renderer in the idle state with no volume attached
func New(alg Algorithm, name string, tf *transfer.Function) *Renderer {
	r := &Renderer{alg: alg, name: name, tf: tf}
	if tf != nil && r.usesTransfer() {
		tf.Register(name)
	}
	return r
}

// Name returns the renderer name.
func (r *Renderer) Name() string {
	return r.name
}

// Algorithm returns the compositing kernel this renderer drives.
func (r *Renderer) Algorithm() Algorithm {
	return r.alg
}

func (r *Renderer) usesTransfer() bool {
	return r.alg == TransferFunction || r.alg == Isosurface
}

// SetVolume attaches a newly loaded volume. Any running worker pool is
// stopped first; the raster is resized to the volume diagonal rounded
// up to even, and a recompute is requested so the next Start or Render
// produces an image of the new volume.
func (r *Renderer) SetVolume(vol *volume.Volume) {
	r.Stop()

	side := int(math.Floor(vol.Diagonal()))
	if side%2 != 0 {
		side++
	}

	r.mu.Lock()
	r.vol = vol
	r.maxDensity = vol.MaxDensity()
	r.img = raster.NewSquare(side)
	r.mu.Unlock()

	r.state.RequestCompute()
}

// Start brings up the master and one worker per band. Starting an
// already running renderer is a no-op; changing the worker count
// requires a Stop first, since bands are fixed for the life of the
// pool.
func (r *Renderer) Start(workers int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Running() || r.vol == nil {
		return
	}

	bands := raster.Partition(r.img.Rect.Dy(), workers)
	starts := make([]chan *pass, len(bands))
	r.state.StartRunning()
	for i, band := range bands {
		ch := make(chan *pass)
		starts[i] = ch
		go r.worker(i, band, ch)
	}
	r.workers = len(bands)
	r.done = make(chan struct{})
	go r.master(starts, r.done)
}

// Stop shuts the worker pool down and waits for the master to exit.
// An in-flight pass is marked stale so its workers abort within one
// sampling step; once Stop returns no goroutine writes to the raster.
func (r *Renderer) Stop() {
	r.mu.Lock()
	if !r.state.Running() {
		r.mu.Unlock()
		return
	}
	done := r.done
	r.workers = 0
	r.mu.Unlock()

	r.state.StopRunning()
	<-done
}

// Running reports whether the worker pool is up.
func (r *Renderer) Running() bool {
	return r.state.Running()
}

// Computing reports whether a recompute is pending or in flight.
func (r *Renderer) Computing() bool {
	return r.state.Computing()
}

// Render is the per-frame entry point. It makes sure the pool runs
// with the requested worker count and requests a recompute when the
// view matrix, any setting, or the transfer function changed since the
// last completed pass. An unchanged frame leaves the raster untouched.
//
// Parameters:
//   - view: the current view rotation matrix
//   - p: the current render settings
func (r *Renderer) Render(view mgl64.Mat4, p Params) {
	r.mu.Lock()
	if r.vol == nil {
		r.mu.Unlock()
		return
	}
	restart := r.state.Running() && r.workers != len(raster.Partition(r.img.Rect.Dy(), p.Workers))
	r.mu.Unlock()
	if restart {
		r.Stop()
	}
	r.Start(p.Workers)

	r.mu.Lock()
	changed := !r.hasView || view != r.view || p != r.params
	r.view = view
	r.params = p
	r.hasView = true
	r.mu.Unlock()

	if r.tf != nil && r.usesTransfer() && r.tf.Changed(r.name) {
		changed = true
	}
	if changed {
		r.state.RequestCompute()
	}
}

// Image returns a copy of the raster. Call it between passes; a copy
// taken mid-pass shows however far the workers got.
func (r *Renderer) Image() *image.NRGBA {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.img == nil {
		return nil
	}
	return raster.Clone(r.img)
}

// snapshot freezes the current volume, raster, view and settings into
// a pass for the workers.
func (r *Renderer) snapshot(workers int) *pass {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &pass{
		vol:        r.vol,
		img:        r.img,
		view:       r.view,
		params:     r.params,
		maxDensity: r.maxDensity,
		completed:  make([]bool, workers),
	}
}

// master runs the pass loop: sleep while no recompute is pending, then
// clear the raster, release every worker on a fresh pass, wait for all
// of them to finish, and retire the recompute only when every band
// completed without interruption. A failed band or a restart request
// rolls straight into the next pass.
func (r *Renderer) master(starts []chan *pass, done chan struct{}) {
	defer close(done)
	for r.state.Running() {
		if !r.state.Computing() {
			time.Sleep(masterPoll)
			continue
		}

		r.state.ClearRestart()
		p := r.snapshot(len(starts))
		raster.Clear(p.img)

		var wg sync.WaitGroup
		wg.Add(len(starts))
		p.wg = &wg
		for _, ch := range starts {
			ch <- p
		}
		wg.Wait()

		all := true
		for _, ok := range p.completed {
			if !ok {
				all = false
				break
			}
		}
		if all {
			r.state.FinishComputing()
		}
	}
	for _, ch := range starts {
		close(ch)
	}
}

// worker is the long-lived band goroutine: it blocks until the master
// hands it a pass, slices its fixed band, records success or failure
// in its slot, and loops until the pool shuts down.
func (r *Renderer) worker(id int, band raster.Band, starts <-chan *pass) {
	for p := range starts {
		p.completed[id] = r.slice(p, band.Start, band.End)
		p.wg.Done()
	}
}

// slice casts one ray per pixel block across the rows startRow through
// endRow inclusive and writes the composited colors into the raster.
// It polls for staleness before every sample and every pixel write and
// returns false the moment the pass is cancelled or restarted, leaving
// the partial band to be discarded.
func (r *Renderer) slice(p *pass, startRow, endRow int) bool {
	// Ray basis from the rotation rows: u spans image x, v image y and
	// w the marching direction.
	u := vec3(p.view.Row(0))
	v := vec3(p.view.Row(1))
	w := vec3(p.view.Row(2))

	width := p.img.Rect.Dx()
	height := p.img.Rect.Dy()
	imageCenter := width / 2
	center := p.vol.Center()
	res := p.params.Resolution

	for j := startRow; j <= endRow; j += res {
		for i := 0; i < width; i += res {
			// Representative midpoint of the pixel block, clipped to
			// the raster edge and the band edge.
			mx := float64(i + (min(i+res-1, width-1)-i)/2)
			my := float64(j + (min(j+res-1, endRow)-j)/2)
			px := mx - float64(imageCenter)
			py := my - float64(imageCenter)

			c, ok := r.castRay(p, u, v, w, px, py, center, imageCenter)
			if !ok {
				return false
			}

			for k := 0; k < res*res; k++ {
				if r.state.Stale() {
					return false
				}
				x := i + k%res
				y := j + k/res
				if x < width && y <= endRow {
					// Rows fill bottom-up, the orientation the raster
					// is presented in.
					p.img.SetNRGBA(x, height-1-y, c)
				}
			}
		}
	}
	return true
}

// castRay folds the samples along one ray with the renderer's
// compositing rule. The boolean is false when the pass went stale
// mid-march.
func (r *Renderer) castRay(p *pass, u, v, w r3.Vec, px, py float64, center r3.Vec, imageCenter int) (color.NRGBA, bool) {
	max := float64(p.maxDensity)

	if r.alg == Center {
		if r.state.Stale() {
			return color.NRGBA{}, false
		}
		coord := mapRay(u, v, w, px, py, 0, center)
		return gray(float64(p.vol.Trilinear(coord)), max), true
	}

	diagonal := int(math.Floor(p.vol.Diagonal()))
	step := p.params.StepSize

	switch r.alg {
	case Maximum:
		var maxVal int16
		for k := 0; k < diagonal; k += step {
			if r.state.Stale() {
				return color.NRGBA{}, false
			}
			coord := mapRay(u, v, w, px, py, float64(k-imageCenter), center)
			if d := p.vol.Trilinear(coord); d > maxVal {
				maxVal = d
			}
		}
		return gray(float64(maxVal), max), true

	case Average:
		var sum, count float64
		for k := 0; k < diagonal; k += step {
			if r.state.Stale() {
				return color.NRGBA{}, false
			}
			coord := mapRay(u, v, w, px, py, float64(k-imageCenter), center)
			sum += float64(p.vol.Trilinear(coord))
			count++
		}
		var mean float64
		if count > 0 {
			mean = sum / count
		}
		return gray(mean, max), true

	case TransferFunction:
		var red, green, blue, alpha float64
		for k := 0; k < diagonal; k += step {
			if r.state.Stale() {
				return color.NRGBA{}, false
			}
			coord := mapRay(u, v, w, px, py, float64(k-imageCenter), center)
			col := r.tf.ColorAt(p.vol.Trilinear(coord))

			// Front-to-back blend; no early termination on saturation.
			a := float64(col.A) / 255
			alpha = alpha*(1-a) + float64(col.A)
			red = red*(1-a) + float64(col.R)*a
			green = green*(1-a) + float64(col.G)*a
			blue = blue*(1-a) + float64(col.B)*a
		}
		return color.NRGBA{R: uint8(red), G: uint8(green), B: uint8(blue), A: uint8(alpha)}, true

	case Isosurface:
		iso := float64(p.params.Isovalue)
		thickness := p.params.Thickness
		var red, green, blue, alpha float64
		for k := 0; k < diagonal; k += step {
			if r.state.Stale() {
				return color.NRGBA{}, false
			}
			coord := mapRay(u, v, w, px, py, float64(k-imageCenter), center)
			val := p.vol.Trilinear(coord)
			col := r.tf.ColorAt(val)

			// Levoy's gradient-weighted surface opacity: full weight on
			// an exact flat-region hit, tapering with distance from the
			// isovalue inside a band the gradient magnitude widens.
			d := float64(val)
			g := r3.Norm(p.vol.Gradient(coord))
			var op float64
			if g == 0 && d == iso {
				op = 1
			} else if g > 0 && math.Abs(iso-d) <= thickness*g {
				op = 1 - (1/thickness)*math.Abs(iso-d)/g
			}
			op *= p.params.Opacity

			alpha = alpha*(1-op) + op*255
			red = red*(1-op) + float64(col.R)*op
			green = green*(1-op) + float64(col.G)*op
			blue = blue*(1-op) + float64(col.B)*op
		}
		return color.NRGBA{R: uint8(red), G: uint8(green), B: uint8(blue), A: uint8(alpha)}, true
	}

	return color.NRGBA{}, true
}

// mapRay transforms an image-plane offset and a marching depth into a
// volume coordinate anchored on the volume center.
func mapRay(u, v, w r3.Vec, px, py, pz float64, center r3.Vec) r3.Vec {
	return r3.Vec{
		X: u.X*px + v.X*py + w.X*pz + center.X,
		Y: u.Y*px + v.Y*py + w.Y*pz + center.Y,
		Z: u.Z*px + v.Z*py + w.Z*pz + center.Z,
	}
}

// gray maps a density to an opaque grayscale pixel on the 0..255
// scale, or transparent black for empty space. The ratio is taken
// before scaling so the peak density lands exactly on 255.
func gray(val, max float64) color.NRGBA {
	if max <= 0 {
		return color.NRGBA{}
	}
	level := int(math.Floor(val / max * 255))
	if level <= 0 {
		return color.NRGBA{}
	}
	if level > 255 {
		level = 255
	}
	g := uint8(level)
	return color.NRGBA{R: g, G: g, B: g, A: 255}
}

func vec3(v mgl64.Vec4) r3.Vec {
	return r3.Vec{X: v.X(), Y: v.Y(), Z: v.Z()}
}
