// Package visualization is the offscreen presentation layer: it drives
// renderers to completion, scales the resulting rasters and writes
// them to PNG files, and exports histogram data for external plotting.
package visualization

import (
	"encoding/csv"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	xdraw "golang.org/x/image/draw"

	"volviz/pkg/render"
	"volviz/pkg/volume"
)

// frameTimeout bounds how long RenderFrame waits for a pass to finish.
// A renderer that has not settled by then is treated as stalled.
const frameTimeout = 30 * time.Second

// RenderFrame drives one frame to completion: it hands the renderer
// the camera's current view and the frame settings, waits for the
// recompute to finish, and returns a copy of the raster.
//
// Parameters:
//   - r: the renderer to drive
//   - cam: the camera supplying the view rotation
//   - p: the frame settings
//
// Returns:
//   - A copy of the completed raster
//   - An error if no volume is loaded or the pass never settles
func RenderFrame(r *render.Renderer, cam *render.Camera, p render.Params) (*image.NRGBA, error) {
	r.Render(cam.ViewMatrix(), p)

	deadline := time.Now().Add(frameTimeout)
	for r.Computing() {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("renderer %s stalled: no completed pass within %s", r.Name(), frameTimeout)
		}
		time.Sleep(time.Millisecond)
	}

	img := r.Image()
	if img == nil {
		return nil, fmt.Errorf("renderer %s has no volume loaded", r.Name())
	}
	return img, nil
}

// ScaleRaster resizes a raster to a square of the given side length
// using bilinear filtering.
func ScaleRaster(img *image.NRGBA, size int) *image.NRGBA {
	if size < 1 {
		size = 1
	}
	if img.Rect.Dx() == size && img.Rect.Dy() == size {
		return img
	}
	out := image.NewNRGBA(image.Rect(0, 0, size, size))
	xdraw.ApproxBiLinear.Scale(out, out.Rect, img, img.Rect, xdraw.Src, nil)
	return out
}

// SaveFrame writes an image as a PNG file
func SaveFrame(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, img)
}

// SaveOrbitSequence renders a turntable of the volume: frames evenly
// spaced rotations about the vertical axis, each rendered to
// completion, scaled to size and written as a numbered PNG in
// outputDir.
//
// Parameters:
//   - r: the renderer to drive
//   - cam: the camera, advanced in place between frames
//   - p: the frame settings
//   - frames: number of frames covering the full turn
//   - size: output side length in pixels
//   - outputDir: directory receiving frame_NNN.png files
//
// Returns:
//   - An error if rendering or writing any frame fails
func SaveOrbitSequence(r *render.Renderer, cam *render.Camera, p render.Params, frames, size int, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}
	if frames < 1 {
		frames = 1
	}

	step := 360.0 / float64(frames)
	for i := 0; i < frames; i++ {
		img, err := RenderFrame(r, cam, p)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("frame_%03d.png", i))
		if err := SaveFrame(ScaleRaster(img, size), filename); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}

		cam.Orbit(mgl64.Vec3{0, 1, 0}, step)
	}
	return nil
}

// SaveHistogramCSV writes a volume's density histogram as CSV rows of
// density, raw count and compacted height, for plotting outside the
// renderer.
func SaveHistogramCSV(vol *volume.Volume, filename string) error {
	hist := vol.ComputeHistogram()

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"density", "count", "height"}); err != nil {
		return err
	}
	for i, count := range hist.Counts {
		row := []string{
			strconv.Itoa(i),
			strconv.Itoa(count),
			strconv.Itoa(hist.Heights[i]),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
