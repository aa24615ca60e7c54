package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"volviz/pkg/render"
	"volviz/pkg/volume"
)

// testVolume builds a small uniform volume
func testVolume(t *testing.T, density int16) *volume.Volume {
	t.Helper()
	data := make([]int16, 8*8*8)
	for i := range data {
		data[i] = density
	}
	vol, err := volume.New(data, 8, 8, 8)
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	return vol
}

// testParams returns settings every kernel can run with
func testParams() render.Params {
	return render.Params{
		StepSize:   1,
		Resolution: 1,
		Workers:    2,
		Isovalue:   50,
		Opacity:    1,
		Thickness:  2,
	}
}

// TestRenderFrameCompletes verifies a frame renders to completion and
// returns an independent raster copy
func TestRenderFrameCompletes(t *testing.T) {
	r := render.New(render.Maximum, "maximum", nil)
	r.SetVolume(testVolume(t, 100))
	defer r.Stop()

	cam := render.NewCamera(400, 400)
	img, err := RenderFrame(r, cam, testParams())
	if err != nil {
		t.Fatalf("Failed to render frame: %v", err)
	}
	if img.Rect.Dx() != 14 || img.Rect.Dy() != 14 {
		t.Errorf("Expected 14x14 raster, got %dx%d", img.Rect.Dx(), img.Rect.Dy())
	}

	// Mutating the copy must not reach the renderer's raster.
	img.SetNRGBA(0, 0, color.NRGBA{R: 1, A: 1})
	if got := r.Image().NRGBAAt(0, 0); got.R == 1 && got.A == 1 {
		t.Errorf("Expected RenderFrame to return an independent copy")
	}
}

// TestRenderFrameWithoutVolume verifies the missing-volume error path
func TestRenderFrameWithoutVolume(t *testing.T) {
	r := render.New(render.Maximum, "maximum", nil)
	cam := render.NewCamera(400, 400)
	if _, err := RenderFrame(r, cam, testParams()); err == nil {
		t.Errorf("Expected error rendering with no volume loaded")
	}
}

// TestScaleRaster verifies scaling hits the requested size and keeps
// the content
func TestScaleRaster(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 255
	}

	out := ScaleRaster(img, 8)
	if out.Rect.Dx() != 8 || out.Rect.Dy() != 8 {
		t.Fatalf("Expected 8x8 output, got %dx%d", out.Rect.Dx(), out.Rect.Dy())
	}
	if c := out.NRGBAAt(4, 4); c.R != 255 || c.A != 255 {
		t.Errorf("Expected white interior after scaling, got %+v", c)
	}

	// Scaling to the current size returns the raster as is.
	if same := ScaleRaster(img, 4); same != img {
		t.Errorf("Expected no-op scale to return the input")
	}
}

// TestSaveFrameWritesPNG verifies the exported file decodes back to
// the same size
func TestSaveFrameWritesPNG(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 6, 6))
	path := filepath.Join(t.TempDir(), "frame.png")
	if err := SaveFrame(img, path); err != nil {
		t.Fatalf("Failed to save frame: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to reopen frame: %v", err)
	}
	defer file.Close()

	decoded, err := png.Decode(file)
	if err != nil {
		t.Fatalf("Failed to decode frame: %v", err)
	}
	if decoded.Bounds().Dx() != 6 || decoded.Bounds().Dy() != 6 {
		t.Errorf("Expected 6x6 decoded image, got %v", decoded.Bounds())
	}
}

// TestSaveOrbitSequence verifies the turntable writes one numbered
// file per frame
func TestSaveOrbitSequence(t *testing.T) {
	r := render.New(render.Maximum, "maximum", nil)
	r.SetVolume(testVolume(t, 100))
	defer r.Stop()

	cam := render.NewCamera(400, 400)
	dir := filepath.Join(t.TempDir(), "orbit")
	if err := SaveOrbitSequence(r, cam, testParams(), 4, 32, dir); err != nil {
		t.Fatalf("Failed to save orbit sequence: %v", err)
	}

	for i := 0; i < 4; i++ {
		path := filepath.Join(dir, fmt.Sprintf("frame_%03d.png", i))
		if _, err := os.Stat(path); err != nil {
			t.Errorf("Expected frame file %s: %v", path, err)
		}
	}
}

// TestSaveHistogramCSV verifies the dump has one row per density bin
func TestSaveHistogramCSV(t *testing.T) {
	vol := testVolume(t, 100)
	path := filepath.Join(t.TempDir(), "histogram.csv")
	if err := SaveHistogramCSV(vol, path); err != nil {
		t.Fatalf("Failed to save histogram: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read histogram: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	// Header plus bins 0..100.
	if len(lines) != 102 {
		t.Errorf("Expected 102 rows, got %d", len(lines))
	}
	if lines[0] != "density,count,height" {
		t.Errorf("Expected header row, got %q", lines[0])
	}
	if lines[101] != "100,512,22" {
		t.Errorf("Expected peak row '100,512,22', got %q", lines[101])
	}
}
