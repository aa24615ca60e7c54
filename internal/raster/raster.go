// Package raster holds the output image helpers and the row-band
// decomposition shared by the rendering engine.
package raster

import (
	"image"
)

// Band is one contiguous run of output raster rows assigned to a
// single worker. Start and End are both inclusive.
type Band struct {
	// Start is the first row of the band.
	Start int

	// End is the last row of the band.
	End int
}

// Partition splits height rows into contiguous bands, one per worker.
// Rows divide by floor; the last band absorbs the remainder. Worker
// counts above height collapse to one band per row so every band holds
// at least one row.
//
// Parameters:
//   - height: total number of rows to cover
//   - workers: requested band count; values below 1 are treated as 1
//
// Returns:
//   - Bands covering exactly [0, height), in order, or nil when height
//     is not positive
func Partition(height, workers int) []Band {
	if height < 1 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > height {
		workers = height
	}

	bands := make([]Band, workers)
	bandHeight := height / workers
	for i := range bands {
		bands[i].Start = i * bandHeight
		bands[i].End = bands[i].Start + bandHeight - 1
	}
	bands[workers-1].End = height - 1
	return bands
}

// NewSquare allocates a side-by-side image cleared to transparent
// black.
func NewSquare(side int) *image.NRGBA {
	return image.NewNRGBA(image.Rect(0, 0, side, side))
}

// Clear resets every pixel of img to transparent black.
func Clear(img *image.NRGBA) {
	for i := range img.Pix {
		img.Pix[i] = 0
	}
}

// Clone returns an independent copy of img that shares no pixel
// storage with the original.
func Clone(img *image.NRGBA) *image.NRGBA {
	out := image.NewNRGBA(img.Rect)
	copy(out.Pix, img.Pix)
	return out
}
