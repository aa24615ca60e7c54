package raster

import (
	"image"
	"image/color"
	"testing"
)

// TestPartitionCoversHeight verifies that for every worker count the
// bands tile [0, height) exactly: no gaps, no overlaps, no empty
// bands.
func TestPartitionCoversHeight(t *testing.T) {
	heights := []int{1, 2, 3, 7, 16, 33, 256}
	for _, height := range heights {
		for workers := 1; workers <= height; workers++ {
			bands := Partition(height, workers)
			if len(bands) != workers {
				t.Fatalf("height %d workers %d: got %d bands", height, workers, len(bands))
			}
			if bands[0].Start != 0 {
				t.Errorf("height %d workers %d: first band starts at %d", height, workers, bands[0].Start)
			}
			for i, b := range bands {
				if b.Start > b.End {
					t.Errorf("height %d workers %d: band %d is empty (%d..%d)", height, workers, i, b.Start, b.End)
				}
				if i > 0 && b.Start != bands[i-1].End+1 {
					t.Errorf("height %d workers %d: band %d starts at %d after end %d", height, workers, i, b.Start, bands[i-1].End)
				}
			}
			if last := bands[len(bands)-1]; last.End != height-1 {
				t.Errorf("height %d workers %d: last band ends at %d, want %d", height, workers, last.End, height-1)
			}
		}
	}
}

// TestPartitionAbsorbsRemainder verifies that rows left over by the
// floor division all land in the final band.
func TestPartitionAbsorbsRemainder(t *testing.T) {
	want := []Band{{0, 1}, {2, 3}, {4, 5}, {6, 9}}
	bands := Partition(10, 4)
	if len(bands) != len(want) {
		t.Fatalf("Expected %d bands, got %d", len(want), len(bands))
	}
	for i, b := range bands {
		if b != want[i] {
			t.Errorf("Band %d = %+v, want %+v", i, b, want[i])
		}
	}
}

// TestPartitionClampsWorkers verifies out-of-range worker counts.
func TestPartitionClampsWorkers(t *testing.T) {
	if bands := Partition(3, 8); len(bands) != 3 {
		t.Errorf("Expected one band per row, got %d bands", len(bands))
	}
	if bands := Partition(5, 0); len(bands) != 1 || bands[0] != (Band{0, 4}) {
		t.Errorf("Expected a single full band, got %+v", bands)
	}
	if bands := Partition(0, 4); bands != nil {
		t.Errorf("Expected nil for zero height, got %+v", bands)
	}
}

// TestClear verifies that every pixel resets to transparent black.
func TestClear(t *testing.T) {
	img := NewSquare(4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}

	Clear(img)
	for i, p := range img.Pix {
		if p != 0 {
			t.Fatalf("Pixel byte %d = %d after clear, want 0", i, p)
		}
	}
}

// TestClone verifies the copy matches and shares no storage.
func TestClone(t *testing.T) {
	img := NewSquare(3)
	img.SetNRGBA(1, 2, color.NRGBA{R: 200, A: 255})

	dup := Clone(img)
	if dup.Rect != image.Rect(0, 0, 3, 3) {
		t.Fatalf("Clone bounds = %v", dup.Rect)
	}
	if got := dup.NRGBAAt(1, 2); got != (color.NRGBA{R: 200, A: 255}) {
		t.Errorf("Clone pixel = %+v", got)
	}

	img.SetNRGBA(1, 2, color.NRGBA{B: 50, A: 255})
	if got := dup.NRGBAAt(1, 2); got != (color.NRGBA{R: 200, A: 255}) {
		t.Errorf("Clone shares storage with original: %+v", got)
	}
}
