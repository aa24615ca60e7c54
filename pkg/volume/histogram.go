package volume

import "math"

// Histogram is the density distribution of a volume with one bin per
// density value, compacted with a square root so a handful of dominant
// bins cannot flatten the rest.
type Histogram struct {
	// Counts holds the raw occurrence count per density value, indexed
	// from 0 up to the volume's maximum density
	Counts []int

	// Heights holds the square-root compacted counts used for display
	// and noise-floor estimation
	Heights []int

	// Peak is the density value with the highest count
	Peak int16

	// NoiseFloor is the first density past the peak whose compacted
	// height drops below a fifth of the peak height. Densities below it
	// are usually background noise and render fully transparent.
	NoiseFloor int16
}

// ComputeHistogram counts density occurrences across the whole volume.
// Negative densities are skipped; the bins cover 0 up to the maximum
// density inclusive.
//
// Returns:
//   - The histogram with compacted heights, peak and noise floor filled in
func (v *Volume) ComputeHistogram() *Histogram {
	maxDensity := int(v.MaxDensity())
	if maxDensity < 0 {
		return &Histogram{}
	}

	counts := make([]int, maxDensity+1)
	for _, d := range v.data {
		if d >= 0 {
			counts[d]++
		}
	}

	heights := make([]int, len(counts))
	peak := 0
	for i, c := range counts {
		heights[i] = int(math.Sqrt(float64(c)))
		if heights[i] > heights[peak] {
			peak = i
		}
	}

	h := &Histogram{Counts: counts, Heights: heights, Peak: int16(peak)}
	for i := peak + 1; i < len(heights); i++ {
		if float64(heights[i]) < 0.2*float64(heights[peak]) {
			h.NoiseFloor = int16(i)
			break
		}
	}
	return h
}
