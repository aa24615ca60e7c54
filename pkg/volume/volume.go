// Package volume provides the scalar density field backing the renderer.
// It handles AVS field file loading, point and trilinear sampling, and
// gradient estimation over a regular 3D grid of int16 densities.
package volume

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// Volume is a dense 3D scalar field sampled on a regular grid.
// Densities are stored in x-fastest order: the sample at (x, y, z) lives
// at index x + nx*(y + ny*z).
type Volume struct {
	// data holds the densities in x-fastest order
	data []int16

	// nx, ny and nz are the grid dimensions along each axis
	nx, ny, nz int
}

// New creates a volume from a flat density slice and its grid dimensions.
//
// Parameters:
//   - data: Densities in x-fastest order, length must equal nx*ny*nz
//   - nx, ny, nz: Grid dimensions, all must be positive
//
// Returns:
//   - A new Volume wrapping the given densities
//   - An error if the dimensions are invalid or do not match the data length
func New(data []int16, nx, ny, nz int) (*Volume, error) {
	if nx <= 0 || ny <= 0 || nz <= 0 {
		return nil, fmt.Errorf("invalid volume dimensions %dx%dx%d", nx, ny, nz)
	}
	if len(data) != nx*ny*nz {
		return nil, fmt.Errorf("volume data length %d does not match dimensions %dx%dx%d",
			len(data), nx, ny, nz)
	}
	return &Volume{data: data, nx: nx, ny: ny, nz: nz}, nil
}

// Dims returns the grid dimensions along the x, y and z axes.
func (v *Volume) Dims() (nx, ny, nz int) {
	return v.nx, v.ny, v.nz
}

// Sample returns the density at an integer grid position. Positions
// outside the grid sample as zero rather than an error, so callers can
// probe freely near the boundary.
func (v *Volume) Sample(x, y, z int) int16 {
	if x < 0 || v.nx <= x || y < 0 || v.ny <= y || z < 0 || v.nz <= z {
		return 0
	}
	return v.data[x+v.nx*(y+v.ny*z)]
}

// Trilinear returns the density at an arbitrary point using trilinear
// interpolation over the eight surrounding grid samples. If any of the
// eight corners falls outside the grid the whole sample is rejected and
// zero is returned; boundary rays therefore fade to empty space instead
// of smearing edge densities outward.
//
// Parameters:
//   - p: Sampling position in volume coordinates
//
// Returns:
//   - The interpolated density, rounded to the nearest integer
func (v *Volume) Trilinear(p r3.Vec) int16 {
	fx, cx := int(math.Floor(p.X)), int(math.Ceil(p.X))
	fy, cy := int(math.Floor(p.Y)), int(math.Ceil(p.Y))
	fz, cz := int(math.Floor(p.Z)), int(math.Ceil(p.Z))
	if fx < 0 || v.nx <= cx || fy < 0 || v.ny <= cy || fz < 0 || v.nz <= cz {
		return 0
	}

	alpha := p.X - float64(fx)
	beta := p.Y - float64(fy)
	gamma := p.Z - float64(fz)

	var sum float64
	for i := 0; i < 8; i++ {
		x, wx := fx, 1-alpha
		if i%2 == 1 {
			x, wx = cx, alpha
		}
		y, wy := fy, 1-beta
		if (i/2)%2 == 1 {
			y, wy = cy, beta
		}
		z, wz := fz, 1-gamma
		if i/4 == 1 {
			z, wz = cz, gamma
		}
		sum += wx * wy * wz * float64(v.Sample(x, y, z))
	}
	return int16(math.Floor(sum + 0.5))
}

// Gradient estimates the density gradient at an arbitrary point using
// central differences at the nearest grid sample. Neighbor indices are
// clamped to the grid, so boundary samples degrade to one-sided
// differences. Points outside the grid return the zero vector.
//
// Parameters:
//   - p: Sampling position in volume coordinates
//
// Returns:
//   - The gradient vector (dx, dy, dz)
func (v *Volume) Gradient(p r3.Vec) r3.Vec {
	x := int(math.Floor(p.X + 0.5))
	y := int(math.Floor(p.Y + 0.5))
	z := int(math.Floor(p.Z + 0.5))
	if x < 0 || v.nx <= x || y < 0 || v.ny <= y || z < 0 || v.nz <= z {
		return r3.Vec{}
	}
	return r3.Vec{
		X: 0.5 * float64(v.Sample(min(x+1, v.nx-1), y, z)-v.Sample(max(x-1, 0), y, z)),
		Y: 0.5 * float64(v.Sample(x, min(y+1, v.ny-1), z)-v.Sample(x, max(y-1, 0), z)),
		Z: 0.5 * float64(v.Sample(x, y, min(z+1, v.nz-1))-v.Sample(x, y, max(z-1, 0))),
	}
}

// Diagonal returns the length of the bounding-box diagonal. Ray casters
// use it to size both the output raster and the marching distance, so a
// rotating volume never escapes the view.
func (v *Volume) Diagonal() float64 {
	return math.Sqrt(float64(v.nx*v.nx + v.ny*v.ny + v.nz*v.nz))
}

// Center returns the grid center with integer division per axis,
// matching the rounding the ray casters expect when anchoring rays.
func (v *Volume) Center() r3.Vec {
	return r3.Vec{
		X: float64(v.nx / 2),
		Y: float64(v.ny / 2),
		Z: float64(v.nz / 2),
	}
}

// MinDensity returns the smallest density in the volume.
func (v *Volume) MinDensity() int16 {
	m := v.data[0]
	for _, d := range v.data {
		if d < m {
			m = d
		}
	}
	return m
}

// MaxDensity returns the largest density in the volume.
func (v *Volume) MaxDensity() int16 {
	m := v.data[0]
	for _, d := range v.data {
		if d > m {
			m = d
		}
	}
	return m
}

// Rotate turns the volume 180 degrees about the x axis in place.
// Scanner output is typically stored upside down relative to the
// renderer's coordinate frame; one half turn after loading puts it
// upright.
func (v *Volume) Rotate() {
	rotated := make([]int16, len(v.data))
	for k := 0; k < v.nz; k++ {
		for j := 0; j < v.ny; j++ {
			for i := 0; i < v.nx; i++ {
				rotated[i+v.nx*((v.ny-1-j)+v.ny*(v.nz-1-k))] = v.data[i+v.nx*(j+v.ny*k)]
			}
		}
	}
	v.data = rotated
}

// Stats summarizes the density distribution of a volume.
type Stats struct {
	// Min and Max are the density extremes
	Min, Max int16

	// Mean is the average density across all samples
	Mean float64

	// StdDev is the standard deviation of the densities
	StdDev float64
}

// ComputeStats calculates summary statistics over every sample in the
// volume.
//
// Returns:
//   - A Stats value with the density extremes, mean and standard deviation
func (v *Volume) ComputeStats() Stats {
	samples := make([]float64, len(v.data))
	for i, d := range v.data {
		samples[i] = float64(d)
	}
	mean, std := stat.MeanStdDev(samples, nil)
	return Stats{
		Min:    v.MinDensity(),
		Max:    v.MaxDensity(),
		Mean:   mean,
		StdDev: std,
	}
}
