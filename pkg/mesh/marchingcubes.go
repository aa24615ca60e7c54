// Package mesh extracts triangle isosurfaces from density volumes and
// writes them to binary STL files.
package mesh

import (
	"gonum.org/v1/gonum/spatial/r3"

	"volviz/pkg/volume"
)

// Triangle is a single face of an extracted isosurface. The normal is
// unit length and points away from the region whose density exceeds
// the isovalue.
type Triangle struct {
	// Normal is the face normal, computed from the vertex winding.
	Normal r3.Vec
	// Vertex1, Vertex2 and Vertex3 are the corners in counterclockwise
	// order when viewed from the normal side.
	Vertex1 r3.Vec
	Vertex2 r3.Vec
	Vertex3 r3.Vec
}

// MarchingCubes walks a downsampled vertex grid over a volume and
// produces the triangles where the isosurface crosses each cell.
type MarchingCubes struct {
	vol      *volume.Volume
	isovalue int16
	stride   int
	scale    r3.Vec
}

// NewMarchingCubes creates a mesh extractor over the given volume.
//
// Parameters:
//   - vol: the density volume to extract a surface from
//   - isovalue: the density threshold the surface traces
//   - stride: vertex spacing in voxels; values below 1 are treated as 1
//
// Returns:
//   - A new MarchingCubes instance with unit scale on every axis
func NewMarchingCubes(vol *volume.Volume, isovalue int16, stride int) *MarchingCubes {
	if stride < 1 {
		stride = 1
	}
	return &MarchingCubes{
		vol:      vol,
		isovalue: isovalue,
		stride:   stride,
		scale:    r3.Vec{X: 1, Y: 1, Z: 1},
	}
}

// SetIsovalue changes the density threshold. The next call to
// GenerateTriangles rebuilds the whole mesh; there is no incremental
// update.
func (mc *MarchingCubes) SetIsovalue(isovalue int16) {
	mc.isovalue = isovalue
}

// SetScale sets the voxel spacing applied to vertex positions on each
// axis, for volumes whose samples are not evenly spaced in all three
// directions.
func (mc *MarchingCubes) SetScale(x, y, z float64) {
	mc.scale = r3.Vec{X: x, Y: y, Z: z}
}

// GenerateTriangles extracts the isosurface.
//
// The volume is sampled every stride voxels onto a vertex grid, and
// every cell of that grid is classified against the isovalue. Cells the
// surface crosses contribute triangles whose vertices are interpolated
// along the cell edges to the exact threshold position.
//
// Returns:
//   - The extracted triangles, or nil when the downsampled grid is too
//     small to form a single cell
func (mc *MarchingCubes) GenerateTriangles() []Triangle {
	nx, ny, nz := mc.vol.Dims()
	dimX := nx / mc.stride
	dimY := ny / mc.stride
	dimZ := nz / mc.stride
	if dimX < 2 || dimY < 2 || dimZ < 2 {
		return nil
	}

	values := make([]int16, dimX*dimY*dimZ)
	for k := 0; k < dimZ; k++ {
		for j := 0; j < dimY; j++ {
			for i := 0; i < dimX; i++ {
				values[i+dimX*(j+dimY*k)] = mc.vol.Sample(i*mc.stride, j*mc.stride, k*mc.stride)
			}
		}
	}

	var triangles []Triangle
	var corner [8]int16
	var pos [8]r3.Vec
	var cut [12]r3.Vec
	for k := 0; k < dimZ-1; k++ {
		for j := 0; j < dimY-1; j++ {
			for i := 0; i < dimX-1; i++ {
				mask := 0
				for n, off := range cornerOffsets {
					ci, cj, ck := i+off[0], j+off[1], k+off[2]
					corner[n] = values[ci+dimX*(cj+dimY*ck)]
					pos[n] = r3.Vec{
						X: float64(ci*mc.stride) * mc.scale.X,
						Y: float64(cj*mc.stride) * mc.scale.Y,
						Z: float64(ck*mc.stride) * mc.scale.Z,
					}
					if corner[n] > mc.isovalue {
						mask |= 1 << n
					}
				}
				if mask == 0 || mask == 255 {
					continue
				}

				edges := edgeTable[mask]
				for e, c := range edgeCorners {
					if edges&(1<<e) == 0 {
						continue
					}
					// The surface crosses this edge, so the two corner
					// densities straddle the isovalue and cannot be equal.
					v1, v2 := corner[c[0]], corner[c[1]]
					delta := float64(mc.isovalue-v1) / float64(v2-v1)
					cut[e] = r3.Add(pos[c[0]], r3.Scale(delta, r3.Sub(pos[c[1]], pos[c[0]])))
				}

				row := triangleTable[mask]
				for t := 0; t < len(row); t += 3 {
					tri := Triangle{
						Vertex1: cut[row[t]],
						Vertex2: cut[row[t+1]],
						Vertex3: cut[row[t+2]],
					}
					n := r3.Cross(r3.Sub(tri.Vertex2, tri.Vertex1), r3.Sub(tri.Vertex3, tri.Vertex1))
					if r3.Norm(n) > 0 {
						tri.Normal = r3.Unit(n)
					}
					triangles = append(triangles, tri)
				}
			}
		}
	}
	return triangles
}
