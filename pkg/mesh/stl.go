package mesh

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"gonum.org/v1/gonum/spatial/r3"
)

// stlFacet is the 50-byte wire layout of one binary STL facet.
type stlFacet struct {
	Normal    [3]float32
	Vertex1   [3]float32
	Vertex2   [3]float32
	Vertex3   [3]float32
	Attribute uint16
}

// WriteSTL writes the triangles to w in binary STL format.
//
// Parameters:
//   - w: destination for the encoded mesh
//   - triangles: the mesh to encode
//
// Returns:
//   - An error if writing fails
func WriteSTL(w io.Writer, triangles []Triangle) error {
	var header [80]byte
	copy(header[:], "volviz isosurface mesh")
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("failed to write STL header: %v", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(triangles))); err != nil {
		return fmt.Errorf("failed to write triangle count: %v", err)
	}

	for i, tri := range triangles {
		facet := stlFacet{
			Normal:  vec32(tri.Normal),
			Vertex1: vec32(tri.Vertex1),
			Vertex2: vec32(tri.Vertex2),
			Vertex3: vec32(tri.Vertex3),
		}
		if err := binary.Write(w, binary.LittleEndian, facet); err != nil {
			return fmt.Errorf("failed to write triangle %d: %v", i, err)
		}
	}
	return nil
}

// SaveToSTL writes the triangles to a binary STL file at the given
// path, replacing any existing file.
//
// Parameters:
//   - path: output file path
//   - triangles: the mesh to save
//
// Returns:
//   - An error if the file cannot be created or written
func SaveToSTL(path string, triangles []Triangle) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create STL file: %v", err)
	}
	defer file.Close()

	bw := bufio.NewWriter(file)
	if err := WriteSTL(bw, triangles); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush STL file: %v", err)
	}
	return nil
}

func vec32(v r3.Vec) [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}
