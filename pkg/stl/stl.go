// Package stl exports voxel partitions as binary STL meshes. Every
// selected voxel contributes its axis-aligned rhomboid as 12 triangles,
// which is enough for downstream visualization of a partition's spatial
// extent.
package stl

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"voxelpart/internal/models"
	"voxelpart/pkg/voxelset"
)

// Triangle represents a single triangle in the STL mesh.
type Triangle struct {
	// Normal is the face normal vector.
	Normal [3]float32

	// Vertex1, Vertex2, Vertex3 are the corners of the triangle.
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
}

// FromRhomboid triangulates one axis-aligned box into 12 triangles with
// outward-facing normals.
func FromRhomboid(r models.Rhomboid) []Triangle {
	o := r.Origin
	m := r.Max()

	corner := func(x, y, z bool) [3]float32 {
		p := o
		if x {
			p[0] = m[0]
		}
		if y {
			p[1] = m[1]
		}
		if z {
			p[2] = m[2]
		}
		return [3]float32{float32(p[0]), float32(p[1]), float32(p[2])}
	}

	c000 := corner(false, false, false)
	c100 := corner(true, false, false)
	c010 := corner(false, true, false)
	c110 := corner(true, true, false)
	c001 := corner(false, false, true)
	c101 := corner(true, false, true)
	c011 := corner(false, true, true)
	c111 := corner(true, true, true)

	return []Triangle{
		{Normal: [3]float32{-1, 0, 0}, Vertex1: c000, Vertex2: c001, Vertex3: c011},
		{Normal: [3]float32{-1, 0, 0}, Vertex1: c000, Vertex2: c011, Vertex3: c010},
		{Normal: [3]float32{1, 0, 0}, Vertex1: c100, Vertex2: c110, Vertex3: c111},
		{Normal: [3]float32{1, 0, 0}, Vertex1: c100, Vertex2: c111, Vertex3: c101},
		{Normal: [3]float32{0, -1, 0}, Vertex1: c000, Vertex2: c100, Vertex3: c101},
		{Normal: [3]float32{0, -1, 0}, Vertex1: c000, Vertex2: c101, Vertex3: c001},
		{Normal: [3]float32{0, 1, 0}, Vertex1: c010, Vertex2: c011, Vertex3: c111},
		{Normal: [3]float32{0, 1, 0}, Vertex1: c010, Vertex2: c111, Vertex3: c110},
		{Normal: [3]float32{0, 0, -1}, Vertex1: c000, Vertex2: c010, Vertex3: c110},
		{Normal: [3]float32{0, 0, -1}, Vertex1: c000, Vertex2: c110, Vertex3: c100},
		{Normal: [3]float32{0, 0, 1}, Vertex1: c001, Vertex2: c101, Vertex3: c111},
		{Normal: [3]float32{0, 0, 1}, Vertex1: c001, Vertex2: c111, Vertex3: c011},
	}
}

// FromVoxelSet triangulates every voxel rhomboid of the set.
func FromVoxelSet(set *voxelset.VoxelSet) []Triangle {
	triangles := make([]Triangle, 0, set.Len()*12)
	set.ForEach(func(index int, r models.Rhomboid, row []float64) {
		triangles = append(triangles, FromRhomboid(r)...)
	})
	return triangles
}

// Write emits the triangles as a binary STL stream: an 80-byte header,
// a uint32 triangle count and 50 bytes per triangle.
func Write(w io.Writer, name string, triangles []Triangle) error {
	header := make([]byte, 80)
	copy(header, name)
	if _, err := w.Write(header); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(triangles))); err != nil {
		return err
	}
	for _, tri := range triangles {
		for _, vec := range [][3]float32{tri.Normal, tri.Vertex1, tri.Vertex2, tri.Vertex3} {
			if err := binary.Write(w, binary.LittleEndian, vec); err != nil {
				return err
			}
		}
		// Attribute byte count, unused.
		if err := binary.Write(w, binary.LittleEndian, uint16(0)); err != nil {
			return err
		}
	}
	return nil
}

// Save writes the triangles to an STL file at path.
func Save(path, name string, triangles []Triangle) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating STL file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := Write(w, name, triangles); err != nil {
		return err
	}
	return w.Flush()
}
