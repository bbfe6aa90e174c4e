// Package voxelset builds and exposes the terminal artifact of the
// partition pipeline: an ordered list of selected voxels, each mapped to
// a physical-space rhomboid and a row of per-source data values.
//
// A VoxelSet is constructed once from a finalized mask and one or more
// sources and is read-only afterwards. Voxel ordering is deterministic:
// lexicographically ascending grid coordinates, so building twice from
// identical inputs yields identical voxel ordering and data.
package voxelset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"voxelpart/internal/models"
	verrors "voxelpart/pkg/errors"
	"voxelpart/pkg/mask"
	"voxelpart/pkg/raster"
)

// VoxelSet is an immutable set of selected voxels with their geometry and
// a rows×columns data matrix (rows = voxels, columns = sources).
type VoxelSet struct {
	coords    [][3]int
	data      *mat.Dense
	keys      []string
	keyIndex  map[string]int
	voxelSize [3]float64
	origin    [3]float64
}

// Build constructs a VoxelSet from a finalized mask and the sources it
// selects from. One data column is extracted per source, in declaration
// order. If keys is non-nil it names the columns positionally and must
// have exactly one entry per source.
func Build(m *mask.Mask, sources []*raster.Volume, keys []string, voxelSize [3]float64, origin [3]float64) (*VoxelSet, error) {
	if len(sources) == 0 {
		return nil, verrors.New(verrors.KindValidation, "voxel set needs at least one source")
	}
	if keys != nil && len(keys) != len(sources) {
		return nil, verrors.New(verrors.KindKeyCountMismatch,
			"%d keys declared for %d sources", len(keys), len(sources))
	}
	for axis, vs := range voxelSize {
		if vs <= 0 {
			return nil, verrors.New(verrors.KindValidation,
				"voxel size must be positive, got %g on axis %d", vs, axis)
		}
	}
	for _, src := range sources {
		if err := m.CheckApplicable(src); err != nil {
			return nil, err
		}
	}
	if m.Count() == 0 {
		return nil, verrors.New(verrors.KindEmptySelection,
			"mask selects no voxels over shape %v", m.Shape())
	}

	keyIndex := make(map[string]int, len(keys))
	for pos, key := range keys {
		if _, dup := keyIndex[key]; dup {
			return nil, verrors.New(verrors.KindValidation, "duplicate column key %q", key)
		}
		keyIndex[key] = pos
	}

	coords := m.Coordinates()
	data := mat.NewDense(len(coords), len(sources), nil)
	for row, c := range coords {
		for col, src := range sources {
			data.Set(row, col, src.At(c[0], c[1], c[2]))
		}
	}

	return &VoxelSet{
		coords:    coords,
		data:      data,
		keys:      append([]string(nil), keys...),
		keyIndex:  keyIndex,
		voxelSize: voxelSize,
		origin:    origin,
	}, nil
}

// Len returns the number of voxels in the set.
func (vs *VoxelSet) Len() int {
	return len(vs.coords)
}

// NumColumns returns the number of data columns.
func (vs *VoxelSet) NumColumns() int {
	_, cols := vs.data.Dims()
	return cols
}

// Keys returns the declared column keys, or nil if none were supplied.
func (vs *VoxelSet) Keys() []string {
	if vs.keys == nil {
		return nil
	}
	return append([]string(nil), vs.keys...)
}

// VoxelSize returns the per-axis physical voxel size.
func (vs *VoxelSet) VoxelSize() [3]float64 {
	return vs.voxelSize
}

// Coordinate returns the grid coordinate of voxel index.
func (vs *VoxelSet) Coordinate(index int) [3]int {
	return vs.coords[index]
}

// Rhomboid returns the physical-space box of voxel index:
// origin + coordinate×voxel_size, with the voxel size as extent.
func (vs *VoxelSet) Rhomboid(index int) models.Rhomboid {
	c := vs.coords[index]
	return models.Rhomboid{
		Origin: [3]float64{
			vs.origin[0] + float64(c[0])*vs.voxelSize[0],
			vs.origin[1] + float64(c[1])*vs.voxelSize[1],
			vs.origin[2] + float64(c[2])*vs.voxelSize[2],
		},
		Size: vs.voxelSize,
	}
}

// Row returns the data values of voxel index, one per column.
func (vs *VoxelSet) Row(index int) []float64 {
	return mat.Row(nil, index, vs.data)
}

// Column returns the data column at the given position in source
// declaration order.
func (vs *VoxelSet) Column(pos int) ([]float64, error) {
	if pos < 0 || pos >= vs.NumColumns() {
		return nil, verrors.New(verrors.KindValidation,
			"column position %d out of range, have %d columns", pos, vs.NumColumns())
	}
	return mat.Col(nil, pos, vs.data), nil
}

// ColumnByKey returns the data column with the given declared name.
func (vs *VoxelSet) ColumnByKey(key string) ([]float64, error) {
	pos, ok := vs.keyIndex[key]
	if !ok {
		return nil, verrors.New(verrors.KindUnknownColumnKey,
			"column key %q was not declared", key)
	}
	return mat.Col(nil, pos, vs.data), nil
}

// Select returns a matrix holding the named columns in the requested
// order, regardless of source declaration order.
func (vs *VoxelSet) Select(keys ...string) (*mat.Dense, error) {
	if len(keys) == 0 {
		return nil, verrors.New(verrors.KindValidation, "no column keys requested")
	}
	out := mat.NewDense(vs.Len(), len(keys), nil)
	for outCol, key := range keys {
		pos, ok := vs.keyIndex[key]
		if !ok {
			return nil, verrors.New(verrors.KindUnknownColumnKey,
				"column key %q was not declared", key)
		}
		for row := 0; row < vs.Len(); row++ {
			out.Set(row, outCol, vs.data.At(row, pos))
		}
	}
	return out, nil
}

// Data returns the full data matrix. Callers must not modify it.
func (vs *VoxelSet) Data() *mat.Dense {
	return vs.data
}

// Bounds returns the aggregate bounding box of every voxel rhomboid.
func (vs *VoxelSet) Bounds() models.BoundingBox {
	box := models.BoundingBox{
		Min: [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)},
		Max: [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)},
	}
	for index := range vs.coords {
		box.Extend(vs.Rhomboid(index))
	}
	return box
}

// ForEach calls fn for every voxel in order with its rhomboid geometry
// and data row.
func (vs *VoxelSet) ForEach(fn func(index int, r models.Rhomboid, row []float64)) {
	for index := range vs.coords {
		fn(index, vs.Rhomboid(index), vs.Row(index))
	}
}

// ColumnStats summarizes one data column.
type ColumnStats struct {
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
}

// Stats computes summary statistics for the column at the given position.
func (vs *VoxelSet) Stats(pos int) (ColumnStats, error) {
	col, err := vs.Column(pos)
	if err != nil {
		return ColumnStats{}, err
	}
	min, max := col[0], col[0]
	for _, v := range col[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	mean, std := stat.MeanStdDev(col, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return ColumnStats{Min: min, Max: max, Mean: mean, StdDev: std}, nil
}

// WriteCSV writes the voxel table: grid coordinates, physical origin and
// one column per source, named by key when keys were declared.
func (vs *VoxelSet) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := []string{"i", "j", "k", "x", "y", "z"}
	for pos := 0; pos < vs.NumColumns(); pos++ {
		if vs.keys != nil {
			header = append(header, vs.keys[pos])
		} else {
			header = append(header, fmt.Sprintf("col%d", pos))
		}
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	record := make([]string, 0, len(header))
	for index := range vs.coords {
		record = record[:0]
		c := vs.coords[index]
		r := vs.Rhomboid(index)
		record = append(record,
			strconv.Itoa(c[0]), strconv.Itoa(c[1]), strconv.Itoa(c[2]),
			formatFloat(r.Origin[0]), formatFloat(r.Origin[1]), formatFloat(r.Origin[2]))
		for _, value := range vs.Row(index) {
			record = append(record, formatFloat(value))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
