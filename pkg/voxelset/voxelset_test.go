package voxelset

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelpart/internal/models"
	verrors "voxelpart/pkg/errors"
	"voxelpart/pkg/mask"
	"voxelpart/pkg/raster"
)

func newVolume(t *testing.T, shape [3]int, cells map[[3]int]float64) *raster.Volume {
	t.Helper()
	data := make([]float64, shape[0]*shape[1]*shape[2])
	for c, v := range cells {
		data[c[0]+shape[0]*(c[1]+shape[1]*c[2])] = v
	}
	vol, err := raster.NewVolume(shape, [3]float64{1, 1, 1}, [3]float64{}, data)
	require.NoError(t, err)
	return vol
}

// twoSourceSet builds a set over a 3x1x1 grid with columns named x and y.
func twoSourceSet(t *testing.T) *VoxelSet {
	t.Helper()
	shape := [3]int{3, 1, 1}
	a := newVolume(t, shape, map[[3]int]float64{{0, 0, 0}: 5, {1, 0, 0}: 3})
	b := newVolume(t, shape, map[[3]int]float64{{1, 0, 0}: 4, {2, 0, 0}: 9})

	m := mask.NonZero(a)
	require.NoError(t, m.Union(mask.NonZero(b)))

	set, err := Build(m, []*raster.Volume{a, b}, []string{"x", "y"},
		[3]float64{2, 2, 2}, [3]float64{10, 0, 0})
	require.NoError(t, err)
	return set
}

func TestBuildRowsMatchMask(t *testing.T) {
	set := twoSourceSet(t)

	assert.Equal(t, 3, set.Len())
	assert.Equal(t, 2, set.NumColumns())
	assert.Equal(t, [3]int{0, 0, 0}, set.Coordinate(0))
	assert.Equal(t, [3]int{1, 0, 0}, set.Coordinate(1))
	assert.Equal(t, [3]int{2, 0, 0}, set.Coordinate(2))

	// A voxel zero in one source but nonzero in another is retained with
	// its actual grid value.
	assert.Equal(t, []float64{5, 0}, set.Row(0))
	assert.Equal(t, []float64{3, 4}, set.Row(1))
	assert.Equal(t, []float64{0, 9}, set.Row(2))
}

func TestColumnByPositionAndKeyAgree(t *testing.T) {
	set := twoSourceSet(t)

	byPos, err := set.Column(0)
	require.NoError(t, err)
	byKey, err := set.ColumnByKey("x")
	require.NoError(t, err)
	assert.Equal(t, byPos, byKey)

	byPos, err = set.Column(1)
	require.NoError(t, err)
	byKey, err = set.ColumnByKey("y")
	require.NoError(t, err)
	assert.Equal(t, byPos, byKey)
}

func TestSelectPreservesRequestedOrder(t *testing.T) {
	set := twoSourceSet(t)

	sub, err := set.Select("y", "x")
	require.NoError(t, err)
	rows, cols := sub.Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 2, cols)
	assert.Equal(t, 0.0, sub.At(0, 0), "first requested column is y")
	assert.Equal(t, 5.0, sub.At(0, 1))
	assert.Equal(t, 9.0, sub.At(2, 0))
}

func TestUnknownColumnKey(t *testing.T) {
	set := twoSourceSet(t)

	_, err := set.ColumnByKey("z")
	require.Error(t, err)
	assert.True(t, verrors.IsKind(err, verrors.KindUnknownColumnKey))
	assert.Contains(t, err.Error(), `"z"`)

	_, err = set.Select("x", "w")
	require.Error(t, err)
	assert.True(t, verrors.IsKind(err, verrors.KindUnknownColumnKey))
}

func TestSelectNoKeys(t *testing.T) {
	set := twoSourceSet(t)

	_, err := set.Select()
	require.Error(t, err)
	assert.True(t, verrors.IsKind(err, verrors.KindValidation))
}

func TestColumnPositionOutOfRange(t *testing.T) {
	set := twoSourceSet(t)
	_, err := set.Column(2)
	require.Error(t, err)
	assert.True(t, verrors.IsKind(err, verrors.KindValidation))
}

func TestKeyCountMismatchRejectedBeforeBuild(t *testing.T) {
	shape := [3]int{2, 1, 1}
	a := newVolume(t, shape, map[[3]int]float64{{0, 0, 0}: 1})
	m := mask.NonZero(a)

	_, err := Build(m, []*raster.Volume{a, a, a}, []string{"x", "y"},
		[3]float64{1, 1, 1}, [3]float64{})
	require.Error(t, err)
	assert.True(t, verrors.IsKind(err, verrors.KindKeyCountMismatch))
}

func TestDuplicateKeysRejected(t *testing.T) {
	shape := [3]int{2, 1, 1}
	a := newVolume(t, shape, map[[3]int]float64{{0, 0, 0}: 1})
	m := mask.NonZero(a)

	_, err := Build(m, []*raster.Volume{a, a}, []string{"x", "x"},
		[3]float64{1, 1, 1}, [3]float64{})
	require.Error(t, err)
	assert.True(t, verrors.IsKind(err, verrors.KindValidation))
}

func TestEmptySelectionRejected(t *testing.T) {
	shape := [3]int{2, 2, 2}
	a := newVolume(t, shape, nil)

	_, err := Build(mask.NonZero(a), []*raster.Volume{a}, nil,
		[3]float64{1, 1, 1}, [3]float64{})
	require.Error(t, err)
	assert.True(t, verrors.IsKind(err, verrors.KindEmptySelection))
}

func TestShapeMismatchRejected(t *testing.T) {
	a := newVolume(t, [3]int{2, 1, 1}, map[[3]int]float64{{0, 0, 0}: 1})
	b := newVolume(t, [3]int{3, 1, 1}, map[[3]int]float64{{0, 0, 0}: 1})

	_, err := Build(mask.NonZero(a), []*raster.Volume{a, b}, nil,
		[3]float64{1, 1, 1}, [3]float64{})
	require.Error(t, err)
	assert.True(t, verrors.IsKind(err, verrors.KindShapeMismatch))
}

func TestRhomboidGeometry(t *testing.T) {
	set := twoSourceSet(t)

	r := set.Rhomboid(1) // coordinate (1,0,0), voxel size 2, origin (10,0,0)
	assert.Equal(t, [3]float64{12, 0, 0}, r.Origin)
	assert.Equal(t, [3]float64{2, 2, 2}, r.Size)
	assert.Equal(t, [3]float64{14, 2, 2}, r.Max())
	assert.Equal(t, 8.0, r.Volume())
}

func TestAnisotropicVoxelSize(t *testing.T) {
	shape := [3]int{1, 2, 1}
	a := newVolume(t, shape, map[[3]int]float64{{0, 1, 0}: 1})

	set, err := Build(mask.NonZero(a), []*raster.Volume{a}, nil,
		[3]float64{10, 20, 30}, [3]float64{})
	require.NoError(t, err)
	r := set.Rhomboid(0)
	assert.Equal(t, [3]float64{0, 20, 0}, r.Origin)
	assert.Equal(t, [3]float64{10, 20, 30}, r.Size)
}

func TestBounds(t *testing.T) {
	set := twoSourceSet(t)

	bounds := set.Bounds()
	assert.Equal(t, [3]float64{10, 0, 0}, bounds.Min)
	assert.Equal(t, [3]float64{16, 2, 2}, bounds.Max)
	assert.Equal(t, [3]float64{6, 2, 2}, bounds.Size())
}

func TestForEachIteratesInOrder(t *testing.T) {
	set := twoSourceSet(t)

	var origins [][3]float64
	var firstColumn []float64
	set.ForEach(func(index int, r models.Rhomboid, row []float64) {
		origins = append(origins, r.Origin)
		firstColumn = append(firstColumn, row[0])
	})

	assert.Equal(t, [][3]float64{{10, 0, 0}, {12, 0, 0}, {14, 0, 0}}, origins)
	assert.Equal(t, []float64{5, 3, 0}, firstColumn)
}

func TestBuildIdempotent(t *testing.T) {
	first := twoSourceSet(t)
	second := twoSourceSet(t)

	require.Equal(t, first.Len(), second.Len())
	for index := 0; index < first.Len(); index++ {
		assert.Equal(t, first.Coordinate(index), second.Coordinate(index))
		assert.Equal(t, first.Row(index), second.Row(index))
	}
}

func TestStats(t *testing.T) {
	set := twoSourceSet(t)

	stats, err := set.Stats(0) // column x: 5, 3, 0
	require.NoError(t, err)
	assert.Equal(t, 0.0, stats.Min)
	assert.Equal(t, 5.0, stats.Max)
	assert.InDelta(t, 8.0/3.0, stats.Mean, 1e-12)
	assert.Greater(t, stats.StdDev, 0.0)
}

func TestWriteCSV(t *testing.T) {
	set := twoSourceSet(t)

	var buf bytes.Buffer
	require.NoError(t, set.WriteCSV(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "i,j,k,x,y,z,x,y", lines[0])
	assert.Equal(t, "0,0,0,10,0,0,5,0", lines[1])
	assert.Equal(t, "2,0,0,14,0,0,0,9", lines[3])
}

func TestCoordinatesStable(t *testing.T) {
	set := twoSourceSet(t)
	want := [][3]int{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}}
	got := make([][3]int, set.Len())
	for index := range got {
		got[index] = set.Coordinate(index)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("coordinates mismatch (-want +got):\n%s", diff)
	}
}
