package mask

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "voxelpart/pkg/errors"
	"voxelpart/pkg/raster"
)

// newVolume builds a test volume with the given cells set; every other
// cell is zero.
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

func TestNonZeroSelectsExactlyNonZeroCells(t *testing.T) {
	vol := newVolume(t, [3]int{3, 3, 3}, map[[3]int]float64{
		{0, 0, 0}: 5,
		{1, 2, 0}: -1,
		{2, 2, 2}: 0.25,
	})

	m := NonZero(vol)
	assert.Equal(t, 3, m.Count())
	assert.True(t, m.At(0, 0, 0))
	assert.True(t, m.At(1, 2, 0))
	assert.True(t, m.At(2, 2, 2))
	assert.False(t, m.At(1, 1, 1))
}

func TestEqualMatchesExactValueOnly(t *testing.T) {
	vol := newVolume(t, [3]int{2, 2, 2}, map[[3]int]float64{
		{0, 0, 0}: 7,
		{1, 0, 0}: 7.0000001,
		{0, 1, 0}: 7,
	})

	m := Equal(vol, 7)
	assert.Equal(t, 2, m.Count())
	assert.True(t, m.At(0, 0, 0))
	assert.False(t, m.At(1, 0, 0), "near-equal float must not match")
	assert.True(t, m.At(0, 1, 0))
}

func TestFromSetMembership(t *testing.T) {
	vol := newVolume(t, [3]int{2, 2, 1}, map[[3]int]float64{
		{0, 0, 0}: 10,
		{1, 0, 0}: 20,
		{0, 1, 0}: 30,
	})

	m := FromSet(vol, map[int64]struct{}{10: {}, 30: {}})
	assert.Equal(t, 2, m.Count())
	assert.True(t, m.At(0, 0, 0))
	assert.False(t, m.At(1, 0, 0))
	assert.True(t, m.At(0, 1, 0))
}

func TestUnionAndIntersect(t *testing.T) {
	shape := [3]int{2, 2, 1}
	a := NonZero(newVolume(t, shape, map[[3]int]float64{{0, 0, 0}: 1, {1, 0, 0}: 1}))
	b := NonZero(newVolume(t, shape, map[[3]int]float64{{1, 0, 0}: 1, {1, 1, 0}: 1}))

	union := NonZero(newVolume(t, shape, map[[3]int]float64{{0, 0, 0}: 1, {1, 0, 0}: 1}))
	require.NoError(t, union.Union(b))
	assert.Equal(t, 3, union.Count())

	require.NoError(t, a.Intersect(b))
	assert.Equal(t, 1, a.Count())
	assert.True(t, a.At(1, 0, 0))
}

func TestCombineRejectsShapeMismatch(t *testing.T) {
	a := New([3]int{2, 2, 2})
	b := New([3]int{3, 2, 2})

	err := a.Union(b)
	require.Error(t, err)
	assert.True(t, verrors.IsKind(err, verrors.KindShapeMismatch))

	err = a.Intersect(b)
	require.Error(t, err)
	assert.True(t, verrors.IsKind(err, verrors.KindShapeMismatch))
}

func TestCheckApplicable(t *testing.T) {
	vol := newVolume(t, [3]int{2, 2, 2}, nil)
	m := New([3]int{2, 2, 2})
	assert.NoError(t, m.CheckApplicable(vol))

	other := New([3]int{2, 3, 2})
	err := other.CheckApplicable(vol)
	require.Error(t, err)
	assert.True(t, verrors.IsKind(err, verrors.KindShapeMismatch))
}

func TestCoordinatesRowMajorOrder(t *testing.T) {
	vol := newVolume(t, [3]int{2, 2, 2}, map[[3]int]float64{
		{1, 1, 1}: 1,
		{0, 0, 0}: 1,
		{1, 0, 0}: 1,
		{0, 1, 1}: 1,
	})
	m := NonZero(vol)

	want := [][3]int{
		{0, 0, 0},
		{0, 1, 1},
		{1, 0, 0},
		{1, 1, 1},
	}
	if diff := cmp.Diff(want, m.Coordinates()); diff != "" {
		t.Errorf("coordinate order mismatch (-want +got):\n%s", diff)
	}
}

func TestCoordinatesDeterministic(t *testing.T) {
	vol := newVolume(t, [3]int{4, 3, 2}, map[[3]int]float64{
		{3, 2, 1}: 2,
		{0, 2, 0}: 4,
		{2, 0, 1}: 8,
	})
	m := NonZero(vol)

	first := m.Coordinates()
	second := m.Coordinates()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("enumeration not deterministic (-first +second):\n%s", diff)
	}
}
