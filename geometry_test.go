package ndchunk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func dims(t *testing.T, ext ...int) Dims {
	t.Helper()
	d, err := NewDims(ext...)
	require.NoError(t, err)
	return d
}

// regionVolume returns the product of (stop[i]-start[i]).
func regionVolume(start, stop []int) int {
	v := 1
	for i := range start {
		v *= stop[i] - start[i]
	}
	return v
}

// touchedElements sums run lengths across all touches, which must equal
// the region volume exactly once decomposeRegion has partitioned it with
// no gaps or overlaps.
func touchedElements(touches []chunkTouch) int {
	n := 0
	for _, touch := range touches {
		for _, run := range touch.Runs {
			n += run.Length
		}
	}
	return n
}

func TestExtendedShapeAndChunkGrid(t *testing.T) {
	shape := dims(t, 10, 10)
	chunkShape := dims(t, 3, 3)
	ext := extendedShape(shape, chunkShape)
	require.Equal(t, []int{12, 12}, ext.Slice())
	grid := chunkGrid(shape, chunkShape)
	require.Equal(t, []int{4, 4}, grid.Slice())
}

func TestExtendedShapeExactMultiple(t *testing.T) {
	shape := dims(t, 4, 3, 3)
	chunkShape := dims(t, 2, 2, 2)
	ext := extendedShape(shape, chunkShape)
	require.Equal(t, []int{4, 4, 4}, ext.Slice())
}

func TestDecomposeRegionFullCoverage(t *testing.T) {
	// shape=(134,56,204), chunk=(26,17,34) — full-array region.
	shape := dims(t, 134, 56, 204)
	chunkShape := dims(t, 26, 17, 34)
	start := []int{0, 0, 0}
	stop := shape.Slice()
	touches, err := decomposeRegion(shape, chunkShape, start, stop)
	require.NoError(t, err)

	grid := chunkGrid(shape, chunkShape)
	require.Equal(t, grid.Product(), len(touches))
	require.Equal(t, regionVolume(start, stop), touchedElements(touches))
}

func TestDecomposeRegionRank7(t *testing.T) {
	shape := dims(t, 12, 15, 24, 16, 12, 8, 7)
	chunkShape := dims(t, 5, 7, 9, 8, 5, 3, 7)
	start := make([]int, 7)
	stop := shape.Slice()
	touches, err := decomposeRegion(shape, chunkShape, start, stop)
	require.NoError(t, err)
	require.Equal(t, regionVolume(start, stop), touchedElements(touches))

	grid := chunkGrid(shape, chunkShape)
	require.Equal(t, grid.Product(), len(touches))
}

func TestDecomposeRegionPartialSlice(t *testing.T) {
	// shape=(10,10), chunk=(3,3), region [2,2)-(8,9).
	shape := dims(t, 10, 10)
	chunkShape := dims(t, 3, 3)
	start := []int{2, 2}
	stop := []int{8, 9}

	touches, err := decomposeRegion(shape, chunkShape, start, stop)
	require.NoError(t, err)
	require.Equal(t, regionVolume(start, stop), touchedElements(touches))

	// Region spans chunk rows 0..2 and chunk cols 0..2 -> 3x3 = 9 touches.
	require.Len(t, touches, 9)
}

func TestDecomposeRegionNoOverlapBetweenTouches(t *testing.T) {
	shape := dims(t, 10, 10)
	chunkShape := dims(t, 3, 3)
	start := []int{2, 2}
	stop := []int{8, 9}
	touches, err := decomposeRegion(shape, chunkShape, start, stop)
	require.NoError(t, err)

	seen := map[[2]int]bool{}
	for _, touch := range touches {
		for _, run := range touch.Runs {
			for i := 0; i < run.Length; i++ {
				coord := [2]int{run.Coord[0], run.Coord[1] + i}
				require.False(t, seen[coord], "coordinate %v covered twice", coord)
				seen[coord] = true
			}
		}
	}
	require.Equal(t, regionVolume(start, stop), len(seen))
}

func TestDecomposeRegionSingleChunkDegenerate(t *testing.T) {
	// Rank-8 plain-buffer case: chunk_shape == shape.
	shape := dims(t, 2, 2, 2, 2, 2, 2, 2, 2)
	touches, err := decomposeRegion(shape, shape, make([]int, 8), shape.Slice())
	require.NoError(t, err)
	require.Len(t, touches, 1)
	require.Equal(t, 0, touches[0].ChunkIndex)
	require.Equal(t, shape.Product(), touchedElements(touches))
}

func TestDecomposeRegionRejectsOutOfBounds(t *testing.T) {
	shape := dims(t, 4, 4)
	chunkShape := dims(t, 2, 2)
	_, err := decomposeRegion(shape, chunkShape, []int{0, 0}, []int{5, 4})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = decomposeRegion(shape, chunkShape, []int{2, 0}, []int{1, 4})
	require.Error(t, err)
}

func TestDecomposeRegionRejectsRankMismatch(t *testing.T) {
	shape := dims(t, 4, 4)
	chunkShape := dims(t, 2, 2)
	_, err := decomposeRegion(shape, chunkShape, []int{0, 0, 0}, []int{4, 4, 1})
	require.Error(t, err)
}

func TestRowMajorStrides(t *testing.T) {
	shape := dims(t, 2, 3, 4)
	strides := rowMajorStrides(shape)
	require.Equal(t, []int{12, 4, 1}, strides)
}
