package ndchunk

// This file is the N-D chunking engine proper: pure, stateless functions
// over (shape, chunk_shape) pairs. Nothing here touches a ChunkStore or
// allocates a scratch buffer; array.go layers all of build/materialize/
// slice/fill on top of decomposeRegion, the single traversal
// primitive described in the design notes.

// extendedShape rounds shape up, per axis, to a multiple of chunkShape:
// ext_shape[i] = ceil(shape[i]/chunk_shape[i]) * chunk_shape[i].
func extendedShape(shape, chunkShape Dims) Dims {
	rank := shape.Rank()
	ext := make([]int, rank)
	for i := 0; i < rank; i++ {
		s, c := shape.Extent(i), chunkShape.Extent(i)
		g := (s + c - 1) / c
		ext[i] = g * c
	}
	// extents are always >= 1 here since shape/chunkShape extents are
	// strictly positive, so NewDims cannot fail.
	d, _ := NewDims(ext...)
	return d
}

// chunkGrid returns G[i] = ext_shape[i] / chunk_shape[i], the number of
// chunks tiling axis i.
func chunkGrid(shape, chunkShape Dims) Dims {
	ext := extendedShape(shape, chunkShape)
	rank := shape.Rank()
	g := make([]int, rank)
	for i := 0; i < rank; i++ {
		g[i] = ext.Extent(i) / chunkShape.Extent(i)
	}
	d, _ := NewDims(g...)
	return d
}

// rowMajorStrides computes C-order strides for the first rank entries of
// ext: strides[rank-1] = 1, strides[i] = strides[i+1] * ext[i+1].
func rowMajorStrides(ext Dims) []int {
	rank := ext.Rank()
	strides := make([]int, rank)
	stride := 1
	for i := rank - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= ext.Extent(i)
	}
	return strides
}

// dotStrides computes the flat offset a coordinate maps to under a given
// set of row-major strides; it is used both for in-chunk offsets (§4.1:
// o = sum_i r_i * prod_{j>i} chunk_shape[j]) and chunk-grid indices
// (k = sum_i g_i * prod_{j>i} G[j]), and by callers of chunkRun.Coord that
// need to flatten it against a buffer of their choosing.
func dotStrides(coord []int, strides []int) int {
	o := 0
	for i, c := range coord {
		o += c * strides[i]
	}
	return o
}

// chunkRun describes one contiguous, last-axis-aligned run of elements
// shared between a chunk's physical layout and a logical region.
type chunkRun struct {
	// InChunkOffset is the element offset of the run's first element
	// within its own chunk's row-major layout (chunk_shape strides).
	InChunkOffset int
	// Coord is the run's starting coordinate relative to the region's
	// own origin (element i = global coordinate - start[i]), length
	// rank. A border chunk's logical box always starts at in-chunk
	// coordinate 0 on every axis, so when a run's region is itself one
	// chunk-sized box aligned to a chunk boundary, Coord doubles as that
	// chunk's own in-chunk coordinate — callers exploit this in
	// chunk-to-chunk copies (get_slice, repart) to avoid decoding a flat
	// offset back into a coordinate.
	Coord []int
	// Length is the number of elements in the run, measured along the
	// last axis.
	Length int
}

// FlatOffset flattens Coord against the given row-major strides — typically
// either a flat region buffer's own strides, or a sibling chunk's
// chunk_shape strides when Coord is being reused as an in-chunk coordinate.
func (r chunkRun) FlatOffset(strides []int) int {
	return dotStrides(r.Coord, strides)
}

// chunkTouch is one chunk touched by a region request, together with the
// contiguous runs inside it that intersect the region.
type chunkTouch struct {
	ChunkIndex int
	GridCoord  []int
	Runs       []chunkRun
}

// decomposeRegion implements §4.1's region decomposition: it determines the
// minimal set of chunks touched by the half-open region [start, stop) over
// shape/chunkShape, and within each chunk the minimal set of contiguous
// last-axis runs needed to cover the chunk's intersection with the region.
//
// It is the sole algorithmic primitive behind from_buffer, to_buffer, fill,
// get_slice, get_slice_buffer, set_slice_buffer and repart; every one of
// those operations reduces to "decompose a region, then memcpy each run".
// Touched chunks are produced in row-major chunk-grid order, matching the
// append order the ChunkStore chunk-index contract depends on (§5).
func decomposeRegion(shape, chunkShape Dims, start, stop []int) ([]chunkTouch, error) {
	rank := shape.Rank()
	if len(start) != rank || len(stop) != rank {
		return nil, invalidArgf("region rank %d/%d does not match array rank %d", len(start), len(stop), rank)
	}
	for i := 0; i < rank; i++ {
		if start[i] < 0 || stop[i] <= start[i] || stop[i] > shape.Extent(i) {
			return nil, invalidArgf("region [%v,%v) out of bounds at axis %d (shape extent %d)", start, stop, i, shape.Extent(i))
		}
	}

	grid := chunkGrid(shape, chunkShape)
	gridStrides := rowMajorStrides(grid)
	chunkStrides := rowMajorStrides(chunkShape)

	touchedLo := make([]int, rank)
	touchedHi := make([]int, rank) // inclusive
	numTouches := 1
	for i := 0; i < rank; i++ {
		c := chunkShape.Extent(i)
		touchedLo[i] = start[i] / c
		touchedHi[i] = (stop[i] - 1) / c
		numTouches *= touchedHi[i] - touchedLo[i] + 1
	}

	touches := make([]chunkTouch, 0, numTouches)
	gridCoord := make([]int, rank)

	var walkGrid func(axis int) error
	walkGrid = func(axis int) error {
		if axis == rank {
			touch := decomposeOneChunk(gridCoord, chunkShape, gridStrides, chunkStrides, start, stop)
			touches = append(touches, touch)
			return nil
		}
		for g := touchedLo[axis]; g <= touchedHi[axis]; g++ {
			gridCoord[axis] = g
			if err := walkGrid(axis + 1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walkGrid(0); err != nil {
		return nil, err
	}
	return touches, nil
}

// decomposeOneChunk computes the contiguous last-axis runs for a single
// touched chunk: for every fixed prefix in the chunk/region intersection,
// one run spanning the last axis (§4.1 step 3).
func decomposeOneChunk(gridCoord []int, chunkShape Dims, gridStrides, chunkStrides []int, start, stop []int) chunkTouch {
	rank := chunkShape.Rank()
	lo := make([]int, rank)
	hi := make([]int, rank)
	origin := make([]int, rank) // g_i * chunk_shape[i], in global element coords
	for i := 0; i < rank; i++ {
		origin[i] = gridCoord[i] * chunkShape.Extent(i)
		loGlobal := max(start[i], origin[i])
		hiGlobal := min(stop[i], origin[i]+chunkShape.Extent(i))
		lo[i] = loGlobal - origin[i]
		hi[i] = hiGlobal - origin[i]
	}

	coord := make([]int, rank)
	copy(coord, lo)
	last := rank - 1

	var runs []chunkRun
	emitRun := func() {
		regionCoord := make([]int, rank)
		for i := 0; i < rank; i++ {
			regionCoord[i] = origin[i] + coord[i] - start[i]
		}
		runs = append(runs, chunkRun{
			InChunkOffset: dotStrides(coord, chunkStrides),
			Coord:         regionCoord,
			Length:        hi[last] - lo[last],
		})
	}

	if rank == 1 {
		emitRun()
	} else {
		var walkPrefix func(axis int)
		walkPrefix = func(axis int) {
			if axis == last {
				coord[last] = lo[last]
				emitRun()
				return
			}
			for r := lo[axis]; r < hi[axis]; r++ {
				coord[axis] = r
				walkPrefix(axis + 1)
			}
		}
		walkPrefix(0)
	}

	gc := make([]int, rank)
	copy(gc, gridCoord)
	return chunkTouch{
		ChunkIndex: dotStrides(gridCoord, gridStrides),
		GridCoord:  gc,
		Runs:       runs,
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
