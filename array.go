package ndchunk

import "context"

// Array owns a ChunkStore handle plus the geometry triple (shape,
// chunk_shape, ext_shape) and implements build/materialize/slice/fill/
// squeeze on top of the chunk geometry and region-decomposition primitives
// in geometry.go. An Array is created empty (zero chunks, shape possibly
// undefined) and becomes built by appending exactly the expected number of
// chunks; once built, in-place shape mutation is restricted to Squeeze.
type Array struct {
	cctx  *Context
	store ChunkStore

	itemSize   int
	chunkShape Dims
	shape      Dims
	extShape   Dims
	hasShape   bool
	built      bool
}

// checkInvariants re-establishes §3's invariants 1-2 for a (shape,
// chunk_shape) pair: every axis's chunk extent must not exceed the shape
// extent, and the resulting extended shape must be an exact multiple of
// the chunk shape (true by construction of extendedShape, checked here as
// a defensive re-derivation for persisted/loaded geometry).
func checkInvariants(shape, chunkShape Dims) error {
	if shape.Rank() != chunkShape.Rank() {
		return invalidArgf("shape rank %d does not match chunk_shape rank %d", shape.Rank(), chunkShape.Rank())
	}
	for i := 0; i < shape.Rank(); i++ {
		if chunkShape.Extent(i) > shape.Extent(i) {
			return invalidArgf("chunk_shape[%d]=%d exceeds shape[%d]=%d", i, chunkShape.Extent(i), i, shape.Extent(i))
		}
	}
	ext := extendedShape(shape, chunkShape)
	for i := 0; i < shape.Rank(); i++ {
		if ext.Extent(i)%chunkShape.Extent(i) != 0 {
			return invalidArgf("extended shape[%d]=%d is not a multiple of chunk_shape[%d]=%d", i, ext.Extent(i), i, chunkShape.Extent(i))
		}
	}
	return nil
}

// Empty creates an array with its chunk geometry fixed but its logical
// shape undefined; it becomes built by a later FromBuffer or Fill, or as
// the destination of GetSlice or Repart (§4.2). itemSize must match the
// Context's pinned item size, if any (§6.3).
func Empty(ctx context.Context, cctx *Context, store ChunkStore, chunkShape Dims, itemSize int) (*Array, error) {
	if itemSize <= 0 {
		return nil, invalidArgf("item_size must be positive, got %d", itemSize)
	}
	if err := cctx.validateItemSize(itemSize); err != nil {
		return nil, err
	}
	chunkBytes := chunkShape.Product() * itemSize
	if err := store.Create(ctx, chunkBytes); err != nil {
		return nil, storeErrf(err, "create store")
	}
	return &Array{
		cctx:       cctx,
		store:      store,
		itemSize:   itemSize,
		chunkShape: chunkShape,
	}, nil
}

// EmptyShaped creates an array with both its chunk geometry and its
// logical shape fixed up front. It fails if any chunk_shape[i] exceeds the
// corresponding shape[i] (§4.2).
func EmptyShaped(ctx context.Context, cctx *Context, store ChunkStore, shape, chunkShape Dims, itemSize int) (*Array, error) {
	a, err := Empty(ctx, cctx, store, chunkShape, itemSize)
	if err != nil {
		return nil, err
	}
	if err := a.UpdateShape(shape); err != nil {
		return nil, err
	}
	return a, nil
}

// Open reconstructs an Array from a ChunkStore whose persisted §6.1
// metadata record and chunk count already satisfy every invariant of §3
// (from_file, §4.2). The store must already be opened by the caller.
func Open(ctx context.Context, cctx *Context, store ChunkStore) (*Array, error) {
	shape, chunkShape, itemSize, err := readMetadata(ctx, store)
	if err != nil {
		return nil, err
	}
	if err := cctx.validateItemSize(itemSize); err != nil {
		return nil, err
	}
	return &Array{
		cctx:       cctx,
		store:      store,
		itemSize:   itemSize,
		chunkShape: chunkShape,
		shape:      shape,
		extShape:   extendedShape(shape, chunkShape),
		hasShape:   true,
		built:      true,
	}, nil
}

// UpdateShape fixes or changes an empty array's logical shape prior to
// building it. It is a no-op from the caller's perspective beyond
// recomputing the extended shape; it never touches the ChunkStore.
func (a *Array) UpdateShape(shape Dims) error {
	if a.built {
		return invalidStatef("cannot update shape of a built array")
	}
	if shape.Rank() != a.chunkShape.Rank() {
		return invalidArgf("shape rank %d does not match chunk_shape rank %d", shape.Rank(), a.chunkShape.Rank())
	}
	for i := 0; i < shape.Rank(); i++ {
		if a.chunkShape.Extent(i) > shape.Extent(i) {
			return invalidArgf("chunk_shape[%d]=%d exceeds shape[%d]=%d", i, a.chunkShape.Extent(i), i, shape.Extent(i))
		}
	}
	a.shape = shape
	a.extShape = extendedShape(shape, a.chunkShape)
	a.hasShape = true
	return nil
}

func (a *Array) chunkBytes() int { return a.chunkShape.Product() * a.itemSize }

// FromBuffer populates an empty array from a contiguous row-major src of
// shape.Product()*item_size bytes, per the §4.2 protocol: set the shape,
// then append chunk_shape-sized scratch buffers in row-major grid order,
// each filled from its logical intersection with src and left unspecified
// in its padding area.
func (a *Array) FromBuffer(ctx context.Context, shape Dims, src []byte) error {
	if a.built {
		return invalidStatef("array is already built")
	}
	if err := a.UpdateShape(shape); err != nil {
		return err
	}
	wantLen := shape.Product() * a.itemSize
	if len(src) != wantLen {
		return invalidArgf("src has %d bytes, expected %d (shape.Product()*item_size)", len(src), wantLen)
	}

	full := zeros(shape.Rank())
	touches, err := decomposeRegion(shape, a.chunkShape, full, shape.Slice())
	if err != nil {
		return err
	}

	srcStrides := rowMajorStrides(shape)
	chunkBytes := a.chunkBytes()
	appended := 0
	for _, touch := range touches {
		scratch, err := a.cctx.allocScratch(chunkBytes)
		if err != nil {
			return allocErrf(err, "allocate scratch chunk")
		}
		for _, run := range touch.Runs {
			dstOff := run.InChunkOffset * a.itemSize
			srcOff := run.FlatOffset(srcStrides) * a.itemSize
			n := run.Length * a.itemSize
			copy(scratch[dstOff:dstOff+n], src[srcOff:srcOff+n])
		}
		count, err := a.store.Append(ctx, scratch, chunkBytes)
		a.cctx.freeScratch(scratch)
		if err != nil {
			return storeErrf(err, "append chunk %d", touch.ChunkIndex)
		}
		appended++
		if count != appended {
			return storeErrf(nil, "store chunk count %d does not match appended count %d", count, appended)
		}
	}

	expected := chunkGrid(shape, a.chunkShape).Product()
	if appended != expected {
		return invalidStatef("appended %d chunks, expected %d", appended, expected)
	}
	if err := writeMetadata(ctx, a.store, a.shape, a.chunkShape, a.itemSize); err != nil {
		return err
	}
	a.built = true
	return nil
}

// Fill populates an empty array so that every logical element equals the
// item_size bytes in value; padding bytes remain unspecified (§4.2).
func (a *Array) Fill(ctx context.Context, shape Dims, value []byte) error {
	if a.built {
		return invalidStatef("array is already built")
	}
	if len(value) != a.itemSize {
		return invalidArgf("value has %d bytes, expected item_size=%d", len(value), a.itemSize)
	}
	if err := a.UpdateShape(shape); err != nil {
		return err
	}

	full := zeros(shape.Rank())
	touches, err := decomposeRegion(shape, a.chunkShape, full, shape.Slice())
	if err != nil {
		return err
	}

	chunkBytes := a.chunkBytes()
	appended := 0
	for _, touch := range touches {
		scratch, err := a.cctx.allocScratch(chunkBytes)
		if err != nil {
			return allocErrf(err, "allocate scratch chunk")
		}
		for _, run := range touch.Runs {
			off := run.InChunkOffset * a.itemSize
			for i := 0; i < run.Length; i++ {
				copy(scratch[off+i*a.itemSize:off+(i+1)*a.itemSize], value)
			}
		}
		count, err := a.store.Append(ctx, scratch, chunkBytes)
		a.cctx.freeScratch(scratch)
		if err != nil {
			return storeErrf(err, "append chunk %d", touch.ChunkIndex)
		}
		appended++
		if count != appended {
			return storeErrf(nil, "store chunk count %d does not match appended count %d", count, appended)
		}
	}

	expected := chunkGrid(shape, a.chunkShape).Product()
	if appended != expected {
		return invalidStatef("appended %d chunks, expected %d", appended, expected)
	}
	if err := writeMetadata(ctx, a.store, a.shape, a.chunkShape, a.itemSize); err != nil {
		return err
	}
	a.built = true
	return nil
}

// ToBuffer copies every logical element of a, in row-major order over
// shape, into dest (§4.3). Each chunk is decompressed exactly once; border
// chunks contribute only their logical intersection with shape, so no
// padding byte is ever copied.
func (a *Array) ToBuffer(ctx context.Context, dest []byte) error {
	if !a.built {
		return invalidStatef("array is not built")
	}
	wantLen := a.shape.Product() * a.itemSize
	if len(dest) != wantLen {
		return invalidArgf("dest has %d bytes, expected %d", len(dest), wantLen)
	}
	return a.readRegionInto(ctx, dest, zeros(a.shape.Rank()), a.shape.Slice())
}

// GetSliceBuffer copies the region [start, stop) of a into dest, a tightly
// packed row-major buffer of (stop-start).Product()*item_size bytes
// (§4.4's plain-buffer sibling).
func (a *Array) GetSliceBuffer(ctx context.Context, dest []byte, start, stop []int) error {
	if !a.built {
		return invalidStatef("array is not built")
	}
	regionItems := 1
	for i := range start {
		regionItems *= stop[i] - start[i]
	}
	wantLen := regionItems * a.itemSize
	if len(dest) != wantLen {
		return invalidArgf("dest has %d bytes, expected %d", len(dest), wantLen)
	}
	return a.readRegionInto(ctx, dest, start, stop)
}

func (a *Array) readRegionInto(ctx context.Context, dest []byte, start, stop []int) error {
	touches, err := decomposeRegion(a.shape, a.chunkShape, start, stop)
	if err != nil {
		return err
	}
	regionExt := make([]int, len(start))
	for i := range start {
		regionExt[i] = stop[i] - start[i]
	}
	regionShape, err := NewDims(regionExt...)
	if err != nil {
		return err
	}
	regionStrides := rowMajorStrides(regionShape)

	chunkBytes := a.chunkBytes()
	for _, touch := range touches {
		scratch, err := a.cctx.allocScratch(chunkBytes)
		if err != nil {
			return allocErrf(err, "allocate scratch chunk")
		}
		if err := a.store.DecompressChunk(ctx, touch.ChunkIndex, scratch); err != nil {
			a.cctx.freeScratch(scratch)
			return storeErrf(err, "decompress chunk %d", touch.ChunkIndex)
		}
		for _, run := range touch.Runs {
			srcOff := run.InChunkOffset * a.itemSize
			dstOff := run.FlatOffset(regionStrides) * a.itemSize
			n := run.Length * a.itemSize
			copy(dest[dstOff:dstOff+n], scratch[srcOff:srcOff+n])
		}
		a.cctx.freeScratch(scratch)
	}
	return nil
}

// SetSliceBuffer writes a tightly packed row-major buffer src into the
// region [start, stop) of a built array (§4.4). It is the only mutation
// operation on a built array; it never resizes or re-chunks.
//
// Because a chunk can only be modified by reading it, patching it, and
// re-appending a full chunk, ChunkStore implementations used with
// SetSliceBuffer must support overwriting a chunk at its existing index;
// store.Blob and store.Memory both do.
func (a *Array) SetSliceBuffer(ctx context.Context, src []byte, start, stop []int) error {
	if !a.built {
		return invalidStatef("array is not built")
	}
	regionItems := 1
	for i := range start {
		regionItems *= stop[i] - start[i]
	}
	wantLen := regionItems * a.itemSize
	if len(src) != wantLen {
		return invalidArgf("src has %d bytes, expected %d", len(src), wantLen)
	}

	touches, err := decomposeRegion(a.shape, a.chunkShape, start, stop)
	if err != nil {
		return err
	}
	regionExt := make([]int, len(start))
	for i := range start {
		regionExt[i] = stop[i] - start[i]
	}
	regionShape, err := NewDims(regionExt...)
	if err != nil {
		return err
	}
	regionStrides := rowMajorStrides(regionShape)

	chunkBytes := a.chunkBytes()
	mutable, ok := a.store.(mutableChunkStore)
	if !ok {
		return storeErrf(nil, "store does not support in-place chunk mutation required by SetSliceBuffer")
	}
	for _, touch := range touches {
		scratch, err := a.cctx.allocScratch(chunkBytes)
		if err != nil {
			return allocErrf(err, "allocate scratch chunk")
		}
		if err := a.store.DecompressChunk(ctx, touch.ChunkIndex, scratch); err != nil {
			a.cctx.freeScratch(scratch)
			return storeErrf(err, "decompress chunk %d", touch.ChunkIndex)
		}
		for _, run := range touch.Runs {
			dstOff := run.InChunkOffset * a.itemSize
			srcOff := run.FlatOffset(regionStrides) * a.itemSize
			n := run.Length * a.itemSize
			copy(scratch[dstOff:dstOff+n], src[srcOff:srcOff+n])
		}
		err = mutable.ReplaceChunk(ctx, touch.ChunkIndex, scratch, chunkBytes)
		a.cctx.freeScratch(scratch)
		if err != nil {
			return storeErrf(err, "replace chunk %d", touch.ChunkIndex)
		}
	}
	return nil
}

// GetSlice builds dest, currently empty, as the region [start, stop) of
// src, using dest's own pre-configured chunk shape (§4.4). For every dest
// chunk (iterated in grid order) it computes the corresponding source
// region and applies decomposeRegion against src's geometry to fill a
// scratch destination chunk directly — source and destination chunk
// shapes may differ.
func GetSlice(ctx context.Context, dest, src *Array, start, stop []int) error {
	if dest.built {
		return invalidStatef("destination array is already built")
	}
	if !src.built {
		return invalidStatef("source array is not built")
	}
	if dest.itemSize != src.itemSize {
		return invalidArgf("destination item_size=%d does not match source item_size=%d", dest.itemSize, src.itemSize)
	}
	rank := src.shape.Rank()
	if len(start) != rank || len(stop) != rank {
		return invalidArgf("region rank %d/%d does not match array rank %d", len(start), len(stop), rank)
	}
	for i := 0; i < rank; i++ {
		if start[i] < 0 || stop[i] <= start[i] || stop[i] > src.shape.Extent(i) {
			return invalidArgf("region [%v,%v) out of bounds at axis %d (shape extent %d)", start, stop, i, src.shape.Extent(i))
		}
	}

	newShapeExt := make([]int, rank)
	for i := 0; i < rank; i++ {
		newShapeExt[i] = stop[i] - start[i]
	}
	newShape, err := NewDims(newShapeExt...)
	if err != nil {
		return err
	}
	if err := dest.UpdateShape(newShape); err != nil {
		return err
	}

	destGrid := chunkGrid(newShape, dest.chunkShape)
	destChunkStrides := rowMajorStrides(dest.chunkShape)
	destChunkBytes := dest.chunkBytes()
	full := zeros(rank)
	destTouches, err := decomposeRegion(newShape, dest.chunkShape, full, newShape.Slice())
	if err != nil {
		return err
	}

	appended := 0
	for _, dt := range destTouches {
		scratch, err := dest.cctx.allocScratch(destChunkBytes)
		if err != nil {
			return allocErrf(err, "allocate scratch chunk")
		}

		// The local logical box of this dest chunk, clipped to newShape.
		boxStart := make([]int, rank)
		boxStop := make([]int, rank)
		for i := 0; i < rank; i++ {
			origin := dt.GridCoord[i] * dest.chunkShape.Extent(i)
			boxStart[i] = start[i] + origin
			boxStop[i] = boxStart[i] + min(dest.chunkShape.Extent(i), newShape.Extent(i)-origin)
		}

		srcTouches, err := decomposeRegion(src.shape, src.chunkShape, boxStart, boxStop)
		if err != nil {
			dest.cctx.freeScratch(scratch)
			return err
		}
		srcChunkBytes := src.chunkBytes()
		for _, st := range srcTouches {
			srcScratch, err := src.cctx.allocScratch(srcChunkBytes)
			if err != nil {
				dest.cctx.freeScratch(scratch)
				return allocErrf(err, "allocate scratch chunk")
			}
			if err := src.store.DecompressChunk(ctx, st.ChunkIndex, srcScratch); err != nil {
				src.cctx.freeScratch(srcScratch)
				dest.cctx.freeScratch(scratch)
				return storeErrf(err, "decompress source chunk %d", st.ChunkIndex)
			}
			for _, run := range st.Runs {
				srcOff := run.InChunkOffset * src.itemSize
				// run.Coord is relative to boxStart, which is exactly
				// the dest chunk's own local origin (in-chunk coord 0),
				// so it doubles as the dest chunk's in-chunk coordinate.
				dstOff := run.FlatOffset(destChunkStrides) * dest.itemSize
				n := run.Length * src.itemSize
				copy(scratch[dstOff:dstOff+n], srcScratch[srcOff:srcOff+n])
			}
			src.cctx.freeScratch(srcScratch)
		}

		count, err := dest.store.Append(ctx, scratch, destChunkBytes)
		dest.cctx.freeScratch(scratch)
		if err != nil {
			return storeErrf(err, "append chunk %d", dt.ChunkIndex)
		}
		appended++
		if count != appended {
			return storeErrf(nil, "store chunk count %d does not match appended count %d", count, appended)
		}
	}

	if appended != destGrid.Product() {
		return invalidStatef("appended %d chunks, expected %d", appended, destGrid.Product())
	}
	if err := writeMetadata(ctx, dest.store, dest.shape, dest.chunkShape, dest.itemSize); err != nil {
		return err
	}
	dest.built = true
	return nil
}

// Repart rewrites src into dest using dest's own pre-set chunk shape; it is
// equivalent to GetSlice(dest, src, 0, src.shape) and must match it
// bit-for-bit (§4.5).
func Repart(ctx context.Context, dest, src *Array) error {
	if !src.built {
		return invalidStatef("source array is not built")
	}
	return GetSlice(ctx, dest, src, zeros(src.shape.Rank()), src.shape.Slice())
}

// Squeeze removes every axis i with shape[i] == 1 and chunk_shape[i] == 1,
// rewriting only geometry metadata; the physical ChunkStore is left
// untouched (§4.6). It fails if an axis has shape[i] == 1 but
// chunk_shape[i] != 1, since removing it would change the serialized chunk
// layout.
func (a *Array) Squeeze() error {
	if !a.built {
		return invalidStatef("array is not built")
	}
	rank := a.shape.Rank()
	var newShape, newChunk []int
	for i := 0; i < rank; i++ {
		s, c := a.shape.Extent(i), a.chunkShape.Extent(i)
		if s == 1 {
			if c != 1 {
				return invalidArgf("axis %d has shape=1 but chunk_shape=%d; squeezing would change the serialized layout", i, c)
			}
			continue
		}
		newShape = append(newShape, s)
		newChunk = append(newChunk, c)
	}
	if len(newShape) == 0 {
		return invalidArgf("squeeze would drop every axis; at least one axis must survive")
	}
	shape, err := NewDims(newShape...)
	if err != nil {
		return err
	}
	chunkShape, err := NewDims(newChunk...)
	if err != nil {
		return err
	}
	a.shape = shape
	a.chunkShape = chunkShape
	a.extShape = extendedShape(shape, chunkShape)
	return nil
}

// Shape returns the array's current logical shape.
func (a *Array) Shape() Dims { return a.shape }

// ChunkShape returns the array's chunk shape.
func (a *Array) ChunkShape() Dims { return a.chunkShape }

// ItemSize returns the number of bytes per element.
func (a *Array) ItemSize() int { return a.itemSize }

// Rank returns the array's current rank.
func (a *Array) Rank() int {
	if !a.hasShape {
		return a.chunkShape.Rank()
	}
	return a.shape.Rank()
}

// IsBuilt reports whether the array has completed its expected chunk
// append sequence.
func (a *Array) IsBuilt() bool { return a.built }

// Close releases the array's ChunkStore.
func (a *Array) Close() error {
	if err := a.store.Close(); err != nil {
		return storeErrf(err, "close store")
	}
	return nil
}

// Equal is a structural-equality predicate: it compares two built arrays
// element-wise via the same chunk-by-chunk traversal ToBuffer uses,
// failing fast on a shape or item_size mismatch before touching any chunk
// (§4.7).
func Equal(ctx context.Context, a, b *Array) (bool, error) {
	if !a.built || !b.built {
		return false, invalidStatef("both arrays must be built to compare")
	}
	if a.itemSize != b.itemSize {
		return false, nil
	}
	if !a.shape.Equal(b.shape) {
		return false, nil
	}
	bufA := make([]byte, a.shape.Product()*a.itemSize)
	bufB := make([]byte, b.shape.Product()*b.itemSize)
	if err := a.ToBuffer(ctx, bufA); err != nil {
		return false, err
	}
	if err := b.ToBuffer(ctx, bufB); err != nil {
		return false, err
	}
	if len(bufA) != len(bufB) {
		return false, nil
	}
	for i := range bufA {
		if bufA[i] != bufB[i] {
			return false, nil
		}
	}
	return true, nil
}

func zeros(n int) []int { return make([]int, n) }

// mutableChunkStore is an optional capability a ChunkStore backend may
// implement to support SetSliceBuffer's in-place chunk rewrite; it is not
// part of the core §6.2 ChunkStore contract because most store backends
// are write-once/append-only and only need to support it when the caller
// actually mutates a built array.
type mutableChunkStore interface {
	ReplaceChunk(ctx context.Context, k int, buf []byte, chunkBytes int) error
}
