package ndchunk

import "sync"

// AllocFunc allocates a scratch buffer of exactly size bytes.
type AllocFunc func(size int) ([]byte, error)

// FreeFunc releases a buffer previously returned by an AllocFunc. It is
// always called with the same slice (same length) that was allocated.
type FreeFunc func(buf []byte)

// CompressionParams is carried by the Context and returned by
// Context.Compression. Array operations do not pass it to the ChunkStore
// (ChunkStore.Create takes only the chunk byte size); the only field the
// core reads is ItemSize, in the check done by Context.validateItemSize.
// Concrete backends take their compression settings from their own
// constructor options (e.g. store.WithCompressionLevel).
type CompressionParams struct {
	// Level is a compressor level value (e.g. a zstd encoder level).
	Level int
	// Concurrency is a compression goroutine count.
	Concurrency int
	// ItemSize, when non-zero, pins this Context to one element size;
	// Array operations constructed against it must carry a matching
	// item_size (§6.3: "item_size is carried on the compression
	// parameters and must match Array.item_size").
	ItemSize int
}

// DecompressionParams is carried by the Context and returned by
// Context.Decompression; Array operations do not pass it to the
// ChunkStore on reads.
type DecompressionParams struct {
	Concurrency int
}

// Context carries a user-supplied allocator pair and compression
// parameters threaded through every Array operation. It is read-only for
// the duration of any single operation and may be shared by multiple
// Arrays on a single goroutine; it owns no ChunkStore.
type Context struct {
	alloc   AllocFunc
	free    FreeFunc
	compr   CompressionParams
	decompr DecompressionParams

	pool sync.Pool
}

// Option configures a Context at construction time.
type Option func(*Context)

// WithAllocator overrides the default pooled allocator. Passing nil for
// either function selects the platform default for that half of the pair.
func WithAllocator(alloc AllocFunc, free FreeFunc) Option {
	return func(c *Context) {
		c.alloc = alloc
		c.free = free
	}
}

// WithCompression sets the Context's compression parameters.
func WithCompression(p CompressionParams) Option {
	return func(c *Context) { c.compr = p }
}

// WithDecompression sets the Context's decompression parameters.
func WithDecompression(p DecompressionParams) Option {
	return func(c *Context) { c.decompr = p }
}

// NewContext builds a Context, applying opts in order. With no options the
// Context uses a pooled default allocator and zero-value compression
// parameters (backend defaults).
func NewContext(opts ...Option) *Context {
	c := &Context{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compression returns the Context's compression parameters.
func (c *Context) Compression() CompressionParams { return c.compr }

// Decompression returns the Context's decompression parameters.
func (c *Context) Decompression() DecompressionParams { return c.decompr }

// validateItemSize checks the pinned ItemSize, if any, against an array's
// actual item size.
func (c *Context) validateItemSize(itemSize int) error {
	if c.compr.ItemSize != 0 && c.compr.ItemSize != itemSize {
		return invalidArgf("context pinned to item_size=%d, array has item_size=%d", c.compr.ItemSize, itemSize)
	}
	return nil
}

// allocScratch returns a zero-length-extended, exactly-sized scratch buffer
// for one chunk. When no custom allocator was supplied it is drawn from an
// internal sync.Pool so repeated build/slice/repart calls reuse memory
// instead of allocating and freeing chunk_items*item_size bytes per chunk.
func (c *Context) allocScratch(size int) ([]byte, error) {
	if c.alloc != nil {
		return c.alloc(size)
	}
	if v := c.pool.Get(); v != nil {
		buf := v.([]byte)
		if cap(buf) >= size {
			return buf[:size], nil
		}
	}
	return make([]byte, size), nil
}

// freeScratch releases a buffer returned by allocScratch.
func (c *Context) freeScratch(buf []byte) {
	if c.free != nil {
		c.free(buf)
		return
	}
	c.pool.Put(buf) //nolint:staticcheck // intentional: pool small []byte scratch buffers
}
