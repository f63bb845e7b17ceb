package ndchunk

import "context"

// ChunkStore is the external, opaque collaborator this package consumes
// for persistence and per-chunk byte compression (§6.2). It is an
// append-only, indexable container of fixed-size (pre-compression) byte
// blobs with a side-channel metadata record. Array owns a ChunkStore
// exclusively; it is never shared between Arrays.
//
// Concrete implementations live in the store subpackage (store.Blob,
// store.Memory, store.Plain); the core makes no assumption about
// compressor identity, thread-count, or filter pipeline beyond what this
// interface exposes.
type ChunkStore interface {
	// Create opens an empty store with a fixed per-chunk byte size
	// (chunk_items * item_size, pre-compression). It must be called
	// before any Append.
	Create(ctx context.Context, chunkBytes int) error

	// Append writes one chunk of exactly chunkBytes bytes (the size
	// passed to Create) and returns the new total chunk count. Chunks
	// are appended in row-major chunk-grid order by the core; the
	// returned count must equal the prior count plus one.
	Append(ctx context.Context, buf []byte, chunkBytes int) (int, error)

	// DecompressChunk materializes chunk k into dst, which must have
	// length >= chunkBytes (the value passed to Create/Append). It
	// returns a StoreError-class error for an out-of-range index or a
	// corrupted/short blob.
	DecompressChunk(ctx context.Context, k int, dst []byte) error

	// ChunkCount returns the number of chunks currently stored.
	ChunkCount() int

	// Metadata returns the opaque metadata bytes last set via
	// SetMetadata, or nil if none has been set.
	Metadata(ctx context.Context) ([]byte, error)

	// SetMetadata stores the opaque metadata bytes used by the §6.1
	// persistence record.
	SetMetadata(ctx context.Context, data []byte) error

	// Close releases the store, flushing any buffered state.
	Close() error
}
