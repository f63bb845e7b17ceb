package store

import (
	"context"
	"sync"

	"github.com/TuSKan/ndchunk"
)

// Plain is the §9 "plain buffer" backend: the degenerate case where
// chunk_shape equals shape, so the array is exactly one chunk. Append is a
// single contiguous allocation instead of an appendable chunk sequence, and
// DecompressChunk is a memcpy — there is no compression and no padding to
// speak of once shape == chunk_shape, but the type still satisfies the full
// ChunkStore contract so Array cannot tell it apart from a chunked store.
type Plain struct {
	mu         sync.Mutex
	chunkBytes int
	data       []byte
	written    bool
	metadata   []byte
}

var _ ndchunk.ChunkStore = (*Plain)(nil)

// NewPlain returns an unopened Plain store; call Create before using it.
func NewPlain() *Plain { return &Plain{} }

func (p *Plain) Create(ctx context.Context, chunkBytes int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chunkBytes = chunkBytes
	p.data = nil
	p.written = false
	return nil
}

func (p *Plain) Append(ctx context.Context, buf []byte, chunkBytes int) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if chunkBytes != p.chunkBytes {
		return 0, errMismatchedChunkSize(chunkBytes, p.chunkBytes)
	}
	if p.written {
		return 0, errOutOfRange(1, 1)
	}
	p.data = make([]byte, chunkBytes)
	copy(p.data, buf)
	p.written = true
	return 1, nil
}

func (p *Plain) DecompressChunk(ctx context.Context, k int, dst []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if k != 0 || !p.written {
		return errOutOfRange(k, countLocked(p.written))
	}
	if len(dst) < p.chunkBytes {
		return errShortDst(len(dst), p.chunkBytes)
	}
	copy(dst, p.data)
	return nil
}

// ReplaceChunk overwrites the single chunk in place.
func (p *Plain) ReplaceChunk(ctx context.Context, k int, buf []byte, chunkBytes int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if k != 0 || !p.written {
		return errOutOfRange(k, countLocked(p.written))
	}
	if chunkBytes != p.chunkBytes {
		return errMismatchedChunkSize(chunkBytes, p.chunkBytes)
	}
	copy(p.data, buf)
	return nil
}

func (p *Plain) ChunkCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return countLocked(p.written)
}

// countLocked computes the chunk count from state already read under
// p.mu; callers holding the lock must use this instead of ChunkCount,
// which takes the lock itself and would deadlock on sync.Mutex's
// non-reentrant Lock.
func countLocked(written bool) int {
	if written {
		return 1
	}
	return 0
}

func (p *Plain) Metadata(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metadata, nil
}

func (p *Plain) SetMetadata(ctx context.Context, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metadata = append([]byte(nil), data...)
	return nil
}

func (p *Plain) Close() error { return nil }
