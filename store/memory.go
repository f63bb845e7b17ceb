// Package store provides concrete ChunkStore backends for the ndchunk
// container: Memory (dependency-free, in-process), Blob (gocloud.dev/blob +
// zstd, for file/S3/GCS/Azure-backed persistence), and Plain (the
// degenerate single-allocation backend for the plain-buffer case).
package store

import (
	"context"
	"sync"

	"github.com/TuSKan/ndchunk"
)

// Memory is a dependency-free, in-process ChunkStore. It performs no
// compression and no I/O; it exists for unit tests and for callers that
// want the chunked layout without persistence.
type Memory struct {
	mu         sync.Mutex
	chunkBytes int
	chunks     [][]byte
	metadata   []byte
}

var (
	_ ndchunk.ChunkStore = (*Memory)(nil)
)

// NewMemory returns an unopened Memory store; call Create before using it.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Create(ctx context.Context, chunkBytes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunkBytes = chunkBytes
	m.chunks = nil
	return nil
}

func (m *Memory) Append(ctx context.Context, buf []byte, chunkBytes int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if chunkBytes != m.chunkBytes {
		return 0, errMismatchedChunkSize(chunkBytes, m.chunkBytes)
	}
	cp := make([]byte, chunkBytes)
	copy(cp, buf)
	m.chunks = append(m.chunks, cp)
	return len(m.chunks), nil
}

func (m *Memory) DecompressChunk(ctx context.Context, k int, dst []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if k < 0 || k >= len(m.chunks) {
		return errOutOfRange(k, len(m.chunks))
	}
	if len(dst) < m.chunkBytes {
		return errShortDst(len(dst), m.chunkBytes)
	}
	copy(dst, m.chunks[k])
	return nil
}

// ReplaceChunk overwrites chunk k in place, satisfying the optional
// mutable-store capability SetSliceBuffer requires.
func (m *Memory) ReplaceChunk(ctx context.Context, k int, buf []byte, chunkBytes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if k < 0 || k >= len(m.chunks) {
		return errOutOfRange(k, len(m.chunks))
	}
	if chunkBytes != m.chunkBytes {
		return errMismatchedChunkSize(chunkBytes, m.chunkBytes)
	}
	copy(m.chunks[k], buf)
	return nil
}

func (m *Memory) ChunkCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chunks)
}

func (m *Memory) Metadata(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metadata, nil
}

func (m *Memory) SetMetadata(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata = append([]byte(nil), data...)
	return nil
}

func (m *Memory) Close() error { return nil }
