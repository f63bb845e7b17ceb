package ndchunk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContextDefaultAllocator(t *testing.T) {
	c := NewContext()
	buf, err := c.allocScratch(16)
	require.NoError(t, err)
	require.Len(t, buf, 16)
	c.freeScratch(buf)

	buf2, err := c.allocScratch(16)
	require.NoError(t, err)
	require.Len(t, buf2, 16)
}

func TestContextCustomAllocator(t *testing.T) {
	var allocated, freed int
	c := NewContext(WithAllocator(
		func(size int) ([]byte, error) {
			allocated++
			return make([]byte, size), nil
		},
		func(buf []byte) { freed++ },
	))
	buf, err := c.allocScratch(8)
	require.NoError(t, err)
	require.Len(t, buf, 8)
	c.freeScratch(buf)
	require.Equal(t, 1, allocated)
	require.Equal(t, 1, freed)
}

func TestContextValidateItemSize(t *testing.T) {
	c := NewContext(WithCompression(CompressionParams{ItemSize: 4}))
	require.NoError(t, c.validateItemSize(4))
	require.Error(t, c.validateItemSize(8))

	unpinned := NewContext()
	require.NoError(t, unpinned.validateItemSize(4))
	require.NoError(t, unpinned.validateItemSize(8))
}

func TestContextCompressionDecompressionAccessors(t *testing.T) {
	c := NewContext(
		WithCompression(CompressionParams{Level: 5, Concurrency: 2}),
		WithDecompression(DecompressionParams{Concurrency: 3}),
	)
	require.Equal(t, 5, c.Compression().Level)
	require.Equal(t, 2, c.Compression().Concurrency)
	require.Equal(t, 3, c.Decompression().Concurrency)
}
