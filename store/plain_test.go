package store_test

import (
	"context"
	"testing"

	"github.com/TuSKan/ndchunk/store"
	"github.com/stretchr/testify/require"
)

func TestPlainSingleChunkLifecycle(t *testing.T) {
	ctx := context.Background()
	p := store.NewPlain()
	require.NoError(t, p.Create(ctx, 8))
	require.Equal(t, 0, p.ChunkCount())

	n, err := p.Append(ctx, []byte{1, 2, 3, 4, 5, 6, 7, 8}, 8)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 1, p.ChunkCount())

	dst := make([]byte, 8)
	require.NoError(t, p.DecompressChunk(ctx, 0, dst))
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, dst)
}

func TestPlainRejectsSecondAppend(t *testing.T) {
	ctx := context.Background()
	p := store.NewPlain()
	require.NoError(t, p.Create(ctx, 4))
	_, err := p.Append(ctx, []byte{1, 2, 3, 4}, 4)
	require.NoError(t, err)

	_, err = p.Append(ctx, []byte{5, 6, 7, 8}, 4)
	require.Error(t, err)
}

func TestPlainReplaceChunk(t *testing.T) {
	ctx := context.Background()
	p := store.NewPlain()
	require.NoError(t, p.Create(ctx, 4))
	_, err := p.Append(ctx, []byte{1, 2, 3, 4}, 4)
	require.NoError(t, err)

	require.NoError(t, p.ReplaceChunk(ctx, 0, []byte{9, 9, 9, 9}, 4))
	dst := make([]byte, 4)
	require.NoError(t, p.DecompressChunk(ctx, 0, dst))
	require.Equal(t, []byte{9, 9, 9, 9}, dst)
}

func TestPlainDecompressBeforeAppendFails(t *testing.T) {
	ctx := context.Background()
	p := store.NewPlain()
	require.NoError(t, p.Create(ctx, 4))
	err := p.DecompressChunk(ctx, 0, make([]byte, 4))
	require.Error(t, err)
}
