package ndchunk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeMetadataStore struct {
	chunkCount int
	metadata   []byte
}

func (s *fakeMetadataStore) Create(ctx context.Context, chunkBytes int) error   { return nil }
func (s *fakeMetadataStore) Append(ctx context.Context, buf []byte, n int) (int, error) {
	return 0, nil
}
func (s *fakeMetadataStore) DecompressChunk(ctx context.Context, k int, dst []byte) error {
	return nil
}
func (s *fakeMetadataStore) ChunkCount() int { return s.chunkCount }
func (s *fakeMetadataStore) Metadata(ctx context.Context) ([]byte, error) {
	return s.metadata, nil
}
func (s *fakeMetadataStore) SetMetadata(ctx context.Context, data []byte) error {
	s.metadata = data
	return nil
}
func (s *fakeMetadataStore) Close() error { return nil }

func TestEncodeDecodeMetadataRoundTrip(t *testing.T) {
	shape := dims(t, 4, 3, 3)
	chunkShape := dims(t, 2, 2, 2)
	buf, err := encodeMetadata(shape, chunkShape, 8)
	require.NoError(t, err)

	gotShape, gotChunk, gotItem, err := decodeMetadata(buf)
	require.NoError(t, err)
	require.True(t, shape.Equal(gotShape))
	require.True(t, chunkShape.Equal(gotChunk))
	require.Equal(t, 8, gotItem)
}

func TestDecodeMetadataRejectsBadNDim(t *testing.T) {
	_, _, _, err := decodeMetadata([]byte(`{"ndim":0,"shape":[],"chunk_shape":[],"item_size":4}`))
	require.Error(t, err)
}

func TestDecodeMetadataRejectsLengthMismatch(t *testing.T) {
	_, _, _, err := decodeMetadata([]byte(`{"ndim":2,"shape":[4],"chunk_shape":[2,2],"item_size":4}`))
	require.Error(t, err)
}

func TestReadMetadataReestablishesInvariants(t *testing.T) {
	ctx := context.Background()
	shape := dims(t, 4, 4)
	chunkShape := dims(t, 2, 2)
	buf, err := encodeMetadata(shape, chunkShape, 4)
	require.NoError(t, err)

	s := &fakeMetadataStore{chunkCount: chunkGrid(shape, chunkShape).Product(), metadata: buf}
	gotShape, gotChunk, gotItem, err := readMetadata(ctx, s)
	require.NoError(t, err)
	require.True(t, shape.Equal(gotShape))
	require.True(t, chunkShape.Equal(gotChunk))
	require.Equal(t, 4, gotItem)
}

func TestReadMetadataRejectsChunkCountMismatch(t *testing.T) {
	ctx := context.Background()
	shape := dims(t, 4, 4)
	chunkShape := dims(t, 2, 2)
	buf, err := encodeMetadata(shape, chunkShape, 4)
	require.NoError(t, err)

	s := &fakeMetadataStore{chunkCount: 1, metadata: buf}
	_, _, _, err = readMetadata(ctx, s)
	require.Error(t, err)
}

func TestReadMetadataRejectsMissingRecord(t *testing.T) {
	ctx := context.Background()
	s := &fakeMetadataStore{}
	_, _, _, err := readMetadata(ctx, s)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidState)
}
