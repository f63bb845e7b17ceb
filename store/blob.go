package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/TuSKan/ndchunk"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

const metadataObjectKey = "ndchunk.json"

func chunkObjectKey(k int) string {
	return fmt.Sprintf("chunks/%d", k)
}

// Blob is a ChunkStore backed by gocloud.dev/blob, giving the container
// file, in-memory, S3, GCS and Azure-backed persistence through one
// URL-driven API, the same pattern the teacher repo uses to open a bucket
// from a path string. Each chunk is compressed independently with
// github.com/klauspost/compress/zstd before being written as its own
// blob object; chunk count is tracked in memory for a freshly Create'd
// store and lazily discovered by listing the "chunks/" prefix for a store
// opened against existing data.
type Blob struct {
	bucket *blob.Bucket

	mu         sync.Mutex
	chunkBytes int
	count      int // -1 until Create or the first ChunkCount() discovery

	level              zstd.EncoderLevel
	encoderConcurrency int
	decoderConcurrency int

	log *logrus.Entry
}

var (
	_ ndchunk.ChunkStore = (*Blob)(nil)
)

// BlobOption configures a Blob store at construction time.
type BlobOption func(*Blob)

// WithCompressionLevel sets the zstd encoder level used for every chunk.
func WithCompressionLevel(level zstd.EncoderLevel) BlobOption {
	return func(b *Blob) { b.level = level }
}

// WithEncoderConcurrency bounds the number of goroutines the zstd encoder
// may use per chunk.
func WithEncoderConcurrency(n int) BlobOption {
	return func(b *Blob) { b.encoderConcurrency = n }
}

// WithDecoderConcurrency bounds the number of goroutines the zstd decoder
// may use per chunk.
func WithDecoderConcurrency(n int) BlobOption {
	return func(b *Blob) { b.decoderConcurrency = n }
}

// WithLogger overrides the default logrus entry used for per-chunk I/O
// narration.
func WithLogger(log *logrus.Entry) BlobOption {
	return func(b *Blob) { b.log = log }
}

// OpenBlob opens the bucket at bucketURL (e.g. "file:///tmp/arr",
// "mem://", "s3://bucket/prefix", "gs://bucket/prefix") and returns an
// unopened Blob store; call Create for a fresh store or pass the result
// straight to ndchunk.Open to reconstruct one from persisted metadata.
func OpenBlob(ctx context.Context, bucketURL string, opts ...BlobOption) (*Blob, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %q: %w", bucketURL, err)
	}
	b := &Blob{
		bucket: bucket,
		count:  -1,
		log:    logrus.WithField("bucket_url", bucketURL),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *Blob) Create(ctx context.Context, chunkBytes int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunkBytes = chunkBytes
	b.count = 0
	b.log.WithField("chunk_bytes", chunkBytes).Debug("store created")
	return nil
}

func (b *Blob) encoder() (*zstd.Encoder, error) {
	opts := []zstd.EOption{zstd.WithEncoderLevel(b.level)}
	if b.encoderConcurrency > 0 {
		opts = append(opts, zstd.WithEncoderConcurrency(b.encoderConcurrency))
	}
	return zstd.NewWriter(nil, opts...)
}

func (b *Blob) decoder() (*zstd.Decoder, error) {
	var opts []zstd.DOption
	if b.decoderConcurrency > 0 {
		opts = append(opts, zstd.WithDecoderConcurrency(b.decoderConcurrency))
	}
	return zstd.NewReader(nil, opts...)
}

// writeChunk writes the compressed form of buf to key using a
// create-then-rename sequence: the compressed bytes land first at a
// collision-free temporary key (named with a fresh uuid), then are copied
// to the final key and the temporary object is removed. A reader of key
// never observes a partially written chunk, since it only ever sees the
// old contents (if any) or the fully copied new ones.
func (b *Blob) writeChunk(ctx context.Context, key string, buf []byte) error {
	enc, err := b.encoder()
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	defer enc.Close()
	compressed := enc.EncodeAll(buf, nil)

	tmpKey := fmt.Sprintf("uploads/%s.tmp", uuid.NewString())
	if err := b.bucket.WriteAll(ctx, tmpKey, compressed, nil); err != nil {
		return fmt.Errorf("write %s: %w", tmpKey, err)
	}
	if err := b.bucket.Copy(ctx, key, tmpKey, nil); err != nil {
		_ = b.bucket.Delete(ctx, tmpKey)
		return fmt.Errorf("rename %s to %s: %w", tmpKey, key, err)
	}
	if err := b.bucket.Delete(ctx, tmpKey); err != nil {
		b.log.WithError(err).WithField("key", tmpKey).Warn("temp object cleanup failed")
	}
	return nil
}

func (b *Blob) Append(ctx context.Context, buf []byte, chunkBytes int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if chunkBytes != b.chunkBytes {
		return 0, errMismatchedChunkSize(chunkBytes, b.chunkBytes)
	}
	key := chunkObjectKey(b.count)
	if err := b.writeChunk(ctx, key, buf); err != nil {
		b.log.WithError(err).WithField("chunk_index", b.count).Warn("append failed")
		return 0, err
	}
	b.count++
	b.log.WithField("chunk_index", b.count-1).Debug("chunk appended")
	return b.count, nil
}

// ReplaceChunk overwrites an already-appended chunk's blob object in
// place, satisfying the optional mutable-store capability SetSliceBuffer
// requires.
func (b *Blob) ReplaceChunk(ctx context.Context, k int, buf []byte, chunkBytes int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if k < 0 || k >= b.count {
		return errOutOfRange(k, b.count)
	}
	if chunkBytes != b.chunkBytes {
		return errMismatchedChunkSize(chunkBytes, b.chunkBytes)
	}
	if err := b.writeChunk(ctx, chunkObjectKey(k), buf); err != nil {
		b.log.WithError(err).WithField("chunk_index", k).Warn("replace failed")
		return err
	}
	b.log.WithField("chunk_index", k).Debug("chunk replaced")
	return nil
}

func (b *Blob) DecompressChunk(ctx context.Context, k int, dst []byte) error {
	b.mu.Lock()
	count := b.count
	chunkBytes := b.chunkBytes
	b.mu.Unlock()

	if k < 0 || k >= count {
		return errOutOfRange(k, count)
	}
	if len(dst) < chunkBytes {
		return errShortDst(len(dst), chunkBytes)
	}

	raw, err := b.bucket.ReadAll(ctx, chunkObjectKey(k))
	if err != nil {
		b.log.WithError(err).WithField("chunk_index", k).Error("chunk read failed")
		if gcerrors.Code(err) == gcerrors.NotFound {
			return fmt.Errorf("chunk %d missing from store: %w", k, err)
		}
		return fmt.Errorf("read chunk %d: %w", k, err)
	}

	dec, err := b.decoder()
	if err != nil {
		return fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()
	decoded, err := dec.DecodeAll(raw, nil)
	if err != nil {
		b.log.WithError(err).WithField("chunk_index", k).Error("chunk decompression failed")
		return fmt.Errorf("decompress chunk %d: %w", k, err)
	}
	if chunkBytes == 0 {
		// Opened without Create: the chunk size is taken from the data.
		chunkBytes = len(decoded)
		if len(dst) < chunkBytes {
			return errShortDst(len(dst), chunkBytes)
		}
	}
	if len(decoded) != chunkBytes {
		return fmt.Errorf("chunk %d decompressed to %d bytes, expected %d", k, len(decoded), chunkBytes)
	}
	copy(dst, decoded)
	b.log.WithField("chunk_index", k).Debug("chunk decompressed")
	return nil
}

func (b *Blob) ChunkCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count >= 0 {
		return b.count
	}
	b.count = b.discoverChunkCount()
	return b.count
}

// discoverChunkCount lists the "chunks/" prefix to recover the count of an
// existing store opened without an explicit Create (the from_file path).
func (b *Blob) discoverChunkCount() int {
	ctx := context.Background()
	iter := b.bucket.List(&blob.ListOptions{Prefix: "chunks/"})
	n := 0
	for {
		_, err := iter.Next(ctx)
		if err != nil {
			break
		}
		n++
	}
	return n
}

func (b *Blob) Metadata(ctx context.Context) ([]byte, error) {
	data, err := b.bucket.ReadAll(ctx, metadataObjectKey)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	return data, nil
}

func (b *Blob) SetMetadata(ctx context.Context, data []byte) error {
	if err := b.bucket.WriteAll(ctx, metadataObjectKey, data, nil); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

func (b *Blob) Close() error {
	return b.bucket.Close()
}
