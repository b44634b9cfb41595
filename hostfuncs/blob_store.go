package hostfuncs

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"io/fs"
	"sync"

	"github.com/hpp2334/hol-runtime/domain/ports"
)

// DefaultChunkSize is the slice size files are streamed in.
const DefaultChunkSize = 300 * 1024 * 1024

// ErrUnknownBlob is returned for a blob id that is not registered.
var ErrUnknownBlob = stdErrors.New("unknown blob id")

// BlobStore serves registered readers to the guest one chunk at a time.
// A blob is dropped once its reader is exhausted or fails, unless a
// rewindable source was opened on it. Each blob is read by a single consumer.
type BlobStore struct {
	blobs     map[int32]*blobEntry
	chunkSize int
	nextID    int32
	mu        sync.Mutex
}

type blobEntry struct {
	r        io.Reader
	closer   io.Closer
	buf      []byte
	bufSize  int
	retained bool
}

// BlobStoreOption configures a BlobStore.
type BlobStoreOption func(*BlobStore)

// WithChunkSize sets the chunk size. Values <= 0 are ignored.
func WithChunkSize(n int) BlobStoreOption {
	return func(s *BlobStore) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// NewBlobStore creates an empty store.
func NewBlobStore(opts ...BlobStoreOption) *BlobStore {
	s := &BlobStore{
		blobs:     make(map[int32]*blobEntry),
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ChunkSize returns the configured chunk size.
func (s *BlobStore) ChunkSize() int {
	return s.chunkSize
}

// Register adds r and returns its blob id. If r is an io.Closer it is
// closed when the blob is dropped.
func (s *BlobStore) Register(r io.Reader) int32 {
	return s.RegisterSized(r, SizeHint(r))
}

// RegisterSized is Register for a reader expected to yield size bytes.
// A negative size means unknown.
func (s *BlobStore) RegisterSized(r io.Reader, size int64) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	e := &blobEntry{r: r, bufSize: s.chunkSize}
	if size >= 0 && size < int64(s.chunkSize) {
		e.bufSize = max(int(size), 1)
	}
	if c, ok := r.(io.Closer); ok {
		e.closer = c
	}
	s.blobs[id] = e
	return id
}

// NextChunk returns the next chunk of blob id. A nil chunk with a nil
// error marks the end of the stream.
func (s *BlobStore) NextChunk(id int32) ([]byte, error) {
	s.mu.Lock()
	e, ok := s.blobs[id]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownBlob, id)
	}

	if e.buf == nil {
		e.buf = make([]byte, e.bufSize)
	}
	n, err := io.ReadFull(e.r, e.buf)
	switch {
	case err == nil:
		return e.buf[:n], nil
	case stdErrors.Is(err, io.ErrUnexpectedEOF):
		// Short final chunk; the next call reports EOF.
		return e.buf[:n], nil
	case stdErrors.Is(err, io.EOF):
		s.mu.Lock()
		retained := e.retained
		s.mu.Unlock()
		if !retained {
			s.Release(id)
		}
		return nil, nil
	default:
		s.Release(id)
		return nil, fmt.Errorf("read blob %d: %w", id, err)
	}
}

// SizeHint reports how many bytes r will yield, or -1 when unknown. Small
// inputs then do not pay for a full chunk buffer.
func SizeHint(r io.Reader) int64 {
	switch v := r.(type) {
	case interface{ Stat() (fs.FileInfo, error) }:
		if fi, err := v.Stat(); err == nil && fi.Mode().IsRegular() {
			return fi.Size()
		}
	case interface{ Len() int }:
		return int64(v.Len())
	}
	return -1
}

// Release drops blob id. Releasing an unknown id is a no-op.
func (s *BlobStore) Release(id int32) {
	s.mu.Lock()
	e, ok := s.blobs[id]
	delete(s.blobs, id)
	s.mu.Unlock()

	if ok && e.closer != nil {
		_ = e.closer.Close()
	}
}

// Len returns the number of registered blobs.
func (s *BlobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}

// Open implements ports.ChunkSourceProvider for in-process runtimes.
//
// When the blob's reader is an io.Seeker the source also implements
// ports.Rewinder, rewinding to the offset the reader had at Open. Such a blob
// stays registered at end of stream; whoever registered it releases it.
func (s *BlobStore) Open(_ context.Context, id int32) (ports.ChunkSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.blobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownBlob, id)
	}
	src := blobSource{store: s, id: id}
	seeker, ok := e.r.(io.Seeker)
	if !ok {
		return &src, nil
	}
	start, err := seeker.Seek(0, io.SeekCurrent)
	if err != nil {
		return &src, nil
	}
	e.retained = true
	return &seekableBlobSource{blobSource: src, start: start}, nil
}

// seek moves the reader of blob id to the absolute offset off.
func (s *BlobStore) seek(id int32, off int64) error {
	s.mu.Lock()
	e, ok := s.blobs[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownBlob, id)
	}
	if _, err := e.r.(io.Seeker).Seek(off, io.SeekStart); err != nil {
		return fmt.Errorf("rewind blob %d: %w", id, err)
	}
	return nil
}

type blobSource struct {
	store *BlobStore
	id    int32
	done  bool
}

func (b *blobSource) Next(ctx context.Context) ([]byte, error) {
	if b.done {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	chunk, err := b.store.NextChunk(b.id)
	if err != nil || len(chunk) == 0 {
		b.done = true
	}
	return chunk, err
}

type seekableBlobSource struct {
	blobSource
	start int64
}

var _ ports.Rewinder = (*seekableBlobSource)(nil)

func (b *seekableBlobSource) Rewind(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.store.seek(b.id, b.start); err != nil {
		return err
	}
	b.done = false
	return nil
}
