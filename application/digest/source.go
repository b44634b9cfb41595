package digest

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io"

	"github.com/hpp2334/hol-runtime/domain/ports"
)

// DefaultChunkSize is the chunk size of ReaderSource when none is given.
const DefaultChunkSize = 1 << 20

// SliceSource serves pre-split chunks from memory. It is rewindable.
type SliceSource struct {
	chunks  [][]byte
	pos     int
	start   int
	started bool
}

var (
	_ ports.ChunkSource = (*SliceSource)(nil)
	_ ports.Rewinder    = (*SliceSource)(nil)
)

// NewSliceSource creates a source over chunks. Empty chunks are dropped so
// they cannot end the stream early.
func NewSliceSource(chunks ...[]byte) *SliceSource {
	kept := make([][]byte, 0, len(chunks))
	for _, c := range chunks {
		if len(c) > 0 {
			kept = append(kept, c)
		}
	}
	return &SliceSource{chunks: kept}
}

// Next implements ports.ChunkSource.
func (s *SliceSource) Next(context.Context) ([]byte, error) {
	if !s.started {
		s.start, s.started = s.pos, true
	}
	if s.pos >= len(s.chunks) {
		return nil, nil
	}
	c := s.chunks[s.pos]
	s.pos++
	return c, nil
}

// Rewind implements ports.Rewinder. It returns to the chunk of the first
// Next call, which need not be the first chunk.
func (s *SliceSource) Rewind(context.Context) error {
	if s.started {
		s.pos = s.start
		s.started = false
	}
	return nil
}

// ReaderSource splits an io.Reader into fixed-size chunks.
type ReaderSource struct {
	r         io.Reader
	buf       []byte
	chunkSize int
	start     int64
	marked    bool
}

// NewReaderSource creates a source reading chunkSize bytes at a time.
// A chunkSize <= 0 selects DefaultChunkSize.
func NewReaderSource(r io.Reader, chunkSize int) *ReaderSource {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &ReaderSource{r: r, chunkSize: chunkSize}
}

// Next implements ports.ChunkSource. The returned slice is reused by the
// following call.
func (s *ReaderSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.mark(); err != nil {
		return nil, err
	}
	if s.buf == nil {
		s.buf = make([]byte, s.chunkSize)
	}
	n, err := io.ReadFull(s.r, s.buf)
	switch {
	case err == nil, stdErrors.Is(err, io.ErrUnexpectedEOF):
		return s.buf[:n], nil
	case stdErrors.Is(err, io.EOF):
		return nil, nil
	default:
		return nil, err
	}
}

// mark records the offset the stream starts at, once, for seekable readers.
func (s *ReaderSource) mark() error {
	if s.marked {
		return nil
	}
	if seeker, ok := s.r.(io.Seeker); ok {
		off, err := seeker.Seek(0, io.SeekCurrent)
		if err != nil {
			return fmt.Errorf("mark reader offset: %w", err)
		}
		s.start = off
	}
	s.marked = true
	return nil
}

// Rewind seeks the underlying reader back to the offset it was at before the
// first Next. It fails when the reader is not an io.Seeker.
func (s *ReaderSource) Rewind(context.Context) error {
	seeker, ok := s.r.(io.Seeker)
	if !ok {
		return fmt.Errorf("%w: reader is not seekable", ErrSourceNotRewindable)
	}
	if !s.marked {
		return nil
	}
	_, err := seeker.Seek(s.start, io.SeekStart)
	return err
}

// AsRewindable returns src unchanged when it can rewind. Other sources are
// drained into memory so the sequential strategy can use them.
func AsRewindable(ctx context.Context, src ports.ChunkSource) (ports.ChunkSource, error) {
	if rs, ok := src.(*ReaderSource); ok {
		if _, seekable := rs.r.(io.Seeker); seekable {
			return src, nil
		}
	} else if _, ok := src.(ports.Rewinder); ok {
		return src, nil
	}

	var chunks [][]byte
	for {
		chunk, err := next(ctx, src)
		if err != nil {
			return nil, err
		}
		if len(chunk) == 0 {
			return NewSliceSource(chunks...), nil
		}
		chunks = append(chunks, append([]byte(nil), chunk...))
	}
}
