package ports

import "context"

// ChunkSource yields a data stream one chunk at a time.
// A nil or empty chunk with a nil error marks end of stream.
type ChunkSource interface {
	// Next returns the next chunk. It may block on a host round-trip.
	Next(ctx context.Context) ([]byte, error)
}

// Rewinder is implemented by sources that can restart the stream. Rewind
// returns to where the first Next of the stream began, not to the start of
// the underlying data.
type Rewinder interface {
	Rewind(ctx context.Context) error
}

// ChunkSourceProvider resolves the host-side blob id of a bridge call
// into a chunk source.
type ChunkSourceProvider interface {
	Open(ctx context.Context, blobID int32) (ChunkSource, error)
}

// ChunkSourceProviderFunc adapts a function to ChunkSourceProvider.
type ChunkSourceProviderFunc func(ctx context.Context, blobID int32) (ChunkSource, error)

// Open implements ChunkSourceProvider.
func (f ChunkSourceProviderFunc) Open(ctx context.Context, blobID int32) (ChunkSource, error) {
	return f(ctx, blobID)
}
