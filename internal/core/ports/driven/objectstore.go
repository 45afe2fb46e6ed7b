package driven

import (
	"context"
	"io"
)

// ObjectStore holds raw document bytes. The core never assumes a
// particular backend, only this contract.
type ObjectStore interface {
	// Put stores the bytes read from r and returns an opaque handle.
	Put(ctx context.Context, r io.Reader) (handle string, err error)

	// Get opens the stored bytes for a handle. The caller closes the
	// returned reader.
	Get(ctx context.Context, handle string) (io.ReadSeekCloser, error)

	// Delete removes the stored bytes. Deleting an unknown handle is a
	// no-op.
	Delete(ctx context.Context, handle string) error
}
