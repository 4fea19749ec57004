package port

import (
	"context"
	"io"
)

// BlobStore keeps backup documents.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}
