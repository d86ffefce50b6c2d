package model

import (
	"context"
	"io"
)

// Storage holds ciphertext payloads too large for an inline database column.
type Storage interface {
	Upload(ctx context.Context, key string, reader io.Reader) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
