// Package blob stores wallpaper images in object storage and hands back the
// public URL under which they are served.
package blob

import (
	"context"
	"errors"
	"io"
)

var (
	ErrNotImage    = errors.New("blob: content is not an image")
	ErrEmpty       = errors.New("blob: content is empty")
	ErrCircuitOpen = errors.New("blob: circuit breaker is open")
)

// Uploader persists binary objects and returns their public URL.
type Uploader interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	Delete(ctx context.Context, key string) error
}
