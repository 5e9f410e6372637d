// Package storage defines interfaces for product image storage backends.
// Image bytes live outside the database; products reference them by the
// identifiers this package hands out.
package storage

import (
	"context"
	"errors"
	"io"
)

// Storage errors.
var (
	// ErrImageNotFound indicates the requested image does not exist.
	ErrImageNotFound = errors.New("image not found")

	// ErrInvalidImageID indicates the identifier is not one this store issued.
	ErrInvalidImageID = errors.New("invalid image id")
)

// ImageStore defines the interface for image storage backends.
// Implementations include the local filesystem and S3-compatible object
// storage. Identifiers are opaque to callers and safe to embed in URLs.
type ImageStore interface {
	// Save stores an image and returns its identifier. The content type is
	// recorded so Open can serve the image back correctly.
	Save(ctx context.Context, reader io.Reader, contentType string) (id string, err error)

	// Open returns the image content and its content type.
	// The returned ReadCloser must be closed by the caller.
	// Returns ErrImageNotFound if the image does not exist.
	Open(ctx context.Context, id string) (io.ReadCloser, string, error)

	// Delete removes an image. Deleting a missing image is not an error.
	Delete(ctx context.Context, id string) error
}
