package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// extensions maps accepted content types to file extensions. The extension
// is part of the identifier, so Open can derive the content type without a
// metadata sidecar.
var extensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// contentTypes is the reverse of extensions.
var contentTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"webp": "image/webp",
	"gif":  "image/gif",
}

// FilesystemStore stores images on the local filesystem.
// Files are sharded two directory levels deep by identifier prefix so a
// large catalog does not pile every image into one directory.
type FilesystemStore struct {
	baseDir string
	logger  zerolog.Logger
}

// NewFilesystemStore creates a FilesystemStore rooted at baseDir.
// The directory is created if it does not exist.
func NewFilesystemStore(baseDir string, logger zerolog.Logger) (*FilesystemStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &FilesystemStore{
		baseDir: baseDir,
		logger:  logger.With().Str("component", "image_store").Logger(),
	}, nil
}

// Save writes the image to a temporary file and renames it into place, so
// a partially written image is never visible under its final identifier.
func (s *FilesystemStore) Save(ctx context.Context, reader io.Reader, contentType string) (string, error) {
	ext, ok := extensions[contentType]
	if !ok {
		return "", fmt.Errorf("%w: unsupported content type %q", ErrInvalidImageID, contentType)
	}

	id := uuid.New().String() + "." + ext

	dir := s.shardDir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create shard directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close image file: %w", err)
	}

	if err := os.Rename(tmpName, filepath.Join(dir, id)); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to finalize image: %w", err)
	}

	s.logger.Debug().Str("image_id", id).Msg("image stored")
	return id, nil
}

// Open returns the image content and content type.
func (s *FilesystemStore) Open(ctx context.Context, id string) (io.ReadCloser, string, error) {
	contentType, err := ParseImageID(id)
	if err != nil {
		return nil, "", err
	}

	f, err := os.Open(filepath.Join(s.shardDir(id), id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", ErrImageNotFound
		}
		return nil, "", fmt.Errorf("failed to open image: %w", err)
	}
	return f, contentType, nil
}

// Delete removes the image file. A missing file is not an error.
func (s *FilesystemStore) Delete(ctx context.Context, id string) error {
	if _, err := ParseImageID(id); err != nil {
		return err
	}

	err := os.Remove(filepath.Join(s.shardDir(id), id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

// shardDir returns the shard directory of an identifier.
func (s *FilesystemStore) shardDir(id string) string {
	return filepath.Join(s.baseDir, id[0:2], id[2:4])
}

// ParseImageID validates an image identifier and returns its content type.
// Identifiers are a UUID plus a known extension; anything else is rejected
// before it can reach the filesystem.
func ParseImageID(id string) (string, error) {
	base, ext, found := strings.Cut(id, ".")
	if !found {
		return "", ErrInvalidImageID
	}
	if _, err := uuid.Parse(base); err != nil {
		return "", ErrInvalidImageID
	}
	contentType, ok := contentTypes[ext]
	if !ok {
		return "", ErrInvalidImageID
	}
	return contentType, nil
}
