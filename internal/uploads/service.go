package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrTooLarge is returned when an upload exceeds the configured size limit.
var ErrTooLarge = errors.New("file exceeds the upload size limit")

// UploadService turns file selections into opaque storage keys
type UploadService struct {
	Driver  StorageDriver
	MaxSize int64 // bytes; 0 means unlimited
}

func NewUploadService(driver StorageDriver, maxSize int64) *UploadService {
	return &UploadService{Driver: driver, MaxSize: maxSize}
}

// Upload saves the file via the driver under a fresh key and returns its metadata.
func (s *UploadService) Upload(ctx context.Context, filename string, reader io.Reader, size int64, mime string) (*FileMetadata, error) {
	if s.MaxSize > 0 && size > s.MaxSize {
		return nil, ErrTooLarge
	}
	if mime == "" {
		mime = "application/octet-stream"
	}
	id := uuid.New()
	key := id.String() + strings.ToLower(filepath.Ext(filepath.Base(filename)))

	if err := s.Driver.Save(ctx, key, reader, size, mime); err != nil {
		return nil, fmt.Errorf("storage driver failed: %w", err)
	}

	url, err := s.Driver.GenerateURL(ctx, key, 0)
	if err != nil {
		if delErr := s.Driver.Delete(ctx, key); delErr != nil {
			slog.WarnContext(ctx, "failed to cleanup orphaned file", "key", key, "error", delErr)
		}
		return nil, fmt.Errorf("failed to generate URL: %w", err)
	}

	metadata := &FileMetadata{
		ID:       id,
		Name:     filename,
		Key:      key,
		URL:      url,
		Size:     size,
		MimeType: mime,
	}
	slog.InfoContext(ctx, "file uploaded", "id", id, "key", key, "size", size)
	return metadata, nil
}

// Download retrieves the file content and its MIME type
func (s *UploadService) Download(ctx context.Context, key string) (io.ReadCloser, string, error) {
	return s.Driver.Get(ctx, key)
}

// Delete removes a stored file, e.g. when a file field is replaced or cleared.
func (s *UploadService) Delete(ctx context.Context, key string) error {
	return s.Driver.Delete(ctx, key)
}
