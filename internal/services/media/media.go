package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/movieflix/movieflix-service/internal/config"
)

// Kind distinguishes the two upload slots of a movie.
type Kind string

const (
	KindPoster Kind = "poster"
	KindVideo  Kind = "video"
)

var (
	// ErrInvalidType is returned when an upload's MIME type is not on the
	// allow-list for its kind.
	ErrInvalidType = errors.New("file type not allowed")
	// ErrTooLarge is returned when an upload exceeds the configured
	// maximum size for its kind.
	ErrTooLarge = errors.New("file too large")
)

// FileStore abstracts permanent storage for uploaded files. Remove is
// idempotent: removing a missing file is not an error.
type FileStore interface {
	Save(ctx context.Context, filePath string, r io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, filePath string) error
}

// Service validates uploads and places them into permanent storage under
// collision-free generated names.
type Service struct {
	store FileStore
	cfg   config.Uploads
}

func NewService(cfg *config.Config, store FileStore) *Service {
	return &Service{
		store: store,
		cfg:   cfg.Uploads,
	}
}

// Validate checks an upload's content type and size against the allow-list
// and maximum for its kind, before anything is written.
func (s *Service) Validate(kind Kind, contentType string, size int64) error {
	allowed := s.cfg.AllowedImageTypes
	maxSize := s.cfg.MaxPosterSize
	if kind == KindVideo {
		allowed = s.cfg.AllowedVideoTypes
		maxSize = s.cfg.MaxVideoSize
	}

	ok := false
	for _, t := range allowed {
		if contentType == t {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidType, contentType)
	}

	if size > maxSize {
		return fmt.Errorf("%w: max %d MB", ErrTooLarge, maxSize/(1024*1024))
	}

	return nil
}

// Store writes the upload into permanent storage and returns its stored
// path. The name is generated per upload, so existing files are never
// overwritten.
func (s *Service) Store(ctx context.Context, kind Kind, originalName, contentType string, r io.Reader, size int64) (string, error) {
	dir := s.cfg.PosterDir
	if kind == KindVideo {
		dir = s.cfg.VideoDir
	}

	name := fmt.Sprintf("%s_%s%s", kind, uuid.NewString(), fileExt(originalName, contentType))
	filePath := path.Join(dir, name)

	if err := s.store.Save(ctx, filePath, r, size, contentType); err != nil {
		return "", fmt.Errorf("failed to store %s: %w", kind, err)
	}

	return filePath, nil
}

// Remove deletes a stored file. A missing file is treated as already
// cleaned up.
func (s *Service) Remove(ctx context.Context, filePath string) error {
	if filePath == "" {
		return nil
	}
	return s.store.Remove(ctx, filePath)
}

// fileExt picks an extension from the original filename, falling back to
// the content type when the name has none.
func fileExt(originalName, contentType string) string {
	if ext := strings.ToLower(path.Ext(originalName)); ext != "" {
		return ext
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	}
	return ""
}

// Rollback tracks files stored during one operation so that a later
// failure in the same operation can remove every file already placed,
// leaving no orphans behind a partial upload.
type Rollback struct {
	svc   *Service
	paths []string
}

func (s *Service) Begin() *Rollback {
	return &Rollback{svc: s}
}

// Track records a stored path for cleanup.
func (rb *Rollback) Track(filePath string) {
	rb.paths = append(rb.paths, filePath)
}

// Clean removes every tracked file. Call it on the failure path only.
func (rb *Rollback) Clean(ctx context.Context) {
	for _, p := range rb.paths {
		_ = rb.svc.Remove(ctx, p)
	}
	rb.paths = nil
}
