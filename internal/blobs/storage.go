// Package blobs stores user uploads and hands out public URLs for them.
package blobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// MaxObjectSize caps a single upload.
const MaxObjectSize = 5 << 20

const defaultPublicBaseURL = "/media"

var (
	ErrObjectTooLarge     = errors.New("blobs: object exceeds 5 MiB")
	ErrInvalidKey         = errors.New("blobs: invalid object key")
	ErrUnsupportedContent = errors.New("blobs: only image uploads are accepted")
	errMissingFilesystem  = errors.New("blobs: filesystem is required")
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]+(/[A-Za-z0-9_.\-]+)*$`)

// StorageConfig describes where blobs are written and how they are addressed.
type StorageConfig struct {
	Filesystem    afero.Fs
	PublicBaseURL string
	Logger        *zap.Logger
}

// Storage writes blobs into an afero filesystem.
type Storage struct {
	fs      afero.Fs
	baseURL string
	logger  *zap.Logger
}

// NewStorage validates the configuration.
func NewStorage(cfg StorageConfig) (*Storage, error) {
	if cfg.Filesystem == nil {
		return nil, errMissingFilesystem
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")
	if baseURL == "" {
		baseURL = defaultPublicBaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Storage{fs: cfg.Filesystem, baseURL: baseURL, logger: logger}, nil
}

// NewDiskStorage stores blobs below root on the local disk.
func NewDiskStorage(root, publicBaseURL string, logger *zap.Logger) (*Storage, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errMissingFilesystem
	}
	base := afero.NewOsFs()
	if err := base.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("blobs: create root: %w", err)
	}
	return NewStorage(StorageConfig{
		Filesystem:    afero.NewBasePathFs(base, root),
		PublicBaseURL: publicBaseURL,
		Logger:        logger,
	})
}

// Filesystem exposes the backing filesystem for serving stored objects.
func (s *Storage) Filesystem() afero.Fs {
	return s.fs
}

// Upload writes the object under key and returns its public URL.
// Anything above MaxObjectSize is rejected and leaves no object behind.
func (s *Storage) Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error) {
	if !keyPattern.MatchString(key) || strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedContent, contentType)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if dir := path.Dir(key); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("blobs: create directory: %w", err)
		}
	}
	file, err := s.fs.Create(key)
	if err != nil {
		return "", fmt.Errorf("blobs: create object: %w", err)
	}
	written, copyErr := io.Copy(file, io.LimitReader(reader, MaxObjectSize+1))
	closeErr := file.Close()
	if copyErr == nil && written > MaxObjectSize {
		copyErr = ErrObjectTooLarge
	}
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		if removeErr := s.fs.Remove(key); removeErr != nil {
			s.logger.Warn("blob cleanup failed", zap.String("key", key), zap.Error(removeErr))
		}
		if errors.Is(copyErr, ErrObjectTooLarge) {
			return "", copyErr
		}
		return "", fmt.Errorf("blobs: write object: %w", copyErr)
	}
	s.logger.Debug("blob stored", zap.String("key", key), zap.Int64("bytes", written))
	return s.URL(key), nil
}

// URL returns the public address of the object.
func (s *Storage) URL(key string) string {
	segments := strings.Split(key, "/")
	for index, segment := range segments {
		segments[index] = url.PathEscape(segment)
	}
	return s.baseURL + "/" + strings.Join(segments, "/")
}

// ReviewImageKey is the key of a review image uploaded at millis.
func ReviewImageKey(userID string, millis int64) string {
	return fmt.Sprintf("review_images/%s_%d", userID, millis)
}

// ProfilePhotoKey is the key of a profile photo uploaded at millis.
func ProfilePhotoKey(userID string, millis int64) string {
	return fmt.Sprintf("profile_photos/%s_%d", userID, millis)
}
