package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no object exists at a storage path
	ErrNotFound = errors.New("object not found")
	// ErrInvalidPath is returned for paths that are absolute or escape the store
	ErrInvalidPath = errors.New("invalid storage path")
)

// Storage holds evidence uploads and the legal source documents for ingestion
type Storage interface {
	// Upload stores an object under prefix and returns its storage path
	Upload(ctx context.Context, prefix string, id uuid.UUID, filename string, data io.Reader) (string, error)

	// Download retrieves an object by storage path
	Download(ctx context.Context, storagePath string) (io.ReadCloser, error)

	// Delete removes an object by storage path
	Delete(ctx context.Context, storagePath string) error

	// List returns the storage paths under prefix, sorted
	List(ctx context.Context, prefix string) ([]string, error)
}

// StorageType represents the storage backend type
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
)

// StorageConfig holds configuration for storage
type StorageConfig struct {
	Type         StorageType
	LocalPath    string // local
	S3Bucket     string // s3
	S3Region     string // s3
	S3Endpoint   string // optional, for S3-compatible stores
	AWSAccessKey string
	AWSSecretKey string
}

// NewStorage creates a storage backend from configuration
func NewStorage(ctx context.Context, cfg StorageConfig) (Storage, error) {
	switch cfg.Type {
	case StorageTypeLocal, "":
		return NewLocalStorage(cfg.LocalPath)
	case StorageTypeS3:
		if cfg.S3Bucket == "" {
			return nil, errors.New("s3 bucket is required for s3 storage")
		}
		return NewS3Storage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// generateStoragePath builds a unique, slash-separated path for an upload
func generateStoragePath(prefix string, id uuid.UUID, filename string) string {
	filename = filepath.Base(filepath.ToSlash(filename))
	ext := strings.ToLower(filepath.Ext(filename))
	baseName := strings.TrimSuffix(filename, filepath.Ext(filename))
	baseName = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\', ':':
			return '_'
		}
		return r
	}, baseName)

	key := fmt.Sprintf("%s/%s_%s%s", id.String()[:2], id.String(), baseName, ext)
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		key = prefix + "/" + key
	}
	return key
}

// cleanKey normalises a client-supplied storage path and rejects traversal
func cleanKey(storagePath string) (string, error) {
	if storagePath == "" || strings.HasPrefix(storagePath, "/") || strings.Contains(storagePath, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, storagePath)
	}
	cleaned := path.Clean(storagePath)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, storagePath)
	}
	return cleaned, nil
}

// ContentType determines the content type from a filename
func ContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}
