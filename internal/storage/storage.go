package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/melodiemoment/api/internal/constants"
)

var (
	ErrInvalidKey     = errors.New("invalid object key")
	ErrUploadFailed   = errors.New("object upload failed")
	ErrRemoveFailed   = errors.New("object remove failed")
	ErrConfigInvalid  = errors.New("storage config invalid")
	ErrUnknownBackend = errors.New("unknown storage provider")
)

// ObjectStore stores deliverable blobs addressed by key.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Remove(ctx context.Context, key string) error
	Name() string
}

// Config storage settings
type Config struct {
	Provider      string
	SupabaseURL   string
	ServiceKey    string
	Bucket        string
	LocalDir      string
	PublicBaseURL string
}

// New builds the configured store.
func New(cfg Config) (ObjectStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case constants.StorageProviderSupabase:
		return NewSupabaseStore(cfg.SupabaseURL, cfg.ServiceKey, cfg.Bucket)
	case "", constants.StorageProviderLocal:
		return NewLocalStore(cfg.LocalDir, cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Provider)
	}
}

// cleanKey rejects absolute and parent-relative keys.
func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

// ContentTypeFor returns the MIME type of a deliverable type.
func ContentTypeFor(deliverableType string) string {
	switch deliverableType {
	case constants.DeliverableMP3:
		return "audio/mpeg"
	case constants.DeliverableWAV:
		return "audio/wav"
	case constants.DeliverableMP4:
		return "video/mp4"
	case constants.DeliverablePDF:
		return "application/pdf"
	case constants.DeliverablePNG:
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
