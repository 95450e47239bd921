// Package storage puts user-visible images (thumbnails and previews) into
// object storage and removes them when the owning row goes away.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/user/vidtube-go/internal/config"
)

// ObjectStore is the subset of an object-storage provider the service needs
type ObjectStore interface {
	// Put stores body under key and returns its public URL
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// URL returns the public URL of key
	URL(key string) string
}

// New creates the provider selected by cfg.Driver
func New(ctx context.Context, cfg *config.StorageConfig) (ObjectStore, error) {
	switch cfg.Driver {
	case "supabase":
		return NewSupabase(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseBucket, cfg.PublicBaseURL), nil
	case "minio":
		return NewMinio(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ExtensionFor returns the file extension for an image content type
func ExtensionFor(contentType string) string {
	mediaType, _, _ := strings.Cut(contentType, ";")
	if ext, ok := imageExtensions[strings.TrimSpace(strings.ToLower(mediaType))]; ok {
		return ext
	}
	return ".bin"
}

// ThumbnailKey builds a unique object key for a video's thumbnail:
// thumbnails/<videoID>/<slug>-<random>.<ext>. Every upload gets a fresh key
// so the previous object can be removed independently.
func ThumbnailKey(videoID uuid.UUID, title, contentType string) string {
	name := slug.Make(title)
	if len(name) > 48 {
		name = strings.TrimRight(name[:48], "-")
	}
	if name == "" {
		name = "thumbnail"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return path.Join("thumbnails", videoID.String(), name+"-"+suffix+ExtensionFor(contentType))
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
