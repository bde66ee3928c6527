// Package metadata is the authoritative store for image records and tags,
// backed by SQLite. The cache layer holds snapshots of these records; this
// package is the fallback of record when the cache misses or is down.
package metadata

import (
	"errors"
	"time"
)

// ErrNotFound reports that no image exists with the requested id.
var ErrNotFound = errors.New("metadata: image not found")

// Image is one stored image's metadata. The raw bytes live in the storage
// backend under StorageKey.
type Image struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	ContentType  string    `json:"content_type"`
	SizeBytes    int64     `json:"size_bytes"`
	Width        int       `json:"width,omitempty"`
	Height       int       `json:"height,omitempty"`
	StorageKey   string    `json:"storage_key"`
	ThumbnailKey string    `json:"thumbnail_key,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Tag is one label attached to an image, optionally with a confidence score
// from an automated tagger.
type Tag struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence,omitempty"`
}
