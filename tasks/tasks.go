// Package tasks defines background work queued through asynq.
//
// The API path for deleting an image removes only the database row; blob
// removal and cache invalidation are enqueued here so the request stays fast
// and cleanup is retried by the queue if the blob store hiccups.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/snapvault/snapvault/cache"
	"github.com/snapvault/snapvault/storage"
)

// TypeCleanupImage removes an image's blobs and cache entry after its
// metadata row has been deleted.
const TypeCleanupImage = "snapvault:cleanup_image"

// CleanupImagePayload carries everything the cleanup handler needs; the
// metadata row is already gone when the task runs.
type CleanupImagePayload struct {
	ImageID      string `json:"image_id"`
	StorageKey   string `json:"storage_key"`
	ThumbnailKey string `json:"thumbnail_key,omitempty"`
}

// NewCleanupImageTask builds the asynq task for a deleted image.
func NewCleanupImageTask(p CleanupImagePayload) (*asynq.Task, error) {
	if p.ImageID == "" || p.StorageKey == "" {
		return nil, errors.New("tasks: image id and storage key are required")
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeCleanupImage, payload), nil
}

// Handler processes background tasks against the blob store and cache.
type Handler struct {
	blobs storage.Backend
	cache *cache.Cache
}

// NewHandler creates a task handler.
func NewHandler(blobs storage.Backend, c *cache.Cache) *Handler {
	return &Handler{blobs: blobs, cache: c}
}

// Register attaches the handler's task types to mux.
func (h *Handler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeCleanupImage, h.HandleCleanupImage)
}

// HandleCleanupImage deletes the image's blobs and invalidates its cache
// entry. A blob that is already gone is fine; any other storage error is
// returned so asynq retries the task.
func (h *Handler) HandleCleanupImage(ctx context.Context, t *asynq.Task) error {
	var p CleanupImagePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("bad cleanup payload: %v: %w", err, asynq.SkipRetry)
	}

	if _, err := h.blobs.Delete(ctx, p.StorageKey); err != nil {
		return fmt.Errorf("delete blob %s: %w", p.StorageKey, err)
	}
	if p.ThumbnailKey != "" {
		if _, err := h.blobs.Delete(ctx, p.ThumbnailKey); err != nil {
			return fmt.Errorf("delete thumbnail %s: %w", p.ThumbnailKey, err)
		}
	}

	// Cache invalidation is fail-open; a down cache entry simply expires.
	h.cache.Invalidate(ctx, "image", p.ImageID)
	return nil
}
