package tasks

import (
	"context"
	"testing"

	"github.com/hibiken/asynq"

	"github.com/snapvault/snapvault/cache"
	"github.com/snapvault/snapvault/storage"
)

func TestNewCleanupImageTask(t *testing.T) {
	tests := []struct {
		name    string
		payload CleanupImagePayload
		wantErr bool
	}{
		{
			name:    "valid payload",
			payload: CleanupImagePayload{ImageID: "img-1", StorageKey: "img-1.jpg"},
		},
		{
			name:    "missing storage key",
			payload: CleanupImagePayload{ImageID: "img-1"},
			wantErr: true,
		},
		{
			name:    "missing image id",
			payload: CleanupImagePayload{StorageKey: "img-1.jpg"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task, err := NewCleanupImageTask(tt.payload)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewCleanupImageTask() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err == nil && task.Type() != TypeCleanupImage {
				t.Errorf("task type = %q, want %q", task.Type(), TypeCleanupImage)
			}
		})
	}
}

func TestHandler_CleanupImage(t *testing.T) {
	blobs, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	ctx := context.Background()

	if _, err := blobs.Save(ctx, "img-1.jpg", []byte("bytes"), "image/jpeg"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := blobs.Save(ctx, "img-1-thumb.jpg", []byte("thumb"), "image/jpeg"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	h := NewHandler(blobs, cache.New(nil, cache.Config{}))
	task, err := NewCleanupImageTask(CleanupImagePayload{
		ImageID:      "img-1",
		StorageKey:   "img-1.jpg",
		ThumbnailKey: "img-1-thumb.jpg",
	})
	if err != nil {
		t.Fatalf("NewCleanupImageTask() error = %v", err)
	}

	if err := h.HandleCleanupImage(ctx, task); err != nil {
		t.Fatalf("HandleCleanupImage() error = %v", err)
	}

	for _, key := range []string{"img-1.jpg", "img-1-thumb.jpg"} {
		exists, err := blobs.Exists(ctx, key)
		if err != nil {
			t.Fatalf("Exists() error = %v", err)
		}
		if exists {
			t.Errorf("blob %s still exists after cleanup", key)
		}
	}
}

func TestHandler_CleanupImage_AlreadyGone(t *testing.T) {
	blobs, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}

	h := NewHandler(blobs, cache.New(nil, cache.Config{}))
	task, err := NewCleanupImageTask(CleanupImagePayload{ImageID: "img-2", StorageKey: "never-saved.jpg"})
	if err != nil {
		t.Fatalf("NewCleanupImageTask() error = %v", err)
	}

	// A blob deleted by an earlier attempt must not fail the retry.
	if err := h.HandleCleanupImage(context.Background(), task); err != nil {
		t.Errorf("HandleCleanupImage() error = %v, want nil", err)
	}
}

func TestHandler_CleanupImage_BadPayload(t *testing.T) {
	blobs, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}

	h := NewHandler(blobs, cache.New(nil, cache.Config{}))
	err = h.HandleCleanupImage(context.Background(), asynq.NewTask(TypeCleanupImage, []byte("{broken")))
	if err == nil {
		t.Fatal("HandleCleanupImage() error = nil, want error")
	}
}
