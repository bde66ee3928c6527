package metadata

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_InsertAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	img := &Image{
		Filename:    "sunset.jpg",
		ContentType: "image/jpeg",
		SizeBytes:   123456,
		Width:       1920,
		Height:      1080,
		StorageKey:  "abc.jpg",
	}
	if err := s.Insert(ctx, img); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if img.ID == "" {
		t.Fatal("Insert() left ID empty, want generated UUID")
	}
	if img.CreatedAt.IsZero() || img.UpdatedAt.IsZero() {
		t.Fatal("Insert() left timestamps zero")
	}

	got, err := s.Get(ctx, img.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Filename != img.Filename || got.ContentType != img.ContentType ||
		got.SizeBytes != img.SizeBytes || got.Width != img.Width ||
		got.Height != img.Height || got.StorageKey != img.StorageKey {
		t.Errorf("Get() = %+v, want %+v", got, img)
	}
	if !got.CreatedAt.Equal(img.CreatedAt) {
		t.Errorf("Get() created_at = %v, want %v (exact round trip)", got.CreatedAt, img.CreatedAt)
	}
}

func TestOpen_BadPath(t *testing.T) {
	// A regular file where the db directory should be.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	_, err := Open(filepath.Join(blocker, "test.db"))
	if err == nil {
		t.Fatal("Open() error = nil, want error")
	}
	if !strings.Contains(err.Error(), blocker) {
		t.Errorf("Open() error = %v, want the offending path in the message", err)
	}
}

func TestStore_Get_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(context.Background(), "no-such-id")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestStore_List(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		img := &Image{
			Filename:    "img.jpg",
			ContentType: "image/jpeg",
			SizeBytes:   1,
			StorageKey:  "k",
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
		}
		if err := s.Insert(ctx, img); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	images, err := s.List(ctx, 2, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("List() returned %d images, want 2", len(images))
	}
	if !images[0].CreatedAt.After(images[1].CreatedAt) {
		t.Errorf("List() not newest-first: %v before %v", images[0].CreatedAt, images[1].CreatedAt)
	}

	rest, err := s.List(ctx, 10, 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(rest) != 1 {
		t.Errorf("List() with offset returned %d images, want 1", len(rest))
	}

	// An absurd limit must not size an allocation off the raw value.
	all, err := s.List(ctx, 1<<40, 0)
	if err != nil {
		t.Fatalf("List() with huge limit error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List() with huge limit returned %d images, want 3", len(all))
	}
}

func TestStore_Delete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	img := &Image{Filename: "f", ContentType: "image/png", SizeBytes: 1, StorageKey: "k"}
	if err := s.Insert(ctx, img); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := s.AddTag(ctx, img.ID, "beach", 0.9); err != nil {
		t.Fatalf("AddTag() error = %v", err)
	}

	deleted, err := s.Delete(ctx, img.ID)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !deleted {
		t.Error("Delete() = false, want true")
	}

	if _, err := s.Get(ctx, img.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}

	tags, err := s.Tags(ctx, img.ID)
	if err != nil {
		t.Fatalf("Tags() after delete error = %v", err)
	}
	if len(tags) != 0 {
		t.Errorf("Tags() after delete = %+v, want none", tags)
	}

	deleted, err = s.Delete(ctx, img.ID)
	if err != nil {
		t.Fatalf("Delete() on missing row error = %v", err)
	}
	if deleted {
		t.Error("Delete() on missing row = true, want false")
	}
}

func TestStore_Tags(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	img := &Image{Filename: "f", ContentType: "image/png", SizeBytes: 1, StorageKey: "k"}
	if err := s.Insert(ctx, img); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	if err := s.AddTag(ctx, img.ID, "  Beach ", 0.5); err != nil {
		t.Fatalf("AddTag() error = %v", err)
	}
	if err := s.AddTag(ctx, img.ID, "sunset", 0.8); err != nil {
		t.Fatalf("AddTag() error = %v", err)
	}
	// Re-tagging updates the confidence instead of erroring.
	if err := s.AddTag(ctx, img.ID, "beach", 0.7); err != nil {
		t.Fatalf("AddTag() duplicate error = %v", err)
	}

	tags, err := s.Tags(ctx, img.ID)
	if err != nil {
		t.Fatalf("Tags() error = %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("Tags() returned %d tags, want 2", len(tags))
	}
	if tags[0].Name != "beach" || tags[0].Confidence != 0.7 {
		t.Errorf("Tags()[0] = %+v, want beach/0.7 (normalized, updated)", tags[0])
	}
	if tags[1].Name != "sunset" {
		t.Errorf("Tags()[1] = %+v, want sunset", tags[1])
	}
}

func TestStore_AddTag_Validation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.AddTag(ctx, "no-such-image", "beach", 0.5); !errors.Is(err, ErrNotFound) {
		t.Errorf("AddTag() on missing image error = %v, want ErrNotFound", err)
	}

	img := &Image{Filename: "f", ContentType: "image/png", SizeBytes: 1, StorageKey: "k"}
	if err := s.Insert(ctx, img); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := s.AddTag(ctx, img.ID, "   ", 0.5); err == nil {
		t.Error("AddTag() with blank tag error = nil, want error")
	}
}
