package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store persists images and tags in a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sql open failed for %s: %w", path, err)
	}
	// SQLite allows one writer; serialize through a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(`PRAGMA busy_timeout=5000;`); err != nil {
		return nil, fmt.Errorf("set busy timeout failed for %s: %w", path, err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS images (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			content_type TEXT NOT NULL,
			size_bytes INTEGER NOT NULL,
			width INTEGER NOT NULL DEFAULT 0,
			height INTEGER NOT NULL DEFAULT 0,
			storage_key TEXT NOT NULL,
			thumbnail_key TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`); err != nil {
		return nil, fmt.Errorf("create images table failed for %s: %w", path, err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS image_tags (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			image_id TEXT NOT NULL,
			tag TEXT NOT NULL,
			confidence REAL,
			UNIQUE(image_id, tag)
		);
	`); err != nil {
		return nil, fmt.Errorf("create image_tags table failed for %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func isRetryableSQLiteError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database is busy") ||
		strings.Contains(msg, "sqlite_busy")
}

func withRetry(op func() error) error {
	var err error
	backoff := 50 * time.Millisecond
	for i := 0; i < 4; i++ {
		err = op()
		if err == nil {
			return nil
		}
		if !isRetryableSQLiteError(err) {
			return err
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	return err
}

// Insert stores a new image record. A missing ID is assigned a fresh UUID;
// CreatedAt and UpdatedAt are set to the current time if zero.
func (s *Store) Insert(ctx context.Context, img *Image) error {
	if img.ID == "" {
		img.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if img.CreatedAt.IsZero() {
		img.CreatedAt = now
	}
	if img.UpdatedAt.IsZero() {
		img.UpdatedAt = img.CreatedAt
	}

	return withRetry(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO images (id, filename, content_type, size_bytes, width, height, storage_key, thumbnail_key, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			img.ID, img.Filename, img.ContentType, img.SizeBytes, img.Width, img.Height,
			img.StorageKey, img.ThumbnailKey,
			img.CreatedAt.Format(time.RFC3339Nano), img.UpdatedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert image %s failed: %w", img.ID, err)
		}
		return nil
	})
}

// Get returns the image with the given id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Image, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, filename, content_type, size_bytes, width, height, storage_key, thumbnail_key, created_at, updated_at
		FROM images WHERE id = ?`, id)
	img, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get image %s failed: %w", id, err)
	}
	return img, nil
}

// List returns up to limit images ordered by creation time, newest first.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Image, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, content_type, size_bytes, width, height, storage_key, thumbnail_key, created_at, updated_at
		FROM images ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, limit, max(0, offset))
	if err != nil {
		return nil, fmt.Errorf("list images failed: %w", err)
	}
	defer rows.Close()

	// Cap the preallocation; limit is caller-supplied and only a hint.
	images := make([]Image, 0, min(limit, 64))
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("list images failed: %w", err)
		}
		images = append(images, *img)
	}
	return images, rows.Err()
}

// Delete removes the image and its tags in one transaction. Returns false if
// no row existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := withRetry(func() error {
		deleted = false
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("delete image %s failed: %w", id, err)
		}
		defer tx.Rollback()

		res, err := tx.ExecContext(ctx, `DELETE FROM images WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete image %s failed: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		deleted = n > 0
		if deleted {
			if _, err := tx.ExecContext(ctx, `DELETE FROM image_tags WHERE image_id = ?`, id); err != nil {
				return fmt.Errorf("delete tags for image %s failed: %w", id, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("delete image %s failed: %w", id, err)
		}
		return nil
	})
	return deleted, err
}

// AddTag attaches a tag to an image, updating the confidence if the tag is
// already present. Tag names are lower-cased and trimmed.
func (s *Store) AddTag(ctx context.Context, imageID, tag string, confidence float64) error {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return errors.New("metadata: tag is required")
	}
	if _, err := s.Get(ctx, imageID); err != nil {
		return err
	}

	return withRetry(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO image_tags (image_id, tag, confidence) VALUES (?, ?, ?)
			ON CONFLICT(image_id, tag) DO UPDATE SET confidence = excluded.confidence`,
			imageID, tag, confidence)
		if err != nil {
			return fmt.Errorf("add tag %s to image %s failed: %w", tag, imageID, err)
		}
		return nil
	})
}

// Tags returns the tags attached to an image, alphabetically.
func (s *Store) Tags(ctx context.Context, imageID string) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tag, COALESCE(confidence, 0) FROM image_tags WHERE image_id = ? ORDER BY tag`, imageID)
	if err != nil {
		return nil, fmt.Errorf("list tags for image %s failed: %w", imageID, err)
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.Name, &t.Confidence); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(row rowScanner) (*Image, error) {
	var img Image
	var createdAt, updatedAt string
	if err := row.Scan(&img.ID, &img.Filename, &img.ContentType, &img.SizeBytes,
		&img.Width, &img.Height, &img.StorageKey, &img.ThumbnailKey,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if img.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("bad created_at for image %s: %w", img.ID, err)
	}
	if img.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("bad updated_at for image %s: %w", img.ID, err)
	}
	return &img, nil
}
