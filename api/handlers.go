package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nhalm/canonlog"

	"github.com/snapvault/snapvault/cache"
	"github.com/snapvault/snapvault/metadata"
	"github.com/snapvault/snapvault/storage"
	"github.com/snapvault/snapvault/tasks"
)

// cacheKindImage is the entity tag under which image metadata is cached.
const cacheKindImage = "image"

type uploadedFile struct {
	Filename    string `validate:"required,max=255"`
	ContentType string `validate:"required,max=128"`
	SizeBytes   int64  `validate:"gt=0"`
}

// handleUpload stores a new image: admission acquire, body read, blob save,
// metadata insert, cache populate. The rate limit check already ran in
// middleware. An admission timeout is a 503 with Retry-After, not an error.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Acquire before reading the body so concurrent large uploads cannot
	// grow memory without bound.
	if !s.uploads.Acquire(ctx) {
		retryAfter := int(s.uploads.Timeout().Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		canonlog.InfoAdd(ctx, "upload_rejected", "busy")
		writeError(w, ErrServiceBusy)
		return
	}
	defer s.uploads.Release()

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, ErrPayloadTooLarge)
			return
		}
		writeError(w, ErrBadRequest.With("Malformed multipart body"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, ErrBadRequest.With("Missing file field"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, ErrPayloadTooLarge)
			return
		}
		writeError(w, ErrBadRequest.With("Failed to read file"))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	req := uploadedFile{
		Filename:    header.Filename,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, ErrBadRequest.With("Invalid upload"))
		return
	}

	// Key is collision-free by construction: a fresh UUID plus the
	// original extension.
	id := uuid.NewString()
	key := id + path.Ext(header.Filename)

	location, err := s.blobs.Save(ctx, key, data, contentType)
	if err != nil {
		// Storage never fails open; losing bytes silently is worse
		// than a failed upload.
		canonlog.ErrorAdd(ctx, fmt.Errorf("blob save failed: %w", err))
		writeError(w, ErrInternal)
		return
	}
	canonlog.InfoAdd(ctx, "blob_location", location)

	img := &metadata.Image{
		ID:          id,
		Filename:    header.Filename,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
		StorageKey:  key,
	}
	if err := s.meta.Insert(ctx, img); err != nil {
		// Don't leave an orphaned blob behind the failed row.
		_, _ = s.blobs.Delete(ctx, key)
		canonlog.ErrorAdd(ctx, fmt.Errorf("metadata insert failed: %w", err))
		writeError(w, ErrInternal)
		return
	}

	s.cache.Set(ctx, cacheKindImage, img.ID, img, 0)

	writeJSON(w, http.StatusCreated, img)
}

// handleGetMetadata serves image metadata through the cache-aside path and
// reports the outcome in an X-Cache header (hit, miss, or disabled).
func (s *Server) handleGetMetadata(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	img, outcome, err := cache.Lookup(ctx, s.cache, cacheKindImage, id, func(ctx context.Context) (*metadata.Image, error) {
		return s.meta.Get(ctx, id)
	})
	canonlog.InfoAdd(ctx, "cache", string(outcome))

	if err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			writeError(w, ErrNotFound.With("Image not found"))
			return
		}
		canonlog.ErrorAdd(ctx, err)
		writeError(w, ErrInternal)
		return
	}

	w.Header().Set("X-Cache", string(outcome))
	writeJSON(w, http.StatusOK, img)
}

// handleGetContent serves the stored bytes.
func (s *Server) handleGetContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	img, outcome, err := cache.Lookup(ctx, s.cache, cacheKindImage, id, func(ctx context.Context) (*metadata.Image, error) {
		return s.meta.Get(ctx, id)
	})
	canonlog.InfoAdd(ctx, "cache", string(outcome))
	if err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			writeError(w, ErrNotFound.With("Image not found"))
			return
		}
		canonlog.ErrorAdd(ctx, err)
		writeError(w, ErrInternal)
		return
	}

	data, err := s.blobs.Get(ctx, img.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, ErrNotFound.With("Image content not found"))
			return
		}
		canonlog.ErrorAdd(ctx, err)
		writeError(w, ErrInternal)
		return
	}

	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleDelete removes the metadata row and defers blob and cache cleanup to
// the task queue. Without an enqueuer, cleanup runs inline best-effort.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	img, err := s.meta.Get(ctx, id)
	if err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			writeError(w, ErrNotFound.With("Image not found"))
			return
		}
		canonlog.ErrorAdd(ctx, err)
		writeError(w, ErrInternal)
		return
	}

	deleted, err := s.meta.Delete(ctx, id)
	if err != nil {
		canonlog.ErrorAdd(ctx, err)
		writeError(w, ErrInternal)
		return
	}
	if !deleted {
		writeError(w, ErrNotFound.With("Image not found"))
		return
	}

	s.cleanupBlobs(r, img)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) cleanupBlobs(r *http.Request, img *metadata.Image) {
	ctx := r.Context()
	payload := tasks.CleanupImagePayload{
		ImageID:      img.ID,
		StorageKey:   img.StorageKey,
		ThumbnailKey: img.ThumbnailKey,
	}

	if s.enqueuer != nil {
		if task, err := tasks.NewCleanupImageTask(payload); err == nil {
			if _, err := s.enqueuer.EnqueueContext(ctx, task); err == nil {
				canonlog.InfoAdd(ctx, "cleanup", "enqueued")
				return
			}
			canonlog.ErrorAdd(ctx, fmt.Errorf("cleanup enqueue failed, running inline: %w", err))
		}
	}

	// Inline fallback; failures are logged, the row is already gone.
	if _, err := s.blobs.Delete(ctx, img.StorageKey); err != nil {
		canonlog.ErrorAdd(ctx, fmt.Errorf("inline blob cleanup failed: %w", err))
	}
	if img.ThumbnailKey != "" {
		if _, err := s.blobs.Delete(ctx, img.ThumbnailKey); err != nil {
			canonlog.ErrorAdd(ctx, fmt.Errorf("inline thumbnail cleanup failed: %w", err))
		}
	}
	s.cache.Invalidate(ctx, cacheKindImage, img.ID)
}

// List pagination bounds. The limit is clamped, not rejected, so an
// over-asking client still gets a page.
const (
	defaultListLimit = 50
	maxListLimit     = 100
)

// handleList returns a page of image metadata, newest first.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultListLimit
	} else if limit > maxListLimit {
		limit = maxListLimit
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	images, err := s.meta.List(ctx, limit, offset)
	if err != nil {
		canonlog.ErrorAdd(ctx, err)
		writeError(w, ErrInternal)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"images": images})
}

type addTagRequest struct {
	Name       string  `json:"name" validate:"required,max=64"`
	Confidence float64 `json:"confidence" validate:"min=0,max=1"`
}

// handleAddTag attaches a tag to an image.
func (s *Server) handleAddTag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req addTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ErrBadRequest.With("Malformed JSON body"))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, ErrBadRequest.With("Invalid tag"))
		return
	}

	if err := s.meta.AddTag(ctx, id, req.Name, req.Confidence); err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			writeError(w, ErrNotFound.With("Image not found"))
			return
		}
		canonlog.ErrorAdd(ctx, err)
		writeError(w, ErrInternal)
		return
	}

	// Tags aren't part of the cached snapshot, but a write is still a
	// write; drop the entry so the next read repopulates consistently.
	s.cache.Invalidate(ctx, cacheKindImage, id)

	w.WriteHeader(http.StatusNoContent)
}

// handleListTags lists an image's tags.
func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if _, err := s.meta.Get(ctx, id); err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			writeError(w, ErrNotFound.With("Image not found"))
			return
		}
		canonlog.ErrorAdd(ctx, err)
		writeError(w, ErrInternal)
		return
	}

	tags, err := s.meta.Tags(ctx, id)
	if err != nil {
		canonlog.ErrorAdd(ctx, err)
		writeError(w, ErrInternal)
		return
	}
	if tags == nil {
		tags = []metadata.Tag{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

// handleRateLimitStatus reports the caller's current quota without
// consuming any of it.
func (s *Server) handleRateLimitStatus(w http.ResponseWriter, r *http.Request) {
	status := s.limiter.Status(r.Context(), clientIP(r))
	writeJSON(w, http.StatusOK, map[string]any{
		"current_count": status.CurrentCount,
		"limit":         status.Limit,
		"remaining":     status.Remaining,
		"ttl_seconds":   int(status.TTL.Seconds()),
	})
}

// handleHealth reports per-component health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.Report(r.Context())
	writeJSON(w, http.StatusOK, report)
}
