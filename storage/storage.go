// Package storage abstracts where uploaded bytes live.
//
// A Backend exposes four verbs - Save, Get, Delete, Exists - over opaque
// string keys. Two implementations are provided: a local-filesystem backend
// for development and a MinIO (S3-compatible) backend for production. Callers
// select one at startup through New and never branch on the backend again.
//
// Absence is a distinct condition from failure: Get returns ErrNotFound for a
// missing key, and Delete of a missing key returns false without error.
// Storage does not fail open - any other error is surfaced to the caller,
// because silently dropping bytes is not tolerable.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound reports that no object exists under the requested key.
// Callers branch on it with errors.Is.
var ErrNotFound = errors.New("storage: object not found")

// Backend names understood by New.
const (
	BackendLocal = "local"
	BackendMinio = "minio"
)

// Backend stores and retrieves raw bytes under opaque keys.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Save writes data under key with the declared content type and
	// returns a location token (a path or object URL) for diagnostics.
	// Saving to an existing key overwrites it.
	Save(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// Get returns the bytes stored under key.
	// Returns ErrNotFound if the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the object under key. Returns false without error if
	// the key was already absent.
	Delete(ctx context.Context, key string) (bool, error)

	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
}

// Config selects and parameterizes a backend.
type Config struct {
	// Backend is one of BackendLocal or BackendMinio.
	Backend string

	// LocalPath is the root directory for the local backend.
	LocalPath string

	// MinIO connection parameters.
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool

	// StartupTimeout bounds the bucket existence check at boot, so an
	// unreachable object store fails fast instead of hanging.
	StartupTimeout time.Duration
}

// New constructs the configured backend. The MinIO backend verifies (and if
// needed creates) its bucket before returning, under Config.StartupTimeout.
func New(ctx context.Context, config Config) (Backend, error) {
	switch config.Backend {
	case BackendLocal:
		return NewLocal(config.LocalPath)
	case BackendMinio:
		return NewMinio(ctx, config)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", config.Backend)
	}
}
