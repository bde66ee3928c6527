package api

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"github.com/snapvault/snapvault/admission"
	"github.com/snapvault/snapvault/cache"
	"github.com/snapvault/snapvault/health"
	"github.com/snapvault/snapvault/metadata"
	"github.com/snapvault/snapvault/ratelimit"
	"github.com/snapvault/snapvault/storage"
)

// Enqueuer submits background tasks. Satisfied by *asynq.Client; a nil
// Enqueuer makes the server run cleanup inline instead.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Server holds every dependency the handlers need. Dependencies are injected
// explicitly so tests can substitute fakes without global state.
type Server struct {
	meta           *metadata.Store
	blobs          storage.Backend
	cache          *cache.Cache
	limiter        *ratelimit.Limiter
	uploads        *admission.Controller
	enqueuer       Enqueuer
	monitor        *health.Monitor
	maxUploadBytes int64
	validate       *validator.Validate
}

// Deps bundles the constructor arguments for NewServer.
type Deps struct {
	Metadata       *metadata.Store
	Blobs          storage.Backend
	Cache          *cache.Cache
	Limiter        *ratelimit.Limiter
	Uploads        *admission.Controller
	Enqueuer       Enqueuer
	Monitor        *health.Monitor
	MaxUploadBytes int64
}

// NewServer wires the handlers to their dependencies.
func NewServer(deps Deps) *Server {
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 10 << 20
	}
	return &Server{
		meta:           deps.Metadata,
		blobs:          deps.Blobs,
		cache:          deps.Cache,
		limiter:        deps.Limiter,
		uploads:        deps.Uploads,
		enqueuer:       deps.Enqueuer,
		monitor:        deps.Monitor,
		maxUploadBytes: deps.MaxUploadBytes,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger())

	r.Get("/healthz", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit)

		r.Route("/images", func(r chi.Router) {
			r.Post("/", s.handleUpload)
			r.Get("/", s.handleList)
			r.Get("/{id}", s.handleGetMetadata)
			r.Get("/{id}/content", s.handleGetContent)
			r.Delete("/{id}", s.handleDelete)
			r.Get("/{id}/tags", s.handleListTags)
			r.Post("/{id}/tags", s.handleAddTag)
		})

		r.Get("/ratelimit/status", s.handleRateLimitStatus)
	})

	return r
}
