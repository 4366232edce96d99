// Package api exposes the import pipeline over HTTP: file upload and header
// detection, mapping review, ETL preview, batch upload kickoff, and progress
// polling.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/list-importer/internal/config"
	"github.com/ignite/list-importer/internal/etl"
	"github.com/ignite/list-importer/internal/session"
	"github.com/ignite/list-importer/internal/store"
	"github.com/ignite/list-importer/internal/uploader"
)

// Service wires the pipeline components behind the HTTP handlers. contacts is
// nil when no database is configured; dedup then runs in-file only.
type Service struct {
	sessions *session.Store
	contacts *store.ContactStore
	pipeline *etl.Pipeline
	uploader *uploader.Uploader
	cfg      *config.Config
}

// NewService builds the Service. contacts may be nil.
func NewService(cfg *config.Config, sessions *session.Store, contacts *store.ContactStore) *Service {
	return &Service{
		sessions: sessions,
		contacts: contacts,
		pipeline: etl.NewPipeline(cfg.Import.Required()...),
		uploader: uploader.New(cfg.Upload.Endpoint,
			uploader.WithBatchSize(cfg.Upload.BatchSize),
			uploader.WithBatchTimeout(cfg.Upload.BatchTimeout())),
		cfg: cfg,
	}
}

// newUploader builds an uploader with a per-run batch size override.
func (s *Service) newUploader(batchSize int) *uploader.Uploader {
	return uploader.New(s.cfg.Upload.Endpoint,
		uploader.WithBatchSize(batchSize),
		uploader.WithBatchTimeout(s.cfg.Upload.BatchTimeout()))
}

// Router returns the chi router with all import routes mounted.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/fields", s.HandleFields)
		r.Route("/imports", func(r chi.Router) {
			r.Post("/", s.HandleCreateImport)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Post("/process", s.HandleProcess)
				r.Post("/upload", s.HandleStartUpload)
				r.Get("/progress", s.HandleProgress)
				r.Delete("/", s.HandleReset)
			})
		})
	})
	return r
}
