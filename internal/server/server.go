// Package server exposes the extraction pipeline and saved loads over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/ratecon-tracker/internal/common"
	"github.com/joseph-ayodele/ratecon-tracker/internal/entity"
	"github.com/joseph-ayodele/ratecon-tracker/internal/pipeline"
	"github.com/joseph-ayodele/ratecon-tracker/internal/storage"
)

// Extractor runs one upload through the pipeline.
type Extractor interface {
	Run(ctx context.Context, doc entity.UploadedDocument, form entity.FormState) (pipeline.Result, error)
}

// LoadStore persists form drafts.
type LoadStore interface {
	Create(ctx context.Context, form entity.FormState, sourceSHA string) (*entity.Load, error)
	Update(ctx context.Context, id uuid.UUID, form entity.FormState) (*entity.Load, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.Load, error)
	List(ctx context.Context, limit int) ([]entity.Load, error)
}

// Exporter renders saved loads as a workbook.
type Exporter interface {
	ExportLoadsXLSX(ctx context.Context) ([]byte, error)
}

type Config struct {
	MaxUploadBytes int64
	RateLimitRPS   float64
	RateLimitBurst int
	AllowedOrigins []string
	RunTimeout     time.Duration // 0 leaves a shared run unbounded
}

type Server struct {
	cfg      Config
	extract  Extractor
	loads    LoadStore
	exporter Exporter
	archive  storage.DocumentStore
	limiter  *rate.Limiter
	group    singleflight.Group
	logger   *slog.Logger
}

// New wires the HTTP surface. loads, exporter and archive may be nil; the
// routes that need them answer 503.
func New(cfg Config, extract Extractor, loads LoadStore, exporter Exporter, archive storage.DocumentStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	limit := rate.Inf
	if cfg.RateLimitRPS > 0 {
		limit = rate.Limit(cfg.RateLimitRPS)
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 1
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	return &Server{
		cfg:      cfg,
		extract:  extract,
		loads:    loads,
		exporter: exporter,
		archive:  archive,
		limiter:  rate.NewLimiter(limit, cfg.RateLimitBurst),
		logger:   logger,
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.With(s.rateLimit).Post("/ratecons/extract", s.handleExtract)

		r.Route("/loads", func(r chi.Router) {
			r.Get("/", s.handleListLoads)
			r.Post("/", s.handleCreateLoad)
			r.Get("/export.xlsx", s.handleExport)
			r.Get("/{id}", s.handleGetLoad)
			r.Put("/{id}", s.handleUpdateLoad)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := middleware.GetReqID(r.Context())
		log := s.logger.With("request_id", reqID)
		ctx := common.WithRequestID(r.Context(), reqID)
		ctx = common.WithLogger(ctx, log)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		log.Info("http.request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}
