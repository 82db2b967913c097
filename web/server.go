// ABOUTME: HTTP JSON API server over the lead pipeline
// ABOUTME: Configures the chi router, middleware stack, metrics endpoint, and graceful shutdown
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/harperreed/leadsheet/handlers"
)

type Server struct {
	pipeline *handlers.Pipeline
	gatherer prometheus.Gatherer
	logger   *zap.Logger
	origins  []string
}

// NewServer creates a server. gatherer backs /metrics; nil disables it.
func NewServer(pipeline *handlers.Pipeline, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		pipeline: pipeline,
		gatherer: gatherer,
		logger:   logger,
		origins:  []string{"http://localhost:5173", "http://localhost:8080"},
	}
}

// WithOrigins replaces the allowed CORS origins.
func (s *Server) WithOrigins(origins ...string) *Server {
	s.origins = origins
	return s
}

// requestLogger logs one line per request through zap.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// Router returns the handler with all routes configured.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/leads", func(r chi.Router) {
			r.Get("/", s.ListLeads)
			r.Post("/", s.CreateLead)
			r.Get("/{id}", s.GetLead)
			r.Put("/{id}", s.UpdateLead)
			r.Get("/{id}/missing", s.MissingFields)
			r.Post("/{id}/stage", s.MoveStage)
		})

		r.Get("/health", s.Health)
		r.Get("/options", s.Options)
		r.Get("/rules", s.GetRules)
		r.Put("/rules", s.SaveRules)
		r.Get("/status", s.Status)
		r.Post("/refresh", s.Refresh)
	})

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

// Start serves on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting web server", zap.String("addr", "http://"+addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.logger.Info("shutting down web server")
	return srv.Shutdown(shutdownCtx)
}
