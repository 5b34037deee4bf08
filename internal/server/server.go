// Package server exposes a previous run's output documents over a
// read-only HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geoprofiles/internal/normalize"
	"github.com/sells-group/geoprofiles/internal/output"
	"github.com/sells-group/geoprofiles/internal/roster"
)

// Server serves output documents.
type Server struct {
	docs    *output.Documents
	byName  map[string]string // normalized researcher name -> document key
	origins []string
	urls    roster.URLIndex
	router  chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithURLs adds profile URLs to researcher responses.
func WithURLs(urls roster.URLIndex) Option {
	return func(s *Server) { s.urls = urls }
}

// New builds a Server over docs. origins lists CORS origins; empty allows
// any.
func New(docs *output.Documents, origins []string, opts ...Option) *Server {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s := &Server{
		docs:    docs,
		byName:  make(map[string]string, len(docs.Researchers)),
		origins: origins,
	}
	for _, opt := range opts {
		opt(s)
	}
	for name := range docs.Researchers {
		s.byName[normalize.Researcher(name)] = name
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/research-locations", s.researchLocations)
		r.Get("/researchers", s.listResearchers)
		r.Get("/researchers/{name}", s.getResearcher)
		r.Get("/locations/{name}", s.getLocation)
		r.Get("/summary", s.summary)
	})
	s.router = r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("server: listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return eris.Wrap(err, "server: listen")
		}
		return nil
	case <-ctx.Done():
	}

	zap.L().Info("server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server: shutdown")
	}
	return nil
}

// Addr formats a listen address for port.
func Addr(port int) string {
	return fmt.Sprintf(":%d", port)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("server: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
