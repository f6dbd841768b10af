// Package api exposes the service over HTTP: node CRUD, capability
// discovery, transfer job management, single-use data endpoints, and
// searches.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/voservices/vospace/internal/logger"
	"github.com/voservices/vospace/pkg/backend"
	"github.com/voservices/vospace/pkg/namespace"
	"github.com/voservices/vospace/pkg/transfer"
)

// Config holds the HTTP server settings.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
}

// Server is the HTTP front-end. All domain decisions live in the
// namespace service and the transfer coordinator; handlers translate
// between HTTP and those services.
type Server struct {
	cfg     Config
	ns      *namespace.Service
	coord   *transfer.Coordinator
	backend backend.Backend
	auth    Authorizer

	server *http.Server
}

// New creates an API server. A nil authorizer allows everything.
func New(cfg Config, ns *namespace.Service, coord *transfer.Coordinator, be backend.Backend, auth Authorizer) *Server {
	if auth == nil {
		auth = AllowAll{}
	}
	return &Server{
		cfg:     cfg,
		ns:      ns,
		coord:   coord,
		backend: be,
		auth:    auth,
	}
}

// Start runs the HTTP server until the context is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:     s.Routes(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	logger.Info("HTTP server listening on %s", s.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("HTTP server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Routes builds the router. Exposed separately so tests can drive the
// handlers without a listener.
func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)

	r.Route("/nodes", func(r chi.Router) {
		r.Get("/*", s.handleGetNode)
		r.Put("/*", s.handleCreateNode)
		r.Post("/*", s.handleUpdateNode)
		r.Delete("/*", s.handleDeleteNode)
	})

	r.Get("/protocols", s.handleGetProtocols)
	r.Get("/views", s.handleGetViews)
	r.Get("/properties", s.handleGetProperties)

	r.Post("/transfers", s.handleCreateTransfer)
	r.Post("/sync", s.handleSyncTransfer)
	r.Get("/transfers/{jobID}", s.handleGetJob)
	r.Get("/transfers/{jobID}/phase", s.handleGetPhase)
	r.Post("/transfers/{jobID}/phase", s.handleSetPhase)
	r.Get("/transfers/{jobID}/results/{resultID}", s.handleGetResult)

	r.Post("/searches", s.handleSearch)

	r.Get("/data/{token}", s.handleDataGet)
	r.Put("/data/{token}", s.handleDataPut)

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "ok")
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Debug("%s %s -> %d (%s)", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

// nodeURI maps the wildcard path of a /nodes request onto a node URI.
func (s *Server) nodeURI(r *http.Request) string {
	rest := chi.URLParam(r, "*")
	if rest == "" {
		return s.ns.Root()
	}
	return s.ns.Root() + "/" + rest
}
