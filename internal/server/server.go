package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server wires the store, gate, and rate limiter into the HTTP
// request lifecycle. It owns no per-request state.
type Server struct {
	httpServer *http.Server
	cfg        Config
	store      *Store
	gate       *Gate
	limiter    *rateLimiter
	started    time.Time
}

// New builds the server: creates the data directory, the access gate,
// and the per-address upload limiter, and mounts all routes.
func New(cfg Config) (*Server, error) {
	store, err := NewStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		store:   store,
		gate:    NewGate(cfg.Password, cfg.PasswordHash, cfg.TokenTTL),
		limiter: newRateLimiter(cfg.RateLimit, cfg.RateWindow),
		started: time.Now(),
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware)
	r.Use(securityHeadersMiddleware)

	// Probes and auth stay open in every mode.
	r.Get("/health", s.healthHandler())
	r.Get("/status", s.statusHandler())
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/auth", s.gate.authHandler())

	// The limiter counts every upload attempt, authorized or not, so
	// it sits outside the auth check.
	r.With(s.limiter.middleware, s.gate.requireAuth).Post("/upload", s.uploadHandler())
	r.With(s.gate.requireAuth).Get("/files", s.filesHandler())
	r.With(s.gate.requireAuth).Get("/download/{filename}", s.downloadHandler())

	if cfg.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))
	}

	// No global read/write timeouts: uploads and downloads are long
	// lived. The upload handler sets its own read deadline.
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s, nil
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Store exposes the file store for tests.
func (s *Server) Store() *Store {
	return s.store
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
