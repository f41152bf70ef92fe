package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/vegas-max/Titan2.0/internal/chains"
	"github.com/vegas-max/Titan2.0/internal/config"
	"github.com/vegas-max/Titan2.0/internal/ethrpc"
	"github.com/vegas-max/Titan2.0/internal/service"
	"github.com/vegas-max/Titan2.0/internal/storage"
)

// Options wires the server's collaborators. Scanner and SizingStore may be
// nil; the corresponding endpoints degrade gracefully.
type Options struct {
	Config      *config.Config
	Registry    *chains.Registry
	TVL         ethrpc.TVLReader
	Scanner     *service.Service
	SizingStore storage.SizingStore
	Logger      zerolog.Logger
}

// Server exposes the HTTP API.
type Server struct {
	router      *chi.Mux
	server      *http.Server
	logger      zerolog.Logger
	registry    *chains.Registry
	tvl         ethrpc.TVLReader
	scanner     *service.Service
	sizingStore storage.SizingStore
	sizers      *sizerCache
	lender      string
}

// New builds the router and the underlying http.Server.
func New(opts Options) *Server {
	timeout := opts.Config.Server.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	s := &Server{
		router:      chi.NewRouter(),
		logger:      opts.Logger.With().Str("component", "server").Logger(),
		registry:    opts.Registry,
		tvl:         opts.TVL,
		scanner:     opts.Scanner,
		sizingStore: opts.SizingStore,
		sizers:      newSizerCache(opts.Config.Guardrails, opts.TVL, opts.Logger),
		lender:      opts.Config.Server.DefaultLender,
	}

	s.setupMiddleware(timeout)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Router exposes the chi mux, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware(timeout time.Duration) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(timeout))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/tvl", s.handleTVL)
		r.Post("/optimize_loan", s.handleOptimizeLoan)
		r.Get("/routes", s.handleRoutes)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}

// Start blocks serving HTTP until the listener closes.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("http server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
