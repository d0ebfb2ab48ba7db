// Package server exposes the question-answering service over HTTP and
// websockets.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ziadkadry99/productassist/internal/health"
	"github.com/ziadkadry99/productassist/internal/logging"
	"github.com/ziadkadry99/productassist/internal/metrics"
	"github.com/ziadkadry99/productassist/internal/retriever"
	"github.com/ziadkadry99/productassist/internal/session"
)

// Config holds server configuration.
type Config struct {
	Port           int
	AllowAll       bool // allow all CORS and websocket origins (dev mode)
	RequestTimeout time.Duration
	TopK           int
}

// Asker answers questions for a session.
type Asker interface {
	Submit(ctx context.Context, sessionID, question string, clearHistory bool) (*session.Result, error)
}

// Searcher runs catalog searches.
type Searcher interface {
	ParallelSearch(ctx context.Context, queries []string, k int) [][]retriever.Match
	IsReady() bool
}

// Server is the HTTP front end.
type Server struct {
	cfg        Config
	asker      Asker
	searcher   Searcher
	checker    *health.Checker
	metrics    *metrics.Metrics
	logger     *slog.Logger
	router     chi.Router
	httpServer *http.Server
}

// New creates a Server. checker and m may be nil.
func New(cfg Config, asker Asker, searcher Searcher, checker *health.Checker, m *metrics.Metrics) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 2 * time.Minute
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 6
	}
	if checker == nil {
		checker = health.NewChecker()
	}
	s := &Server{
		cfg:      cfg,
		asker:    asker,
		searcher: searcher,
		checker:  checker,
		metrics:  m,
		logger:   logging.WithComponent("server"),
	}
	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware(routePattern))

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", sessionHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the product assistant API"})
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	r.Get("/livez", s.checker.LiveHandler())
	r.Get("/readyz", s.checker.ReadyHandler())
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.requireReady)
		r.Post("/ask_question", s.handleAsk)
		r.Post("/search", s.handleSearch)
		r.Get("/ws/chat", s.handleWebSocket)
	})

	return r
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

// Router returns the chi router.
func (s *Server) Router() chi.Router { return s.router }

// Start listens on the configured port until Shutdown is called.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("listening: %w", err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.logger.Info("server listening", "addr", ln.Addr().String())
	err := s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// requireReady answers 503 until the catalog index is ready.
func (s *Server) requireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.searcher.IsReady() {
			writeError(w, r, retriever.ErrNotReady)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs each request with slog and stores the request id
// in the context for downstream loggers.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logging.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		logging.FromContext(ctx).Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}
