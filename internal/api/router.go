// Package api wires the HTTP surface: router, middleware stack, and server
// lifecycle.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/estatekit/media-crawler/internal/api/handlers"
	"github.com/estatekit/media-crawler/internal/api/middleware"
	"github.com/estatekit/media-crawler/pkg/logger"
)

// RouterConfig holds configuration for the API router.
type RouterConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int

	// RequestTimeout bounds the fast routes. Crawl routes get CrawlTimeout
	// instead, sized above the navigation budget plus the media and settle
	// waits.
	RequestTimeout time.Duration
	CrawlTimeout   time.Duration

	EnableRateLimiting bool
	RateLimitConfig    middleware.RateLimitConfig
}

// DefaultRouterConfig returns a default router configuration.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		AllowedOrigins:     []string{"*"},
		AllowedMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:     []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials:   false,
		MaxAge:             300,
		RequestTimeout:     30 * time.Second,
		CrawlTimeout:       90 * time.Second,
		EnableRateLimiting: true,
		RateLimitConfig:    middleware.DefaultRateLimitConfig(),
	}
}

// Dependencies holds everything the API handlers need.
type Dependencies struct {
	Logger         *logger.Logger
	Crawler        handlers.CrawlService
	Fetcher        handlers.Fetcher
	AssetStore     handlers.AssetStore
	Cache          handlers.ResultCache
	RateLimitStore middleware.RateLimitStore
	Version        string
}

// NewRouter creates the Chi router with the full middleware stack and all
// routes.
func NewRouter(deps Dependencies, config RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	log := deps.Logger
	if log == nil {
		log = logger.Default()
	}

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   config.AllowedOrigins,
		AllowedMethods:   config.AllowedMethods,
		AllowedHeaders:   config.AllowedHeaders,
		ExposedHeaders:   config.ExposedHeaders,
		AllowCredentials: config.AllowCredentials,
		MaxAge:           config.MaxAge,
	}))

	var rateLimiter *middleware.RateLimiter
	if config.EnableRateLimiting {
		store := deps.RateLimitStore
		if store == nil {
			store = middleware.NewMemoryRateLimitStore()
		}
		rateLimiter = middleware.NewRateLimiter(store, config.RateLimitConfig, log)
	}

	// Probes bypass rate limiting and timeouts.
	r.Get("/health", handlers.HealthCheck(deps.Version))
	r.Get("/ready", handlers.ReadyCheck(deps.AssetStore, deps.Cache))

	r.Route("/api/v1", func(r chi.Router) {
		// Crawling holds the connection open for the length of a browser
		// session, so it lives outside the standard request timeout.
		r.Route("/media", func(r chi.Router) {
			r.With(timeoutAnd(config.CrawlTimeout, rateLimiter, "crawl")...).
				Post("/crawl", handlers.HandleCrawl(deps.Crawler, deps.Cache, log))
			r.With(timeoutAnd(config.RequestTimeout, rateLimiter, "assets")...).
				Post("/proxy", handlers.HandleProxy(deps.Fetcher, log))
		})

		r.Route("/profile", func(r chi.Router) {
			r.Use(timeoutAnd(config.RequestTimeout, rateLimiter, "profile")...)
			r.Post("/extract", handlers.HandleProfile(deps.Fetcher, deps.Cache, log))
		})

		r.Route("/assets", func(r chi.Router) {
			r.Use(timeoutAnd(config.RequestTimeout, rateLimiter, "assets")...)
			r.Post("/upload", handlers.HandleUpload(deps.AssetStore, log))
			r.Delete("/*", handlers.HandleDeleteAsset(deps.AssetStore, log))
		})
	})

	return r
}

// timeoutAnd composes the per-route timeout with the optional rate limiter.
func timeoutAnd(timeout time.Duration, rl *middleware.RateLimiter, limitType string) []func(http.Handler) http.Handler {
	mws := []func(http.Handler) http.Handler{chimiddleware.Timeout(timeout)}
	if rl != nil {
		mws = append(mws, rl.Middleware(limitType))
	}
	return mws
}

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns default server configuration. WriteTimeout
// must exceed the crawl route timeout or responses get cut off mid-crawl.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "",
		Port:            8080,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    120 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// NewServer creates a new HTTP server.
func NewServer(handler http.Handler, config ServerConfig, log *logger.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         formatAddr(config.Host, config.Port),
			Handler:      handler,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
		log: log,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

func formatAddr(host string, port int) string {
	if host == "" {
		return fmt.Sprintf(":%d", port)
	}
	return fmt.Sprintf("%s:%d", host, port)
}
