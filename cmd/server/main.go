// Package main is the entry point for the media crawler service and its
// one-shot CLI commands.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/estatekit/media-crawler/internal/api"
	"github.com/estatekit/media-crawler/internal/api/middleware"
	"github.com/estatekit/media-crawler/internal/config"
	"github.com/estatekit/media-crawler/internal/crawler"
	"github.com/estatekit/media-crawler/internal/fetch"
	"github.com/estatekit/media-crawler/internal/profile"
	"github.com/estatekit/media-crawler/internal/storage"
	"github.com/estatekit/media-crawler/pkg/logger"
	"github.com/estatekit/media-crawler/pkg/shutdown"
)

// Version information (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	rootCmd := &cobra.Command{
		Use:     "media-crawler",
		Short:   "Listing media discovery service",
		Long:    "Crawls property listing pages with a headless browser to discover images, videos, and floor plans, and extracts agent profiles from static pages.",
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newCrawlCmd())
	rootCmd.AddCommand(newProfileCmd())

	return rootCmd.Execute()
}

// newServeCmd creates the serve subcommand running the HTTP API.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		AddSource: cfg.Log.AddSource,
	})
	log.SetDefault()

	log.Info("starting media crawler",
		"version", Version,
		"environment", cfg.Server.Environment,
		"port", cfg.Server.Port,
	)

	shutdownHandler := shutdown.New(log.Logger, time.Duration(cfg.Server.ShutdownTimeout)*time.Second)

	// Redis backs the result cache and the distributed rate limiter. Both
	// degrade gracefully when it is absent.
	var redisClient *storage.RedisClientWrapper
	var cache *storage.ResultCache
	var rateLimitStore middleware.RateLimitStore
	if cfg.Redis.Enabled {
		var redisErr error
		redisClient, redisErr = storage.NewRedisClient(storage.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if redisErr != nil {
			log.Warn("failed to connect to Redis, caching disabled", "error", redisErr)
		} else {
			log.Info("connected to Redis", "host", cfg.Redis.Host, "port", cfg.Redis.Port)
			shutdownHandler.RegisterNamed("redis", func(ctx context.Context) error {
				return redisClient.Close()
			})

			cacheConfig := storage.DefaultCacheConfig()
			cacheConfig.CrawlTTL = cfg.Crawler.CacheTTL
			cache = storage.NewResultCache(redisClient, log, cacheConfig)
			rateLimitStore = middleware.NewRedisRateLimitStore(redisClient, "ratelimit", log)
		}
	}
	if rateLimitStore == nil {
		rateLimitStore = middleware.NewMemoryRateLimitStore()
	}

	var assetStore *storage.MinIOStore
	if cfg.Storage.Endpoint != "" {
		var storeErr error
		assetStore, storeErr = storage.NewMinIOStore(storage.MinIOConfig{
			Endpoint:        cfg.Storage.Endpoint,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			BucketName:      cfg.Storage.BucketName,
			UseSSL:          cfg.Storage.UseSSL,
			Region:          cfg.Storage.Region,
		})
		if storeErr != nil {
			log.Warn("failed to connect to object storage, uploads disabled", "error", storeErr)
			assetStore = nil
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := assetStore.InitBucket(ctx); err != nil {
				log.Warn("failed to initialize storage bucket", "error", err)
			}
			cancel()

			log.Info("connected to object storage",
				"endpoint", cfg.Storage.Endpoint,
				"bucket", cfg.Storage.BucketName,
			)
		}
	}

	crawlSvc := crawler.New(cfg.Crawler, log)
	fetcher := fetch.NewClient(cfg.Fetch, log)

	deps := api.Dependencies{
		Logger:         log,
		Crawler:        crawlSvc,
		Fetcher:        fetcher,
		RateLimitStore: rateLimitStore,
		Version:        Version,
	}
	// Typed nils must not sneak into the interface fields.
	if assetStore != nil {
		deps.AssetStore = assetStore
	}
	if cache != nil {
		deps.Cache = cache
	}

	router := api.NewRouter(deps, api.DefaultRouterConfig())

	serverConfig := api.DefaultServerConfig()
	serverConfig.Port = cfg.Server.Port
	serverConfig.ShutdownTimeout = time.Duration(cfg.Server.ShutdownTimeout) * time.Second

	server := api.NewServer(router, serverConfig, log)

	shutdownHandler.RegisterNamed("http-server", func(ctx context.Context) error {
		return server.Shutdown(ctx)
	})

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	shutdownHandler.Wait()

	log.Info("server stopped")
	return nil
}

// crawlOutput is the JSON document the crawl command prints per URL.
type crawlOutput struct {
	URL    string               `json:"url"`
	Assets []crawler.MediaAsset `json:"assets,omitempty"`
	Error  string               `json:"error,omitempty"`
}

// newCrawlCmd creates the one-shot crawl subcommand. Useful for testing
// selectors against a live listing without standing up the server.
func newCrawlCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "crawl <url> [url...]",
		Short: "Crawl listing pages and print discovered media as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log := logger.New(logger.Config{Level: "error", Format: "text"})
			svc := crawler.New(cfg.Crawler, log)

			var bar *progressbar.ProgressBar
			if !quiet && len(args) > 1 {
				bar = progressbar.NewOptions(len(args),
					progressbar.OptionSetDescription("crawling"),
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionShowCount(),
				)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")

			var failed int
			for _, pageURL := range args {
				out := crawlOutput{URL: pageURL}

				assets, err := svc.Crawl(cmd.Context(), pageURL)
				if err != nil {
					out.Error = err.Error()
					failed++
				} else {
					out.Assets = assets
				}

				if err := enc.Encode(out); err != nil {
					return err
				}
				if bar != nil {
					bar.Add(1)
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d crawls failed", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress the progress bar")
	return cmd
}

// newProfileCmd creates the one-shot profile extraction subcommand.
func newProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile <url>",
		Short: "Extract agent details from a profile page and print JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log := logger.New(logger.Config{Level: "error", Format: "text"})
			fetcher := fetch.NewClient(cfg.Fetch, log)

			doc, err := fetcher.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("fetching profile page: %w", err)
			}

			result := profile.Extract(string(doc.Body), doc.FinalURL)

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
}
