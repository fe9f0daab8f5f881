package cli

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"cartwright/internal/api"
	"cartwright/internal/api/store"
	"cartwright/internal/config"
	"cartwright/pkg/cache"
	"cartwright/pkg/pipeline"
)

// serveCommand creates the serve command for running the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr     string
		redisURL string
		mongoURI string
		workers  int
		noCache  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the cartwright HTTP build API",
		Long: `Run the HTTP API for building packages.

Endpoints:
  POST /v1/packages          upload a dataset, returns a job id
  GET  /v1/jobs/{id}         job status and rejection report
  GET  /v1/jobs/{id}/package download the finished .imscc archive
  GET  /healthz              liveness probe

Jobs run on a bounded worker pool. By default jobs are held in memory and
artifacts are cached on disk; point --mongo at a MongoDB instance to
persist jobs across restarts and --redis at a Redis instance to share the
artifact cache between replicas.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.loadConfig()
			if !cmd.Flags().Changed("addr") {
				addr = cfg.Server.Addr
			}
			if !cmd.Flags().Changed("redis") {
				redisURL = cfg.Server.Redis
			}
			if !cmd.Flags().Changed("mongo") {
				mongoURI = cfg.Server.Mongo
			}
			if !cmd.Flags().Changed("workers") {
				workers = cfg.Server.Workers
			}
			return c.runServe(cmd.Context(), addr, redisURL, mongoURI, workers, noCache)
		},
	}

	defaults := config.Default()
	cmd.Flags().StringVar(&addr, "addr", defaults.Server.Addr, "listen address")
	cmd.Flags().StringVar(&redisURL, "redis", "", "redis URL for the shared artifact cache (e.g. redis://localhost:6379/0)")
	cmd.Flags().StringVar(&mongoURI, "mongo", "", "MongoDB URI for the job store (e.g. mongodb://localhost:27017)")
	cmd.Flags().IntVar(&workers, "workers", defaults.Server.Workers, "concurrent build jobs")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the artifact cache")

	return cmd
}

// runServe wires the cache, job store, and runner together and serves
// until the context is cancelled.
func (c *CLI) runServe(ctx context.Context, addr, redisURL, mongoURI string, workers int, noCache bool) error {
	cfg := c.loadConfig()

	artifactCache, err := c.serveCache(ctx, redisURL, noCache)
	if err != nil {
		return fmt.Errorf("initialize cache: %w", err)
	}

	jobStore, err := c.serveStore(ctx, mongoURI, cfg.Server.MongoDatabase)
	if err != nil {
		return fmt.Errorf("initialize job store: %w", err)
	}
	defer jobStore.Close()

	// Server keys are scoped so a Redis instance shared with CLI builds
	// never mixes the two artifact sets.
	runner := pipeline.NewRunner(artifactCache, cache.NewScopedKeyer(nil, "api:"), c.Logger)
	defer runner.Close()

	srv := api.NewServer(api.Config{
		Addr:        addr,
		Store:       jobStore,
		Runner:      runner,
		Logger:      c.Logger,
		Workers:     workers,
		MaxUploadMB: cfg.Server.MaxUploadMB,
		JobTTL:      time.Duration(cfg.Server.JobTTLHours) * time.Hour,
	})

	printNewline()
	fmt.Println(StyleTitle.Render("Cartwright API"))
	printKeyValue("Address", StyleLink.Render(listenURL(addr)))
	printKeyValue("Build jobs", fmt.Sprintf("%d", workers))
	printNewline()

	return srv.Run(ctx)
}

// listenURL turns a listen address like ":8080" into a browsable URL.
func listenURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func (c *CLI) serveCache(ctx context.Context, redisURL string, noCache bool) (cache.Cache, error) {
	if redisURL != "" {
		c.Logger.Info("Artifact cache", "backend", "redis")
		return cache.NewRedisCache(ctx, redisURL)
	}
	return c.newCache(noCache)
}

func (c *CLI) serveStore(ctx context.Context, mongoURI, database string) (store.Store, error) {
	if mongoURI != "" {
		c.Logger.Info("Job store", "backend", "mongo", "database", database)
		return store.NewMongoStore(ctx, mongoURI, database)
	}
	c.Logger.Info("Job store", "backend", "memory")
	return store.NewMemoryStore(), nil
}
