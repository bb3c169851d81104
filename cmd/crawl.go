package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkharvest/internal/api"
	"github.com/JakeFAU/linkharvest/internal/clock/system"
	"github.com/JakeFAU/linkharvest/internal/config"
	"github.com/JakeFAU/linkharvest/internal/crawler"
	collyfetcher "github.com/JakeFAU/linkharvest/internal/fetcher/colly"
	"github.com/JakeFAU/linkharvest/internal/fetcher/headless"
	"github.com/JakeFAU/linkharvest/internal/id/uuid"
	"github.com/JakeFAU/linkharvest/internal/logging"
	"github.com/JakeFAU/linkharvest/internal/metrics"
	"github.com/JakeFAU/linkharvest/internal/progress"
	"github.com/JakeFAU/linkharvest/internal/progress/sinks"
)

// newCrawlCmd creates and configures the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url...]",
		Short: "Starts the crawl",
		Long: `Crawls from the configured seed URLs until the frontier is exhausted,
the artifact limit is reached, or the process receives SIGINT/SIGTERM.
Seeds come from positional arguments, seeds.urls, and seeds.file combined.
Each extracted value is printed as one JSON document per line on stdout;
the final statistics go to stderr.`,

		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCommand,
	}
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("linkharvest.yaml"); err == nil {
			path = "linkharvest.yaml"
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Seeds.URLs = append(cfg.Seeds.URLs, args...)

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	crawlCfg, err := cfg.BuildCrawlConfig()
	if err != nil {
		return fmt.Errorf("build crawl config: %w", err)
	}
	chain, err := crawlCfg.BuildFilters()
	if err != nil {
		return fmt.Errorf("build filters: %w", err)
	}
	seeds, err := crawler.PrepareSeeds(crawlCfg.Seeds, chain)
	if err != nil {
		return fmt.Errorf("prepare seeds: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	builder, closeBuilder := buildBackendBuilder(cfg, crawlCfg, logger)
	defer closeBuilder()

	ring := crawler.NewEngineRing(builder, chain, crawlCfg.Concurrency, logger)
	retries := crawler.NewRetryPool(crawlCfg.RetryThreshold, crawlCfg.RetryCap, system.New())

	var robots crawler.RobotsPolicy
	if crawlCfg.UseRobots {
		robots = crawler.NewRobotsCache(logger)
	}

	metrics.Init()
	store := sinks.NewStore()
	hub := progress.NewHub(
		progress.Config{Logger: logger},
		sinks.NewLog(logger),
		sinks.NewPrometheus(),
		store,
	)

	shutdownServer := startStatusServer(cfg.Server, store, logger)
	defer shutdownServer()

	crawlID, err := uuid.New().NewCrawlID()
	if err != nil {
		return fmt.Errorf("generate crawl id: %w", err)
	}

	workload := crawler.NewWorkload(crawlCfg, ring, retries, robots, logger, hub, crawlID)
	results, stats, runErr := workload.Run(ctx, seeds)

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if cerr := ring.Close(closeCtx); cerr != nil {
		logger.Warn("failed to close engine ring", zap.Error(cerr))
	}
	if cerr := hub.Close(closeCtx); cerr != nil {
		logger.Warn("failed to close progress hub", zap.Error(cerr))
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("run crawl: %w", runErr)
	}

	for _, value := range results {
		fmt.Fprintln(os.Stdout, string(value))
	}
	fmt.Fprintf(os.Stderr, "Statistics: visited %d, collected %d, errors %d, retries %d\n",
		stats.Visited, stats.Collected, stats.Errors, stats.Retries)
	return nil
}

func buildBackendBuilder(cfg config.Config, crawlCfg crawler.Config, logger *zap.Logger) (crawler.BackendBuilder, func()) {
	if cfg.Backend.Kind == "colly" {
		builder := collyfetcher.NewBuilder(collyfetcher.Config{
			UserAgent: crawlCfg.UserAgent,
			Timeout:   crawlCfg.PageLoadTimeout,
			Logger:    logger,
		})
		return builder, func() {}
	}
	builder := headless.NewBuilder(headless.Config{
		UserAgent:       crawlCfg.UserAgent,
		PageLoadTimeout: crawlCfg.PageLoadTimeout,
		ExtractScript:   crawlCfg.ExtractScript,
		Logger:          logger,
	})
	return builder, builder.Close
}

// startStatusServer runs the observability server when enabled and returns a
// shutdown func. The server never blocks a crawl; a listen failure is logged
// and the crawl proceeds.
func startStatusServer(cfg config.ServerConfig, store *sinks.Store, logger *zap.Logger) func() {
	if !cfg.Enabled {
		return func() {}
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewServer(store, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("status server listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("status server stopped", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("status server shutdown failed", zap.Error(err))
		}
	}
}
