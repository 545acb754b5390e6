// Package main wires together the harvester service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/skillmap/harvester/internal/ai"
	"github.com/skillmap/harvester/internal/api"
	"github.com/skillmap/harvester/internal/archive"
	"github.com/skillmap/harvester/internal/config"
	"github.com/skillmap/harvester/internal/fetcher"
	collyfetcher "github.com/skillmap/harvester/internal/fetcher/colly"
	headlessfetcher "github.com/skillmap/harvester/internal/fetcher/headless"
	"github.com/skillmap/harvester/internal/harvest"
	"github.com/skillmap/harvester/internal/logging"
	"github.com/skillmap/harvester/internal/metrics"
	"github.com/skillmap/harvester/internal/normalize"
	"github.com/skillmap/harvester/internal/publisher"
	"github.com/skillmap/harvester/internal/quality"
	"github.com/skillmap/harvester/internal/queue"
	"github.com/skillmap/harvester/internal/retry"
	"github.com/skillmap/harvester/internal/sites"
	"github.com/skillmap/harvester/internal/store"
	"github.com/skillmap/harvester/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, stop); err != nil {
		logger.Fatal("harvester failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger, stop context.CancelFunc) error {
	redisClient, err := queue.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() { _ = redisClient.Close() }()

	crawlQueue := queue.NewRedisQueue(redisClient, cfg.Redis.QueuePrefix)
	visited := queue.NewRedisVisitedSet(redisClient, cfg.Redis.VisitedKey)
	runs := store.NewRunStore(redisClient, cfg.Redis.RunPrefix, time.Duration(cfg.Redis.RunTTLHours)*time.Hour)

	postings, err := store.NewPostingStore(ctx, store.PostingStoreConfig{
		DSN:      cfg.DB.DSN,
		MaxConns: int32(cfg.DB.MaxConns),
	})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer postings.Close()

	registry := sites.NewRegistry(cfg.Sites, logger)
	normalizer := normalize.New(registry.SalaryScales(cfg.Sites), harvest.SystemClock{}, logger)

	probe := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})
	var render fetcher.PageFetcher
	if cfg.Headless.Enabled {
		headless, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Crawler.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
			ScrollCount:       cfg.Headless.ScrollCount,
		})
		if err != nil {
			logger.Warn("headless fetcher init failed, render tier disabled", zap.Error(err))
		} else {
			defer headless.Close()
			render = headless
		}
	}

	pageArchive, err := buildArchive(ctx, cfg)
	if err != nil {
		return err
	}

	strategy := fetcher.NewStrategy(
		probe,
		render,
		visited,
		pageArchive,
		retry.Policy{
			MaxAttempts: cfg.Fetch.MaxRetries,
			BaseDelay:   time.Duration(cfg.Fetch.BackoffBaseSeconds * float64(time.Second)),
			MaxDelay:    time.Duration(cfg.Fetch.BackoffMaxSeconds * float64(time.Second)),
			Multiplier:  1,
		},
		siteRates(cfg),
		logger,
	)

	var judge harvest.Judge
	if cfg.AI.Enabled {
		judge = ai.New(ai.Config{
			BaseURL: cfg.AI.BaseURL,
			APIKey:  cfg.AI.APIKey,
			Model:   cfg.AI.Model,
			Timeout: time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
		}, logger)
	}

	gate := quality.New(quality.Config{
		MinQuality:   cfg.Quality.MinScore,
		MinAIScore:   cfg.AI.MinScore,
		NeutralScore: cfg.AI.NeutralScore,
		BatchSize:    cfg.AI.BatchSize,
		BatchDelay:   time.Duration(cfg.AI.BatchDelaySeconds * float64(time.Second)),
		Policy:       retry.QuotaPolicy(cfg.AI.MaxRetries, time.Duration(cfg.AI.BackoffBaseSeconds*float64(time.Second))),
	}, judge, logger)

	runPublisher, err := buildPublisher(ctx, cfg, logger)
	if err != nil {
		return err
	}

	workerCfg := worker.Config{
		MaxAttempts:       cfg.Crawler.MaxAttempts,
		MaxRecordsDefault: cfg.Crawler.MaxRecordsDefault,
	}
	workers := make([]*worker.Worker, 0, cfg.Crawler.Concurrency)
	for i := 0; i < cfg.Crawler.Concurrency; i++ {
		workers = append(workers, worker.New(
			crawlQueue, registry, strategy, normalizer, gate,
			postings, runs, runPublisher,
			harvest.SystemClock{}, workerCfg,
			logger.Named("worker").With(zap.Int("worker", i)),
		))
	}
	pool := worker.NewPool(workers)

	apiServer := api.NewServer(crawlQueue, runs, registry, judge, harvest.SystemClock{}, api.Config{
		MaxRecordsDefault: cfg.Crawler.MaxRecordsDefault,
	}, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("worker pool started", zap.Int("workers", len(workers)))
		pool.Run(ctx)
	}()

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}

func siteRates(cfg config.Config) map[string]float64 {
	merged := sites.Defaults()
	for name, site := range cfg.Sites {
		merged[name] = site
	}
	rates := make(map[string]float64, len(merged))
	for name, site := range merged {
		if site.RateLimitRPS > 0 {
			rates[name] = site.RateLimitRPS
		}
	}
	return rates
}

func buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (harvest.Publisher, error) {
	if cfg.PubSub.ProjectID == "" || cfg.PubSub.TopicName == "" {
		return publisher.NewNoop(), nil
	}
	p, err := publisher.NewPubSub(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName, logger)
	if err != nil {
		return nil, fmt.Errorf("init pubsub publisher: %w", err)
	}
	return p, nil
}

func buildArchive(ctx context.Context, cfg config.Config) (harvest.Archiver, error) {
	if cfg.Archive.Bucket == "" {
		return archive.NewNoop(), nil
	}
	client, err := gcstorage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("init storage client: %w", err)
	}
	a, err := archive.NewGCS(client, cfg.Archive.Bucket, cfg.Archive.Prefix)
	if err != nil {
		return nil, fmt.Errorf("init page archive: %w", err)
	}
	return a, nil
}
