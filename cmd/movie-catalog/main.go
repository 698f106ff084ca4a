package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/movie-catalog/internal/adapter/badgercache"
	"github.com/vertextoedge/movie-catalog/internal/adapter/memcache"
	"github.com/vertextoedge/movie-catalog/internal/adapter/sqlite"
	"github.com/vertextoedge/movie-catalog/internal/adapter/tmdb"
	"github.com/vertextoedge/movie-catalog/internal/config"
	"github.com/vertextoedge/movie-catalog/internal/domain"
	"github.com/vertextoedge/movie-catalog/internal/domain/event"
	domainservice "github.com/vertextoedge/movie-catalog/internal/domain/service"
	"github.com/vertextoedge/movie-catalog/internal/logger"
	"github.com/vertextoedge/movie-catalog/internal/port"
	"github.com/vertextoedge/movie-catalog/internal/service/cacher"
	"github.com/vertextoedge/movie-catalog/internal/service/catalog"
	"github.com/vertextoedge/movie-catalog/internal/service/maintenance"
	"github.com/vertextoedge/movie-catalog/internal/service/profile"
	"github.com/vertextoedge/movie-catalog/internal/service/recommender"
	"github.com/vertextoedge/movie-catalog/internal/service/server"
	"github.com/vertextoedge/movie-catalog/internal/service/syncer"
)

const version = "0.1.0"

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	zapLogger := logger.GetZapLogger()
	zapLogger.Info("starting movie-catalog",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	// Open database
	store, err := sqlite.OpenWithOptions(cfg.Database.Path, sqlite.Options{
		CacheSizeMB:   cfg.Database.CacheSizeMB,
		BusyTimeoutMs: cfg.Database.BusyTimeoutMs,
	})
	if err != nil {
		zapLogger.Fatal("failed to open database", zap.Error(err), zap.String("path", cfg.Database.Path))
	}
	defer store.Close()

	// Open cache backend
	backend, err := openCacheBackend(cfg.Cache)
	if err != nil {
		zapLogger.Fatal("failed to open cache backend", zap.Error(err), zap.String("backend", cfg.Cache.Backend))
	}
	defer backend.Close()

	cacheService := cacher.New(&cacher.Config{
		DetailTTL:         cfg.Cache.GetDetailTTL(),
		ListTTL:           cfg.Cache.GetListTTL(),
		TrendingTTL:       cfg.Cache.GetTrendingTTL(),
		SearchTTL:         cfg.Cache.GetSearchTTL(),
		RecommendationTTL: cfg.Cache.GetRecommendationTTL(),
		MatchTTL:          cfg.Cache.GetMatchTTL(),
		SimilarTTL:        cfg.Cache.GetSimilarTTL(),
		PopularityTTL:     cfg.Cache.GetPopularityTTL(),
		StatsTTL:          cfg.Cache.GetStatsTTL(),
	}, backend, logger.Named("cacher"))

	// Create provider client
	provider := tmdb.NewClient(&tmdb.Config{
		BaseURL:           cfg.Provider.BaseURL,
		APIKey:            cfg.Provider.APIKey,
		Language:          cfg.Provider.Language,
		Timeout:           cfg.Provider.GetTimeout(),
		MaxPage:           cfg.Provider.MaxPage,
		RequestsPerWindow: cfg.Provider.RequestsPerWindow,
		RateWindow:        cfg.Provider.GetWindow(),
		BreakerFailures:   cfg.Provider.BreakerFailures,
		BreakerTimeout:    cfg.Provider.GetBreakerTimeout(),
	}, logger.Named("tmdb"))

	// Create syncer
	categories := make([]domain.Category, 0, len(cfg.Sync.Categories))
	for _, name := range cfg.Sync.Categories {
		c, _ := domain.ParseCategory(name)
		categories = append(categories, c)
	}
	syncerService := syncer.New(&syncer.Config{
		Categories:         categories,
		Pages:              cfg.Sync.Pages,
		Interval:           cfg.Sync.GetInterval(),
		MaxRetries:         cfg.Sync.MaxRetries,
		BaseBackoff:        cfg.Sync.GetBaseBackoff(),
		MaxBackoff:         cfg.Sync.GetMaxBackoff(),
		RateLimitCooldown:  cfg.Sync.GetRateLimitCooldown(),
		MaxRateLimitPauses: cfg.Sync.MaxRateLimitPauses,
		FetchTimeout:       cfg.Sync.GetFetchTimeout(),
		RunOnStart:         cfg.Sync.RunOnStart,
		MaxRunHistory:      cfg.Sync.MaxRunHistory,
	}, provider, store, cacheService, logger.Named("syncer"))

	// Create scoring and read services
	scorer := domainservice.NewMatchScorer(domainservice.ScoringConfig{
		MinRatingCount: cfg.Scoring.MinRatingCount,
		NeutralQuality: cfg.Scoring.NeutralQuality,
		PopularityCap:  cfg.Scoring.PopularityCap,
	})
	recommenderService := recommender.New(scorer, store, cacheService, logger.Named("recommender"))

	catalogService := catalog.New(&catalog.Config{
		TopRatedMinCount: cfg.Scoring.TopRatedMinCount,
	}, store, provider, syncerService, cacheService, logger.Named("catalog"))

	profileService := profile.New(store, cacheService, logger.Named("profile"))

	// Create maintenance service
	maintenanceService := maintenance.New(&maintenance.Config{
		CacheSweepInterval:      cfg.Cache.GetSweepInterval(),
		CleanupInterval:         cfg.Maintenance.GetCleanupInterval(),
		StaleMovieAge:           cfg.Maintenance.GetStaleMovieAge(),
		StaleMovieMaxPopularity: cfg.Maintenance.StaleMovieMaxPopularity,
		RefreshInterval:         cfg.Maintenance.GetRefreshInterval(),
		RefreshBatchSize:        cfg.Maintenance.RefreshBatchSize,
	}, store, provider, cacheService, logger.Named("maintenance"))

	// Publish domain activity to the event log
	events := event.NewInMemoryDispatcher(func(e event.DomainEvent, err error) {
		zapLogger.Warn("event handler failed", zap.String("event", e.EventName()), zap.Error(err))
	})
	events.Subscribe(event.NewLoggingHandler(logger.Named("events")))
	syncerService.SetDispatcher(events)
	catalogService.SetDispatcher(events)
	profileService.SetDispatcher(events)
	maintenanceService.SetDispatcher(events)

	// Create HTTP server
	serverCfg := &server.Config{
		BindAddr:      cfg.HTTP.BindAddr,
		AdminUsername: cfg.HTTP.AdminUsername,
		AdminPassword: cfg.HTTP.AdminPassword,
		ReadTimeout:   cfg.HTTP.GetReadTimeout(),
		WriteTimeout:  cfg.HTTP.GetWriteTimeout(),
		IdleTimeout:   cfg.HTTP.GetIdleTimeout(),
	}
	httpServer := server.New(serverCfg, server.Services{
		Catalog:     catalogService,
		Recommender: recommenderService,
		Profiles:    profileService,
		Store:       store,
	}, logger.Named("http"))

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start HTTP server
	go func() {
		if err := httpServer.Start(); err != nil {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Start syncer
	go func() {
		if err := syncerService.Start(ctx); err != nil && err != context.Canceled {
			zapLogger.Error("syncer stopped with error", zap.Error(err))
		}
	}()

	// Start maintenance service
	go func() {
		if err := maintenanceService.Start(ctx); err != nil && err != context.Canceled {
			zapLogger.Error("maintenance service stopped with error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	zapLogger.Info("application started successfully",
		zap.String("http_addr", cfg.HTTP.BindAddr),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.Strings("sync_categories", cfg.Sync.Categories),
	)
	<-sigChan

	zapLogger.Info("shutdown signal received, stopping services...")

	// Stop accepting requests before the services behind them go away
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		zapLogger.Error("failed to stop HTTP server gracefully", zap.Error(err))
	}

	// Cancel context to stop syncer and maintenance
	cancel()
	syncerService.Stop()
	maintenanceService.Stop()

	zapLogger.Info("application stopped successfully")
}

// openCacheBackend opens the configured cache backend
func openCacheBackend(cfg config.CacheConfig) (port.CacheBackend, error) {
	switch cfg.Backend {
	case "badger":
		c, err := badgercache.Open(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return memcache.New(), nil
	}
}
