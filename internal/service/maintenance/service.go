package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/movie-catalog/internal/domain"
	"github.com/vertextoedge/movie-catalog/internal/domain/event"
	"github.com/vertextoedge/movie-catalog/internal/metrics"
	"github.com/vertextoedge/movie-catalog/internal/port"
	"github.com/vertextoedge/movie-catalog/internal/service/cacher"
)

// Config contains maintenance service configuration
type Config struct {
	// CacheSweepInterval is how often expired cache entries are reclaimed
	CacheSweepInterval time.Duration

	// CleanupInterval is how often stale movies are removed
	CleanupInterval time.Duration

	// StaleMovieAge is how long an unrated movie is kept after creation
	StaleMovieAge time.Duration

	// StaleMovieMaxPopularity is the popularity a movie needs to be kept
	// past StaleMovieAge
	StaleMovieMaxPopularity float64

	// RefreshInterval is how often stored movies are re-fetched from the
	// provider to update their rating and popularity
	RefreshInterval time.Duration

	// RefreshBatchSize is the number of movies refreshed between cache
	// invalidations
	RefreshBatchSize int
}

// DefaultConfig returns default maintenance configuration
func DefaultConfig() *Config {
	return &Config{
		CacheSweepInterval:      5 * time.Minute,
		CleanupInterval:         24 * time.Hour,
		StaleMovieAge:           180 * 24 * time.Hour,
		StaleMovieMaxPopularity: 1,
		RefreshInterval:         24 * time.Hour,
		RefreshBatchSize:        50,
	}
}

// Cache is the cache surface maintenance needs
type Cache interface {
	PurgeExpired(ctx context.Context) (int, error)
	InvalidateMovieData(ctx context.Context, movieIDs ...int64)
	InvalidatePrefix(ctx context.Context, prefixes ...string)
}

// Service handles periodic maintenance tasks
type Service struct {
	config   *Config
	movies   port.MovieRepository
	provider port.CatalogProvider
	cache    Cache
	events event.EventDispatcher
	logger *zap.Logger

	now func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new maintenance Service. A nil provider disables the
// movie refresh job.
func New(cfg *Config, movies port.MovieRepository, provider port.CatalogProvider, cache Cache, logger *zap.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	def := DefaultConfig()
	if cfg.CacheSweepInterval == 0 {
		cfg.CacheSweepInterval = def.CacheSweepInterval
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.StaleMovieAge == 0 {
		cfg.StaleMovieAge = def.StaleMovieAge
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = def.RefreshInterval
	}
	if cfg.RefreshBatchSize <= 0 || cfg.RefreshBatchSize > domain.MaxQueryLimit {
		cfg.RefreshBatchSize = def.RefreshBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		config:   cfg,
		movies:   movies,
		provider: provider,
		cache:    cache,
		events:   event.NewNullDispatcher(),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetDispatcher publishes cleanup results to d
func (s *Service) SetDispatcher(d event.EventDispatcher) {
	s.events = d
}

// Start starts the maintenance service
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("maintenance service already running")
	}
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.Info("maintenance service started",
		zap.Duration("cache_sweep_interval", s.config.CacheSweepInterval),
		zap.Duration("cleanup_interval", s.config.CleanupInterval),
		zap.Duration("refresh_interval", s.config.RefreshInterval),
		zap.Bool("refresh_enabled", s.provider != nil))

	s.wg.Add(1)
	go s.maintenanceLoop(ctx)

	<-ctx.Done()
	s.wg.Wait()
	s.logger.Info("maintenance service stopped")
	return nil
}

// Stop stops the maintenance service
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.running = false
}

// maintenanceLoop handles periodic maintenance tasks
func (s *Service) maintenanceLoop(ctx context.Context) {
	defer s.wg.Done()

	sweepTicker := time.NewTicker(s.config.CacheSweepInterval)
	defer sweepTicker.Stop()

	cleanupTicker := time.NewTicker(s.config.CleanupInterval)
	defer cleanupTicker.Stop()

	refreshTicker := time.NewTicker(s.config.RefreshInterval)
	defer refreshTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweepTicker.C:
			s.sweepCache(ctx)
		case <-cleanupTicker.C:
			s.removeStaleMovies(ctx)
		case <-refreshTicker.C:
			if s.provider != nil {
				s.refreshMovies(ctx)
			}
		}
	}
}

// sweepCache reclaims expired cache entries
func (s *Service) sweepCache(ctx context.Context) {
	purged, err := s.cache.PurgeExpired(ctx)
	if err != nil {
		s.logger.Error("failed to purge expired cache entries", zap.Error(err))
	} else if purged > 0 {
		s.logger.Debug("purged expired cache entries", zap.Int("count", purged))
	}
}

// removeStaleMovies deletes old unrated movies nobody watches and drops
// the cached results that included them
func (s *Service) removeStaleMovies(ctx context.Context) {
	cutoff := s.now().Add(-s.config.StaleMovieAge)
	removed, err := s.movies.DeleteStaleMovies(ctx, cutoff, s.config.StaleMovieMaxPopularity)
	if err != nil {
		s.logger.Error("failed to remove stale movies", zap.Error(err))
		return
	}
	if removed == 0 {
		return
	}

	metrics.StaleMoviesRemoved.Add(float64(removed))
	// Removed IDs are not reported, so every detail entry goes
	s.cache.InvalidatePrefix(ctx, cacher.MovieDetailPrefix())
	s.cache.InvalidateMovieData(ctx)
	s.events.Dispatch(event.NewStaleMoviesRemoved(removed, cutoff))
}
