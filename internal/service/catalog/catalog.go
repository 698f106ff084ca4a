package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/movie-catalog/internal/domain"
	"github.com/vertextoedge/movie-catalog/internal/domain/event"
	domainservice "github.com/vertextoedge/movie-catalog/internal/domain/service"
	"github.com/vertextoedge/movie-catalog/internal/domain/vo"
	"github.com/vertextoedge/movie-catalog/internal/port"
	"github.com/vertextoedge/movie-catalog/internal/service/cacher"
)

// Config contains catalog service configuration
type Config struct {
	// ListLimit is the page size of trending and top rated listings
	ListLimit int

	// DefaultLimit is used for filtered listings without a limit
	DefaultLimit int

	// TopRatedMinCount is the vote count a movie needs to be top rated
	TopRatedMinCount int

	// GenreTableTTL is how long the provider genre table is reused
	GenreTableTTL time.Duration
}

// DefaultConfig returns default catalog configuration
func DefaultConfig() *Config {
	return &Config{
		ListLimit:        20,
		DefaultLimit:     20,
		TopRatedMinCount: 100,
		GenreTableTTL:    24 * time.Hour,
	}
}

// Repository is the part of the metadata store the catalog service uses
type Repository interface {
	port.MovieRepository
	port.StatsRepository
}

// SyncTrigger starts and reports background sync runs
type SyncTrigger interface {
	Trigger(ctx context.Context, category domain.Category, pages domain.PageRange) (*domain.SyncRun, error)
	GetRun(id string) (*domain.SyncRun, bool)
	ListRuns() []*domain.SyncRun
}

// Service implements the catalog read and import operations
type Service struct {
	config   *Config
	repo     Repository
	provider port.CatalogProvider
	syncer   SyncTrigger
	cache    *cacher.Cacher
	events   event.EventDispatcher
	logger   *zap.Logger

	now func() time.Time

	genreMu      sync.Mutex
	genres       domain.GenreLookup
	genresLoaded time.Time
}

// New creates a new catalog Service
func New(cfg *Config, repo Repository, provider port.CatalogProvider, syncer SyncTrigger, cache *cacher.Cacher, logger *zap.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	def := DefaultConfig()
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = def.ListLimit
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = def.DefaultLimit
	}
	if cfg.TopRatedMinCount <= 0 {
		cfg.TopRatedMinCount = def.TopRatedMinCount
	}
	if cfg.GenreTableTTL == 0 {
		cfg.GenreTableTTL = def.GenreTableTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		config:   cfg,
		repo:     repo,
		provider: provider,
		syncer:   syncer,
		cache:    cache,
		events:   event.NewNullDispatcher(),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetDispatcher publishes imports to d
func (s *Service) SetDispatcher(d event.EventDispatcher) {
	s.events = d
}

// ListMovies returns movies matching the filter
func (s *Service) ListMovies(ctx context.Context, filter domain.MovieFilter) ([]*domain.Movie, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if filter.Limit == 0 {
		filter.Limit = s.config.DefaultLimit
	}
	if filter.Limit > domain.MaxQueryLimit {
		filter.Limit = domain.MaxQueryLimit
	}

	ttl := s.cache.Config().ListTTL
	return cacher.GetOrCompute(ctx, s.cache, cacher.MovieListKey(filter), ttl,
		func(ctx context.Context) ([]*domain.Movie, error) {
			return s.repo.QueryMovies(ctx, filter)
		})
}

// GetMovie returns a single movie
func (s *Service) GetMovie(ctx context.Context, id int64) (*domain.Movie, error) {
	ttl := s.cache.Config().DetailTTL
	return cacher.GetOrCompute(ctx, s.cache, cacher.MovieDetailKey(id), ttl,
		func(ctx context.Context) (*domain.Movie, error) {
			movie, err := s.repo.GetMovie(ctx, id)
			if err != nil {
				return nil, err
			}
			if movie == nil {
				return nil, fmt.Errorf("%w: movie %d", domain.ErrNotFound, id)
			}
			return movie, nil
		})
}

// Trending returns the most popular movies
func (s *Service) Trending(ctx context.Context) ([]*domain.Movie, error) {
	ttl := s.cache.Config().TrendingTTL
	return cacher.GetOrCompute(ctx, s.cache, cacher.TrendingKey, ttl,
		func(ctx context.Context) ([]*domain.Movie, error) {
			return s.repo.QueryMovies(ctx, domain.MovieFilter{
				OrderBy: domain.OrderPopularity,
				Limit:   s.config.ListLimit,
			})
		})
}

// TopRated returns the best rated movies with enough votes
func (s *Service) TopRated(ctx context.Context) ([]*domain.Movie, error) {
	ttl := s.cache.Config().TrendingTTL
	return cacher.GetOrCompute(ctx, s.cache, cacher.TopRatedKey, ttl,
		func(ctx context.Context) ([]*domain.Movie, error) {
			return s.repo.QueryMovies(ctx, domain.MovieFilter{
				MinRatingCount: s.config.TopRatedMinCount,
				OrderBy:        domain.OrderRating,
				Limit:          s.config.ListLimit,
			})
		})
}

// TrendingByGenre returns the most popular movies of one genre
func (s *Service) TrendingByGenre(ctx context.Context, genre string, limit int) ([]*domain.Movie, error) {
	key := vo.NormalizeGenre(genre)
	if key == "" {
		return nil, fmt.Errorf("%w: genre is required", domain.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = s.config.ListLimit
	}
	if limit > domain.MaxQueryLimit {
		limit = domain.MaxQueryLimit
	}

	ttl := s.cache.Config().TrendingTTL
	return cacher.GetOrCompute(ctx, s.cache, cacher.TrendingGenreKey(key, limit), ttl,
		func(ctx context.Context) ([]*domain.Movie, error) {
			return s.repo.QueryMovies(ctx, domain.MovieFilter{
				Genre:   key,
				OrderBy: domain.OrderPopularity,
				Limit:   limit,
			})
		})
}

// ImportMovie fetches one movie from the provider and stores it. An already
// stored movie is refreshed. created reports whether a new record was added.
func (s *Service) ImportMovie(ctx context.Context, externalID string) (movie *domain.Movie, created bool, err error) {
	id, err := vo.NewExternalID(externalID)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	raw, err := s.provider.FetchMovie(ctx, id.String())
	if err != nil {
		if domain.IsFetchKind(err, domain.FetchNotFound) {
			return nil, false, fmt.Errorf("%w: provider has no movie %s", domain.ErrNotFound, id)
		}
		return nil, false, err
	}

	movie, err = domainservice.Normalize(raw, s.genreLookup(ctx))
	if err != nil {
		return nil, false, err
	}
	movie.LastSyncedAt = s.now()

	created, err = s.repo.UpsertMovie(ctx, movie)
	if err != nil {
		return nil, false, err
	}
	s.cache.InvalidateMovieData(ctx, movie.ID)

	s.events.Dispatch(event.NewMovieImported(movie.ID, movie.ExternalID, created))
	return movie, created, nil
}

// SearchExternal searches the provider. Results are normalized but not stored.
func (s *Service) SearchExternal(ctx context.Context, query string, page int) ([]*domain.Movie, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", domain.ErrInvalidInput)
	}
	if page <= 0 {
		page = 1
	}

	ttl := s.cache.Config().SearchTTL
	return cacher.GetOrCompute(ctx, s.cache, cacher.SearchKey(query, page), ttl,
		func(ctx context.Context) ([]*domain.Movie, error) {
			raw, err := s.provider.Search(ctx, query, page)
			if err != nil {
				return nil, err
			}
			movies, skipped := domainservice.NormalizePage(raw, s.genreLookup(ctx))
			if len(skipped) > 0 {
				s.logger.Debug("search results skipped",
					zap.String("query", query),
					zap.Int("count", len(skipped)))
			}
			return movies, nil
		})
}

// TriggerSync starts a background sync of a category and returns the run
func (s *Service) TriggerSync(ctx context.Context, category string, pages domain.PageRange) (*domain.SyncRun, error) {
	cat, err := domain.ParseCategory(category)
	if err != nil {
		return nil, err
	}
	return s.syncer.Trigger(ctx, cat, pages)
}

// SyncRun returns a snapshot of a sync run
func (s *Service) SyncRun(id string) (*domain.SyncRun, error) {
	run, ok := s.syncer.GetRun(id)
	if !ok {
		return nil, fmt.Errorf("%w: sync run %s", domain.ErrNotFound, id)
	}
	return run, nil
}

// SyncRuns returns recent sync runs, newest first
func (s *Service) SyncRuns() []*domain.SyncRun {
	return s.syncer.ListRuns()
}

// Stats returns catalog row counts
func (s *Service) Stats(ctx context.Context) (*domain.CatalogStats, error) {
	return s.repo.GetCatalogStats(ctx)
}

// genreLookup returns the provider genre table, reloading it after
// GenreTableTTL. The built-in table is used while the provider fails.
func (s *Service) genreLookup(ctx context.Context) domain.GenreLookup {
	s.genreMu.Lock()
	defer s.genreMu.Unlock()

	if s.genres != nil && s.now().Sub(s.genresLoaded) < s.config.GenreTableTTL {
		return s.genres
	}

	lookup, err := s.provider.Genres(ctx)
	if err != nil || len(lookup) == 0 {
		s.logger.Warn("using built-in genre table", zap.Error(err))
		return domain.DefaultGenreLookup()
	}
	s.genres = lookup
	s.genresLoaded = s.now()
	return lookup
}
