package maintenance

import (
	"context"

	"go.uber.org/zap"

	"github.com/vertextoedge/movie-catalog/internal/domain"
	"github.com/vertextoedge/movie-catalog/internal/domain/event"
	domainservice "github.com/vertextoedge/movie-catalog/internal/domain/service"
	"github.com/vertextoedge/movie-catalog/internal/metrics"
)

// refreshResult counts the outcome of one refresh pass
type refreshResult struct {
	refreshed int
	failed    int
	aborted   bool
}

// refreshMovies re-fetches every stored movie from the provider, oldest
// first, and upserts the new rating and popularity values. Cached movie
// data is invalidated after each batch. A movie that fails is counted and
// skipped; only an auth error stops the pass.
func (s *Service) refreshMovies(ctx context.Context) refreshResult {
	var res refreshResult
	lookup := s.genreLookup(ctx)
	batchSize := s.config.RefreshBatchSize

	for offset := 0; ; offset += batchSize {
		if ctx.Err() != nil {
			res.aborted = true
			break
		}

		batch, err := s.movies.QueryMovies(ctx, domain.MovieFilter{
			OrderBy:   domain.OrderCreatedAt,
			Ascending: true,
			Limit:     batchSize,
			Offset:    offset,
		})
		if err != nil {
			s.logger.Error("failed to list movies for refresh",
				zap.Int("offset", offset), zap.Error(err))
			res.aborted = true
			break
		}
		if len(batch) == 0 {
			break
		}

		updated := make([]int64, 0, len(batch))
		for _, m := range batch {
			if ctx.Err() != nil {
				res.aborted = true
				break
			}
			err := s.refreshMovie(ctx, m, lookup)
			if err == nil {
				res.refreshed++
				updated = append(updated, m.ID)
				continue
			}
			res.failed++
			s.logger.Warn("movie refresh failed",
				zap.Int64("movie_id", m.ID),
				zap.String("external_id", m.ExternalID),
				zap.Error(err))
			if domain.IsFetchKind(err, domain.FetchAuthError) {
				res.aborted = true
				break
			}
		}

		if len(updated) > 0 {
			s.cache.InvalidateMovieData(ctx, updated...)
		}
		if res.aborted || len(batch) < batchSize {
			break
		}
	}

	metrics.MoviesRefreshed.WithLabelValues("refreshed").Add(float64(res.refreshed))
	metrics.MoviesRefreshed.WithLabelValues("failed").Add(float64(res.failed))
	s.events.Dispatch(event.NewMoviesRefreshed(res.refreshed, res.failed, res.aborted))
	return res
}

func (s *Service) refreshMovie(ctx context.Context, stored *domain.Movie, lookup domain.GenreLookup) error {
	raw, err := s.provider.FetchMovie(ctx, stored.ExternalID)
	if err != nil {
		return err
	}
	movie, err := domainservice.Normalize(raw, lookup)
	if err != nil {
		return err
	}
	if movie.ExternalID != stored.ExternalID {
		return domain.ErrExternalIDMismatch
	}
	_, err = s.movies.UpsertMovie(ctx, movie)
	return err
}

// genreLookup returns the provider's genre table, or the built-in one
func (s *Service) genreLookup(ctx context.Context) domain.GenreLookup {
	lookup, err := s.provider.Genres(ctx)
	if err != nil || len(lookup) == 0 {
		s.logger.Warn("using built-in genre table for refresh", zap.Error(err))
		return domain.DefaultGenreLookup()
	}
	return lookup
}
