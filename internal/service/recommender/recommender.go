package recommender

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vertextoedge/movie-catalog/internal/domain"
	domainservice "github.com/vertextoedge/movie-catalog/internal/domain/service"
	"github.com/vertextoedge/movie-catalog/internal/port"
	"github.com/vertextoedge/movie-catalog/internal/service/cacher"
)

// DefaultLimit is used when a caller passes a non-positive limit
const DefaultLimit = 20

// Repository is the part of the metadata store the recommender reads
type Repository interface {
	port.MovieRepository
	GetProfile(ctx context.Context, userID int64) (*domain.UserProfile, error)
	ListRatingsByUser(ctx context.Context, userID int64) ([]*domain.Rating, error)
}

// Service computes match scores, recommendations and similar movies
type Service struct {
	scorer *domainservice.MatchScorer
	repo   Repository
	cache  *cacher.Cacher
	logger *zap.Logger
}

// New creates a new recommender Service
func New(scorer *domainservice.MatchScorer, repo Repository, cache *cacher.Cacher, logger *zap.Logger) *Service {
	if scorer == nil {
		scorer = domainservice.NewMatchScorer(domainservice.DefaultScoringConfig())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		scorer: scorer,
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

// MatchScore returns the 0-100 compatibility of a movie for a user.
// A user without profile or ratings is scored as a cold start.
func (s *Service) MatchScore(ctx context.Context, userID, movieID int64) (int, error) {
	b, err := s.Breakdown(ctx, userID, movieID)
	if err != nil {
		return 0, err
	}
	return b.Score, nil
}

// Breakdown returns the sub-scores behind a match score
func (s *Service) Breakdown(ctx context.Context, userID, movieID int64) (*domainservice.ScoreBreakdown, error) {
	ttl := s.cache.Config().MatchTTL
	return cacher.GetOrCompute(ctx, s.cache, cacher.MatchKey(userID, movieID), ttl,
		func(ctx context.Context) (*domainservice.ScoreBreakdown, error) {
			movie, err := s.repo.GetMovie(ctx, movieID)
			if err != nil {
				return nil, err
			}
			if movie == nil {
				return nil, fmt.Errorf("%w: movie %d", domain.ErrNotFound, movieID)
			}

			sig, err := s.userSignal(ctx, userID)
			if err != nil {
				return nil, err
			}
			pop, err := s.popularityIndex(ctx)
			if err != nil {
				return nil, err
			}

			b := s.scorer.Score(sig, movie, pop)
			return &b, nil
		})
}

// Recommendations returns up to limit movies the user has not rated, best
// match first. Ties go to the higher rating count, then the lower external ID.
func (s *Service) Recommendations(ctx context.Context, userID int64, limit int) ([]domain.Recommendation, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > domain.MaxQueryLimit {
		limit = domain.MaxQueryLimit
	}

	ttl := s.cache.Config().RecommendationTTL
	return cacher.GetOrCompute(ctx, s.cache, cacher.RecommendationsKey(userID, limit), ttl,
		func(ctx context.Context) ([]domain.Recommendation, error) {
			sig, err := s.userSignal(ctx, userID)
			if err != nil {
				return nil, err
			}
			pop, err := s.popularityIndex(ctx)
			if err != nil {
				return nil, err
			}

			candidates, err := s.repo.QueryMovies(ctx, domain.MovieFilter{})
			if err != nil {
				return nil, err
			}

			recs := make([]domain.Recommendation, 0, len(candidates))
			for _, m := range candidates {
				if sig.HasRated(m.ID) {
					continue
				}
				recs = append(recs, domain.Recommendation{
					Movie: m,
					Score: s.scorer.Score(sig, m, pop).Score,
				})
			}
			domainservice.SortRecommendations(recs)

			if len(recs) > limit {
				recs = recs[:limit]
			}

			s.logger.Debug("recommendations computed",
				zap.Int64("user_id", userID),
				zap.Bool("cold_start", sig.IsColdStart()),
				zap.Int("candidates", len(candidates)),
				zap.Int("returned", len(recs)))
			return recs, nil
		})
}

// Similar returns up to limit movies sharing a genre with the seed movie,
// most shared genres first. A seed without genres has no similar movies.
func (s *Service) Similar(ctx context.Context, movieID int64, limit int) ([]*domain.Movie, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > domain.MaxQueryLimit {
		limit = domain.MaxQueryLimit
	}

	ttl := s.cache.Config().SimilarTTL
	return cacher.GetOrCompute(ctx, s.cache, cacher.SimilarKey(movieID, limit), ttl,
		func(ctx context.Context) ([]*domain.Movie, error) {
			seed, err := s.repo.GetMovie(ctx, movieID)
			if err != nil {
				return nil, err
			}
			if seed == nil {
				return nil, fmt.Errorf("%w: movie %d", domain.ErrNotFound, movieID)
			}
			if len(seed.Genres) == 0 {
				return []*domain.Movie{}, nil
			}

			candidates, err := s.repo.QueryMovies(ctx, domain.MovieFilter{
				AnyGenres:  seed.Genres,
				ExcludeIDs: []int64{seed.ID},
			})
			if err != nil {
				return nil, err
			}
			return domainservice.RankSimilar(seed, candidates, limit), nil
		})
}

// userSignal loads a user's profile, ratings and liked movies
func (s *Service) userSignal(ctx context.Context, userID int64) (*domainservice.UserSignal, error) {
	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	ratings, err := s.repo.ListRatingsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var likedIDs []int64
	for _, r := range ratings {
		if r.IsLiked() {
			likedIDs = append(likedIDs, r.MovieID)
		}
	}

	movies := make(map[int64]*domain.Movie, len(likedIDs))
	if len(likedIDs) > 0 {
		liked, err := s.repo.GetMoviesByIDs(ctx, likedIDs)
		if err != nil {
			return nil, err
		}
		for _, m := range liked {
			movies[m.ID] = m
		}
	}

	return domainservice.NewUserSignal(profile, ratings, movies), nil
}

// popularityIndex returns the catalog popularity distribution
func (s *Service) popularityIndex(ctx context.Context) (*domainservice.PopularityIndex, error) {
	ttl := s.cache.Config().PopularityTTL
	values, err := cacher.GetOrCompute(ctx, s.cache, cacher.PopularityKey, ttl, s.repo.ListPopularity)
	if err != nil {
		return nil, err
	}
	return domainservice.NewPopularityIndex(values, s.scorer.Config().PopularityCap), nil
}
