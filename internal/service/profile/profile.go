package profile

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/vertextoedge/movie-catalog/internal/domain"
	"github.com/vertextoedge/movie-catalog/internal/domain/event"
	"github.com/vertextoedge/movie-catalog/internal/service/cacher"
)

// maxStatGenres bounds the genre breakdown in user statistics
const maxStatGenres = 5

// Repository is the part of the metadata store the profile service uses
type Repository interface {
	GetProfile(ctx context.Context, userID int64) (*domain.UserProfile, error)
	SaveProfile(ctx context.Context, profile *domain.UserProfile) error
	DeleteUser(ctx context.Context, userID int64) error

	UpsertRating(ctx context.Context, rating *domain.Rating) error
	GetRating(ctx context.Context, userID, movieID int64) (*domain.Rating, error)
	ListRatingsByUser(ctx context.Context, userID int64) ([]*domain.Rating, error)
	DeleteRating(ctx context.Context, userID, movieID int64) (bool, error)

	GetMovie(ctx context.Context, id int64) (*domain.Movie, error)
	GetMoviesByIDs(ctx context.Context, ids []int64) ([]*domain.Movie, error)
}

// Service manages user profiles and ratings. Every write invalidates the
// user's cached scores before returning.
type Service struct {
	repo   Repository
	cache  *cacher.Cacher
	events event.EventDispatcher
	logger *zap.Logger
}

// New creates a new profile Service
func New(repo Repository, cache *cacher.Cacher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:   repo,
		cache:  cache,
		events: event.NewNullDispatcher(),
		logger: logger,
	}
}

// SetDispatcher publishes rating and deletion activity to d
func (s *Service) SetDispatcher(d event.EventDispatcher) {
	s.events = d
}

// GetProfile returns the user's profile, creating an empty one on first use
func (s *Service) GetProfile(ctx context.Context, userID int64) (*domain.UserProfile, error) {
	if err := validateUser(userID); err != nil {
		return nil, err
	}

	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		return profile, nil
	}

	profile = domain.NewUserProfile(userID)
	if err := s.repo.SaveProfile(ctx, profile); err != nil {
		return nil, err
	}
	s.logger.Debug("profile created", zap.Int64("user_id", userID))
	return profile, nil
}

// UpdateFavoriteGenres replaces the user's favorite genres
func (s *Service) UpdateFavoriteGenres(ctx context.Context, userID int64, genres []string) (*domain.UserProfile, error) {
	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile.SetFavoriteGenres(genres)
	if err := s.repo.SaveProfile(ctx, profile); err != nil {
		return nil, err
	}
	s.cache.InvalidateUser(ctx, userID)
	return profile, nil
}

// RateMovie records the user's score for a movie, replacing an earlier one
func (s *Service) RateMovie(ctx context.Context, userID, movieID int64, score int, review string) (*domain.Rating, error) {
	if err := validateUser(userID); err != nil {
		return nil, err
	}
	rating, err := domain.NewRating(userID, movieID, score, review)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	movie, err := s.repo.GetMovie(ctx, movieID)
	if err != nil {
		return nil, err
	}
	if movie == nil {
		return nil, fmt.Errorf("%w: movie %d", domain.ErrNotFound, movieID)
	}

	if _, err := s.GetProfile(ctx, userID); err != nil {
		return nil, err
	}

	if prev, err := s.repo.GetRating(ctx, userID, movieID); err == nil && prev != nil {
		rating.CreatedAt = prev.CreatedAt
	}
	if err := s.repo.UpsertRating(ctx, rating); err != nil {
		// The movie can disappear between the check and the insert
		if domain.IsStoreKind(err, domain.StoreConstraintViolation) {
			return nil, fmt.Errorf("%w: movie %d", domain.ErrNotFound, movieID)
		}
		return nil, err
	}
	s.cache.InvalidateUser(ctx, userID)

	s.events.Dispatch(event.NewRatingChanged(userID, movieID, score))
	return rating, nil
}

// DeleteRating removes the user's rating of a movie
func (s *Service) DeleteRating(ctx context.Context, userID, movieID int64) error {
	if err := validateUser(userID); err != nil {
		return err
	}
	deleted, err := s.repo.DeleteRating(ctx, userID, movieID)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: rating of movie %d", domain.ErrNotFound, movieID)
	}
	s.cache.InvalidateUser(ctx, userID)
	s.events.Dispatch(event.NewRatingChanged(userID, movieID, 0))
	return nil
}

// ListRatings returns the user's ratings, newest first
func (s *Service) ListRatings(ctx context.Context, userID int64) ([]*domain.Rating, error) {
	if err := validateUser(userID); err != nil {
		return nil, err
	}
	return s.repo.ListRatingsByUser(ctx, userID)
}

// DeleteUser removes the user's profile and ratings
func (s *Service) DeleteUser(ctx context.Context, userID int64) error {
	if err := validateUser(userID); err != nil {
		return err
	}
	if err := s.repo.DeleteUser(ctx, userID); err != nil {
		return err
	}
	s.cache.InvalidateUser(ctx, userID)
	s.events.Dispatch(event.NewUserDeleted(userID))
	return nil
}

// Statistics summarizes the user's rating activity
func (s *Service) Statistics(ctx context.Context, userID int64) (*domain.UserStatistics, error) {
	if err := validateUser(userID); err != nil {
		return nil, err
	}

	ttl := s.cache.Config().StatsTTL
	return cacher.GetOrCompute(ctx, s.cache, cacher.UserStatsKey(userID), ttl,
		func(ctx context.Context) (*domain.UserStatistics, error) {
			ratings, err := s.repo.ListRatingsByUser(ctx, userID)
			if err != nil {
				return nil, err
			}
			stats := &domain.UserStatistics{
				UserID:         userID,
				TotalRatings:   len(ratings),
				FavoriteGenres: []domain.GenreCount{},
			}
			if len(ratings) == 0 {
				return stats, nil
			}

			ids := make([]int64, len(ratings))
			liked := make(map[int64]struct{})
			total := 0
			for i, r := range ratings {
				ids[i] = r.MovieID
				total += r.Score
				if r.IsLiked() {
					stats.LikedMovieCount++
					liked[r.MovieID] = struct{}{}
				}
				if stats.HighestRated == nil || r.Score > stats.HighestRated.Score {
					stats.HighestRated = r
				}
				if stats.LowestRated == nil || r.Score < stats.LowestRated.Score {
					stats.LowestRated = r
				}
			}
			stats.AverageScore = float64(total) / float64(len(ratings))

			movies, err := s.repo.GetMoviesByIDs(ctx, ids)
			if err != nil {
				return nil, err
			}

			counts := make(map[string]int)
			for _, m := range movies {
				if m.RuntimeMinutes != nil {
					stats.TotalWatchTime += *m.RuntimeMinutes
				}
				// Favorite genres come from liked movies only
				if _, ok := liked[m.ID]; !ok {
					continue
				}
				for _, g := range m.GenreSet().Keys() {
					counts[g]++
				}
			}
			stats.FavoriteGenres = topGenres(counts, maxStatGenres)
			return stats, nil
		})
}

// topGenres orders genres by count descending, then name
func topGenres(counts map[string]int, limit int) []domain.GenreCount {
	out := make([]domain.GenreCount, 0, len(counts))
	for g, n := range counts {
		out = append(out, domain.GenreCount{Genre: g, Count: n})
	}
	slices.SortFunc(out, func(a, b domain.GenreCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Genre, b.Genre)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

var errInvalidUser = errors.New("user id must be positive")

func validateUser(userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, errInvalidUser)
	}
	return nil
}
