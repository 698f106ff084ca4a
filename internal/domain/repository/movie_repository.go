package repository

import (
	"context"
	"time"

	"github.com/vertextoedge/movie-catalog/internal/domain"
)

// MovieRepository defines the interface for catalog persistence operations.
// Get methods return (nil, nil) when nothing matches.
type MovieRepository interface {
	// UpsertMovie inserts the movie or overwrites the mutable fields of the
	// record with the same external ID. The movie's ID and CreatedAt are
	// filled in. Returns true when a new record was created.
	UpsertMovie(ctx context.Context, movie *domain.Movie) (bool, error)

	// GetMovie retrieves a movie by its store ID
	GetMovie(ctx context.Context, id int64) (*domain.Movie, error)

	// GetMovieByExternalID retrieves a movie by its provider ID
	GetMovieByExternalID(ctx context.Context, externalID string) (*domain.Movie, error)

	// GetMoviesByIDs retrieves the movies that exist among ids
	GetMoviesByIDs(ctx context.Context, ids []int64) ([]*domain.Movie, error)

	// MovieExists checks whether a movie with the external ID is stored
	MovieExists(ctx context.Context, externalID string) (bool, error)

	// QueryMovies returns movies matching the filter. A zero Limit returns
	// every match.
	QueryMovies(ctx context.Context, filter domain.MovieFilter) ([]*domain.Movie, error)

	// HasGenre reports whether the stored movie carries the genre
	HasGenre(ctx context.Context, movieID int64, genre string) (bool, error)

	// ListPopularity returns the popularity of every stored movie
	ListPopularity(ctx context.Context) ([]float64, error)

	// DeleteStaleMovies removes unrated movies created before the cutoff
	// whose popularity is below maxPopularity
	DeleteStaleMovies(ctx context.Context, createdBefore time.Time, maxPopularity float64) (int, error)
}
