package repository

import (
	"context"

	"github.com/vertextoedge/movie-catalog/internal/domain"
)

// RatingRepository defines the interface for rating persistence
type RatingRepository interface {
	// UpsertRating creates the rating or replaces the user's previous
	// rating for the same movie
	UpsertRating(ctx context.Context, rating *domain.Rating) error

	// GetRating retrieves one user's rating for a movie
	GetRating(ctx context.Context, userID, movieID int64) (*domain.Rating, error)

	// ListRatingsByUser returns all ratings by a user, newest first
	ListRatingsByUser(ctx context.Context, userID int64) ([]*domain.Rating, error)

	// DeleteRating removes a rating. Returns false if none existed.
	DeleteRating(ctx context.Context, userID, movieID int64) (bool, error)
}

// StatsRepository defines the interface for catalog statistics
type StatsRepository interface {
	// GetCatalogStats returns row counts for the catalog
	GetCatalogStats(ctx context.Context) (*domain.CatalogStats, error)
}
