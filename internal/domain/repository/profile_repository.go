package repository

import (
	"context"

	"github.com/vertextoedge/movie-catalog/internal/domain"
)

// ProfileRepository defines the interface for user profile persistence
type ProfileRepository interface {
	// GetProfile retrieves a user's profile, or nil if none was created yet
	GetProfile(ctx context.Context, userID int64) (*domain.UserProfile, error)

	// SaveProfile creates or replaces a user's profile
	SaveProfile(ctx context.Context, profile *domain.UserProfile) error

	// DeleteUser removes a user's profile and all of their ratings
	DeleteUser(ctx context.Context, userID int64) error
}
