package port

import (
	"github.com/vertextoedge/movie-catalog/internal/domain/repository"
)

// MovieRepository is an alias to domain repository interface
type MovieRepository = repository.MovieRepository

// ProfileRepository is an alias to domain repository interface
type ProfileRepository = repository.ProfileRepository

// RatingRepository is an alias to domain repository interface
type RatingRepository = repository.RatingRepository

// StatsRepository is an alias to domain repository interface
type StatsRepository = repository.StatsRepository

// Store is an alias to domain repository interface
type Store = repository.Store
