package event

import (
	"time"
)

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	// EventName returns the name of the event
	EventName() string
	// OccurredAt returns when the event occurred
	OccurredAt() time.Time
}

// BaseEvent provides common fields for all events
type BaseEvent struct {
	Timestamp time.Time
}

// OccurredAt returns when the event occurred
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// Event names
const (
	NameSyncRunFinished    = "sync_run.finished"
	NameMovieImported      = "movie.imported"
	NameRatingChanged      = "rating.changed"
	NameUserDeleted        = "user.deleted"
	NameStaleMoviesRemoved = "movies.stale_removed"
	NameMoviesRefreshed    = "movies.refreshed"
)

// SyncRunFinished is raised when a sync run reaches a terminal state
type SyncRunFinished struct {
	BaseEvent
	RunID          string
	Category       string
	State          string
	PagesSucceeded int
	PagesFailed    int
	Created        int
	Updated        int
	Skipped        int
	AbortReason    string
	Duration       time.Duration
}

// EventName returns the event name
func (e SyncRunFinished) EventName() string {
	return NameSyncRunFinished
}

// MovieImported is raised when a single movie is imported on demand
type MovieImported struct {
	BaseEvent
	MovieID    int64
	ExternalID string
	Created    bool
}

// EventName returns the event name
func (e MovieImported) EventName() string {
	return NameMovieImported
}

// NewMovieImported creates a new MovieImported event
func NewMovieImported(movieID int64, externalID string, created bool) MovieImported {
	return MovieImported{
		BaseEvent:  BaseEvent{Timestamp: time.Now()},
		MovieID:    movieID,
		ExternalID: externalID,
		Created:    created,
	}
}

// RatingChanged is raised when a user rates a movie or removes a rating.
// Score is 0 when the rating was removed.
type RatingChanged struct {
	BaseEvent
	UserID  int64
	MovieID int64
	Score   int
}

// EventName returns the event name
func (e RatingChanged) EventName() string {
	return NameRatingChanged
}

// Removed reports whether the rating was deleted
func (e RatingChanged) Removed() bool {
	return e.Score == 0
}

// NewRatingChanged creates a new RatingChanged event
func NewRatingChanged(userID, movieID int64, score int) RatingChanged {
	return RatingChanged{
		BaseEvent: BaseEvent{Timestamp: time.Now()},
		UserID:    userID,
		MovieID:   movieID,
		Score:     score,
	}
}

// UserDeleted is raised when a user's profile and ratings are removed
type UserDeleted struct {
	BaseEvent
	UserID int64
}

// EventName returns the event name
func (e UserDeleted) EventName() string {
	return NameUserDeleted
}

// NewUserDeleted creates a new UserDeleted event
func NewUserDeleted(userID int64) UserDeleted {
	return UserDeleted{
		BaseEvent: BaseEvent{Timestamp: time.Now()},
		UserID:    userID,
	}
}

// StaleMoviesRemoved is raised when maintenance drops stale movies
type StaleMoviesRemoved struct {
	BaseEvent
	Count         int
	CreatedBefore time.Time
}

// EventName returns the event name
func (e StaleMoviesRemoved) EventName() string {
	return NameStaleMoviesRemoved
}

// NewStaleMoviesRemoved creates a new StaleMoviesRemoved event
func NewStaleMoviesRemoved(count int, createdBefore time.Time) StaleMoviesRemoved {
	return StaleMoviesRemoved{
		BaseEvent:     BaseEvent{Timestamp: time.Now()},
		Count:         count,
		CreatedBefore: createdBefore,
	}
}

// MoviesRefreshed is raised when a refresh pass over stored movies ends
type MoviesRefreshed struct {
	BaseEvent
	Refreshed int
	Failed    int
	Aborted   bool
}

// EventName returns the event name
func (e MoviesRefreshed) EventName() string {
	return NameMoviesRefreshed
}

// NewMoviesRefreshed creates a new MoviesRefreshed event
func NewMoviesRefreshed(refreshed, failed int, aborted bool) MoviesRefreshed {
	return MoviesRefreshed{
		BaseEvent: BaseEvent{Timestamp: time.Now()},
		Refreshed: refreshed,
		Failed:    failed,
		Aborted:   aborted,
	}
}
