package domain

import (
	"slices"
	"time"

	"github.com/vertextoedge/movie-catalog/internal/domain/vo"
)

// Movie is the canonical catalog record for one provider movie
type Movie struct {
	ID             int64      `json:"id"`
	ExternalID     string     `json:"external_id"`
	Title          string     `json:"title"`
	Overview       string     `json:"overview"`
	ReleaseDate    *time.Time `json:"release_date,omitempty"`
	RatingAverage  float64    `json:"rating_average"`
	RatingCount    int        `json:"rating_count"`
	Popularity     float64    `json:"popularity"`
	Genres         []string   `json:"genres"`
	RuntimeMinutes *int       `json:"runtime_minutes,omitempty"`
	PosterPath     string     `json:"poster_path,omitempty"`
	BackdropPath   string     `json:"backdrop_path,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	LastSyncedAt   time.Time  `json:"last_synced_at"`
}

// GenreSet returns the movie's genres as a case-insensitive set
func (m *Movie) GenreSet() vo.GenreSet {
	return vo.NewGenreSet(m.Genres...)
}

// HasGenre reports whether the movie carries the genre
func (m *Movie) HasGenre(genre string) bool {
	key := vo.NormalizeGenre(genre)
	for _, g := range m.Genres {
		if vo.NormalizeGenre(g) == key {
			return true
		}
	}
	return false
}

// ReleaseYear returns the release year, or 0 when the date is unknown
func (m *Movie) ReleaseYear() int {
	if m.ReleaseDate == nil {
		return 0
	}
	return m.ReleaseDate.Year()
}

// SameContent reports whether two records carry the same provider data.
// Store-assigned fields (ID, CreatedAt, LastSyncedAt) are ignored.
func (m *Movie) SameContent(other *Movie) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m.ExternalID != other.ExternalID ||
		m.Title != other.Title ||
		m.Overview != other.Overview ||
		m.RatingAverage != other.RatingAverage ||
		m.RatingCount != other.RatingCount ||
		m.Popularity != other.Popularity ||
		m.PosterPath != other.PosterPath ||
		m.BackdropPath != other.BackdropPath {
		return false
	}
	if !sameDate(m.ReleaseDate, other.ReleaseDate) {
		return false
	}
	if (m.RuntimeMinutes == nil) != (other.RuntimeMinutes == nil) {
		return false
	}
	if m.RuntimeMinutes != nil && *m.RuntimeMinutes != *other.RuntimeMinutes {
		return false
	}
	return slices.Equal(m.Genres, other.Genres)
}

// MergeSync copies the mutable provider fields of src onto m and bumps
// LastSyncedAt. LastSyncedAt never moves backwards.
func (m *Movie) MergeSync(src *Movie) {
	m.Title = src.Title
	m.Overview = src.Overview
	m.ReleaseDate = src.ReleaseDate
	m.RatingAverage = src.RatingAverage
	m.RatingCount = src.RatingCount
	m.Popularity = src.Popularity
	m.Genres = src.Genres
	m.RuntimeMinutes = src.RuntimeMinutes
	m.PosterPath = src.PosterPath
	m.BackdropPath = src.BackdropPath
	if src.LastSyncedAt.After(m.LastSyncedAt) {
		m.LastSyncedAt = src.LastSyncedAt
	}
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// Recommendation is a movie paired with its match score for one user
type Recommendation struct {
	Movie *Movie `json:"movie"`
	Score int    `json:"score"`
}

// CatalogStats summarizes the stored catalog
type CatalogStats struct {
	TotalMovies  int64 `json:"total_movies"`
	TotalRatings int64 `json:"total_ratings"`
	Profiles     int64 `json:"profiles"`
}
