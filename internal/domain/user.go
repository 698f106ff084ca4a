package domain

import (
	"time"

	"github.com/vertextoedge/movie-catalog/internal/domain/vo"
)

// UserProfile holds a user's explicit preferences. UserID is the identity
// supplied by the caller; profiles are created on first use.
type UserProfile struct {
	UserID         int64     `json:"user_id"`
	FavoriteGenres []string  `json:"favorite_genres"`
	Bio            string    `json:"bio,omitempty"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewUserProfile creates an empty profile for a user
func NewUserProfile(userID int64) *UserProfile {
	now := time.Now().UTC()
	return &UserProfile{
		UserID:         userID,
		FavoriteGenres: []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// SetFavoriteGenres replaces the favorite genres with their normalized,
// de-duplicated form. Order of first appearance is kept.
func (p *UserProfile) SetFavoriteGenres(genres []string) {
	seen := make(map[string]struct{}, len(genres))
	out := make([]string, 0, len(genres))
	for _, g := range genres {
		k := vo.NormalizeGenre(g)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	p.FavoriteGenres = out
	p.UpdatedAt = time.Now().UTC()
}

// FavoriteGenreSet returns the favorites as a set. A nil profile has none.
func (p *UserProfile) FavoriteGenreSet() vo.GenreSet {
	if p == nil {
		return vo.GenreSet{}
	}
	return vo.NewGenreSet(p.FavoriteGenres...)
}

// Rating is one user's score for one movie. (UserID, MovieID) is unique.
type Rating struct {
	UserID    int64     `json:"user_id"`
	MovieID   int64     `json:"movie_id"`
	Score     int       `json:"score"`
	Review    string    `json:"review,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRating validates the score and creates a rating
func NewRating(userID, movieID int64, score int, review string) (*Rating, error) {
	if _, err := vo.NewRatingScore(score); err != nil {
		return nil, ErrInvalidRatingScore
	}
	now := time.Now().UTC()
	return &Rating{
		UserID:    userID,
		MovieID:   movieID,
		Score:     score,
		Review:    review,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsLiked reports whether the rating counts toward the user's taste profile
func (r *Rating) IsLiked() bool {
	return r.Score >= vo.LikedRatingScore
}

// GenreCount is a genre with the number of movies it appeared in
type GenreCount struct {
	Genre string `json:"genre"`
	Count int    `json:"count"`
}

// UserStatistics summarizes a user's rating activity
type UserStatistics struct {
	UserID          int64        `json:"user_id"`
	TotalRatings    int          `json:"total_ratings"`
	AverageScore    float64      `json:"average_score"`
	FavoriteGenres  []GenreCount `json:"favorite_genres"`
	TotalWatchTime  int          `json:"total_watch_time_minutes"`
	LikedMovieCount int          `json:"liked_movies"`

	// HighestRated and LowestRated break score ties by the newest rating
	HighestRated *Rating `json:"highest_rated"`
	LowestRated  *Rating `json:"lowest_rated"`
}
