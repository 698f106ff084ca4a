package vo

import "errors"

// RatingScore is a user's score for a movie on a 1-5 scale.
type RatingScore struct {
	value int
}

// Rating score bounds
const (
	MinRatingScore = 1
	MaxRatingScore = 5

	// LikedRatingScore is the lowest score that marks a movie as liked
	LikedRatingScore = 4
)

var ErrRatingScoreOutOfRange = errors.New("rating score out of range")

// NewRatingScore validates a score. Out of range values are rejected, not clamped.
func NewRatingScore(score int) (RatingScore, error) {
	if score < MinRatingScore || score > MaxRatingScore {
		return RatingScore{}, ErrRatingScoreOutOfRange
	}
	return RatingScore{value: score}, nil
}

// Value returns the numeric score.
func (s RatingScore) Value() int {
	return s.value
}

// IsLiked reports whether the score counts toward the user's taste profile.
func (s RatingScore) IsLiked() bool {
	return s.value >= LikedRatingScore
}
