package domain

import "fmt"

// MovieOrder is a sort column for movie queries
type MovieOrder string

const (
	OrderPopularity  MovieOrder = "popularity"
	OrderRating      MovieOrder = "rating"
	OrderReleaseDate MovieOrder = "release_date"
	OrderCreatedAt   MovieOrder = "created_at"
	OrderTitle       MovieOrder = "title"
)

// MaxQueryLimit caps the number of rows a single list query returns
const MaxQueryLimit = 100

// MovieFilter describes a predicate query over the catalog.
// Zero values mean "no constraint".
type MovieFilter struct {
	TitleContains  string     `json:"title,omitempty"`
	Year           int        `json:"year,omitempty"`
	YearFrom       int        `json:"year_gte,omitempty"`
	YearTo         int        `json:"year_lte,omitempty"`
	MinRating      *float64   `json:"min_rating,omitempty"`
	MaxRating      *float64   `json:"max_rating,omitempty"`
	MinRatingCount int        `json:"min_rating_count,omitempty"`
	MinPopularity  *float64   `json:"min_popularity,omitempty"`
	MinRuntime     int        `json:"min_runtime,omitempty"`
	MaxRuntime     int        `json:"max_runtime,omitempty"`
	Genre          string     `json:"genre,omitempty"`
	AnyGenres      []string   `json:"any_genres,omitempty"`
	ExcludeIDs     []int64    `json:"exclude_ids,omitempty"`
	OrderBy        MovieOrder `json:"order_by,omitempty"`
	Ascending      bool       `json:"ascending,omitempty"`
	Limit          int        `json:"limit,omitempty"`
	Offset         int        `json:"offset,omitempty"`
}

// Validate checks ranges and ordering
func (f *MovieFilter) Validate() error {
	switch f.OrderBy {
	case "", OrderPopularity, OrderRating, OrderReleaseDate, OrderCreatedAt, OrderTitle:
	default:
		return fmt.Errorf("%w: unknown ordering %q", ErrInvalidInput, f.OrderBy)
	}
	if f.MinRating != nil && f.MaxRating != nil && *f.MinRating > *f.MaxRating {
		return fmt.Errorf("%w: min_rating greater than max_rating", ErrInvalidInput)
	}
	if f.YearFrom > 0 && f.YearTo > 0 && f.YearFrom > f.YearTo {
		return fmt.Errorf("%w: year_gte greater than year_lte", ErrInvalidInput)
	}
	if f.MinRuntime > 0 && f.MaxRuntime > 0 && f.MinRuntime > f.MaxRuntime {
		return fmt.Errorf("%w: min_runtime greater than max_runtime", ErrInvalidInput)
	}
	if f.Limit < 0 || f.Offset < 0 {
		return fmt.Errorf("%w: negative limit or offset", ErrInvalidInput)
	}
	return nil
}
