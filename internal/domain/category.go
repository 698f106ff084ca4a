package domain

import "fmt"

// Category is a provider listing that the syncer can ingest.
type Category string

const (
	CategoryPopular    Category = "popular"
	CategoryTrending   Category = "trending"
	CategoryTopRated   Category = "top_rated"
	CategoryNowPlaying Category = "now_playing"
	CategoryUpcoming   Category = "upcoming"
)

// AllCategories lists every supported category in sync order
var AllCategories = []Category{
	CategoryPopular,
	CategoryTrending,
	CategoryTopRated,
	CategoryNowPlaying,
	CategoryUpcoming,
}

// ParseCategory validates a category name
func ParseCategory(s string) (Category, error) {
	for _, c := range AllCategories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

// PageRange is an inclusive range of provider pages.
type PageRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// NewPageRange creates a validated page range
func NewPageRange(from, to int) (PageRange, error) {
	r := PageRange{From: from, To: to}
	if err := r.Validate(); err != nil {
		return PageRange{}, err
	}
	return r, nil
}

// Validate checks that the range is non-empty and starts at page 1 or later
func (r PageRange) Validate() error {
	if r.From < 1 || r.To < r.From {
		return fmt.Errorf("%w: %d-%d", ErrInvalidPageRange, r.From, r.To)
	}
	return nil
}

// Pages expands the range into page numbers
func (r PageRange) Pages() []int {
	if r.Validate() != nil {
		return nil
	}
	pages := make([]int, 0, r.To-r.From+1)
	for p := r.From; p <= r.To; p++ {
		pages = append(pages, p)
	}
	return pages
}
