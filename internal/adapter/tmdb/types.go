package tmdb

import (
	"time"

	"github.com/vertextoedge/movie-catalog/internal/domain"
)

// DefaultBaseURL is the public TMDB v3 API root
const DefaultBaseURL = "https://api.themoviedb.org/3"

// Config contains client configuration
type Config struct {
	BaseURL  string
	APIKey   string
	Language string
	Timeout  time.Duration
	// MaxPage is the highest page the provider serves for any listing
	MaxPage int

	// Request budget: RequestsPerWindow calls per RateWindow
	RequestsPerWindow int
	RateWindow        time.Duration

	// Circuit breaker: open after BreakerFailures consecutive transient
	// failures, probe again after BreakerTimeout
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// DefaultConfig returns default client configuration
func DefaultConfig() *Config {
	return &Config{
		BaseURL:           DefaultBaseURL,
		Language:          "en-US",
		Timeout:           10 * time.Second,
		MaxPage:           500,
		RequestsPerWindow: 40,
		RateWindow:        10 * time.Second,
		BreakerFailures:   5,
		BreakerTimeout:    30 * time.Second,
	}
}

// categoryPaths maps catalog categories to provider listing endpoints
var categoryPaths = map[domain.Category]string{
	domain.CategoryPopular:    "/movie/popular",
	domain.CategoryTrending:   "/trending/movie/week",
	domain.CategoryTopRated:   "/movie/top_rated",
	domain.CategoryNowPlaying: "/movie/now_playing",
	domain.CategoryUpcoming:   "/movie/upcoming",
}

// pageResponse is the envelope of every paginated listing
type pageResponse struct {
	Page         int              `json:"page"`
	TotalPages   int              `json:"total_pages"`
	TotalResults int              `json:"total_results"`
	Results      []map[string]any `json:"results"`
}

type genreListResponse struct {
	Genres []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"genres"`
}

// errorResponse is the body TMDB sends with non-2xx statuses
type errorResponse struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
}
