package port

import (
	"context"

	"github.com/vertextoedge/movie-catalog/internal/domain"
)

// CatalogProvider is the external movie metadata source.
// Errors are *domain.FetchError values; implementations never retry.
type CatalogProvider interface {
	// FetchPage returns one page of a category listing
	FetchPage(ctx context.Context, category domain.Category, page int) (*domain.RawPage, error)

	// Search returns one page of results for a free-text query
	Search(ctx context.Context, query string, page int) (*domain.RawPage, error)

	// FetchMovie returns the detail record of a single movie
	FetchMovie(ctx context.Context, externalID string) (domain.RawRecord, error)

	// Genres returns the provider's genre id to name table
	Genres(ctx context.Context) (domain.GenreLookup, error)
}
