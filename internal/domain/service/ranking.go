package service

import (
	"cmp"
	"slices"

	"github.com/vertextoedge/movie-catalog/internal/domain"
)

// SortRecommendations orders by score, then rating count (both descending),
// then external ID ascending. The order is total.
func SortRecommendations(recs []domain.Recommendation) {
	slices.SortFunc(recs, func(a, b domain.Recommendation) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Movie.RatingCount, a.Movie.RatingCount); c != 0 {
			return c
		}
		return cmp.Compare(a.Movie.ExternalID, b.Movie.ExternalID)
	})
}

// RankSimilar returns the candidates sharing at least one genre with seed,
// ordered by genre overlap and rating average (descending) then external ID.
// The seed itself is never returned. A seed without genres has no matches.
func RankSimilar(seed *domain.Movie, candidates []*domain.Movie, limit int) []*domain.Movie {
	seedGenres := seed.GenreSet()
	if seedGenres.IsEmpty() {
		return []*domain.Movie{}
	}

	type scored struct {
		movie   *domain.Movie
		overlap int
	}
	matches := make([]scored, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, m := range candidates {
		if m.ExternalID == seed.ExternalID || (seed.ID != 0 && m.ID == seed.ID) {
			continue
		}
		if _, dup := seen[m.ExternalID]; dup {
			continue
		}
		seen[m.ExternalID] = struct{}{}
		if n := seedGenres.Overlap(m.GenreSet()); n > 0 {
			matches = append(matches, scored{movie: m, overlap: n})
		}
	}

	slices.SortFunc(matches, func(a, b scored) int {
		if c := cmp.Compare(b.overlap, a.overlap); c != 0 {
			return c
		}
		if c := cmp.Compare(b.movie.RatingAverage, a.movie.RatingAverage); c != 0 {
			return c
		}
		return cmp.Compare(a.movie.ExternalID, b.movie.ExternalID)
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]*domain.Movie, len(matches))
	for i, s := range matches {
		out[i] = s.movie
	}
	return out
}
