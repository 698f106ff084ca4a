package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/vertextoedge/movie-catalog/internal/domain"
	"github.com/vertextoedge/movie-catalog/internal/domain/vo"
)

// Numeric defaults used when a provider field is missing or malformed
const (
	DefaultRatingAverage = 0.0
	DefaultRatingCount   = 0
	DefaultPopularity    = 0.0

	maxRatingAverage = 10.0
	maxRatingCount   = math.MaxInt32

	// Runtimes above this are treated as absent
	maxRuntimeMinutes = 60000
)

var (
	externalIDKeys = []string{"id", "tmdb_id", "external_id"}
	titleKeys      = []string{"title", "name", "original_title"}
	dateLayouts    = []string{"2006-01-02", time.RFC3339}
)

// Normalize maps a raw provider record into a Movie. It performs no I/O and
// only fails when the record has no usable identifier. Malformed optional
// fields fall back to defaults. Genre ids missing from lookup are dropped.
func Normalize(raw domain.RawRecord, lookup domain.GenreLookup) (*domain.Movie, error) {
	externalID, ok := extractExternalID(raw)
	if !ok {
		return nil, &domain.NormalizationError{Err: domain.ErrMissingExternalID}
	}

	movie := &domain.Movie{
		ExternalID:    externalID.String(),
		Title:         firstString(raw, titleKeys...),
		Overview:      firstString(raw, "overview"),
		ReleaseDate:   parseDate(raw["release_date"]),
		RatingAverage: clamp(numberOr(raw["vote_average"], DefaultRatingAverage), 0, maxRatingAverage),
		RatingCount:   int(clamp(numberOr(raw["vote_count"], DefaultRatingCount), 0, maxRatingCount)),
		Popularity:    math.Max(numberOr(raw["popularity"], DefaultPopularity), 0),
		Genres:        extractGenres(raw, lookup),
		PosterPath:    firstString(raw, "poster_path"),
		BackdropPath:  firstString(raw, "backdrop_path"),
	}

	if runtime := numberOr(raw["runtime"], 0); runtime >= 1 && runtime <= maxRuntimeMinutes {
		minutes := int(math.Round(runtime))
		movie.RuntimeMinutes = &minutes
	}

	return movie, nil
}

// NormalizePage normalizes every record of a page. Records without an
// identifier are returned as skippable errors instead of movies.
func NormalizePage(page *domain.RawPage, lookup domain.GenreLookup) ([]*domain.Movie, []error) {
	if page == nil {
		return nil, nil
	}
	movies := make([]*domain.Movie, 0, len(page.Records))
	var skipped []error
	for i, raw := range page.Records {
		movie, err := Normalize(raw, lookup)
		if err != nil {
			skipped = append(skipped, domain.NewSkippableError(err, fmt.Sprintf("record %d", i)))
			continue
		}
		movies = append(movies, movie)
	}
	return movies, skipped
}

func extractExternalID(raw domain.RawRecord) (vo.ExternalID, bool) {
	for _, key := range externalIDKeys {
		var (
			id  vo.ExternalID
			err error
		)
		switch v := raw[key].(type) {
		case string:
			id, err = vo.NewExternalID(v)
		case nil, bool:
			continue
		default:
			n, ok := toNumber(v)
			if !ok {
				continue
			}
			id, err = vo.NewExternalIDFromNumber(n)
		}
		if err == nil {
			return id, true
		}
	}
	return vo.ExternalID{}, false
}

func extractGenres(raw domain.RawRecord, lookup domain.GenreLookup) []string {
	genres := make([]string, 0, 4)
	seen := make(map[string]struct{})
	add := func(name string) {
		name = strings.Join(strings.Fields(name), " ")
		key := vo.NormalizeGenre(name)
		if key == "" {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		genres = append(genres, name)
	}
	byID := func(v any) {
		n, ok := toNumber(v)
		if !ok || n != math.Trunc(n) {
			return
		}
		if name, ok := lookup[int(n)]; ok {
			add(name)
		}
	}

	if items, ok := raw["genres"].([]any); ok {
		for _, item := range items {
			switch g := item.(type) {
			case string:
				add(g)
			case map[string]any:
				if name, ok := g["name"].(string); ok && strings.TrimSpace(name) != "" {
					add(name)
				} else {
					byID(g["id"])
				}
			default:
				byID(g)
			}
		}
	}
	if ids, ok := raw["genre_ids"].([]any); ok {
		for _, id := range ids {
			byID(id)
		}
	}
	return genres
}

func firstString(raw domain.RawRecord, keys ...string) string {
	for _, key := range keys {
		if s, ok := raw[key].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

func parseDate(v any) *time.Time {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	return nil
}

// numberOr returns v as a finite number, or def
func numberOr(v any, def float64) float64 {
	n, ok := toNumber(v)
	if !ok {
		return def
	}
	return n
}

func toNumber(v any) (float64, bool) {
	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case float32:
		n = float64(x)
	case int:
		n = float64(x)
	case int64:
		n = float64(x)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		n = f
	case interface{ Float64() (float64, error) }:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
