package service

import (
	"errors"
	"math"
	"testing"

	"github.com/vertextoedge/movie-catalog/internal/domain"
)

func TestNormalize_ExternalID(t *testing.T) {
	tests := []struct {
		name    string
		raw     domain.RawRecord
		want    string
		wantErr bool
	}{
		{name: "numeric id", raw: domain.RawRecord{"id": float64(550)}, want: "550"},
		{name: "string id", raw: domain.RawRecord{"id": " tt0137523 "}, want: "tt0137523"},
		{name: "fallback key", raw: domain.RawRecord{"tmdb_id": float64(13)}, want: "13"},
		{name: "numeric string", raw: domain.RawRecord{"external_id": "603"}, want: "603"},
		{name: "blank id falls through", raw: domain.RawRecord{"id": "  ", "tmdb_id": float64(7)}, want: "7"},
		{name: "fractional id", raw: domain.RawRecord{"id": 1.5}, wantErr: true},
		{name: "zero id", raw: domain.RawRecord{"id": float64(0)}, wantErr: true},
		{name: "bool id", raw: domain.RawRecord{"id": true}, wantErr: true},
		{name: "missing id", raw: domain.RawRecord{"title": "No ID"}, wantErr: true},
		{name: "empty record", raw: domain.RawRecord{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			movie, err := Normalize(tt.raw, nil)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrMissingExternalID) {
					t.Fatalf("Normalize() error = %v, want ErrMissingExternalID", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if movie.ExternalID != tt.want {
				t.Errorf("ExternalID = %v, want %v", movie.ExternalID, tt.want)
			}
		})
	}
}

func TestNormalize_Defaults(t *testing.T) {
	movie, err := Normalize(domain.RawRecord{
		"id":           float64(1),
		"vote_average": "not a number",
		"vote_count":   nil,
		"popularity":   -3.0,
		"release_date": "2024-13-45",
		"runtime":      float64(0),
	}, nil)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if movie.RatingAverage != DefaultRatingAverage {
		t.Errorf("RatingAverage = %v, want %v", movie.RatingAverage, DefaultRatingAverage)
	}
	if movie.RatingCount != DefaultRatingCount {
		t.Errorf("RatingCount = %v, want %v", movie.RatingCount, DefaultRatingCount)
	}
	if movie.Popularity != 0 {
		t.Errorf("Popularity = %v, want 0", movie.Popularity)
	}
	if movie.ReleaseDate != nil {
		t.Errorf("ReleaseDate = %v, want nil", movie.ReleaseDate)
	}
	if movie.RuntimeMinutes != nil {
		t.Errorf("RuntimeMinutes = %v, want nil", *movie.RuntimeMinutes)
	}
	if movie.Genres == nil || len(movie.Genres) != 0 {
		t.Errorf("Genres = %v, want empty", movie.Genres)
	}
}

func TestNormalize_Fields(t *testing.T) {
	lookup := domain.GenreLookup{28: "Action", 18: "Drama"}
	movie, err := Normalize(domain.RawRecord{
		"id":            float64(550),
		"title":         "Fight Club",
		"overview":      "An insomniac office worker...",
		"release_date":  "1999-10-15",
		"vote_average":  8.4,
		"vote_count":    float64(26280),
		"popularity":    "61.4",
		"genre_ids":     []any{float64(18), float64(28), float64(99999), float64(18)},
		"runtime":       139.0,
		"poster_path":   "/pB8BM7pdSp6B6Ih7QZ4DrQ3PmJK.jpg",
		"backdrop_path": "/hZkgoQYus5vegHoetLkCJzb17zJ.jpg",
	}, lookup)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if movie.Title != "Fight Club" {
		t.Errorf("Title = %v, want Fight Club", movie.Title)
	}
	if movie.ReleaseYear() != 1999 {
		t.Errorf("ReleaseYear() = %v, want 1999", movie.ReleaseYear())
	}
	if movie.RatingAverage != 8.4 || movie.RatingCount != 26280 || movie.Popularity != 61.4 {
		t.Errorf("numbers = (%v, %v, %v), want (8.4, 26280, 61.4)",
			movie.RatingAverage, movie.RatingCount, movie.Popularity)
	}
	if len(movie.Genres) != 2 || movie.Genres[0] != "Drama" || movie.Genres[1] != "Action" {
		t.Errorf("Genres = %v, want [Drama Action]", movie.Genres)
	}
	if movie.RuntimeMinutes == nil || *movie.RuntimeMinutes != 139 {
		t.Errorf("RuntimeMinutes = %v, want 139", movie.RuntimeMinutes)
	}
	if movie.PosterPath == "" || movie.BackdropPath == "" {
		t.Error("media paths should be copied")
	}
}

func TestNormalize_GenreShapes(t *testing.T) {
	lookup := domain.GenreLookup{878: "Science Fiction"}

	tests := []struct {
		name string
		raw  domain.RawRecord
		want []string
	}{
		{
			name: "detail objects",
			raw: domain.RawRecord{"id": float64(1), "genres": []any{
				map[string]any{"id": float64(28), "name": "Action"},
				map[string]any{"id": float64(878)},
			}},
			want: []string{"Action", "Science Fiction"},
		},
		{
			name: "plain names deduplicated case-insensitively",
			raw:  domain.RawRecord{"id": float64(1), "genres": []any{"Drama", "drama", " Thriller "}},
			want: []string{"Drama", "Thriller"},
		},
		{
			name: "wrong type ignored",
			raw:  domain.RawRecord{"id": float64(1), "genre_ids": "28,18"},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			movie, err := Normalize(tt.raw, lookup)
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if len(movie.Genres) != len(tt.want) {
				t.Fatalf("Genres = %v, want %v", movie.Genres, tt.want)
			}
			for i := range tt.want {
				if movie.Genres[i] != tt.want[i] {
					t.Errorf("Genres[%d] = %v, want %v", i, movie.Genres[i], tt.want[i])
				}
			}
		})
	}
}

func TestNormalize_Clamping(t *testing.T) {
	movie, err := Normalize(domain.RawRecord{"id": float64(2), "vote_average": 11.5, "vote_count": -4.0}, nil)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if movie.RatingAverage != 10 {
		t.Errorf("RatingAverage = %v, want 10", movie.RatingAverage)
	}
	if movie.RatingCount != 0 {
		t.Errorf("RatingCount = %v, want 0", movie.RatingCount)
	}

	huge, err := Normalize(domain.RawRecord{"id": float64(7), "vote_count": 1e300, "runtime": 1e300}, nil)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if huge.RatingCount != math.MaxInt32 {
		t.Errorf("RatingCount = %v, want %v", huge.RatingCount, math.MaxInt32)
	}
	if huge.RuntimeMinutes != nil {
		t.Errorf("RuntimeMinutes = %v, want nil", *huge.RuntimeMinutes)
	}
}

func TestNormalize_GenreWhitespace(t *testing.T) {
	raw := domain.RawRecord{
		"id":     float64(8),
		"genres": []any{"  Science   Fiction ", map[string]any{"name": "science fiction"}, "Drama"},
	}
	movie, err := Normalize(raw, nil)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if len(movie.Genres) != 2 || movie.Genres[0] != "Science Fiction" || movie.Genres[1] != "Drama" {
		t.Errorf("Genres = %q, want [Science Fiction Drama]", movie.Genres)
	}
}

func TestNormalize_RFC3339Date(t *testing.T) {
	movie, err := Normalize(domain.RawRecord{"id": float64(3), "release_date": "2010-07-16T00:00:00Z"}, nil)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if movie.ReleaseDate == nil || movie.ReleaseDate.Format("2006-01-02") != "2010-07-16" {
		t.Errorf("ReleaseDate = %v, want 2010-07-16", movie.ReleaseDate)
	}
}

func TestNormalizePage(t *testing.T) {
	page := &domain.RawPage{
		Category: domain.CategoryPopular,
		Page:     1,
		Records: []domain.RawRecord{
			{"id": float64(1), "title": "One"},
			{"title": "Missing"},
			{"id": float64(2), "title": "Two"},
		},
	}

	movies, skipped := NormalizePage(page, nil)
	if len(movies) != 2 {
		t.Errorf("movies = %d, want 2", len(movies))
	}
	if len(skipped) != 1 {
		t.Fatalf("skipped = %d, want 1", len(skipped))
	}
	if !domain.IsSkippable(skipped[0]) || !errors.Is(skipped[0], domain.ErrMissingExternalID) {
		t.Errorf("skipped[0] = %v, want skippable missing id", skipped[0])
	}

	if movies, skipped := NormalizePage(nil, nil); movies != nil || skipped != nil {
		t.Error("NormalizePage(nil) should return nothing")
	}
}
