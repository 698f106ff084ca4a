package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/vertextoedge/movie-catalog/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testMovie(externalID, title string, popularity float64, genres ...string) *domain.Movie {
	release := time.Date(2010, 7, 16, 0, 0, 0, 0, time.UTC)
	runtime := 148
	return &domain.Movie{
		ExternalID:     externalID,
		Title:          title,
		Overview:       "overview of " + title,
		ReleaseDate:    &release,
		RatingAverage:  8.4,
		RatingCount:    1200,
		Popularity:     popularity,
		Genres:         genres,
		RuntimeMinutes: &runtime,
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestUpsertMovie_Idempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := testMovie("27205", "Inception", 80, "Action", "Science Fiction")
	created, err := store.UpsertMovie(ctx, first)
	if err != nil {
		t.Fatalf("UpsertMovie() error = %v", err)
	}
	if !created {
		t.Error("first UpsertMovie() should create")
	}
	if first.ID == 0 {
		t.Error("UpsertMovie() should assign ID")
	}

	second := testMovie("27205", "Inception", 95, "Action", "Science Fiction")
	created, err = store.UpsertMovie(ctx, second)
	if err != nil {
		t.Fatalf("UpsertMovie() error = %v", err)
	}
	if created {
		t.Error("second UpsertMovie() should update")
	}
	if second.ID != first.ID {
		t.Errorf("ID = %d, want %d", second.ID, first.ID)
	}

	stats, err := store.GetCatalogStats(ctx)
	if err != nil {
		t.Fatalf("GetCatalogStats() error = %v", err)
	}
	if stats.TotalMovies != 1 {
		t.Errorf("TotalMovies = %d, want 1", stats.TotalMovies)
	}

	got, err := store.GetMovieByExternalID(ctx, "27205")
	if err != nil {
		t.Fatalf("GetMovieByExternalID() error = %v", err)
	}
	if got.Popularity != 95 {
		t.Errorf("Popularity = %v, want 95", got.Popularity)
	}
	if !got.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt changed: %v -> %v", first.CreatedAt, got.CreatedAt)
	}
	if !got.SameContent(second) {
		t.Errorf("stored movie %+v does not match %+v", got, second)
	}
}

func TestUpsertMovie_LastSyncedAtMonotonic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	later := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)

	m := testMovie("1", "A", 10)
	m.LastSyncedAt = later
	if _, err := store.UpsertMovie(ctx, m); err != nil {
		t.Fatalf("UpsertMovie() error = %v", err)
	}

	stale := testMovie("1", "A", 12)
	stale.LastSyncedAt = earlier
	if _, err := store.UpsertMovie(ctx, stale); err != nil {
		t.Fatalf("UpsertMovie() error = %v", err)
	}

	got, err := store.GetMovie(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMovie() error = %v", err)
	}
	if !got.LastSyncedAt.Equal(later) {
		t.Errorf("LastSyncedAt = %v, want %v", got.LastSyncedAt, later)
	}
	if got.Popularity != 12 {
		t.Errorf("Popularity = %v, want 12", got.Popularity)
	}
}

func TestUpsertMovie_MissingExternalID(t *testing.T) {
	store := newTestStore(t)

	_, err := store.UpsertMovie(context.Background(), testMovie("", "No ID", 1))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("UpsertMovie() error = %v, want ErrInvalidInput", err)
	}
}

func TestGetMovie_NotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	got, err := store.GetMovie(ctx, 42)
	if err != nil || got != nil {
		t.Errorf("GetMovie() = %v, %v; want nil, nil", got, err)
	}
	exists, err := store.MovieExists(ctx, "42")
	if err != nil || exists {
		t.Errorf("MovieExists() = %v, %v; want false, nil", exists, err)
	}
}

func TestMovie_OptionalFieldsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	m := &domain.Movie{ExternalID: "7", Title: "Untitled", Genres: nil}
	if _, err := store.UpsertMovie(ctx, m); err != nil {
		t.Fatalf("UpsertMovie() error = %v", err)
	}

	got, err := store.GetMovie(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMovie() error = %v", err)
	}
	if got.ReleaseDate != nil {
		t.Errorf("ReleaseDate = %v, want nil", got.ReleaseDate)
	}
	if got.RuntimeMinutes != nil {
		t.Errorf("RuntimeMinutes = %v, want nil", *got.RuntimeMinutes)
	}
	if got.Genres == nil || len(got.Genres) != 0 {
		t.Errorf("Genres = %#v, want empty slice", got.Genres)
	}
}

func seedCatalog(t *testing.T, store *Store) map[string]*domain.Movie {
	t.Helper()
	ctx := context.Background()

	movies := []*domain.Movie{
		testMovie("1", "The Dark Knight", 90, "Action", "Crime", "Drama"),
		testMovie("2", "Dark Waters", 40, "Drama"),
		testMovie("3", "Toy Story", 70, "Animation", "Comedy"),
		testMovie("4", "Heat", 55, "crime ", "Thriller"),
	}
	movies[1].RatingAverage = 6.5
	movies[2].RatingAverage = 7.9
	old := time.Date(1995, 12, 15, 0, 0, 0, 0, time.UTC)
	movies[3].ReleaseDate = &old

	byExt := make(map[string]*domain.Movie)
	for _, m := range movies {
		if _, err := store.UpsertMovie(ctx, m); err != nil {
			t.Fatalf("UpsertMovie(%s) error = %v", m.ExternalID, err)
		}
		byExt[m.ExternalID] = m
	}
	return byExt
}

func externalIDs(movies []*domain.Movie) []string {
	ids := make([]string, len(movies))
	for i, m := range movies {
		ids[i] = m.ExternalID
	}
	return ids
}

func TestQueryMovies(t *testing.T) {
	store := newTestStore(t)
	seeded := seedCatalog(t, store)

	tests := []struct {
		name   string
		filter domain.MovieFilter
		want   []string
	}{
		{
			name:   "default popularity order",
			filter: domain.MovieFilter{},
			want:   []string{"1", "3", "4", "2"},
		},
		{
			name:   "title contains is case-insensitive",
			filter: domain.MovieFilter{TitleContains: "dark"},
			want:   []string{"1", "2"},
		},
		{
			name:   "genre match ignores case and padding",
			filter: domain.MovieFilter{Genre: "CRIME"},
			want:   []string{"1", "4"},
		},
		{
			name:   "any genres",
			filter: domain.MovieFilter{AnyGenres: []string{"comedy", "thriller"}},
			want:   []string{"3", "4"},
		},
		{
			name:   "rating range",
			filter: domain.MovieFilter{MinRating: floatPtr(7), MaxRating: floatPtr(8)},
			want:   []string{"3"},
		},
		{
			name:   "year",
			filter: domain.MovieFilter{Year: 1995},
			want:   []string{"4"},
		},
		{
			name:   "year upper bound",
			filter: domain.MovieFilter{YearTo: 2000},
			want:   []string{"4"},
		},
		{
			name:   "exclude ids",
			filter: domain.MovieFilter{ExcludeIDs: []int64{seeded["1"].ID, seeded["3"].ID}},
			want:   []string{"4", "2"},
		},
		{
			name:   "title ascending",
			filter: domain.MovieFilter{OrderBy: domain.OrderTitle, Ascending: true},
			want:   []string{"2", "4", "1", "3"},
		},
		{
			name:   "limit and offset",
			filter: domain.MovieFilter{Limit: 2, Offset: 1},
			want:   []string{"3", "4"},
		},
		{
			name:   "min popularity",
			filter: domain.MovieFilter{MinPopularity: floatPtr(60)},
			want:   []string{"1", "3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.QueryMovies(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("QueryMovies() error = %v", err)
			}
			ids := externalIDs(got)
			if len(ids) != len(tt.want) {
				t.Fatalf("QueryMovies() = %v, want %v", ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Fatalf("QueryMovies() = %v, want %v", ids, tt.want)
				}
			}
		})
	}
}

func TestQueryMovies_TieBreakByExternalID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"30", "10", "20"} {
		if _, err := store.UpsertMovie(ctx, testMovie(id, "Same", 50)); err != nil {
			t.Fatalf("UpsertMovie() error = %v", err)
		}
	}

	got, err := store.QueryMovies(ctx, domain.MovieFilter{})
	if err != nil {
		t.Fatalf("QueryMovies() error = %v", err)
	}
	ids := externalIDs(got)
	want := []string{"10", "20", "30"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("QueryMovies() = %v, want %v", ids, want)
		}
	}
}

func TestQueryMovies_InvalidFilter(t *testing.T) {
	store := newTestStore(t)

	_, err := store.QueryMovies(context.Background(), domain.MovieFilter{OrderBy: "budget"})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("QueryMovies() error = %v, want ErrInvalidInput", err)
	}
}

func TestHasGenreAndPopularity(t *testing.T) {
	store := newTestStore(t)
	seeded := seedCatalog(t, store)
	ctx := context.Background()

	ok, err := store.HasGenre(ctx, seeded["4"].ID, "Crime")
	if err != nil || !ok {
		t.Errorf("HasGenre(Crime) = %v, %v; want true", ok, err)
	}
	ok, err = store.HasGenre(ctx, seeded["4"].ID, "Comedy")
	if err != nil || ok {
		t.Errorf("HasGenre(Comedy) = %v, %v; want false", ok, err)
	}

	values, err := store.ListPopularity(ctx)
	if err != nil {
		t.Fatalf("ListPopularity() error = %v", err)
	}
	if len(values) != 4 {
		t.Errorf("ListPopularity() returned %d values, want 4", len(values))
	}

	byIDs, err := store.GetMoviesByIDs(ctx, []int64{seeded["2"].ID, seeded["3"].ID, 999})
	if err != nil {
		t.Fatalf("GetMoviesByIDs() error = %v", err)
	}
	if len(byIDs) != 2 {
		t.Errorf("GetMoviesByIDs() returned %d movies, want 2", len(byIDs))
	}
}

func TestRatings(t *testing.T) {
	store := newTestStore(t)
	seeded := seedCatalog(t, store)
	ctx := context.Background()

	r, err := domain.NewRating(7, seeded["1"].ID, 5, "great")
	if err != nil {
		t.Fatalf("NewRating() error = %v", err)
	}
	if err := store.UpsertRating(ctx, r); err != nil {
		t.Fatalf("UpsertRating() error = %v", err)
	}

	r.Score = 3
	r.UpdatedAt = r.UpdatedAt.Add(time.Second)
	if err := store.UpsertRating(ctx, r); err != nil {
		t.Fatalf("UpsertRating() update error = %v", err)
	}

	got, err := store.GetRating(ctx, 7, seeded["1"].ID)
	if err != nil {
		t.Fatalf("GetRating() error = %v", err)
	}
	if got.Score != 3 {
		t.Errorf("Score = %d, want 3", got.Score)
	}

	r2, _ := domain.NewRating(7, seeded["2"].ID, 4, "")
	r2.UpdatedAt = r.UpdatedAt.Add(time.Minute)
	if err := store.UpsertRating(ctx, r2); err != nil {
		t.Fatalf("UpsertRating() error = %v", err)
	}

	list, err := store.ListRatingsByUser(ctx, 7)
	if err != nil {
		t.Fatalf("ListRatingsByUser() error = %v", err)
	}
	if len(list) != 2 || list[0].MovieID != seeded["2"].ID {
		t.Errorf("ListRatingsByUser() = %+v, want newest first", list)
	}

	deleted, err := store.DeleteRating(ctx, 7, seeded["2"].ID)
	if err != nil || !deleted {
		t.Errorf("DeleteRating() = %v, %v; want true", deleted, err)
	}
	deleted, err = store.DeleteRating(ctx, 7, seeded["2"].ID)
	if err != nil || deleted {
		t.Errorf("second DeleteRating() = %v, %v; want false", deleted, err)
	}
}

func TestUpsertRating_UnknownMovie(t *testing.T) {
	store := newTestStore(t)

	r, _ := domain.NewRating(1, 12345, 4, "")
	err := store.UpsertRating(context.Background(), r)
	if !domain.IsStoreKind(err, domain.StoreConstraintViolation) {
		t.Errorf("UpsertRating() error = %v, want constraint violation", err)
	}
}

func TestProfiles(t *testing.T) {
	store := newTestStore(t)
	seeded := seedCatalog(t, store)
	ctx := context.Background()

	got, err := store.GetProfile(ctx, 5)
	if err != nil || got != nil {
		t.Fatalf("GetProfile() = %v, %v; want nil, nil", got, err)
	}

	profile := domain.NewUserProfile(5)
	profile.SetFavoriteGenres([]string{"Drama", " science  fiction"})
	profile.Bio = "film buff"
	if err := store.SaveProfile(ctx, profile); err != nil {
		t.Fatalf("SaveProfile() error = %v", err)
	}

	got, err = store.GetProfile(ctx, 5)
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if len(got.FavoriteGenres) != 2 || got.FavoriteGenres[1] != "science fiction" {
		t.Errorf("FavoriteGenres = %v", got.FavoriteGenres)
	}
	if got.Bio != "film buff" {
		t.Errorf("Bio = %q", got.Bio)
	}

	r, _ := domain.NewRating(5, seeded["3"].ID, 4, "")
	if err := store.UpsertRating(ctx, r); err != nil {
		t.Fatalf("UpsertRating() error = %v", err)
	}

	if err := store.DeleteUser(ctx, 5); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}
	if got, _ := store.GetProfile(ctx, 5); got != nil {
		t.Error("profile should be deleted")
	}
	if list, _ := store.ListRatingsByUser(ctx, 5); len(list) != 0 {
		t.Errorf("ratings should be deleted, got %d", len(list))
	}
}

func TestDeleteStaleMovies(t *testing.T) {
	store := newTestStore(t)
	seeded := seedCatalog(t, store)
	ctx := context.Background()

	// "2" has popularity 40 and a rating, so it stays
	r, _ := domain.NewRating(1, seeded["2"].ID, 2, "")
	if err := store.UpsertRating(ctx, r); err != nil {
		t.Fatalf("UpsertRating() error = %v", err)
	}

	n, err := store.DeleteStaleMovies(ctx, time.Now().Add(time.Hour), 60)
	if err != nil {
		t.Fatalf("DeleteStaleMovies() error = %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteStaleMovies() = %d, want 1", n)
	}
	if m, _ := store.GetMovieByExternalID(ctx, "4"); m != nil {
		t.Error("movie 4 should be removed")
	}
	if m, _ := store.GetMovieByExternalID(ctx, "2"); m == nil {
		t.Error("rated movie 2 should be kept")
	}

	n, err = store.DeleteStaleMovies(ctx, time.Now().Add(-time.Hour), 1000)
	if err != nil || n != 0 {
		t.Errorf("DeleteStaleMovies() before creation = %d, %v; want 0", n, err)
	}
}

func TestDeleteMovieCascadesRatings(t *testing.T) {
	store := newTestStore(t)
	seeded := seedCatalog(t, store)
	ctx := context.Background()

	r, _ := domain.NewRating(3, seeded["3"].ID, 5, "")
	if err := store.UpsertRating(ctx, r); err != nil {
		t.Fatalf("UpsertRating() error = %v", err)
	}
	if _, err := store.db.ExecContext(ctx, `DELETE FROM movies WHERE id = ?`, seeded["3"].ID); err != nil {
		t.Fatalf("delete movie: %v", err)
	}
	if list, _ := store.ListRatingsByUser(ctx, 3); len(list) != 0 {
		t.Errorf("ratings of deleted movie should cascade, got %d", len(list))
	}
}

func TestPing(t *testing.T) {
	store := newTestStore(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
