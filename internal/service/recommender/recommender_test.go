package recommender

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/vertextoedge/movie-catalog/internal/adapter/memcache"
	"github.com/vertextoedge/movie-catalog/internal/adapter/sqlite"
	"github.com/vertextoedge/movie-catalog/internal/domain"
	domainservice "github.com/vertextoedge/movie-catalog/internal/domain/service"
	"github.com/vertextoedge/movie-catalog/internal/service/cacher"
)

type fixture struct {
	svc   *Service
	store *sqlite.Store
	cache *cacher.Cacher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("sqlite.Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cache := cacher.New(nil, memcache.New(), zap.NewNop())
	scorer := domainservice.NewMatchScorer(domainservice.DefaultScoringConfig())
	return &fixture{
		svc:   New(scorer, store, cache, zap.NewNop()),
		store: store,
		cache: cache,
	}
}

func (f *fixture) addMovie(t *testing.T, externalID string, rating float64, count int, popularity float64, genres ...string) *domain.Movie {
	t.Helper()
	m := &domain.Movie{
		ExternalID:    externalID,
		Title:         "Movie " + externalID,
		RatingAverage: rating,
		RatingCount:   count,
		Popularity:    popularity,
		Genres:        genres,
	}
	if _, err := f.store.UpsertMovie(context.Background(), m); err != nil {
		t.Fatalf("UpsertMovie(%s) error = %v", externalID, err)
	}
	return m
}

func (f *fixture) setFavorites(t *testing.T, userID int64, genres ...string) {
	t.Helper()
	p := domain.NewUserProfile(userID)
	p.SetFavoriteGenres(genres)
	if err := f.store.SaveProfile(context.Background(), p); err != nil {
		t.Fatalf("SaveProfile() error = %v", err)
	}
}

func (f *fixture) rate(t *testing.T, userID, movieID int64, score int) {
	t.Helper()
	r, err := domain.NewRating(userID, movieID, score, "")
	if err != nil {
		t.Fatalf("NewRating() error = %v", err)
	}
	if err := f.store.UpsertRating(context.Background(), r); err != nil {
		t.Fatalf("UpsertRating() error = %v", err)
	}
}

func recIDs(recs []domain.Recommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Movie.ExternalID
	}
	return out
}

func movieIDs(movies []*domain.Movie) []string {
	out := make([]string, len(movies))
	for i, m := range movies {
		out[i] = m.ExternalID
	}
	return out
}

func assertOrder(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestMatchScore_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.addMovie(t, "A", 8.0, 500, 50, "Action", "Drama")
	b := f.addMovie(t, "B", 6.0, 10, 90, "Action")
	f.setFavorites(t, 1, "Action")

	// A: 0.4*50 + 0.2*80 + 0.1*0 = 36
	scoreA, err := f.svc.MatchScore(ctx, 1, a.ID)
	if err != nil {
		t.Fatalf("MatchScore(A) error = %v", err)
	}
	if scoreA != 36 {
		t.Errorf("MatchScore(A) = %d, want 36", scoreA)
	}

	// B: 0.4*100 + 0.2*50 (below vote threshold) + 0.1*100 = 60
	scoreB, err := f.svc.MatchScore(ctx, 1, b.ID)
	if err != nil {
		t.Fatalf("MatchScore(B) error = %v", err)
	}
	if scoreB != 60 {
		t.Errorf("MatchScore(B) = %d, want 60", scoreB)
	}

	again, _ := f.svc.MatchScore(ctx, 1, a.ID)
	if again != scoreA {
		t.Errorf("MatchScore(A) not deterministic: %d then %d", scoreA, again)
	}
}

func TestMatchScore_UnknownMovie(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.MatchScore(context.Background(), 1, 404)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("MatchScore() error = %v, want ErrNotFound", err)
	}
}

func TestMatchScore_UserWithoutProfile(t *testing.T) {
	f := newFixture(t)
	m := f.addMovie(t, "1", 7.0, 200, 10, "Drama")

	b, err := f.svc.Breakdown(context.Background(), 99, m.ID)
	if err != nil {
		t.Fatalf("Breakdown() error = %v", err)
	}
	if b.Genre != 0 || b.History != 0 {
		t.Errorf("personal sub-scores = (%v, %v), want zeros", b.Genre, b.History)
	}
	if b.Score != 24 {
		t.Errorf("Score = %d, want 24", b.Score)
	}
}

func TestRecommendations_ColdStart(t *testing.T) {
	f := newFixture(t)

	// Cold start scores are 0.2*quality + 0.1*popularity percentile
	f.addMovie(t, "m1", 9.0, 1000, 10) // 18 + 0
	f.addMovie(t, "m2", 8.0, 1000, 50) // 16 + 10
	f.addMovie(t, "m3", 7.0, 1000, 40) // 14 + 7.5
	f.addMovie(t, "m4", 6.0, 1000, 30) // 12 + 5
	f.addMovie(t, "m5", 5.0, 1000, 20) // 10 + 2.5

	recs, err := f.svc.Recommendations(context.Background(), 42, 10)
	if err != nil {
		t.Fatalf("Recommendations() error = %v", err)
	}
	assertOrder(t, recIDs(recs), []string{"m2", "m3", "m1", "m4", "m5"})

	wantScores := []int{26, 22, 18, 17, 13}
	for i, r := range recs {
		if r.Score != wantScores[i] {
			t.Errorf("%s score = %d, want %d", r.Movie.ExternalID, r.Score, wantScores[i])
		}
	}
}

func TestRecommendations_TieBreak(t *testing.T) {
	f := newFixture(t)

	f.addMovie(t, "200", 7.0, 500, 50)
	f.addMovie(t, "100", 7.0, 500, 50)
	f.addMovie(t, "300", 7.0, 2000, 50)

	recs, err := f.svc.Recommendations(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("Recommendations() error = %v", err)
	}
	if recs[0].Score != recs[1].Score || recs[1].Score != recs[2].Score {
		t.Fatalf("fixture scores differ: %v", recs)
	}
	assertOrder(t, recIDs(recs), []string{"300", "100", "200"})
}

func TestRecommendations_ExcludesRatedAndLimits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m1 := f.addMovie(t, "1", 8.0, 1000, 10, "Action")
	f.addMovie(t, "2", 8.0, 1000, 20, "Action")
	f.addMovie(t, "3", 8.0, 1000, 30, "Comedy")
	f.rate(t, 5, m1.ID, 5)

	recs, err := f.svc.Recommendations(ctx, 5, 10)
	if err != nil {
		t.Fatalf("Recommendations() error = %v", err)
	}
	for _, r := range recs {
		if r.Movie.ID == m1.ID {
			t.Error("rated movie must not be recommended")
		}
	}
	// The liked Action movie pulls Action ahead of more popular Comedy
	assertOrder(t, recIDs(recs), []string{"2", "3"})

	top, err := f.svc.Recommendations(ctx, 5, 1)
	if err != nil {
		t.Fatalf("Recommendations(limit=1) error = %v", err)
	}
	assertOrder(t, recIDs(top), []string{"2"})
}

func TestRecommendations_EmptyCatalog(t *testing.T) {
	f := newFixture(t)

	recs, err := f.svc.Recommendations(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("Recommendations() error = %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("got %d recommendations, want 0", len(recs))
	}
}

func TestRecommendations_RecomputedAfterInvalidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m1 := f.addMovie(t, "1", 8.0, 1000, 10)
	f.addMovie(t, "2", 7.0, 1000, 20)

	before, _ := f.svc.Recommendations(ctx, 3, 10)
	if len(before) != 2 {
		t.Fatalf("got %d recommendations, want 2", len(before))
	}

	f.rate(t, 3, m1.ID, 2)

	cached, _ := f.svc.Recommendations(ctx, 3, 10)
	if len(cached) != 2 {
		t.Errorf("without invalidation the cached list should be served, got %d", len(cached))
	}

	f.cache.InvalidateUser(ctx, 3)

	after, err := f.svc.Recommendations(ctx, 3, 10)
	if err != nil {
		t.Fatalf("Recommendations() error = %v", err)
	}
	assertOrder(t, recIDs(after), []string{"2"})
}

func TestSimilar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.addMovie(t, "A", 8.0, 500, 50, "Action", "Drama")
	f.addMovie(t, "B", 6.0, 10, 90, "Action")
	f.addMovie(t, "C", 7.0, 300, 40, "Drama", "Science Fiction")
	f.addMovie(t, "D", 5.0, 100, 10, "action", "Drama", "Thriller")
	f.addMovie(t, "E", 9.0, 900, 99, "Comedy")

	got, err := f.svc.Similar(ctx, a.ID, 10)
	if err != nil {
		t.Fatalf("Similar() error = %v", err)
	}
	// D shares two genres; C and B share one and are ordered by rating
	assertOrder(t, movieIDs(got), []string{"D", "C", "B"})

	limited, _ := f.svc.Similar(ctx, a.ID, 2)
	assertOrder(t, movieIDs(limited), []string{"D", "C"})
}

func TestSimilar_EdgeCases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bare := f.addMovie(t, "bare", 8.0, 500, 50)
	f.addMovie(t, "other", 8.0, 500, 50, "Drama")

	got, err := f.svc.Similar(ctx, bare.ID, 10)
	if err != nil {
		t.Fatalf("Similar() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Similar() for a seed without genres = %v, want empty", movieIDs(got))
	}

	if _, err := f.svc.Similar(ctx, 404, 10); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Similar(unknown) error = %v, want ErrNotFound", err)
	}
}
