package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/vertextoedge/movie-catalog/internal/domain"
	domainservice "github.com/vertextoedge/movie-catalog/internal/domain/service"
	"github.com/vertextoedge/movie-catalog/internal/service/syncer"
)

// mockCatalog implements Catalog for testing
type mockCatalog struct {
	movies     []*domain.Movie
	err        error
	lastFilter domain.MovieFilter
	lastGenre  string
	lastLimit  int
	lastQuery  string
	lastPage   int
	lastSync   struct {
		category string
		pages    domain.PageRange
	}
	runs    map[string]*domain.SyncRun
	created bool
}

func (m *mockCatalog) ListMovies(ctx context.Context, filter domain.MovieFilter) ([]*domain.Movie, error) {
	m.lastFilter = filter
	return m.movies, m.err
}

func (m *mockCatalog) GetMovie(ctx context.Context, id int64) (*domain.Movie, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, mv := range m.movies {
		if mv.ID == id {
			return mv, nil
		}
	}
	return nil, fmt.Errorf("%w: movie %d", domain.ErrNotFound, id)
}

func (m *mockCatalog) Trending(ctx context.Context) ([]*domain.Movie, error) {
	return m.movies, m.err
}

func (m *mockCatalog) TopRated(ctx context.Context) ([]*domain.Movie, error) {
	return m.movies, m.err
}

func (m *mockCatalog) TrendingByGenre(ctx context.Context, genre string, limit int) ([]*domain.Movie, error) {
	m.lastGenre, m.lastLimit = genre, limit
	return m.movies, m.err
}

func (m *mockCatalog) ImportMovie(ctx context.Context, externalID string) (*domain.Movie, bool, error) {
	if m.err != nil {
		return nil, false, m.err
	}
	return &domain.Movie{ID: 1, ExternalID: externalID}, m.created, nil
}

func (m *mockCatalog) SearchExternal(ctx context.Context, query string, page int) ([]*domain.Movie, error) {
	m.lastQuery, m.lastPage = query, page
	return m.movies, m.err
}

func (m *mockCatalog) TriggerSync(ctx context.Context, category string, pages domain.PageRange) (*domain.SyncRun, error) {
	m.lastSync.category, m.lastSync.pages = category, pages
	if m.err != nil {
		return nil, m.err
	}
	return domain.NewSyncRun(domain.Category(category), pages.Pages()), nil
}

func (m *mockCatalog) SyncRun(id string) (*domain.SyncRun, error) {
	if run, ok := m.runs[id]; ok {
		return run, nil
	}
	return nil, fmt.Errorf("%w: sync run %s", domain.ErrNotFound, id)
}

func (m *mockCatalog) SyncRuns() []*domain.SyncRun {
	return nil
}

func (m *mockCatalog) Stats(ctx context.Context) (*domain.CatalogStats, error) {
	return &domain.CatalogStats{TotalMovies: int64(len(m.movies))}, m.err
}

// mockRecommender implements Recommender for testing
type mockRecommender struct {
	breakdown *domainservice.ScoreBreakdown
	recs      []domain.Recommendation
	err       error
	lastLimit int
}

func (m *mockRecommender) Breakdown(ctx context.Context, userID, movieID int64) (*domainservice.ScoreBreakdown, error) {
	return m.breakdown, m.err
}

func (m *mockRecommender) Recommendations(ctx context.Context, userID int64, limit int) ([]domain.Recommendation, error) {
	m.lastLimit = limit
	return m.recs, m.err
}

func (m *mockRecommender) Similar(ctx context.Context, movieID int64, limit int) ([]*domain.Movie, error) {
	m.lastLimit = limit
	return nil, m.err
}

// mockProfiles implements Profiles for testing
type mockProfiles struct {
	err         error
	lastGenres  []string
	lastScore   int
	deletedUser int64
}

func (m *mockProfiles) GetProfile(ctx context.Context, userID int64) (*domain.UserProfile, error) {
	if m.err != nil {
		return nil, m.err
	}
	return domain.NewUserProfile(userID), nil
}

func (m *mockProfiles) UpdateFavoriteGenres(ctx context.Context, userID int64, genres []string) (*domain.UserProfile, error) {
	m.lastGenres = genres
	p := domain.NewUserProfile(userID)
	p.SetFavoriteGenres(genres)
	return p, m.err
}

func (m *mockProfiles) RateMovie(ctx context.Context, userID, movieID int64, score int, review string) (*domain.Rating, error) {
	m.lastScore = score
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Rating{UserID: userID, MovieID: movieID, Score: score, Review: review}, nil
}

func (m *mockProfiles) DeleteRating(ctx context.Context, userID, movieID int64) error {
	return m.err
}

func (m *mockProfiles) ListRatings(ctx context.Context, userID int64) ([]*domain.Rating, error) {
	return nil, m.err
}

func (m *mockProfiles) DeleteUser(ctx context.Context, userID int64) error {
	m.deletedUser = userID
	return m.err
}

func (m *mockProfiles) Statistics(ctx context.Context, userID int64) (*domain.UserStatistics, error) {
	return &domain.UserStatistics{UserID: userID}, m.err
}

// mockPinger implements Pinger for testing
type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(ctx context.Context) error {
	return m.err
}

type testServer struct {
	srv         *Server
	catalog     *mockCatalog
	recommender *mockRecommender
	profiles    *mockProfiles
	store       *mockPinger
}

func newTestServer(cfg *Config) *testServer {
	ts := &testServer{
		catalog:     &mockCatalog{runs: map[string]*domain.SyncRun{}},
		recommender: &mockRecommender{},
		profiles:    &mockProfiles{},
		store:       &mockPinger{},
	}
	ts.srv = New(cfg, Services{
		Catalog:     ts.catalog,
		Recommender: ts.recommender,
		Profiles:    ts.profiles,
		Store:       ts.store,
	}, zap.NewNop())
	return ts
}

func (ts *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	ts := newTestServer(nil)

	rec := ts.do(http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	ts.store.err = errors.New("database is closed")
	rec = ts.do(http.MethodGet, "/health", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(nil)
	ts.do(http.MethodGet, "/api/movies/trending", nil)

	rec := ts.do(http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("moviecatalog_http_requests_total")) {
		t.Error("metrics output missing http request counter")
	}
}

func TestEmptyListsEncodeAsArrays(t *testing.T) {
	ts := newTestServer(nil)

	for _, path := range []string{
		"/api/movies",
		"/api/movies/trending",
		"/api/movies/top-rated",
		"/api/users/1/recommendations",
		"/api/users/1/ratings",
		"/api/admin/sync/runs",
	} {
		t.Run(path, func(t *testing.T) {
			rec := ts.do(http.MethodGet, path, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
			}
			if got := bytes.TrimSpace(rec.Body.Bytes()); string(got) != "[]" {
				t.Errorf("body = %s, want []", got)
			}
		})
	}
}

func TestListMovies_ParsesFilter(t *testing.T) {
	ts := newTestServer(nil)

	rec := ts.do(http.MethodGet, "/api/movies?title=matrix&year_gte=1990&min_rating=7.5&genres=Action,%20Sci-Fi&order_by=rating&asc=true&limit=5&offset=10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	f := ts.catalog.lastFilter
	if f.TitleContains != "matrix" || f.YearFrom != 1990 || f.Limit != 5 || f.Offset != 10 {
		t.Errorf("filter = %+v", f)
	}
	if f.MinRating == nil || *f.MinRating != 7.5 {
		t.Errorf("MinRating = %v, want 7.5", f.MinRating)
	}
	if len(f.AnyGenres) != 2 || f.AnyGenres[1] != "Sci-Fi" {
		t.Errorf("AnyGenres = %v", f.AnyGenres)
	}
	if f.OrderBy != domain.OrderRating || !f.Ascending {
		t.Errorf("order = %q asc=%v", f.OrderBy, f.Ascending)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("%w: movie 9", domain.ErrNotFound), http.StatusNotFound},
		{"invalid input", domain.ErrInvalidInput, http.StatusBadRequest},
		{"invalid category", domain.ErrInvalidCategory, http.StatusBadRequest},
		{"invalid page range", domain.ErrInvalidPageRange, http.StatusBadRequest},
		{"invalid rating", domain.ErrInvalidRatingScore, http.StatusBadRequest},
		{"run in progress", fmt.Errorf("%w: popular", syncer.ErrRunInProgress), http.StatusConflict},
		{"provider auth", domain.NewFetchError(domain.FetchAuthError, errors.New("401")), http.StatusBadGateway},
		{"provider rate limited", domain.NewFetchError(domain.FetchRateLimited, errors.New("429")), http.StatusServiceUnavailable},
		{"store failure", &domain.StoreError{Kind: domain.StoreUnavailable, Op: "query", Err: errors.New("locked")}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetMovie(t *testing.T) {
	ts := newTestServer(nil)
	ts.catalog.movies = []*domain.Movie{{ID: 42, ExternalID: "603", Title: "The Matrix"}}

	rec := ts.do(http.MethodGet, "/api/movies/42", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var got domain.Movie
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Title != "The Matrix" {
		t.Errorf("Title = %q", got.Title)
	}

	tests := []struct {
		path string
		want int
	}{
		{"/api/movies/7", http.StatusNotFound},
		{"/api/movies/abc", http.StatusBadRequest},
		{"/api/movies/-1", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := ts.do(http.MethodGet, tt.path, nil); rec.Code != tt.want {
			t.Errorf("GET %s status = %d, want %d", tt.path, rec.Code, tt.want)
		}
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	ts := newTestServer(nil)
	ts.catalog.err = errors.New("sql: connection refused at 10.0.0.3")

	rec := ts.do(http.MethodGet, "/api/movies/trending", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("10.0.0.3")) {
		t.Errorf("body leaks internal error: %s", rec.Body.String())
	}
}

func TestTrendingByGenreAndSearch(t *testing.T) {
	ts := newTestServer(nil)

	if rec := ts.do(http.MethodGet, "/api/movies/trending/Science%20Fiction?limit=5", nil); rec.Code != http.StatusOK {
		t.Fatalf("trending by genre status = %d", rec.Code)
	}
	if ts.catalog.lastGenre != "Science Fiction" || ts.catalog.lastLimit != 5 {
		t.Errorf("genre=%q limit=%d", ts.catalog.lastGenre, ts.catalog.lastLimit)
	}

	if rec := ts.do(http.MethodGet, "/api/movies/search?q=alien&page=2", nil); rec.Code != http.StatusOK {
		t.Fatalf("search status = %d", rec.Code)
	}
	if ts.catalog.lastQuery != "alien" || ts.catalog.lastPage != 2 {
		t.Errorf("query=%q page=%d", ts.catalog.lastQuery, ts.catalog.lastPage)
	}

	if rec := ts.do(http.MethodGet, "/api/movies/search?q=alien&page=two", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad page status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestRateMovie(t *testing.T) {
	ts := newTestServer(nil)

	rec := ts.do(http.MethodPut, "/api/users/3/ratings/42", map[string]any{"score": 4, "review": "solid"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ts.profiles.lastScore != 4 {
		t.Errorf("score = %d, want 4", ts.profiles.lastScore)
	}

	ts.profiles.err = domain.ErrInvalidRatingScore
	if rec := ts.do(http.MethodPut, "/api/users/3/ratings/42", map[string]any{"score": 9}); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid score status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	req := httptest.NewRequest(http.MethodPut, "/api/users/3/ratings/42", bytes.NewBufferString("{not json"))
	rec = httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestUserEndpoints(t *testing.T) {
	ts := newTestServer(nil)

	rec := ts.do(http.MethodPut, "/api/users/3/profile/genres", map[string]any{"genres": []string{"Drama", "drama"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("update genres status = %d", rec.Code)
	}
	var p domain.UserProfile
	json.Unmarshal(rec.Body.Bytes(), &p)
	if len(p.FavoriteGenres) != 1 {
		t.Errorf("FavoriteGenres = %v", p.FavoriteGenres)
	}

	if rec := ts.do(http.MethodDelete, "/api/users/3/ratings/42", nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete rating status = %d", rec.Code)
	}
	if rec := ts.do(http.MethodDelete, "/api/users/3", nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete user status = %d", rec.Code)
	}
	if ts.profiles.deletedUser != 3 {
		t.Errorf("deleted user = %d, want 3", ts.profiles.deletedUser)
	}
	if rec := ts.do(http.MethodGet, "/api/users/3/stats", nil); rec.Code != http.StatusOK {
		t.Errorf("stats status = %d", rec.Code)
	}
	if rec := ts.do(http.MethodGet, "/api/users/0/profile", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("user 0 status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestMatch(t *testing.T) {
	ts := newTestServer(nil)
	ts.recommender.breakdown = &domainservice.ScoreBreakdown{Genre: 20, History: 0, Quality: 14, Popularity: 2, Score: 36}

	rec := ts.do(http.MethodGet, "/api/users/3/movies/42/match", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got matchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Score != 36 || got.MovieID != 42 || got.UserID != 3 {
		t.Errorf("match = %+v", got)
	}

	ts.recommender.err = fmt.Errorf("%w: movie 42", domain.ErrNotFound)
	if rec := ts.do(http.MethodGet, "/api/users/3/movies/42/match", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown movie status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestRecommendationsLimit(t *testing.T) {
	ts := newTestServer(nil)
	ts.recommender.recs = []domain.Recommendation{{Movie: &domain.Movie{ID: 1}, Score: 80}}

	rec := ts.do(http.MethodGet, "/api/users/3/recommendations?limit=7", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ts.recommender.lastLimit != 7 {
		t.Errorf("limit = %d, want 7", ts.recommender.lastLimit)
	}
}

func TestTriggerSync(t *testing.T) {
	ts := newTestServer(nil)

	rec := ts.do(http.MethodPost, "/api/admin/sync", map[string]any{"category": "popular", "from": 1, "to": 3})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var run domain.SyncRun
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if run.ID == "" || len(run.PagesRequested) != 3 {
		t.Errorf("run = %+v", run)
	}

	// Category alone defaults to the first page
	ts.do(http.MethodPost, "/api/admin/sync", map[string]any{"category": "trending"})
	if ts.catalog.lastSync.pages != (domain.PageRange{From: 1, To: 1}) {
		t.Errorf("pages = %+v, want 1-1", ts.catalog.lastSync.pages)
	}

	ts.catalog.err = fmt.Errorf("%w: popular", syncer.ErrRunInProgress)
	if rec := ts.do(http.MethodPost, "/api/admin/sync", map[string]any{"category": "popular"}); rec.Code != http.StatusConflict {
		t.Errorf("concurrent trigger status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestSyncRunLookup(t *testing.T) {
	ts := newTestServer(nil)
	run := domain.NewSyncRun(domain.CategoryPopular, []int{1})
	ts.catalog.runs[run.ID] = run

	if rec := ts.do(http.MethodGet, "/api/admin/sync/runs/"+run.ID, nil); rec.Code != http.StatusOK {
		t.Errorf("known run status = %d", rec.Code)
	}
	if rec := ts.do(http.MethodGet, "/api/admin/sync/runs/nope", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown run status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestImport(t *testing.T) {
	ts := newTestServer(nil)

	ts.catalog.created = true
	if rec := ts.do(http.MethodPost, "/api/admin/movies/import", map[string]any{"external_id": "603"}); rec.Code != http.StatusCreated {
		t.Errorf("new import status = %d, want %d", rec.Code, http.StatusCreated)
	}

	ts.catalog.created = false
	if rec := ts.do(http.MethodPost, "/api/admin/movies/import", map[string]any{"external_id": "603"}); rec.Code != http.StatusOK {
		t.Errorf("refresh import status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestAdminAuth(t *testing.T) {
	ts := newTestServer(&Config{AdminUsername: "admin", AdminPassword: "secret"})

	tests := []struct {
		name       string
		user, pass string
		setAuth    bool
		want       int
	}{
		{name: "no credentials", want: http.StatusUnauthorized},
		{name: "wrong password", user: "admin", pass: "nope", setAuth: true, want: http.StatusUnauthorized},
		{name: "valid", user: "admin", pass: "secret", setAuth: true, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/sync/runs", nil)
			if tt.setAuth {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			rec := httptest.NewRecorder()
			ts.srv.Handler().ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	// Public routes stay open
	if rec := ts.do(http.MethodGet, "/api/movies/trending", nil); rec.Code != http.StatusOK {
		t.Errorf("public route status = %d", rec.Code)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.BindAddr != "0.0.0.0:8080" {
		t.Errorf("BindAddr = %q", cfg.BindAddr)
	}
	if cfg.ReadTimeout == 0 || cfg.WriteTimeout == 0 || cfg.IdleTimeout == 0 {
		t.Errorf("timeouts must default to non-zero: %+v", cfg)
	}
}
