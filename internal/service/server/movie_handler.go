package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/vertextoedge/movie-catalog/internal/domain"
)

// MovieHandler serves catalog reads
type MovieHandler struct {
	catalog     Catalog
	recommender Recommender
	logger      *zap.Logger
}

// NewMovieHandler creates a new MovieHandler
func NewMovieHandler(catalog Catalog, recommender Recommender, logger *zap.Logger) *MovieHandler {
	return &MovieHandler{
		catalog:     catalog,
		recommender: recommender,
		logger:      logger,
	}
}

// HandleList handles filtered movie listing
func (h *MovieHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseMovieFilter(r)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	movies, err := h.catalog.ListMovies(r.Context(), filter)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(movies))
}

// HandleGet handles single movie lookups
func (h *MovieHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "movieID")
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	movie, err := h.catalog.GetMovie(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, movie)
}

// HandleTrending handles the trending list
func (h *MovieHandler) HandleTrending(w http.ResponseWriter, r *http.Request) {
	movies, err := h.catalog.Trending(r.Context())
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(movies))
}

// HandleTopRated handles the top rated list
func (h *MovieHandler) HandleTopRated(w http.ResponseWriter, r *http.Request) {
	movies, err := h.catalog.TopRated(r.Context())
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(movies))
}

// HandleTrendingByGenre handles the per-genre trending list
func (h *MovieHandler) HandleTrendingByGenre(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	movies, err := h.catalog.TrendingByGenre(r.Context(), chi.URLParam(r, "genre"), limit)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(movies))
}

// HandleSearch handles provider search
func (h *MovieHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page")
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	movies, err := h.catalog.SearchExternal(r.Context(), r.URL.Query().Get("q"), page)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(movies))
}

// HandleSimilar handles similar movie lookups
func (h *MovieHandler) HandleSimilar(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "movieID")
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	movies, err := h.recommender.Similar(r.Context(), id, limit)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(movies))
}

// HandleStats handles catalog statistics
func (h *MovieHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.catalog.Stats(r.Context())
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// parseMovieFilter builds a filter from query parameters
func parseMovieFilter(r *http.Request) (domain.MovieFilter, error) {
	q := r.URL.Query()
	f := domain.MovieFilter{
		TitleContains: strings.TrimSpace(q.Get("title")),
		Genre:         strings.TrimSpace(q.Get("genre")),
		OrderBy:       domain.MovieOrder(q.Get("order_by")),
	}
	if genres := q.Get("genres"); genres != "" {
		for _, g := range strings.Split(genres, ",") {
			if g = strings.TrimSpace(g); g != "" {
				f.AnyGenres = append(f.AnyGenres, g)
			}
		}
	}

	var err error
	ints := []struct {
		name string
		dst  *int
	}{
		{"year", &f.Year},
		{"year_gte", &f.YearFrom},
		{"year_lte", &f.YearTo},
		{"min_rating_count", &f.MinRatingCount},
		{"min_runtime", &f.MinRuntime},
		{"max_runtime", &f.MaxRuntime},
		{"limit", &f.Limit},
		{"offset", &f.Offset},
	}
	for _, p := range ints {
		if *p.dst, err = queryInt(r, p.name); err != nil {
			return f, err
		}
	}

	floats := []struct {
		name string
		dst  **float64
	}{
		{"min_rating", &f.MinRating},
		{"max_rating", &f.MaxRating},
		{"min_popularity", &f.MinPopularity},
	}
	for _, p := range floats {
		if *p.dst, err = queryFloat(r, p.name); err != nil {
			return f, err
		}
	}

	if f.Ascending, err = queryBool(r, "asc"); err != nil {
		return f, err
	}
	return f, nil
}
