package server

import (
	"net/http"

	"go.uber.org/zap"

	domainservice "github.com/vertextoedge/movie-catalog/internal/domain/service"
)

// UserHandler serves profiles, ratings and per-user scores
type UserHandler struct {
	profiles    Profiles
	recommender Recommender
	logger      *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(profiles Profiles, recommender Recommender, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		profiles:    profiles,
		recommender: recommender,
		logger:      logger,
	}
}

type genresRequest struct {
	Genres []string `json:"genres"`
}

type rateRequest struct {
	Score  int    `json:"score"`
	Review string `json:"review"`
}

type matchResponse struct {
	UserID    int64                         `json:"user_id"`
	MovieID   int64                         `json:"movie_id"`
	Score     int                           `json:"score"`
	Breakdown *domainservice.ScoreBreakdown `json:"breakdown"`
}

// HandleGetProfile returns the user's profile
func (h *UserHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	profile, err := h.profiles.GetProfile(r.Context(), userID)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// HandleUpdateGenres replaces the user's favorite genres
func (h *UserHandler) HandleUpdateGenres(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	var req genresRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	profile, err := h.profiles.UpdateFavoriteGenres(r.Context(), userID, req.Genres)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// HandleListRatings returns the user's ratings
func (h *UserHandler) HandleListRatings(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	ratings, err := h.profiles.ListRatings(r.Context(), userID)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(ratings))
}

// HandleRate records or replaces the user's rating of a movie
func (h *UserHandler) HandleRate(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	movieID, err := pathID(r, "movieID")
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	var req rateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	rating, err := h.profiles.RateMovie(r.Context(), userID, movieID, req.Score, req.Review)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rating)
}

// HandleDeleteRating removes the user's rating of a movie
func (h *UserHandler) HandleDeleteRating(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	movieID, err := pathID(r, "movieID")
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	if err := h.profiles.DeleteRating(r.Context(), userID, movieID); err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDeleteUser removes the user's profile and ratings
func (h *UserHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	if err := h.profiles.DeleteUser(r.Context(), userID); err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleStatistics returns the user's rating statistics
func (h *UserHandler) HandleStatistics(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	stats, err := h.profiles.Statistics(r.Context(), userID)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleRecommendations returns the user's ranked recommendations
func (h *UserHandler) HandleRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	recs, err := h.recommender.Recommendations(r.Context(), userID, limit)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(recs))
}

// HandleMatch returns the user's match score for one movie
func (h *UserHandler) HandleMatch(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	movieID, err := pathID(r, "movieID")
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	b, err := h.recommender.Breakdown(r.Context(), userID, movieID)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, matchResponse{
		UserID:    userID,
		MovieID:   movieID,
		Score:     b.Score,
		Breakdown: b,
	})
}
