package service

import (
	"math"
	"sort"

	"github.com/vertextoedge/movie-catalog/internal/domain"
	"github.com/vertextoedge/movie-catalog/internal/domain/vo"
)

// Sub-score weights. They sum to 1.
const (
	GenreWeight      = 0.40
	HistoryWeight    = 0.30
	QualityWeight    = 0.20
	PopularityWeight = 0.10
)

// Score bounds
const (
	MinScore = 0
	MaxScore = 100
)

// ScoringConfig holds the tunable parts of the match score
type ScoringConfig struct {
	// MinRatingCount is the vote count below which quality is not trusted
	MinRatingCount int

	// NeutralQuality is the quality sub-score used below MinRatingCount
	NeutralQuality float64

	// PopularityCap limits raw popularity before ranking
	PopularityCap float64
}

// DefaultScoringConfig returns the default scoring configuration
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		MinRatingCount: 50,
		NeutralQuality: 50,
		PopularityCap:  1000,
	}
}

// ScoreBreakdown holds the four sub-scores (each 0-100) and the final score
type ScoreBreakdown struct {
	Genre      float64 `json:"genre"`
	History    float64 `json:"history"`
	Quality    float64 `json:"quality"`
	Popularity float64 `json:"popularity"`
	Score      int     `json:"score"`
}

// UserSignal is everything the scorer knows about one user's taste.
// A user with no profile and no ratings has an empty signal.
type UserSignal struct {
	favorites  vo.GenreSet
	liked      map[string]float64
	likedCount int
	rated      map[int64]struct{}
}

// NewUserSignal builds a signal from a profile (may be nil), the user's
// ratings and the rated movies keyed by ID.
func NewUserSignal(profile *domain.UserProfile, ratings []*domain.Rating, movies map[int64]*domain.Movie) *UserSignal {
	sig := &UserSignal{
		favorites: profile.FavoriteGenreSet(),
		liked:     make(map[string]float64),
		rated:     make(map[int64]struct{}, len(ratings)),
	}

	counts := make(map[string]int)
	for _, r := range ratings {
		sig.rated[r.MovieID] = struct{}{}
		if !r.IsLiked() {
			continue
		}
		movie, ok := movies[r.MovieID]
		if !ok {
			continue
		}
		sig.likedCount++
		for _, g := range movie.GenreSet().Keys() {
			counts[g]++
		}
	}
	for g, n := range counts {
		sig.liked[g] = float64(n) / float64(sig.likedCount)
	}
	return sig
}

// HasRated reports whether the user already rated the movie
func (s *UserSignal) HasRated(movieID int64) bool {
	_, ok := s.rated[movieID]
	return ok
}

// IsColdStart reports whether the user has no preference signal at all
func (s *UserSignal) IsColdStart() bool {
	return s.favorites.IsEmpty() && len(s.rated) == 0
}

// PopularityIndex ranks a popularity value against the catalog
type PopularityIndex struct {
	sorted  []float64
	ceiling float64
}

// NewPopularityIndex builds an index from the catalog's popularity values
func NewPopularityIndex(values []float64, ceiling float64) *PopularityIndex {
	sorted := make([]float64, len(values))
	for i, v := range values {
		sorted[i] = capValue(v, ceiling)
	}
	sort.Float64s(sorted)
	return &PopularityIndex{sorted: sorted, ceiling: ceiling}
}

// Percentile returns the mid-rank percentile (0-100) of a popularity among
// the catalog. A value present in the index is not compared to itself.
func (p *PopularityIndex) Percentile(popularity float64) float64 {
	c := capValue(popularity, p.ceiling)
	n := len(p.sorted)
	below := sort.SearchFloat64s(p.sorted, c)
	upTo := sort.Search(n, func(i int) bool { return p.sorted[i] > c })
	ties := upTo - below

	others := n
	if ties > 0 {
		others--
		ties--
	}
	if others == 0 {
		return MaxScore
	}
	return (float64(below) + 0.5*float64(ties)) / float64(others) * MaxScore
}

func capValue(v, ceiling float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if ceiling > 0 && v > ceiling {
		return ceiling
	}
	return v
}

// MatchScorer is a domain service computing user/movie compatibility
type MatchScorer struct {
	config ScoringConfig
}

// NewMatchScorer creates a new MatchScorer
func NewMatchScorer(cfg ScoringConfig) *MatchScorer {
	def := DefaultScoringConfig()
	if cfg.MinRatingCount < 0 {
		cfg.MinRatingCount = def.MinRatingCount
	}
	if cfg.NeutralQuality <= 0 || cfg.NeutralQuality > MaxScore {
		cfg.NeutralQuality = def.NeutralQuality
	}
	if cfg.PopularityCap <= 0 {
		cfg.PopularityCap = def.PopularityCap
	}
	return &MatchScorer{config: cfg}
}

// Config returns the scorer configuration
func (ms *MatchScorer) Config() ScoringConfig {
	return ms.config
}

// Score computes the match score of movie for the user
func (ms *MatchScorer) Score(sig *UserSignal, movie *domain.Movie, pop *PopularityIndex) ScoreBreakdown {
	genres := movie.GenreSet()

	b := ScoreBreakdown{
		Genre:      genreAffinity(sig.favorites, genres),
		History:    historySimilarity(sig, genres),
		Quality:    ms.quality(movie),
		Popularity: pop.Percentile(movie.Popularity),
	}

	total := GenreWeight*b.Genre +
		HistoryWeight*b.History +
		QualityWeight*b.Quality +
		PopularityWeight*b.Popularity

	b.Score = int(clamp(math.Round(total), MinScore, MaxScore))
	return b
}

// genreAffinity is the share of the movie's genres the user marked favorite
func genreAffinity(favorites, genres vo.GenreSet) float64 {
	if favorites.IsEmpty() || genres.IsEmpty() {
		return 0
	}
	return float64(favorites.Overlap(genres)) / float64(genres.Len()) * MaxScore
}

// historySimilarity averages, over the movie's genres, how often each genre
// appears among the movies the user liked
func historySimilarity(sig *UserSignal, genres vo.GenreSet) float64 {
	if sig.likedCount == 0 || genres.IsEmpty() {
		return 0
	}
	var sum float64
	for _, g := range genres.Keys() {
		sum += sig.liked[g]
	}
	return sum / float64(genres.Len()) * MaxScore
}

func (ms *MatchScorer) quality(movie *domain.Movie) float64 {
	if movie.RatingCount < ms.config.MinRatingCount {
		return ms.config.NeutralQuality
	}
	return clamp(movie.RatingAverage*10, MinScore, MaxScore)
}
