package cacher

import (
	"net/url"
	"strconv"

	"github.com/vertextoedge/movie-catalog/internal/domain"
)

// Key namespaces. Parameterized keys append a url-encoded, key-sorted
// parameter string so distinct parameter sets never share a key.
const (
	TrendingKey   = "movies:trending"
	TopRatedKey   = "movies:top_rated"
	PopularityKey = "catalog:popularity"
)

const (
	nsMovieDetail   = "movie:detail:"
	nsMovieList     = "movies:list:"
	nsTrendingGenre = "movies:trending_genre:"
	nsSearch        = "search:external:"
	nsRecommendUser = "recommendations:user:"
	nsMatchUser     = "match:user:"
	nsSimilar       = "similar:movie:"
	nsUserStats     = "stats:user:"
)

func itoa64(v int64) string {
	return strconv.FormatInt(v, 10)
}

// MovieDetailKey is the key of a single movie
func MovieDetailKey(movieID int64) string {
	return nsMovieDetail + itoa64(movieID)
}

// MovieDetailPrefix is the prefix shared by every movie detail key
func MovieDetailPrefix() string {
	return nsMovieDetail
}

// MovieListKey is the key of a filtered listing
func MovieListKey(f domain.MovieFilter) string {
	return nsMovieList + encodeFilter(f).Encode()
}

// TrendingGenreKey is the key of a genre's trending listing
func TrendingGenreKey(genre string, limit int) string {
	v := url.Values{}
	v.Set("genre", genre)
	v.Set("limit", strconv.Itoa(limit))
	return nsTrendingGenre + v.Encode()
}

// SearchKey is the key of a provider search page
func SearchKey(query string, page int) string {
	v := url.Values{}
	v.Set("q", query)
	v.Set("page", strconv.Itoa(page))
	return nsSearch + v.Encode()
}

// RecommendationsKey is the key of a user's recommendation list
func RecommendationsKey(userID int64, limit int) string {
	v := url.Values{}
	v.Set("limit", strconv.Itoa(limit))
	return nsRecommendUser + itoa64(userID) + ":" + v.Encode()
}

// MatchKey is the key of one user-movie match score
func MatchKey(userID, movieID int64) string {
	return nsMatchUser + itoa64(userID) + ":movie:" + itoa64(movieID)
}

// SimilarKey is the key of a movie's similar list
func SimilarKey(movieID int64, limit int) string {
	v := url.Values{}
	v.Set("limit", strconv.Itoa(limit))
	return nsSimilar + itoa64(movieID) + ":" + v.Encode()
}

// UserStatsKey is the key of a user's statistics
func UserStatsKey(userID int64) string {
	return nsUserStats + itoa64(userID)
}

// MovieDataPrefixes lists the prefixes of every entry computed from
// catalog content other than single movie details
func MovieDataPrefixes() []string {
	return []string{
		"movies:",
		"recommendations:",
		"match:",
		"similar:",
		"catalog:",
		"stats:",
	}
}

// UserPrefixes lists the prefixes of entries computed from one user's data
func UserPrefixes(userID int64) []string {
	return []string{
		nsRecommendUser + itoa64(userID) + ":",
		nsMatchUser + itoa64(userID) + ":",
	}
}

func encodeFilter(f domain.MovieFilter) url.Values {
	v := url.Values{}
	setStr := func(k, s string) {
		if s != "" {
			v.Set(k, s)
		}
	}
	setInt := func(k string, n int) {
		if n != 0 {
			v.Set(k, strconv.Itoa(n))
		}
	}
	setFloat := func(k string, p *float64) {
		if p != nil {
			v.Set(k, strconv.FormatFloat(*p, 'g', -1, 64))
		}
	}

	setStr("title", f.TitleContains)
	setInt("year", f.Year)
	setInt("year_gte", f.YearFrom)
	setInt("year_lte", f.YearTo)
	setFloat("min_rating", f.MinRating)
	setFloat("max_rating", f.MaxRating)
	setInt("min_rating_count", f.MinRatingCount)
	setFloat("min_popularity", f.MinPopularity)
	setInt("min_runtime", f.MinRuntime)
	setInt("max_runtime", f.MaxRuntime)
	setStr("genre", f.Genre)
	for _, g := range f.AnyGenres {
		v.Add("any_genre", g)
	}
	for _, x := range f.ExcludeIDs {
		v.Add("exclude", itoa64(x))
	}
	setStr("order", string(f.OrderBy))
	if f.Ascending {
		v.Set("asc", "1")
	}
	setInt("limit", f.Limit)
	setInt("offset", f.Offset)
	return v
}
