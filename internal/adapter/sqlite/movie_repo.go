package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/vertextoedge/movie-catalog/internal/domain"
	"github.com/vertextoedge/movie-catalog/internal/domain/vo"
)

const movieColumns = `id, external_id, title, overview, release_date, rating_average,
	rating_count, popularity, genres, runtime_minutes, poster_path, backdrop_path,
	created_at, last_synced_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMovie(row rowScanner) (*domain.Movie, error) {
	movie := &domain.Movie{}
	var (
		releaseDate sql.NullString
		runtime     sql.NullInt64
		genres      string
		createdAt   string
		lastSynced  string
	)

	err := row.Scan(
		&movie.ID, &movie.ExternalID, &movie.Title, &movie.Overview, &releaseDate, &movie.RatingAverage,
		&movie.RatingCount, &movie.Popularity, &genres, &runtime, &movie.PosterPath, &movie.BackdropPath,
		&createdAt, &lastSynced,
	)
	if err != nil {
		return nil, err
	}

	if releaseDate.Valid {
		if t, err := time.Parse(dateLayout, releaseDate.String); err == nil {
			movie.ReleaseDate = &t
		}
	}
	if runtime.Valid {
		v := int(runtime.Int64)
		movie.RuntimeMinutes = &v
	}
	movie.Genres = []string{}
	if genres != "" {
		if err := json.Unmarshal([]byte(genres), &movie.Genres); err != nil {
			return nil, fmt.Errorf("decode genres of movie %d: %w", movie.ID, err)
		}
	}
	movie.CreatedAt = parseTime(createdAt)
	movie.LastSyncedAt = parseTime(lastSynced)

	return movie, nil
}

func movieArgs(movie *domain.Movie) ([]any, error) {
	genres := movie.Genres
	if genres == nil {
		genres = []string{}
	}
	genresJSON, err := json.Marshal(genres)
	if err != nil {
		return nil, fmt.Errorf("encode genres: %w", err)
	}

	var releaseDate sql.NullString
	if movie.ReleaseDate != nil {
		releaseDate = sql.NullString{String: movie.ReleaseDate.UTC().Format(dateLayout), Valid: true}
	}
	var runtime sql.NullInt64
	if movie.RuntimeMinutes != nil {
		runtime = sql.NullInt64{Int64: int64(*movie.RuntimeMinutes), Valid: true}
	}

	return []any{
		movie.Title, movie.Overview, releaseDate, movie.RatingAverage,
		movie.RatingCount, movie.Popularity, string(genresJSON), runtime,
		movie.PosterPath, movie.BackdropPath,
	}, nil
}

// UpsertMovie inserts the movie or updates the record with the same
// external ID inside a single transaction
func (s *Store) UpsertMovie(ctx context.Context, movie *domain.Movie) (bool, error) {
	if movie.ExternalID == "" {
		return false, fmt.Errorf("%w: movie has no external id", domain.ErrInvalidInput)
	}

	now := time.Now().UTC()
	if movie.LastSyncedAt.IsZero() {
		movie.LastSyncedAt = now
	}

	args, err := movieArgs(movie)
	if err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, classify("upsert_movie", err)
	}
	defer tx.Rollback()

	existing, err := scanMovie(tx.QueryRowContext(ctx,
		`SELECT `+movieColumns+` FROM movies WHERE external_id = ?`, movie.ExternalID))
	if err != nil && err != sql.ErrNoRows {
		return false, classify("upsert_movie", err)
	}

	created := existing == nil
	if created {
		movie.CreatedAt = now
		query := `
			INSERT INTO movies (
				title, overview, release_date, rating_average,
				rating_count, popularity, genres, runtime_minutes,
				poster_path, backdrop_path,
				external_id, created_at, last_synced_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		args = append(args, movie.ExternalID, formatTime(movie.CreatedAt), formatTime(movie.LastSyncedAt))
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return false, classify("upsert_movie", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return false, classify("upsert_movie", err)
		}
		movie.ID = id
	} else {
		existing.MergeSync(movie)
		query := `
			UPDATE movies SET
				title = ?, overview = ?, release_date = ?, rating_average = ?,
				rating_count = ?, popularity = ?, genres = ?, runtime_minutes = ?,
				poster_path = ?, backdrop_path = ?,
				last_synced_at = ?
			WHERE id = ?
		`
		args = append(args, formatTime(existing.LastSyncedAt), existing.ID)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return false, classify("upsert_movie", err)
		}
		movie.ID = existing.ID
		movie.CreatedAt = existing.CreatedAt
		movie.LastSyncedAt = existing.LastSyncedAt
	}

	if err := tx.Commit(); err != nil {
		return false, classify("upsert_movie", err)
	}

	return created, nil
}

// GetMovie retrieves a movie by its store ID
func (s *Store) GetMovie(ctx context.Context, id int64) (*domain.Movie, error) {
	movie, err := scanMovie(s.db.QueryRowContext(ctx,
		`SELECT `+movieColumns+` FROM movies WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get_movie", err)
	}
	return movie, nil
}

// GetMovieByExternalID retrieves a movie by its provider ID
func (s *Store) GetMovieByExternalID(ctx context.Context, externalID string) (*domain.Movie, error) {
	movie, err := scanMovie(s.db.QueryRowContext(ctx,
		`SELECT `+movieColumns+` FROM movies WHERE external_id = ?`, externalID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get_movie_by_external_id", err)
	}
	return movie, nil
}

// GetMoviesByIDs retrieves the movies that exist among ids
func (s *Store) GetMoviesByIDs(ctx context.Context, ids []int64) ([]*domain.Movie, error) {
	if len(ids) == 0 {
		return []*domain.Movie{}, nil
	}

	placeholders, args := inClause(ids)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+movieColumns+` FROM movies WHERE id IN (`+placeholders+`) ORDER BY id`, args...)
	if err != nil {
		return nil, classify("get_movies_by_ids", err)
	}
	defer rows.Close()

	return collectMovies(rows, "get_movies_by_ids")
}

// MovieExists checks whether a movie with the external ID is stored
func (s *Store) MovieExists(ctx context.Context, externalID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM movies WHERE external_id = ?)`, externalID).Scan(&exists)
	if err != nil {
		return false, classify("movie_exists", err)
	}
	return exists, nil
}

// QueryMovies returns movies matching the filter. Genre predicates are
// evaluated in SQL over the JSON genre list.
func (s *Store) QueryMovies(ctx context.Context, filter domain.MovieFilter) ([]*domain.Movie, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)

	if filter.TitleContains != "" {
		where = append(where, `title LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(filter.TitleContains)+"%")
	}
	if filter.Year > 0 {
		where = append(where, `release_date IS NOT NULL AND CAST(substr(release_date, 1, 4) AS INTEGER) = ?`)
		args = append(args, filter.Year)
	}
	if filter.YearFrom > 0 {
		where = append(where, `release_date IS NOT NULL AND CAST(substr(release_date, 1, 4) AS INTEGER) >= ?`)
		args = append(args, filter.YearFrom)
	}
	if filter.YearTo > 0 {
		where = append(where, `release_date IS NOT NULL AND CAST(substr(release_date, 1, 4) AS INTEGER) <= ?`)
		args = append(args, filter.YearTo)
	}
	if filter.MinRating != nil {
		where = append(where, `rating_average >= ?`)
		args = append(args, *filter.MinRating)
	}
	if filter.MaxRating != nil {
		where = append(where, `rating_average <= ?`)
		args = append(args, *filter.MaxRating)
	}
	if filter.MinRatingCount > 0 {
		where = append(where, `rating_count >= ?`)
		args = append(args, filter.MinRatingCount)
	}
	if filter.MinPopularity != nil {
		where = append(where, `popularity >= ?`)
		args = append(args, *filter.MinPopularity)
	}
	if filter.MinRuntime > 0 {
		where = append(where, `runtime_minutes >= ?`)
		args = append(args, filter.MinRuntime)
	}
	if filter.MaxRuntime > 0 {
		where = append(where, `runtime_minutes <= ?`)
		args = append(args, filter.MaxRuntime)
	}
	if filter.Genre != "" {
		where = append(where, `EXISTS (SELECT 1 FROM json_each(movies.genres) g WHERE lower(trim(g.value)) = ?)`)
		args = append(args, vo.NormalizeGenre(filter.Genre))
	}
	if len(filter.AnyGenres) > 0 {
		keys := vo.NewGenreSet(filter.AnyGenres...).Keys()
		if len(keys) == 0 {
			return []*domain.Movie{}, nil
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(keys)), ", ")
		where = append(where, `EXISTS (SELECT 1 FROM json_each(movies.genres) g WHERE lower(trim(g.value)) IN (`+placeholders+`))`)
		for _, k := range keys {
			args = append(args, k)
		}
	}
	if len(filter.ExcludeIDs) > 0 {
		placeholders, idArgs := inClause(filter.ExcludeIDs)
		where = append(where, `id NOT IN (`+placeholders+`)`)
		args = append(args, idArgs...)
	}

	query := `SELECT ` + movieColumns + ` FROM movies`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY ` + orderClause(filter.OrderBy, filter.Ascending)

	switch {
	case filter.Limit > 0:
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	case filter.Offset > 0:
		query += ` LIMIT -1 OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("query_movies", err)
	}
	defer rows.Close()

	return collectMovies(rows, "query_movies")
}

// HasGenre reports whether the stored movie carries the genre
func (s *Store) HasGenre(ctx context.Context, movieID int64, genre string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM movies m, json_each(m.genres) g
			WHERE m.id = ? AND lower(trim(g.value)) = ?
		)
	`, movieID, vo.NormalizeGenre(genre)).Scan(&exists)
	if err != nil {
		return false, classify("has_genre", err)
	}
	return exists, nil
}

// ListPopularity returns the popularity of every stored movie
func (s *Store) ListPopularity(ctx context.Context) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT popularity FROM movies`)
	if err != nil {
		return nil, classify("list_popularity", err)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, classify("list_popularity", err)
		}
		values = append(values, v)
	}
	return values, classify("list_popularity", rows.Err())
}

// DeleteStaleMovies removes unrated movies created before the cutoff whose
// popularity is below maxPopularity
func (s *Store) DeleteStaleMovies(ctx context.Context, createdBefore time.Time, maxPopularity float64) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM movies
		WHERE created_at < ?
		  AND popularity < ?
		  AND NOT EXISTS (SELECT 1 FROM ratings r WHERE r.movie_id = movies.id)
	`, formatTime(createdBefore), maxPopularity)
	if err != nil {
		return 0, classify("delete_stale_movies", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, classify("delete_stale_movies", err)
	}
	return int(n), nil
}

func collectMovies(rows *sql.Rows, op string) ([]*domain.Movie, error) {
	movies := []*domain.Movie{}
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		movies = append(movies, movie)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return movies, nil
}

func orderClause(order domain.MovieOrder, ascending bool) string {
	column := "popularity"
	switch order {
	case domain.OrderRating:
		column = "rating_average"
	case domain.OrderReleaseDate:
		column = "release_date"
	case domain.OrderCreatedAt:
		column = "created_at"
	case domain.OrderTitle:
		column = "title COLLATE NOCASE"
	}

	dir := "DESC"
	if ascending {
		dir = "ASC"
	}
	return fmt.Sprintf("%s %s, external_id ASC", column, dir)
}

func inClause(ids []int64) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", "), args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
