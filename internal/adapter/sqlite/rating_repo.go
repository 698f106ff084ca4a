package sqlite

import (
	"context"
	"database/sql"

	"github.com/vertextoedge/movie-catalog/internal/domain"
)

// UpsertRating creates the rating or replaces the user's previous rating
// for the same movie. Rating a movie that is not stored is a constraint
// violation.
func (s *Store) UpsertRating(ctx context.Context, rating *domain.Rating) error {
	query := `
		INSERT INTO ratings (user_id, movie_id, score, review, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, movie_id) DO UPDATE SET
			score = excluded.score,
			review = excluded.review,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		rating.UserID, rating.MovieID, rating.Score, rating.Review,
		formatTime(rating.CreatedAt), formatTime(rating.UpdatedAt),
	)
	return classify("upsert_rating", err)
}

// GetRating retrieves one user's rating for a movie
func (s *Store) GetRating(ctx context.Context, userID, movieID int64) (*domain.Rating, error) {
	query := `
		SELECT user_id, movie_id, score, review, created_at, updated_at
		FROM ratings
		WHERE user_id = ? AND movie_id = ?
	`

	rating, err := scanRating(s.db.QueryRowContext(ctx, query, userID, movieID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get_rating", err)
	}
	return rating, nil
}

// ListRatingsByUser returns all ratings by a user, newest first
func (s *Store) ListRatingsByUser(ctx context.Context, userID int64) ([]*domain.Rating, error) {
	query := `
		SELECT user_id, movie_id, score, review, created_at, updated_at
		FROM ratings
		WHERE user_id = ?
		ORDER BY updated_at DESC, movie_id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, classify("list_ratings", err)
	}
	defer rows.Close()

	ratings := []*domain.Rating{}
	for rows.Next() {
		rating, err := scanRating(rows)
		if err != nil {
			return nil, classify("list_ratings", err)
		}
		ratings = append(ratings, rating)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list_ratings", err)
	}
	return ratings, nil
}

// DeleteRating removes a rating. Returns false if none existed.
func (s *Store) DeleteRating(ctx context.Context, userID, movieID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM ratings WHERE user_id = ? AND movie_id = ?`, userID, movieID)
	if err != nil {
		return false, classify("delete_rating", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, classify("delete_rating", err)
	}
	return n > 0, nil
}

func scanRating(row rowScanner) (*domain.Rating, error) {
	rating := &domain.Rating{}
	var createdAt, updatedAt string

	if err := row.Scan(
		&rating.UserID, &rating.MovieID, &rating.Score, &rating.Review, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	rating.CreatedAt = parseTime(createdAt)
	rating.UpdatedAt = parseTime(updatedAt)
	return rating, nil
}
