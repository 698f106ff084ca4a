package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/vertextoedge/movie-catalog/internal/domain"
)

// GetProfile retrieves a user's profile, or nil if none was created yet
func (s *Store) GetProfile(ctx context.Context, userID int64) (*domain.UserProfile, error) {
	query := `
		SELECT user_id, favorite_genres, bio, avatar_url, created_at, updated_at
		FROM user_profiles
		WHERE user_id = ?
	`

	profile := &domain.UserProfile{}
	var genres, createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&profile.UserID, &genres, &profile.Bio, &profile.AvatarURL, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get_profile", err)
	}

	profile.FavoriteGenres = []string{}
	if genres != "" {
		if err := json.Unmarshal([]byte(genres), &profile.FavoriteGenres); err != nil {
			return nil, fmt.Errorf("decode favorite genres of user %d: %w", userID, err)
		}
	}
	profile.CreatedAt = parseTime(createdAt)
	profile.UpdatedAt = parseTime(updatedAt)

	return profile, nil
}

// SaveProfile creates or replaces a user's profile. CreatedAt of an
// existing profile is preserved.
func (s *Store) SaveProfile(ctx context.Context, profile *domain.UserProfile) error {
	genres := profile.FavoriteGenres
	if genres == nil {
		genres = []string{}
	}
	genresJSON, err := json.Marshal(genres)
	if err != nil {
		return fmt.Errorf("encode favorite genres: %w", err)
	}

	query := `
		INSERT INTO user_profiles (user_id, favorite_genres, bio, avatar_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			favorite_genres = excluded.favorite_genres,
			bio = excluded.bio,
			avatar_url = excluded.avatar_url,
			updated_at = excluded.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		profile.UserID, string(genresJSON), profile.Bio, profile.AvatarURL,
		formatTime(profile.CreatedAt), formatTime(profile.UpdatedAt),
	)
	return classify("save_profile", err)
}

// DeleteUser removes a user's profile and all of their ratings
func (s *Store) DeleteUser(ctx context.Context, userID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("delete_user", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM ratings WHERE user_id = ?`, userID); err != nil {
		return classify("delete_user", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_profiles WHERE user_id = ?`, userID); err != nil {
		return classify("delete_user", err)
	}

	return classify("delete_user", tx.Commit())
}
