package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vertextoedge/movie-catalog/internal/domain"
	"github.com/vertextoedge/movie-catalog/internal/port"
)

// Timestamps are stored as fixed-width UTC text so that string comparison
// in SQL orders them chronologically.
const (
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
	dateLayout = "2006-01-02"
)

// Store implements port.Store interface using SQLite
type Store struct {
	db *sql.DB
}

// Ensure Store implements port.Store
var _ port.Store = (*Store)(nil)

// Options tunes the SQLite connection
type Options struct {
	CacheSizeMB   int
	BusyTimeoutMs int
}

// Open opens a connection to the SQLite database with default options
func Open(dbPath string) (*Store, error) {
	return OpenWithOptions(dbPath, Options{})
}

// OpenWithOptions opens a connection to the SQLite database
func OpenWithOptions(dbPath string, opts Options) (*Store, error) {
	if opts.CacheSizeMB <= 0 {
		opts.CacheSizeMB = 64
	}
	if opts.BusyTimeoutMs <= 0 {
		opts.BusyTimeoutMs = 5000
	}

	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Pragmas in the DSN apply to every pooled connection
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)",
		dbPath, opts.BusyTimeoutMs)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA cache_size = -%d", opts.CacheSizeMB*1000),
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return classify("ping", s.db.PingContext(ctx))
}

// migrate creates or updates the database schema
func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS movies (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			external_id TEXT UNIQUE NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			overview TEXT NOT NULL DEFAULT '',
			release_date TEXT,
			rating_average REAL NOT NULL DEFAULT 0,
			rating_count INTEGER NOT NULL DEFAULT 0,
			popularity REAL NOT NULL DEFAULT 0,
			genres TEXT NOT NULL DEFAULT '[]',
			runtime_minutes INTEGER,
			poster_path TEXT NOT NULL DEFAULT '',
			backdrop_path TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			last_synced_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS user_profiles (
			user_id INTEGER PRIMARY KEY,
			favorite_genres TEXT NOT NULL DEFAULT '[]',
			bio TEXT NOT NULL DEFAULT '',
			avatar_url TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS ratings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			movie_id INTEGER NOT NULL,
			score INTEGER NOT NULL CHECK (score BETWEEN 1 AND 5),
			review TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE (user_id, movie_id),
			FOREIGN KEY (movie_id) REFERENCES movies(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_movies_popularity ON movies(popularity)`,
		`CREATE INDEX IF NOT EXISTS idx_movies_rating ON movies(rating_average, rating_count)`,
		`CREATE INDEX IF NOT EXISTS idx_movies_release_date ON movies(release_date)`,
		`CREATE INDEX IF NOT EXISTS idx_movies_created_at ON movies(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_ratings_user ON ratings(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_ratings_movie ON ratings(movie_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, migration)
		}
	}

	return nil
}

// GetCatalogStats returns row counts for the catalog
func (s *Store) GetCatalogStats(ctx context.Context) (*domain.CatalogStats, error) {
	stats := &domain.CatalogStats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM movies),
			(SELECT COUNT(*) FROM ratings),
			(SELECT COUNT(*) FROM user_profiles)
	`).Scan(&stats.TotalMovies, &stats.TotalRatings, &stats.Profiles)
	if err != nil {
		return nil, classify("catalog_stats", err)
	}

	return stats, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
