package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/vertextoedge/movie-catalog/internal/domain"
)

// classify maps driver errors onto the domain store taxonomy.
// Errors the caller cannot act on are wrapped with the operation name only.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3.SQLITE_CONSTRAINT:
			return &domain.StoreError{Kind: domain.StoreConstraintViolation, Op: op, Err: err}
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_IOERR:
			return &domain.StoreError{Kind: domain.StoreUnavailable, Op: op, Err: err}
		}
	}
	if errors.Is(err, sql.ErrConnDone) {
		return &domain.StoreError{Kind: domain.StoreUnavailable, Op: op, Err: err}
	}

	return fmt.Errorf("%s: %w", op, err)
}
