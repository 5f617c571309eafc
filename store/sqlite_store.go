package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/BatmanBruc/convert-bot/types"
)

// SQLiteHistory stores conversion history in a local SQLite file. Used when no Postgres
// DSN is configured.
type SQLiteHistory struct {
	db *sql.DB
}

func NewSQLiteHistory(ctx context.Context, path string) (*SQLiteHistory, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}
	if err := runMigrations(ctx, db, goose.DialectSQLite3, "migrations/sqlite"); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteHistory{db: db}, nil
}

func (s *SQLiteHistory) Close() error {
	return s.db.Close()
}

func (s *SQLiteHistory) Record(ctx context.Context, rec types.ConversionRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO conversions (user_id, category, source_ext, target, status, error_kind, duration_ms, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, rec.UserID, string(rec.Category), strings.TrimSpace(rec.SourceExt), string(rec.Target), string(rec.Status),
		string(rec.ErrorKind), rec.Duration.Milliseconds(), createdAt.UnixMilli())
	return err
}

func (s *SQLiteHistory) UserStats(ctx context.Context, userID int64) (*types.UserStats, error) {
	st := &types.UserStats{ByCategory: make(map[types.Category]int)}
	var last sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*),
       COALESCE(SUM(CASE WHEN status = 'succeeded' THEN 1 ELSE 0 END), 0),
       MAX(created_at)
FROM conversions
WHERE user_id = ?
`, userID).Scan(&st.Total, &st.Succeeded, &last)
	if err != nil {
		return nil, err
	}
	st.Failed = st.Total - st.Succeeded
	if last.Valid {
		t := time.UnixMilli(last.Int64)
		st.LastAt = &t
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT category, COUNT(*)
FROM conversions
WHERE user_id = ? AND status = 'succeeded'
GROUP BY category
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cat string
			n   int
		)
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, err
		}
		st.ByCategory[types.Category(cat)] = n
	}
	return st, rows.Err()
}
