package store

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/BatmanBruc/convert-bot/types"
)

// PostgresHistory stores conversion history in PostgreSQL.
type PostgresHistory struct {
	pool *pgxpool.Pool
}

// PostgresDSN returns dsn, or one built from the POSTGRES_* variables when dsn is empty and
// POSTGRES_HOST is set. An empty result means Postgres is not configured.
func PostgresDSN(dsn string) string {
	if dsn = strings.TrimSpace(dsn); dsn != "" {
		return dsn
	}
	if strings.TrimSpace(os.Getenv("POSTGRES_HOST")) == "" {
		return ""
	}
	return buildPostgresDSNFromEnv()
}

func NewPostgresHistory(ctx context.Context, dsn string) (*PostgresHistory, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = buildPostgresDSNFromEnv()
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &PostgresHistory{pool: pool}
	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresHistory) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func buildPostgresDSNFromEnv() string {
	host := strings.TrimSpace(os.Getenv("POSTGRES_HOST"))
	if host == "" {
		host = "localhost"
	}
	port := strings.TrimSpace(os.Getenv("POSTGRES_PORT"))
	if port == "" {
		port = "5432"
	}
	db := strings.TrimSpace(os.Getenv("POSTGRES_DB"))
	if db == "" {
		db = "convert_bot"
	}
	user := strings.TrimSpace(os.Getenv("POSTGRES_USER"))
	if user == "" {
		user = "convert_bot"
	}
	pass := os.Getenv("POSTGRES_PASSWORD")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", urlEscape(user), urlEscape(pass), host, port, db)
}

func urlEscape(s string) string {
	r := strings.NewReplacer(
		"%", "%25",
		":", "%3A",
		"/", "%2F",
		"@", "%40",
		"?", "%3F",
		"#", "%23",
		"[", "%5B",
		"]", "%5D",
	)
	return r.Replace(s)
}

func (s *PostgresHistory) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDB(*s.pool.Config().ConnConfig)
	defer db.Close()
	return runMigrations(ctx, db, goose.DialectPostgres, "migrations/postgres")
}

func (s *PostgresHistory) Record(ctx context.Context, rec types.ConversionRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO conversions (user_id, category, source_ext, target, status, error_kind, duration_ms, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`, rec.UserID, string(rec.Category), strings.TrimSpace(rec.SourceExt), string(rec.Target), string(rec.Status),
		string(rec.ErrorKind), rec.Duration.Milliseconds(), createdAt)
	return err
}

func (s *PostgresHistory) UserStats(ctx context.Context, userID int64) (*types.UserStats, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	st := &types.UserStats{ByCategory: make(map[types.Category]int)}
	err := s.pool.QueryRow(ctx, `
SELECT COUNT(*),
       COALESCE(SUM(CASE WHEN status = 'succeeded' THEN 1 ELSE 0 END), 0),
       MAX(created_at)
FROM conversions
WHERE user_id = $1
`, userID).Scan(&st.Total, &st.Succeeded, &st.LastAt)
	if err != nil {
		return nil, err
	}
	st.Failed = st.Total - st.Succeeded

	rows, err := s.pool.Query(ctx, `
SELECT category, COUNT(*)
FROM conversions
WHERE user_id = $1 AND status = 'succeeded'
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
