package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists long-term memory in PostgreSQL. Ranking is keyword
// overlap against the query text with recency as tiebreak.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS memory_items (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_memory_items_created ON memory_items (created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Add(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO memory_items (id, content, created_at) VALUES ($1, $2, $3)`,
		uuid.NewString(), text, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save memory: %w", err)
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, text string, k int) ([]string, error) {
	if k <= 0 {
		k = 3
	}

	words := queryWords(text)
	if len(words) == 0 {
		// Nothing to match on; fall back to the most recent entries.
		return s.recent(ctx, k)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT content,
		        (SELECT count(*) FROM unnest($1::text[]) AS w WHERE content ILIKE '%' || w || '%') AS hits
		 FROM memory_items
		 ORDER BY hits DESC, created_at DESC
		 LIMIT $2`,
		words, k,
	)
	if err != nil {
		return nil, fmt.Errorf("query memory: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0, k)
	for rows.Next() {
		var content string
		var hits int
		if err := rows.Scan(&content, &hits); err != nil {
			return nil, fmt.Errorf("scan memory row: %w", err)
		}
		out = append(out, content)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memory rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) recent(ctx context.Context, k int) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT content FROM memory_items ORDER BY created_at DESC LIMIT $1`, k)
	if err != nil {
		return nil, fmt.Errorf("query recent memory: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0, k)
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("scan memory row: %w", err)
		}
		out = append(out, content)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memory rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func queryWords(text string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, 8)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:\"'()")
		if len(w) <= 2 {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
		if len(out) == 8 {
			break
		}
	}
	return out
}
