package vecstore

import (
	"context"
	"fmt"
	"log/slog"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is a pgvector-backed document table keyed by document identifier.
// Upserts replace rows in place and deletes are no-ops when the row is
// already absent, so every operation is idempotent.
type Store struct {
	pool  *pgxpool.Pool
	table string
	dims  int
}

// New connects, verifies the connection and migrates the schema.
func New(ctx context.Context, cfg *Config) (*Store, error) {
	if !ValidTableName(cfg.Table) {
		return nil, fmt.Errorf("invalid table name %q", cfg.Table)
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("invalid embedding dimensions %d", cfg.Dimensions)
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{pool: pool, table: cfg.Table, dims: cfg.Dimensions}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	slog.Info("vector store ready", "table", s.table, "dimensions", s.dims)
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id uuid PRIMARY KEY,
			content text NOT NULL,
			metadata jsonb NOT NULL DEFAULT '{}',
			embedding vector(%d),
			created_at timestamptz NOT NULL DEFAULT now(),
			updated_at timestamptz NOT NULL DEFAULT now()
		)`, s.table, s.dims),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s
			USING hnsw (embedding vector_cosine_ops)`, s.table, s.table),
	}

	for _, m := range migrations {
		if _, err := s.pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}
	return nil
}

// Upsert writes all documents in one round trip. Any failure fails the whole
// batch; callers retry the batch or fall back to single-document upserts to
// attribute the failure (re-upserting already written rows is harmless).
func (s *Store) Upsert(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, content, metadata, embedding, updated_at)
		VALUES ($1, $2, $3::jsonb, $4::vector, now())
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding,
			updated_at = now()`, s.table)

	batch := &pgx.Batch{}
	for _, doc := range docs {
		if len(doc.Embedding) != s.dims {
			return fmt.Errorf("document %s: embedding has %d dimensions, want %d", doc.ID, len(doc.Embedding), s.dims)
		}
		metadata, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", doc.ID, err)
		}
		batch.Queue(query, doc.ID, doc.Content, string(metadata), formatVector(doc.Embedding))
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for _, doc := range docs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert %s: %w", doc.ID, err)
		}
	}
	return nil
}

// Delete removes documents by identifier. Absent rows count as deleted.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.table)

	batch := &pgx.Batch{}
	for _, id := range ids {
		batch.Queue(query, id)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for _, id := range ids {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("delete %s: %w", id, err)
		}
	}
	return nil
}

// Match runs a cosine similarity search, returning rows whose similarity is
// at least threshold, best first. This is the read path consumed by other
// systems; the indexing core never calls it.
func (s *Store) Match(ctx context.Context, embedding []float32, threshold float64, limit int) ([]*MatchResult, error) {
	if len(embedding) != s.dims {
		return nil, fmt.Errorf("query embedding has %d dimensions, want %d", len(embedding), s.dims)
	}

	query := fmt.Sprintf(`SELECT id, content, metadata, 1 - (embedding <=> $1::vector) AS similarity
		FROM %s
		WHERE 1 - (embedding <=> $1::vector) >= $2
		ORDER BY embedding <=> $1::vector
		LIMIT $3`, s.table)

	rows, err := s.pool.Query(ctx, query, formatVector(embedding), threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("match query: %w", err)
	}
	defer rows.Close()

	var matches []*MatchResult
	for rows.Next() {
		var m MatchResult
		var metadata []byte
		if err := rows.Scan(&m.ID, &m.Content, &metadata, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scan match row: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &m.Metadata); err != nil {
				slog.Warn("malformed metadata on matched row", "id", m.ID, "error", err)
			}
		}
		matches = append(matches, &m)
	}
	return matches, rows.Err()
}

// Count returns the number of rows in the table.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)
	if err := s.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return count, nil
}

// Purge deletes every row from the table and returns how many were removed.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", s.table))
	if err != nil {
		return 0, fmt.Errorf("purge table: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
