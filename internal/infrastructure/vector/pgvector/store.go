package pgvector

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvec "github.com/pgvector/pgvector-go"

	"github.com/dkomarov/doc-analyst/internal/core/domain"
	"github.com/dkomarov/doc-analyst/internal/core/ports"
)

// Store keeps chunk embeddings in Postgres with the pgvector extension, as an
// alternative to Qdrant for deployments that already run Postgres. Queries
// report cosine distance, which the retriever converts to similarity.
type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string, dimension int) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect pgvector pool: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx, dimension); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) ensureSchema(ctx context.Context, dimension int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Serializes concurrent api/worker startups.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(523411)`); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	if _, err := tx.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("ensure vector extension: %w", err)
	}
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS chunks (
			id          TEXT PRIMARY KEY,
			source      TEXT NOT NULL,
			chunk_index INT NOT NULL,
			text        TEXT NOT NULL,
			summary     TEXT NOT NULL DEFAULT '',
			quality     DOUBLE PRECISION NOT NULL DEFAULT 0,
			embedding   vector(%d) NOT NULL
		)`, dimension)
	if _, err := tx.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure chunks table: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, records []ports.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`
			INSERT INTO chunks (id, source, chunk_index, text, summary, quality, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				source = EXCLUDED.source,
				chunk_index = EXCLUDED.chunk_index,
				text = EXCLUDED.text,
				summary = EXCLUDED.summary,
				quality = EXCLUDED.quality,
				embedding = EXCLUDED.embedding`,
			r.Chunk.ID, r.Chunk.Source, r.Chunk.ChunkIndex, r.Chunk.Text,
			r.Chunk.Summary, r.Chunk.Quality, pgvec.NewVector(r.Vector),
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert chunk batch: %w", err)
		}
	}
	return nil
}

func (s *Store) Query(ctx context.Context, vector []float32, k int) ([]ports.VectorMatch, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, source, chunk_index, text, summary, quality, embedding <=> $1 AS distance
		FROM chunks
		ORDER BY embedding <=> $1
		LIMIT $2`,
		pgvec.NewVector(vector), k,
	)
	if err != nil {
		return nil, fmt.Errorf("pgvector query: %w", err)
	}
	defer rows.Close()

	var out []ports.VectorMatch
	for rows.Next() {
		var (
			chunk    domain.Chunk
			distance float64
		)
		if err := rows.Scan(&chunk.ID, &chunk.Source, &chunk.ChunkIndex, &chunk.Text, &chunk.Summary, &chunk.Quality, &distance); err != nil {
			return nil, fmt.Errorf("scan pgvector match: %w", err)
		}
		out = append(out, ports.VectorMatch{
			Chunk:           chunk,
			Score:           distance,
			ScoreIsDistance: true,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pgvector matches: %w", err)
	}
	return out, nil
}

func (s *Store) ScanAll(ctx context.Context) ([]domain.Chunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, source, chunk_index, text, summary, quality
		FROM chunks
		ORDER BY source, chunk_index`)
	if err != nil {
		return nil, fmt.Errorf("pgvector scan: %w", err)
	}
	defer rows.Close()

	var out []domain.Chunk
	for rows.Next() {
		var chunk domain.Chunk
		if err := rows.Scan(&chunk.ID, &chunk.Source, &chunk.ChunkIndex, &chunk.Text, &chunk.Summary, &chunk.Quality); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		out = append(out, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunk rows: %w", err)
	}
	return out, nil
}
