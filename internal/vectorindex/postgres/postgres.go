// Package postgres stores the vector index in PostgreSQL using the pgvector extension.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/spigell/cold-mailer/internal/ai"
	"github.com/spigell/cold-mailer/internal/vectorindex"
	"go.uber.org/zap"
)

const defaultConnectTimeout = 5 * time.Second

// Options configure the PostgreSQL backed index.
type Options struct {
	DSN        string
	Collection string
	Dimensions int
	// ConnectTimeout bounds the initial ping and schema setup.
	// The pool itself lives on the context passed to Open.
	ConnectTimeout time.Duration
}

// Index keeps one collection per table.
type Index struct {
	pool       *pgxpool.Pool
	table      string
	dimensions int
	embedder   ai.Embedder
	logger     *zap.Logger
}

// Open connects to the database and creates the extension and table when missing.
func Open(ctx context.Context, opts Options, embedder ai.Embedder, logger *zap.Logger) (*Index, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if strings.TrimSpace(opts.DSN) == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	if opts.Dimensions <= 0 {
		return nil, fmt.Errorf("vector dimensions must be positive, got %d", opts.Dimensions)
	}
	collection := strings.TrimSpace(opts.Collection)
	if collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	connectTimeout := opts.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	setupCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := pool.Ping(setupCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	idx := &Index{
		pool:       pool,
		table:      pgx.Identifier{collection}.Sanitize(),
		dimensions: opts.Dimensions,
		embedder:   embedder,
		logger:     logger.With(zap.String("collection", collection)),
	}

	if err := idx.migrate(setupCtx); err != nil {
		pool.Close()
		return nil, err
	}

	return idx, nil
}

func (i *Index) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			document TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			embedding vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, i.table, i.dimensions),
	}

	for _, stmt := range statements {
		if _, err := i.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("prepare vector table: %w", err)
		}
	}

	return nil
}

func (i *Index) Add(ctx context.Context, docs []vectorindex.Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, 0, len(docs))
	for _, doc := range docs {
		texts = append(texts, doc.Text)
	}

	vectors, err := i.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("embed documents: expected %d vectors, got %d", len(docs), len(vectors))
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, document, metadata, embedding)
		VALUES ($1, $2, $3::jsonb, $4::vector)
		ON CONFLICT (id) DO NOTHING`, i.table)

	batch := &pgx.Batch{}
	for n, doc := range docs {
		if len(vectors[n]) != i.dimensions {
			return fmt.Errorf("document %s: %w: table has %d, got %d", doc.ID, vectorindex.ErrDimensionMismatch, i.dimensions, len(vectors[n]))
		}

		meta, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata for %s: %w", doc.ID, err)
		}

		batch.Queue(query, doc.ID, doc.Text, string(meta), pgvector.NewVector(vectors[n]).String())
	}

	if err := i.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert documents: %w", err)
	}

	i.logger.Debug("documents stored", zap.Int("count", len(docs)))

	return nil
}

func (i *Index) Count(ctx context.Context) (int, error) {
	var count int
	if err := i.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, i.table)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

func (i *Index) Query(ctx context.Context, text string, n int) ([]vectorindex.Hit, error) {
	if n <= 0 {
		return nil, nil
	}

	vectors, err := i.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: expected 1 vector, got %d", len(vectors))
	}
	if len(vectors[0]) != i.dimensions {
		return nil, fmt.Errorf("query: %w: table has %d, got %d", vectorindex.ErrDimensionMismatch, i.dimensions, len(vectors[0]))
	}

	rows, err := i.pool.Query(ctx, fmt.Sprintf(`SELECT id, document, metadata::text, 1 - (embedding <=> $1::vector) AS score
		FROM %s
		ORDER BY embedding <=> $1::vector, created_at
		LIMIT $2`, i.table), pgvector.NewVector(vectors[0]).String(), n)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var hits []vectorindex.Hit
	for rows.Next() {
		var (
			hit   vectorindex.Hit
			meta  string
			score float64
		)
		if err := rows.Scan(&hit.ID, &hit.Text, &meta, &score); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &hit.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", hit.ID, err)
		}
		hit.Score = float32(score)
		hits = append(hits, hit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}

	return hits, nil
}

func (i *Index) Reset(ctx context.Context) error {
	if _, err := i.pool.Exec(ctx, fmt.Sprintf(`TRUNCATE %s`, i.table)); err != nil {
		return fmt.Errorf("clear documents: %w", err)
	}
	return nil
}

func (i *Index) Close() error {
	i.pool.Close()
	return nil
}
