package knowledge

import (
	"context"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/daosail/compass/internal/log"
	"github.com/daosail/compass/internal/roles"
)

// searchTimeout bounds a single vector search so a slow query cannot
// stall the whole request pipeline.
const searchTimeout = 10 * time.Second

// DB is the subset of pgx operations the store needs. Satisfied by
// *pgxpool.Pool and by pgx.Tx, which keeps the store testable without
// a live database.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// SearchParams describes one filtered similarity search.
type SearchParams struct {
	Category  string
	Language  string
	Tiers     []roles.Tier
	Threshold float64
	Limit     int
}

// Store manages knowledge documents in PostgreSQL with pgvector
// similarity search. Safe for concurrent use.
type Store struct {
	db       DB
	embedder ai.Embedder
	logger   log.Logger
}

// NewStore creates a Store. The embedder is used only by the indexing
// path; search expects a precomputed query embedding.
func NewStore(db DB, embedder ai.Embedder, logger log.Logger) *Store {
	return &Store{db: db, embedder: embedder, logger: logger}
}

// Add embeds a document's content and upserts it. A zero document ID
// is replaced with a fresh one.
func (s *Store) Add(ctx context.Context, doc Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}

	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(doc.Content)}},
		},
	})
	if err != nil {
		return fmt.Errorf("embed document %q: %w", doc.Title, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return fmt.Errorf("empty embedding for document %q", doc.Title)
	}
	if got := len(resp.Embeddings[0].Embedding); got != VectorDimension {
		return fmt.Errorf("embedding for document %q has %d dimensions, schema expects %d",
			doc.Title, got, VectorDimension)
	}
	embedding := pgvector.NewVector(resp.Embeddings[0].Embedding)

	_, err = s.db.Exec(ctx, `
		INSERT INTO knowledge_documents (id, title, content, category, language, access_tier, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			category = EXCLUDED.category,
			language = EXCLUDED.language,
			access_tier = EXCLUDED.access_tier,
			embedding = EXCLUDED.embedding`,
		doc.ID, doc.Title, doc.Content, doc.Category, doc.Language, string(doc.AccessTier), embedding)
	if err != nil {
		return fmt.Errorf("upsert document %q: %w", doc.Title, err)
	}

	s.logger.Debug("indexed document",
		"id", doc.ID, "category", doc.Category, "tier", doc.AccessTier)
	return nil
}

// Search runs one filtered similarity search against a precomputed
// query embedding. Results come back ordered by similarity descending,
// all at or above the threshold.
func (s *Store) Search(ctx context.Context, embedding pgvector.Vector, p SearchParams) ([]Snippet, error) {
	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	tiers := make([]string, len(p.Tiers))
	for i, t := range p.Tiers {
		tiers[i] = string(t)
	}

	rows, err := s.db.Query(queryCtx, `
		SELECT id, title, content, category, language, access_tier,
		       1 - (embedding <=> $1) AS similarity
		FROM knowledge_documents
		WHERE category = $2
		  AND language = $3
		  AND access_tier = ANY($4)
		  AND 1 - (embedding <=> $1) >= $5
		ORDER BY embedding <=> $1
		LIMIT $6`,
		embedding, p.Category, p.Language, tiers, p.Threshold, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("search category %q: %w", p.Category, err)
	}
	defer rows.Close()

	var snippets []Snippet
	for rows.Next() {
		var sn Snippet
		var tier string
		if err := rows.Scan(&sn.ID, &sn.Title, &sn.Content, &sn.Category, &sn.Language, &tier, &sn.Similarity); err != nil {
			return nil, fmt.Errorf("scan snippet: %w", err)
		}
		sn.AccessTier = roles.Tier(tier)
		snippets = append(snippets, sn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search category %q: %w", p.Category, err)
	}

	return snippets, nil
}

// Count returns the total number of indexed documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM knowledge_documents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

// Delete removes a document by id.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM knowledge_documents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	s.logger.Debug("deleted document", "id", id)
	return nil
}
