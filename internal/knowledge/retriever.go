package knowledge

import (
	"context"
	"sort"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"

	"github.com/daosail/compass/internal/log"
	"github.com/daosail/compass/internal/roles"
)

// Retrieval tuning. One embedding per request, then per-category
// searches capped small so the merged context stays compact.
const (
	SimilarityThreshold = 0.7
	PerCategoryLimit    = 2
	MaxSnippets         = 3
)

// Searcher is the single-category search the retriever fans out over.
// *Store satisfies it.
type Searcher interface {
	Search(ctx context.Context, embedding pgvector.Vector, p SearchParams) ([]Snippet, error)
}

// Retriever turns a conversational query into grounding snippets. It
// embeds the query once, searches each persona category concurrently,
// and merges the results. Retrieval never fails a request: any error
// degrades to fewer (or zero) snippets.
type Retriever struct {
	searcher Searcher
	embedder ai.Embedder
	logger   log.Logger
}

// NewRetriever creates a Retriever.
func NewRetriever(searcher Searcher, embedder ai.Embedder, logger log.Logger) *Retriever {
	return &Retriever{searcher: searcher, embedder: embedder, logger: logger}
}

// Retrieve returns up to MaxSnippets deduplicated snippets visible to
// the query's role, sorted by similarity descending. An empty result
// is a valid outcome, not an error.
func (r *Retriever) Retrieve(ctx context.Context, q Query) []Snippet {
	resp, err := r.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(q.Text)}},
		},
	})
	if err != nil {
		r.logger.Warn("retrieval degraded: query embedding failed", "error", err)
		return nil
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		r.logger.Warn("retrieval degraded: empty query embedding")
		return nil
	}
	embedding := pgvector.NewVector(resp.Embeddings[0].Embedding)

	categories := Categories(q.Persona)
	accessible := roles.Accessible(q.Role)

	// One search per category, joined before merging. A failed category
	// contributes nothing; the others still count.
	results := make([][]Snippet, len(categories))
	g, gctx := errgroup.WithContext(ctx)
	for i, category := range categories {
		g.Go(func() error {
			snippets, err := r.searcher.Search(gctx, embedding, SearchParams{
				Category:  category,
				Language:  q.Language,
				Tiers:     accessible,
				Threshold: SimilarityThreshold,
				Limit:     PerCategoryLimit,
			})
			if err != nil {
				r.logger.Warn("retrieval degraded: category search failed",
					"category", category, "error", err)
				return nil
			}
			results[i] = snippets
			return nil
		})
	}
	// Workers only ever return nil; Wait is just the join barrier.
	_ = g.Wait()

	return merge(results)
}

// merge flattens per-category results, drops duplicate ids keeping the
// first occurrence, sorts by similarity descending, and truncates.
func merge(results [][]Snippet) []Snippet {
	var merged []Snippet
	seen := make(map[uuid.UUID]struct{})
	for _, snippets := range results {
		for _, sn := range snippets {
			if _, dup := seen[sn.ID]; dup {
				continue
			}
			seen[sn.ID] = struct{}{}
			merged = append(merged, sn)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Similarity > merged[j].Similarity
	})

	if len(merged) > MaxSnippets {
		merged = merged[:MaxSnippets]
	}
	return merged
}
