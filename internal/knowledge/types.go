// Package knowledge implements the role-filtered vector retrieval layer
// over pgvector. Documents are stored with a category, language, and
// access tier; retrieval resolves an assistant persona to its topic
// categories, embeds the query once, and fans out one filtered
// similarity search per category.
package knowledge

import (
	"time"

	"github.com/google/uuid"

	"github.com/daosail/compass/internal/roles"
)

// VectorDimension is the embedding width stored in the
// knowledge_documents schema. Embedders must be configured to produce
// vectors of exactly this size (gemini-embedding-001 truncates via
// OutputDimensionality).
const VectorDimension = 768

// Persona names an assistant behavior profile. Each persona owns a
// fixed set of knowledge base categories it retrieves from.
type Persona string

const (
	PersonaNavigator Persona = "navigator"
	PersonaSkipper   Persona = "skipper"
)

// personaCategories maps each persona to its topic categories, in
// retrieval order.
var personaCategories = map[Persona][]string{
	PersonaNavigator: {"sailing_basics", "navigation", "weather", "equipment"},
	PersonaSkipper:   {"safety", "crew_management", "emergency", "racing"},
}

// Categories returns the topic categories for a persona. Unknown
// personas fall back to the navigator set.
func Categories(p Persona) []string {
	cats, ok := personaCategories[p]
	if !ok {
		cats = personaCategories[PersonaNavigator]
	}
	out := make([]string, len(cats))
	copy(out, cats)
	return out
}

// ValidPersona reports whether p is a known persona.
func ValidPersona(p Persona) bool {
	_, ok := personaCategories[p]
	return ok
}

// Snippet is one retrieved unit of knowledge base content. Immutable
// once returned from retrieval.
type Snippet struct {
	ID         uuid.UUID
	Title      string
	Content    string
	Category   string
	Language   string
	AccessTier roles.Tier
	Similarity float64
}

// Document is a knowledge base entry as stored, without a similarity
// score. Used by the indexing path.
type Document struct {
	ID         uuid.UUID
	Title      string
	Content    string
	Category   string
	Language   string
	AccessTier roles.Tier
	CreatedAt  time.Time
}

// Query is one retrieval request.
type Query struct {
	Text     string
	Persona  Persona
	Role     roles.Tier
	Language string
}
