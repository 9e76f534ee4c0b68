package schema

import "fmt"

const (
	// MetadataKeyEntityType is the key for the owning entity's type (note, action_item, member, document, feed_artifact).
	MetadataKeyEntityType = "entity_type"
	// MetadataKeyEntityID is the key for the owning entity's numeric ID.
	MetadataKeyEntityID = "entity_id"
	// MetadataKeyChunkIndex is the key for the chunk's position within its entity, starting at 0.
	MetadataKeyChunkIndex = "chunk_index"
	// MetadataKeyUniverseID is the key for the universe the entity belongs to.
	MetadataKeyUniverseID = "universe_id"
	// MetadataKeySource is the key for a human-readable origin label, e.g. "note: Groceries".
	MetadataKeySource = "source"
	// MetadataKeyScore is the key for the similarity score attached by retrieval.
	MetadataKeyScore = "score"
)

// Document is the central data structure representing a piece of text and its associated data.
// It is the primary data carrier throughout the RAG pipeline.
type Document struct {
	// ID is the unique identifier for this document chunk.
	ID string

	// Text is the string content of the document chunk.
	Text string

	// Embedding is the vector representation of the text.
	Embedding []float32

	// Metadata holds arbitrary data about the document.
	Metadata map[string]interface{}
}

// EntityRef identifies a knowledge entity whose text is chunked into the vector store.
type EntityRef struct {
	Type       string // note, action_item, member, document, feed_artifact
	ID         int64
	UniverseID uint
	Source     string
}

// ChunkID returns the stable vector-store ID for one chunk of the entity.
func (r EntityRef) ChunkID(index int) string {
	return fmt.Sprintf("%s-%d-%d", r.Type, r.ID, index)
}

// ChatMessage is one turn of a conversation passed to a chat model.
type ChatMessage struct {
	Role    string `json:"role"` // user | assistant
	Content string `json:"content"`
}
