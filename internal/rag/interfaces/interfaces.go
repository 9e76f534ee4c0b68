package interfaces

import (
	"context"

	"astro/internal/rag/schema"
)

// Loader is the interface for loading data from a source file
// and converting it into a list of Document objects.
type Loader interface {
	Load(ctx context.Context, path string) ([]*schema.Document, error)
}

// Splitter is the interface for splitting a list of Documents into smaller chunks.
type Splitter interface {
	Split(ctx context.Context, docs []*schema.Document) ([]*schema.Document, error)
}

// VectorStore is the interface for storing and querying document chunks.
type VectorStore interface {
	// Add inserts chunks; entity ownership travels in each document's metadata.
	Add(ctx context.Context, docs []*schema.Document) error
	// Query returns up to topK chunks nearest to the embedding, scoped to one universe.
	Query(ctx context.Context, embedding []float32, topK int, universeID uint) ([]*schema.Document, error)
	// DeleteEntity removes every chunk belonging to the given entity.
	DeleteEntity(ctx context.Context, entityType string, entityID int64) error
	// Count reports the number of stored chunks.
	Count(ctx context.Context) (int64, error)
	// Export streams every stored chunk, embeddings included, for backup archives.
	Export(ctx context.Context) ([]*schema.Document, error)
	// Clear removes all chunks.
	Clear(ctx context.Context) error
}

// EmbeddingModel is the interface for a text embedding model.
type EmbeddingModel interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatModel is the interface for a conversational language model.
// It returns the generated answer and the concrete model that produced it.
type ChatModel interface {
	Chat(ctx context.Context, model, system string, history []schema.ChatMessage, user string) (string, string, error)
}

// Retriever finds the chunks most relevant to a query within one universe.
type Retriever interface {
	Retrieve(ctx context.Context, query string, universeID uint, topK int) ([]*schema.Document, error)
}
