package pipeline

import (
	"context"
	"fmt"

	"astro/internal/rag/interfaces"
	"astro/internal/rag/schema"
	"astro/pkg/logger"
)

// Retriever embeds a query and finds the nearest chunks in one universe.
// It degrades to an empty result on embedding or search failure so a broken
// vector store never fails the surrounding chat turn.
type Retriever struct {
	embedder interfaces.EmbeddingModel
	store    interfaces.VectorStore
	log      *logger.Logger
}

// NewRetriever creates a new Retriever.
func NewRetriever(embedder interfaces.EmbeddingModel, store interfaces.VectorStore, log *logger.Logger) *Retriever {
	return &Retriever{embedder: embedder, store: store, log: log}
}

// Retrieve returns up to topK chunks relevant to the query within the universe.
// A universeID of 0 searches across every universe.
func (r *Retriever) Retrieve(ctx context.Context, query string, universeID uint, topK int) ([]*schema.Document, error) {
	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		r.log.Warn(fmt.Sprintf("Query embedding failed, answering without context: %v", err))
		return nil, nil
	}
	if len(embeddings) == 0 {
		return nil, nil
	}

	docs, err := r.store.Query(ctx, embeddings[0], topK, universeID)
	if err != nil {
		r.log.Warn(fmt.Sprintf("Vector search failed, answering without context: %v", err))
		return nil, nil
	}
	return docs, nil
}

// compile-time check to ensure Retriever implements the Retriever interface
var _ interfaces.Retriever = (*Retriever)(nil)
