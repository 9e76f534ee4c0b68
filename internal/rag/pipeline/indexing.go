package pipeline

import (
	"context"
	"fmt"
	"strings"

	"astro/internal/rag/interfaces"
	"astro/internal/rag/schema"
	"astro/pkg/logger"
)

// Indexer keeps the vector store synchronized with knowledge entities.
// Chunks are always replaced wholesale: re-ingesting an entity first deletes
// every chunk keyed to it, so edits never leave stale vectors behind.
type Indexer struct {
	splitter interfaces.Splitter
	embedder interfaces.EmbeddingModel
	store    interfaces.VectorStore
	log      *logger.Logger
}

// NewIndexer creates a new Indexer.
func NewIndexer(splitter interfaces.Splitter, embedder interfaces.EmbeddingModel, store interfaces.VectorStore, log *logger.Logger) *Indexer {
	return &Indexer{splitter: splitter, embedder: embedder, store: store, log: log}
}

// IngestEntity replaces the entity's chunk set with chunks of the given text.
// Empty text just deletes the existing chunks. Returns the number of chunks stored.
func (p *Indexer) IngestEntity(ctx context.Context, ref schema.EntityRef, text string) (int, error) {
	doc := &schema.Document{Text: text, Metadata: map[string]interface{}{}}
	return p.IngestDocs(ctx, ref, []*schema.Document{doc})
}

// IngestDocs replaces the entity's chunk set with chunks built from the given
// documents (one per page or sheet for file-backed entities).
func (p *Indexer) IngestDocs(ctx context.Context, ref schema.EntityRef, docs []*schema.Document) (int, error) {
	if err := p.store.DeleteEntity(ctx, ref.Type, ref.ID); err != nil {
		return 0, fmt.Errorf("failed to delete stale chunks: %w", err)
	}

	chunks, err := p.splitter.Split(ctx, docs)
	if err != nil {
		p.log.Error(fmt.Sprintf("Failed to split documents: %v", err))
		return 0, fmt.Errorf("failed to split documents: %w", err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	embeddings, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		p.log.Error(fmt.Sprintf("Failed to embed chunks: %v", err))
		return 0, fmt.Errorf("failed to embed chunks: %w", err)
	}

	// Chunk indexes run sequentially across all of the entity's documents.
	for i, chunk := range chunks {
		chunk.ID = ref.ChunkID(i)
		chunk.Embedding = embeddings[i]
		chunk.Metadata[schema.MetadataKeyEntityType] = ref.Type
		chunk.Metadata[schema.MetadataKeyEntityID] = ref.ID
		chunk.Metadata[schema.MetadataKeyChunkIndex] = i
		chunk.Metadata[schema.MetadataKeyUniverseID] = int64(ref.UniverseID)
		chunk.Metadata[schema.MetadataKeySource] = ref.Source
	}

	if err := p.store.Add(ctx, chunks); err != nil {
		p.log.Error(fmt.Sprintf("Failed to add chunks to VectorStore: %v", err))
		return 0, fmt.Errorf("failed to add chunks to vector store: %w", err)
	}

	p.log.Info(fmt.Sprintf("Ingested %s %d: %d chunk(s)", ref.Type, ref.ID, len(chunks)))
	return len(chunks), nil
}

// DeleteEntity removes every chunk belonging to the entity.
func (p *Indexer) DeleteEntity(ctx context.Context, entityType string, entityID int64) error {
	return p.store.DeleteEntity(ctx, entityType, entityID)
}

// FormatContext renders retrieved chunks into the context block placed ahead
// of the conversation, each chunk labelled with its source.
func FormatContext(docs []*schema.Document) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		source, _ := d.Metadata[schema.MetadataKeySource].(string)
		if source == "" {
			source = "unknown"
		}
		parts = append(parts, fmt.Sprintf("[Source: %s]\n%s", source, d.Text))
	}
	return strings.Join(parts, "\n\n---\n\n")
}
