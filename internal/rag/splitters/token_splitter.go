package splitters

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"astro/internal/rag/interfaces"
	"astro/internal/rag/schema"
)

// TokenSplitter implements the Splitter interface to split documents based on token count.
// Chunk indices restart at 0 for every input document so they can serve as the
// per-entity chunk key.
type TokenSplitter struct {
	ChunkSize    int
	ChunkOverlap int
	tokenizer    *tiktoken.Tiktoken
}

// NewTokenSplitter creates a new TokenSplitter.
func NewTokenSplitter(chunkSize, chunkOverlap int) (*TokenSplitter, error) {
	if chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)", chunkOverlap, chunkSize)
	}
	// "cl100k_base" is the tokenizer for the gpt-4 family and text-embedding-3 models.
	tke, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoding: %w", err)
	}

	return &TokenSplitter{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		tokenizer:    tke,
	}, nil
}

// Split splits a list of documents into smaller chunks based on the token size.
// Empty or whitespace-only documents produce no chunks.
func (s *TokenSplitter) Split(ctx context.Context, docs []*schema.Document) ([]*schema.Document, error) {
	var chunks []*schema.Document

	for _, doc := range docs {
		if strings.TrimSpace(doc.Text) == "" {
			continue
		}
		tokens := s.tokenizer.Encode(doc.Text, nil, nil)
		step := s.ChunkSize - s.ChunkOverlap

		index := 0
		for start := 0; start < len(tokens); start += step {
			end := start + s.ChunkSize
			if end > len(tokens) {
				end = len(tokens)
			}

			chunkText := s.tokenizer.Decode(tokens[start:end])

			newDoc := &schema.Document{
				Text:     chunkText,
				Metadata: s.copyMetadata(doc.Metadata),
			}
			newDoc.Metadata[schema.MetadataKeyChunkIndex] = index

			chunks = append(chunks, newDoc)
			index++

			if end == len(tokens) {
				break
			}
		}
	}

	return chunks, nil
}

func (s *TokenSplitter) copyMetadata(md map[string]interface{}) map[string]interface{} {
	if md == nil {
		return make(map[string]interface{})
	}
	newMd := make(map[string]interface{}, len(md))
	for k, v := range md {
		newMd[k] = v
	}
	return newMd
}

// compile-time check to ensure TokenSplitter implements the Splitter interface
var _ interfaces.Splitter = (*TokenSplitter)(nil)
