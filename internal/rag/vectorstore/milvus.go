package vectorstore

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"astro/internal/database/milvus"
	"astro/internal/rag/interfaces"
	"astro/internal/rag/schema"
	"astro/pkg/logger"
)

// exportBatchSize bounds how many chunks one Query pulls during Export.
const exportBatchSize = 1000

// MilvusStore is an adapter for the Milvus client to implement the VectorStore interface.
// Each row is one chunk of a knowledge entity, keyed by (entity_type, entity_id, chunk_index).
type MilvusStore struct {
	log          *logger.Logger
	client       client.Client
	collection   string
	vectorField  string
	dim          int
	searchParams entity.SearchParam
}

// NewMilvusStore creates a new MilvusStore adapter on top of the project's Milvus client wrapper.
func NewMilvusStore(milvusClient *milvus.MilvusClient, log *logger.Logger) (*MilvusStore, error) {
	if milvusClient == nil || milvusClient.Client == nil {
		return nil, fmt.Errorf("milvus client is not initialized")
	}
	searchParams, err := searchParamsForIndex(milvusClient.Config.Index.IndexType)
	if err != nil {
		return nil, err
	}
	return &MilvusStore{
		log:          log,
		client:       milvusClient.Client,
		collection:   milvusClient.Config.CollectionName,
		vectorField:  milvusClient.Config.VectorField,
		dim:          milvusClient.Config.Dim,
		searchParams: searchParams,
	}, nil
}

// searchParamsForIndex picks search parameters matching the configured index type.
// Searching with parameters of a different index family fails or degrades, so
// the cases here mirror the index creation switch.
func searchParamsForIndex(indexType string) (entity.SearchParam, error) {
	switch indexType {
	case "IVF_FLAT":
		return entity.NewIndexIvfFlatSearchParam(10)
	case "IVF_SQ8":
		return entity.NewIndexIvfSQ8SearchParam(10)
	case "HNSW":
		return entity.NewIndexHNSWSearchParam(64)
	case "AUTOINDEX":
		return entity.NewIndexAUTOINDEXSearchParam(1)
	default:
		return nil, fmt.Errorf("unsupported index type: %s", indexType)
	}
}

// Add inserts a list of chunks into the Milvus collection.
// Every document must carry entity metadata and an embedding of the configured dimension.
func (s *MilvusStore) Add(ctx context.Context, docs []*schema.Document) error {
	if len(docs) == 0 {
		return nil
	}

	ids := make([]string, len(docs))
	entityTypes := make([]string, len(docs))
	entityIDs := make([]int64, len(docs))
	chunkIndexes := make([]int64, len(docs))
	universeIDs := make([]int64, len(docs))
	sources := make([]string, len(docs))
	texts := make([]string, len(docs))
	embeddings := make([][]float32, len(docs))

	for i, doc := range docs {
		if len(doc.Embedding) != s.dim {
			return fmt.Errorf("embedding dimension mismatch for chunk '%s': got %d, want %d", doc.ID, len(doc.Embedding), s.dim)
		}
		ids[i] = doc.ID
		embeddings[i] = doc.Embedding
		texts[i] = doc.Text
		entityTypes[i], _ = doc.Metadata[schema.MetadataKeyEntityType].(string)
		sources[i], _ = doc.Metadata[schema.MetadataKeySource].(string)
		entityIDs[i] = metadataInt64(doc.Metadata, schema.MetadataKeyEntityID)
		chunkIndexes[i] = metadataInt64(doc.Metadata, schema.MetadataKeyChunkIndex)
		universeIDs[i] = metadataInt64(doc.Metadata, schema.MetadataKeyUniverseID)
	}

	cols := []entity.Column{
		entity.NewColumnVarChar(milvus.FieldID, ids),
		entity.NewColumnVarChar(milvus.FieldEntityType, entityTypes),
		entity.NewColumnInt64(milvus.FieldEntityID, entityIDs),
		entity.NewColumnInt64(milvus.FieldChunkIndex, chunkIndexes),
		entity.NewColumnInt64(milvus.FieldUniverseID, universeIDs),
		entity.NewColumnVarChar(milvus.FieldSource, sources),
		entity.NewColumnVarChar(milvus.FieldText, texts),
		entity.NewColumnFloatVector(s.vectorField, s.dim, embeddings),
	}

	if _, err := s.client.Insert(ctx, s.collection, "" /* default partition */, cols...); err != nil {
		s.log.Error(fmt.Sprintf("Failed to insert chunks into Milvus: %v", err))
		return fmt.Errorf("failed to insert chunks into Milvus: %w", err)
	}
	return nil
}

// Query performs a vector search scoped to one universe and returns the nearest chunks.
// A universeID of 0 searches across every universe.
func (s *MilvusStore) Query(ctx context.Context, embedding []float32, topK int, universeID uint) ([]*schema.Document, error) {
	filterExpr := ""
	if universeID > 0 {
		filterExpr = fmt.Sprintf("%s == %d", milvus.FieldUniverseID, universeID)
	}

	outputFields := []string{
		milvus.FieldID, milvus.FieldEntityType, milvus.FieldEntityID,
		milvus.FieldChunkIndex, milvus.FieldUniverseID, milvus.FieldSource, milvus.FieldText,
	}

	searchResults, err := s.client.Search(
		ctx, s.collection, []string{}, filterExpr, outputFields,
		[]entity.Vector{entity.FloatVector(embedding)},
		s.vectorField, entity.L2, topK, s.searchParams,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search in Milvus: %w", err)
	}

	var results []*schema.Document
	for _, res := range searchResults {
		docs, err := s.documentsFromColumns(res.Fields, res.ResultCount)
		if err != nil {
			s.log.Warn(fmt.Sprintf("Skipping malformed search result: %v", err))
			continue
		}
		for i, doc := range docs {
			doc.Metadata[schema.MetadataKeyScore] = res.Scores[i]
			results = append(results, doc)
		}
	}
	return results, nil
}

// DeleteEntity removes every chunk belonging to the given entity.
func (s *MilvusStore) DeleteEntity(ctx context.Context, entityType string, entityID int64) error {
	expr := fmt.Sprintf(`%s == "%s" and %s == %d`, milvus.FieldEntityType, entityType, milvus.FieldEntityID, entityID)
	if err := s.client.Delete(ctx, s.collection, "" /* default partition */, expr); err != nil {
		return fmt.Errorf("failed to delete chunks for %s %d: %w", entityType, entityID, err)
	}
	return nil
}

// Count reports the number of stored chunks.
func (s *MilvusStore) Count(ctx context.Context) (int64, error) {
	if err := s.client.Flush(ctx, s.collection, false); err != nil {
		return 0, fmt.Errorf("failed to flush collection before counting: %w", err)
	}
	stats, err := s.client.GetCollectionStatistics(ctx, s.collection)
	if err != nil {
		return 0, fmt.Errorf("failed to get collection statistics: %w", err)
	}
	var count int64
	if _, err := fmt.Sscanf(stats["row_count"], "%d", &count); err != nil {
		return 0, fmt.Errorf("unexpected row_count value '%s'", stats["row_count"])
	}
	return count, nil
}

// Export pulls every stored chunk, embedding included, in batches.
func (s *MilvusStore) Export(ctx context.Context) ([]*schema.Document, error) {
	outputFields := []string{
		milvus.FieldID, milvus.FieldEntityType, milvus.FieldEntityID,
		milvus.FieldChunkIndex, milvus.FieldUniverseID, milvus.FieldSource,
		milvus.FieldText, s.vectorField,
	}

	var all []*schema.Document
	for offset := int64(0); ; offset += exportBatchSize {
		rs, err := s.client.Query(
			ctx, s.collection, nil,
			fmt.Sprintf("%s >= 0", milvus.FieldChunkIndex),
			outputFields,
			client.WithOffset(offset), client.WithLimit(exportBatchSize),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to export chunks: %w", err)
		}

		rowCount := 0
		for _, col := range rs {
			rowCount = col.Len()
			break
		}
		if rowCount == 0 {
			break
		}

		docs, err := s.documentsFromColumns(rs, rowCount)
		if err != nil {
			return nil, err
		}
		if vecCol, ok := findColumn(rs, s.vectorField).(*entity.ColumnFloatVector); ok {
			for i, doc := range docs {
				doc.Embedding = vecCol.Data()[i]
			}
		}
		all = append(all, docs...)

		if rowCount < exportBatchSize {
			break
		}
	}
	return all, nil
}

// Clear removes all chunks from the collection.
func (s *MilvusStore) Clear(ctx context.Context) error {
	expr := fmt.Sprintf("%s >= 0", milvus.FieldChunkIndex)
	if err := s.client.Delete(ctx, s.collection, "" /* default partition */, expr); err != nil {
		return fmt.Errorf("failed to clear collection: %w", err)
	}
	return nil
}

// documentsFromColumns rebuilds schema documents from Milvus output columns.
func (s *MilvusStore) documentsFromColumns(cols []entity.Column, rowCount int) ([]*schema.Document, error) {
	idCol, ok := findColumn(cols, milvus.FieldID).(*entity.ColumnVarChar)
	if !ok {
		return nil, fmt.Errorf("result is missing the id column")
	}
	textCol, _ := findColumn(cols, milvus.FieldText).(*entity.ColumnVarChar)
	typeCol, _ := findColumn(cols, milvus.FieldEntityType).(*entity.ColumnVarChar)
	sourceCol, _ := findColumn(cols, milvus.FieldSource).(*entity.ColumnVarChar)
	entityIDCol, _ := findColumn(cols, milvus.FieldEntityID).(*entity.ColumnInt64)
	chunkCol, _ := findColumn(cols, milvus.FieldChunkIndex).(*entity.ColumnInt64)
	universeCol, _ := findColumn(cols, milvus.FieldUniverseID).(*entity.ColumnInt64)

	docs := make([]*schema.Document, 0, rowCount)
	for i := 0; i < rowCount; i++ {
		doc := &schema.Document{
			ID:       idCol.Data()[i],
			Metadata: map[string]interface{}{},
		}
		if textCol != nil {
			doc.Text = textCol.Data()[i]
		}
		if typeCol != nil {
			doc.Metadata[schema.MetadataKeyEntityType] = typeCol.Data()[i]
		}
		if sourceCol != nil {
			doc.Metadata[schema.MetadataKeySource] = sourceCol.Data()[i]
		}
		if entityIDCol != nil {
			doc.Metadata[schema.MetadataKeyEntityID] = entityIDCol.Data()[i]
		}
		if chunkCol != nil {
			doc.Metadata[schema.MetadataKeyChunkIndex] = chunkCol.Data()[i]
		}
		if universeCol != nil {
			doc.Metadata[schema.MetadataKeyUniverseID] = universeCol.Data()[i]
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func findColumn(cols []entity.Column, name string) entity.Column {
	for _, col := range cols {
		if col.Name() == name {
			return col
		}
	}
	return nil
}

func metadataInt64(md map[string]interface{}, key string) int64 {
	switch v := md[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case uint:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// compile-time check to ensure MilvusStore implements the VectorStore interface
var _ interfaces.VectorStore = (*MilvusStore)(nil)
