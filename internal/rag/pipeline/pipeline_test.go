package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"astro/internal/rag/schema"
	"astro/internal/rag/splitters"
	"astro/pkg/logger"
)

// fakeEmbedder maps a text to a one-dimensional embedding derived from its
// first byte, so texts sharing a first letter land near each other.
type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		var b byte
		if len(text) > 0 {
			b = text[0]
		}
		out[i] = []float32{float32(b)}
	}
	return out, nil
}

// memoryStore is an in-memory VectorStore ranking by absolute distance on the
// single embedding dimension.
type memoryStore struct {
	docs     map[string]*schema.Document
	queryErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{docs: map[string]*schema.Document{}}
}

func (m *memoryStore) Add(_ context.Context, docs []*schema.Document) error {
	for _, doc := range docs {
		m.docs[doc.ID] = doc
	}
	return nil
}

func (m *memoryStore) Query(_ context.Context, embedding []float32, topK int, universeID uint) ([]*schema.Document, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	var candidates []*schema.Document
	for _, doc := range m.docs {
		if universeID != 0 {
			if uid, _ := doc.Metadata[schema.MetadataKeyUniverseID].(int64); uid != int64(universeID) {
				continue
			}
		}
		candidates = append(candidates, doc)
	}
	sort.Slice(candidates, func(i, j int) bool {
		di := candidates[i].Embedding[0] - embedding[0]
		dj := candidates[j].Embedding[0] - embedding[0]
		if di < 0 {
			di = -di
		}
		if dj < 0 {
			dj = -dj
		}
		return di < dj
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

func (m *memoryStore) DeleteEntity(_ context.Context, entityType string, entityID int64) error {
	prefix := fmt.Sprintf("%s-%d-", entityType, entityID)
	for id := range m.docs {
		if strings.HasPrefix(id, prefix) {
			delete(m.docs, id)
		}
	}
	return nil
}

func (m *memoryStore) Count(_ context.Context) (int64, error) { return int64(len(m.docs)), nil }

func (m *memoryStore) Export(_ context.Context) ([]*schema.Document, error) {
	var out []*schema.Document
	for _, doc := range m.docs {
		out = append(out, doc)
	}
	return out, nil
}

func (m *memoryStore) Clear(_ context.Context) error {
	m.docs = map[string]*schema.Document{}
	return nil
}

// fakeChat records the prompts it was called with.
type fakeChat struct {
	answer     string
	model      string
	err        error
	lastSystem string
	lastUser   string
}

func (f *fakeChat) Chat(_ context.Context, model, system string, _ []schema.ChatMessage, user string) (string, string, error) {
	f.lastSystem = system
	f.lastUser = user
	if f.err != nil {
		return "", "", f.err
	}
	usedModel := f.model
	if usedModel == "" {
		usedModel = model
	}
	return f.answer, usedModel, nil
}

func newTestIndexer(t *testing.T, store *memoryStore, embedder *fakeEmbedder) *Indexer {
	t.Helper()
	splitter, err := splitters.NewTokenSplitter(16, 4)
	if err != nil {
		t.Fatalf("NewTokenSplitter() error = %v", err)
	}
	return NewIndexer(splitter, embedder, store, logger.New("test"))
}

func TestIngestEntityStoresChunksWithMetadata(t *testing.T) {
	store := newMemoryStore()
	indexer := newTestIndexer(t, store, &fakeEmbedder{})

	ref := schema.EntityRef{Type: "note", ID: 7, UniverseID: 3, Source: "note: Groceries"}
	n, err := indexer.IngestEntity(context.Background(), ref, "milk eggs bread butter cheese")
	if err != nil {
		t.Fatalf("IngestEntity() error = %v", err)
	}
	if n == 0 {
		t.Fatal("expected at least one chunk")
	}
	count, _ := store.Count(context.Background())
	if count != int64(n) {
		t.Fatalf("store has %d chunks, reported %d", count, n)
	}
	for id, doc := range store.docs {
		if !strings.HasPrefix(id, "note-7-") {
			t.Errorf("chunk ID %q does not carry the entity key", id)
		}
		if doc.Metadata[schema.MetadataKeySource] != "note: Groceries" {
			t.Errorf("chunk %q lost its source label", id)
		}
		if uid, _ := doc.Metadata[schema.MetadataKeyUniverseID].(int64); uid != 3 {
			t.Errorf("chunk %q has universe %v", id, doc.Metadata[schema.MetadataKeyUniverseID])
		}
	}
}

func TestReingestReplacesAllChunks(t *testing.T) {
	store := newMemoryStore()
	indexer := newTestIndexer(t, store, &fakeEmbedder{})
	ctx := context.Background()

	ref := schema.EntityRef{Type: "note", ID: 1, UniverseID: 1, Source: "note: a"}
	other := schema.EntityRef{Type: "note", ID: 2, UniverseID: 1, Source: "note: b"}

	long := strings.Repeat("one two three four five six seven eight ", 10)
	if _, err := indexer.IngestEntity(ctx, ref, long); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if _, err := indexer.IngestEntity(ctx, other, "untouched neighbour"); err != nil {
		t.Fatalf("neighbour ingest: %v", err)
	}

	n, err := indexer.IngestEntity(ctx, ref, "short now")
	if err != nil {
		t.Fatalf("re-ingest: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 chunk after re-ingest, got %d", n)
	}

	var entityChunks, otherChunks int
	for id := range store.docs {
		switch {
		case strings.HasPrefix(id, "note-1-"):
			entityChunks++
		case strings.HasPrefix(id, "note-2-"):
			otherChunks++
		}
	}
	if entityChunks != 1 {
		t.Errorf("stale chunks survived re-ingest: %d", entityChunks)
	}
	if otherChunks != 1 {
		t.Errorf("neighbour entity was disturbed: %d chunks", otherChunks)
	}
}

func TestIngestEmptyTextJustDeletes(t *testing.T) {
	store := newMemoryStore()
	indexer := newTestIndexer(t, store, &fakeEmbedder{})
	ctx := context.Background()

	ref := schema.EntityRef{Type: "note", ID: 4, UniverseID: 1}
	if _, err := indexer.IngestEntity(ctx, ref, "something"); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	n, err := indexer.IngestEntity(ctx, ref, "   ")
	if err != nil {
		t.Fatalf("empty ingest: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 chunks, got %d", n)
	}
	count, _ := store.Count(ctx)
	if count != 0 {
		t.Errorf("expected empty store, found %d chunks", count)
	}
}

func TestDeleteEntityLeavesNoOrphans(t *testing.T) {
	store := newMemoryStore()
	indexer := newTestIndexer(t, store, &fakeEmbedder{})
	ctx := context.Background()

	a := schema.EntityRef{Type: "action_item", ID: 9, UniverseID: 1}
	b := schema.EntityRef{Type: "action_item", ID: 10, UniverseID: 1}
	indexer.IngestEntity(ctx, a, "call the plumber")
	indexer.IngestEntity(ctx, b, "water the garden")

	if err := indexer.DeleteEntity(ctx, "action_item", 9); err != nil {
		t.Fatalf("DeleteEntity() error = %v", err)
	}
	for id := range store.docs {
		if strings.HasPrefix(id, "action_item-9-") {
			t.Errorf("orphan chunk %q survived deletion", id)
		}
	}
	count, _ := store.Count(ctx)
	if count == 0 {
		t.Error("deletion removed chunks of another entity")
	}
}

func TestRetrieveScopedAndBounded(t *testing.T) {
	store := newMemoryStore()
	embedder := &fakeEmbedder{}
	indexer := newTestIndexer(t, store, embedder)
	ctx := context.Background()

	// Universe 1 gets three entities, universe 2 gets one.
	for i, text := range []string{"apple pie", "apricot jam", "avocado toast"} {
		ref := schema.EntityRef{Type: "note", ID: int64(i + 1), UniverseID: 1}
		if _, err := indexer.IngestEntity(ctx, ref, text); err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
	}
	outside := schema.EntityRef{Type: "note", ID: 99, UniverseID: 2}
	indexer.IngestEntity(ctx, outside, "alien artifact")

	retriever := NewRetriever(embedder, store, logger.New("test"))
	docs, err := retriever.Retrieve(ctx, "apples", 1, 2)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected k=2 results, got %d", len(docs))
	}
	for _, doc := range docs {
		if uid, _ := doc.Metadata[schema.MetadataKeyUniverseID].(int64); uid != 1 {
			t.Errorf("result leaked from universe %d", uid)
		}
	}
}

func TestRetrieveDegradesToEmptyOnEmbedFailure(t *testing.T) {
	store := newMemoryStore()
	retriever := NewRetriever(&fakeEmbedder{err: errors.New("quota exceeded")}, store, logger.New("test"))
	docs, err := retriever.Retrieve(context.Background(), "anything", 1, 4)
	if err != nil {
		t.Fatalf("embedding failure must not surface, got %v", err)
	}
	if docs != nil {
		t.Errorf("expected no documents, got %d", len(docs))
	}
}

func TestRetrieveDegradesToEmptyOnSearchFailure(t *testing.T) {
	store := newMemoryStore()
	store.queryErr = errors.New("collection not loaded")
	retriever := NewRetriever(&fakeEmbedder{}, store, logger.New("test"))
	docs, err := retriever.Retrieve(context.Background(), "anything", 1, 4)
	if err != nil {
		t.Fatalf("search failure must not surface, got %v", err)
	}
	if docs != nil {
		t.Errorf("expected no documents, got %d", len(docs))
	}
}

func TestAnswerWithContextIncludesSources(t *testing.T) {
	store := newMemoryStore()
	embedder := &fakeEmbedder{}
	indexer := newTestIndexer(t, store, embedder)
	ctx := context.Background()

	ref := schema.EntityRef{Type: "note", ID: 1, UniverseID: 1, Source: "note: Picnic plan"}
	indexer.IngestEntity(ctx, ref, "pack sandwiches and lemonade")

	chat := &fakeChat{answer: "Bring sandwiches.", model: "gpt-4o-mini-2024"}
	retriever := NewRetriever(embedder, store, logger.New("test"))
	answerer := NewAnswerer(retriever, chat, 4, logger.New("test"))

	result, err := answerer.Answer(ctx, "picnic food?", nil, true, 1, "gpt-4o-mini", "")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if result.Answer != "Bring sandwiches." {
		t.Errorf("answer = %q", result.Answer)
	}
	if result.Model != "gpt-4o-mini-2024" {
		t.Errorf("model = %q, want the provider-reported one", result.Model)
	}
	if !strings.Contains(chat.lastSystem, "[Source: note: Picnic plan]") {
		t.Error("system prompt is missing the source-labelled context block")
	}
	if !strings.Contains(chat.lastSystem, "Today's date is") {
		t.Error("system prompt is missing the date blurb")
	}
}

func TestAnswerWithoutContextSkipsRetrieval(t *testing.T) {
	store := newMemoryStore()
	embedder := &fakeEmbedder{}
	chat := &fakeChat{answer: "ok"}
	retriever := NewRetriever(embedder, store, logger.New("test"))
	answerer := NewAnswerer(retriever, chat, 4, logger.New("test"))

	if _, err := answerer.Answer(context.Background(), "hi", nil, false, 1, "gpt-4o-mini", ""); err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if embedder.calls != 0 {
		t.Errorf("retrieval ran despite use_context=false (%d embed calls)", embedder.calls)
	}
	if strings.Contains(chat.lastSystem, "Context:") {
		t.Error("direct answers must not carry a context block")
	}
}

func TestAnswerSurfacesProviderErrorVerbatim(t *testing.T) {
	store := newMemoryStore()
	chat := &fakeChat{err: errors.New("model overloaded: try again later")}
	retriever := NewRetriever(&fakeEmbedder{}, store, logger.New("test"))
	answerer := NewAnswerer(retriever, chat, 4, logger.New("test"))

	_, err := answerer.Answer(context.Background(), "hi", nil, false, 1, "gpt-4o-mini", "")
	if err == nil {
		t.Fatal("expected the provider error to surface")
	}
	if err.Error() != "model overloaded: try again later" {
		t.Errorf("error was rewritten: %q", err.Error())
	}
}
