package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"astro/internal/activity"
	"astro/internal/backup"
	"astro/internal/config"
	"astro/internal/database/sqlite"
	"astro/internal/models"
	"astro/internal/rag/pipeline"
	"astro/internal/rag/schema"
	"astro/internal/rag/splitters"
	"astro/internal/store"
	"astro/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// memoryVectors is an in-memory vector store for exercising handlers
// without Milvus.
type memoryVectors struct {
	docs map[string]*schema.Document
}

func newMemoryVectors() *memoryVectors {
	return &memoryVectors{docs: map[string]*schema.Document{}}
}

func (m *memoryVectors) Add(_ context.Context, docs []*schema.Document) error {
	for _, doc := range docs {
		m.docs[doc.ID] = doc
	}
	return nil
}

func (m *memoryVectors) Query(_ context.Context, _ []float32, topK int, universeID uint) ([]*schema.Document, error) {
	var out []*schema.Document
	for _, doc := range m.docs {
		if universeID != 0 {
			if uid, _ := doc.Metadata[schema.MetadataKeyUniverseID].(int64); uid != int64(universeID) {
				continue
			}
		}
		if len(out) >= topK {
			break
		}
		out = append(out, doc)
	}
	return out, nil
}

func (m *memoryVectors) DeleteEntity(_ context.Context, entityType string, entityID int64) error {
	prefix := fmt.Sprintf("%s-%d-", entityType, entityID)
	for id := range m.docs {
		if strings.HasPrefix(id, prefix) {
			delete(m.docs, id)
		}
	}
	return nil
}

func (m *memoryVectors) Count(_ context.Context) (int64, error) { return int64(len(m.docs)), nil }

func (m *memoryVectors) Export(_ context.Context) ([]*schema.Document, error) {
	var out []*schema.Document
	for _, doc := range m.docs {
		out = append(out, doc)
	}
	return out, nil
}

func (m *memoryVectors) Clear(_ context.Context) error {
	m.docs = map[string]*schema.Document{}
	return nil
}

func (m *memoryVectors) hasEntity(entityType string, entityID int64) bool {
	prefix := fmt.Sprintf("%s-%d-", entityType, entityID)
	for id := range m.docs {
		if strings.HasPrefix(id, prefix) {
			return true
		}
	}
	return false
}

type flatEmbedder struct{}

func (flatEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1}
	}
	return out, nil
}

type cannedChat struct {
	answer string
}

func (f *cannedChat) Chat(_ context.Context, model, _ string, _ []schema.ChatMessage, _ string) (string, string, error) {
	return f.answer, model, nil
}

type testAPI struct {
	router  *gin.Engine
	store   *store.Store
	vectors *memoryVectors
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	storage := config.StorageConfig{
		DataDir:      t.TempDir(),
		DatabaseFile: "astro.db",
		ImagesDir:    "images",
		DocumentsDir: "documents",
	}
	db, err := sqlite.Open(storage.DatabasePath())
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	st := store.New(db)

	vectors := newMemoryVectors()
	splitter, err := splitters.NewTokenSplitter(64, 8)
	if err != nil {
		t.Fatalf("NewTokenSplitter() error = %v", err)
	}
	embedder := flatEmbedder{}
	chat := &cannedChat{answer: "canned answer"}
	log := logger.New("test")

	indexer := pipeline.NewIndexer(splitter, embedder, vectors, log)
	retriever := pipeline.NewRetriever(embedder, vectors, log)
	answerer := pipeline.NewAnswerer(retriever, chat, 4, log)
	runner := activity.NewRunner(st, retriever, chat, nil, "gpt-4o-mini", 8)
	backupManager := backup.NewManager(storage, vectors)

	h := NewHandler(st, indexer, answerer, runner, vectors, backupManager, storage)
	return &testAPI{router: SetupRouter(h), store: st, vectors: vectors}
}

func (a *testAPI) doJSON(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func TestNoteLifecycle(t *testing.T) {
	api := newTestAPI(t)

	w := api.doJSON(t, http.MethodPost, "/api/notes", gin.H{"title": "Groceries", "body": "milk and eggs"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create note: status %d, body %s", w.Code, w.Body.String())
	}
	var note models.Note
	decode(t, w, &note)
	if note.ID == 0 || note.UniverseID != 1 {
		t.Fatalf("created note = %+v", note)
	}
	if !api.vectors.hasEntity(models.EntityNote, int64(note.ID)) {
		t.Error("created note was not vectorized")
	}

	w = api.doJSON(t, http.MethodPut, fmt.Sprintf("/api/notes/%d", note.ID), gin.H{"title": "Groceries", "body": "milk, eggs, bread"})
	if w.Code != http.StatusOK {
		t.Fatalf("update note: status %d, body %s", w.Code, w.Body.String())
	}

	w = api.doJSON(t, http.MethodGet, fmt.Sprintf("/api/notes/%d", note.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get note: status %d", w.Code)
	}
	decode(t, w, &note)
	if note.Body != "milk, eggs, bread" {
		t.Errorf("updated body = %q", note.Body)
	}

	w = api.doJSON(t, http.MethodDelete, fmt.Sprintf("/api/notes/%d", note.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete note: status %d", w.Code)
	}
	if api.vectors.hasEntity(models.EntityNote, int64(note.ID)) {
		t.Error("deleted note left chunks behind")
	}

	w = api.doJSON(t, http.MethodGet, fmt.Sprintf("/api/notes/%d", note.ID), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get deleted note: status %d, want 404", w.Code)
	}
}

func TestCreateNoteValidation(t *testing.T) {
	api := newTestAPI(t)
	w := api.doJSON(t, http.MethodPost, "/api/notes", gin.H{"body": "no title"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("untitled note: status %d, want 400", w.Code)
	}
}

func TestQueryRequiresIngestedContent(t *testing.T) {
	api := newTestAPI(t)

	w := api.doJSON(t, http.MethodPost, "/api/query", gin.H{"question": "what do I need?"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty-store query: status %d, body %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	decode(t, w, &resp)
	if !strings.Contains(resp["error"], "Vector store is empty") {
		t.Errorf("error = %q", resp["error"])
	}

	// Disabling context sidesteps the requirement.
	w = api.doJSON(t, http.MethodPost, "/api/query", gin.H{"question": "hello", "use_context": false, "model": "gpt-4o"})
	if w.Code != http.StatusOK {
		t.Fatalf("direct query: status %d, body %s", w.Code, w.Body.String())
	}
	var answer map[string]string
	decode(t, w, &answer)
	if answer["answer"] != "canned answer" || answer["model"] != "gpt-4o" {
		t.Errorf("direct query response = %v", answer)
	}
}

func TestQueryWithContext(t *testing.T) {
	api := newTestAPI(t)

	w := api.doJSON(t, http.MethodPost, "/api/notes", gin.H{"title": "Trip", "body": "flight leaves at noon"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create note: status %d", w.Code)
	}

	w = api.doJSON(t, http.MethodPost, "/api/query", gin.H{"question": "when is the flight?", "model": "gpt-4o-mini"})
	if w.Code != http.StatusOK {
		t.Fatalf("query: status %d, body %s", w.Code, w.Body.String())
	}

	w = api.doJSON(t, http.MethodGet, "/api/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats: status %d", w.Code)
	}
	var stats map[string]int
	decode(t, w, &stats)
	if stats["chunks"] == 0 {
		t.Error("stats reports an empty store after ingesting a note")
	}
}

func TestFeedIngestAuthAndMarkup(t *testing.T) {
	api := newTestAPI(t)

	w := api.doJSON(t, http.MethodPost, "/api/feeds", gin.H{"title": "CI reports"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create feed: status %d, body %s", w.Code, w.Body.String())
	}
	var feed models.Feed
	decode(t, w, &feed)
	if feed.APIKey == "" {
		t.Fatal("created feed has no API key")
	}

	ingest := func(key string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		mw.WriteField("title", "Nightly build")
		mw.WriteField("markup", "All 132 tests passed.")
		mw.Close()
		req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/feeds/%d/ingest", feed.ID), &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		if key != "" {
			req.Header.Set("X-Feed-Key", key)
		}
		w := httptest.NewRecorder()
		api.router.ServeHTTP(w, req)
		return w
	}

	if w := ingest("wrong-key"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong key: status %d, want 401", w.Code)
	}
	if w := ingest(""); w.Code != http.StatusUnauthorized {
		t.Errorf("missing key: status %d, want 401", w.Code)
	}

	w2 := ingest(feed.APIKey)
	if w2.Code != http.StatusCreated {
		t.Fatalf("ingest: status %d, body %s", w2.Code, w2.Body.String())
	}
	var resp struct {
		OK          bool   `json:"ok"`
		ArtifactID  uint   `json:"artifact_id"`
		ContentType string `json:"content_type"`
	}
	decode(t, w2, &resp)
	if !resp.OK || resp.ArtifactID == 0 || resp.ContentType != models.ArtifactMarkup {
		t.Fatalf("ingest response = %+v", resp)
	}
	if !api.vectors.hasEntity(models.EntityFeed, int64(resp.ArtifactID)) {
		t.Error("markup artifact was not vectorized")
	}

	w = api.doJSON(t, http.MethodGet, fmt.Sprintf("/api/feeds/%d/artifacts", feed.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list artifacts: status %d", w.Code)
	}
	var artifacts []models.FeedArtifact
	decode(t, w, &artifacts)
	if len(artifacts) != 1 || artifacts[0].Title != "Nightly build" {
		t.Errorf("artifacts = %+v", artifacts)
	}
}

func TestPinFeedSurfacesInPinnedList(t *testing.T) {
	api := newTestAPI(t)

	w := api.doJSON(t, http.MethodPost, "/api/feeds", gin.H{"title": "CI reports"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create feed: status %d", w.Code)
	}
	var feed models.Feed
	decode(t, w, &feed)

	w = api.doJSON(t, http.MethodPut, fmt.Sprintf("/api/feeds/%d/pin", feed.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("pin feed: status %d, body %s", w.Code, w.Body.String())
	}

	var pinned struct {
		Feeds []models.Feed `json:"feeds"`
	}
	w = api.doJSON(t, http.MethodGet, "/api/pinned", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list pinned: status %d", w.Code)
	}
	decode(t, w, &pinned)
	if len(pinned.Feeds) != 1 || pinned.Feeds[0].ID != feed.ID {
		t.Fatalf("pinned feeds = %+v, want the pinned feed", pinned.Feeds)
	}

	w = api.doJSON(t, http.MethodPut, fmt.Sprintf("/api/feeds/%d/pin?pinned=false", feed.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unpin feed: status %d", w.Code)
	}
	w = api.doJSON(t, http.MethodGet, "/api/pinned", nil)
	decode(t, w, &pinned)
	if len(pinned.Feeds) != 0 {
		t.Errorf("pinned feeds after unpin = %+v", pinned.Feeds)
	}
}

func TestDeleteLastUniverseRejected(t *testing.T) {
	api := newTestAPI(t)
	w := api.doJSON(t, http.MethodDelete, "/api/universes/1", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("delete last universe: status %d, want 400", w.Code)
	}
}

func TestDeleteUniverseDropsVectorChunks(t *testing.T) {
	api := newTestAPI(t)

	w := api.doJSON(t, http.MethodPost, "/api/universes", gin.H{"name": "Side project"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create universe: status %d", w.Code)
	}
	var side models.Universe
	decode(t, w, &side)

	w = api.doJSON(t, http.MethodPost, fmt.Sprintf("/api/notes?universe_id=%d", side.ID), gin.H{"title": "Roadmap", "body": "ship the beta"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create note: status %d", w.Code)
	}
	var note models.Note
	decode(t, w, &note)
	if !api.vectors.hasEntity(models.EntityNote, int64(note.ID)) {
		t.Fatal("created note was not vectorized")
	}

	w = api.doJSON(t, http.MethodDelete, fmt.Sprintf("/api/universes/%d", side.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete universe: status %d, body %s", w.Code, w.Body.String())
	}
	if api.vectors.hasEntity(models.EntityNote, int64(note.ID)) {
		t.Error("universe deletion left note chunks behind")
	}
	w = api.doJSON(t, http.MethodGet, fmt.Sprintf("/api/notes/%d", note.ID), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get note after universe deletion: status %d, want 404", w.Code)
	}
}

func TestUniverseScopesNotes(t *testing.T) {
	api := newTestAPI(t)

	w := api.doJSON(t, http.MethodPost, "/api/universes", gin.H{"name": "Side project"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create universe: status %d", w.Code)
	}
	var side models.Universe
	decode(t, w, &side)

	w = api.doJSON(t, http.MethodPost, fmt.Sprintf("/api/notes?universe_id=%d", side.ID), gin.H{"title": "only here"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create note: status %d", w.Code)
	}

	var notes []models.Note
	w = api.doJSON(t, http.MethodGet, "/api/notes?universe_id=1", nil)
	decode(t, w, &notes)
	if len(notes) != 0 {
		t.Errorf("universe 1 sees %d foreign notes", len(notes))
	}
	w = api.doJSON(t, http.MethodGet, fmt.Sprintf("/api/notes?universe_id=%d", side.ID), nil)
	decode(t, w, &notes)
	if len(notes) != 1 {
		t.Errorf("universe %d has %d notes, want 1", side.ID, len(notes))
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	api := newTestAPI(t)

	w := api.doJSON(t, http.MethodGet, "/api/settings/selected_model", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get setting: status %d", w.Code)
	}
	var got map[string]string
	decode(t, w, &got)
	if got["value"] != "" {
		t.Errorf("unset key value = %q", got["value"])
	}

	w = api.doJSON(t, http.MethodPut, "/api/settings/selected_model", gin.H{"value": "gpt-4o"})
	if w.Code != http.StatusOK {
		t.Fatalf("put setting: status %d", w.Code)
	}
	w = api.doJSON(t, http.MethodGet, "/api/settings/selected_model", nil)
	decode(t, w, &got)
	if got["value"] != "gpt-4o" {
		t.Errorf("stored value = %q", got["value"])
	}
}

func TestRunActivityAsync(t *testing.T) {
	api := newTestAPI(t)

	var member models.TeamMember
	w := api.doJSON(t, http.MethodPost, "/api/team-members", gin.H{"name": "Alice", "title": "Analyst"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create member: status %d, body %s", w.Code, w.Body.String())
	}
	decode(t, w, &member)

	var act models.Activity
	w = api.doJSON(t, http.MethodPost, "/api/activities", gin.H{
		"name":  "Digest",
		"tasks": []gin.H{{"member_id": member.ID, "instruction": "summarize"}},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create activity: status %d, body %s", w.Code, w.Body.String())
	}
	decode(t, w, &act)

	w = api.doJSON(t, http.MethodPost, fmt.Sprintf("/api/activities/%d/run", act.ID), nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("run activity: status %d, body %s", w.Code, w.Body.String())
	}

	// The run executes in the background; poll its history until it lands.
	deadline := time.Now().Add(5 * time.Second)
	var runs []models.ActivityRun
	for {
		w = api.doJSON(t, http.MethodGet, fmt.Sprintf("/api/activities/%d/runs", act.ID), nil)
		decode(t, w, &runs)
		if len(runs) > 0 && runs[0].Status != models.RunStatusRunning {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("run never finished: %+v", runs)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if runs[0].Status != models.RunStatusCompleted {
		t.Fatalf("run status = %q", runs[0].Status)
	}

	var detail struct {
		Run       models.ActivityRun        `json:"run"`
		Responses []models.ActivityResponse `json:"responses"`
	}
	w = api.doJSON(t, http.MethodGet, fmt.Sprintf("/api/activity-runs/%d", runs[0].ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get run: status %d", w.Code)
	}
	decode(t, w, &detail)
	if len(detail.Responses) != 1 || detail.Responses[0].MemberName != "Alice" {
		t.Errorf("run responses = %+v", detail.Responses)
	}
	if detail.Responses[0].Response != "canned answer" {
		t.Errorf("response text = %q", detail.Responses[0].Response)
	}
}

func TestRunActivityWithoutTasks(t *testing.T) {
	api := newTestAPI(t)

	var act models.Activity
	w := api.doJSON(t, http.MethodPost, "/api/activities", gin.H{"name": "Empty"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create activity: status %d, body %s", w.Code, w.Body.String())
	}
	decode(t, w, &act)

	w = api.doJSON(t, http.MethodPost, fmt.Sprintf("/api/activities/%d/run", act.ID), nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("run without tasks: status %d, want 400", w.Code)
	}
}

func TestActionItemLinkTargets(t *testing.T) {
	api := newTestAPI(t)

	var note models.Note
	w := api.doJSON(t, http.MethodPost, "/api/notes", gin.H{"title": "Plan"})
	decode(t, w, &note)

	var item models.ActionItem
	w = api.doJSON(t, http.MethodPost, "/api/action-items", gin.H{"title": "write the plan"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create action item: status %d, body %s", w.Code, w.Body.String())
	}
	decode(t, w, &item)

	// Exactly one target is required.
	w = api.doJSON(t, http.MethodPost, fmt.Sprintf("/api/action-items/%d/links", item.ID), gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("link without target: status %d, want 400", w.Code)
	}

	w = api.doJSON(t, http.MethodPost, fmt.Sprintf("/api/action-items/%d/links", item.ID), gin.H{"note_id": note.ID})
	if w.Code != http.StatusCreated {
		t.Fatalf("link to note: status %d, body %s", w.Code, w.Body.String())
	}
	// Linking the same note twice is rejected.
	w = api.doJSON(t, http.MethodPost, fmt.Sprintf("/api/action-items/%d/links", item.ID), gin.H{"note_id": note.ID})
	if w.Code != http.StatusBadRequest {
		t.Errorf("duplicate link: status %d, want 400", w.Code)
	}

	var links []map[string]interface{}
	w = api.doJSON(t, http.MethodGet, fmt.Sprintf("/api/action-items/%d/links", item.ID), nil)
	decode(t, w, &links)
	if len(links) != 1 {
		t.Fatalf("got %d links, want 1", len(links))
	}
	if links[0]["display_name"] != "Plan" {
		t.Errorf("display_name = %v", links[0]["display_name"])
	}
}

func TestBackupDownloadIsAZip(t *testing.T) {
	api := newTestAPI(t)

	w := api.doJSON(t, http.MethodGet, "/api/backup", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("backup: status %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/zip" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "astro-backup-") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("PK")) {
		t.Error("response body is not a ZIP archive")
	}
}

func TestServeNoteImageMissingFile(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/api/note-images/file/nope.png", nil)
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing image: status %d, want 404", w.Code)
	}
}
