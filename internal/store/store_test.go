package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"astro/internal/database/sqlite"
	"astro/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	return New(db)
}

func TestSeedCreatesDefaultUniverse(t *testing.T) {
	s := newTestStore(t)
	universes, err := s.ListUniverses()
	if err != nil {
		t.Fatalf("ListUniverses() error = %v", err)
	}
	if len(universes) != 1 || universes[0].Name != "Main" {
		t.Fatalf("expected a single seeded universe named Main, got %+v", universes)
	}
}

func TestNoteCRUDAndImageCleanup(t *testing.T) {
	s := newTestStore(t)

	note := &models.Note{Title: "Groceries", Body: "milk, eggs", UniverseID: 1}
	if err := s.CreateNote(note); err != nil {
		t.Fatalf("CreateNote() error = %v", err)
	}
	if note.ID == 0 {
		t.Fatal("CreateNote() did not assign an ID")
	}

	got, err := s.GetNote(note.ID)
	if err != nil {
		t.Fatalf("GetNote() error = %v", err)
	}
	if got == nil || got.Title != "Groceries" {
		t.Fatalf("GetNote() = %+v", got)
	}

	got.Body = "milk, eggs, bread"
	if err := s.UpdateNote(got); err != nil {
		t.Fatalf("UpdateNote() error = %v", err)
	}

	if err := s.AddNoteImage(&models.NoteImage{NoteID: note.ID, Filename: "abc.png", OriginalName: "photo.png"}); err != nil {
		t.Fatalf("AddNoteImage() error = %v", err)
	}
	if err := s.AddNoteImage(&models.NoteImage{NoteID: note.ID, Filename: "def.jpg"}); err != nil {
		t.Fatalf("AddNoteImage() error = %v", err)
	}

	filenames, err := s.DeleteNote(note.ID)
	if err != nil {
		t.Fatalf("DeleteNote() error = %v", err)
	}
	if len(filenames) != 2 {
		t.Fatalf("DeleteNote() returned %d filenames, want 2", len(filenames))
	}

	gone, err := s.GetNote(note.ID)
	if err != nil {
		t.Fatalf("GetNote() after delete error = %v", err)
	}
	if gone != nil {
		t.Error("note survived deletion")
	}
}

func TestGetNoteMissingReturnsNil(t *testing.T) {
	s := newTestStore(t)
	note, err := s.GetNote(12345)
	if err != nil {
		t.Fatalf("GetNote() error = %v", err)
	}
	if note != nil {
		t.Errorf("expected nil for a missing note, got %+v", note)
	}
}

func TestListNotesPinnedFirstAndCategoryScoped(t *testing.T) {
	s := newTestStore(t)

	work := &models.Category{Name: "Work", UniverseID: 1}
	if err := s.CreateCategory(work); err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}

	plain := &models.Note{Title: "plain", UniverseID: 1}
	pinned := &models.Note{Title: "pinned", UniverseID: 1}
	inWork := &models.Note{Title: "report", CategoryID: &work.ID, UniverseID: 1}
	for _, n := range []*models.Note{plain, pinned, inWork} {
		if err := s.CreateNote(n); err != nil {
			t.Fatalf("CreateNote(%s) error = %v", n.Title, err)
		}
	}
	if err := s.SetNotePinned(pinned.ID, true); err != nil {
		t.Fatalf("SetNotePinned() error = %v", err)
	}

	notes, err := s.ListNotes(1, nil)
	if err != nil {
		t.Fatalf("ListNotes() error = %v", err)
	}
	if len(notes) != 3 {
		t.Fatalf("ListNotes() returned %d notes, want 3", len(notes))
	}
	if notes[0].ID != pinned.ID {
		t.Errorf("pinned note is not first: got %q", notes[0].Title)
	}

	scoped, err := s.ListNotes(1, &work.ID)
	if err != nil {
		t.Fatalf("ListNotes(category) error = %v", err)
	}
	if len(scoped) != 1 || scoped[0].ID != inWork.ID {
		t.Errorf("category filter returned %+v", scoped)
	}
}

func TestDescendantCategoryIDsWalksSubtree(t *testing.T) {
	s := newTestStore(t)

	root := &models.Category{Name: "Root", UniverseID: 1}
	if err := s.CreateCategory(root); err != nil {
		t.Fatalf("create root: %v", err)
	}
	child := &models.Category{Name: "Child", ParentID: &root.ID, UniverseID: 1}
	if err := s.CreateCategory(child); err != nil {
		t.Fatalf("create child: %v", err)
	}
	grandchild := &models.Category{Name: "Grandchild", ParentID: &child.ID, UniverseID: 1}
	if err := s.CreateCategory(grandchild); err != nil {
		t.Fatalf("create grandchild: %v", err)
	}
	sibling := &models.Category{Name: "Sibling", UniverseID: 1}
	if err := s.CreateCategory(sibling); err != nil {
		t.Fatalf("create sibling: %v", err)
	}

	ids, err := s.DescendantCategoryIDs(root.ID, 1)
	if err != nil {
		t.Fatalf("DescendantCategoryIDs() error = %v", err)
	}
	want := map[uint]bool{root.ID: true, child.ID: true, grandchild.ID: true}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want the root subtree only", ids)
	}
	for _, id := range ids {
		if !want[id] {
			t.Errorf("unexpected ID %d in subtree", id)
		}
	}
}

func TestDeleteCategoryDetachesReferences(t *testing.T) {
	s := newTestStore(t)

	cat := &models.Category{Name: "Doomed", UniverseID: 1}
	if err := s.CreateCategory(cat); err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}
	note := &models.Note{Title: "orphan-to-be", CategoryID: &cat.ID, UniverseID: 1}
	if err := s.CreateNote(note); err != nil {
		t.Fatalf("CreateNote() error = %v", err)
	}

	if err := s.DeleteCategory(cat.ID); err != nil {
		t.Fatalf("DeleteCategory() error = %v", err)
	}

	got, err := s.GetNote(note.ID)
	if err != nil {
		t.Fatalf("GetNote() error = %v", err)
	}
	if got.CategoryID != nil {
		t.Errorf("note still references the deleted category: %v", *got.CategoryID)
	}

	if err := s.DeleteCategory(cat.ID); err == nil {
		t.Error("deleting a missing category should fail")
	}
}

func TestAddActionItemLinkRejectsDuplicates(t *testing.T) {
	s := newTestStore(t)

	note := &models.Note{Title: "target", UniverseID: 1}
	if err := s.CreateNote(note); err != nil {
		t.Fatalf("CreateNote() error = %v", err)
	}
	item := &models.ActionItem{Title: "call back", UniverseID: 1}
	if err := s.CreateActionItem(item); err != nil {
		t.Fatalf("CreateActionItem() error = %v", err)
	}

	link := &models.ActionItemLink{ActionItemID: item.ID, NoteID: &note.ID}
	if err := s.AddActionItemLink(link); err != nil {
		t.Fatalf("AddActionItemLink() error = %v", err)
	}
	dup := &models.ActionItemLink{ActionItemID: item.ID, NoteID: &note.ID}
	if err := s.AddActionItemLink(dup); !errors.Is(err, ErrDuplicateLink) {
		t.Errorf("duplicate link error = %v, want ErrDuplicateLink", err)
	}
	if err := s.AddActionItemLink(&models.ActionItemLink{ActionItemID: item.ID}); err == nil {
		t.Error("a link without a target should be rejected")
	}
}

func TestDeleteUniverseCascadesAndProtectsLast(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.DeleteUniverse(1); !errors.Is(err, ErrLastUniverse) {
		t.Fatalf("deleting the last universe: error = %v, want ErrLastUniverse", err)
	}

	second, err := s.CreateUniverse("Side project")
	if err != nil {
		t.Fatalf("CreateUniverse() error = %v", err)
	}
	note := &models.Note{Title: "in second", UniverseID: second.ID}
	if err := s.CreateNote(note); err != nil {
		t.Fatalf("CreateNote() error = %v", err)
	}
	if err := s.AddNoteImage(&models.NoteImage{NoteID: note.ID, Filename: "x.png"}); err != nil {
		t.Fatalf("AddNoteImage() error = %v", err)
	}
	feed := &models.Feed{Title: "Pipeline", APIKey: "k", UniverseID: second.ID}
	if err := s.CreateFeed(feed); err != nil {
		t.Fatalf("CreateFeed() error = %v", err)
	}
	artifact := &models.FeedArtifact{FeedID: feed.ID, Title: "report", ContentType: models.ArtifactMarkup, Markup: "x"}
	if err := s.CreateFeedArtifact(artifact); err != nil {
		t.Fatalf("CreateFeedArtifact() error = %v", err)
	}

	purge, err := s.DeleteUniverse(second.ID)
	if err != nil {
		t.Fatalf("DeleteUniverse() error = %v", err)
	}
	if len(purge.NoteIDs) != 1 || purge.NoteIDs[0] != note.ID {
		t.Errorf("purge.NoteIDs = %v, want [%d]", purge.NoteIDs, note.ID)
	}
	if len(purge.ArtifactIDs) != 1 || purge.ArtifactIDs[0] != artifact.ID {
		t.Errorf("purge.ArtifactIDs = %v, want [%d]", purge.ArtifactIDs, artifact.ID)
	}
	gone, err := s.GetNote(note.ID)
	if err != nil {
		t.Fatalf("GetNote() error = %v", err)
	}
	if gone != nil {
		t.Error("note survived universe deletion")
	}
	img, err := s.GetNoteImage(1)
	if err != nil {
		t.Fatalf("GetNoteImage() error = %v", err)
	}
	if img != nil {
		t.Error("note image survived universe deletion")
	}
}

func TestGetSettingFallback(t *testing.T) {
	s := newTestStore(t)

	value, err := s.GetSetting("selected_model", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("GetSetting() error = %v", err)
	}
	if value != "gpt-4o-mini" {
		t.Errorf("missing key: got %q, want the fallback", value)
	}

	if err := s.PutSetting("selected_model", "gpt-4o"); err != nil {
		t.Fatalf("PutSetting() error = %v", err)
	}
	value, err = s.GetSetting("selected_model", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("GetSetting() error = %v", err)
	}
	if value != "gpt-4o" {
		t.Errorf("stored key: got %q", value)
	}

	if err := s.PutSetting("selected_model", ""); err != nil {
		t.Fatalf("PutSetting(empty) error = %v", err)
	}
	value, err = s.GetSetting("selected_model", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("GetSetting() error = %v", err)
	}
	if value != "gpt-4o-mini" {
		t.Errorf("empty value should fall back: got %q", value)
	}
}

func TestUpdateActivityReplacesTasks(t *testing.T) {
	s := newTestStore(t)

	alice := &models.TeamMember{Name: "Alice"}
	bob := &models.TeamMember{Name: "Bob"}
	if err := s.CreateTeamMember(alice); err != nil {
		t.Fatalf("create member: %v", err)
	}
	if err := s.CreateTeamMember(bob); err != nil {
		t.Fatalf("create member: %v", err)
	}

	activity := &models.Activity{Name: "Standup", Schedule: models.ScheduleManual}
	tasks := []TaskInput{
		{MemberID: alice.ID, Instruction: "summarize yesterday"},
		{MemberID: bob.ID, Instruction: "list blockers"},
	}
	if err := s.CreateActivity(activity, tasks); err != nil {
		t.Fatalf("CreateActivity() error = %v", err)
	}

	got, err := s.GetActivity(activity.ID)
	if err != nil {
		t.Fatalf("GetActivity() error = %v", err)
	}
	if len(got.Tasks) != 2 {
		t.Fatalf("activity has %d tasks, want 2", len(got.Tasks))
	}
	if got.Tasks[0].Member == nil || got.Tasks[0].Member.Name != "Alice" {
		t.Errorf("first task member = %+v", got.Tasks[0].Member)
	}

	// Replacing with one task drops the old chain entirely.
	got.Name = "Daily digest"
	if err := s.UpdateActivity(got, []TaskInput{{MemberID: bob.ID, Instruction: "write the digest"}}); err != nil {
		t.Fatalf("UpdateActivity() error = %v", err)
	}
	got, err = s.GetActivity(activity.ID)
	if err != nil {
		t.Fatalf("GetActivity() error = %v", err)
	}
	if got.Name != "Daily digest" || len(got.Tasks) != 1 {
		t.Fatalf("after replace: name=%q tasks=%d", got.Name, len(got.Tasks))
	}

	// A nil task list keeps the existing chain.
	if err := s.UpdateActivity(got, nil); err != nil {
		t.Fatalf("UpdateActivity(nil tasks) error = %v", err)
	}
	got, err = s.GetActivity(activity.ID)
	if err != nil {
		t.Fatalf("GetActivity() error = %v", err)
	}
	if len(got.Tasks) != 1 {
		t.Errorf("nil tasks wiped the chain: %d tasks left", len(got.Tasks))
	}
}

func TestRunLifecycle(t *testing.T) {
	s := newTestStore(t)

	member := &models.TeamMember{Name: "Alice"}
	if err := s.CreateTeamMember(member); err != nil {
		t.Fatalf("create member: %v", err)
	}
	activity := &models.Activity{Name: "Digest", Schedule: models.ScheduleManual}
	if err := s.CreateActivity(activity, []TaskInput{{MemberID: member.ID, Instruction: "do it"}}); err != nil {
		t.Fatalf("CreateActivity() error = %v", err)
	}

	last, err := s.LastRunStart(activity.ID)
	if err != nil {
		t.Fatalf("LastRunStart() error = %v", err)
	}
	if last != nil {
		t.Errorf("never-run activity reported a start time %v", last)
	}

	run, err := s.CreateRun(activity.ID, "gpt-4o-mini")
	if err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	if run.Status != models.RunStatusRunning {
		t.Errorf("new run status = %q", run.Status)
	}

	for i, text := range []string{"first answer", "second answer"} {
		err := s.AppendResponse(&models.ActivityResponse{
			RunID:       run.ID,
			MemberID:    member.ID,
			MemberName:  "Alice",
			Instruction: "do it",
			Response:    text,
		})
		if err != nil {
			t.Fatalf("AppendResponse(%d) error = %v", i, err)
		}
	}
	if err := s.FinishRun(run.ID, models.RunStatusCompleted, ""); err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}

	got, err := s.GetRun(run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Status != models.RunStatusCompleted || got.CompletedAt == nil {
		t.Errorf("finished run: status=%q completedAt=%v", got.Status, got.CompletedAt)
	}
	if len(got.Responses) != 2 || got.Responses[0].Response != "first answer" {
		t.Errorf("responses out of order: %+v", got.Responses)
	}

	last, err = s.LastRunStart(activity.ID)
	if err != nil {
		t.Fatalf("LastRunStart() error = %v", err)
	}
	if last == nil || time.Since(*last) > time.Minute {
		t.Errorf("LastRunStart() = %v", last)
	}

	if err := s.ClearRuns(activity.ID); err != nil {
		t.Fatalf("ClearRuns() error = %v", err)
	}
	gone, err := s.GetRun(run.ID)
	if err != nil {
		t.Fatalf("GetRun() after clear error = %v", err)
	}
	if gone != nil {
		t.Error("run survived ClearRuns")
	}
}

func TestUpsertDocumentByPath(t *testing.T) {
	s := newTestStore(t)

	doc := &models.Document{Path: "pdf/report.pdf", UniverseID: 1}
	if err := s.UpsertDocument(doc); err != nil {
		t.Fatalf("UpsertDocument() error = %v", err)
	}
	again := &models.Document{Path: "pdf/report.pdf", UniverseID: 1}
	if err := s.UpsertDocument(again); err != nil {
		t.Fatalf("UpsertDocument() second call error = %v", err)
	}
	if doc.ID != again.ID {
		t.Errorf("upsert created a duplicate row: %d vs %d", doc.ID, again.ID)
	}

	byPath, err := s.GetDocumentByPath("pdf/report.pdf")
	if err != nil {
		t.Fatalf("GetDocumentByPath() error = %v", err)
	}
	if byPath == nil || byPath.ID != doc.ID {
		t.Errorf("GetDocumentByPath() = %+v", byPath)
	}
}
