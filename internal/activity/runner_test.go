package activity

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"astro/internal/database/sqlite"
	"astro/internal/models"
	"astro/internal/rag/schema"
	"astro/internal/store"
)

// stubRetriever returns a fixed set of chunks.
type stubRetriever struct {
	docs []*schema.Document
}

func (f *stubRetriever) Retrieve(_ context.Context, _ string, _ uint, _ int) ([]*schema.Document, error) {
	return f.docs, nil
}

// scriptedChat answers each call in order and can fail at a chosen call.
type scriptedChat struct {
	failAt  int // 1-based call number that errors, 0 for never
	calls   int
	systems []string
	users   []string
	block   chan struct{} // when set, Chat waits on it before answering
}

func (f *scriptedChat) Chat(_ context.Context, _, system string, _ []schema.ChatMessage, user string) (string, string, error) {
	f.calls++
	f.systems = append(f.systems, system)
	f.users = append(f.users, user)
	if f.block != nil {
		<-f.block
	}
	if f.failAt != 0 && f.calls == f.failAt {
		return "", "", errors.New("provider rejected the request")
	}
	return fmt.Sprintf("answer %d", f.calls), "gpt-4o-mini", nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	return store.New(db)
}

// seedActivity creates two members and a two-task activity, returning its ID.
func seedActivity(t *testing.T, st *store.Store) uint {
	t.Helper()
	alice := &models.TeamMember{Name: "Alice", Title: "Researcher"}
	bob := &models.TeamMember{Name: "Bob", Title: "Writer"}
	if err := st.CreateTeamMember(alice); err != nil {
		t.Fatalf("create member: %v", err)
	}
	if err := st.CreateTeamMember(bob); err != nil {
		t.Fatalf("create member: %v", err)
	}
	activity := &models.Activity{Name: "Weekly digest", Prompt: "Summarize the week", Schedule: models.ScheduleManual}
	tasks := []store.TaskInput{
		{MemberID: alice.ID, Instruction: "collect highlights"},
		{MemberID: bob.ID, Instruction: "write the digest"},
	}
	if err := st.CreateActivity(activity, tasks); err != nil {
		t.Fatalf("create activity: %v", err)
	}
	return activity.ID
}

func TestRunExecutesTaskChainInOrder(t *testing.T) {
	st := newTestStore(t)
	activityID := seedActivity(t, st)

	chat := &scriptedChat{}
	retriever := &stubRetriever{docs: []*schema.Document{{
		Text:     "shipping v2 next week",
		Metadata: map[string]interface{}{schema.MetadataKeySource: "note: Roadmap"},
	}}}
	runner := NewRunner(st, retriever, chat, nil, "gpt-4o-mini", 8)

	runID, err := runner.Run(context.Background(), activityID)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	run, err := st.GetRun(runID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if run.Status != models.RunStatusCompleted {
		t.Fatalf("run status = %q, want completed", run.Status)
	}
	if len(run.Responses) != 2 {
		t.Fatalf("run has %d responses, want 2", len(run.Responses))
	}
	first, second := run.Responses[0], run.Responses[1]
	if first.MemberName != "Alice" || first.Instruction != "collect highlights" {
		t.Errorf("first response snapshot: %+v", first)
	}
	if second.MemberName != "Bob" || second.Response != "answer 2" {
		t.Errorf("second response: %+v", second)
	}

	// Each member's identity and the shared retrieval land in the system prompt.
	if !strings.Contains(chat.systems[0], "You are Alice") {
		t.Error("first system prompt is missing the member identity")
	}
	if !strings.Contains(chat.systems[0], "[note: Roadmap]") {
		t.Error("system prompt is missing the knowledge base context")
	}
	// The second task sees the first task's output.
	if !strings.Contains(chat.users[1], "answer 1") {
		t.Error("second task prompt is missing the prior progression")
	}
}

func TestRunStopsOnTaskFailureKeepingPriorResponses(t *testing.T) {
	st := newTestStore(t)
	activityID := seedActivity(t, st)

	chat := &scriptedChat{failAt: 2}
	runner := NewRunner(st, &stubRetriever{}, chat, nil, "gpt-4o-mini", 8)

	runID, err := runner.Run(context.Background(), activityID)
	if err == nil {
		t.Fatal("expected the second task's failure to surface")
	}
	run, getErr := st.GetRun(runID)
	if getErr != nil {
		t.Fatalf("GetRun() error = %v", getErr)
	}
	if run.Status != models.RunStatusFailed {
		t.Errorf("run status = %q, want failed", run.Status)
	}
	if run.Error == "" {
		t.Error("failed run carries no error message")
	}
	if len(run.Responses) != 1 {
		t.Errorf("run kept %d responses, want the 1 completed before the failure", len(run.Responses))
	}
}

func TestRunRejectsConcurrentExecution(t *testing.T) {
	st := newTestStore(t)
	activityID := seedActivity(t, st)

	chat := &scriptedChat{block: make(chan struct{})}
	runner := NewRunner(st, &stubRetriever{}, chat, nil, "gpt-4o-mini", 8)

	done := make(chan error, 1)
	go func() {
		_, err := runner.Run(context.Background(), activityID)
		done <- err
	}()

	// Wait for the first run to claim the activity.
	deadline := time.Now().Add(2 * time.Second)
	for !runner.Busy(activityID) {
		if time.Now().After(deadline) {
			t.Fatal("first run never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := runner.Run(context.Background(), activityID); !errors.Is(err, ErrBusy) {
		t.Errorf("concurrent run error = %v, want ErrBusy", err)
	}

	close(chat.block)
	if err := <-done; err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if runner.Busy(activityID) {
		t.Error("activity still marked busy after the run finished")
	}
}

func TestRunMissingActivity(t *testing.T) {
	st := newTestStore(t)
	runner := NewRunner(st, &stubRetriever{}, &scriptedChat{}, nil, "gpt-4o-mini", 8)
	if _, err := runner.Run(context.Background(), 9999); err == nil {
		t.Fatal("expected an error for a missing activity")
	}
}

func TestAgentTaskWithoutBridgeFails(t *testing.T) {
	st := newTestStore(t)

	agent := &models.TeamMember{Name: "Hal", AgentName: "hal9000"}
	if err := st.CreateTeamMember(agent); err != nil {
		t.Fatalf("create member: %v", err)
	}
	activity := &models.Activity{Name: "Delegated", Schedule: models.ScheduleManual}
	if err := st.CreateActivity(activity, []store.TaskInput{{MemberID: agent.ID, Instruction: "do it"}}); err != nil {
		t.Fatalf("create activity: %v", err)
	}

	runner := NewRunner(st, &stubRetriever{}, &scriptedChat{}, nil, "gpt-4o-mini", 8)
	if _, err := runner.Run(context.Background(), activity.ID); err == nil {
		t.Fatal("expected an error when the bridge is not configured")
	}
}

func TestDue(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-30 * time.Minute)
	stale := now.Add(-2 * time.Hour)

	cases := []struct {
		name      string
		schedule  string
		lastStart *time.Time
		want      bool
	}{
		{"manual never fires", models.ScheduleManual, nil, false},
		{"unknown schedule never fires", "fortnightly", &stale, false},
		{"never run fires immediately", models.ScheduleHourly, nil, true},
		{"hourly not yet elapsed", models.ScheduleHourly, &recent, false},
		{"hourly elapsed", models.ScheduleHourly, &stale, true},
		{"daily not yet elapsed", models.ScheduleDaily, &stale, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Due(tc.schedule, tc.lastStart, now); got != tc.want {
				t.Errorf("Due(%s) = %v, want %v", tc.schedule, got, tc.want)
			}
		})
	}
}
