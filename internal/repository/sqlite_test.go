package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/xiaot623/gogo/replayer/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func TestSQLiteStoreRunLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	started := time.Now().Add(-time.Minute).Truncate(time.Millisecond)
	run := &domain.Run{
		RunID:     "r1",
		AgentID:   "agent",
		Status:    domain.RunStatusRunning,
		StartedAt: started,
	}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	gotRun, err := store.GetRun(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if gotRun == nil || gotRun.Status != domain.RunStatusRunning || gotRun.EndedAt != nil {
		t.Fatalf("unexpected run: %+v", gotRun)
	}
	if !gotRun.StartedAt.Equal(started) {
		t.Fatalf("expected started_at %v, got %v", started, gotRun.StartedAt)
	}

	ended := started.Add(1500 * time.Millisecond)
	errPayload := json.RawMessage(`{"error":"boom"}`)
	if err := store.UpdateRunCompleted(ctx, "r1", domain.RunStatusFailed, errPayload, ended); err != nil {
		t.Fatalf("UpdateRunCompleted failed: %v", err)
	}

	gotRun, err = store.GetRun(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if gotRun.Status != domain.RunStatusFailed {
		t.Fatalf("expected FAILED, got %s", gotRun.Status)
	}
	if gotRun.EndedAt == nil || !gotRun.EndedAt.Equal(ended) {
		t.Fatalf("unexpected ended_at: %v", gotRun.EndedAt)
	}
	if string(gotRun.Error) != `{"error":"boom"}` {
		t.Fatalf("unexpected error payload: %s", gotRun.Error)
	}
}

func TestSQLiteStoreGetRunMissing(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	run, err := store.GetRun(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run != nil {
		t.Fatalf("expected nil run, got %+v", run)
	}
}

func TestSQLiteStoreListRuns(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	base := time.Now()
	for i, id := range []string{"r1", "r2", "r3"} {
		run := &domain.Run{RunID: id, AgentID: "a", Status: domain.RunStatusRunning, StartedAt: base.Add(time.Duration(i) * time.Second)}
		if err := store.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun failed: %v", err)
		}
	}

	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].RunID != "r3" || runs[1].RunID != "r2" {
		t.Fatalf("unexpected order: %s, %s", runs[0].RunID, runs[1].RunID)
	}
}

func TestSQLiteStoreEvents(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	if err := store.CreateRun(ctx, &domain.Run{RunID: "r1", AgentID: "a", Status: domain.RunStatusRunning, StartedAt: time.Now()}); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	if err := store.CreateEvent(ctx, &domain.Event{
		EventID: "e1",
		RunID:   "r1",
		Ts:      100,
		Type:    domain.EventTypeRunStarted,
		Payload: json.RawMessage(`{"agent_id":"a"}`),
	}); err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}

	batch := []domain.Event{
		{EventID: "e3", RunID: "r1", Ts: 200, Type: domain.EventTypeReasoning, Payload: json.RawMessage(`{"text":"b"}`)},
		{EventID: "e2", RunID: "r1", Ts: 200, Type: domain.EventTypeDecision},
		{EventID: "e4", RunID: "r1", Ts: 300, Type: domain.EventTypeRunDone},
	}
	if err := store.CreateEvents(ctx, batch); err != nil {
		t.Fatalf("CreateEvents failed: %v", err)
	}

	events, err := store.GetEvents(ctx, "r1", 0, nil, 0)
	if err != nil {
		t.Fatalf("GetEvents failed: %v", err)
	}
	var ids []string
	for _, e := range events {
		ids = append(ids, e.EventID)
	}
	if len(ids) != 4 || ids[0] != "e1" || ids[1] != "e3" || ids[2] != "e2" || ids[3] != "e4" {
		t.Fatalf("unexpected event order: %v", ids)
	}
	if events[2].Payload != nil {
		t.Fatalf("expected empty payload, got %s", events[2].Payload)
	}

	filtered, err := store.GetEvents(ctx, "r1", 100, []string{string(domain.EventTypeReasoning)}, 10)
	if err != nil {
		t.Fatalf("GetEvents failed: %v", err)
	}
	if len(filtered) != 1 || filtered[0].EventID != "e3" {
		t.Fatalf("unexpected filtered events: %+v", filtered)
	}
}

func TestSQLiteStoreCreateEventsRollsBack(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	if err := store.CreateRun(ctx, &domain.Run{RunID: "r1", AgentID: "a", Status: domain.RunStatusRunning, StartedAt: time.Now()}); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	batch := []domain.Event{
		{EventID: "e1", RunID: "r1", Ts: 1, Type: domain.EventTypeReasoning},
		{EventID: "e1", RunID: "r1", Ts: 2, Type: domain.EventTypeReasoning},
	}
	if err := store.CreateEvents(ctx, batch); err == nil {
		t.Fatal("expected duplicate event id to fail")
	}

	events, err := store.GetEvents(ctx, "r1", 0, nil, 0)
	if err != nil {
		t.Fatalf("GetEvents failed: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected rollback, got %d events", len(events))
	}
}
