package run

import (
	"context"
	stdErrors "errors"
	"testing"
	"time"

	xerrors "IntentFlow-Chain/internal/errors"
	"IntentFlow-Chain/internal/intent"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	record := &Run{ID: "run-1", Session: "alice", Intent: "send 1 eth", Status: StatusPending}
	if err := store.Create(ctx, record); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, record); !stdErrors.Is(err, ErrRunConflict) {
		t.Fatalf("expected conflict on duplicate create, got %v", err)
	}

	claimed, err := store.Claim(ctx, "run-1")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.Status != StatusRunning {
		t.Fatalf("expected running status, got %s", claimed.Status)
	}
	if _, err := store.Claim(ctx, "run-1"); !stdErrors.Is(err, ErrRunConflict) {
		t.Fatalf("expected conflict on double claim, got %v", err)
	}

	if err := store.UpdateStage(ctx, "run-1", intent.StageSubmitted); err != nil {
		t.Fatalf("update stage: %v", err)
	}

	report := intent.Report{TxHash: "0xabc", Amount: "1"}
	if err := store.MarkSucceeded(ctx, "run-1", report); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}
	got, err := store.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusSucceeded || got.Stage != intent.StageReported {
		t.Fatalf("unexpected terminal state %s/%s", got.Status, got.Stage)
	}
	if got.Report == nil || got.Report.TxHash != "0xabc" {
		t.Fatalf("report not persisted: %+v", got.Report)
	}

	if _, err := store.Claim(ctx, "run-1"); !stdErrors.Is(err, ErrRunCompleted) {
		t.Fatalf("completed run must not be claimable, got %v", err)
	}

	if _, err := store.Get(ctx, "missing"); !stdErrors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStoreMarkFailedIsTerminal(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, &Run{ID: "run-2", Session: "bob", Intent: "swap"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Claim(ctx, "run-2"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := store.MarkFailed(ctx, "run-2", xerrors.Code("PREVIEW_FAILURE"), "Error: boom"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	got, err := store.Get(ctx, "run-2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusFailed || got.Stage != intent.StageFailed {
		t.Fatalf("unexpected state %s/%s", got.Status, got.Stage)
	}
	if got.ErrorCode != "PREVIEW_FAILURE" || got.LastError != "Error: boom" {
		t.Fatalf("failure details lost: %+v", got)
	}

	if _, err := store.Claim(ctx, "run-2"); !stdErrors.Is(err, ErrRunCompleted) {
		t.Fatalf("failed run must stay terminal, got %v", err)
	}
}

func TestMemoryStoreListFilters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	seed := []*Run{
		{ID: "a", Session: "alice", Intent: "one", Status: StatusPending},
		{ID: "b", Session: "bob", Intent: "two", Status: StatusPending},
		{ID: "c", Session: "alice", Intent: "three", Status: StatusPending},
	}
	for _, record := range seed {
		if err := store.Create(ctx, record); err != nil {
			t.Fatalf("create %s: %v", record.ID, err)
		}
	}
	if _, err := store.Claim(ctx, "b"); err != nil {
		t.Fatalf("claim b: %v", err)
	}
	if err := store.MarkSucceeded(ctx, "b", intent.Report{TxHash: "0x1"}); err != nil {
		t.Fatalf("mark b: %v", err)
	}

	bySession, err := store.List(ctx, ListOptions{Sessions: []string{"alice"}})
	if err != nil {
		t.Fatalf("list by session: %v", err)
	}
	if len(bySession) != 2 {
		t.Fatalf("expected 2 alice runs, got %d", len(bySession))
	}

	byStatus, err := store.List(ctx, ListOptions{Statuses: []Status{StatusSucceeded}})
	if err != nil {
		t.Fatalf("list by status: %v", err)
	}
	if len(byStatus) != 1 || byStatus[0].ID != "b" {
		t.Fatalf("unexpected status filter result %+v", byStatus)
	}

	hasReport := true
	withReport, err := store.List(ctx, ListOptions{HasReport: &hasReport})
	if err != nil {
		t.Fatalf("list by report: %v", err)
	}
	if len(withReport) != 1 || withReport[0].ID != "b" {
		t.Fatalf("unexpected report filter result %+v", withReport)
	}

	limited, err := store.List(ctx, ListOptions{Limit: 1, Offset: 1, Order: SortByUpdatedAsc})
	if err != nil {
		t.Fatalf("list with offset: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected 1 run with offset, got %d", len(limited))
	}

	stats, err := store.Stats(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 || stats.Succeeded != 1 || stats.Pending != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestMemoryStoreClonesRecords(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	record := &Run{ID: "run-3", Session: "alice", Intent: "send"}
	if err := store.Create(ctx, record); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.Get(ctx, "run-3")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got.Session = "mallory"
	got.UpdatedAt = time.Now().Add(time.Hour).Unix()

	again, err := store.Get(ctx, "run-3")
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if again.Session != "alice" {
		t.Fatalf("store state mutated through returned copy: %+v", again)
	}
}
