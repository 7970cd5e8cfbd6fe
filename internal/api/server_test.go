package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"IntentFlow-Chain/internal/intent"
	"IntentFlow-Chain/internal/run"
)

func newTestServer(t *testing.T) (*Server, *run.MemoryStore) {
	t.Helper()
	store := run.NewMemoryStore()
	svc := run.NewService(store, run.NewMemoryQueue(8))
	return NewServer(":0", nil, svc), store
}

func TestHandleRunByID(t *testing.T) {
	server, store := newTestServer(t)

	sample := &run.Run{
		ID:        "run-success",
		Session:   "alice",
		Intent:    "send 1 eth",
		Status:    run.StatusSucceeded,
		Stage:     intent.StageReported,
		CreatedAt: 1700000000,
		UpdatedAt: 1700000001,
		Report: &intent.Report{
			TxHash: "0xfeed",
			Amount: "1",
		},
	}
	if err := store.Create(context.Background(), sample); err != nil {
		t.Fatalf("create sample run: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs?id=run-success", nil)
	rec := httptest.NewRecorder()

	server.handleRuns(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d want %d", rec.Code, http.StatusOK)
	}

	var got run.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID != sample.ID {
		t.Fatalf("unexpected run id: got %q want %q", got.ID, sample.ID)
	}
	if got.Report == nil || got.Report.TxHash != "0xfeed" {
		t.Fatalf("unexpected run report: %+v", got.Report)
	}
}

func TestHandleRunsErrors(t *testing.T) {
	server, _ := newTestServer(t)

	t.Run("invalid method", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", nil)
		rec := httptest.NewRecorder()

		server.handleRuns(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
		}
	})

	t.Run("not found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/runs?id=missing", nil)
		rec := httptest.NewRecorder()

		server.handleRuns(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
		var body errorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode error body: %v", err)
		}
		if body.ErrorCode != string(run.CodeRunNotFound) {
			t.Fatalf("unexpected error code %q", body.ErrorCode)
		}
	})
}

func TestHandleRunsListAndStats(t *testing.T) {
	server, store := newTestServer(t)
	ctx := context.Background()

	for _, record := range []*run.Run{
		{ID: "a", Session: "alice", Intent: "one", Status: run.StatusPending},
		{ID: "b", Session: "bob", Intent: "two", Status: run.StatusPending},
	} {
		if err := store.Create(ctx, record); err != nil {
			t.Fatalf("create %s: %v", record.ID, err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs?session=alice", nil)
	rec := httptest.NewRecorder()
	server.handleRuns(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status %d", rec.Code)
	}
	var records []*run.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(records) != 1 || records[0].Session != "alice" {
		t.Fatalf("unexpected session filter result %+v", records)
	}

	statsReq := httptest.NewRequest(http.MethodGet, "/api/v1/runs/stats", nil)
	statsRec := httptest.NewRecorder()
	server.handleRunStats(statsRec, statsReq)
	if statsRec.Code != http.StatusOK {
		t.Fatalf("stats status %d", statsRec.Code)
	}
	var stats run.RunStats
	if err := json.Unmarshal(statsRec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Total != 2 || stats.Pending != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestHandleIntentsAsyncSubmit(t *testing.T) {
	// 异步路径只依赖执行服务，不需要编排器。
	server, store := newTestServer(t)

	body := strings.NewReader(`{"session_id":"alice","intent":"send 1 eth","async":true}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/intents", body)
	rec := httptest.NewRecorder()

	server.handleIntents(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected accepted, got %d: %s", rec.Code, rec.Body.String())
	}

	var record run.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if record.ID == "" || record.Status != run.StatusPending {
		t.Fatalf("unexpected queued run %+v", record)
	}
	if _, err := store.Get(context.Background(), record.ID); err != nil {
		t.Fatalf("queued run not persisted: %v", err)
	}
}

func TestHandleIntentsSyncRequiresOrchestrator(t *testing.T) {
	server, _ := newTestServer(t)

	body := strings.NewReader(`{"session_id":"alice","intent":"send 1 eth"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/intents", body)
	rec := httptest.NewRecorder()

	server.handleIntents(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected unavailable without orchestrator, got %d", rec.Code)
	}
}

func TestHandleHealthz(t *testing.T) {
	server, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	server.handleHealthz(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}
