package intentflow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestExecuteIntentReturnsReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/intents" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		var submission IntentSubmission
		if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
			t.Fatalf("unexpected body: %v", err)
		}
		if submission.Async {
			t.Fatal("synchronous execution must not set async")
		}
		_ = json.NewEncoder(w).Encode(Report{
			Session:     submission.Session,
			Intent:      submission.Intent,
			Action:      "transfer",
			Amount:      "1.5",
			Token:       "native",
			TxHash:      "0xfeed",
			ExplorerURL: "https://scan.test/tx/0xfeed",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())

	report, err := client.ExecuteIntent(context.Background(), "alice", "send 1.5 eth to bob")
	if err != nil {
		t.Fatalf("execute intent: %v", err)
	}
	if report.TxHash != "0xfeed" || report.Amount != "1.5" {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestSubmitIntentForcesAsync(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var submission IntentSubmission
		if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
			t.Fatalf("decode submission: %v", err)
		}
		if !submission.Async {
			t.Fatal("expected async submission")
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(Run{ID: "run-1", Status: "pending"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())

	record, err := client.SubmitIntent(context.Background(), IntentSubmission{Session: "alice", Intent: "send"})
	if err != nil {
		t.Fatalf("submit intent: %v", err)
	}
	if record.ID != "run-1" {
		t.Fatalf("unexpected run %+v", record)
	}
}

func TestWaitForRunPollsUntilTerminal(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/runs" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("id"); got != "run-2" {
			t.Fatalf("unexpected id %q", got)
		}
		calls++
		status := "running"
		if calls >= 3 {
			status = "succeeded"
		}
		_ = json.NewEncoder(w).Encode(Run{ID: "run-2", Status: status})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	record, err := client.WaitForRun(ctx, "run-2", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("wait for run: %v", err)
	}
	if record.Status != "succeeded" {
		t.Fatalf("unexpected terminal status %q", record.Status)
	}
	if calls < 3 {
		t.Fatalf("expected at least 3 polls, got %d", calls)
	}
}

func TestAPIErrorDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":      "Error: 预览调用失败",
			"error_code": "PREVIEW_FAILURE",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())

	_, err := client.ExecuteIntent(context.Background(), "alice", "garbage")
	if err == nil {
		t.Fatal("expected api error")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway || apiErr.Code != "PREVIEW_FAILURE" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}
