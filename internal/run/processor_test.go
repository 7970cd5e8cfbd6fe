package run

import (
	"context"
	"sync"
	"testing"
	"time"

	xerrors "IntentFlow-Chain/internal/errors"
	"IntentFlow-Chain/internal/intent"
	"IntentFlow-Chain/internal/observability/alerting"
)

// fakeExecutor 以固定结果响应执行请求。
type fakeExecutor struct {
	mu      sync.Mutex
	report  *intent.Report
	err     error
	calls   int
	lastReq string
}

func (f *fakeExecutor) Execute(_ context.Context, session, intentText string, hooks ...intent.StageHook) (*intent.Report, error) {
	f.mu.Lock()
	f.calls++
	f.lastReq = session + "/" + intentText
	report, err := f.report, f.err
	f.mu.Unlock()
	if err != nil {
		for _, hook := range hooks {
			hook(intent.StageFailed)
		}
		return nil, err
	}
	for _, hook := range hooks {
		hook(intent.StageStart)
		hook(intent.StageReported)
	}
	return report, nil
}

func (f *fakeExecutor) RenderFailure(err error) string {
	if err == nil {
		return ""
	}
	return "Error: " + err.Error()
}

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []alerting.Event
}

func (d *recordingDispatcher) Notify(_ context.Context, event alerting.Event) error {
	d.mu.Lock()
	d.events = append(d.events, event)
	d.mu.Unlock()
	return nil
}

func startProcessor(t *testing.T, executor Executor, store Store, queue Queue, opts ...ProcessorOption) (context.CancelFunc, *sync.WaitGroup) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	processor := NewProcessor(executor, store, queue, opts...)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = processor.Start(ctx)
	}()
	return cancel, &wg
}

func waitForStatus(t *testing.T, service *Service, id string, want Status) *Run {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	record, err := service.WaitUntilCompleted(ctx, id, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("wait for %s: %v", id, err)
	}
	if record.Status != want {
		t.Fatalf("expected status %s, got %s", want, record.Status)
	}
	return record
}

func TestProcessorMarksSuccess(t *testing.T) {
	store := NewMemoryStore()
	queue := NewMemoryQueue(8)
	executor := &fakeExecutor{report: &intent.Report{TxHash: "0xfeed", Amount: "1.5", Action: intent.ActionTransfer}}
	service := NewService(store, queue)

	cancel, wg := startProcessor(t, executor, store, queue)
	defer func() {
		cancel()
		wg.Wait()
	}()

	record, err := service.Submit(context.Background(), SubmitRequest{Session: "alice", Intent: "send 1.5 eth"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	final := waitForStatus(t, service, record.ID, StatusSucceeded)
	if final.Report == nil || final.Report.TxHash != "0xfeed" {
		t.Fatalf("report missing on success: %+v", final.Report)
	}
	if final.Stage != intent.StageReported {
		t.Fatalf("expected reported stage, got %s", final.Stage)
	}
}

func TestProcessorFailureIsTerminal(t *testing.T) {
	store := NewMemoryStore()
	queue := NewMemoryQueue(8)
	executor := &fakeExecutor{err: xerrors.New(intent.CodePreviewFailure, "预览调用失败")}
	dispatcher := &recordingDispatcher{}
	service := NewService(store, queue)

	cancel, wg := startProcessor(t, executor, store, queue, WithAlertDispatcher(dispatcher))
	defer func() {
		cancel()
		wg.Wait()
	}()

	record, err := service.Submit(context.Background(), SubmitRequest{Session: "alice", Intent: "garbage"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	final := waitForStatus(t, service, record.ID, StatusFailed)
	if final.ErrorCode != string(intent.CodePreviewFailure) {
		t.Fatalf("unexpected error code %s", final.ErrorCode)
	}
	if len(final.LastError) < 7 || final.LastError[:7] != "Error: " {
		t.Fatalf("failure text not rendered: %q", final.LastError)
	}

	// 失败为终态，队列重放同一 ID 不应再次执行。
	calls := executor.callCount()
	if err := queue.Publish(context.Background(), record.ID); err != nil {
		t.Fatalf("republish: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if executor.callCount() != calls {
		t.Fatalf("terminal run was re-executed, calls %d -> %d", calls, executor.callCount())
	}
}

func TestProcessorAlertsOnAlertableFailure(t *testing.T) {
	store := NewMemoryStore()
	queue := NewMemoryQueue(8)
	executor := &fakeExecutor{err: xerrors.New(intent.CodeConfirmationFailure, "等待交易确认超时")}
	dispatcher := &recordingDispatcher{}
	service := NewService(store, queue)

	cancel, wg := startProcessor(t, executor, store, queue, WithAlertDispatcher(dispatcher))
	defer func() {
		cancel()
		wg.Wait()
	}()

	record, err := service.Submit(context.Background(), SubmitRequest{Session: "alice", Intent: "send 1 eth"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitForStatus(t, service, record.ID, StatusFailed)

	deadline := time.Now().Add(time.Second)
	for {
		dispatcher.mu.Lock()
		count := len(dispatcher.events)
		dispatcher.mu.Unlock()
		if count > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no alert dispatched for confirmation failure")
		}
		time.Sleep(10 * time.Millisecond)
	}

	dispatcher.mu.Lock()
	event := dispatcher.events[0]
	dispatcher.mu.Unlock()
	if event.Code != intent.CodeConfirmationFailure {
		t.Fatalf("unexpected alert code %s", event.Code)
	}
	if event.RunID != record.ID {
		t.Fatalf("alert carries wrong run id %s", event.RunID)
	}
}

func TestServiceSubmitIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	queue := NewMemoryQueue(8)
	service := NewService(store, queue)
	defer service.Close()

	first, err := service.Submit(context.Background(), SubmitRequest{ID: "fixed", Session: "alice", Intent: "send"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	second, err := service.Submit(context.Background(), SubmitRequest{ID: "fixed", Session: "alice", Intent: "send"})
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("idempotent submit returned different ids %s vs %s", first.ID, second.ID)
	}

	runs, err := service.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected a single run, got %d", len(runs))
	}
}

func TestServiceSubmitValidates(t *testing.T) {
	service := NewService(NewMemoryStore(), NewMemoryQueue(1))
	defer service.Close()

	if _, err := service.Submit(context.Background(), SubmitRequest{Session: "", Intent: "send"}); err == nil {
		t.Fatal("expected validation error for empty session")
	}
	if _, err := service.Submit(context.Background(), SubmitRequest{Session: "alice", Intent: "  "}); err == nil {
		t.Fatal("expected validation error for empty intent")
	}
}
