package intent

import (
	"context"
	stdErrors "errors"
	"strings"
	"testing"
	"time"

	xerrors "IntentFlow-Chain/internal/errors"

	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
)

func TestWaitTimeoutIsConfirmationFailure(t *testing.T) {
	backend := newFakeBackend()
	waiter := NewConfirmationWaiter(&fakeClient{backend: backend}, 5*time.Millisecond, 40*time.Millisecond)

	// 回执始终不存在，等待必须以超时收场。
	_, err := waiter.Wait(context.Background(), common.HexToHash("0xdead"))
	if err == nil {
		t.Fatal("expected timeout failure")
	}
	if code := xerrors.CodeOf(err); code != CodeConfirmationFailure {
		t.Fatalf("unexpected error code %s", code)
	}
	if !stdErrors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline cause, got %v", err)
	}
	if !strings.Contains(err.Error(), "等待交易确认超时") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestWaitOutlivesCallerCancel(t *testing.T) {
	backend := newFakeBackend()
	release := make(chan struct{})
	backend.releaseReceipts = release

	txHash := common.HexToHash("0xbeef")
	backend.mu.Lock()
	backend.receipts[txHash] = &coretypes.Receipt{
		Status: coretypes.ReceiptStatusSuccessful,
		TxHash: txHash,
	}
	backend.mu.Unlock()

	waiter := NewConfirmationWaiter(&fakeClient{backend: backend}, 5*time.Millisecond, 2*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	go func() {
		time.Sleep(30 * time.Millisecond)
		close(release)
	}()

	receipt, err := waiter.Wait(ctx, txHash)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if receipt.Status != coretypes.ReceiptStatusSuccessful {
		t.Fatalf("unexpected receipt status %d", receipt.Status)
	}
}
