package intent

import (
	"context"
	stdErrors "errors"
	"time"

	xerrors "IntentFlow-Chain/internal/errors"
	"IntentFlow-Chain/internal/web3"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
)

const (
	defaultPollInterval   = 500 * time.Millisecond
	defaultConfirmTimeout = 90 * time.Second
)

// ConfirmationWaiter 轮询回执直到交易进入终态。回执尚不存在不是错误，
// 继续轮询；超时或链访问异常归为确认失败。
type ConfirmationWaiter struct {
	client       web3.Client
	pollInterval time.Duration
	timeout      time.Duration
}

// NewConfirmationWaiter 构造 ConfirmationWaiter，非法参数回退到默认值。
func NewConfirmationWaiter(client web3.Client, pollInterval, timeout time.Duration) *ConfirmationWaiter {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if timeout <= 0 {
		timeout = defaultConfirmTimeout
	}
	return &ConfirmationWaiter{client: client, pollInterval: pollInterval, timeout: timeout}
}

// Wait 阻塞直到拿到终态回执。回执状态由调用方解读，被回滚的交易同样以
// 回执形式返回。交易此时已经广播，等待只受等待器自身的超时约束，调用方
// 取消不会中断轮询。
func (w *ConfirmationWaiter) Wait(ctx context.Context, txHash common.Hash) (*coretypes.Receipt, error) {
	if w == nil || w.client == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "确认等待器未初始化")
	}

	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	defer cancel()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := w.client.TransactionReceipt(waitCtx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !stdErrors.Is(err, gethcore.NotFound) {
			return nil, xerrors.Wrap(CodeConfirmationFailure, err, "查询交易回执失败",
				xerrors.WithMetadata("tx_hash", txHash.Hex()))
		}

		select {
		case <-waitCtx.Done():
			return nil, xerrors.Wrap(CodeConfirmationFailure, waitCtx.Err(), "等待交易确认超时",
				xerrors.WithMetadata("tx_hash", txHash.Hex()))
		case <-ticker.C:
		}
	}
}
