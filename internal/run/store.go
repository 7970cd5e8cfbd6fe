package run

import (
	"context"

	xerrors "IntentFlow-Chain/internal/errors"
	"IntentFlow-Chain/internal/intent"
)

// Store 抽象了执行记录状态的持久化接口。
type Store interface {
	Create(ctx context.Context, record *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	Claim(ctx context.Context, id string) (*Run, error)
	UpdateStage(ctx context.Context, id string, stage intent.Stage) error
	MarkSucceeded(ctx context.Context, id string, report intent.Report) error
	MarkFailed(ctx context.Context, id string, code xerrors.Code, lastError string) error
	List(ctx context.Context, opts ListOptions) ([]*Run, error)
	Stats(ctx context.Context, opts ListOptions) (RunStats, error)
	Close() error
}
