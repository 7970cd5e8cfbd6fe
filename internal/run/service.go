package run

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	xerrors "IntentFlow-Chain/internal/errors"
	"IntentFlow-Chain/pkg/logger"
)

// SubmitRequest 描述一次意图执行的入队请求。ID 为空时自动生成，携带 ID
// 的重复提交幂等返回已存在的记录。
type SubmitRequest struct {
	ID      string `json:"id,omitempty"`
	Session string `json:"session"`
	Intent  string `json:"intent"`
}

// Service 负责执行记录的创建与查询。
type Service struct {
	store    Store
	producer Producer
}

// NewService 构造执行记录服务。
func NewService(store Store, producer Producer) *Service {
	return &Service{store: store, producer: producer}
}

// Submit 创建一条新的执行记录并推送到队列。
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Run, error) {
	if strings.TrimSpace(req.Session) == "" {
		return nil, xerrors.New(CodeRunValidation, "会话标识不能为空")
	}
	if strings.TrimSpace(req.Intent) == "" {
		return nil, xerrors.New(CodeRunValidation, "意图内容不能为空")
	}
	if s.store == nil || s.producer == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "执行服务未初始化")
	}

	runID := strings.TrimSpace(req.ID)
	if runID != "" {
		record, err := s.store.Get(ctx, runID)
		if err == nil {
			return record, nil
		}
		if !stdErrors.Is(err, ErrRunNotFound) {
			return nil, err
		}
	} else {
		runID = uuid.NewString()
	}

	record := &Run{
		ID:      runID,
		Session: strings.TrimSpace(req.Session),
		Intent:  req.Intent,
		Status:  StatusPending,
	}
	if err := s.store.Create(ctx, record); err != nil {
		if stdErrors.Is(err, ErrRunConflict) {
			existing, getErr := s.store.Get(ctx, runID)
			if getErr == nil {
				return existing, nil
			}
			if !stdErrors.Is(getErr, ErrRunNotFound) {
				return nil, getErr
			}
		}
		return nil, err
	}
	if err := s.producer.Publish(ctx, runID); err != nil {
		logger.L().Error("执行记录入队失败", slog.Any("error", err), slog.String("run_id", runID))
		wrapped := xerrors.Wrap(CodeRunPublish, err, "发布执行记录到队列失败")
		_ = s.store.MarkFailed(ctx, runID, CodeRunPublish, wrapped.Error())
		return nil, wrapped
	}
	logger.Audit().Info("执行记录入队成功",
		slog.String("run_id", runID),
		slog.String("session", record.Session),
		slog.String("intent", record.Intent),
	)
	return record, nil
}

// Get 返回指定执行记录的状态。
func (s *Service) Get(ctx context.Context, id string) (*Run, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "执行存储未初始化")
	}
	return s.store.Get(ctx, id)
}

// List 返回符合过滤条件的执行记录列表。
func (s *Service) List(ctx context.Context, opts ...ListOption) ([]*Run, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "执行存储未初始化")
	}
	options := buildListOptions(opts)
	return s.store.List(ctx, options)
}

// Stats 返回符合过滤条件的统计信息。
func (s *Service) Stats(ctx context.Context, opts ...ListOption) (RunStats, error) {
	if s.store == nil {
		return RunStats{}, xerrors.New(xerrors.CodeInitializationFailure, "执行存储未初始化")
	}
	options := buildListOptions(opts)
	return s.store.Stats(ctx, options)
}

// Close 释放资源。
func (s *Service) Close() error {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			return err
		}
	}
	if s.producer != nil {
		return s.producer.Close()
	}
	return nil
}

// WaitUntilCompleted 在指定超时时间内轮询执行记录状态。
func (s *Service) WaitUntilCompleted(ctx context.Context, id string, interval time.Duration) (*Run, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		record, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if record.Status == StatusSucceeded || record.Status == StatusFailed {
			return record, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
