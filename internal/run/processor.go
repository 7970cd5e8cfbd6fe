package run

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"time"

	xerrors "IntentFlow-Chain/internal/errors"
	"IntentFlow-Chain/internal/intent"
	"IntentFlow-Chain/internal/observability/alerting"
	"IntentFlow-Chain/internal/observability/metrics"
	"IntentFlow-Chain/pkg/logger"
)

// Executor 定义了处理器所需的意图执行能力。
type Executor interface {
	Execute(ctx context.Context, session, intentText string, hooks ...intent.StageHook) (*intent.Report, error)
	RenderFailure(err error) string
}

// Processor 负责从队列消费执行记录并交给编排器执行。失败即终态，不做
// 重试或补偿。
type Processor struct {
	executor    Executor
	store       Store
	consumer    Consumer
	workerCount int
	logger      *slog.Logger
	alerter     alerting.Dispatcher
}

// ProcessorOption 定义可选配置。
type ProcessorOption func(*Processor)

// WithProcessorLogger 指定日志输出。
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithWorkerCount 设置消费协程数量。
func WithWorkerCount(workers int) ProcessorOption {
	return func(p *Processor) {
		if workers > 0 {
			p.workerCount = workers
		}
	}
}

// WithAlertDispatcher 配置告警派发器。
func WithAlertDispatcher(dispatcher alerting.Dispatcher) ProcessorOption {
	return func(p *Processor) {
		p.alerter = dispatcher
	}
}

// NewProcessor 构造 Processor。
func NewProcessor(executor Executor, store Store, consumer Consumer, opts ...ProcessorOption) *Processor {
	p := &Processor{
		executor:    executor,
		store:       store,
		consumer:    consumer,
		workerCount: 1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.workerCount <= 0 {
		p.workerCount = 1
	}
	return p
}

// Start 启动执行记录处理循环。
func (p *Processor) Start(ctx context.Context) error {
	if p.consumer == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "未配置执行消费者")
	}
	return p.consumer.Consume(ctx, p.workerCount, p.handle)
}

func (p *Processor) handle(ctx context.Context, runID string) error {
	if p.store == nil || p.executor == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "处理器未初始化")
	}
	record, err := p.store.Claim(ctx, runID)
	if err != nil {
		if stdErrors.Is(err, ErrRunNotFound) || stdErrors.Is(err, ErrRunCompleted) || stdErrors.Is(err, ErrRunConflict) {
			p.logDebug("跳过执行记录", slog.String("run_id", runID), slog.String("reason", err.Error()))
			return nil
		}
		logger.L().Error("领取执行记录失败", slog.Any("error", err), slog.String("run_id", runID))
		p.emitAlert(ctx, &Run{ID: runID}, CodeRunProcessing, err, "claim")
		return err
	}

	report, execErr := p.executor.Execute(ctx, record.Session, record.Intent, func(stage intent.Stage) {
		metrics.ObserveIntentStage(string(stage))
		if err := p.store.UpdateStage(ctx, record.ID, stage); err != nil {
			p.logDebug("更新执行阶段失败", slog.String("run_id", record.ID), slog.String("stage", string(stage)))
		}
	})
	if execErr != nil {
		return p.handleExecutionFailure(ctx, record, execErr)
	}
	if report == nil {
		return p.handleExecutionFailure(ctx, record,
			xerrors.New(CodeRunProcessing, "编排器未返回报告"))
	}

	if err := p.store.MarkSucceeded(ctx, record.ID, *report); err != nil {
		logger.L().Error("标记执行成功状态失败", slog.Any("error", err), slog.String("run_id", record.ID))
		return err
	}
	logger.Audit().Info("意图执行记录完成",
		slog.String("run_id", record.ID),
		slog.String("session", record.Session),
		slog.String("tx_hash", report.TxHash),
	)
	return nil
}

func (p *Processor) handleExecutionFailure(ctx context.Context, record *Run, execErr error) error {
	code := intent.Classify(execErr)
	if code == xerrors.CodeUnknown {
		if registered := xerrors.CodeOf(execErr); registered != xerrors.CodeUnknown {
			code = registered
		}
	}

	rendered := p.executor.RenderFailure(execErr)
	if storeErr := p.store.MarkFailed(ctx, record.ID, code, rendered); storeErr != nil {
		logger.L().Error("标记执行失败状态出错", slog.Any("error", storeErr), slog.String("run_id", record.ID))
		return storeErr
	}
	logger.Audit().Warn("意图执行记录失败",
		slog.String("run_id", record.ID),
		slog.String("session", record.Session),
		slog.String("error", execErr.Error()),
		slog.String("error_code", string(code)),
	)
	if xerrors.ShouldAlert(execErr) {
		p.emitAlert(ctx, record, code, execErr, string(intent.StageFailed))
	}
	return nil
}

func (p *Processor) logDebug(msg string, attrs ...slog.Attr) {
	if p.logger != nil {
		args := make([]any, len(attrs))
		for i, attr := range attrs {
			args[i] = attr
		}
		p.logger.Debug(msg, args...)
	}
}

func (p *Processor) emitAlert(ctx context.Context, record *Run, code xerrors.Code, cause error, stage string) {
	if p == nil || p.alerter == nil || record == nil {
		return
	}
	attrs := xerrors.AttributesOf(code)
	message := attrs.Message
	if cause != nil {
		message = cause.Error()
	}
	metadata := map[string]string{
		"stage": stage,
	}
	if cause != nil {
		metadata["cause"] = cause.Error()
	}
	event := alerting.Event{
		Code:       code,
		Message:    message,
		Severity:   attrs.Severity,
		RunID:      record.ID,
		Session:    record.Session,
		Stage:      stage,
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}
	if err := p.alerter.Notify(ctx, event); err != nil {
		logger.L().Error("告警通知失败",
			slog.Any("error", err),
			slog.String("run_id", record.ID),
			slog.String("stage", stage),
		)
	}
}
