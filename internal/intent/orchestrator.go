package intent

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	xerrors "IntentFlow-Chain/internal/errors"
	"IntentFlow-Chain/internal/signer"
	"IntentFlow-Chain/internal/web3"
	"IntentFlow-Chain/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
)

// StageHook 在状态机推进时收到通知，供上层记录执行进度。
type StageHook func(stage Stage)

// Orchestrator 串联预览、授权、执行、确认与报告五个阶段。同一签名者的
// 执行严格串行，不同签名者并行互不影响。
type Orchestrator struct {
	signers   signer.Store
	client    web3.Client
	router    common.Address
	previewer *Previewer
	guard     *AllowanceGuard
	executor  *Executor
	waiter    *ConfirmationWaiter
	formatter *Formatter

	pollInterval   time.Duration
	confirmTimeout time.Duration

	lockMu sync.Mutex
	locks  map[common.Address]*sync.Mutex
}

// Option 定义可选的 Orchestrator 配置。
type Option func(*Orchestrator)

// WithPollInterval 设置回执轮询间隔。
func WithPollInterval(interval time.Duration) Option {
	return func(o *Orchestrator) {
		if interval > 0 {
			o.pollInterval = interval
		}
	}
}

// WithConfirmTimeout 设置确认等待的超时时间。
func WithConfirmTimeout(timeout time.Duration) Option {
	return func(o *Orchestrator) {
		if timeout > 0 {
			o.confirmTimeout = timeout
		}
	}
}

// New 创建一个 Orchestrator。
func New(signers signer.Store, client web3.Client, router common.Address, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		signers: signers,
		client:  client,
		router:  router,
		locks:   make(map[common.Address]*sync.Mutex),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	o.waiter = NewConfirmationWaiter(client, o.pollInterval, o.confirmTimeout)
	o.previewer = NewPreviewer(client, router)
	o.guard = NewAllowanceGuard(client, o.waiter, router)
	o.executor = NewExecutor(client, router)

	explorerBase := ""
	chainName := ""
	if client != nil {
		explorerBase = client.ExplorerBase()
		chainName = client.Name()
	}
	o.formatter = NewFormatter(explorerBase, chainName)
	return o
}

// Execute 执行一条意图并返回最终报告。任何阶段失败都会进入终态 failed，
// 返回已分类的错误，不做重试或回滚。
func (o *Orchestrator) Execute(ctx context.Context, session, intentText string, hooks ...StageHook) (*Report, error) {
	if o == nil || o.signers == nil || o.client == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "编排器未初始化")
	}
	session = strings.TrimSpace(session)
	if session == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "会话标识不能为空")
	}
	if strings.TrimSpace(intentText) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "意图内容不能为空")
	}

	sg, err := o.signers.Get(ctx, session)
	if err != nil {
		return nil, o.fail(hooks, err, session, "resolve_signer")
	}

	// 同一签名者串行执行，避免 nonce 与授权竞争。
	lock := o.lockFor(sg.Address())
	lock.Lock()
	defer lock.Unlock()

	fire(hooks, StageStart)

	preview, err := o.previewer.Preview(ctx, sg.Address(), intentText)
	if err != nil {
		return nil, o.fail(hooks, err, session, "preview")
	}
	fire(hooks, StagePreviewed)

	decision, err := o.guard.Ensure(ctx, sg, preview)
	if err != nil {
		return nil, o.fail(hooks, err, session, "allowance")
	}
	fire(hooks, StageAllowanceResolved)

	txHash, err := o.executor.Submit(ctx, sg, intentText, preview)
	if err != nil {
		return nil, o.fail(hooks, err, session, "execute")
	}
	fire(hooks, StageSubmitted)

	receipt, err := o.waiter.Wait(ctx, txHash)
	if err != nil {
		return nil, o.fail(hooks, err, session, "confirm")
	}
	if receipt.Status != coretypes.ReceiptStatusSuccessful {
		revert := xerrors.New(CodeConfirmationFailure, "意图交易被回滚",
			xerrors.WithMetadata("tx_hash", txHash.Hex()))
		return nil, o.fail(hooks, revert, session, "confirm")
	}
	fire(hooks, StageConfirmed)

	report := o.formatter.Success(session, intentText, preview, decision, txHash, receipt)
	fire(hooks, StageReported)

	logger.Audit().Info("意图执行成功",
		slog.String("session", session),
		slog.String("action", string(report.Action)),
		slog.String("tx_hash", report.TxHash),
		slog.String("allowance", string(report.AllowanceOutcome)),
	)
	return report, nil
}

// RenderFailure 将失败渲染为面向用户的单行文案。
func (o *Orchestrator) RenderFailure(err error) string {
	if o == nil || o.formatter == nil {
		return NewFormatter("", "").Failure(err)
	}
	return o.formatter.Failure(err)
}

// fail 统一失败出口：推进到 failed 终态并返回已分类的错误。
func (o *Orchestrator) fail(hooks []StageHook, err error, session, stage string) error {
	fire(hooks, StageFailed)
	classified := err
	if Classify(err) == xerrors.CodeUnknown {
		if _, ok := xerrors.From(err); !ok || xerrors.CodeOf(err) == xerrors.CodeUnknown {
			classified = xerrors.Wrap(xerrors.CodeUnknown, err, "意图执行失败")
		}
	}
	logger.L().Warn("意图执行失败",
		slog.String("session", session),
		slog.String("stage", stage),
		slog.String("error_code", string(xerrors.CodeOf(classified))),
		slog.Any("error", classified),
	)
	return classified
}

func (o *Orchestrator) lockFor(address common.Address) *sync.Mutex {
	o.lockMu.Lock()
	defer o.lockMu.Unlock()
	lock, ok := o.locks[address]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[address] = lock
	}
	return lock
}

func fire(hooks []StageHook, stage Stage) {
	for _, hook := range hooks {
		if hook != nil {
			hook(stage)
		}
	}
}
