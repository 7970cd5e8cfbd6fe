package intent

import (
	"math/big"

	xerrors "IntentFlow-Chain/internal/errors"

	"github.com/ethereum/go-ethereum/common"
)

// ActionKind 表示路由合约对意图预览后给出的动作类型。
type ActionKind string

const (
	ActionTransfer ActionKind = "transfer"
	ActionSwap     ActionKind = "swap"
	ActionWrap     ActionKind = "wrap"
	ActionUnwrap   ActionKind = "unwrap"
	ActionCall     ActionKind = "contract_call"
)

// actionFromCode 将合约返回的动作编号映射为 ActionKind。
func actionFromCode(code uint8) (ActionKind, bool) {
	switch code {
	case 0:
		return ActionTransfer, true
	case 1:
		return ActionSwap, true
	case 2:
		return ActionWrap, true
	case 3:
		return ActionUnwrap, true
	case 4:
		return ActionCall, true
	default:
		return "", false
	}
}

// NativeToken 是路由合约约定的原生币哨兵地址。预览结果中的 token 等于该
// 地址时，金额通过交易 value 结算，不经过 ERC-20 授权。
var NativeToken = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

// IsNativeToken 判断地址是否为原生币哨兵。
func IsNativeToken(token common.Address) bool {
	return token == NativeToken
}

// Preview 是一次只读预览调用的结果。
type Preview struct {
	Action        ActionKind
	Amount        *big.Int
	Token         common.Address
	TokenDecimals uint8
	DecimalsKnown bool
}

// AllowanceOutcome 表示授权守卫的处理结果。
type AllowanceOutcome string

const (
	AllowanceSkipped  AllowanceOutcome = "skipped"
	AllowanceApproved AllowanceOutcome = "approved"
)

// Decision 记录授权守卫的结论以及可能产生的 approve 交易。
type Decision struct {
	Outcome    AllowanceOutcome
	ApprovalTx common.Hash
}

// Stage 表示一次意图执行在状态机中的位置。状态严格前进，任何阶段失败都
// 会进入终态 failed，不做重试或回滚。
type Stage string

const (
	StageStart             Stage = "start"
	StagePreviewed         Stage = "previewed"
	StageAllowanceResolved Stage = "allowance_resolved"
	StageSubmitted         Stage = "submitted"
	StageConfirmed         Stage = "confirmed"
	StageReported          Stage = "reported"
	StageFailed            Stage = "failed"
)

// Report 是一次成功执行的最终产出。
type Report struct {
	Session          string           `json:"session"`
	Intent           string           `json:"intent"`
	Chain            string           `json:"chain,omitempty"`
	Action           ActionKind       `json:"action"`
	Amount           string           `json:"amount"`
	Token            string           `json:"token"`
	AllowanceOutcome AllowanceOutcome `json:"allowance_outcome"`
	ApprovalTx       string           `json:"approval_tx,omitempty"`
	TxHash           string           `json:"tx_hash"`
	ExplorerURL      string           `json:"explorer_url"`
	BlockNumber      string           `json:"block_number,omitempty"`
	CreatedAt        int64            `json:"created_at"`
}

const (
	CodePreviewFailure      xerrors.Code = "PREVIEW_FAILURE"
	CodeAllowanceFailure    xerrors.Code = "ALLOWANCE_FAILURE"
	CodeExecutionFailure    xerrors.Code = "EXECUTION_FAILURE"
	CodeConfirmationFailure xerrors.Code = "CONFIRMATION_FAILURE"
)

func init() {
	xerrors.Register(CodePreviewFailure, xerrors.Attributes{
		Message:   "intent preview failed",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeAllowanceFailure, xerrors.Attributes{
		Message:   "allowance resolution failed",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeExecutionFailure, xerrors.Attributes{
		Message:   "intent execution failed",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     true,
	})
	xerrors.Register(CodeConfirmationFailure, xerrors.Attributes{
		Message:   "transaction confirmation failed",
		Severity:  xerrors.SeverityCritical,
		Retryable: false,
		Alert:     true,
	})
}

// isPipelineCode 判断错误码是否属于管线自身的失败分类。
func isPipelineCode(code xerrors.Code) bool {
	switch code {
	case CodePreviewFailure, CodeAllowanceFailure, CodeExecutionFailure, CodeConfirmationFailure:
		return true
	default:
		return false
	}
}

// Classify 将任意错误归入管线的失败分类；无法识别的错误归为 UNKNOWN。
func Classify(err error) xerrors.Code {
	if err == nil {
		return ""
	}
	if e, ok := xerrors.From(err); ok && isPipelineCode(e.Code()) {
		return e.Code()
	}
	return xerrors.CodeUnknown
}
