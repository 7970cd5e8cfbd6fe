package intent

import (
	stdErrors "errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	xerrors "IntentFlow-Chain/internal/errors"

	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
)

// Formatter 将管线产出渲染为面向用户的报告。它只做呈现，不访问链。
type Formatter struct {
	explorerBase string
	chainName    string
}

// NewFormatter 构造 Formatter。explorerBase 末尾的斜杠会被去掉，保证
// 拼接出的链接只有一个分隔符。
func NewFormatter(explorerBase, chainName string) *Formatter {
	return &Formatter{
		explorerBase: strings.TrimRight(strings.TrimSpace(explorerBase), "/"),
		chainName:    chainName,
	}
}

// ExplorerTxURL 拼接区块浏览器的交易详情链接。
func (f *Formatter) ExplorerTxURL(txHash common.Hash) string {
	if f == nil || f.explorerBase == "" {
		return ""
	}
	return f.explorerBase + "/tx/" + txHash.Hex()
}

// Success 汇总一次成功执行的报告。
func (f *Formatter) Success(session, intentText string, preview *Preview, decision Decision, txHash common.Hash, receipt *coretypes.Receipt) *Report {
	report := &Report{
		Session:          session,
		Intent:           intentText,
		Action:           preview.Action,
		Amount:           FormatAmount(preview.Amount, preview.TokenDecimals, preview.DecimalsKnown),
		Token:            tokenLabel(preview.Token),
		AllowanceOutcome: decision.Outcome,
		TxHash:           txHash.Hex(),
		ExplorerURL:      f.ExplorerTxURL(txHash),
		CreatedAt:        time.Now().Unix(),
	}
	if f != nil {
		report.Chain = f.chainName
	}
	if decision.Outcome == AllowanceApproved {
		report.ApprovalTx = decision.ApprovalTx.Hex()
	}
	if receipt != nil && receipt.BlockNumber != nil {
		report.BlockNumber = fmt.Sprintf("0x%x", receipt.BlockNumber)
	}
	return report
}

// Failure 将失败渲染为单行 "Error: <message>" 文案。
func (f *Formatter) Failure(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := xerrors.From(err); ok {
		message := e.Message()
		if cause := stdErrors.Unwrap(e); cause != nil {
			message = fmt.Sprintf("%s: %v", message, cause)
		}
		return "Error: " + message
	}
	return "Error: " + err.Error()
}

func tokenLabel(token common.Address) string {
	if IsNativeToken(token) {
		return "native"
	}
	return token.Hex()
}

// FormatAmount 将最小单位的金额渲染为十进制字符串。精度未知时按原始
// 最小单位输出。
func FormatAmount(amount *big.Int, decimals uint8, known bool) string {
	if amount == nil {
		return "0"
	}
	if !known || decimals == 0 {
		return amount.String()
	}

	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	quotient := new(big.Int)
	remainder := new(big.Int)
	quotient.QuoRem(amount, divisor, remainder)

	if remainder.Sign() == 0 {
		return quotient.String()
	}
	frac := fmt.Sprintf("%0*s", decimals, new(big.Int).Abs(remainder).String())
	frac = strings.TrimRight(frac, "0")
	return quotient.String() + "." + frac
}
