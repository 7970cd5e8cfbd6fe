package intent

import (
	"context"
	"math/big"
	"strings"

	xerrors "IntentFlow-Chain/internal/errors"
	"IntentFlow-Chain/internal/web3"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// Previewer 通过只读合约调用解析意图，得到动作类型、金额与结算代币。
// 预览失败前不允许发起任何改变状态的调用。
type Previewer struct {
	client web3.Client
	router common.Address
}

// NewPreviewer 构造 Previewer。
func NewPreviewer(client web3.Client, router common.Address) *Previewer {
	return &Previewer{client: client, router: router}
}

// Preview 以 caller 的身份对意图做只读预览。
func (p *Previewer) Preview(ctx context.Context, caller common.Address, intentText string) (*Preview, error) {
	if p == nil || p.client == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "预览器未初始化")
	}
	if strings.TrimSpace(intentText) == "" {
		return nil, xerrors.New(CodePreviewFailure, "意图内容不能为空")
	}
	backend := p.client.Backend()
	if backend == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "链客户端缺少访问后端")
	}

	data, err := routerABI.Pack("previewIntent", caller, intentText)
	if err != nil {
		return nil, xerrors.Wrap(CodePreviewFailure, err, "编码预览调用失败")
	}
	out, err := backend.CallContract(ctx, gethcore.CallMsg{From: caller, To: &p.router, Data: data}, nil)
	if err != nil {
		return nil, xerrors.Wrap(CodePreviewFailure, err, "预览调用失败")
	}

	values, err := routerABI.Unpack("previewIntent", out)
	if err != nil {
		return nil, xerrors.Wrap(CodePreviewFailure, err, "解码预览结果失败")
	}
	if len(values) != 3 {
		return nil, xerrors.New(CodePreviewFailure, "预览结果字段数量不符")
	}
	actionCode, ok := values[0].(uint8)
	if !ok {
		return nil, xerrors.New(CodePreviewFailure, "预览结果 action 类型不符")
	}
	amount, ok := values[1].(*big.Int)
	if !ok || amount == nil {
		return nil, xerrors.New(CodePreviewFailure, "预览结果 amount 类型不符")
	}
	token, ok := values[2].(common.Address)
	if !ok {
		return nil, xerrors.New(CodePreviewFailure, "预览结果 token 类型不符")
	}

	action, ok := actionFromCode(actionCode)
	if !ok {
		return nil, xerrors.New(CodePreviewFailure, "未知的意图动作类型",
			xerrors.WithMetadata("action_code", new(big.Int).SetUint64(uint64(actionCode)).String()))
	}

	preview := &Preview{
		Action: action,
		Amount: new(big.Int).Set(amount),
		Token:  token,
	}
	if IsNativeToken(token) {
		preview.TokenDecimals = 18
		preview.DecimalsKnown = true
		return preview, nil
	}

	// decimals 查询失败不阻断管线，金额将以最小单位呈现。
	if decimals, err := p.tokenDecimals(ctx, caller, token); err == nil {
		preview.TokenDecimals = decimals
		preview.DecimalsKnown = true
	}
	return preview, nil
}

func (p *Previewer) tokenDecimals(ctx context.Context, caller, token common.Address) (uint8, error) {
	data, err := erc20ABI.Pack("decimals")
	if err != nil {
		return 0, err
	}
	out, err := p.client.Backend().CallContract(ctx, gethcore.CallMsg{From: caller, To: &token, Data: data}, nil)
	if err != nil {
		return 0, err
	}
	values, err := erc20ABI.Unpack("decimals", out)
	if err != nil {
		return 0, err
	}
	if len(values) != 1 {
		return 0, xerrors.New(xerrors.CodeChainFailure, "decimals 返回字段数量不符")
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return 0, xerrors.New(xerrors.CodeChainFailure, "decimals 返回类型不符")
	}
	return decimals, nil
}
