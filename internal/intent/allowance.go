package intent

import (
	"context"
	"math/big"

	xerrors "IntentFlow-Chain/internal/errors"
	"IntentFlow-Chain/internal/signer"
	"IntentFlow-Chain/internal/web3"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
)

// AllowanceGuard 确保执行意图前路由合约拥有足够的 ERC-20 授权。原生币
// 意图与授权已充足的情况都不会产生交易，因此重复执行是幂等的。
type AllowanceGuard struct {
	client web3.Client
	waiter *ConfirmationWaiter
	router common.Address
}

// NewAllowanceGuard 构造 AllowanceGuard。
func NewAllowanceGuard(client web3.Client, waiter *ConfirmationWaiter, router common.Address) *AllowanceGuard {
	return &AllowanceGuard{client: client, waiter: waiter, router: router}
}

// Ensure 在需要时提升授权并等待 approve 交易确认。approve 被回滚视为
// 授权失败，管线不得继续。
func (g *AllowanceGuard) Ensure(ctx context.Context, sg *signer.Signer, preview *Preview) (Decision, error) {
	if g == nil || g.client == nil || g.waiter == nil {
		return Decision{}, xerrors.New(xerrors.CodeInitializationFailure, "授权守卫未初始化")
	}
	if sg == nil || preview == nil || preview.Amount == nil {
		return Decision{}, xerrors.New(xerrors.CodeInvalidArgument, "授权检查缺少必要参数")
	}

	if IsNativeToken(preview.Token) {
		return Decision{Outcome: AllowanceSkipped}, nil
	}

	current, err := g.currentAllowance(ctx, sg.Address(), preview.Token)
	if err != nil {
		return Decision{}, xerrors.Wrap(CodeAllowanceFailure, err, "查询授权额度失败")
	}
	if current.Cmp(preview.Amount) >= 0 {
		return Decision{Outcome: AllowanceSkipped}, nil
	}

	chainID, err := g.client.ChainID(ctx)
	if err != nil {
		return Decision{}, xerrors.Wrap(CodeAllowanceFailure, err, "获取链 ID 失败")
	}
	opts, err := sg.TransactOpts(chainID)
	if err != nil {
		return Decision{}, xerrors.Wrap(CodeAllowanceFailure, err, "构造交易签名器失败")
	}
	opts.Context = ctx

	backend := g.client.Backend()
	token := bind.NewBoundContract(preview.Token, erc20ABI, backend, backend, backend)
	tx, err := token.Transact(opts, "approve", g.router, new(big.Int).Set(abi.MaxUint256))
	if err != nil {
		return Decision{}, xerrors.Wrap(CodeAllowanceFailure, err, "提交 approve 交易失败")
	}

	receipt, err := g.waiter.Wait(ctx, tx.Hash())
	if err != nil {
		return Decision{}, xerrors.Wrap(CodeAllowanceFailure, err, "等待 approve 确认失败")
	}
	if receipt.Status != coretypes.ReceiptStatusSuccessful {
		return Decision{}, xerrors.New(CodeAllowanceFailure, "approve 交易被回滚",
			xerrors.WithMetadata("tx_hash", tx.Hash().Hex()))
	}
	return Decision{Outcome: AllowanceApproved, ApprovalTx: tx.Hash()}, nil
}

func (g *AllowanceGuard) currentAllowance(ctx context.Context, owner, token common.Address) (*big.Int, error) {
	data, err := erc20ABI.Pack("allowance", owner, g.router)
	if err != nil {
		return nil, err
	}
	out, err := g.client.Backend().CallContract(ctx, gethcore.CallMsg{From: owner, To: &token, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	values, err := erc20ABI.Unpack("allowance", out)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, xerrors.New(xerrors.CodeChainFailure, "allowance 返回字段数量不符")
	}
	allowance, ok := values[0].(*big.Int)
	if !ok || allowance == nil {
		return nil, xerrors.New(xerrors.CodeChainFailure, "allowance 返回类型不符")
	}
	return allowance, nil
}
