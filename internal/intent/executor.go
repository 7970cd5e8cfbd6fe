package intent

import (
	"context"
	"math/big"

	xerrors "IntentFlow-Chain/internal/errors"
	"IntentFlow-Chain/internal/signer"
	"IntentFlow-Chain/internal/web3"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// Executor 向路由合约提交 executeIntent 交易。交易 value 只在结算代币为
// 原生币哨兵时等于预览金额，其余情况一律为零，代币金额由合约通过授权划转。
type Executor struct {
	client web3.Client
	router common.Address
}

// NewExecutor 构造 Executor。
func NewExecutor(client web3.Client, router common.Address) *Executor {
	return &Executor{client: client, router: router}
}

// Submit 签名并广播 executeIntent 交易，节点接受提交后立即返回交易哈希，
// 不等待打包。
func (e *Executor) Submit(ctx context.Context, sg *signer.Signer, intentText string, preview *Preview) (common.Hash, error) {
	if e == nil || e.client == nil {
		return common.Hash{}, xerrors.New(xerrors.CodeInitializationFailure, "执行器未初始化")
	}
	if sg == nil || preview == nil || preview.Amount == nil {
		return common.Hash{}, xerrors.New(xerrors.CodeInvalidArgument, "执行意图缺少必要参数")
	}

	chainID, err := e.client.ChainID(ctx)
	if err != nil {
		return common.Hash{}, xerrors.Wrap(CodeExecutionFailure, err, "获取链 ID 失败")
	}
	opts, err := sg.TransactOpts(chainID)
	if err != nil {
		return common.Hash{}, xerrors.Wrap(CodeExecutionFailure, err, "构造交易签名器失败")
	}
	opts.Context = ctx
	if IsNativeToken(preview.Token) {
		opts.Value = new(big.Int).Set(preview.Amount)
	}

	backend := e.client.Backend()
	router := bind.NewBoundContract(e.router, routerABI, backend, backend, backend)
	tx, err := router.Transact(opts, "executeIntent", intentText)
	if err != nil {
		return common.Hash{}, xerrors.Wrap(CodeExecutionFailure, err, "提交意图交易失败")
	}
	return tx.Hash(), nil
}
