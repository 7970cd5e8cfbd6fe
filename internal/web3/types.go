package web3

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
)

// ChainSnapshot represents summarized network metadata for health reporting.
type ChainSnapshot struct {
	ChainID     string
	BlockNumber string
	Notes       string
}

// Client defines the common interface that any chain implementation must
// provide so the intent pipeline can interact with different networks
// uniformly. Backend exposes the full contract backend used for read calls
// and transaction submission; receipts are fetched separately because the
// bind backend interface does not cover them.
type Client interface {
	Name() string
	ExplorerBase() string
	ChainID(ctx context.Context) (*big.Int, error)
	Backend() bind.ContractBackend
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*coretypes.Receipt, error)
	FetchChainSnapshot(ctx context.Context) (ChainSnapshot, error)
	Close()
}
