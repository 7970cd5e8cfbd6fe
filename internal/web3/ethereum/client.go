package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"IntentFlow-Chain/internal/web3"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/abi/bind/backends"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// Config describes how to construct an EVM compatible client.
type Config struct {
	Name        string
	RPCURL      string
	ExplorerURL string
	Notes       string
}

// Client implements the web3.Client interface for EVM compatible chains.
type Client struct {
	name         string
	notes        string
	explorerBase string
	rpcClient    *gethrpc.Client
	eth          *ethclient.Client
	backend      bind.ContractBackend
	mu           sync.Mutex
	chainID      *big.Int
}

// NewClient dials the configured RPC endpoint and returns a ready-to-use client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("未配置以太坊 RPC 地址")
	}

	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接以太坊节点失败: %w", err)
	}

	eth := ethclient.NewClient(rpcClient)

	return &Client{
		name:         cfg.Name,
		notes:        cfg.Notes,
		explorerBase: strings.TrimRight(strings.TrimSpace(cfg.ExplorerURL), "/"),
		rpcClient:    rpcClient,
		eth:          eth,
		backend:      eth,
	}, nil
}

// NewSimulatedClient wraps a go-ethereum simulated backend for testing purposes.
func NewSimulatedClient(name string, chainID *big.Int, backend *backends.SimulatedBackend) *Client {
	return &Client{
		name:         name,
		backend:      backend,
		chainID:      new(big.Int).Set(chainID),
		explorerBase: "https://explorer.invalid",
		notes:        "simulated backend",
	}
}

// Name returns the configured chain name.
func (c *Client) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

// ExplorerBase returns the block explorer base URL without a trailing slash.
func (c *Client) ExplorerBase() string {
	if c == nil {
		return ""
	}
	return c.explorerBase
}

// Close releases network connections held by the client.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.eth != nil {
		c.eth.Close()
		c.eth = nil
	}
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
	c.rpcClient = nil
}

// Backend exposes the contract backend used for calls and transactions.
func (c *Client) Backend() bind.ContractBackend {
	if c == nil {
		return nil
	}
	if c.backend != nil {
		return c.backend
	}
	if c.eth != nil {
		return c.eth
	}
	return nil
}

// ChainID returns the chain identifier, caching the first successful lookup.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	if c == nil {
		return nil, errors.New("未初始化的以太坊客户端")
	}

	c.mu.Lock()
	cached := c.chainID
	c.mu.Unlock()
	if cached != nil {
		return new(big.Int).Set(cached), nil
	}

	if c.eth == nil {
		return nil, errors.New("未配置链 ID")
	}
	id, err := c.eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取链 ID 失败: %w", err)
	}

	c.mu.Lock()
	c.chainID = new(big.Int).Set(id)
	c.mu.Unlock()
	return id, nil
}

// TransactionReceipt fetches the receipt for the given transaction hash.
// Callers are expected to treat a not-found error as "keep polling".
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*coretypes.Receipt, error) {
	if c == nil {
		return nil, errors.New("未初始化的以太坊客户端")
	}
	if c.eth != nil {
		return c.eth.TransactionReceipt(ctx, txHash)
	}
	reader := c.receiptBackend()
	if reader == nil {
		return nil, errors.New("当前客户端不支持回执查询")
	}
	return reader.TransactionReceipt(ctx, txHash)
}

// FetchChainSnapshot gathers lightweight metadata from the chain.
func (c *Client) FetchChainSnapshot(ctx context.Context) (web3.ChainSnapshot, error) {
	if c == nil {
		return web3.ChainSnapshot{}, errors.New("未初始化的以太坊客户端")
	}

	if c.eth != nil {
		chainID, err := c.ChainID(ctx)
		if err != nil {
			return web3.ChainSnapshot{}, err
		}
		blockNumber, err := c.eth.BlockNumber(ctx)
		if err != nil {
			return web3.ChainSnapshot{}, fmt.Errorf("获取最新区块高度失败: %w", err)
		}
		return web3.ChainSnapshot{
			ChainID:     toHexBig(chainID),
			BlockNumber: fmt.Sprintf("0x%x", blockNumber),
			Notes:       c.notes,
		}, nil
	}

	backend := c.backend
	if backend == nil {
		return web3.ChainSnapshot{}, errors.New("客户端缺少链访问后端")
	}

	id := c.chainID
	if id == nil {
		return web3.ChainSnapshot{}, errors.New("未配置链 ID")
	}

	header, err := backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return web3.ChainSnapshot{}, fmt.Errorf("获取区块信息失败: %w", err)
	}

	return web3.ChainSnapshot{
		ChainID:     toHexBig(id),
		BlockNumber: fmt.Sprintf("0x%x", header.Number.Uint64()),
		Notes:       c.notes,
	}, nil
}

func (c *Client) receiptBackend() interface {
	TransactionReceipt(context.Context, common.Hash) (*coretypes.Receipt, error)
} {
	if backend, ok := c.backend.(interface {
		TransactionReceipt(context.Context, common.Hash) (*coretypes.Receipt, error)
	}); ok {
		return backend
	}
	return nil
}

func toHexBig(n *big.Int) string {
	if n == nil {
		return "0x0"
	}
	return "0x" + n.Text(16)
}
