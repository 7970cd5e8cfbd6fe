package intent

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// routerABIJSON 描述意图路由合约对外暴露的两个入口。previewIntent 是只读
// 预览，executeIntent 是真正的执行入口，原生币金额通过 value 传入。
const routerABIJSON = `[
  {
    "type": "function",
    "name": "previewIntent",
    "stateMutability": "view",
    "inputs": [
      {"name": "caller", "type": "address"},
      {"name": "intent", "type": "string"}
    ],
    "outputs": [
      {"name": "action", "type": "uint8"},
      {"name": "amount", "type": "uint256"},
      {"name": "token", "type": "address"}
    ]
  },
  {
    "type": "function",
    "name": "executeIntent",
    "stateMutability": "payable",
    "inputs": [
      {"name": "intent", "type": "string"}
    ],
    "outputs": []
  }
]`

// erc20ABIJSON 仅包含授权守卫与格式化需要的 ERC-20 片段。
const erc20ABIJSON = `[
  {
    "type": "function",
    "name": "allowance",
    "stateMutability": "view",
    "inputs": [
      {"name": "owner", "type": "address"},
      {"name": "spender", "type": "address"}
    ],
    "outputs": [
      {"name": "", "type": "uint256"}
    ]
  },
  {
    "type": "function",
    "name": "approve",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "spender", "type": "address"},
      {"name": "amount", "type": "uint256"}
    ],
    "outputs": [
      {"name": "", "type": "bool"}
    ]
  },
  {
    "type": "function",
    "name": "decimals",
    "stateMutability": "view",
    "inputs": [],
    "outputs": [
      {"name": "", "type": "uint8"}
    ]
  }
]`

var (
	routerABI abi.ABI
	erc20ABI  abi.ABI
)

func init() {
	routerABI = mustParseABI("router", routerABIJSON)
	erc20ABI = mustParseABI("erc20", erc20ABIJSON)
}

func mustParseABI(name, raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("解析 %s ABI 失败: %v", name, err))
	}
	return parsed
}
