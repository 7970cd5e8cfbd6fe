// Package web3 houses blockchain connectivity utilities for the intent
// pipeline, including the chain client abstraction, RPC clients and
// multi-chain configuration helpers. It lets the orchestration layer perform
// standardized interactions with supported EVM networks such as Ethereum,
// BSC, and Polygon.
package web3
