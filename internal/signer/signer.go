package signer

import (
	"crypto/ecdsa"
	"encoding/hex"
	"math/big"
	"strings"

	xerrors "IntentFlow-Chain/internal/errors"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer 封装一个可用于交易签名的 ECDSA 私钥。
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// FromKey 基于已有私钥构造 Signer。
func FromKey(key *ecdsa.PrivateKey) (*Signer, error) {
	if key == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "私钥不能为空")
	}
	return &Signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// FromHex 解析十六进制私钥并构造 Signer。
func FromHex(hexKey string) (*Signer, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "私钥不能为空")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "解析私钥失败")
	}
	return FromKey(key)
}

// Address 返回签名者对应的链上地址。
func (s *Signer) Address() common.Address {
	if s == nil {
		return common.Address{}
	}
	return s.address
}

// SignTx 使用链 ID 对应的签名器签署交易。
func (s *Signer) SignTx(tx *coretypes.Transaction, chainID *big.Int) (*coretypes.Transaction, error) {
	if s == nil || s.key == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "签名者未初始化")
	}
	return coretypes.SignTx(tx, coretypes.LatestSignerForChainID(chainID), s.key)
}

// TransactOpts 返回用于 bind 合约调用的交易签名配置。
func (s *Signer) TransactOpts(chainID *big.Int) (*bind.TransactOpts, error) {
	if s == nil || s.key == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "签名者未初始化")
	}
	return bind.NewKeyedTransactorWithChainID(s.key, chainID)
}

// KeyHex 返回十六进制编码的私钥，供持久化存储使用。
func (s *Signer) KeyHex() string {
	if s == nil || s.key == nil {
		return ""
	}
	return hex.EncodeToString(crypto.FromECDSA(s.key))
}
