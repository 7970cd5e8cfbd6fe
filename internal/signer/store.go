package signer

import (
	"context"

	xerrors "IntentFlow-Chain/internal/errors"
)

const (
	CodeSignerNotFound xerrors.Code = "SIGNER_NOT_FOUND"
)

func init() {
	xerrors.Register(CodeSignerNotFound, xerrors.Attributes{
		Message:   "signer not found",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
}

// ErrSignerNotFound 表示指定会话没有注册签名者。
var ErrSignerNotFound = xerrors.New(CodeSignerNotFound, "signer not found")

// Store 抽象了按会话标识存取签名者的能力。密钥的生命周期与持久化策略
// 由宿主应用决定，管线只通过该接口读取。
type Store interface {
	Get(ctx context.Context, session string) (*Signer, error)
	Put(ctx context.Context, session string, signer *Signer) error
	Delete(ctx context.Context, session string) error
	Close() error
}
