package signer

import (
	"context"
	"crypto/ecdsa"
	"errors"
)

// Signer 抽象阈值签名能力 (外部协作方，黑盒)。
// path 是一个不透明的逻辑密钥标识:
//   - paymaster 的 path 在注册时确定，永不变化
//   - 用户的 path 就是调用方的身份字符串，保证每个调用方有稳定的外链地址
type Signer interface {
	// Sign 对 32 字节摘要签名，返回 65 字节 [R || S || V] 可恢复签名。
	// 失败时必须返回错误，调用方负责回滚/重试。
	Sign(ctx context.Context, path string, digest [32]byte) ([]byte, error)

	// PublicKey 返回 path 对应的 secp256k1 公钥 (用于推导外链地址)
	PublicKey(ctx context.Context, path string) (*ecdsa.PublicKey, error)
}

var (
	ErrSignRejected = errors.New("signer: signing request rejected")
	ErrBadSignature = errors.New("signer: malformed signature returned")
)
