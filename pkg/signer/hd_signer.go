package signer

import (
	"context"
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"

	"gas-station/pkg/bip32"
	"gas-station/pkg/safe_random"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/crypto"
	bip39 "github.com/tyler-smith/go-bip39"
	"lukechampine.com/blake3"
)

// baseDerivationPath 下按 path 哈希派生具体子密钥
const baseDerivationPath = "m/44'/60'/0'/0"

// HDSigner 是 Signer 接口的本地实现。
// 它模拟外部的 MPC 签名服务: 用一棵 BIP-32 树扮演分布式密钥，
// path 字符串被哈希成确定性的派生索引，所以同一个 path 永远得到同一把密钥。
// 仅用于开发与测试，生产环境应使用 RemoteSigner。
type HDSigner struct {
	base *bip32.Wallet
}

// NewHDSigner 从助记词构造。mnemonic 为空时生成一个随机种子
// (此时密钥在进程重启后不可复现，只适合一次性测试)。
func NewHDSigner(mnemonic string) (*HDSigner, error) {
	var seed []byte
	if mnemonic == "" {
		var err error
		seed, err = safe_random.GenerateRandomBytes(32)
		if err != nil {
			return nil, err
		}
	} else {
		if !bip39.IsMnemonicValid(mnemonic) {
			return nil, fmt.Errorf("无效的助记词")
		}
		seed = bip39.NewSeed(mnemonic, "")
	}

	wallet, err := bip32.NewMasterKeyFromSeed(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}

	return &HDSigner{base: wallet}, nil
}

// pathIndex 把不透明的 path 字符串映射为确定性的非强化派生索引
func pathIndex(path string) uint32 {
	sum := blake3.Sum256([]byte(path))
	return binary.BigEndian.Uint32(sum[:4]) & 0x7fffffff
}

func (s *HDSigner) derive(path string) (*ecdsa.PrivateKey, error) {
	account, err := s.base.DerivePath(baseDerivationPath)
	if err != nil {
		return nil, err
	}

	child, err := account.Derive(pathIndex(path))
	if err != nil {
		return nil, err
	}

	priv, err := child.ECPrivKey()
	if err != nil {
		return nil, err
	}

	// crypto.Sign 要求密钥的 Curve 是 go-ethereum 自己的曲线实例，
	// btcec 的 ToECDSA 返回的实例通不过该指针比较，故经字节转换一次。
	return crypto.ToECDSA(priv.Serialize())
}

func (s *HDSigner) Sign(ctx context.Context, path string, digest [32]byte) ([]byte, error) {
	priv, err := s.derive(path)
	if err != nil {
		return nil, err
	}

	sig, err := crypto.Sign(digest[:], priv)
	if err != nil {
		return nil, err
	}
	return sig, nil
}

func (s *HDSigner) PublicKey(ctx context.Context, path string) (*ecdsa.PublicKey, error) {
	priv, err := s.derive(path)
	if err != nil {
		return nil, err
	}
	return &priv.PublicKey, nil
}
