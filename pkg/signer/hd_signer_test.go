package signer

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestHDSignerDeterministicKeys(t *testing.T) {
	s1, err := NewHDSigner(testMnemonic)
	require.NoError(t, err)
	s2, err := NewHDSigner(testMnemonic)
	require.NoError(t, err)

	ctx := context.Background()

	// 同一个 path 在不同实例上得到同一把密钥
	pub1, err := s1.PublicKey(ctx, "alice")
	require.NoError(t, err)
	pub2, err := s2.PublicKey(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(*pub1), crypto.PubkeyToAddress(*pub2))

	// 不同 path 不同密钥
	pubOther, err := s1.PublicKey(ctx, "bob")
	require.NoError(t, err)
	assert.NotEqual(t, crypto.PubkeyToAddress(*pub1), crypto.PubkeyToAddress(*pubOther))
}

func TestHDSignerSignatureRecoverable(t *testing.T) {
	s, err := NewHDSigner(testMnemonic)
	require.NoError(t, err)

	ctx := context.Background()
	var digest [32]byte
	copy(digest[:], crypto.Keccak256([]byte("payload")))

	sig, err := s.Sign(ctx, "alice", digest)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	recovered, err := crypto.SigToPub(digest[:], sig)
	require.NoError(t, err)

	pub, err := s.PublicKey(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(*pub), crypto.PubkeyToAddress(*recovered))
}

func TestHDSignerRejectsInvalidMnemonic(t *testing.T) {
	_, err := NewHDSigner("definitely not a mnemonic")
	assert.Error(t, err)
}

func TestPathIndexIsNonHardened(t *testing.T) {
	for _, path := range []string{"alice", "bob", "paymaster/97/abcdef"} {
		assert.Less(t, pathIndex(path), uint32(0x80000000), path)
	}
}
