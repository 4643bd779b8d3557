package evmtx

import (
	"math/big"
	"testing"

	"gas-station/pkg/errno"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundtrip(t *testing.T) {
	to := common.HexToAddress("0x9000000000000000000000000000000000000009")
	tx := NewFundingTransfer(97, to, big.NewInt(1234), 21000, 5, big.NewInt(20), big.NewInt(2))

	raw, err := tx.EncodeUnsigned()
	require.NoError(t, err)

	decoded, err := DecodeUnsigned(raw)
	require.NoError(t, err)

	assert.Equal(t, uint64(97), decoded.ChainID)
	assert.Equal(t, to, decoded.To)
	assert.Equal(t, uint64(5), decoded.Nonce)
	assert.Equal(t, uint64(21000), decoded.Gas)
	assert.Equal(t, "1234", decoded.Value.ToInt().String())
	assert.Equal(t, "20", decoded.GasFeeCap.ToInt().String())
	assert.Equal(t, "2", decoded.GasTipCap.ToInt().String())
}

func TestDecodeUnsignedRejectsBadInput(t *testing.T) {
	to := common.HexToAddress("0x9000000000000000000000000000000000000009")

	// Legacy (type 0) 交易
	legacy := types.NewTx(&types.LegacyTx{
		Nonce:    0,
		To:       &to,
		Value:    big.NewInt(1),
		Gas:      21000,
		GasPrice: big.NewInt(1),
	})
	legacyRaw, err := legacy.MarshalBinary()
	require.NoError(t, err)

	// 合约创建 (to 为空)
	create := types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(97),
		Gas:       100000,
		GasFeeCap: big.NewInt(5),
		GasTipCap: big.NewInt(1),
		Data:      []byte{0x60, 0x00},
	})
	createRaw, err := create.MarshalBinary()
	require.NoError(t, err)

	tests := []struct {
		name string
		raw  string
	}{
		{"非 hex", "zzzz"},
		{"空输入", "0x"},
		{"legacy 交易", hexutil.Encode(legacyRaw)},
		{"合约创建", hexutil.Encode(createRaw)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeUnsigned(tt.raw)
			assert.ErrorIs(t, err, errno.ErrMalformedTransaction)
		})
	}
}

func TestAttachSignatureRecoversSender(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	to := common.HexToAddress("0x9000000000000000000000000000000000000009")
	tx := NewFundingTransfer(97, to, big.NewInt(42), 21000, 0, big.NewInt(20), big.NewInt(2))

	digest := tx.SigningHash()
	sig, err := crypto.Sign(digest[:], priv)
	require.NoError(t, err)

	rawHex, err := tx.AttachSignature(sig)
	require.NoError(t, err)

	raw, err := hexutil.Decode(rawHex)
	require.NoError(t, err)
	signed := new(types.Transaction)
	require.NoError(t, signed.UnmarshalBinary(raw))

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(97)), signed)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(priv.PublicKey), sender)
}

func TestForeignAddress(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(priv.PublicKey), ForeignAddress(&priv.PublicKey))
}
