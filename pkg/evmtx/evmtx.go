package evmtx

import (
	"crypto/ecdsa"
	"math/big"

	"gas-station/pkg/errno"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// TransactionRequest 是一笔校验通过的 EIP-1559 未签名交易。
// 所有必填字段在 Decode 时已确认存在，之后不可变，
// 以 JSON 形式持久化在 signature_steps.tx_json 中。
type TransactionRequest struct {
	ChainID   uint64           `json:"chain_id"`
	To        common.Address   `json:"to"`
	Nonce     uint64           `json:"nonce"`
	Gas       uint64           `json:"gas"`
	Value     *hexutil.Big     `json:"value"`
	GasFeeCap *hexutil.Big     `json:"max_fee_per_gas"`
	GasTipCap *hexutil.Big     `json:"max_priority_fee_per_gas"`
	Data      hexutil.Bytes    `json:"data,omitempty"`
	AccessList types.AccessList `json:"access_list,omitempty"`
}

// DecodeUnsigned 解析 RLP hex 并校验必填字段。
// 只接受 EIP-1559 (type 2) 交易; 缺少 to/chain_id/gas/max_fee_per_gas 的一律拒绝。
func DecodeUnsigned(rlpHex string) (*TransactionRequest, error) {
	raw, err := hexutil.Decode(rlpHex)
	if err != nil {
		return nil, errno.ErrMalformedTransaction
	}

	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, errno.ErrMalformedTransaction
	}

	if tx.Type() != types.DynamicFeeTxType {
		return nil, errno.ErrMalformedTransaction
	}
	if tx.To() == nil || tx.ChainId() == nil || tx.ChainId().Sign() <= 0 {
		return nil, errno.ErrMalformedTransaction
	}
	if tx.Gas() == 0 || tx.GasFeeCap() == nil || tx.GasFeeCap().Sign() <= 0 {
		return nil, errno.ErrMalformedTransaction
	}

	return &TransactionRequest{
		ChainID:    tx.ChainId().Uint64(),
		To:         *tx.To(),
		Nonce:      tx.Nonce(),
		Gas:        tx.Gas(),
		Value:      (*hexutil.Big)(tx.Value()),
		GasFeeCap:  (*hexutil.Big)(tx.GasFeeCap()),
		GasTipCap:  (*hexutil.Big)(tx.GasTipCap()),
		Data:       tx.Data(),
		AccessList: tx.AccessList(),
	}, nil
}

// NewFundingTransfer 构造 paymaster 给用户地址转 gas 费的打款交易。
// 费率参数照抄用户交易，保证两笔交易在同一个区块环境下都能被接受。
func NewFundingTransfer(chainID uint64, to common.Address, value *big.Int, gas uint64, nonce uint64, feeCap, tipCap *big.Int) *TransactionRequest {
	return &TransactionRequest{
		ChainID:   chainID,
		To:        to,
		Nonce:     nonce,
		Gas:       gas,
		Value:     (*hexutil.Big)(value),
		GasFeeCap: (*hexutil.Big)(feeCap),
		GasTipCap: (*hexutil.Big)(tipCap),
	}
}

func (r *TransactionRequest) chainID() *big.Int {
	return new(big.Int).SetUint64(r.ChainID)
}

// ToTransaction 还原为 go-ethereum 交易对象
func (r *TransactionRequest) ToTransaction() *types.Transaction {
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:    r.chainID(),
		Nonce:      r.Nonce,
		GasTipCap:  (*big.Int)(r.GasTipCap),
		GasFeeCap:  (*big.Int)(r.GasFeeCap),
		Gas:        r.Gas,
		To:         &r.To,
		Value:      (*big.Int)(r.Value),
		Data:       r.Data,
		AccessList: r.AccessList,
	})
}

// SigningHash 返回送去 MPC 签名的 32 字节摘要
func (r *TransactionRequest) SigningHash() [32]byte {
	s := types.LatestSignerForChainID(r.chainID())
	return [32]byte(s.Hash(r.ToTransaction()))
}

// AttachSignature 把 65 字节 [R || S || V] 签名装回交易，
// 返回可直接广播的 RLP hex。
func (r *TransactionRequest) AttachSignature(sig []byte) (string, error) {
	s := types.LatestSignerForChainID(r.chainID())

	signed, err := r.ToTransaction().WithSignature(s, sig)
	if err != nil {
		return "", err
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return "", err
	}

	return hexutil.Encode(raw), nil
}

// EncodeUnsigned 返回未签名交易的 RLP hex (CLI 构造交易用)
func (r *TransactionRequest) EncodeUnsigned() (string, error) {
	raw, err := r.ToTransaction().MarshalBinary()
	if err != nil {
		return "", err
	}
	return hexutil.Encode(raw), nil
}

// ForeignAddress 从 secp256k1 公钥推导外链 (EVM) 地址
func ForeignAddress(pub *ecdsa.PublicKey) common.Address {
	return crypto.PubkeyToAddress(*pub)
}
