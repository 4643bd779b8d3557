package request

import "github.com/shopspring/decimal"

// CreateTransactionRequest 创建交易序列
// transaction 是 RLP hex 编码的未签名 EIP-1559 交易
type CreateTransactionRequest struct {
	Transaction  string          `json:"transaction" binding:"required"`
	UsePaymaster bool            `json:"use_paymaster"`
	Deposit      decimal.Decimal `json:"deposit"`
}

// EstimateFeeRequest 估算 use_paymaster 模式所需充值
type EstimateFeeRequest struct {
	Transaction string `json:"transaction" binding:"required"`
}

// TransferGovernorshipRequest 发起治理权转移
type TransferGovernorshipRequest struct {
	KeyPath     string `json:"key_path" binding:"required"`
	NewGovernor string `json:"new_governor" binding:"required"`
}

// ReleaseGovernorshipRequest 放弃治理权
type ReleaseGovernorshipRequest struct {
	KeyPath string `json:"key_path" binding:"required"`
}

// AcceptGovernorshipRequest 候任方收到的握手请求
type AcceptGovernorshipRequest struct {
	Owner   string `json:"owner" binding:"required"`
	KeyPath string `json:"key_path" binding:"required"`
}

// RegisterChainRequest 登记外链
type RegisterChainRequest struct {
	ChainID        uint64 `json:"chain_id" binding:"required"`
	NativeDecimals int32  `json:"native_decimals"`
	TransferGas    uint64 `json:"transfer_gas" binding:"required"`
	FeeRateNum     uint64 `json:"fee_rate_num" binding:"required"`
	FeeRateDen     uint64 `json:"fee_rate_den" binding:"required"`
	OracleAssetID  string `json:"oracle_asset_id" binding:"required"`
}

// AddPaymasterRequest 注册 paymaster
type AddPaymasterRequest struct {
	ChainID uint64          `json:"chain_id" binding:"required"`
	Balance decimal.Decimal `json:"balance"`
}

// MutatePaymasterRequest 账本校准 (top_up / set_balance / set_nonce 共用)
type MutatePaymasterRequest struct {
	Amount  *decimal.Decimal `json:"amount,omitempty"`
	Balance *decimal.Decimal `json:"balance,omitempty"`
	Nonce   *uint64          `json:"nonce,omitempty"`
}

// WhitelistEntryRequest 白名单条目增删
// kind: sender (key path) / receiver (外链地址)
type WhitelistEntryRequest struct {
	Kind  string `json:"kind" binding:"required"`
	Value string `json:"value" binding:"required"`
}

// WhitelistToggleRequest 白名单开关
type WhitelistToggleRequest struct {
	Kind    string `json:"kind" binding:"required"`
	Enabled bool   `json:"enabled"`
}
