package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ForeignChain 外链配置表
// fee_rate 以分数 (num/den) 表示，约束: den != 0 且 num >= den (服务费不为负)
type ForeignChain struct {
	ChainID        uint64    `gorm:"primaryKey" json:"chain_id"`
	NativeDecimals int32     `gorm:"not null;default:18" json:"native_decimals"`
	TransferGas    uint64    `gorm:"not null" json:"transfer_gas"` // 打款交易的固定 gas 用量
	FeeRateNum     uint64    `gorm:"not null;default:120" json:"fee_rate_num"`
	FeeRateDen     uint64    `gorm:"not null;default:100" json:"fee_rate_den"`
	OracleAssetID  string    `gorm:"type:varchar(128);not null" json:"oracle_asset_id"` // 本链原生币的喂价 ID
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Paymaster 代付账户表
// 核心设计: balance/nonce 只是外链真实状态的本地镜像 (会漂移)，
// 引入 Version 字段实现乐观锁，预留/回滚必须原子生效。
type Paymaster struct {
	ID        uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	ChainID   uint64          `gorm:"not null;index:idx_chain_paymaster" json:"chain_id"`
	KeyPath   string          `gorm:"type:varchar(255);not null;unique" json:"key_path"`
	Balance   decimal.Decimal `gorm:"type:numeric(78,0);not null;default:0" json:"balance"` // 外链最小单位，整数
	Nonce     uint64          `gorm:"not null;default:0" json:"nonce"`
	Version   uint64          `gorm:"not null;default:0" json:"version"` // 乐观锁版本号
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Sequence 状态
const (
	SequenceStatusPending = "pending" // 还有未签名的 step
	SequenceStatusSigned  = "signed"  // 全部签完 (终态，可回收)
	SequenceStatusRemoved = "removed" // 创建者主动移除
)

// TransactionSequence 交易序列表
// 一次 create_transaction 产生一条记录; steps 在创建时冻结，之后只前进 cursor。
type TransactionSequence struct {
	ID            uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedBy     string          `gorm:"type:varchar(255);not null;index" json:"created_by"`
	ChainID       uint64          `gorm:"not null" json:"chain_id"`
	Cursor        int             `gorm:"not null;default:0" json:"cursor"`
	DepositLocked decimal.Decimal `gorm:"type:numeric(78,0);not null;default:0" json:"deposit_locked"` // 托管的手续费 (本链资产最小单位)
	DepositAsset  string          `gorm:"type:varchar(128)" json:"deposit_asset"`
	Status        string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"-"`

	// 关联
	Steps []SignatureStep `gorm:"foreignKey:SequenceID" json:"steps,omitempty"`
}

// Step 状态
const (
	StepStatusPending = "pending"
	StepStatusSigned  = "signed"
)

// SignatureStep 签名步骤表
// 每个序列最多两步: 可选的 paymaster 打款步 + 必然存在的用户交易步。
// 打款步永远在用户步之前，因为外链必须先看到转账落账。
type SignatureStep struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	SequenceID  uint64          `gorm:"not null;uniqueIndex:idx_seq_step" json:"sequence_id"`
	Idx         int             `gorm:"not null;uniqueIndex:idx_seq_step" json:"idx"`
	KeyPath     string          `gorm:"type:varchar(255);not null" json:"key_path"`
	IsPaymaster bool            `gorm:"not null;default:false" json:"is_paymaster"`
	TxJSON      []byte          `gorm:"type:text;not null" json:"-"` // evmtx.TransactionRequest
	// 打款步专用: 创建时冻结的代付额度，签名时才落到具体 paymaster
	FundedAmount decimal.Decimal `gorm:"type:numeric(78,0);not null;default:0" json:"funded_amount"`
	PaymasterID  *uint64         `json:"paymaster_id,omitempty"`
	NonceUsed    *uint64         `json:"nonce_used,omitempty"`
	Status       string          `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	SignedRaw    string          `gorm:"type:text" json:"signed_raw,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// KeyAuthorization 密钥授权表 (governor 模型)
// governor 为空时 owner 自己隐式持有签名权; pending_governor 标记进行中的两阶段转移。
type KeyAuthorization struct {
	KeyPath         string    `gorm:"primaryKey;type:varchar(255)" json:"key_path"`
	Owner           string    `gorm:"type:varchar(255);not null" json:"owner"`
	Governor        *string   `gorm:"type:varchar(255)" json:"governor,omitempty"`
	PendingGovernor *string   `gorm:"type:varchar(255)" json:"pending_governor,omitempty"`
	Version         uint64    `gorm:"not null;default:0" json:"version"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CollectedFee 已结算服务费表
// 序列全部签完后，托管的 deposit 从序列转入这里。
type CollectedFee struct {
	AssetID   string          `gorm:"primaryKey;type:varchar(128)" json:"asset_id"`
	Amount    decimal.Decimal `gorm:"type:numeric(78,0);not null;default:0" json:"amount"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// 白名单种类
const (
	WhitelistSender   = "sender"   // 允许发起序列的调用方 key path
	WhitelistReceiver = "receiver" // 允许作为收款方的外链地址 (小写 hex)
)

// WhitelistEntry 白名单条目表
type WhitelistEntry struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Kind      string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_whitelist_kind_value" json:"kind"`
	Value     string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_whitelist_kind_value" json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// WhitelistSwitch 白名单开关表，sender / receiver 各自独立启停。
// 关闭时名单内容保留，下次打开继续生效。
type WhitelistSwitch struct {
	Kind      string    `gorm:"primaryKey;type:varchar(20)" json:"kind"`
	Enabled   bool      `gorm:"not null;default:false" json:"enabled"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OutboxMessage 本地消息表 (Transactional Outbox)
type OutboxMessage struct {
	ID        uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	Topic     string         `gorm:"type:varchar(255);not null" json:"topic"`
	Key       string         `gorm:"type:varchar(255)" json:"key"`
	Payload   []byte         `gorm:"type:text;not null" json:"payload"`
	Status    string         `gorm:"type:varchar(50);not null;default:'PENDING';index" json:"status"` // PENDING, SENT, FAILED
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName 指定表名
func (ForeignChain) TableName() string {
	return "foreign_chains"
}

func (Paymaster) TableName() string {
	return "paymasters"
}

func (TransactionSequence) TableName() string {
	return "transaction_sequences"
}

func (SignatureStep) TableName() string {
	return "signature_steps"
}

func (KeyAuthorization) TableName() string {
	return "key_authorizations"
}

func (CollectedFee) TableName() string {
	return "collected_fees"
}

func (WhitelistEntry) TableName() string {
	return "whitelist_entries"
}

func (WhitelistSwitch) TableName() string {
	return "whitelist_switches"
}

func (OutboxMessage) TableName() string {
	return "outbox_messages"
}
