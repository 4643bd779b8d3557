package repo

import (
	"context"
	"errors"

	"gas-station/internal/model"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("repo: record not found")
	// ErrConflict 乐观锁冲突 (Version 不匹配)
	ErrConflict = errors.New("repo: version conflict")
)

// Store 统一存储接口
// 两个实现: Gorm (Postgres，生产) 和 Memory (单测/本地联调)。
// 约定: 所有 List 返回按主键升序 —— paymaster 选取策略依赖这个顺序保证确定性。
type Store interface {
	// 外链配置
	GetChain(ctx context.Context, chainID uint64) (*model.ForeignChain, error)
	UpsertChain(ctx context.Context, chain *model.ForeignChain) error
	ListChains(ctx context.Context) ([]model.ForeignChain, error)
	DeleteChain(ctx context.Context, chainID uint64) error

	// Paymaster 账本
	CreatePaymaster(ctx context.Context, p *model.Paymaster) error
	GetPaymaster(ctx context.Context, id uint64) (*model.Paymaster, error)
	ListPaymasters(ctx context.Context, chainID uint64) ([]model.Paymaster, error)
	// UpdatePaymaster 带乐观锁: 只有 Version 匹配才会写入，写入后 Version+1
	UpdatePaymaster(ctx context.Context, p *model.Paymaster) error

	// 交易序列
	CreateSequence(ctx context.Context, seq *model.TransactionSequence) error
	GetSequence(ctx context.Context, id uint64) (*model.TransactionSequence, error)
	// SaveSequenceProgress 在一个事务里推进 cursor 并落签名结果
	SaveSequenceProgress(ctx context.Context, seq *model.TransactionSequence, step *model.SignatureStep) error
	MarkSequenceRemoved(ctx context.Context, id uint64) error

	// 密钥授权
	GetKeyAuth(ctx context.Context, path string) (*model.KeyAuthorization, error)
	// SaveKeyAuth 带乐观锁，同 UpdatePaymaster
	SaveKeyAuth(ctx context.Context, auth *model.KeyAuthorization) error

	// 服务费
	AddCollectedFee(ctx context.Context, assetID string, amount decimal.Decimal) error
	GetCollectedFee(ctx context.Context, assetID string) (decimal.Decimal, error)

	// 白名单 (kind: model.WhitelistSender / model.WhitelistReceiver)
	AddWhitelistEntry(ctx context.Context, kind, value string) error
	RemoveWhitelistEntry(ctx context.Context, kind, value string) error
	ListWhitelist(ctx context.Context, kind string) ([]string, error)
	IsWhitelisted(ctx context.Context, kind, value string) (bool, error)
	SetWhitelistEnabled(ctx context.Context, kind string, enabled bool) error
	WhitelistEnabled(ctx context.Context, kind string) (bool, error)

	// Outbox
	AppendOutbox(ctx context.Context, topic, key string, payload []byte) error
	ListPendingOutbox(ctx context.Context, limit int) ([]model.OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, id uint64) error
}
