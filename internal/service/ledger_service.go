package service

import (
	"context"
	"errors"
	"fmt"

	"gas-station/internal/model"
	"gas-station/internal/repo"
	"gas-station/pkg/crypto_util"
	"gas-station/pkg/errno"
	"gas-station/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// allocateRetries 乐观锁冲突时的重试次数
const allocateRetries = 3

// Allocation 一次成功的代付预留。签名失败时必须用它原样回滚。
type Allocation struct {
	Paymaster *model.Paymaster
	Nonce     uint64 // 预留时占用的 nonce
	Amount    decimal.Decimal
}

// LedgerService 管理各外链的 paymaster 账本。
// balance/nonce 是外链真实状态的本地影子，这里只保证内部一致:
// 预留与回滚通过乐观锁原子生效，绝不超卖。
type LedgerService struct {
	store repo.Store
}

func NewLedgerService(store repo.Store) *LedgerService {
	return &LedgerService{store: store}
}

// selectPaymaster 确定性选取: 余额足够的 paymaster 里 ID 最小的那个。
// 入参依赖 ListPaymasters 的升序约定。
func selectPaymaster(ps []model.Paymaster, amount decimal.Decimal) *model.Paymaster {
	for i := range ps {
		if ps[i].Balance.GreaterThanOrEqual(amount) {
			return &ps[i]
		}
	}
	return nil
}

// Allocate 从 chainID 的账本中预留 amount。
// 扣减余额并占用一个 nonce，提交后才去请求签名 —— 这样并发的
// 预留之间不会复用 nonce，也不会把同一笔余额卖两次。
func (s *LedgerService) Allocate(ctx context.Context, chainID uint64, amount decimal.Decimal) (*Allocation, error) {
	for attempt := 0; attempt < allocateRetries; attempt++ {
		ps, err := s.store.ListPaymasters(ctx, chainID)
		if err != nil {
			return nil, errno.ErrDatabase
		}

		p := selectPaymaster(ps, amount)
		if p == nil {
			return nil, errno.ErrNoFundedPaymaster
		}

		nonce := p.Nonce
		p.Balance = p.Balance.Sub(amount)
		p.Nonce = nonce + 1
		err = s.store.UpdatePaymaster(ctx, p)
		if errors.Is(err, repo.ErrConflict) {
			continue // 别人抢先了，重读再试
		}
		if err != nil {
			return nil, errno.ErrDatabase
		}

		logger.Log.Info("paymaster allocated",
			zap.Uint64("chain_id", chainID),
			zap.Uint64("paymaster_id", p.ID),
			zap.Uint64("nonce", nonce),
			zap.String("amount", amount.String()))
		return &Allocation{Paymaster: p, Nonce: nonce, Amount: amount}, nil
	}
	return nil, errno.ErrLedgerConflict
}

// Release 回滚一次预留: 余额加回，nonce 退回占用前的值。
// 只在签名失败后调用，此时不可能有人用过这个 nonce。
func (s *LedgerService) Release(ctx context.Context, alloc *Allocation) error {
	for attempt := 0; attempt < allocateRetries; attempt++ {
		p, err := s.store.GetPaymaster(ctx, alloc.Paymaster.ID)
		if err != nil {
			return errno.ErrDatabase
		}

		p.Balance = p.Balance.Add(alloc.Amount)
		p.Nonce = alloc.Nonce
		err = s.store.UpdatePaymaster(ctx, p)
		if errors.Is(err, repo.ErrConflict) {
			continue
		}
		if err != nil {
			return errno.ErrDatabase
		}

		logger.Log.Warn("paymaster allocation released",
			zap.Uint64("paymaster_id", p.ID),
			zap.Uint64("nonce", alloc.Nonce),
			zap.String("amount", alloc.Amount.String()))
		return nil
	}
	return errno.ErrLedgerConflict
}

// paymasterKeyPath 派生确定性的 key path。
// 同一条链上第 n 个 paymaster 的 path 永远相同，重建数据库不换地址。
func paymasterKeyPath(chainID uint64, index int) string {
	digest := crypto_util.CalculateBlake3([]byte(fmt.Sprintf("paymaster:%d:%d", chainID, index)))
	return fmt.Sprintf("paymaster/%d/%s", chainID, digest[:16])
}

// Register 在 chainID 下登记一个新 paymaster，初始余额 balance。
func (s *LedgerService) Register(ctx context.Context, chainID uint64, balance decimal.Decimal) (*model.Paymaster, error) {
	if _, err := s.store.GetChain(ctx, chainID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errno.ErrUnsupportedChain
		}
		return nil, errno.ErrDatabase
	}

	existing, err := s.store.ListPaymasters(ctx, chainID)
	if err != nil {
		return nil, errno.ErrDatabase
	}

	p := &model.Paymaster{
		ChainID: chainID,
		KeyPath: paymasterKeyPath(chainID, len(existing)+1),
		Balance: balance,
	}
	if err := s.store.CreatePaymaster(ctx, p); err != nil {
		return nil, errno.ErrDatabase
	}
	logger.Log.Info("paymaster registered",
		zap.Uint64("chain_id", chainID),
		zap.Uint64("paymaster_id", p.ID),
		zap.String("key_path", p.KeyPath))
	return p, nil
}

// TopUp 给指定 paymaster 加余额 (运营确认外链到账后调用)
func (s *LedgerService) TopUp(ctx context.Context, id uint64, amount decimal.Decimal) (*model.Paymaster, error) {
	return s.mutate(ctx, id, func(p *model.Paymaster) {
		p.Balance = p.Balance.Add(amount)
	})
}

// SetBalance 直接覆盖余额 (影子与外链漂移后的人工校准)
func (s *LedgerService) SetBalance(ctx context.Context, id uint64, balance decimal.Decimal) (*model.Paymaster, error) {
	return s.mutate(ctx, id, func(p *model.Paymaster) {
		p.Balance = balance
	})
}

// SetNonce 直接覆盖 nonce。对 in-flight 的预留不做保护，
// 调用方自己确认没有未完成的序列在用这个 paymaster。
func (s *LedgerService) SetNonce(ctx context.Context, id uint64, nonce uint64) (*model.Paymaster, error) {
	return s.mutate(ctx, id, func(p *model.Paymaster) {
		p.Nonce = nonce
	})
}

func (s *LedgerService) mutate(ctx context.Context, id uint64, fn func(*model.Paymaster)) (*model.Paymaster, error) {
	for attempt := 0; attempt < allocateRetries; attempt++ {
		p, err := s.store.GetPaymaster(ctx, id)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errno.ErrPaymasterNotFound
		}
		if err != nil {
			return nil, errno.ErrDatabase
		}

		fn(p)
		err = s.store.UpdatePaymaster(ctx, p)
		if errors.Is(err, repo.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, errno.ErrDatabase
		}
		return p, nil
	}
	return nil, errno.ErrLedgerConflict
}

// List 返回某条链的全部 paymaster
func (s *LedgerService) List(ctx context.Context, chainID uint64) ([]model.Paymaster, error) {
	ps, err := s.store.ListPaymasters(ctx, chainID)
	if err != nil {
		return nil, errno.ErrDatabase
	}
	return ps, nil
}
