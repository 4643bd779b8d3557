package service

import (
	"context"
	"errors"
	"strings"

	"gas-station/internal/model"
	"gas-station/internal/repo"
	"gas-station/pkg/errno"
	"gas-station/pkg/evmtx"
	"gas-station/pkg/logger"
	"gas-station/pkg/signer"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AdminService 运营面: 外链配置、paymaster 管理、熔断开关。
type AdminService struct {
	store  repo.Store
	ledger *LedgerService
	signer signer.Signer
	pause  *PauseSwitch
}

func NewAdminService(store repo.Store, ledger *LedgerService, sg signer.Signer, pause *PauseSwitch) *AdminService {
	return &AdminService{store: store, ledger: ledger, signer: sg, pause: pause}
}

// RegisterChain 登记或更新一条外链。fee_rate 必须 >= 1 (不倒贴)。
func (s *AdminService) RegisterChain(ctx context.Context, chain *model.ForeignChain) error {
	if chain.FeeRateDen == 0 || chain.FeeRateNum < chain.FeeRateDen {
		return errno.ErrInvalidFeeRate
	}
	if chain.TransferGas == 0 || chain.OracleAssetID == "" {
		return errno.ErrBind
	}

	if err := s.store.UpsertChain(ctx, chain); err != nil {
		return errno.ErrDatabase
	}
	logger.Log.Info("foreign chain registered",
		zap.Uint64("chain_id", chain.ChainID),
		zap.Uint64("fee_num", chain.FeeRateNum),
		zap.Uint64("fee_den", chain.FeeRateDen))
	return nil
}

// RemoveChain 下线一条外链，其 paymaster 一并移除。
// in-flight 的序列会在 sign_next 时撞上 ErrUnsupportedChain 以外的错误路径;
// 正确姿势是先 Pause 等序列排干再下线。
func (s *AdminService) RemoveChain(ctx context.Context, chainID uint64) error {
	if _, err := s.store.GetChain(ctx, chainID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return errno.ErrUnsupportedChain
		}
		return errno.ErrDatabase
	}
	if err := s.store.DeleteChain(ctx, chainID); err != nil {
		return errno.ErrDatabase
	}
	logger.Log.Warn("foreign chain removed", zap.Uint64("chain_id", chainID))
	return nil
}

// ListChains 全部外链配置
func (s *AdminService) ListChains(ctx context.Context) ([]model.ForeignChain, error) {
	chains, err := s.store.ListChains(ctx)
	if err != nil {
		return nil, errno.ErrDatabase
	}
	return chains, nil
}

// PaymasterView 管理接口的 paymaster 视图，带推导出的外链地址
type PaymasterView struct {
	model.Paymaster
	ForeignAddress string `json:"foreign_address"`
}

// AddPaymaster 注册 paymaster 并返回它的外链地址 (运营打款用)
func (s *AdminService) AddPaymaster(ctx context.Context, chainID uint64, balance decimal.Decimal) (*PaymasterView, error) {
	p, err := s.ledger.Register(ctx, chainID, balance)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, p)
}

// ListPaymasters 某条链的 paymaster 列表
func (s *AdminService) ListPaymasters(ctx context.Context, chainID uint64) ([]PaymasterView, error) {
	ps, err := s.ledger.List(ctx, chainID)
	if err != nil {
		return nil, err
	}

	views := make([]PaymasterView, 0, len(ps))
	for i := range ps {
		v, err := s.view(ctx, &ps[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

func (s *AdminService) view(ctx context.Context, p *model.Paymaster) (*PaymasterView, error) {
	pub, err := s.signer.PublicKey(ctx, p.KeyPath)
	if err != nil {
		return nil, errno.ErrSigningFailed
	}
	return &PaymasterView{
		Paymaster:      *p,
		ForeignAddress: evmtx.ForeignAddress(pub).Hex(),
	}, nil
}

// TopUpPaymaster 加余额
func (s *AdminService) TopUpPaymaster(ctx context.Context, id uint64, amount decimal.Decimal) (*model.Paymaster, error) {
	return s.ledger.TopUp(ctx, id, amount)
}

// SetPaymasterBalance 覆盖余额 (影子校准)
func (s *AdminService) SetPaymasterBalance(ctx context.Context, id uint64, balance decimal.Decimal) (*model.Paymaster, error) {
	return s.ledger.SetBalance(ctx, id, balance)
}

// SetPaymasterNonce 覆盖 nonce (影子校准)
func (s *AdminService) SetPaymasterNonce(ctx context.Context, id uint64, nonce uint64) (*model.Paymaster, error) {
	return s.ledger.SetNonce(ctx, id, nonce)
}

func validWhitelistKind(kind string) bool {
	return kind == model.WhitelistSender || kind == model.WhitelistReceiver
}

// receiver 名单里的外链地址统一小写存储，大小写混用的 hex 也能命中
func normalizeWhitelistValue(kind, value string) string {
	if kind == model.WhitelistReceiver {
		return strings.ToLower(value)
	}
	return value
}

// AddWhitelistEntry 加白名单条目
func (s *AdminService) AddWhitelistEntry(ctx context.Context, kind, value string) error {
	if !validWhitelistKind(kind) || value == "" {
		return errno.ErrBind
	}
	if err := s.store.AddWhitelistEntry(ctx, kind, normalizeWhitelistValue(kind, value)); err != nil {
		return errno.ErrDatabase
	}
	logger.Log.Info("whitelist entry added",
		zap.String("kind", kind), zap.String("value", value))
	return nil
}

// RemoveWhitelistEntry 移除白名单条目
func (s *AdminService) RemoveWhitelistEntry(ctx context.Context, kind, value string) error {
	if !validWhitelistKind(kind) {
		return errno.ErrBind
	}
	if err := s.store.RemoveWhitelistEntry(ctx, kind, normalizeWhitelistValue(kind, value)); err != nil {
		return errno.ErrDatabase
	}
	logger.Log.Info("whitelist entry removed",
		zap.String("kind", kind), zap.String("value", value))
	return nil
}

// ListWhitelist 某个名单的全部条目
func (s *AdminService) ListWhitelist(ctx context.Context, kind string) ([]string, error) {
	if !validWhitelistKind(kind) {
		return nil, errno.ErrBind
	}
	values, err := s.store.ListWhitelist(ctx, kind)
	if err != nil {
		return nil, errno.ErrDatabase
	}
	return values, nil
}

// SetWhitelistEnabled 启停某个名单。关闭只是停用校验，条目保留。
func (s *AdminService) SetWhitelistEnabled(ctx context.Context, kind string, enabled bool) error {
	if !validWhitelistKind(kind) {
		return errno.ErrBind
	}
	if err := s.store.SetWhitelistEnabled(ctx, kind, enabled); err != nil {
		return errno.ErrDatabase
	}
	logger.Log.Warn("whitelist toggled",
		zap.String("kind", kind), zap.Bool("enabled", enabled))
	return nil
}

// CollectedFee 查询某资产的累计服务费
func (s *AdminService) CollectedFee(ctx context.Context, assetID string) (decimal.Decimal, error) {
	fee, err := s.store.GetCollectedFee(ctx, assetID)
	if err != nil {
		return decimal.Zero, errno.ErrDatabase
	}
	return fee, nil
}

// Pause 熔断: 拒绝新的创建和签名
func (s *AdminService) Pause() {
	s.pause.Pause()
	logger.Log.Warn("service paused")
}

// Resume 解除熔断
func (s *AdminService) Resume() {
	s.pause.Resume()
	logger.Log.Info("service resumed")
}

// Paused 当前熔断状态
func (s *AdminService) Paused() bool {
	return s.pause.Paused()
}
