package repo

import (
	"context"
	"errors"

	"gas-station/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore 基于 Postgres 的 Store 实现
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// ---- 外链配置 ----

func (s *GormStore) GetChain(ctx context.Context, chainID uint64) (*model.ForeignChain, error) {
	var chain model.ForeignChain
	if err := s.db.WithContext(ctx).First(&chain, "chain_id = ?", chainID).Error; err != nil {
		return nil, translate(err)
	}
	return &chain, nil
}

func (s *GormStore) UpsertChain(ctx context.Context, chain *model.ForeignChain) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chain_id"}},
		UpdateAll: true,
	}).Create(chain).Error
}

func (s *GormStore) ListChains(ctx context.Context) ([]model.ForeignChain, error) {
	var chains []model.ForeignChain
	err := s.db.WithContext(ctx).Order("chain_id asc").Find(&chains).Error
	return chains, err
}

func (s *GormStore) DeleteChain(ctx context.Context, chainID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 该链的 paymaster 一并移除 (对齐 remove_foreign_chain 语义)
		if err := tx.Delete(&model.Paymaster{}, "chain_id = ?", chainID).Error; err != nil {
			return err
		}
		return tx.Delete(&model.ForeignChain{}, "chain_id = ?", chainID).Error
	})
}

// ---- Paymaster 账本 ----

func (s *GormStore) CreatePaymaster(ctx context.Context, p *model.Paymaster) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *GormStore) GetPaymaster(ctx context.Context, id uint64) (*model.Paymaster, error) {
	var p model.Paymaster
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *GormStore) ListPaymasters(ctx context.Context, chainID uint64) ([]model.Paymaster, error) {
	var ps []model.Paymaster
	err := s.db.WithContext(ctx).Where("chain_id = ?", chainID).Order("id asc").Find(&ps).Error
	return ps, err
}

func (s *GormStore) UpdatePaymaster(ctx context.Context, p *model.Paymaster) error {
	// 乐观锁: WHERE version = 旧值，写入 version+1
	res := s.db.WithContext(ctx).Model(&model.Paymaster{}).
		Where("id = ? AND version = ?", p.ID, p.Version).
		Updates(map[string]interface{}{
			"balance": p.Balance,
			"nonce":   p.Nonce,
			"version": p.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	p.Version++
	return nil
}

// ---- 交易序列 ----

func (s *GormStore) CreateSequence(ctx context.Context, seq *model.TransactionSequence) error {
	// gorm 会级联创建 Steps 并回填 SequenceID
	return s.db.WithContext(ctx).Create(seq).Error
}

func (s *GormStore) GetSequence(ctx context.Context, id uint64) (*model.TransactionSequence, error) {
	var seq model.TransactionSequence
	err := s.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("idx asc") }).
		First(&seq, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &seq, nil
}

func (s *GormStore) SaveSequenceProgress(ctx context.Context, seq *model.TransactionSequence, step *model.SignatureStep) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.TransactionSequence{}).
			Where("id = ?", seq.ID).
			Updates(map[string]interface{}{
				"cursor": seq.Cursor,
				"status": seq.Status,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&model.SignatureStep{}).
			Where("id = ?", step.ID).
			Updates(map[string]interface{}{
				"status":       step.Status,
				"signed_raw":   step.SignedRaw,
				"key_path":     step.KeyPath,
				"paymaster_id": step.PaymasterID,
				"nonce_used":   step.NonceUsed,
			}).Error
	})
}

func (s *GormStore) MarkSequenceRemoved(ctx context.Context, id uint64) error {
	return s.db.WithContext(ctx).Model(&model.TransactionSequence{}).
		Where("id = ?", id).
		Update("status", model.SequenceStatusRemoved).Error
}

// ---- 密钥授权 ----

func (s *GormStore) GetKeyAuth(ctx context.Context, path string) (*model.KeyAuthorization, error) {
	var auth model.KeyAuthorization
	if err := s.db.WithContext(ctx).First(&auth, "key_path = ?", path).Error; err != nil {
		return nil, translate(err)
	}
	return &auth, nil
}

func (s *GormStore) SaveKeyAuth(ctx context.Context, auth *model.KeyAuthorization) error {
	// 首次注册直接插入
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.KeyAuthorization{}).
		Where("key_path = ?", auth.KeyPath).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return s.db.WithContext(ctx).Create(auth).Error
	}

	res := s.db.WithContext(ctx).Model(&model.KeyAuthorization{}).
		Where("key_path = ? AND version = ?", auth.KeyPath, auth.Version).
		Updates(map[string]interface{}{
			"owner":            auth.Owner,
			"governor":         auth.Governor,
			"pending_governor": auth.PendingGovernor,
			"version":          auth.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	auth.Version++
	return nil
}

// ---- 服务费 ----

func (s *GormStore) AddCollectedFee(ctx context.Context, assetID string, amount decimal.Decimal) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var fee model.CollectedFee
		err := tx.First(&fee, "asset_id = ?", assetID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&model.CollectedFee{AssetID: assetID, Amount: amount}).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&fee).Update("amount", fee.Amount.Add(amount)).Error
	})
}

func (s *GormStore) GetCollectedFee(ctx context.Context, assetID string) (decimal.Decimal, error) {
	var fee model.CollectedFee
	err := s.db.WithContext(ctx).First(&fee, "asset_id = ?", assetID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return fee.Amount, nil
}

// ---- 白名单 ----

func (s *GormStore) AddWhitelistEntry(ctx context.Context, kind, value string) error {
	// 重复添加幂等
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kind"}, {Name: "value"}},
		DoNothing: true,
	}).Create(&model.WhitelistEntry{Kind: kind, Value: value}).Error
}

func (s *GormStore) RemoveWhitelistEntry(ctx context.Context, kind, value string) error {
	return s.db.WithContext(ctx).
		Delete(&model.WhitelistEntry{}, "kind = ? AND value = ?", kind, value).Error
}

func (s *GormStore) ListWhitelist(ctx context.Context, kind string) ([]string, error) {
	var values []string
	err := s.db.WithContext(ctx).Model(&model.WhitelistEntry{}).
		Where("kind = ?", kind).Order("value asc").Pluck("value", &values).Error
	return values, err
}

func (s *GormStore) IsWhitelisted(ctx context.Context, kind, value string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.WhitelistEntry{}).
		Where("kind = ? AND value = ?", kind, value).Count(&count).Error
	return count > 0, err
}

func (s *GormStore) SetWhitelistEnabled(ctx context.Context, kind string, enabled bool) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kind"}},
		UpdateAll: true,
	}).Create(&model.WhitelistSwitch{Kind: kind, Enabled: enabled}).Error
}

func (s *GormStore) WhitelistEnabled(ctx context.Context, kind string) (bool, error) {
	var sw model.WhitelistSwitch
	err := s.db.WithContext(ctx).First(&sw, "kind = ?", kind).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return sw.Enabled, nil
}

// ---- Outbox ----

func (s *GormStore) AppendOutbox(ctx context.Context, topic, key string, payload []byte) error {
	return s.db.WithContext(ctx).Create(&model.OutboxMessage{
		Topic:   topic,
		Key:     key,
		Payload: payload,
		Status:  "PENDING",
	}).Error
}

func (s *GormStore) ListPendingOutbox(ctx context.Context, limit int) ([]model.OutboxMessage, error) {
	var messages []model.OutboxMessage
	err := s.db.WithContext(ctx).
		Where("status = ?", "PENDING").
		Order("id asc").Limit(limit).Find(&messages).Error
	return messages, err
}

func (s *GormStore) MarkOutboxSent(ctx context.Context, id uint64) error {
	return s.db.WithContext(ctx).Model(&model.OutboxMessage{}).
		Where("id = ?", id).Update("status", "SENT").Error
}
