package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"gas-station/internal/event"
	"gas-station/internal/model"
	"gas-station/internal/repo"
	"gas-station/pkg/errno"
	"gas-station/pkg/evmtx"
	"gas-station/pkg/logger"
	"gas-station/pkg/monitor"
	"gas-station/pkg/oracle"
	"gas-station/pkg/signer"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SequenceService 是服务的核心: 把用户的一笔外链交易变成
// 一个逐步签名的序列 (可选的 paymaster 打款步 + 用户交易步)。
type SequenceService struct {
	store   repo.Store
	ledger  *LedgerService
	auth    *AuthorizationService
	signer  signer.Signer
	oracle  oracle.Oracle
	pause   *PauseSwitch
	pricing PricingConfig
	// 用户充值所用的本链资产喂价 ID
	localAssetID string
}

func NewSequenceService(
	store repo.Store,
	ledger *LedgerService,
	auth *AuthorizationService,
	sg signer.Signer,
	oc oracle.Oracle,
	pause *PauseSwitch,
	pricing PricingConfig,
	localAssetID string,
) *SequenceService {
	return &SequenceService{
		store:        store,
		ledger:       ledger,
		auth:         auth,
		signer:       sg,
		oracle:       oc,
		pause:        pause,
		pricing:      pricing,
		localAssetID: localAssetID,
	}
}

// CreateResult 创建序列的返回值
type CreateResult struct {
	Sequence *model.TransactionSequence
	Required decimal.Decimal // 实际托管的费用
	Refund   decimal.Decimal // 多付部分，立即退还
}

// quotes 拉本位资产和外链原生币两个报价
func (s *SequenceService) quotes(ctx context.Context, chain *model.ForeignChain) (*oracle.Quote, *oracle.Quote, error) {
	localQ, err := s.oracle.GetPrice(ctx, s.localAssetID)
	if err != nil {
		return nil, nil, errno.ErrOracleFailure
	}
	foreignQ, err := s.oracle.GetPrice(ctx, chain.OracleAssetID)
	if err != nil {
		return nil, nil, errno.ErrOracleFailure
	}
	return localQ, foreignQ, nil
}

// RequiredDeposit 对外暴露的估价接口: 同样的校验和公式，但不落任何状态。
// 客户端先问价再创建，避免充值不够被打回。
func (s *SequenceService) RequiredDeposit(ctx context.Context, rlpHex string) (decimal.Decimal, error) {
	txReq, err := evmtx.DecodeUnsigned(rlpHex)
	if err != nil {
		return decimal.Zero, err
	}

	chain, err := s.store.GetChain(ctx, txReq.ChainID)
	if errors.Is(err, repo.ErrNotFound) {
		return decimal.Zero, errno.ErrUnsupportedChain
	}
	if err != nil {
		return decimal.Zero, errno.ErrDatabase
	}

	localQ, foreignQ, err := s.quotes(ctx, chain)
	if err != nil {
		return decimal.Zero, err
	}

	gasTokens := GasTokens(chain, txReq)
	required, err := RequiredDeposit(chain, s.pricing, gasTokens, localQ, foreignQ, time.Now().Unix())
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromBigInt(required, 0), nil
}

// CreateTransaction 创建交易序列。
// usePaymaster 模式下先估价: deposit 必须覆盖 required，多出的部分原路退回。
// 步骤列表在这里冻结，之后 sign_next 只会前进 cursor，不再改动内容。
func (s *SequenceService) CreateTransaction(ctx context.Context, caller, rlpHex string, usePaymaster bool, deposit decimal.Decimal) (*CreateResult, error) {
	if s.pause.Paused() {
		return nil, errno.ErrPaused
	}

	txReq, err := evmtx.DecodeUnsigned(rlpHex)
	if err != nil {
		return nil, err
	}

	chain, err := s.store.GetChain(ctx, txReq.ChainID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, errno.ErrUnsupportedChain
	}
	if err != nil {
		return nil, errno.ErrDatabase
	}

	if err := s.checkWhitelists(ctx, caller, txReq); err != nil {
		return nil, err
	}

	// 调用方身份就是它的 key path，首次使用自动登记
	if err := s.auth.RegisterKey(ctx, caller, caller); err != nil {
		return nil, err
	}

	seq := &model.TransactionSequence{
		CreatedBy: caller,
		ChainID:   chain.ChainID,
		Status:    model.SequenceStatusPending,
	}
	required := decimal.Zero
	refund := decimal.Zero

	if usePaymaster {
		localQ, foreignQ, err := s.quotes(ctx, chain)
		if err != nil {
			return nil, err
		}

		gasTokens := GasTokens(chain, txReq)
		req, err := RequiredDeposit(chain, s.pricing, gasTokens, localQ, foreignQ, time.Now().Unix())
		if err != nil {
			return nil, err
		}
		required = decimal.NewFromBigInt(req, 0)
		if deposit.LessThan(required) {
			return nil, errno.ErrInsufficientDeposit
		}
		refund = deposit.Sub(required)

		// 打款目的地是用户 path 对应的外链地址
		pub, err := s.signer.PublicKey(ctx, caller)
		if err != nil {
			return nil, errno.ErrSigningFailed
		}

		// nonce 和 key path 在 sign_next 选定 paymaster 时才补上
		funding := evmtx.NewFundingTransfer(
			chain.ChainID,
			evmtx.ForeignAddress(pub),
			gasTokens,
			chain.TransferGas,
			0,
			txReq.GasFeeCap.ToInt(),
			txReq.GasTipCap.ToInt(),
		)
		fundingJSON, err := json.Marshal(funding)
		if err != nil {
			return nil, errno.InternalServerError
		}

		seq.Steps = append(seq.Steps, model.SignatureStep{
			Idx:          0,
			IsPaymaster:  true,
			TxJSON:       fundingJSON,
			FundedAmount: decimal.NewFromBigInt(gasTokens, 0),
			Status:       model.StepStatusPending,
		})
		seq.DepositLocked = required
		seq.DepositAsset = s.localAssetID
	}

	userJSON, err := json.Marshal(txReq)
	if err != nil {
		return nil, errno.InternalServerError
	}
	seq.Steps = append(seq.Steps, model.SignatureStep{
		Idx:         len(seq.Steps),
		KeyPath:     caller,
		IsPaymaster: false,
		TxJSON:      userJSON,
		Status:      model.StepStatusPending,
	})

	if err := s.store.CreateSequence(ctx, seq); err != nil {
		return nil, errno.ErrDatabase
	}

	s.emit(ctx, event.TopicSequenceCreated, seq.ID, event.SequenceCreated{
		SequenceID:   seq.ID,
		ChainID:      seq.ChainID,
		CreatedBy:    caller,
		PendingCount: len(seq.Steps),
		Deposit:      required.String(),
	})
	monitor.SequencesCreated.WithLabelValues(chainLabel(seq.ChainID)).Inc()
	logger.Log.Info("transaction sequence created",
		zap.Uint64("sequence_id", seq.ID),
		zap.Uint64("chain_id", seq.ChainID),
		zap.String("created_by", caller),
		zap.Bool("use_paymaster", usePaymaster),
		zap.Int("pending", len(seq.Steps)))

	return &CreateResult{Sequence: seq, Required: required, Refund: refund}, nil
}

// checkWhitelists 按开关校验发起方和收款地址。
// sender 名单存 key path，receiver 名单存小写的外链地址。
func (s *SequenceService) checkWhitelists(ctx context.Context, caller string, txReq *evmtx.TransactionRequest) error {
	checks := []struct {
		kind  string
		value string
	}{
		{model.WhitelistSender, caller},
		{model.WhitelistReceiver, strings.ToLower(txReq.To.Hex())},
	}
	for _, c := range checks {
		enabled, err := s.store.WhitelistEnabled(ctx, c.kind)
		if err != nil {
			return errno.ErrDatabase
		}
		if !enabled {
			continue
		}
		listed, err := s.store.IsWhitelisted(ctx, c.kind, c.value)
		if err != nil {
			return errno.ErrDatabase
		}
		if !listed {
			return errno.ErrNotWhitelisted
		}
	}
	return nil
}

// SignNext 推进序列一步，返回这一步签好的 raw 交易。
// 打款步: 先在账本预留 (提交生效)，再请求签名，失败则原样回滚预留。
// 用户步: 先过授权检查，再请求签名。
func (s *SequenceService) SignNext(ctx context.Context, caller string, sequenceID uint64) (string, error) {
	if s.pause.Paused() {
		return "", errno.ErrPaused
	}

	seq, err := s.store.GetSequence(ctx, sequenceID)
	if errors.Is(err, repo.ErrNotFound) {
		return "", errno.ErrSequenceNotFound
	}
	if err != nil {
		return "", errno.ErrDatabase
	}
	if seq.Status == model.SequenceStatusRemoved {
		return "", errno.ErrSequenceNotFound
	}
	if seq.CreatedBy != caller {
		return "", errno.ErrNotCreator
	}
	if seq.Cursor >= len(seq.Steps) {
		return "", errno.ErrSequenceExhausted
	}

	step := &seq.Steps[seq.Cursor]
	var txReq evmtx.TransactionRequest
	if err := json.Unmarshal(step.TxJSON, &txReq); err != nil {
		return "", errno.InternalServerError
	}

	var raw string
	var alloc *Allocation
	if step.IsPaymaster {
		raw, alloc, err = s.signFundingStep(ctx, seq, step, &txReq)
	} else {
		raw, err = s.signUserStep(ctx, caller, seq, step, &txReq)
	}
	if err != nil {
		return "", err
	}

	seq.Cursor++
	if seq.Cursor == len(seq.Steps) {
		seq.Status = model.SequenceStatusSigned
	}
	if err := s.store.SaveSequenceProgress(ctx, seq, step); err != nil {
		// 进度没落库，步骤仍是未消费状态; 打款步的预留必须退回，
		// 否则重试会再扣一次，paymaster 白白烧掉余额和 nonce
		if alloc != nil {
			s.releaseAllocation(ctx, seq.ID, alloc)
		}
		return "", errno.ErrDatabase
	}

	if seq.Status == model.SequenceStatusSigned {
		s.settle(ctx, seq)
	}
	return raw, nil
}

// signFundingStep 处理 paymaster 打款步。
// 成功时把预留凭据交还给调用方: 后续的进度落库失败同样要回滚预留。
func (s *SequenceService) signFundingStep(ctx context.Context, seq *model.TransactionSequence, step *model.SignatureStep, txReq *evmtx.TransactionRequest) (string, *Allocation, error) {
	alloc, err := s.ledger.Allocate(ctx, seq.ChainID, step.FundedAmount)
	if err != nil {
		return "", nil, err
	}

	txReq.Nonce = alloc.Nonce
	raw, err := s.signAs(ctx, alloc.Paymaster.KeyPath, seq.ChainID, txReq)
	if err != nil {
		// 预留已经提交，必须原样退回去
		s.releaseAllocation(ctx, seq.ID, alloc)
		return "", nil, err
	}

	pid, nonce := alloc.Paymaster.ID, alloc.Nonce
	step.KeyPath = alloc.Paymaster.KeyPath
	step.PaymasterID = &pid
	step.NonceUsed = &nonce
	step.Status = model.StepStatusSigned
	step.SignedRaw = raw
	monitor.SignaturesIssued.WithLabelValues(chainLabel(seq.ChainID), "paymaster").Inc()
	return raw, alloc, nil
}

func (s *SequenceService) releaseAllocation(ctx context.Context, sequenceID uint64, alloc *Allocation) {
	if err := s.ledger.Release(ctx, alloc); err != nil {
		logger.Log.Error("ledger release failed",
			zap.Uint64("sequence_id", sequenceID),
			zap.Uint64("paymaster_id", alloc.Paymaster.ID),
			zap.Error(err))
	}
}

// signUserStep 处理用户交易步
func (s *SequenceService) signUserStep(ctx context.Context, caller string, seq *model.TransactionSequence, step *model.SignatureStep, txReq *evmtx.TransactionRequest) (string, error) {
	if err := s.auth.Authorize(ctx, step.KeyPath, caller); err != nil {
		return "", err
	}

	raw, err := s.signAs(ctx, step.KeyPath, seq.ChainID, txReq)
	if err != nil {
		return "", err
	}

	step.Status = model.StepStatusSigned
	step.SignedRaw = raw
	monitor.SignaturesIssued.WithLabelValues(chainLabel(seq.ChainID), "user").Inc()
	return raw, nil
}

func (s *SequenceService) signAs(ctx context.Context, keyPath string, chainID uint64, txReq *evmtx.TransactionRequest) (string, error) {
	sig, err := s.signer.Sign(ctx, keyPath, txReq.SigningHash())
	if err != nil {
		monitor.SigningFailures.WithLabelValues(chainLabel(chainID)).Inc()
		logger.Log.Warn("signing failed",
			zap.String("key_path", keyPath), zap.Error(err))
		return "", errno.ErrSigningFailed
	}
	raw, err := txReq.AttachSignature(sig)
	if err != nil {
		monitor.SigningFailures.WithLabelValues(chainLabel(chainID)).Inc()
		return "", errno.ErrSigningFailed
	}
	return raw, nil
}

// settle 序列全部签完: 托管费用转入服务费账户，发完成事件
func (s *SequenceService) settle(ctx context.Context, seq *model.TransactionSequence) {
	if seq.DepositLocked.IsPositive() {
		if err := s.store.AddCollectedFee(ctx, seq.DepositAsset, seq.DepositLocked); err != nil {
			logger.Log.Error("fee settlement failed",
				zap.Uint64("sequence_id", seq.ID), zap.Error(err))
		}
	}

	signed := make([]event.StepSigned, 0, len(seq.Steps))
	for _, st := range seq.Steps {
		signed = append(signed, event.StepSigned{
			Idx:         st.Idx,
			IsPaymaster: st.IsPaymaster,
			SignedRaw:   st.SignedRaw,
		})
	}
	s.emit(ctx, event.TopicSequenceSigned, seq.ID, event.SequenceSigned{
		SequenceID: seq.ID,
		ChainID:    seq.ChainID,
		CreatedBy:  seq.CreatedBy,
		Steps:      signed,
		Fee:        seq.DepositLocked.String(),
	})
	monitor.SequencesCompleted.WithLabelValues(chainLabel(seq.ChainID)).Inc()
	logger.Log.Info("transaction sequence fully signed",
		zap.Uint64("sequence_id", seq.ID),
		zap.Uint64("chain_id", seq.ChainID))
}

// Remove 创建者撤回一个还没签完的序列。
// 一步都没签过: 托管费用全额退; 已经签过打款步: 费用照收 (paymaster 的钱已经花出去了)。
func (s *SequenceService) Remove(ctx context.Context, caller string, sequenceID uint64) (decimal.Decimal, error) {
	seq, err := s.store.GetSequence(ctx, sequenceID)
	if errors.Is(err, repo.ErrNotFound) {
		return decimal.Zero, errno.ErrSequenceNotFound
	}
	if err != nil {
		return decimal.Zero, errno.ErrDatabase
	}
	if seq.Status != model.SequenceStatusPending {
		return decimal.Zero, errno.ErrSequenceNotFound
	}
	if seq.CreatedBy != caller {
		return decimal.Zero, errno.ErrNotCreator
	}

	refund := decimal.Zero
	if seq.Cursor == 0 {
		refund = seq.DepositLocked
	} else if seq.DepositLocked.IsPositive() {
		if err := s.store.AddCollectedFee(ctx, seq.DepositAsset, seq.DepositLocked); err != nil {
			return decimal.Zero, errno.ErrDatabase
		}
	}

	if err := s.store.MarkSequenceRemoved(ctx, sequenceID); err != nil {
		return decimal.Zero, errno.ErrDatabase
	}

	s.emit(ctx, event.TopicSequenceRemoved, sequenceID, event.SequenceRemoved{
		SequenceID: sequenceID,
		Refund:     refund.String(),
	})
	logger.Log.Info("transaction sequence removed",
		zap.Uint64("sequence_id", sequenceID),
		zap.String("refund", refund.String()))
	return refund, nil
}

// Get 查询序列当前状态
func (s *SequenceService) Get(ctx context.Context, sequenceID uint64) (*model.TransactionSequence, error) {
	seq, err := s.store.GetSequence(ctx, sequenceID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, errno.ErrSequenceNotFound
	}
	if err != nil {
		return nil, errno.ErrDatabase
	}
	return seq, nil
}

func (s *SequenceService) emit(ctx context.Context, topic string, sequenceID uint64, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	key := strconv.FormatUint(sequenceID, 10)
	if err := s.store.AppendOutbox(ctx, topic, key, body); err != nil {
		logger.Log.Error("failed to append outbox event",
			zap.String("topic", topic), zap.Error(err))
	}
}

func chainLabel(chainID uint64) string {
	return strconv.FormatUint(chainID, 10)
}
