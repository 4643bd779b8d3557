package service

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"
	"time"

	"gas-station/internal/model"
	"gas-station/internal/repo"
	"gas-station/pkg/errno"
	"gas-station/pkg/evmtx"
	"gas-station/pkg/oracle"
	"gas-station/pkg/signer"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

// failingSigner 公钥可用但签名永远失败，模拟 MPC 服务宕机
type failingSigner struct {
	inner signer.Signer
}

func (f *failingSigner) Sign(ctx context.Context, path string, digest [32]byte) ([]byte, error) {
	return nil, signer.ErrSignRejected
}

func (f *failingSigner) PublicKey(ctx context.Context, path string) (*ecdsa.PublicKey, error) {
	return f.inner.PublicKey(ctx, path)
}

type seqFixture struct {
	svc    *SequenceService
	store  repo.Store
	ledger *LedgerService
	signer signer.Signer
	oracle *oracle.StaticOracle
	pause  *PauseSwitch
}

func newSeqFixture(t *testing.T) *seqFixture {
	t.Helper()
	store := repo.NewMemoryStore()
	require.NoError(t, store.UpsertChain(context.Background(), &model.ForeignChain{
		ChainID:        97,
		NativeDecimals: 18,
		TransferGas:    21000,
		FeeRateNum:     120,
		FeeRateDen:     100,
		OracleAssetID:  "foreign-native",
	}))

	sg, err := signer.NewHDSigner(testMnemonic)
	require.NoError(t, err)

	oc := oracle.NewStaticOracle()
	now := time.Now().Unix()
	oc.SetPrice("local-native", oracle.Quote{Price: 500000000, Expo: -8, PublishTime: now})
	oc.SetPrice("foreign-native", oracle.Quote{Price: 1000000000, Expo: -8, PublishTime: now})

	ledger := NewLedgerService(store)
	pause := &PauseSwitch{}
	auth := NewAuthorizationService(store, &stubPeer{}, pause)
	pricing := PricingConfig{LocalAssetDecimals: 24, MaxAgeSec: 60, ConfToleranceBps: 500}

	return &seqFixture{
		svc:    NewSequenceService(store, ledger, auth, sg, oc, pause, pricing, "local-native"),
		store:  store,
		ledger: ledger,
		signer: sg,
		oracle: oc,
		pause:  pause,
	}
}

// userTx 一笔合法的未签名 EIP-1559 交易, maxFeePerGas=5
func userTx(t *testing.T) string {
	t.Helper()
	tx := evmtx.NewFundingTransfer(97,
		common.HexToAddress("0x9000000000000000000000000000000000000009"),
		big.NewInt(1234), 50000, 7, big.NewInt(5), big.NewInt(1))
	raw, err := tx.EncodeUnsigned()
	require.NoError(t, err)
	return raw
}

// requiredFee 对应 userTx 的标准费用: 21000×5 × 10/5 × 10^6 × 1.2
var requiredFee = decimal.RequireFromString("252000000000")

func TestCreateTransactionWithoutPaymaster(t *testing.T) {
	f := newSeqFixture(t)
	ctx := context.Background()

	result, err := f.svc.CreateTransaction(ctx, "alice", userTx(t), false, decimal.Zero)
	require.NoError(t, err)

	assert.Len(t, result.Sequence.Steps, 1)
	assert.False(t, result.Sequence.Steps[0].IsPaymaster)
	assert.Equal(t, "alice", result.Sequence.Steps[0].KeyPath)
	assert.True(t, result.Required.IsZero())
}

func TestCreateTransactionWithPaymaster(t *testing.T) {
	f := newSeqFixture(t)
	ctx := context.Background()

	deposit := requiredFee.Add(decimal.NewFromInt(500))
	result, err := f.svc.CreateTransaction(ctx, "alice", userTx(t), true, deposit)
	require.NoError(t, err)

	require.Len(t, result.Sequence.Steps, 2)
	assert.True(t, result.Sequence.Steps[0].IsPaymaster)
	assert.False(t, result.Sequence.Steps[1].IsPaymaster)
	assert.Equal(t, requiredFee.String(), result.Required.String())
	assert.Equal(t, "500", result.Refund.String())
	// 打款步冻结的代付额度 = 21000 × 5
	assert.Equal(t, "105000", result.Sequence.Steps[0].FundedAmount.String())
}

func TestCreateTransactionInsufficientDeposit(t *testing.T) {
	f := newSeqFixture(t)
	ctx := context.Background()

	// 差一个最小单位也不行
	deposit := requiredFee.Sub(decimal.NewFromInt(1))
	_, err := f.svc.CreateTransaction(ctx, "alice", userTx(t), true, deposit)
	assert.ErrorIs(t, err, errno.ErrInsufficientDeposit)
}

func TestCreateTransactionValidation(t *testing.T) {
	f := newSeqFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateTransaction(ctx, "alice", "0xnothex", false, decimal.Zero)
	assert.ErrorIs(t, err, errno.ErrMalformedTransaction)

	// 未登记的链
	other := evmtx.NewFundingTransfer(1, common.Address{}, big.NewInt(0), 21000, 0, big.NewInt(5), big.NewInt(1))
	raw, err := other.EncodeUnsigned()
	require.NoError(t, err)
	_, err = f.svc.CreateTransaction(ctx, "alice", raw, false, decimal.Zero)
	assert.ErrorIs(t, err, errno.ErrUnsupportedChain)
}

func TestSignNextFullFlow(t *testing.T) {
	f := newSeqFixture(t)
	ctx := context.Background()

	pm, err := f.ledger.Register(ctx, 97, decimal.NewFromInt(1000000))
	require.NoError(t, err)

	result, err := f.svc.CreateTransaction(ctx, "alice", userTx(t), true, requiredFee)
	require.NoError(t, err)
	seqID := result.Sequence.ID

	// 第一步: paymaster 打款
	raw1, err := f.svc.SignNext(ctx, "alice", seqID)
	require.NoError(t, err)

	funding := decodeSigned(t, raw1)
	pub, err := f.signer.PublicKey(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, evmtx.ForeignAddress(pub), *funding.To())
	assert.Equal(t, "105000", funding.Value().String())
	assert.Equal(t, uint64(0), funding.Nonce())

	// 账本已扣减
	pmAfter, err := f.store.GetPaymaster(ctx, pm.ID)
	require.NoError(t, err)
	assert.Equal(t, "895000", pmAfter.Balance.String())
	assert.Equal(t, uint64(1), pmAfter.Nonce)

	// 第二步: 用户交易
	raw2, err := f.svc.SignNext(ctx, "alice", seqID)
	require.NoError(t, err)
	user := decodeSigned(t, raw2)
	assert.Equal(t, uint64(7), user.Nonce())
	assert.Equal(t, "1234", user.Value().String())

	seq, err := f.svc.Get(ctx, seqID)
	require.NoError(t, err)
	assert.Equal(t, model.SequenceStatusSigned, seq.Status)

	// 托管费用进了服务费账户
	fee, err := f.store.GetCollectedFee(ctx, "local-native")
	require.NoError(t, err)
	assert.Equal(t, requiredFee.String(), fee.String())

	// 没有第三步
	_, err = f.svc.SignNext(ctx, "alice", seqID)
	assert.ErrorIs(t, err, errno.ErrSequenceExhausted)
}

func TestSignNextOnlyCreator(t *testing.T) {
	f := newSeqFixture(t)
	ctx := context.Background()

	result, err := f.svc.CreateTransaction(ctx, "alice", userTx(t), false, decimal.Zero)
	require.NoError(t, err)

	_, err = f.svc.SignNext(ctx, "mallory", result.Sequence.ID)
	assert.ErrorIs(t, err, errno.ErrNotCreator)
}

func TestSignNextNoFundedPaymaster(t *testing.T) {
	f := newSeqFixture(t)
	ctx := context.Background()

	// 注册了但余额不够 105000
	_, err := f.ledger.Register(ctx, 97, decimal.NewFromInt(100000))
	require.NoError(t, err)

	result, err := f.svc.CreateTransaction(ctx, "alice", userTx(t), true, requiredFee)
	require.NoError(t, err)

	_, err = f.svc.SignNext(ctx, "alice", result.Sequence.ID)
	assert.ErrorIs(t, err, errno.ErrNoFundedPaymaster)

	// cursor 没动，补足余额后可以重试
	seq, err := f.svc.Get(ctx, result.Sequence.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, seq.Cursor)
}

func TestSignNextRollsBackOnSigningFailure(t *testing.T) {
	f := newSeqFixture(t)
	ctx := context.Background()

	pm, err := f.ledger.Register(ctx, 97, decimal.NewFromInt(1000000))
	require.NoError(t, err)

	result, err := f.svc.CreateTransaction(ctx, "alice", userTx(t), true, requiredFee)
	require.NoError(t, err)

	// 换上会失败的签名器
	f.svc.signer = &failingSigner{inner: f.signer}

	_, err = f.svc.SignNext(ctx, "alice", result.Sequence.ID)
	assert.ErrorIs(t, err, errno.ErrSigningFailed)

	// 预留已经原样回滚
	pmAfter, err := f.store.GetPaymaster(ctx, pm.ID)
	require.NoError(t, err)
	assert.Equal(t, "1000000", pmAfter.Balance.String())
	assert.Equal(t, uint64(0), pmAfter.Nonce)

	// 恢复签名器后重试成功，nonce 从 0 重新用起
	f.svc.signer = f.signer
	raw, err := f.svc.SignNext(ctx, "alice", result.Sequence.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), decodeSigned(t, raw).Nonce())
}

// flakyProgressStore 进度落库失败指定次数，之后恢复正常
type flakyProgressStore struct {
	repo.Store
	failures int
}

func (s *flakyProgressStore) SaveSequenceProgress(ctx context.Context, seq *model.TransactionSequence, step *model.SignatureStep) error {
	if s.failures > 0 {
		s.failures--
		return assert.AnError
	}
	return s.Store.SaveSequenceProgress(ctx, seq, step)
}

func TestSignNextReleasesLedgerOnProgressFailure(t *testing.T) {
	f := newSeqFixture(t)
	ctx := context.Background()

	pm, err := f.ledger.Register(ctx, 97, decimal.NewFromInt(1000000))
	require.NoError(t, err)

	result, err := f.svc.CreateTransaction(ctx, "alice", userTx(t), true, requiredFee)
	require.NoError(t, err)

	// 签名成功但进度落库失败一次
	f.svc.store = &flakyProgressStore{Store: f.store, failures: 1}

	_, err = f.svc.SignNext(ctx, "alice", result.Sequence.ID)
	assert.ErrorIs(t, err, errno.ErrDatabase)

	// 预留必须回滚: 失败不能烧掉余额和 nonce
	pmAfter, err := f.store.GetPaymaster(ctx, pm.ID)
	require.NoError(t, err)
	assert.Equal(t, "1000000", pmAfter.Balance.String())
	assert.Equal(t, uint64(0), pmAfter.Nonce)

	seq, err := f.svc.Get(ctx, result.Sequence.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, seq.Cursor)

	// 重试只扣一次，nonce 从 0 重新用起
	raw, err := f.svc.SignNext(ctx, "alice", result.Sequence.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), decodeSigned(t, raw).Nonce())

	pmAfter, err = f.store.GetPaymaster(ctx, pm.ID)
	require.NoError(t, err)
	assert.Equal(t, "895000", pmAfter.Balance.String())
	assert.Equal(t, uint64(1), pmAfter.Nonce)
}

func TestCreateTransactionWhitelists(t *testing.T) {
	f := newSeqFixture(t)
	ctx := context.Background()

	// 名单关着的时候不拦
	_, err := f.svc.CreateTransaction(ctx, "alice", userTx(t), false, decimal.Zero)
	require.NoError(t, err)

	// 打开 sender 名单，未登记的调用方被拒
	require.NoError(t, f.store.SetWhitelistEnabled(ctx, model.WhitelistSender, true))
	_, err = f.svc.CreateTransaction(ctx, "alice", userTx(t), false, decimal.Zero)
	assert.ErrorIs(t, err, errno.ErrNotWhitelisted)

	require.NoError(t, f.store.AddWhitelistEntry(ctx, model.WhitelistSender, "alice"))
	_, err = f.svc.CreateTransaction(ctx, "alice", userTx(t), false, decimal.Zero)
	require.NoError(t, err)

	// receiver 名单按小写地址匹配
	require.NoError(t, f.store.SetWhitelistEnabled(ctx, model.WhitelistReceiver, true))
	_, err = f.svc.CreateTransaction(ctx, "alice", userTx(t), false, decimal.Zero)
	assert.ErrorIs(t, err, errno.ErrNotWhitelisted)

	require.NoError(t, f.store.AddWhitelistEntry(ctx, model.WhitelistReceiver,
		"0x9000000000000000000000000000000000000009"))
	_, err = f.svc.CreateTransaction(ctx, "alice", userTx(t), false, decimal.Zero)
	require.NoError(t, err)
}

func TestRemoveSequence(t *testing.T) {
	f := newSeqFixture(t)
	ctx := context.Background()

	result, err := f.svc.CreateTransaction(ctx, "alice", userTx(t), true, requiredFee)
	require.NoError(t, err)
	seqID := result.Sequence.ID

	_, err = f.svc.Remove(ctx, "mallory", seqID)
	assert.ErrorIs(t, err, errno.ErrNotCreator)

	// 一步没签，全额退
	refund, err := f.svc.Remove(ctx, "alice", seqID)
	require.NoError(t, err)
	assert.Equal(t, requiredFee.String(), refund.String())

	// 移除后序列不可见
	_, err = f.svc.SignNext(ctx, "alice", seqID)
	assert.ErrorIs(t, err, errno.ErrSequenceNotFound)
}

func TestRemoveAfterFundingKeepsFee(t *testing.T) {
	f := newSeqFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Register(ctx, 97, decimal.NewFromInt(1000000))
	require.NoError(t, err)

	result, err := f.svc.CreateTransaction(ctx, "alice", userTx(t), true, requiredFee)
	require.NoError(t, err)

	_, err = f.svc.SignNext(ctx, "alice", result.Sequence.ID)
	require.NoError(t, err)

	// 打款步已签，paymaster 的钱已经花出去，费用照收不退
	refund, err := f.svc.Remove(ctx, "alice", result.Sequence.ID)
	require.NoError(t, err)
	assert.True(t, refund.IsZero())

	fee, err := f.store.GetCollectedFee(ctx, "local-native")
	require.NoError(t, err)
	assert.Equal(t, requiredFee.String(), fee.String())
}

func TestPauseBlocksMutations(t *testing.T) {
	f := newSeqFixture(t)
	ctx := context.Background()

	result, err := f.svc.CreateTransaction(ctx, "alice", userTx(t), false, decimal.Zero)
	require.NoError(t, err)

	f.pause.Pause()

	_, err = f.svc.CreateTransaction(ctx, "alice", userTx(t), false, decimal.Zero)
	assert.ErrorIs(t, err, errno.ErrPaused)
	_, err = f.svc.SignNext(ctx, "alice", result.Sequence.ID)
	assert.ErrorIs(t, err, errno.ErrPaused)

	// 只读不受影响
	_, err = f.svc.Get(ctx, result.Sequence.ID)
	assert.NoError(t, err)

	f.pause.Resume()
	_, err = f.svc.SignNext(ctx, "alice", result.Sequence.ID)
	assert.NoError(t, err)
}

func TestRequiredDepositEstimate(t *testing.T) {
	f := newSeqFixture(t)

	required, err := f.svc.RequiredDeposit(context.Background(), userTx(t))
	require.NoError(t, err)
	assert.Equal(t, requiredFee.String(), required.String())
}

func decodeSigned(t *testing.T, rawHex string) *types.Transaction {
	t.Helper()
	raw, err := hexutil.Decode(rawHex)
	require.NoError(t, err)
	tx := new(types.Transaction)
	require.NoError(t, tx.UnmarshalBinary(raw))
	return tx
}
