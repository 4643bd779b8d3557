package service

import (
	"context"
	"testing"

	"gas-station/internal/model"
	"gas-station/internal/repo"
	"gas-station/pkg/errno"
	"gas-station/pkg/signer"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdminFixture(t *testing.T) (*AdminService, repo.Store) {
	t.Helper()
	store := repo.NewMemoryStore()
	sg, err := signer.NewHDSigner(testMnemonic)
	require.NoError(t, err)
	return NewAdminService(store, NewLedgerService(store), sg, &PauseSwitch{}), store
}

func TestRegisterChainValidation(t *testing.T) {
	admin, _ := newAdminFixture(t)
	ctx := context.Background()

	// 费率倒贴
	err := admin.RegisterChain(ctx, &model.ForeignChain{
		ChainID: 97, TransferGas: 21000, FeeRateNum: 90, FeeRateDen: 100, OracleAssetID: "x",
	})
	assert.ErrorIs(t, err, errno.ErrInvalidFeeRate)

	// 分母为零
	err = admin.RegisterChain(ctx, &model.ForeignChain{
		ChainID: 97, TransferGas: 21000, FeeRateNum: 1, FeeRateDen: 0, OracleAssetID: "x",
	})
	assert.ErrorIs(t, err, errno.ErrInvalidFeeRate)

	// 合法配置
	err = admin.RegisterChain(ctx, &model.ForeignChain{
		ChainID: 97, NativeDecimals: 18, TransferGas: 21000, FeeRateNum: 120, FeeRateDen: 100, OracleAssetID: "x",
	})
	require.NoError(t, err)

	chains, err := admin.ListChains(ctx)
	require.NoError(t, err)
	require.Len(t, chains, 1)
	assert.Equal(t, uint64(97), chains[0].ChainID)
}

func TestAddPaymasterExposesForeignAddress(t *testing.T) {
	admin, _ := newAdminFixture(t)
	ctx := context.Background()

	require.NoError(t, admin.RegisterChain(ctx, &model.ForeignChain{
		ChainID: 97, NativeDecimals: 18, TransferGas: 21000, FeeRateNum: 120, FeeRateDen: 100, OracleAssetID: "x",
	}))

	view, err := admin.AddPaymaster(ctx, 97, decimal.NewFromInt(1000))
	require.NoError(t, err)
	// 0x 开头的 20 字节地址
	assert.Len(t, view.ForeignAddress, 42)
	assert.Equal(t, "1000", view.Balance.String())

	views, err := admin.ListPaymasters(ctx, 97)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, view.ForeignAddress, views[0].ForeignAddress)
}

func TestRemoveChain(t *testing.T) {
	admin, store := newAdminFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, admin.RemoveChain(ctx, 97), errno.ErrUnsupportedChain)

	require.NoError(t, admin.RegisterChain(ctx, &model.ForeignChain{
		ChainID: 97, NativeDecimals: 18, TransferGas: 21000, FeeRateNum: 120, FeeRateDen: 100, OracleAssetID: "x",
	}))
	_, err := admin.AddPaymaster(ctx, 97, decimal.NewFromInt(1))
	require.NoError(t, err)

	require.NoError(t, admin.RemoveChain(ctx, 97))
	_, err = store.GetChain(ctx, 97)
	assert.ErrorIs(t, err, repo.ErrNotFound)
	ps, err := store.ListPaymasters(ctx, 97)
	require.NoError(t, err)
	assert.Empty(t, ps)
}

func TestWhitelistAdmin(t *testing.T) {
	admin, store := newAdminFixture(t)
	ctx := context.Background()

	// 不认识的名单种类
	assert.ErrorIs(t, admin.AddWhitelistEntry(ctx, "bogus", "x"), errno.ErrBind)
	assert.ErrorIs(t, admin.SetWhitelistEnabled(ctx, "bogus", true), errno.ErrBind)
	_, err := admin.ListWhitelist(ctx, "bogus")
	assert.ErrorIs(t, err, errno.ErrBind)

	// receiver 地址统一小写存储，混用大小写也能命中
	require.NoError(t, admin.AddWhitelistEntry(ctx, model.WhitelistReceiver,
		"0xABCD000000000000000000000000000000000001"))
	listed, err := store.IsWhitelisted(ctx, model.WhitelistReceiver,
		"0xabcd000000000000000000000000000000000001")
	require.NoError(t, err)
	assert.True(t, listed)

	values, err := admin.ListWhitelist(ctx, model.WhitelistReceiver)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xabcd000000000000000000000000000000000001"}, values)

	require.NoError(t, admin.RemoveWhitelistEntry(ctx, model.WhitelistReceiver,
		"0xABCD000000000000000000000000000000000001"))
	values, err = admin.ListWhitelist(ctx, model.WhitelistReceiver)
	require.NoError(t, err)
	assert.Empty(t, values)

	// 开关默认关闭，启停独立
	enabled, err := store.WhitelistEnabled(ctx, model.WhitelistSender)
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, admin.SetWhitelistEnabled(ctx, model.WhitelistSender, true))
	enabled, err = store.WhitelistEnabled(ctx, model.WhitelistSender)
	require.NoError(t, err)
	assert.True(t, enabled)

	enabled, err = store.WhitelistEnabled(ctx, model.WhitelistReceiver)
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestPauseSwitch(t *testing.T) {
	admin, _ := newAdminFixture(t)

	assert.False(t, admin.Paused())
	admin.Pause()
	assert.True(t, admin.Paused())
	admin.Resume()
	assert.False(t, admin.Paused())
}
