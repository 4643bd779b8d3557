package service

import (
	"context"
	"testing"

	"gas-station/internal/repo"
	"gas-station/pkg/errno"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubPeer 可编排的握手对端
type stubPeer struct {
	accepted bool
	err      error
	calls    int
}

func (p *stubPeer) AcceptGovernorship(ctx context.Context, peer, owner, keyPath string) (bool, error) {
	p.calls++
	return p.accepted, p.err
}

func newAuthFixture(peer GovernorPeer) (*AuthorizationService, repo.Store) {
	store := repo.NewMemoryStore()
	return NewAuthorizationService(store, peer, &PauseSwitch{}), store
}

func TestRegisterKey(t *testing.T) {
	auth, _ := newAuthFixture(&stubPeer{})
	ctx := context.Background()

	require.NoError(t, auth.RegisterKey(ctx, "alice", "alice"))
	// 幂等
	require.NoError(t, auth.RegisterKey(ctx, "alice", "alice"))
	// 抢注别人的 path
	assert.ErrorIs(t, auth.RegisterKey(ctx, "alice", "mallory"), errno.ErrNotAuthorized)
}

func TestAuthorize(t *testing.T) {
	auth, store := newAuthFixture(&stubPeer{})
	ctx := context.Background()

	assert.ErrorIs(t, auth.Authorize(ctx, "ghost", "alice"), errno.ErrKeyNotFound)

	require.NoError(t, auth.RegisterKey(ctx, "alice", "alice"))
	assert.NoError(t, auth.Authorize(ctx, "alice", "alice"))
	assert.ErrorIs(t, auth.Authorize(ctx, "alice", "mallory"), errno.ErrNotAuthorized)

	// 有 governor 之后 owner 失去签名权
	ka, err := store.GetKeyAuth(ctx, "alice")
	require.NoError(t, err)
	gov := "relayer-1"
	ka.Governor = &gov
	require.NoError(t, store.SaveKeyAuth(ctx, ka))

	assert.NoError(t, auth.Authorize(ctx, "alice", "relayer-1"))
	assert.ErrorIs(t, auth.Authorize(ctx, "alice", "alice"), errno.ErrNotAuthorized)
}

func TestTransferGovernorshipAccepted(t *testing.T) {
	peer := &stubPeer{accepted: true}
	auth, store := newAuthFixture(peer)
	ctx := context.Background()

	require.NoError(t, auth.RegisterKey(ctx, "alice", "alice"))
	require.NoError(t, auth.TransferGovernorship(ctx, "alice", "alice", "relayer-1"))
	assert.Equal(t, 1, peer.calls)

	ka, err := store.GetKeyAuth(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, ka.Governor)
	assert.Equal(t, "relayer-1", *ka.Governor)
	assert.Nil(t, ka.PendingGovernor)

	// 之后只有现任 governor 能再转移
	assert.ErrorIs(t, auth.TransferGovernorship(ctx, "alice", "alice", "relayer-2"),
		errno.ErrNotAuthorized)
	require.NoError(t, auth.TransferGovernorship(ctx, "relayer-1", "alice", "relayer-2"))
}

func TestTransferGovernorshipRejected(t *testing.T) {
	peer := &stubPeer{accepted: false}
	auth, store := newAuthFixture(peer)
	ctx := context.Background()

	require.NoError(t, auth.RegisterKey(ctx, "alice", "alice"))
	err := auth.TransferGovernorship(ctx, "alice", "alice", "relayer-1")
	assert.ErrorIs(t, err, errno.ErrTransferRejected)

	// 拒绝后授权原样，pending 标记也已撤掉，可以再次发起
	ka, err2 := store.GetKeyAuth(ctx, "alice")
	require.NoError(t, err2)
	assert.Nil(t, ka.Governor)
	assert.Nil(t, ka.PendingGovernor)

	peer.accepted = true
	assert.NoError(t, auth.TransferGovernorship(ctx, "alice", "alice", "relayer-1"))
}

func TestTransferGovernorshipPeerUnreachable(t *testing.T) {
	peer := &stubPeer{err: assert.AnError}
	auth, store := newAuthFixture(peer)
	ctx := context.Background()

	require.NoError(t, auth.RegisterKey(ctx, "alice", "alice"))
	err := auth.TransferGovernorship(ctx, "alice", "alice", "relayer-1")
	assert.ErrorIs(t, err, errno.ErrPeerUnreachable)

	ka, err2 := store.GetKeyAuth(ctx, "alice")
	require.NoError(t, err2)
	assert.Nil(t, ka.Governor)
	assert.Nil(t, ka.PendingGovernor)
}

func TestGovernorshipRespectsPause(t *testing.T) {
	store := repo.NewMemoryStore()
	pause := &PauseSwitch{}
	auth := NewAuthorizationService(store, &stubPeer{accepted: true}, pause)
	ctx := context.Background()

	require.NoError(t, auth.RegisterKey(ctx, "alice", "alice"))
	require.NoError(t, auth.TransferGovernorship(ctx, "alice", "alice", "relayer-1"))

	pause.Pause()

	assert.ErrorIs(t, auth.TransferGovernorship(ctx, "relayer-1", "alice", "relayer-2"),
		errno.ErrPaused)
	assert.ErrorIs(t, auth.ReleaseGovernorship(ctx, "alice", "alice"), errno.ErrPaused)

	// 熔断期间授权状态原样保留
	ka, err := store.GetKeyAuth(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, ka.Governor)
	assert.Equal(t, "relayer-1", *ka.Governor)

	// 只读查询不受影响
	_, err = auth.Get(ctx, "alice")
	assert.NoError(t, err)

	pause.Resume()
	require.NoError(t, auth.ReleaseGovernorship(ctx, "alice", "alice"))
}

func TestReleaseGovernorship(t *testing.T) {
	peer := &stubPeer{accepted: true}
	auth, store := newAuthFixture(peer)
	ctx := context.Background()

	require.NoError(t, auth.RegisterKey(ctx, "alice", "alice"))
	require.NoError(t, auth.TransferGovernorship(ctx, "alice", "alice", "relayer-1"))

	// 无关者不能释放
	assert.ErrorIs(t, auth.ReleaseGovernorship(ctx, "mallory", "alice"), errno.ErrNotAuthorized)

	// owner 可以强制收回
	require.NoError(t, auth.ReleaseGovernorship(ctx, "alice", "alice"))
	ka, err := store.GetKeyAuth(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, ka.Governor)

	// 回到 owner 自治
	assert.NoError(t, auth.Authorize(ctx, "alice", "alice"))
}
