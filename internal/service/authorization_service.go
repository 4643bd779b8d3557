package service

import (
	"context"
	"encoding/json"
	"errors"

	"gas-station/internal/event"
	"gas-station/internal/model"
	"gas-station/internal/repo"
	"gas-station/pkg/errno"
	"gas-station/pkg/logger"

	"go.uber.org/zap"
)

// AuthorizationService 实现 key path 的 governor 模型。
// 规则很简单: 有 governor 时只有 governor 能签，没有时 owner 自己能签。
// 转移是两阶段的: 先落 pending 标记，握手确认后才真正换人。
type AuthorizationService struct {
	store repo.Store
	peer  GovernorPeer
	pause *PauseSwitch
}

func NewAuthorizationService(store repo.Store, peer GovernorPeer, pause *PauseSwitch) *AuthorizationService {
	return &AuthorizationService{store: store, peer: peer, pause: pause}
}

// RegisterKey 登记一个 key path，owner 即注册者。
// 重复注册自己的 path 是幂等的，抢注别人的 path 会被拒。
func (s *AuthorizationService) RegisterKey(ctx context.Context, keyPath, owner string) error {
	existing, err := s.store.GetKeyAuth(ctx, keyPath)
	if err == nil {
		if existing.Owner == owner {
			return nil
		}
		return errno.ErrNotAuthorized
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return errno.ErrDatabase
	}

	auth := &model.KeyAuthorization{KeyPath: keyPath, Owner: owner}
	if err := s.store.SaveKeyAuth(ctx, auth); err != nil {
		return errno.ErrDatabase
	}
	return nil
}

// Authorize 判定 requester 此刻是否有 keyPath 的签名权
func (s *AuthorizationService) Authorize(ctx context.Context, keyPath, requester string) error {
	auth, err := s.store.GetKeyAuth(ctx, keyPath)
	if errors.Is(err, repo.ErrNotFound) {
		return errno.ErrKeyNotFound
	}
	if err != nil {
		return errno.ErrDatabase
	}

	if auth.Governor != nil {
		if *auth.Governor == requester {
			return nil
		}
		return errno.ErrNotAuthorized
	}
	if auth.Owner == requester {
		return nil
	}
	return errno.ErrNotAuthorized
}

// Get 查询某个 key path 的授权状态
func (s *AuthorizationService) Get(ctx context.Context, keyPath string) (*model.KeyAuthorization, error) {
	auth, err := s.store.GetKeyAuth(ctx, keyPath)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, errno.ErrKeyNotFound
	}
	if err != nil {
		return nil, errno.ErrDatabase
	}
	return auth, nil
}

// TransferGovernorship 发起两阶段的治理权转移。
// 阶段一: 校验发起者有权转移，落 pending_governor 标记 (挡掉并发转移)。
// 阶段二: 向候任方握手，对方明确接受才换 governor，否则撤回标记。
// 握手期间签名权不变，一直归原授权方。
func (s *AuthorizationService) TransferGovernorship(ctx context.Context, caller, keyPath, newGovernor string) error {
	if s.pause.Paused() {
		return errno.ErrPaused
	}

	auth, err := s.store.GetKeyAuth(ctx, keyPath)
	if errors.Is(err, repo.ErrNotFound) {
		return errno.ErrKeyNotFound
	}
	if err != nil {
		return errno.ErrDatabase
	}

	if err := s.canGovern(auth, caller); err != nil {
		return err
	}
	if auth.PendingGovernor != nil {
		return errno.ErrTransferPending
	}

	auth.PendingGovernor = &newGovernor
	if err := s.store.SaveKeyAuth(ctx, auth); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return errno.ErrTransferPending
		}
		return errno.ErrDatabase
	}

	accepted, peerErr := s.peer.AcceptGovernorship(ctx, newGovernor, auth.Owner, keyPath)

	// 无论结果如何都要撤掉 pending 标记; 只有明确 accepted 才换人
	if accepted && peerErr == nil {
		auth.Governor = &newGovernor
	}
	auth.PendingGovernor = nil
	if err := s.store.SaveKeyAuth(ctx, auth); err != nil {
		// pending 标记残留会永久挡住后续转移，必须暴露出来
		logger.Log.Error("failed to clear pending governor",
			zap.String("key_path", keyPath), zap.Error(err))
		return errno.ErrDatabase
	}

	if peerErr != nil {
		logger.Log.Warn("governor peer unreachable",
			zap.String("key_path", keyPath),
			zap.String("peer", newGovernor),
			zap.Error(peerErr))
		return errno.ErrPeerUnreachable
	}
	if !accepted {
		return errno.ErrTransferRejected
	}

	s.emitGovernorChanged(ctx, keyPath, newGovernor)
	logger.Log.Info("governorship transferred",
		zap.String("key_path", keyPath), zap.String("governor", newGovernor))
	return nil
}

// ReleaseGovernorship 放弃治理权，key path 回到 owner 自治。
// owner 和现任 governor 都可以调用，无条件生效。
func (s *AuthorizationService) ReleaseGovernorship(ctx context.Context, caller, keyPath string) error {
	if s.pause.Paused() {
		return errno.ErrPaused
	}

	auth, err := s.store.GetKeyAuth(ctx, keyPath)
	if errors.Is(err, repo.ErrNotFound) {
		return errno.ErrKeyNotFound
	}
	if err != nil {
		return errno.ErrDatabase
	}

	if auth.Owner != caller && (auth.Governor == nil || *auth.Governor != caller) {
		return errno.ErrNotAuthorized
	}

	auth.Governor = nil
	auth.PendingGovernor = nil
	if err := s.store.SaveKeyAuth(ctx, auth); err != nil {
		return errno.ErrDatabase
	}

	s.emitGovernorChanged(ctx, keyPath, "")
	logger.Log.Info("governorship released", zap.String("key_path", keyPath))
	return nil
}

// canGovern 转移发起权: 现任 governor，或无 governor 时的 owner
func (s *AuthorizationService) canGovern(auth *model.KeyAuthorization, caller string) error {
	if auth.Governor != nil {
		if *auth.Governor == caller {
			return nil
		}
		return errno.ErrNotAuthorized
	}
	if auth.Owner == caller {
		return nil
	}
	return errno.ErrNotAuthorized
}

// AcceptGovernorship 本服务作为候任方被握手时的应答。
// 只接管配置里明确列出的 key path。
func (s *AuthorizationService) AcceptGovernorship(governedKeys []string, keyPath string) bool {
	for _, k := range governedKeys {
		if k == keyPath {
			return true
		}
	}
	return false
}

func (s *AuthorizationService) emitGovernorChanged(ctx context.Context, keyPath, governor string) {
	payload, err := json.Marshal(event.GovernorChanged{KeyPath: keyPath, Governor: governor})
	if err != nil {
		return
	}
	if err := s.store.AppendOutbox(ctx, event.TopicGovernorChanged, keyPath, payload); err != nil {
		logger.Log.Error("failed to append governor event", zap.Error(err))
	}
}
