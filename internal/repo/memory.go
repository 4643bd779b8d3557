package repo

import (
	"context"
	"sort"
	"sync"

	"gas-station/internal/model"

	"github.com/shopspring/decimal"
)

// MemoryStore 是 Store 的内存实现 (对照 GormStore)。
// 单测与本地联调用，行为与数据库实现保持一致: 主键自增、List 升序、乐观锁。
type MemoryStore struct {
	mu sync.RWMutex

	chains     map[uint64]model.ForeignChain
	paymasters map[uint64]model.Paymaster
	sequences  map[uint64]model.TransactionSequence
	steps      map[uint64][]model.SignatureStep // sequence id -> ordered steps
	keyAuths   map[string]model.KeyAuthorization
	fees       map[string]decimal.Decimal
	whitelist  map[string]map[string]struct{} // kind -> values
	listGuards map[string]bool                // kind -> enabled
	outbox     []model.OutboxMessage

	nextPaymasterID uint64
	nextSequenceID  uint64
	nextStepID      uint64
	nextOutboxID    uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chains:          make(map[uint64]model.ForeignChain),
		paymasters:      make(map[uint64]model.Paymaster),
		sequences:       make(map[uint64]model.TransactionSequence),
		steps:           make(map[uint64][]model.SignatureStep),
		keyAuths:        make(map[string]model.KeyAuthorization),
		fees:            make(map[string]decimal.Decimal),
		whitelist:       make(map[string]map[string]struct{}),
		listGuards:      make(map[string]bool),
		nextPaymasterID: 1,
		nextSequenceID:  1,
		nextStepID:      1,
		nextOutboxID:    1,
	}
}

// ---- 外链配置 ----

func (s *MemoryStore) GetChain(ctx context.Context, chainID uint64) (*model.ForeignChain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain, ok := s.chains[chainID]
	if !ok {
		return nil, ErrNotFound
	}
	return &chain, nil
}

func (s *MemoryStore) UpsertChain(ctx context.Context, chain *model.ForeignChain) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chains[chain.ChainID] = *chain
	return nil
}

func (s *MemoryStore) ListChains(ctx context.Context) ([]model.ForeignChain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chains := make([]model.ForeignChain, 0, len(s.chains))
	for _, c := range s.chains {
		chains = append(chains, c)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i].ChainID < chains[j].ChainID })
	return chains, nil
}

func (s *MemoryStore) DeleteChain(ctx context.Context, chainID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.chains, chainID)
	for id, p := range s.paymasters {
		if p.ChainID == chainID {
			delete(s.paymasters, id)
		}
	}
	return nil
}

// ---- Paymaster 账本 ----

func (s *MemoryStore) CreatePaymaster(ctx context.Context, p *model.Paymaster) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = s.nextPaymasterID
	s.nextPaymasterID++
	s.paymasters[p.ID] = *p
	return nil
}

func (s *MemoryStore) GetPaymaster(ctx context.Context, id uint64) (*model.Paymaster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.paymasters[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) ListPaymasters(ctx context.Context, chainID uint64) ([]model.Paymaster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ps []model.Paymaster
	for _, p := range s.paymasters {
		if p.ChainID == chainID {
			ps = append(ps, p)
		}
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].ID < ps[j].ID })
	return ps, nil
}

func (s *MemoryStore) UpdatePaymaster(ctx context.Context, p *model.Paymaster) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.paymasters[p.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != p.Version {
		return ErrConflict
	}

	p.Version++
	s.paymasters[p.ID] = *p
	return nil
}

// ---- 交易序列 ----

func (s *MemoryStore) CreateSequence(ctx context.Context, seq *model.TransactionSequence) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq.ID = s.nextSequenceID
	s.nextSequenceID++

	steps := make([]model.SignatureStep, len(seq.Steps))
	for i := range seq.Steps {
		seq.Steps[i].ID = s.nextStepID
		s.nextStepID++
		seq.Steps[i].SequenceID = seq.ID
		steps[i] = seq.Steps[i]
	}

	stored := *seq
	stored.Steps = nil
	s.sequences[seq.ID] = stored
	s.steps[seq.ID] = steps
	return nil
}

func (s *MemoryStore) GetSequence(ctx context.Context, id uint64) (*model.TransactionSequence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seq, ok := s.sequences[id]
	if !ok {
		return nil, ErrNotFound
	}
	seq.Steps = append([]model.SignatureStep(nil), s.steps[id]...)
	return &seq, nil
}

func (s *MemoryStore) SaveSequenceProgress(ctx context.Context, seq *model.TransactionSequence, step *model.SignatureStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sequences[seq.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Cursor = seq.Cursor
	stored.Status = seq.Status
	s.sequences[seq.ID] = stored

	steps := s.steps[seq.ID]
	for i := range steps {
		if steps[i].ID == step.ID {
			steps[i].Status = step.Status
			steps[i].SignedRaw = step.SignedRaw
			steps[i].KeyPath = step.KeyPath
			steps[i].PaymasterID = step.PaymasterID
			steps[i].NonceUsed = step.NonceUsed
		}
	}
	return nil
}

func (s *MemoryStore) MarkSequenceRemoved(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq, ok := s.sequences[id]
	if !ok {
		return ErrNotFound
	}
	seq.Status = model.SequenceStatusRemoved
	s.sequences[id] = seq
	return nil
}

// ---- 密钥授权 ----

func (s *MemoryStore) GetKeyAuth(ctx context.Context, path string) (*model.KeyAuthorization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	auth, ok := s.keyAuths[path]
	if !ok {
		return nil, ErrNotFound
	}
	return &auth, nil
}

func (s *MemoryStore) SaveKeyAuth(ctx context.Context, auth *model.KeyAuthorization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.keyAuths[auth.KeyPath]
	if exists {
		if current.Version != auth.Version {
			return ErrConflict
		}
		auth.Version++
	}
	s.keyAuths[auth.KeyPath] = *auth
	return nil
}

// ---- 服务费 ----

func (s *MemoryStore) AddCollectedFee(ctx context.Context, assetID string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fees[assetID] = s.fees[assetID].Add(amount)
	return nil
}

func (s *MemoryStore) GetCollectedFee(ctx context.Context, assetID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fees[assetID], nil
}

// ---- 白名单 ----

func (s *MemoryStore) AddWhitelistEntry(ctx context.Context, kind, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.whitelist[kind] == nil {
		s.whitelist[kind] = make(map[string]struct{})
	}
	s.whitelist[kind][value] = struct{}{}
	return nil
}

func (s *MemoryStore) RemoveWhitelistEntry(ctx context.Context, kind, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.whitelist[kind], value)
	return nil
}

func (s *MemoryStore) ListWhitelist(ctx context.Context, kind string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values := make([]string, 0, len(s.whitelist[kind]))
	for v := range s.whitelist[kind] {
		values = append(values, v)
	}
	sort.Strings(values)
	return values, nil
}

func (s *MemoryStore) IsWhitelisted(ctx context.Context, kind, value string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.whitelist[kind][value]
	return ok, nil
}

func (s *MemoryStore) SetWhitelistEnabled(ctx context.Context, kind string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listGuards[kind] = enabled
	return nil
}

func (s *MemoryStore) WhitelistEnabled(ctx context.Context, kind string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listGuards[kind], nil
}

// ---- Outbox ----

func (s *MemoryStore) AppendOutbox(ctx context.Context, topic, key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.outbox = append(s.outbox, model.OutboxMessage{
		ID:      s.nextOutboxID,
		Topic:   topic,
		Key:     key,
		Payload: payload,
		Status:  "PENDING",
	})
	s.nextOutboxID++
	return nil
}

func (s *MemoryStore) ListPendingOutbox(ctx context.Context, limit int) ([]model.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []model.OutboxMessage
	for _, msg := range s.outbox {
		if msg.Status == "PENDING" {
			pending = append(pending, msg)
			if len(pending) >= limit {
				break
			}
		}
	}
	return pending, nil
}

func (s *MemoryStore) MarkOutboxSent(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.outbox {
		if s.outbox[i].ID == id {
			s.outbox[i].Status = "SENT"
			return nil
		}
	}
	return ErrNotFound
}
