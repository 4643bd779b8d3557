package oracle

import (
	"context"
	"sync"
)

// StaticOracle 内存实现，测试与本地联调用。
// 模拟一个喂价合约: 报价由测试代码显式设置。
type StaticOracle struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewStaticOracle() *StaticOracle {
	return &StaticOracle{quotes: make(map[string]Quote)}
}

// SetPrice 设置某资产的报价
func (s *StaticOracle) SetPrice(assetID string, q Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[assetID] = q
}

func (s *StaticOracle) GetPrice(ctx context.Context, assetID string) (*Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.quotes[assetID]
	if !ok {
		return nil, ErrNoPrice
	}
	return &q, nil
}
