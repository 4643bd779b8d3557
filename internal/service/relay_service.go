package service

import (
	"context"
	"time"

	"gas-station/internal/repo"
	"gas-station/internal/service/mq"
	"gas-station/pkg/logger"

	"go.uber.org/zap"
)

// relayBatchSize 每轮搬运的消息上限
const relayBatchSize = 50

// RelayService 把本地消息表 (outbox) 里的事件搬运到 MQ。
// 先发送成功再标 SENT，是 at-least-once 投递，消费方要做幂等。
type RelayService struct {
	store    repo.Store
	producer mq.Producer
	interval time.Duration
}

func NewRelayService(store repo.Store, producer mq.Producer) *RelayService {
	return &RelayService{
		store:    store,
		producer: producer,
		interval: 500 * time.Millisecond,
	}
}

// Start 阻塞轮询，ctx 取消时退出
func (s *RelayService) Start(ctx context.Context) {
	logger.Log.Info("outbox relay started", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("outbox relay stopped")
			return
		case <-ticker.C:
			s.drain(ctx)
		}
	}
}

func (s *RelayService) drain(ctx context.Context) {
	messages, err := s.store.ListPendingOutbox(ctx, relayBatchSize)
	if err != nil {
		logger.Log.Error("outbox query failed", zap.Error(err))
		return
	}
	if len(messages) == 0 {
		return
	}

	for _, msg := range messages {
		if err := s.producer.Publish(ctx, msg.Topic, msg.Key, msg.Payload); err != nil {
			logger.Log.Warn("outbox publish failed",
				zap.Uint64("id", msg.ID),
				zap.String("topic", msg.Topic),
				zap.Error(err))
			continue
		}

		// 标记失败下次会重发，消费端按消息 Key 幂等
		if err := s.store.MarkOutboxSent(ctx, msg.ID); err != nil {
			logger.Log.Warn("outbox mark sent failed",
				zap.Uint64("id", msg.ID), zap.Error(err))
		}
	}
}
