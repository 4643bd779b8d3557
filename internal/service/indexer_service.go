package service

import (
	"context"
	"encoding/json"

	"gas-station/internal/event"
	"gas-station/internal/service/mq"
	"gas-station/pkg/logger"

	"go.uber.org/zap"
)

// IndexerService 消费已签名序列事件。
// 下游 relayer 把 raw 交易广播到外链; 这里只做落日志和对账入口，
// 广播本身不在本服务职责内。
type IndexerService struct {
	consumer mq.Consumer
}

func NewIndexerService(consumer mq.Consumer) *IndexerService {
	return &IndexerService{consumer: consumer}
}

// Start 订阅 sequence.signed，ctx 取消时由底层消费者退出
func (s *IndexerService) Start(ctx context.Context) error {
	return s.consumer.Subscribe(ctx, event.TopicSequenceSigned, s.handleSigned)
}

func (s *IndexerService) handleSigned(msg *mq.Message) error {
	var evt event.SequenceSigned
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		// 格式坏的消息重试也没用，吞掉
		logger.Log.Error("malformed sequence.signed event",
			zap.String("id", msg.ID), zap.Error(err))
		return nil
	}

	logger.Log.Info("sequence ready for broadcast",
		zap.Uint64("sequence_id", evt.SequenceID),
		zap.Uint64("chain_id", evt.ChainID),
		zap.Int("transactions", len(evt.Steps)),
		zap.String("fee", evt.Fee))
	return nil
}

func (s *IndexerService) Close() error {
	return s.consumer.Close()
}
