package mq

import "context"

// Message 一条业务事件
type Message struct {
	ID      string // 消息 ID (Redis Stream ID 或 Kafka Key)
	Topic   string
	Key     string // 分区键 (这里用 sequence id / key path)，保证同一实体的事件有序
	Payload []byte // JSON
}

// Producer 生产者接口
type Producer interface {
	// Publish 发送消息。key 为空则随机分区。
	Publish(ctx context.Context, topic string, key string, payload []byte) error
}

// Consumer 消费者接口
type Consumer interface {
	// Subscribe 订阅主题; handler 返回 error 表示处理失败，不会 ACK
	Subscribe(ctx context.Context, topic string, handler func(msg *Message) error) error

	Close() error
}
