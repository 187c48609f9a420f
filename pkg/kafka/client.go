// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"insurapolis-go/internal/config"
	"insurapolis-go/pkg/log"
)

// UsageEvent 是每轮对话产生的用量事件，供下游计费与分析消费。
type UsageEvent struct {
	EventID          string    `json:"event_id"`
	UserID           uint      `json:"user_id"`
	ConversationUUID string    `json:"conversation_uuid"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	Cost             float64   `json:"cost"`
	OccurredAt       time.Time `json:"occurred_at"`
}

var producer *kafka.Writer

// InitProducer 初始化 Kafka 生产者。
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.UsageTopic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
}

// PublishUsageEvent 把一条用量事件写入 Kafka。
// 事件按对话 UUID 作为 key，同一对话的事件落入同一分区保持有序。
func PublishUsageEvent(ctx context.Context, event UsageEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return producer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.ConversationUUID),
		Value: eventBytes,
	})
}

// Close 关闭 Kafka 生产者，刷出尚未发送的消息。
func Close() {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		log.Error("关闭 Kafka 生产者失败", err)
	}
}
