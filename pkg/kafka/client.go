// Package kafka 提供了与 Kafka 消息队列交互的功能：发布交换事件，并消费它们生成统计。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"hanna-chat-go/internal/config"
	"hanna-chat-go/internal/model"
	"hanna-chat-go/pkg/log"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
)

// EventProcessor defines the interface for any service that can process an exchange event.
type EventProcessor interface {
	Process(ctx context.Context, event model.ExchangeEvent) error
}

// maxAttempts 是单条消息处理失败后的最大重试次数，超过后提交 offset 跳过。
const maxAttempts = 3

// Producer 把交换事件写入 Kafka。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers(cfg.Brokers)...),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
		// 事件只用于统计，不阻塞请求路径
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Warnf("发送 %d 条交换事件失败: %v", len(messages), err)
			}
		},
	}
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: w}
}

// Record 满足 service.ExchangeRecorder。
func (p *Producer) Record(ctx context.Context, event model.ExchangeEvent) {
	if err := p.Produce(ctx, event); err != nil {
		log.Warnf("发送交换事件失败: %v", err)
	}
}

// Produce 发送一个交换事件到 Kafka。
func (p *Producer) Produce(ctx context.Context, event model.ExchangeEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.StatsKind()),
		Value: value,
	})
}

// Close 刷新并关闭生产者。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// StartConsumer 启动一个 Kafka 消费者来处理交换事件，直到 ctx 被取消。
// rdb 用于记录失败次数；为 nil 时失败的消息直接提交。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor EventProcessor, rdb *redis.Client) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers(cfg.Brokers),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Error("从 Kafka 读取消息失败", err)
			}
			break
		}

		var event model.ExchangeEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			commit(ctx, r, m)
			continue
		}

		if err := processor.Process(ctx, event); err != nil {
			log.Errorf("处理交换事件失败: offset=%d, err=%v", m.Offset, err)
			if !shouldGiveUp(ctx, rdb, m) {
				continue
			}
			log.Errorf("交换事件多次失败(>=%d)，提交 offset 终止重试: offset=%d", maxAttempts, m.Offset)
		} else if rdb != nil {
			_ = rdb.Del(ctx, attemptsKey(m)).Err()
		}
		commit(ctx, r, m)
	}

	if err := r.Close(); err != nil {
		log.Errorf("关闭 Kafka 消费者失败: %v", err)
	}
}

// shouldGiveUp 使用 Redis 计数失败次数，达到阈值后返回 true。
func shouldGiveUp(ctx context.Context, rdb *redis.Client, m kafka.Message) bool {
	if rdb == nil {
		return true
	}
	key := attemptsKey(m)
	attempts, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		// Redis 异常时保守处理：不提交 offset，让 Kafka 重试
		return false
	}
	_ = rdb.Expire(ctx, key, 24*time.Hour).Err()
	return attempts >= maxAttempts
}

func attemptsKey(m kafka.Message) string {
	return fmt.Sprintf("kafka:attempts:%s:%d:%d", m.Topic, m.Partition, m.Offset)
}

func commit(ctx context.Context, r *kafka.Reader, m kafka.Message) {
	if err := r.CommitMessages(ctx, m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
}

func brokers(list string) []string {
	var out []string
	for _, b := range strings.Split(list, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
