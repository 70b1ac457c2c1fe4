// Package kafka 提供了向 Kafka 发布领域事件的功能。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"study-with-speech/internal/config"
	"study-with-speech/pkg/log"

	"github.com/segmentio/kafka-go"
)

// 事件类型
const (
	EventMessageCreated    = "message.created"
	EventMessageLiked      = "message.liked"
	EventMessageDisliked   = "message.disliked"
	EventMessageSaved      = "message.saved"
	EventMessageUnsaved    = "message.unsaved"
	EventSuggestionCreated = "suggestion.created"
)

// Event 是发布到 Kafka 的领域事件。
type Event struct {
	Type           string    `json:"type"`
	UserID         uint      `json:"userId,omitempty"`
	MessageID      uint      `json:"messageId,omitempty"`
	SavedMessageID uint      `json:"savedMessageId,omitempty"`
	SuggestionID   uint      `json:"suggestionId,omitempty"`
	Value          int       `json:"value,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Publisher 发布领域事件。实现必须是并发安全的。
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// messageWriter 是 *kafka.Writer 的子集，便于测试替换。
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaPublisher struct {
	writer messageWriter
	now    func() time.Time
}

// NewPublisher 根据配置创建发布器；未配置 brokers 时返回 no-op 实现。
func NewPublisher(cfg config.KafkaConfig) Publisher {
	brokers := splitBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		log.Info("未配置 Kafka brokers，领域事件将被丢弃")
		return NoopPublisher{}
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Errorf("Kafka 事件写入失败, count=%d, error: %v", len(messages), err)
			}
		},
	}
	log.Infof("Kafka 生产者初始化成功, brokers=%v topic=%s", brokers, cfg.Topic)
	return newKafkaPublisher(writer)
}

func newKafkaPublisher(w messageWriter) *kafkaPublisher {
	return &kafkaPublisher{writer: w, now: time.Now}
}

func splitBrokers(raw string) []string {
	var out []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Publish 序列化事件并写入 Kafka，以用户 ID 作为分区键以保证同一用户事件有序。
func (p *kafkaPublisher) Publish(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(event.UserID), 10)),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher 丢弃所有事件。
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }

func (NoopPublisher) Close() error { return nil }
