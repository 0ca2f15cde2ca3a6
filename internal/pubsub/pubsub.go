// Package pubsub abstracts per-cycle score publication for downstream
// consumers. Redis for low-latency fan-out, Kafka when durability matters,
// Memory for single-instance deployments.
package pubsub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Backend abstracts pub/sub for Redis and Kafka
type Backend interface {
	Publish(ctx context.Context, channel string, msg interface{}) error
	Subscribe(ctx context.Context, channel string, handler func([]byte)) error
}

// RedisPubSub implements Backend using Redis
type RedisPubSub struct {
	client *redis.Client
}

func NewRedisPubSub(addr, password string, db int) *RedisPubSub {
	return &RedisPubSub{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (r *RedisPubSub) Publish(ctx context.Context, channel string, msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, channel, data).Err()
}

func (r *RedisPubSub) Subscribe(ctx context.Context, channel string, handler func([]byte)) error {
	pubsub := r.client.Subscribe(ctx, channel)
	ch := pubsub.Channel()
	go func() {
		for msg := range ch {
			handler([]byte(msg.Payload))
		}
	}()
	return nil
}

// KafkaPubSub implements Backend using Kafka
type KafkaPubSub struct {
	writer *kafka.Writer
	reader *kafka.Reader
	logger *zap.Logger
}

func NewKafkaPubSub(brokers []string, topic, groupID string, logger *zap.Logger) *KafkaPubSub {
	return &KafkaPubSub{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		}),
		logger: logger,
	}
}

func (k *KafkaPubSub) Publish(ctx context.Context, channel string, msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{Value: data})
}

func (k *KafkaPubSub) Subscribe(ctx context.Context, channel string, handler func([]byte)) error {
	go func() {
		for {
			m, err := k.reader.ReadMessage(ctx)
			if err != nil {
				k.logger.Warn("kafka read error", zap.Error(err))
				return
			}
			handler(m.Value)
		}
	}()
	return nil
}

// Memory is a process-local backend for single-instance deployments and
// tests. Handlers run synchronously on the publishing goroutine.
type Memory struct {
	mu   sync.RWMutex
	subs map[string][]func([]byte)
}

func NewMemory() *Memory {
	return &Memory{subs: make(map[string][]func([]byte))}
}

func (m *Memory) Publish(ctx context.Context, channel string, msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	m.mu.RLock()
	handlers := m.subs[channel]
	m.mu.RUnlock()
	for _, h := range handlers {
		h(data)
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, channel string, handler func([]byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[channel] = append(m.subs[channel], handler)
	return nil
}
