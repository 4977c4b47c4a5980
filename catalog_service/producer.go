package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaProducer struct {
	Writer  messageWriter
	Topic   string
	Timeout time.Duration
}

func NewKafkaProducer(w messageWriter, topic string, timeout time.Duration) *KafkaProducer {
	slog.Info("Kafka Producer created", "topic", topic)

	return &KafkaProducer{
		Writer:  w,
		Topic:   topic,
		Timeout: timeout,
	}
}

// Write sends key/value pairs and returns once the broker acknowledged them.
func (k *KafkaProducer) Write(ctx context.Context, messages ...[2]string) error {
	var msgs []kafka.Message

	for _, message := range messages {
		msgs = append(msgs, kafka.Message{
			Key:   []byte(message[0]),
			Value: []byte(message[1]),
		})
	}

	if k.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.Timeout)
		defer cancel()
	}

	return k.Writer.WriteMessages(ctx, msgs...)
}

func (k *KafkaProducer) Publish(ctx context.Context, n *Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w: %w", ErrPersistence, err)
	}

	if err := k.Write(ctx, [2]string{n.PartitionKey(), string(payload)}); err != nil {
		slog.Error("Error occurred while publishing notification", "type", n.Type, "event_id", n.EventID, "err", err)
		return fmt.Errorf("publish %s: %w: %w", n.Type, ErrPersistence, err)
	}

	slog.Debug("Notification published", "type", n.Type, "event_id", n.EventID, "entity_id", n.EntityID, "version", n.Version)
	return nil
}

func (k *KafkaProducer) Close() error {
	return k.Writer.Close()
}
