package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
)

var errPoisonMessage = errors.New("message cannot be applied")

type HandlerKafka func(ctx context.Context, msg *kafka.Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer commits an offset only after its message was handled or
// found to be unusable. Other handler failures are retried in place.
type KafkaConsumer struct {
	Reader     messageReader
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

func NewKafkaConsumer(reader messageReader) *KafkaConsumer {
	return &KafkaConsumer{
		Reader:     reader,
		MinBackoff: 200 * time.Millisecond,
		MaxBackoff: 10 * time.Second,
	}
}

func (c *KafkaConsumer) Start(ctx context.Context, handler HandlerKafka) error {
	for {
		message, err := c.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				slog.Info("Kafka consumer stopped")
				return nil
			}
			slog.Error("Error reading message", "err", err)
			return err
		}

		if err := c.handle(ctx, handler, &message); err != nil {
			// only a cancelled context gets here; the offset stays uncommitted
			slog.Info("Kafka consumer stopped before commit", "offset", message.Offset, "partition", message.Partition)
			return nil
		}

		if err := c.Reader.CommitMessages(ctx, message); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Error("Error committing message", "offset", message.Offset, "err", err)
			return err
		}
	}
}

func (c *KafkaConsumer) handle(ctx context.Context, handler HandlerKafka, message *kafka.Message) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.MinBackoff
	policy.MaxInterval = c.MaxBackoff
	policy.MaxElapsedTime = 0

	operation := func() error {
		err := handler(ctx, message)
		if errors.Is(err, errPoisonMessage) {
			slog.Error("Skipping message", "offset", message.Offset, "key", string(message.Key), "err", err)
			return nil
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		slog.Warn("Error while handling message, retrying", "offset", message.Offset, "backoff", wait, "err", err)
	}

	return backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify)
}

func (c *KafkaConsumer) Stop() error {
	return c.Reader.Close()
}

type notificationStore interface {
	InsertService(ctx context.Context, s Service) (*Service, error)
	InsertProduct(ctx context.Context, p Product) (*Product, error)
	UpdateService(ctx context.Context, id string, update ServiceUpdate) error
}

// NotificationApplier writes published notifications to the store. Each
// event id is applied at most once. Updates carry only the changed fields
// and bump the stored version, so updates published against the same
// version all land in partition order.
type NotificationApplier struct {
	store  notificationStore
	ledger EventLedger
}

func NewNotificationApplier(store notificationStore, ledger EventLedger) *NotificationApplier {
	return &NotificationApplier{store: store, ledger: ledger}
}

func (a *NotificationApplier) Handle(ctx context.Context, msg *kafka.Message) error {
	var n Notification
	if err := json.Unmarshal(msg.Value, &n); err != nil {
		eventsConsumedTotal.WithLabelValues("unknown", "poison").Inc()
		return fmt.Errorf("decode notification: %w: %w", errPoisonMessage, err)
	}
	if n.EventID == "" {
		eventsConsumedTotal.WithLabelValues(n.Type, "poison").Inc()
		return fmt.Errorf("notification without event_id: %w", errPoisonMessage)
	}

	switch n.Type {
	case EventServiceCreated, EventServiceUpdated, EventProductCreated:
	default:
		eventsConsumedTotal.WithLabelValues("unknown", "poison").Inc()
		return fmt.Errorf("notification type %q: %w", n.Type, errPoisonMessage)
	}

	claimed, err := a.ledger.Claim(ctx, n.EventID)
	if err != nil {
		eventsConsumedTotal.WithLabelValues(n.Type, "error").Inc()
		return err
	}
	if !claimed {
		slog.Info("Notification already applied", "event_id", n.EventID, "type", n.Type)
		eventsConsumedTotal.WithLabelValues(n.Type, "duplicate").Inc()
		return nil
	}

	outcome, err := a.apply(ctx, &n)
	if err != nil {
		if releaseErr := a.ledger.Release(ctx, n.EventID); releaseErr != nil {
			slog.Error("Error releasing event claim", "event_id", n.EventID, "err", releaseErr)
		}
		if errors.Is(err, ErrInsertion) || errors.Is(err, ErrNotFound) {
			err = fmt.Errorf("%w: %w", errPoisonMessage, err)
			outcome = "poison"
		} else if !errors.Is(err, errPoisonMessage) {
			outcome = "error"
		}
		eventsConsumedTotal.WithLabelValues(n.Type, outcome).Inc()
		return err
	}

	slog.Info("Notification applied", "event_id", n.EventID, "type", n.Type, "entity_id", n.EntityID, "version", n.Version, "outcome", outcome)
	eventsConsumedTotal.WithLabelValues(n.Type, outcome).Inc()
	return nil
}

func (a *NotificationApplier) apply(ctx context.Context, n *Notification) (string, error) {
	switch n.Type {
	case EventServiceCreated:
		var s Service
		if err := json.Unmarshal(n.Content, &s); err != nil {
			return "poison", fmt.Errorf("decode service: %w: %w", errPoisonMessage, err)
		}
		if _, err := a.store.InsertService(ctx, s); err != nil {
			return "", err
		}
		return "applied", nil

	case EventProductCreated:
		var p Product
		if err := json.Unmarshal(n.Content, &p); err != nil {
			return "poison", fmt.Errorf("decode product: %w: %w", errPoisonMessage, err)
		}
		if _, err := a.store.InsertProduct(ctx, p); err != nil {
			return "", err
		}
		return "applied", nil

	default:
		if n.EntityID == "" {
			return "poison", fmt.Errorf("service update without entity_id: %w", errPoisonMessage)
		}
		var update ServiceUpdate
		if err := json.Unmarshal(n.Content, &update); err != nil {
			return "poison", fmt.Errorf("decode service update: %w: %w", errPoisonMessage, err)
		}
		if update.IsEmpty() {
			return "poison", fmt.Errorf("service update without fields: %w", errPoisonMessage)
		}
		if err := a.store.UpdateService(ctx, n.EntityID, update); err != nil {
			return "", err
		}
		return "applied", nil
	}
}
