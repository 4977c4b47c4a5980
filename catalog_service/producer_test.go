package main

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	deadline bool
	closed   bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func (f *fakeWriter) notifications(t *testing.T) []Notification {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []Notification
	for _, m := range f.messages {
		var n Notification
		require.NoError(t, json.Unmarshal(m.Value, &n))
		out = append(out, n)
	}
	return out
}

func TestKafkaProducer_Publish(t *testing.T) {
	writer := &fakeWriter{}
	producer := NewKafkaProducer(writer, "business-notifications", time.Second)

	n, err := NewNotification(EventServiceUpdated, "65f0c0ffee0000000000abcd", 3, Service{ID: "65f0c0ffee0000000000abcd", Name: "A"})
	require.NoError(t, err)

	require.NoError(t, producer.Publish(context.Background(), n))
	require.True(t, writer.deadline)
	require.Len(t, writer.messages, 1)
	require.Equal(t, "65f0c0ffee0000000000abcd", string(writer.messages[0].Key))

	got := writer.notifications(t)[0]
	require.Equal(t, n.EventID, got.EventID)
	require.Equal(t, EventServiceUpdated, got.Type)
	require.Equal(t, int64(3), got.Version)

	var content Service
	require.NoError(t, json.Unmarshal(got.Content, &content))
	require.Equal(t, "A", content.Name)
}

func TestKafkaProducer_CreateKeyedByEvent(t *testing.T) {
	writer := &fakeWriter{}
	producer := NewKafkaProducer(writer, "business-notifications", 0)

	n, err := NewNotification(EventServiceCreated, "", 1, Service{Name: "A"})
	require.NoError(t, err)

	require.NoError(t, producer.Publish(context.Background(), n))
	require.False(t, writer.deadline)
	require.Equal(t, n.EventID, string(writer.messages[0].Key))
}

func TestKafkaProducer_PublishFailure(t *testing.T) {
	writer := &fakeWriter{err: errors.New("leader not available")}
	producer := NewKafkaProducer(writer, "business-notifications", time.Second)

	n, err := NewNotification(EventProductCreated, "", 1, Product{})
	require.NoError(t, err)

	err = producer.Publish(context.Background(), n)
	require.ErrorIs(t, err, ErrPersistence)
}
