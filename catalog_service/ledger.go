package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventLedger remembers which notifications were already applied.
type EventLedger interface {
	// Claim reports true when eventID was not seen before and is now owned
	// by the caller.
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type ledgerClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type RedisLedger struct {
	client ledgerClient
	ttl    time.Duration
	prefix string
}

func NewRedisLedger(client ledgerClient, ttl time.Duration) *RedisLedger {
	return &RedisLedger{client: client, ttl: ttl, prefix: "catalog-gateway:event:"}
}

func (l *RedisLedger) Claim(ctx context.Context, eventID string) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.prefix+eventID, time.Now().Unix(), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim event %s: %w", eventID, err)
	}
	return ok, nil
}

func (l *RedisLedger) Release(ctx context.Context, eventID string) error {
	if err := l.client.Del(ctx, l.prefix+eventID).Err(); err != nil {
		return fmt.Errorf("release event %s: %w", eventID, err)
	}
	return nil
}

// MemoryLedger is used when no Redis is configured. Claims do not survive
// a restart.
type MemoryLedger struct {
	mu     sync.Mutex
	ttl    time.Duration
	seen   map[string]time.Time
	now    func() time.Time
	sweeps int
}

func NewMemoryLedger(ttl time.Duration) *MemoryLedger {
	return &MemoryLedger{ttl: ttl, seen: map[string]time.Time{}, now: time.Now}
}

func (l *MemoryLedger) Claim(_ context.Context, eventID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if expires, ok := l.seen[eventID]; ok && (l.ttl <= 0 || now.Before(expires)) {
		return false, nil
	}

	l.seen[eventID] = now.Add(l.ttl)

	l.sweeps++
	if l.sweeps%1024 == 0 {
		l.sweep(now)
	}
	return true, nil
}

func (l *MemoryLedger) Release(_ context.Context, eventID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.seen, eventID)
	return nil
}

func (l *MemoryLedger) sweep(now time.Time) {
	if l.ttl <= 0 {
		return
	}
	for id, expires := range l.seen {
		if !now.Before(expires) {
			delete(l.seen, id)
		}
	}
}
