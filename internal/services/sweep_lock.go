package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// SweepLock coordinates exclusive sweep cycles across server processes.
type SweepLock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// RedisSweepLock implements SweepLock with SETNX and a TTL.
type RedisSweepLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	owner  string

	newOwner func() string
}

func NewRedisSweepLock(client *redis.Client, key string, ttl time.Duration) (*RedisSweepLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for sweep lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisSweepLock{client: client, key: key, ttl: ttl, newOwner: uuid.NewString}, nil
}

func (l *RedisSweepLock) Acquire(ctx context.Context) (bool, error) {
	owner := l.newOwner()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

// Release frees the lock only if this process still owns it.
func (l *RedisSweepLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	value, err := l.client.Get(ctx, l.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			l.owner = ""
			return nil
		}
		return fmt.Errorf("read lock owner: %w", err)
	}
	if value != l.owner {
		l.owner = ""
		return nil
	}
	if err := l.client.Del(ctx, l.key).Err(); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	l.owner = ""
	return nil
}

// localSweepLock is used when Redis is unavailable; a single process always sweeps.
type localSweepLock struct{}

func (localSweepLock) Acquire(context.Context) (bool, error) { return true, nil }
func (localSweepLock) Release(context.Context) error         { return nil }
