// Package keyValue is a small expiring string cache, backed by redis or by an
// in-process map when the server runs self contained.
package keyValue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"chatapp-gateway/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store returns "" with a nil error for missing or expired keys.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, expires time.Duration) error
	Close() error
}

// Setup picks the in-memory store in self contained mode and redis otherwise.
func Setup(ctx context.Context, cfg *models.ConfigFile, sugar *zap.SugaredLogger) (Store, error) {
	if cfg.SelfContained {
		sugar.Info("Using in-memory key value store")
		return NewMemory(sugar, time.Minute), nil
	}

	sugar.Infof("Connecting to redis at %s...", cfg.RedisAddress)
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return NewRedis(client, sugar), nil
}

type value struct {
	value   string
	expires time.Time
}

type Memory struct {
	mutex   sync.RWMutex
	hashmap map[string]value
	sugar   *zap.SugaredLogger
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

// NewMemory starts a map backed store that drops expired keys every sweep.
func NewMemory(sugar *zap.SugaredLogger, sweep time.Duration) *Memory {
	m := &Memory{
		hashmap: make(map[string]value),
		sugar:   sugar,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go m.checkForExpiredKeys(sweep)
	return m
}

func (m *Memory) checkForExpiredKeys(sweep time.Duration) {
	ticker := time.NewTicker(sweep)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.deleteExpired()
		}
	}
}

func (m *Memory) deleteExpired() {
	now := m.now()

	m.mutex.Lock()
	defer m.mutex.Unlock()
	for key, v := range m.hashmap {
		if v.expires.Before(now) {
			delete(m.hashmap, key)
		}
	}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.sugar.Debugf("Getting value of key [%s] from hashmap", key)

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	v, ok := m.hashmap[key]
	if !ok || v.expires.Before(m.now()) {
		return "", nil
	}
	return v.value, nil
}

func (m *Memory) Set(_ context.Context, key string, val string, expires time.Duration) error {
	m.sugar.Debugf("Setting value of key [%s] in hashmap", key)

	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.hashmap[key] = value{value: val, expires: m.now().Add(expires)}
	return nil
}

func (m *Memory) Close() error {
	m.once.Do(func() { close(m.done) })
	return nil
}

type Redis struct {
	client *redis.Client
	sugar  *zap.SugaredLogger
}

func NewRedis(client *redis.Client, sugar *zap.SugaredLogger) *Redis {
	return &Redis{client: client, sugar: sugar}
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	r.sugar.Debugf("Getting value of key [%s] from redis", key)

	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	} else if err != nil {
		return "", err
	}
	return v, nil
}

func (r *Redis) Set(ctx context.Context, key string, val string, expires time.Duration) error {
	r.sugar.Debugf("Setting value of key [%s] in redis", key)
	return r.client.Set(ctx, key, val, expires).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
