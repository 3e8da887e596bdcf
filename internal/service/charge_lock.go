package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ChargeLock не даёт двум репликам одновременно списывать за одно бронирование
type ChargeLock interface {
	Acquire(ctx context.Context, bookingID int64) (release func(), ok bool, err error)
}

// Удаляем ключ, только если он всё ещё наш
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// RedisChargeLock блокировка через SET NX с TTL
type RedisChargeLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisChargeLock nil-клиент означает, что Redis недоступен и блокировка не нужна
func NewRedisChargeLock(client *redis.Client, ttl time.Duration) ChargeLock {
	if client == nil {
		return noLock{}
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisChargeLock{client: client, ttl: ttl}
}

func chargeLockKey(bookingID int64) string {
	return fmt.Sprintf("lesson:charge:%d", bookingID)
}

func (l *RedisChargeLock) Acquire(ctx context.Context, bookingID int64) (func(), bool, error) {
	key := chargeLockKey(bookingID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire charge lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}
	return release, true, nil
}

type noLock struct{}

func (noLock) Acquire(context.Context, int64) (func(), bool, error) {
	return func() {}, true, nil
}
