// Package redisclient holds the Redis client used for the per-slot try-locks
// and the booking event stream.
package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Short IO timeouts: a slow Redis must surface as a lock or publish failure
// quickly, never as a stalled reservation request.
const (
	ioTimeout   = 2 * time.Second
	pingTimeout = 5 * time.Second
)

// NewRedisClient connects, pings, and returns a client shared by the locker
// and the stream publisher.
func NewRedisClient(addr, username, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Username:     username,
		Password:     password,
		DB:           0,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
		PoolSize:     10,
		MinIdleConns: 1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return rdb, nil
}
