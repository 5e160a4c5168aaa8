// Package redisclient owns everything the service keeps in Redis: the
// booking critical-section locks, the advisory slot claims raised over the
// push channel, the OTP store, and the pub/sub room bus.
package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	connectTimeout = 5 * time.Second
	opTimeout      = 2 * time.Second
)

// NewRedisClient connects and pings before returning. The pool is sized for
// the api-server's mix of short lock operations and per-room pub/sub
// subscriptions, which hold dedicated connections outside the pool.
func NewRedisClient(addr, username, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Username:     username,
		Password:     password,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
		PoolSize:     16,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return rdb, nil
}
