package redisclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("slot lock not acquired")
	ErrNotLockOwner    = errors.New("lock held by another owner")
)

// Locker guards the booking critical section per schedule slot. Acquire and
// release are invisible to clients; contention surfaces as ErrLockNotAcquired.
type Locker interface {
	WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error
}

type redisSlotLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSlotLocker creates a locker that uses a per slot Redis key.
func NewRedisSlotLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisSlotLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *redisSlotLocker) WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:booking:%s", slotID.String())
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire slot lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		_, _ = releaseScript.Run(ctx, l.client, []string{key}, token).Result()
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

// releaseScript deletes a lock key only when the caller still owns it.
var releaseScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

// AdvisoryLocker arbitrates the short-lived, UX-level slot claims raised over
// the push channel. Locks are keyed by doctor, date and slot start, owned by a
// client session token, and expire on their own if the holder vanishes without
// releasing.
type AdvisoryLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAdvisoryLocker(client *redis.Client, ttl time.Duration) *AdvisoryLocker {
	return &AdvisoryLocker{client: client, ttl: ttl}
}

func advisoryKey(doctorID uuid.UUID, date, start string) string {
	return fmt.Sprintf("lock:advisory:%s:%s:%s", doctorID.String(), date, start)
}

func advisoryPattern(doctorID uuid.UUID, date string) string {
	return fmt.Sprintf("lock:advisory:%s:%s:*", doctorID.String(), date)
}

// Acquire claims a slot for owner. Returns ErrLockNotAcquired when another
// owner holds it; re-acquiring an own lock refreshes the TTL.
func (l *AdvisoryLocker) Acquire(ctx context.Context, doctorID uuid.UUID, date, start, owner string) error {
	key := advisoryKey(doctorID, date, start)

	ok, err := l.client.SetNX(ctx, key, owner, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire advisory lock: %w", err)
	}
	if ok {
		return nil
	}

	holder, err := l.client.Get(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("read advisory lock: %w", err)
	}
	if holder == owner {
		if err := l.client.Expire(ctx, key, l.ttl).Err(); err != nil {
			return fmt.Errorf("refresh advisory lock: %w", err)
		}
		return nil
	}
	return ErrLockNotAcquired
}

// Release drops a claim when owner still holds it; releasing a slot someone
// else locked reports ErrNotLockOwner and leaves their claim intact.
func (l *AdvisoryLocker) Release(ctx context.Context, doctorID uuid.UUID, date, start, owner string) error {
	key := advisoryKey(doctorID, date, start)

	n, err := releaseScript.Run(ctx, l.client, []string{key}, owner).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release advisory lock: %w", err)
	}
	if n == 0 {
		return ErrNotLockOwner
	}
	return nil
}

// ReleaseAll drops every claim owner holds in a doctor+date room and returns
// the slot starts that were released. Used on disconnect cleanup.
func (l *AdvisoryLocker) ReleaseAll(ctx context.Context, doctorID uuid.UUID, date, owner string) ([]string, error) {
	held, err := l.Snapshot(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}

	var released []string
	for start, holder := range held {
		if holder != owner {
			continue
		}
		if err := l.Release(ctx, doctorID, date, start, owner); err != nil {
			if errors.Is(err, ErrNotLockOwner) {
				continue // lost to expiry between scan and release
			}
			return released, err
		}
		released = append(released, start)
	}
	return released, nil
}

// ReapOrphans deletes advisory lock keys that somehow lost their TTL, so a
// crashed holder can never pin a slot forever. Returns the number reaped.
func (l *AdvisoryLocker) ReapOrphans(ctx context.Context) (int, error) {
	reaped := 0

	iter := l.client.Scan(ctx, 0, "lock:advisory:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		ttl, err := l.client.TTL(ctx, key).Result()
		if err != nil {
			return reaped, fmt.Errorf("read advisory lock ttl: %w", err)
		}
		// go-redis reports "exists, no expiry" as -1 untouched by the
		// second precision conversion.
		if ttl == time.Duration(-1) {
			if err := l.client.Del(ctx, key).Err(); err != nil {
				return reaped, fmt.Errorf("reap advisory lock: %w", err)
			}
			reaped++
		}
	}
	if err := iter.Err(); err != nil {
		return reaped, fmt.Errorf("scan advisory locks: %w", err)
	}

	return reaped, nil
}

// Snapshot lists the currently held claims in a doctor+date room as
// slot start -> owner token. Sent to clients when they join the room.
func (l *AdvisoryLocker) Snapshot(ctx context.Context, doctorID uuid.UUID, date string) (map[string]string, error) {
	prefix := strings.TrimSuffix(advisoryPattern(doctorID, date), "*")

	held := make(map[string]string)

	iter := l.client.Scan(ctx, 0, advisoryPattern(doctorID, date), 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		owner, err := l.client.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // expired mid-scan
			}
			return nil, fmt.Errorf("read advisory lock: %w", err)
		}
		held[strings.TrimPrefix(key, prefix)] = owner
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan advisory locks: %w", err)
	}

	return held, nil
}
