// Package store abstracts the shared state store that all server instances
// communicate through. Game state never lives in process memory; every
// mutation is a network call against these primitives so that any instance
// can serve any request.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key or hash field does not exist.
var ErrNotFound = errors.New("not found")

// Message is a single pub/sub delivery.
type Message struct {
	Channel string
	Payload string
}

// Store is the narrow key/value contract the engine is written against.
// Individual operations are atomic; multi-step sequences are not, so callers
// that need check-then-act semantics must use the conditional forms
// (HSetNX, SAdd's added count, Del's deleted count).
type Store interface {
	// Hashes.
	HSet(ctx context.Context, key string, fields map[string]string) error
	// HSetNX sets field only if it is currently unset. Returns true if the
	// write happened.
	HSetNX(ctx context.Context, key, field, value string) (bool, error)
	HGet(ctx context.Context, key, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)

	// Sets. SAdd returns how many members were newly added.
	SAdd(ctx context.Context, key string, members ...string) (int64, error)
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)
	SIsMember(ctx context.Context, key, member string) (bool, error)

	// Sorted sets, used as a deadline index.
	ZAdd(ctx context.Context, key, member string, score float64) error
	ZRem(ctx context.Context, key string, members ...string) error
	// ZRangeByScore returns members with score in [min, max], ascending.
	ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error)

	// Plain keys. Del returns how many of the named keys existed.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) (int64, error)

	Expire(ctx context.Context, key string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)

	// Bounded lists, newest first.
	LPush(ctx context.Context, key string, values ...string) error
	LTrim(ctx context.Context, key string, start, stop int64) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// Pub/sub. Subscribe returns a receive channel and a cancel func that
	// releases the subscription.
	Publish(ctx context.Context, channel, payload string) error
	Subscribe(ctx context.Context, channel string) (<-chan Message, func(), error)
}
