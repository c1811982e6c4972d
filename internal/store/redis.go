package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis implements Store on a redis client. All engine state lives here in
// production so multiple server instances can race on the same room safely.
type Redis struct {
	client *redis.Client
}

// OpenRedis parses a redis URL, connects and verifies the connection.
func OpenRedis(ctx context.Context, rawURL string) (*Redis, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return &Redis{client: client}, nil
}

func NewRedis(client *redis.Client) *Redis { return &Redis{client: client} }

func (r *Redis) Close() error { return r.client.Close() }

// Check reports whether redis is reachable, for health endpoints.
func (r *Redis) Check(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func (r *Redis) HSet(ctx context.Context, key string, fields map[string]string) error {
	args := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		args[k] = v
	}
	return r.client.HSet(ctx, key, args).Err()
}

func (r *Redis) HSetNX(ctx context.Context, key, field, value string) (bool, error) {
	return r.client.HSetNX(ctx, key, field, value).Result()
}

func (r *Redis) HGet(ctx context.Context, key, field string) (string, error) {
	v, err := r.client.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

func (r *Redis) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return r.client.HGetAll(ctx, key).Result()
}

func (r *Redis) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	return r.client.HIncrBy(ctx, key, field, delta).Result()
}

func (r *Redis) SAdd(ctx context.Context, key string, members ...string) (int64, error) {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return r.client.SAdd(ctx, key, args...).Result()
}

func (r *Redis) SRem(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return r.client.SRem(ctx, key, args...).Err()
}

func (r *Redis) SMembers(ctx context.Context, key string) ([]string, error) {
	return r.client.SMembers(ctx, key).Result()
}

func (r *Redis) SCard(ctx context.Context, key string) (int64, error) {
	return r.client.SCard(ctx, key).Result()
}

func (r *Redis) SIsMember(ctx context.Context, key, member string) (bool, error) {
	return r.client.SIsMember(ctx, key, member).Result()
}

func (r *Redis) ZAdd(ctx context.Context, key, member string, score float64) error {
	return r.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

func (r *Redis) ZRem(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return r.client.ZRem(ctx, key, args...).Err()
}

func (r *Redis) ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error) {
	return r.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: fmt.Sprintf("%f", min),
		Max: fmt.Sprintf("%f", max),
	}).Result()
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

func (r *Redis) Del(ctx context.Context, keys ...string) (int64, error) {
	return r.client.Del(ctx, keys...).Result()
}

func (r *Redis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.client.Expire(ctx, key, ttl).Err()
}

func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	return n > 0, err
}

func (r *Redis) LPush(ctx context.Context, key string, values ...string) error {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return r.client.LPush(ctx, key, args...).Err()
}

func (r *Redis) LTrim(ctx context.Context, key string, start, stop int64) error {
	return r.client.LTrim(ctx, key, start, stop).Err()
}

func (r *Redis) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return r.client.LRange(ctx, key, start, stop).Result()
}

func (r *Redis) Publish(ctx context.Context, channel, payload string) error {
	return r.client.Publish(ctx, channel, payload).Err()
}

func (r *Redis) Subscribe(ctx context.Context, channel string) (<-chan Message, func(), error) {
	sub := r.client.Subscribe(ctx, channel)
	// Wait for the subscription to be confirmed so no events are missed.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, nil, fmt.Errorf("subscribing to %s: %w", channel, err)
	}

	out := make(chan Message, 16)
	done := make(chan struct{})
	go func() {
		defer close(out)
		src := sub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-src:
				if !ok {
					return
				}
				select {
				case out <- Message{Channel: msg.Channel, Payload: msg.Payload}:
				default:
					// Drop if subscriber is slow.
				}
			}
		}
	}()

	cancel := func() {
		close(done)
		sub.Close()
	}
	return out, cancel, nil
}
