package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ziadkadry99/productassist/internal/advisor"
)

const redisKeyPrefix = "productassist:session:"

// RedisOptions selects the Redis server used for shared history.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore keeps each session's history in a Redis list so several
// server replicas share it. Idle sessions expire through key TTLs.
type RedisStore struct {
	rdb   *redis.Client
	limit int
	ttl   time.Duration
}

// NewRedisStore connects to Redis and verifies the connection with a PING.
func NewRedisStore(ctx context.Context, opts RedisOptions, limit int, ttl time.Duration) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{rdb: rdb, limit: limit, ttl: ttl}, nil
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

func (r *RedisStore) History(ctx context.Context, id string) ([]advisor.Exchange, error) {
	items, err := r.rdb.LRange(ctx, redisKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	out := make([]advisor.Exchange, 0, len(items))
	for _, item := range items {
		var ex advisor.Exchange
		if err := json.Unmarshal([]byte(item), &ex); err != nil {
			return nil, fmt.Errorf("decoding exchange: %w", err)
		}
		out = append(out, ex)
	}
	return out, nil
}

func (r *RedisStore) Append(ctx context.Context, id string, ex advisor.Exchange) error {
	return r.push(ctx, id, ex, false)
}

// Replace deletes the list and pushes ex inside one MULTI/EXEC.
func (r *RedisStore) Replace(ctx context.Context, id string, ex advisor.Exchange) error {
	return r.push(ctx, id, ex, true)
}

func (r *RedisStore) push(ctx context.Context, id string, ex advisor.Exchange, reset bool) error {
	if ex.At.IsZero() {
		ex.At = time.Now()
	}
	ex.Products = nonNilProducts(ex.Products)
	data, err := json.Marshal(ex)
	if err != nil {
		return fmt.Errorf("encoding exchange: %w", err)
	}
	key := redisKey(id)
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if reset {
			pipe.Del(ctx, key)
		}
		pipe.RPush(ctx, key, data)
		if r.limit > 0 {
			pipe.LTrim(ctx, key, int64(-r.limit), -1)
		}
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing exchange: %w", err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, redisKey(id)).Err(); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	return nil
}

// Check sends a PING.
func (r *RedisStore) Check(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.rdb.Close()
}
