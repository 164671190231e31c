package kv

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const redisPrefix = "tokenbot:"

// Redis keeps one hash per bucket.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(addr, password string, db int) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		prefix: redisPrefix,
	}
}

// Ping checks that the server is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Load(ctx context.Context, bucket string) (map[string][]byte, error) {
	values, err := r.client.HGetAll(ctx, r.prefix+bucket).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", bucket, err)
	}

	out := make(map[string][]byte, len(values))
	for k, v := range values {
		out[k] = []byte(v)
	}
	return out, nil
}

// Save replaces the bucket hash inside MULTI/EXEC.
func (r *Redis) Save(ctx context.Context, bucket string, records map[string][]byte) error {
	key := r.prefix + bucket

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(records) == 0 {
			return nil
		}
		fields := make(map[string]interface{}, len(records))
		for k, v := range records {
			fields[k] = string(v)
		}
		pipe.HSet(ctx, key, fields)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", bucket, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
