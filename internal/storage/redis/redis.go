package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisRepo struct {
	client *redis.Client
}

func New(ctx context.Context, addr, pass string, db int) (*RedisRepo, error) {
	const op = "storage.redis.New"

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     pass,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RedisRepo{
		client: client,
	}, nil
}

func revokedKey(tokenID string) string {
	return fmt.Sprintf("session:revoked:%s", tokenID)
}

// * Revoke marks a session token id as revoked for ttl (the token's remaining lifetime).
func (r *RedisRepo) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	const op = "storage.redis.Revoke"

	if ttl <= 0 {
		return nil
	}

	if err := r.client.Set(ctx, revokedKey(tokenID), "revoked", ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// * IsRevoked reports whether the token id is on the denylist.
func (r *RedisRepo) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	const op = "storage.redis.IsRevoked"

	n, err := r.client.Exists(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return n > 0, nil
}

// * Close releases the client pool.
func (r *RedisRepo) Close() {
	r.client.Close()
}
