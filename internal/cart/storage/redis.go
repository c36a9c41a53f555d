package storage

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart"
	carterrors "github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart/errors"
	"github.com/redis/go-redis/v9"
)

// Redis implements Storage with one string key per name. A positive ttl expires abandoned carts; every save slides
// the expiry forward with up to ten percent jitter so carts written together do not expire together.
type Redis struct {
	client redis.Cmdable
	ttl    time.Duration
}

var _ Storage = (*Redis)(nil)

// NewRedis creates a Redis-backed storage. ttl <= 0 keeps records forever.
func NewRedis(client redis.Cmdable, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Load(ctx context.Context, name string) (cart.Snapshot, error) {
	data, err := r.client.Get(ctx, name).Bytes()
	if errors.Is(err, redis.Nil) {
		return cart.Snapshot{}, carterrors.ErrRecordNotFound
	}
	if err != nil {
		return cart.Snapshot{}, fmt.Errorf("redis get failed: %w", err)
	}
	return decode(data)
}

func (r *Redis) Save(ctx context.Context, name string, snapshot cart.Snapshot) error {
	data, err := encode(snapshot)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, name, data, r.expiry()).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, name string) error {
	if err := r.client.Del(ctx, name).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *Redis) expiry() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitter := time.Duration(rand.Int64N(int64(r.ttl/10) + 1))
	return r.ttl + jitter
}
