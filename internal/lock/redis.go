package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Amitrawat12/daily-glam/internal/models"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another run is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a lock shared by every instance that talks to the same Redis.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(ctx context.Context, address string, db int, ttl time.Duration) (*Redis, error) {
	const op = "lock.NewRedis"

	rdb := redis.NewClient(&redis.Options{
		Addr: address,
		DB:   db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Redis{client: rdb, ttl: ttl}, nil
}

// TryLock sets key with a random token and the lock TTL. The TTL bounds how
// long a crashed run can block the next one.
func (r *Redis) TryLock(ctx context.Context, key string) (func(context.Context) error, error) {
	const op = "lock.Redis.TryLock"

	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return nil, models.ErrRunInProgress
	}

	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("lock.Redis.unlock: %w", err)
		}
		return nil
	}, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
