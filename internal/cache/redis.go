package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/zeromonos/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotHeld is returned when a slot lock expired or now belongs to another owner.
var ErrLockNotHeld = errors.New("slot lock not held")

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

type RedisCache struct {
	client            *redis.Client
	municipalitiesTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, municipalitiesTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:            redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		municipalitiesTTL: municipalitiesTTL,
	}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// GetMunicipalities returns nil without error on a cache miss.
func (c *RedisCache) GetMunicipalities(ctx context.Context) ([]string, error) {
	data, err := c.client.Get(ctx, municipalitiesKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, err
	}
	return names, nil
}

func (c *RedisCache) SetMunicipalities(ctx context.Context, names []string) error {
	payload, err := json.Marshal(names)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, municipalitiesKey(), payload, c.municipalitiesTTL).Err()
}

// AcquireSlotLock stores a fresh owner value under the slot key. The owner is
// needed to release the lock.
func (c *RedisCache) AcquireSlotLock(ctx context.Context, municipality string, date time.Time, ttl time.Duration) (string, bool, error) {
	owner := uuid.NewString()
	ok, err := c.client.SetNX(ctx, slotLockKey(municipality, date), owner, ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return owner, true, nil
}

// ReleaseSlotLock deletes the slot key only while it still holds owner.
func (c *RedisCache) ReleaseSlotLock(ctx context.Context, municipality string, date time.Time, owner string) error {
	deleted, err := releaseScript.Run(ctx, c.client, []string{slotLockKey(municipality, date)}, owner).Int()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrLockNotHeld
	}
	return nil
}

func municipalitiesKey() string {
	return "cache:municipalities"
}

func slotLockKey(municipality string, date time.Time) string {
	return fmt.Sprintf("lock:slot:%s:%s", municipality, date.Format("2006-01-02"))
}
