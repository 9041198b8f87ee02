package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const defaultKeyPrefix = "account:"

// BalanceCache implements usecase.BalanceCache using Redis. Entries expire
// after ttl; a sorted set of write times bounds the number of live entries.
type BalanceCache struct {
	client     *redis.Client
	prefix     string
	ttl        time.Duration
	maxEntries int
}

// NewBalanceCache creates a new BalanceCache. maxEntries <= 0 disables the
// size bound.
func NewBalanceCache(client *redis.Client, ttl time.Duration, maxEntries int) *BalanceCache {
	return &BalanceCache{
		client:     client,
		prefix:     defaultKeyPrefix,
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

func (c *BalanceCache) key(accountID string) string {
	return c.prefix + accountID + ":balance"
}

func (c *BalanceCache) indexKey() string {
	return c.prefix + "balance:index"
}

// Get retrieves the cached balance of an account.
func (c *BalanceCache) Get(ctx context.Context, accountID string) (decimal.Decimal, bool, error) {
	val, err := c.client.Get(ctx, c.key(accountID)).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}

	balance, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("corrupt cache entry for %s: %w", accountID, err)
	}

	return balance, true, nil
}

// Set overwrites the cached balance of an account and trims the oldest
// entries past maxEntries.
func (c *BalanceCache) Set(ctx context.Context, accountID string, balance decimal.Decimal) error {
	now := time.Now()

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, c.key(accountID), balance.String(), c.ttl)
		if c.maxEntries > 0 {
			pipe.ZAdd(ctx, c.indexKey(), redis.Z{Score: float64(now.UnixNano()), Member: accountID})
			if c.ttl > 0 {
				// Index members older than ttl point at expired keys.
				pipe.ZRemRangeByScore(ctx, c.indexKey(), "-inf", strconv.FormatInt(now.Add(-c.ttl).UnixNano(), 10))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if c.maxEntries <= 0 {
		return nil
	}

	return c.evict(ctx)
}

func (c *BalanceCache) evict(ctx context.Context) error {
	stale, err := c.client.ZRange(ctx, c.indexKey(), 0, int64(-c.maxEntries-1)).Result()
	if err != nil || len(stale) == 0 {
		return err
	}

	keys := make([]string, 0, len(stale))
	members := make([]interface{}, 0, len(stale))
	for _, id := range stale {
		keys = append(keys, c.key(id))
		members = append(members, id)
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, c.indexKey(), members...)
		return nil
	})

	return err
}
