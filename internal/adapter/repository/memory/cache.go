// Package memory holds process-local adapters.
package memory

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"
)

// BalanceCache implements usecase.BalanceCache in process memory. The
// least recently used entry is evicted once maxEntries is reached, and
// every entry expires ttl after its last write.
type BalanceCache struct {
	lru *expirable.LRU[string, decimal.Decimal]
}

// NewBalanceCache creates a new BalanceCache.
func NewBalanceCache(maxEntries int, ttl time.Duration) *BalanceCache {
	return &BalanceCache{
		lru: expirable.NewLRU[string, decimal.Decimal](maxEntries, nil, ttl),
	}
}

// Get retrieves the cached balance of an account.
func (c *BalanceCache) Get(_ context.Context, accountID string) (decimal.Decimal, bool, error) {
	balance, ok := c.lru.Get(accountID)
	return balance, ok, nil
}

// Set overwrites the cached balance of an account.
func (c *BalanceCache) Set(_ context.Context, accountID string, balance decimal.Decimal) error {
	c.lru.Add(accountID, balance)
	return nil
}

// Len reports the number of live entries.
func (c *BalanceCache) Len() int {
	return c.lru.Len()
}
