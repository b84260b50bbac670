// Package pricefeed caches last traded prices in Redis and marks positions to
// market with them.
package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"tradedesk/types"
)

var ErrPriceUnavailable = errors.New("no cached price for symbol")

const priceTTL = 24 * time.Hour

// client is the subset of redis.Client the cache needs; tests can substitute
// their own implementation.
type client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

type Cache struct {
	rdb client
}

func New(addr, password string, db int) *Cache {
	return &Cache{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func priceKey(symbol string) string { return "price:" + symbol }

// LastPrice returns the cached last traded price for symbol.
func (c *Cache) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	raw, err := c.rdb.Get(ctx, priceKey(symbol)).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Decimal{}, ErrPriceUnavailable
	}
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("get price %s: %w", symbol, err)
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse cached price %s: %w", symbol, err)
	}
	return price, nil
}

// SetLastPrice stores the last traded price for symbol.
func (c *Cache) SetLastPrice(ctx context.Context, symbol string, price decimal.Decimal) error {
	if err := c.rdb.Set(ctx, priceKey(symbol), price.String(), priceTTL).Err(); err != nil {
		return fmt.Errorf("set price %s: %w", symbol, err)
	}
	return nil
}

// RefreshPositions fills CurrentPrice and UnrealizedPnL on each position from
// the cache. Positions whose symbol has no cached price keep CurrentPrice at
// the average buy price and zero unrealized P&L rather than failing the whole
// batch.
func (c *Cache) RefreshPositions(ctx context.Context, positions []types.Position) ([]types.Position, error) {
	out := make([]types.Position, len(positions))
	for i, pos := range positions {
		price, err := c.LastPrice(ctx, pos.Symbol)
		switch {
		case errors.Is(err, ErrPriceUnavailable):
			pos.CurrentPrice = pos.AvgBuyPrice
			pos.UnrealizedPnL = decimal.Zero
		case err != nil:
			return nil, err
		default:
			pos.CurrentPrice = price
			pos.UnrealizedPnL = price.Sub(pos.AvgBuyPrice).Mul(pos.Quantity)
		}
		out[i] = pos
	}
	return out, nil
}
