package repository

import (
	"context"
	"fmt"
	"time"

	"tradedesk/types"
)

// GetCandles returns the stored candles for symbol at the given interval
// between start and end inclusive, oldest first. An empty range is
// ErrNoCandles so callers can distinguish "no data" from a query failure.
func (d *Database) GetCandles(ctx context.Context, symbol string, interval types.Interval, start, end time.Time) ([]types.Candle, error) {
	rows, err := d.db.Query(ctx, `
		SELECT symbol, interval, ts, open, high, low, close, volume
		FROM candles
		WHERE symbol = $1 AND interval = $2 AND ts BETWEEN $3 AND $4
		ORDER BY ts`, symbol, string(interval), start, end)
	if err != nil {
		return nil, fmt.Errorf("get candles: %w", err)
	}
	defer rows.Close()

	var candles []types.Candle
	for rows.Next() {
		var c types.Candle
		var iv string
		if err := rows.Scan(&c.Symbol, &iv, &c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.Interval = types.Interval(iv)
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, ErrNoCandles
	}
	return candles, nil
}

// InsertCandles bulk-writes candles, ignoring rows already present.
func (d *Database) InsertCandles(ctx context.Context, candles []types.Candle) error {
	for _, c := range candles {
		_, err := d.db.Exec(ctx, `
			INSERT INTO candles (symbol, interval, ts, open, high, low, close, volume)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (symbol, interval, ts) DO NOTHING`,
			c.Symbol, string(c.Interval), c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			return fmt.Errorf("insert candle %s %s: %w", c.Symbol, c.Timestamp, err)
		}
	}
	return nil
}
