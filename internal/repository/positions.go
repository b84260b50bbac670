package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"tradedesk/types"
)

// GetPosition returns the stored position for (user, symbol) or ErrNoPosition.
func (d *Database) GetPosition(ctx context.Context, userID int64, symbol string) (types.Position, error) {
	var pos types.Position
	err := d.db.QueryRow(ctx, `
		SELECT user_id, symbol, quantity, avg_buy_price, total_invested, updated_at
		FROM positions
		WHERE user_id = $1 AND symbol = $2`, userID, symbol).
		Scan(&pos.UserID, &pos.Symbol, &pos.Quantity, &pos.AvgBuyPrice, &pos.TotalInvested, &pos.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Position{}, ErrNoPosition
	}
	if err != nil {
		return types.Position{}, fmt.Errorf("get position: %w", err)
	}
	return pos, nil
}

// ListPositions returns all open positions of the user ordered by symbol.
func (d *Database) ListPositions(ctx context.Context, userID int64) ([]types.Position, error) {
	rows, err := d.db.Query(ctx, `
		SELECT user_id, symbol, quantity, avg_buy_price, total_invested, updated_at
		FROM positions
		WHERE user_id = $1
		ORDER BY symbol`, userID)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	var positions []types.Position
	for rows.Next() {
		var pos types.Position
		if err := rows.Scan(&pos.UserID, &pos.Symbol, &pos.Quantity, &pos.AvgBuyPrice, &pos.TotalInvested, &pos.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}

// UpsertPosition writes the ledger's view of (user, symbol) back to storage.
func (d *Database) UpsertPosition(ctx context.Context, pos types.Position) error {
	_, err := d.db.Exec(ctx, `
		INSERT INTO positions (user_id, symbol, quantity, avg_buy_price, total_invested, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (user_id, symbol) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			avg_buy_price = EXCLUDED.avg_buy_price,
			total_invested = EXCLUDED.total_invested,
			updated_at = now()`,
		pos.UserID, pos.Symbol, pos.Quantity, pos.AvgBuyPrice, pos.TotalInvested)
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}
	return nil
}

// DeletePosition removes a closed position. Deleting a row that is already
// gone is not an error.
func (d *Database) DeletePosition(ctx context.Context, userID int64, symbol string) error {
	_, err := d.db.Exec(ctx, `
		DELETE FROM positions WHERE user_id = $1 AND symbol = $2`, userID, symbol)
	if err != nil {
		return fmt.Errorf("delete position: %w", err)
	}
	return nil
}

// ReplacePositions swaps the user's whole position set in one transaction.
// Used after a history replay, where every symbol may have changed.
func (d *Database) ReplacePositions(ctx context.Context, userID int64, positions map[string]*types.Position) error {
	if d.pool == nil {
		return errors.New("replace positions requires a pool-backed database")
	}
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace positions: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM positions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear positions: %w", err)
	}
	for symbol, pos := range positions {
		_, err := tx.Exec(ctx, `
			INSERT INTO positions (user_id, symbol, quantity, avg_buy_price, total_invested, updated_at)
			VALUES ($1, $2, $3, $4, $5, now())`,
			userID, symbol, pos.Quantity, pos.AvgBuyPrice, pos.TotalInvested)
		if err != nil {
			return fmt.Errorf("insert position %s: %w", symbol, err)
		}
	}
	return tx.Commit(ctx)
}
