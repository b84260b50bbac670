package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"tradedesk/types"
)

const transactionColumns = `id, user_id, symbol, kind, quantity, price,
	brokerage, exchange_fee, tax, regulatory_fee, stamp_duty,
	total_charges, gross_amount, net_amount, executed_at, provenance, order_ref, created_at`

// TransactionFilter narrows ListTransactions. Zero values mean "no filter".
type TransactionFilter struct {
	Symbol string
	Kind   types.TransactionKind
	From   time.Time
	To     time.Time
}

// InsertTransaction stores txn and returns it with the generated id and
// created_at filled in.
func (d *Database) InsertTransaction(ctx context.Context, txn types.Transaction) (types.Transaction, error) {
	query := `
		INSERT INTO transactions (user_id, symbol, kind, quantity, price,
			brokerage, exchange_fee, tax, regulatory_fee, stamp_duty,
			total_charges, gross_amount, net_amount, executed_at, provenance, order_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at`

	err := d.db.QueryRow(ctx, query,
		txn.UserID, txn.Symbol, string(txn.Kind), txn.Quantity, txn.Price,
		txn.Charges.Brokerage, txn.Charges.ExchangeFee, txn.Charges.Tax,
		txn.Charges.RegulatoryFee, txn.Charges.StampDuty,
		txn.TotalCharges, txn.GrossAmount, txn.NetAmount,
		txn.ExecutedAt, string(txn.Provenance), txn.OrderRef,
	).Scan(&txn.ID, &txn.CreatedAt)
	if err != nil {
		return types.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return txn, nil
}

// GetTransaction returns one live (not soft-deleted) transaction of the user.
func (d *Database) GetTransaction(ctx context.Context, userID, id int64) (types.Transaction, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM transactions
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`, transactionColumns)

	txn, err := scanTransaction(d.db.QueryRow(ctx, query, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Transaction{}, ErrTransactionNotFound
	}
	if err != nil {
		return types.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return txn, nil
}

// ListTransactions returns the user's live transactions in execution order
// (id as tiebreak), optionally filtered.
func (d *Database) ListTransactions(ctx context.Context, userID int64, filter TransactionFilter) ([]types.Transaction, error) {
	conditions := []string{"user_id = $1", "deleted_at IS NULL"}
	args := []any{userID}

	if filter.Symbol != "" {
		args = append(args, filter.Symbol)
		conditions = append(conditions, fmt.Sprintf("symbol = $%d", len(args)))
	}
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		conditions = append(conditions, fmt.Sprintf("executed_at >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		conditions = append(conditions, fmt.Sprintf("executed_at <= $%d", len(args)))
	}

	query := fmt.Sprintf(`
		SELECT %s FROM transactions
		WHERE %s
		ORDER BY executed_at, id`, transactionColumns, strings.Join(conditions, " AND "))

	rows, err := d.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []types.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

// SoftDeleteTransaction marks the transaction deleted so list and replay skip
// it while the audit trail stays intact.
func (d *Database) SoftDeleteTransaction(ctx context.Context, userID, id int64) error {
	tag, err := d.db.Exec(ctx, `
		UPDATE transactions SET deleted_at = now()
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// LatestTransaction returns the most recent live transaction of the user for
// the symbol, by execution time with id as tiebreak.
func (d *Database) LatestTransaction(ctx context.Context, userID int64, symbol string) (types.Transaction, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM transactions
		WHERE user_id = $1 AND symbol = $2 AND deleted_at IS NULL
		ORDER BY executed_at DESC, id DESC
		LIMIT 1`, transactionColumns)

	txn, err := scanTransaction(d.db.QueryRow(ctx, query, userID, symbol))
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Transaction{}, ErrTransactionNotFound
	}
	if err != nil {
		return types.Transaction{}, fmt.Errorf("latest transaction: %w", err)
	}
	return txn, nil
}

// OrderRefExists reports whether a live transaction with the broker order
// reference is already stored. The execution feed uses it to dedupe redeliveries.
func (d *Database) OrderRefExists(ctx context.Context, orderRef string) (bool, error) {
	var exists bool
	err := d.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM transactions WHERE order_ref = $1 AND deleted_at IS NULL
		)`, orderRef).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("order ref lookup: %w", err)
	}
	return exists, nil
}

func scanTransaction(row pgx.Row) (types.Transaction, error) {
	var txn types.Transaction
	var kind, provenance string
	err := row.Scan(
		&txn.ID, &txn.UserID, &txn.Symbol, &kind, &txn.Quantity, &txn.Price,
		&txn.Charges.Brokerage, &txn.Charges.ExchangeFee, &txn.Charges.Tax,
		&txn.Charges.RegulatoryFee, &txn.Charges.StampDuty,
		&txn.TotalCharges, &txn.GrossAmount, &txn.NetAmount,
		&txn.ExecutedAt, &provenance, &txn.OrderRef, &txn.CreatedAt,
	)
	if err != nil {
		return types.Transaction{}, err
	}
	txn.Kind = types.TransactionKind(kind)
	txn.Provenance = types.Provenance(provenance)
	return txn, nil
}
