// Package ledger folds a transaction stream into cost-basis positions.
//
// Every function here is pure: it takes an explicit position value and returns
// a new one, never touching shared state. Persistence and per-symbol write
// serialization belong to the caller; the ledger assumes at most one writer at
// a time per (user, symbol).
package ledger

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"tradedesk/types"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	ErrInvalidPrice    = errors.New("price must be greater than zero")
	ErrNoPosition      = errors.New("no open position for symbol")
	ErrNotReversible   = errors.New("transaction cannot be reversed in place, replay the history instead")
	ErrUnknownKind     = errors.New("unknown transaction kind")
)

// ApplyBuy folds one buy into pos and returns the resulting position. pos may
// be nil (first buy for the symbol). On the first buy the average price is the
// raw fill price while TotalInvested carries the charges; from the second buy
// on, the average is the charges-inclusive weighted mean TotalInvested/Quantity.
func ApplyBuy(pos *types.Position, qty, price, charges decimal.Decimal) (*types.Position, error) {
	if !qty.IsPositive() {
		return nil, ErrInvalidQuantity
	}
	if !price.IsPositive() {
		return nil, ErrInvalidPrice
	}

	cost := price.Mul(qty).Add(charges)
	if pos == nil {
		return &types.Position{
			Quantity:      qty,
			AvgBuyPrice:   price,
			TotalInvested: cost,
		}, nil
	}

	newQty := pos.Quantity.Add(qty)
	newInvested := pos.TotalInvested.Add(cost)
	next := *pos
	next.Quantity = newQty
	next.TotalInvested = newInvested
	next.AvgBuyPrice = newInvested.Div(newQty)
	return &next, nil
}

// ApplySell reduces pos by qty. The average buy price never changes on a sell;
// TotalInvested is recomputed from the unchanged average so earlier rounding
// drift is discarded. A sell that meets or exceeds the held quantity closes
// the position (nil result) rather than erroring: overselling is a policy
// choice here, and callers wanting stricter behavior must reject it upstream.
func ApplySell(pos *types.Position, qty decimal.Decimal) (*types.Position, error) {
	if pos == nil {
		return nil, ErrNoPosition
	}
	if !qty.IsPositive() {
		return nil, ErrInvalidQuantity
	}

	newQty := pos.Quantity.Sub(qty)
	if !newQty.IsPositive() {
		return nil, nil
	}
	next := *pos
	next.Quantity = newQty
	next.TotalInvested = pos.AvgBuyPrice.Mul(newQty)
	return &next, nil
}

// ApplyTransaction dispatches on kind. The returned position is nil when a
// sell closed it.
func ApplyTransaction(pos *types.Position, kind types.TransactionKind, qty, price, charges decimal.Decimal) (*types.Position, error) {
	switch kind {
	case types.KindBuy:
		return ApplyBuy(pos, qty, price, charges)
	case types.KindSell:
		return ApplySell(pos, qty)
	default:
		return nil, ErrUnknownKind
	}
}

// Apply folds one transaction record into pos.
func Apply(pos *types.Position, txn types.Transaction) (*types.Position, error) {
	return ApplyTransaction(pos, txn.Kind, txn.Quantity, txn.Price, txn.TotalCharges)
}

// Reverse undoes txn against pos by replaying its inverse. This is only
// mathematically sound when txn is the most recent transaction applied to the
// symbol: for older deletions the prior weighted average is not recoverable
// from the inverse alone and ReplayHistory must be used instead.
//
// Reversing a buy removes its quantity and cost; if that empties the position
// the result is nil. Reversing a sell restores quantity at the unchanged
// average, which requires the position to still exist (a sell that closed the
// position cannot be reversed in place).
func Reverse(pos *types.Position, txn types.Transaction) (*types.Position, error) {
	switch txn.Kind {
	case types.KindBuy:
		if pos == nil {
			return nil, ErrNoPosition
		}
		newQty := pos.Quantity.Sub(txn.Quantity)
		if !newQty.IsPositive() {
			return nil, nil
		}
		newInvested := pos.TotalInvested.Sub(txn.Price.Mul(txn.Quantity).Add(txn.TotalCharges))
		next := *pos
		next.Quantity = newQty
		next.TotalInvested = newInvested
		next.AvgBuyPrice = newInvested.Div(newQty)
		return &next, nil
	case types.KindSell:
		if pos == nil {
			return nil, ErrNotReversible
		}
		newQty := pos.Quantity.Add(txn.Quantity)
		next := *pos
		next.Quantity = newQty
		next.TotalInvested = pos.AvgBuyPrice.Mul(newQty)
		return &next, nil
	default:
		return nil, ErrUnknownKind
	}
}

// ReplayHistory rebuilds the position set of one user from scratch by folding
// the transactions in execution order (id as tiebreak). It is the correct way
// to recover state after deleting anything but the latest transaction of a
// symbol. Transactions that fail validation are skipped.
func ReplayHistory(txns []types.Transaction) map[string]*types.Position {
	ordered := append([]types.Transaction(nil), txns...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].ExecutedAt.Equal(ordered[j].ExecutedAt) {
			return ordered[i].ExecutedAt.Before(ordered[j].ExecutedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	positions := make(map[string]*types.Position)
	for _, txn := range ordered {
		next, err := Apply(positions[txn.Symbol], txn)
		if err != nil {
			continue
		}
		if next == nil {
			delete(positions, txn.Symbol)
			continue
		}
		next.UserID = txn.UserID
		next.Symbol = txn.Symbol
		positions[txn.Symbol] = next
	}
	return positions
}
