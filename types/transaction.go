package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionKind string

const (
	KindBuy  TransactionKind = "BUY"
	KindSell TransactionKind = "SELL"
)

// Provenance records where a transaction came from: a broker execution feed
// or a manual entry through the API.
type Provenance string

const (
	ProvenanceBroker Provenance = "BROKER"
	ProvenanceManual Provenance = "MANUAL"
)

// Charges is the per-transaction fee breakdown as reported by the broker.
type Charges struct {
	Brokerage     decimal.Decimal `json:"brokerage"`
	ExchangeFee   decimal.Decimal `json:"exchange_fee"`
	Tax           decimal.Decimal `json:"tax"`
	RegulatoryFee decimal.Decimal `json:"regulatory_fee"`
	StampDuty     decimal.Decimal `json:"stamp_duty"`
}

func (c Charges) Total() decimal.Decimal {
	return c.Brokerage.
		Add(c.ExchangeFee).
		Add(c.Tax).
		Add(c.RegulatoryFee).
		Add(c.StampDuty)
}

// Transaction is one executed buy or sell. GrossAmount is price times
// quantity; NetAmount is the cash that actually moved, so charges are added
// on a buy and subtracted on a sell.
type Transaction struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"user_id"`
	Symbol       string          `json:"symbol"`
	Kind         TransactionKind `json:"kind"`
	Quantity     decimal.Decimal `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Charges      Charges         `json:"charges"`
	TotalCharges decimal.Decimal `json:"total_charges"`
	GrossAmount  decimal.Decimal `json:"gross_amount"`
	NetAmount    decimal.Decimal `json:"net_amount"`
	ExecutedAt   time.Time       `json:"executed_at"`
	Provenance   Provenance      `json:"provenance"`
	OrderRef     string          `json:"order_ref,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// NewTransaction fills in the derived amounts from the raw fill details.
func NewTransaction(userID int64, symbol string, kind TransactionKind, qty, price decimal.Decimal, charges Charges, executedAt time.Time, provenance Provenance) Transaction {
	gross := price.Mul(qty)
	totalCharges := charges.Total()
	net := gross.Add(totalCharges)
	if kind == KindSell {
		net = gross.Sub(totalCharges)
	}
	return Transaction{
		UserID:       userID,
		Symbol:       symbol,
		Kind:         kind,
		Quantity:     qty,
		Price:        price,
		Charges:      charges,
		TotalCharges: totalCharges,
		GrossAmount:  gross,
		NetAmount:    net,
		ExecutedAt:   executedAt,
		Provenance:   provenance,
	}
}
