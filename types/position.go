package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the current holding of one user in one symbol. AvgBuyPrice and
// TotalInvested carry the cost basis maintained by the ledger; CurrentPrice
// and UnrealizedPnL are filled from the live price feed on read.
type Position struct {
	UserID        int64           `json:"user_id"`
	Symbol        string          `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	AvgBuyPrice   decimal.Decimal `json:"avg_buy_price"`
	TotalInvested decimal.Decimal `json:"total_invested"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
