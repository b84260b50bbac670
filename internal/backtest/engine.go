// Package backtest replays a rule-based strategy over a historical candle
// series: at most one open position, long only, entries and exits at the
// candle close. A run is a pure function of its config and candles.
package backtest

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"tradedesk/types"
)

var ErrDataUnavailable = errors.New("no historical candles for the requested range")

// equalityEpsilon is the tolerance of the "=" operator.
const equalityEpsilon = 0.01

type Result struct {
	Trades      []types.BacktestTrade `json:"trades"`
	EquityCurve []types.EquityPoint   `json:"equity_curve"`
	Metrics     Metrics               `json:"metrics"`
}

type openPosition struct {
	entryIndex int
	entryPrice decimal.Decimal
	quantity   int64
}

// Run simulates cfg over candles. It fails fast when the series is empty;
// a run that never trades is a valid outcome with metrics at their defined
// defaults. Two runs over identical inputs produce identical results.
func Run(cfg *Config, candles []types.Candle) (*Result, error) {
	return run(cfg, candles, nil)
}

// RunWithProgress is Run with a callback invoked after every simulated
// candle, for CLI progress reporting.
func RunWithProgress(cfg *Config, candles []types.Candle, progress func()) (*Result, error) {
	return run(cfg, candles, progress)
}

func run(cfg *Config, candles []types.Candle, progress func()) (*Result, error) {
	if len(candles) == 0 {
		return nil, ErrDataUnavailable
	}

	ind := computeIndicators(candles)
	cash := cfg.InitialCash
	var open *openPosition
	var trades []types.BacktestTrade
	equity := make([]types.EquityPoint, 0, len(candles))

	for i, candle := range candles {
		if open == nil {
			if evalConditions(cfg.Entry, ind, i) {
				// Buy the most whole units current cash affords at the close.
				qty := cash.Div(candle.Close).IntPart()
				if qty > 0 {
					cost := candle.Close.Mul(decimal.NewFromInt(qty))
					cash = cash.Sub(cost)
					open = &openPosition{entryIndex: i, entryPrice: candle.Close, quantity: qty}
				}
			}
		} else if reason, fired := firstExit(cfg.Exits, open, candle.Close, i); fired {
			cash = cash.Add(candle.Close.Mul(decimal.NewFromInt(open.quantity)))
			trades = append(trades, closeTrade(open, candles, i, reason))
			open = nil
		}

		positionValue := decimal.Zero
		if open != nil {
			positionValue = candle.Close.Mul(decimal.NewFromInt(open.quantity))
		}
		equity = append(equity, types.EquityPoint{
			Date:           candle.Timestamp,
			Cash:           cash,
			PositionValue:  positionValue,
			PortfolioValue: cash.Add(positionValue),
		})
		if progress != nil {
			progress()
		}
	}

	// Anything still open is force-closed at the final candle's close.
	if open != nil {
		last := len(candles) - 1
		cash = cash.Add(candles[last].Close.Mul(decimal.NewFromInt(open.quantity)))
		trades = append(trades, closeTrade(open, candles, last, "end_of_data"))
		open = nil
	}

	return &Result{
		Trades:      trades,
		EquityCurve: equity,
		Metrics:     computeMetrics(trades, cfg.InitialCash),
	}, nil
}

func closeTrade(open *openPosition, candles []types.Candle, exitIndex int, reason string) types.BacktestTrade {
	entry := candles[open.entryIndex]
	exit := candles[exitIndex]
	qty := decimal.NewFromInt(open.quantity)
	pnl := exit.Close.Sub(open.entryPrice).Mul(qty)
	pnlPct := exit.Close.Sub(open.entryPrice).Div(open.entryPrice).Mul(decimal.NewFromInt(100))
	return types.BacktestTrade{
		EntryDate:     entry.Timestamp,
		ExitDate:      exit.Timestamp,
		EntryPrice:    open.entryPrice,
		ExitPrice:     exit.Close,
		Quantity:      open.quantity,
		PnL:           pnl,
		PnLPct:        pnlPct,
		HoldingPeriod: exitIndex - open.entryIndex,
		ExitReason:    reason,
	}
}

// evalConditions folds the condition list left to right: the first condition
// seeds the accumulator, each later one combines into it with its own
// combinator tag (AND by default). The list order changes the result; that is
// the contract, not an oversight to normalize away.
func evalConditions(conds []Condition, ind *indicatorSet, i int) bool {
	if len(conds) == 0 {
		return false
	}
	acc := evalCondition(conds[0], ind, i)
	for _, c := range conds[1:] {
		v := evalCondition(c, ind, i)
		if c.Combinator == CombinatorOr {
			acc = acc || v
		} else {
			acc = acc && v
		}
	}
	return acc
}

// evalCondition evaluates one condition at candle i. A condition whose
// indicator is still warming up is false, never an error.
func evalCondition(c Condition, ind *indicatorSet, i int) bool {
	switch c.Operator {
	case OpCrossover, OpCrossunder:
		// Cross operators are defined for the MACD-vs-signal-line
		// relationship only and need the previous candle on both sides.
		if c.Indicator != IndicatorMACD || i < 1 {
			return false
		}
		prevM, prevS := ind.macd[i-1], ind.macdSignal[i-1]
		curM, curS := ind.macd[i], ind.macdSignal[i]
		if anyNaN(prevM, prevS, curM, curS) {
			return false
		}
		if c.Operator == OpCrossover {
			return prevM <= prevS && curM > curS
		}
		return prevM >= prevS && curM < curS
	}

	v := ind.value(c.Indicator, i)
	if math.IsNaN(v) {
		return false
	}
	switch c.Operator {
	case OpLess:
		return v < c.Threshold
	case OpGreater:
		return v > c.Threshold
	case OpEqual:
		return math.Abs(v-c.Threshold) < equalityEpsilon
	default:
		return false
	}
}

// firstExit checks the exit rules in order and reports the first that fires.
func firstExit(rules []ExitRule, open *openPosition, close decimal.Decimal, i int) (string, bool) {
	changePct := close.Sub(open.entryPrice).Div(open.entryPrice).Mul(decimal.NewFromInt(100))
	for _, r := range rules {
		threshold := decimal.NewFromFloat(r.Value)
		switch r.Kind {
		case ExitProfitTarget:
			if changePct.GreaterThanOrEqual(threshold) {
				return string(ExitProfitTarget), true
			}
		case ExitStopLoss:
			if changePct.LessThanOrEqual(threshold.Neg()) {
				return string(ExitStopLoss), true
			}
		case ExitTimeBased:
			if i-open.entryIndex >= int(r.Value) {
				return string(ExitTimeBased), true
			}
		}
	}
	return "", false
}

func anyNaN(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// Validate rejects configs that could never simulate meaningfully.
func (c *Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("strategy config: symbol is required")
	}
	if !c.InitialCash.IsPositive() {
		return fmt.Errorf("strategy config: initial cash must be greater than zero")
	}
	if len(c.Entry) == 0 {
		return fmt.Errorf("strategy config: at least one entry condition is required")
	}
	return nil
}
