package backtest

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Indicator names the series a condition reads. Each kind is a distinct tag;
// there is no generic indicator bag.
type Indicator string

const (
	IndicatorRSI   Indicator = "rsi"
	IndicatorMACD  Indicator = "macd"
	IndicatorSMA   Indicator = "sma"
	IndicatorEMA   Indicator = "ema"
	IndicatorPrice Indicator = "price"
)

type Operator string

const (
	OpLess       Operator = "<"
	OpGreater    Operator = ">"
	OpEqual      Operator = "=" // epsilon-tolerant, |a-b| < 0.01
	OpCrossover  Operator = "crossover"
	OpCrossunder Operator = "crossunder"
)

type Combinator string

const (
	CombinatorAnd Combinator = "AND"
	CombinatorOr  Combinator = "OR"
)

// Condition is one node of the entry rule list. The list is evaluated as a
// left-associated fold: the first condition seeds the accumulator and each
// later condition combines into it using its own Combinator tag (AND when
// empty). Order of the list is therefore significant; this is deliberately
// not a precedence-aware boolean expression.
type Condition struct {
	Indicator  Indicator  `json:"indicator" yaml:"indicator"`
	Operator   Operator   `json:"operator" yaml:"operator"`
	Threshold  float64    `json:"threshold" yaml:"threshold"`
	Combinator Combinator `json:"combinator,omitempty" yaml:"combinator,omitempty"`
}

type ExitKind string

const (
	ExitProfitTarget ExitKind = "profit_target"
	ExitStopLoss     ExitKind = "stop_loss"
	ExitTimeBased    ExitKind = "time_based"
)

// ExitRule fires on the percent change of close versus entry price
// (profit_target, stop_loss) or on candles held (time_based).
type ExitRule struct {
	Kind  ExitKind `json:"kind" yaml:"kind"`
	Value float64  `json:"value" yaml:"value"`
}

type Config struct {
	Symbol      string          `json:"symbol"`
	From        time.Time       `json:"from"`
	To          time.Time       `json:"to"`
	InitialCash decimal.Decimal `json:"initial_cash"`
	Entry       []Condition     `json:"entry"`
	Exits       []ExitRule      `json:"exits"`
}

// configFile is the yaml strategy-file shape; dates are plain YYYY-MM-DD
// strings and cash a number so files stay hand-editable.
type configFile struct {
	Symbol      string      `yaml:"symbol"`
	From        string      `yaml:"from"`
	To          string      `yaml:"to"`
	InitialCash float64     `yaml:"initial_cash"`
	Entry       []Condition `yaml:"entry"`
	Exits       []ExitRule  `yaml:"exits"`
}

// LoadConfig reads a strategy definition from a yaml file.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategy file: %w", err)
	}
	var file configFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse strategy file: %w", err)
	}

	cfg := &Config{
		Symbol:      file.Symbol,
		InitialCash: decimal.NewFromFloat(file.InitialCash),
		Entry:       file.Entry,
		Exits:       file.Exits,
	}
	if file.From != "" {
		cfg.From, err = time.Parse("2006-01-02", file.From)
		if err != nil {
			return nil, fmt.Errorf("parse from date: %w", err)
		}
	}
	if file.To != "" {
		cfg.To, err = time.Parse("2006-01-02", file.To)
		if err != nil {
			return nil, fmt.Errorf("parse to date: %w", err)
		}
	}
	return cfg, nil
}
