package backtest

import (
	"math"

	"tradedesk/types"
)

// Indicator periods are fixed: RSI(14), MACD(12,26,9), SMA(50), EMA(20).
const (
	rsiPeriod        = 14
	macdFastPeriod   = 12
	macdSlowPeriod   = 26
	macdSignalPeriod = 9
	smaPeriod        = 50
	emaPeriod        = 20
)

// indicatorSet holds all series aligned to the candle series. Indexes inside
// an indicator's warm-up window are NaN.
type indicatorSet struct {
	closes     []float64
	rsi        []float64
	macd       []float64
	macdSignal []float64
	macdHist   []float64
	sma        []float64
	ema        []float64
}

func computeIndicators(candles []types.Candle) *indicatorSet {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close.InexactFloat64()
	}

	macd, signal, hist := macdSeries(closes, macdFastPeriod, macdSlowPeriod, macdSignalPeriod)
	return &indicatorSet{
		closes:     closes,
		rsi:        rsiSeries(closes, rsiPeriod),
		macd:       macd,
		macdSignal: signal,
		macdHist:   hist,
		sma:        smaSeries(closes, smaPeriod),
		ema:        emaSeries(closes, emaPeriod),
	}
}

// value returns the series value for kind at index i, NaN when out of range
// or still warming up.
func (s *indicatorSet) value(kind Indicator, i int) float64 {
	if i < 0 || i >= len(s.closes) {
		return math.NaN()
	}
	switch kind {
	case IndicatorRSI:
		return s.rsi[i]
	case IndicatorMACD:
		return s.macd[i]
	case IndicatorSMA:
		return s.sma[i]
	case IndicatorEMA:
		return s.ema[i]
	case IndicatorPrice:
		return s.closes[i]
	default:
		return math.NaN()
	}
}

// SMA over the last p points, NaN during warm-up.
func smaSeries(x []float64, p int) []float64 {
	out := make([]float64, len(x))
	var sum float64
	for i := range x {
		sum += x[i]
		if i < p-1 {
			out[i] = math.NaN()
			continue
		}
		if i >= p {
			sum -= x[i-p]
		}
		out[i] = sum / float64(p)
	}
	return out
}

// EMA with smoothing 2/(p+1), seeded with SMA(p); NaN until index p-1.
func emaSeries(x []float64, p int) []float64 {
	out := make([]float64, len(x))
	if len(x) < p {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	k := 2.0 / float64(p+1)
	var seed float64
	for i := 0; i < p; i++ {
		seed += x[i]
		if i < p-1 {
			out[i] = math.NaN()
		}
	}
	out[p-1] = seed / float64(p)
	for i := p; i < len(x); i++ {
		out[i] = (x[i]-out[i-1])*k + out[i-1]
	}
	return out
}

// Wilder RSI: the first value appears at index p (p price changes needed),
// everything before is NaN. All-gain windows read 100, all-loss windows 0.
func rsiSeries(x []float64, p int) []float64 {
	out := make([]float64, len(x))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(x) <= p {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= p; i++ {
		delta := x[i] - x[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(p)
	avgLoss /= float64(p)
	out[p] = rsiValue(avgGain, avgLoss)

	for i := p + 1; i < len(x); i++ {
		delta := x[i] - x[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(p-1) + gain) / float64(p)
		avgLoss = (avgLoss*float64(p-1) + loss) / float64(p)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACD line is EMA(fast)-EMA(slow); the signal line is an EMA of the MACD
// line over its defined region, so it stays NaN until slow+signal-2.
func macdSeries(x []float64, fast, slow, signal int) (macd, signalLine, hist []float64) {
	n := len(x)
	macd = make([]float64, n)
	signalLine = make([]float64, n)
	hist = make([]float64, n)

	emaFast := emaSeries(x, fast)
	emaSlow := emaSeries(x, slow)
	for i := 0; i < n; i++ {
		macd[i] = emaFast[i] - emaSlow[i] // NaN while either leg warms up
		signalLine[i] = math.NaN()
		hist[i] = math.NaN()
	}

	if n < slow {
		return macd, signalLine, hist
	}
	valid := emaSeries(macd[slow-1:], signal)
	for i, v := range valid {
		signalLine[slow-1+i] = v
		hist[slow-1+i] = macd[slow-1+i] - v
	}
	return macd, signalLine, hist
}
