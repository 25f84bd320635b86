// Package rules evaluates alert trigger conditions against market data
// snapshots. Evaluation is pure: no side effects beyond a warning log, and a
// panic inside a condition never escapes; the alert simply does not fire.
//
// Optional quote fields (indicators, fundamentals) follow one rule
// everywhere: field absent means the condition is false, never a guess
// against zero.
package rules

import (
	"math"

	"github.com/stokalert/stokalert/internal/models"
	"github.com/stokalert/stokalert/internal/monitoring"
)

// Fixed thresholds baked into the taxonomy; deliberately not user-tunable.
const (
	// volumeDeviationPct is the spike/dip bar: volume must deviate from the
	// average by at least 20%.
	volumeDeviationPct = 20.0
	// rsiOverboughtLevel and rsiOversoldLevel are the conventional RSI bands.
	rsiOverboughtLevel = 70.0
	rsiOversoldLevel   = 30.0
	// equalTolerance bounds the "equal" operator comparison.
	equalTolerance = 0.01
)

// Compare applies an operator to an observed value and a target threshold.
// Only above, below, and equal participate; any other operator is false.
func Compare(value, target float64, op models.Operator) bool {
	switch op {
	case models.OperatorAbove:
		return value > target
	case models.OperatorBelow:
		return value < target
	case models.OperatorEqual:
		return math.Abs(value-target) < equalTolerance
	default:
		return false
	}
}

// Evaluator maps (alert, market data snapshot) to a triggered boolean.
type Evaluator struct {
	sink *monitoring.Sink
}

// New creates an evaluator reporting warnings to the given sink.
func New(sink *monitoring.Sink) *Evaluator {
	return &Evaluator{sink: sink}
}

// IsTriggered reports whether the alert's condition holds against the
// snapshot. It never panics outward: any failure inside a condition is logged
// and treated as not-triggered.
func (e *Evaluator) IsTriggered(alert models.Alert, data *models.MarketData) (triggered bool) {
	defer func() {
		if r := recover(); r != nil {
			logger := e.sink.Logger()
			logger.Warn().
				Str("alert_id", alert.ID).
				Str("alert_type", string(alert.Type)).
				Interface("panic", r).
				Msg("alert evaluation panicked, treating as not triggered")
			triggered = false
		}
	}()

	if data == nil {
		return false
	}
	return e.evaluate(alert, data.Data)
}

func (e *Evaluator) evaluate(alert models.Alert, q models.Quote) bool {
	cond := alert.Condition

	switch alert.Type {
	case models.PriceLimitUpper:
		return q.Price >= cond.Value
	case models.PriceLimitLower:
		return q.Price <= cond.Value

	case models.PriceChange1Day:
		return math.Abs(q.Price-q.Open) >= cond.Value
	case models.PriceIncreaseFromCurrent:
		return q.Price-q.PreviousClose >= cond.Value
	case models.PriceDecreaseFromCurrent:
		return q.PreviousClose-q.Price >= cond.Value

	case models.PercentChangeFromOpen:
		if q.Open == 0 {
			return false
		}
		return math.Abs((q.Price-q.Open)/q.Open)*100 >= cond.Value
	case models.PercentIncreaseFromCurrent:
		if q.PreviousClose == 0 {
			return false
		}
		return (q.Price-q.PreviousClose)/q.PreviousClose*100 >= cond.Value
	case models.PercentDecreaseFromCurrent:
		if q.PreviousClose == 0 {
			return false
		}
		return (q.PreviousClose-q.Price)/q.PreviousClose*100 >= cond.Value

	case models.VolumeSpike:
		if q.AvgVolume == nil || *q.AvgVolume <= 0 {
			return false
		}
		return (q.Volume-*q.AvgVolume) / *q.AvgVolume * 100 >= volumeDeviationPct
	case models.VolumeDip:
		if q.AvgVolume == nil || *q.AvgVolume <= 0 {
			return false
		}
		return (*q.AvgVolume-q.Volume) / *q.AvgVolume * 100 >= volumeDeviationPct
	case models.VolumeDeviationFromAverage:
		if q.AvgVolume == nil || *q.AvgVolume <= 0 {
			return false
		}
		return math.Abs((q.Volume-*q.AvgVolume) / *q.AvgVolume * 100) >= cond.Value

	case models.SMA20PriceCross:
		return smaCross(q.Price, q.SMA20, cond.Operator)
	case models.SMA50PriceCross:
		return smaCross(q.Price, q.SMA50, cond.Operator)
	case models.SMA200PriceCross:
		return smaCross(q.Price, q.SMA200, cond.Operator)

	case models.RSIOverbought:
		return q.RSI != nil && *q.RSI >= rsiOverboughtLevel
	case models.RSIOversold:
		return q.RSI != nil && *q.RSI <= rsiOversoldLevel
	case models.RSILimitTarget:
		return q.RSI != nil && Compare(*q.RSI, cond.Value, cond.Operator)

	case models.FiftyTwoWeekHigh:
		return q.Week52High != nil && q.Price >= *q.Week52High
	case models.FiftyTwoWeekLow:
		return q.Week52Low != nil && q.Price <= *q.Week52Low
	case models.PercentFrom52WeekHigh:
		if q.Week52High == nil || *q.Week52High <= 0 {
			return false
		}
		pct := (*q.Week52High - q.Price) / *q.Week52High * 100
		return Compare(pct, cond.Value, cond.Operator)
	case models.PercentFrom52WeekLow:
		if q.Week52Low == nil || *q.Week52Low <= 0 {
			return false
		}
		pct := (q.Price - *q.Week52Low) / *q.Week52Low * 100
		return Compare(pct, cond.Value, cond.Operator)

	// Crossover types compare levels, not prior-tick edges: macd above signal
	// keeps firing while the relation holds.
	case models.MACDBullishCrossover:
		return q.MACD != nil && q.MACDSignal != nil && *q.MACD > *q.MACDSignal
	case models.MACDBearishCrossover:
		return q.MACD != nil && q.MACDSignal != nil && *q.MACD < *q.MACDSignal
	case models.GoldenCross:
		return q.SMA50 != nil && q.SMA200 != nil && *q.SMA50 > *q.SMA200
	case models.DeathCross:
		return q.SMA50 != nil && q.SMA200 != nil && *q.SMA50 < *q.SMA200

	case models.MarketCapUpperLimit:
		return q.MarketCap != nil && *q.MarketCap >= cond.Value
	case models.MarketCapLowerLimit:
		return q.MarketCap != nil && *q.MarketCap <= cond.Value
	case models.PERatioUpperLimit:
		return q.PERatio != nil && *q.PERatio >= cond.Value
	case models.PERatioLowerLimit:
		return q.PERatio != nil && *q.PERatio <= cond.Value

	default:
		logger := e.sink.Logger()
		logger.Warn().
			Str("alert_id", alert.ID).
			Str("alert_type", string(alert.Type)).
			Msg("unknown alert type, treating as not triggered")
		return false
	}
}

func smaCross(price float64, sma *float64, op models.Operator) bool {
	if sma == nil {
		return false
	}
	switch op {
	case models.OperatorAbove:
		return price > *sma
	case models.OperatorBelow:
		return price < *sma
	default:
		return false
	}
}
