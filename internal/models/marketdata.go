package models

import (
	"errors"
	"strings"
	"time"
)

// Quote is the normalized per-symbol quote shape shared by every provider.
// Technical and fundamental fields are optional: a nil pointer means the
// provider did not report the field, and any condition depending on it
// evaluates to false rather than guessing a zero.
type Quote struct {
	Price         float64 `json:"price"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	Volume        float64 `json:"volume"`
	PreviousClose float64 `json:"previous_close"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`

	AvgVolume   *float64 `json:"avg_volume,omitempty"`
	SMA20       *float64 `json:"sma_20,omitempty"`
	SMA50       *float64 `json:"sma_50,omitempty"`
	SMA200      *float64 `json:"sma_200,omitempty"`
	RSI         *float64 `json:"rsi,omitempty"`
	MACD        *float64 `json:"macd,omitempty"`
	MACDSignal  *float64 `json:"macd_signal,omitempty"`
	Week52High  *float64 `json:"week_52_high,omitempty"`
	Week52Low   *float64 `json:"week_52_low,omitempty"`
	MarketCap   *float64 `json:"market_cap,omitempty"`
	PERatio     *float64 `json:"pe_ratio,omitempty"`
}

// MarketData is a point-in-time snapshot of a symbol's quote, tagged with its
// provider of origin. Overwritten by the gateway on each fetch.
type MarketData struct {
	Symbol      string    `json:"symbol"`
	Data        Quote     `json:"data"`
	LastUpdated time.Time `json:"last_updated"`
	Source      string    `json:"source"`
}

// IsFresh reports whether the snapshot is younger than the staleness window.
// A zero LastUpdated is never fresh.
func (m *MarketData) IsFresh(window time.Duration) bool {
	if m == nil || m.LastUpdated.IsZero() {
		return false
	}
	return time.Since(m.LastUpdated) < window
}

// Validate checks that all market data fields are valid.
func (m *MarketData) Validate() error {
	if strings.TrimSpace(m.Symbol) == "" {
		return errors.New("symbol must not be empty")
	}
	if m.Data.Price < 0 {
		return errors.New("price must not be negative")
	}
	if m.Data.Volume < 0 {
		return errors.New("volume must not be negative")
	}
	if m.LastUpdated.After(time.Now()) {
		return errors.New("last updated must not be in the future")
	}
	if m.Source == "" {
		return errors.New("source must not be empty")
	}
	return nil
}

// Float returns a pointer to v. Convenience for building quotes with optional
// fields set.
func Float(v float64) *float64 {
	return &v
}
