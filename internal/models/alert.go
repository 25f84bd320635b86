// Package models defines the core domain entities for the StokAlert pipeline.
// These models represent user alerts, normalized market data snapshots, trigger
// logs, and data-source quota state. All models include built-in validation to
// ensure data integrity throughout the application.
//
// Terminology:
//   - Alert: a user-defined rule watching one symbol for one condition.
//   - Symbol group: the set of alerts sharing a ticker, batched for one fetch.
//   - AlertLog: immutable record of a single trigger event.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// AlertType identifies one of the supported trigger-condition variants.
type AlertType string

// Price conditions.
const (
	PriceLimitUpper            AlertType = "price_limit_upper"
	PriceLimitLower            AlertType = "price_limit_lower"
	PriceChange1Day            AlertType = "price_change_1day"
	PriceIncreaseFromCurrent   AlertType = "price_increase_from_current"
	PriceDecreaseFromCurrent   AlertType = "price_decrease_from_current"
	PercentChangeFromOpen      AlertType = "percent_change_from_open"
	PercentIncreaseFromCurrent AlertType = "percent_increase_from_current"
	PercentDecreaseFromCurrent AlertType = "percent_decrease_from_current"
	FiftyTwoWeekHigh           AlertType = "fifty_two_week_high"
	FiftyTwoWeekLow            AlertType = "fifty_two_week_low"
	PercentFrom52WeekHigh      AlertType = "percent_from_52_week_high"
	PercentFrom52WeekLow       AlertType = "percent_from_52_week_low"
)

// Volume conditions.
const (
	VolumeSpike                AlertType = "volume_spike"
	VolumeDip                  AlertType = "volume_dip"
	VolumeDeviationFromAverage AlertType = "volume_deviation_from_average"
)

// Technical-indicator conditions.
const (
	SMA20PriceCross      AlertType = "sma_20_price_cross"
	SMA50PriceCross      AlertType = "sma_50_price_cross"
	SMA200PriceCross     AlertType = "sma_200_price_cross"
	RSIOverbought        AlertType = "rsi_overbought"
	RSIOversold          AlertType = "rsi_oversold"
	RSILimitTarget       AlertType = "rsi_limit_target"
	MACDBullishCrossover AlertType = "macd_bullish_crossover"
	MACDBearishCrossover AlertType = "macd_bearish_crossover"
	GoldenCross          AlertType = "golden_cross"
	DeathCross           AlertType = "death_cross"
)

// Fundamental conditions.
const (
	MarketCapUpperLimit AlertType = "market_cap_upper_limit"
	MarketCapLowerLimit AlertType = "market_cap_lower_limit"
	PERatioUpperLimit   AlertType = "pe_ratio_upper_limit"
	PERatioLowerLimit   AlertType = "pe_ratio_lower_limit"
)

// Category groups alert types for reporting and UI filtering.
type Category string

const (
	CategoryPrice       Category = "price"
	CategoryVolume      Category = "volume"
	CategoryTechnical   Category = "technical"
	CategoryFundamental Category = "fundamental"
	CategoryEarnings    Category = "earnings"
)

var alertCategories = map[AlertType]Category{
	PriceLimitUpper:            CategoryPrice,
	PriceLimitLower:            CategoryPrice,
	PriceChange1Day:            CategoryPrice,
	PriceIncreaseFromCurrent:   CategoryPrice,
	PriceDecreaseFromCurrent:   CategoryPrice,
	PercentChangeFromOpen:      CategoryPrice,
	PercentIncreaseFromCurrent: CategoryPrice,
	PercentDecreaseFromCurrent: CategoryPrice,
	FiftyTwoWeekHigh:           CategoryPrice,
	FiftyTwoWeekLow:            CategoryPrice,
	PercentFrom52WeekHigh:      CategoryPrice,
	PercentFrom52WeekLow:       CategoryPrice,
	VolumeSpike:                CategoryVolume,
	VolumeDip:                  CategoryVolume,
	VolumeDeviationFromAverage: CategoryVolume,
	SMA20PriceCross:            CategoryTechnical,
	SMA50PriceCross:            CategoryTechnical,
	SMA200PriceCross:           CategoryTechnical,
	RSIOverbought:              CategoryTechnical,
	RSIOversold:                CategoryTechnical,
	RSILimitTarget:             CategoryTechnical,
	MACDBullishCrossover:       CategoryTechnical,
	MACDBearishCrossover:       CategoryTechnical,
	GoldenCross:                CategoryTechnical,
	DeathCross:                 CategoryTechnical,
	MarketCapUpperLimit:        CategoryFundamental,
	MarketCapLowerLimit:        CategoryFundamental,
	PERatioUpperLimit:          CategoryFundamental,
	PERatioLowerLimit:          CategoryFundamental,
}

// Known reports whether t is a supported alert type.
func (t AlertType) Known() bool {
	_, ok := alertCategories[t]
	return ok
}

// Category returns the category of the alert type, or an empty Category for
// unknown types.
func (t AlertType) Category() Category {
	return alertCategories[t]
}

// Operator compares an observed value against the configured threshold.
type Operator string

const (
	OperatorAbove    Operator = "above"
	OperatorBelow    Operator = "below"
	OperatorEqual    Operator = "equal"
	OperatorIncrease Operator = "increase"
	OperatorDecrease Operator = "decrease"
)

func (o Operator) known() bool {
	switch o {
	case OperatorAbove, OperatorBelow, OperatorEqual, OperatorIncrease, OperatorDecrease:
		return true
	}
	return false
}

// Reference names an optional baseline for a trigger condition.
type Reference string

const (
	ReferenceCurrentPrice  Reference = "current_price"
	ReferencePreviousClose Reference = "previous_close"
	ReferenceWeek52High    Reference = "week_52_high"
	ReferenceWeek52Low     Reference = "week_52_low"
)

// TriggerCondition holds the threshold, operator, and optional baseline that
// fire an alert when matched against live data.
type TriggerCondition struct {
	Operator  Operator  `json:"operator"`
	Value     float64   `json:"value"`
	Reference Reference `json:"reference,omitempty"`
}

// NotificationMethod selects a delivery channel for a triggered alert.
type NotificationMethod string

const (
	MethodEmail    NotificationMethod = "email"
	MethodSMS      NotificationMethod = "sms"
	MethodPush     NotificationMethod = "push"
	MethodTelegram NotificationMethod = "telegram"
)

func (m NotificationMethod) known() bool {
	switch m {
	case MethodEmail, MethodSMS, MethodPush, MethodTelegram:
		return true
	}
	return false
}

// Alert is a user-owned rule watching one symbol for one condition.
//
// Once Triggered is set the alert is excluded from active selection until it is
// explicitly reset, unless RepeatAfter is positive, in which case it re-arms
// after the cool-down elapses.
type Alert struct {
	ID                  string               `json:"id"`
	UserID              string               `json:"user_id"`
	Symbol              string               `json:"symbol"`
	Type                AlertType            `json:"alert_type"`
	Condition           TriggerCondition     `json:"trigger_condition"`
	NotificationMethods []NotificationMethod `json:"notification_methods"`
	IsActive            bool                 `json:"is_active"`
	Triggered           bool                 `json:"triggered"`
	TriggeredAt         *time.Time           `json:"triggered_at,omitempty"`
	TriggerPrice        float64              `json:"trigger_price,omitempty"`
	LastChecked         *time.Time           `json:"last_checked,omitempty"`
	RepeatAfter         time.Duration        `json:"repeat_after,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
}

// NormalizeSymbol uppercases and trims a ticker. Applied at every read/write
// boundary so grouping and store lookups never miss on case.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Validate checks that all alert fields are valid.
func (a *Alert) Validate() error {
	if a.ID == "" {
		return errors.New("alert ID must not be empty")
	}
	if a.UserID == "" {
		return errors.New("user ID must not be empty")
	}
	if strings.TrimSpace(a.Symbol) == "" {
		return errors.New("symbol must not be empty")
	}
	if !a.Type.Known() {
		return fmt.Errorf("unknown alert type: %s", a.Type)
	}
	if !a.Condition.Operator.known() {
		return fmt.Errorf("unknown operator: %s", a.Condition.Operator)
	}
	if len(a.NotificationMethods) == 0 {
		return errors.New("at least one notification method is required")
	}
	for _, m := range a.NotificationMethods {
		if !m.known() {
			return fmt.Errorf("unknown notification method: %s", m)
		}
	}
	if a.RepeatAfter < 0 {
		return errors.New("repeat after must not be negative")
	}
	if a.Triggered && a.TriggeredAt == nil {
		return errors.New("triggered alert must carry a triggered at timestamp")
	}
	return nil
}
