package models

import (
	"errors"

	"github.com/shopspring/decimal"
)

// DataSource holds per-provider quota state used for source selection.
// CurrentUsage counts calls made since the last daily reset; Cost is the
// per-call spend in USD used for accounting. Lower Priority is preferred.
type DataSource struct {
	Name         string          `json:"name"`
	DailyLimit   int             `json:"daily_limit"`
	CurrentUsage int             `json:"current_usage"`
	Cost         decimal.Decimal `json:"cost"`
	Priority     int             `json:"priority"`
	IsActive     bool            `json:"is_active"`
}

// Validate checks that all data source fields are valid.
func (s *DataSource) Validate() error {
	if s.Name == "" {
		return errors.New("source name must not be empty")
	}
	if s.DailyLimit < 0 {
		return errors.New("daily limit must not be negative")
	}
	if s.CurrentUsage < 0 {
		return errors.New("current usage must not be negative")
	}
	if s.Cost.IsNegative() {
		return errors.New("cost must not be negative")
	}
	return nil
}
