package models

import (
	"errors"
	"time"
)

// AlertLog is an immutable record of one trigger event. Created exactly once
// per trigger and never mutated thereafter; NotificationSent reflects whether
// every requested channel delivered.
type AlertLog struct {
	ID                  string               `json:"id"`
	UserID              string               `json:"user_id"`
	AlertID             string               `json:"alert_id"`
	Symbol              string               `json:"symbol"`
	AlertType           AlertType            `json:"alert_type"`
	TriggerValue        float64              `json:"trigger_value"`
	ActualValue         float64              `json:"actual_value"`
	TriggeredAt         time.Time            `json:"triggered_at"`
	NotificationSent    bool                 `json:"notification_sent"`
	NotificationMethods []NotificationMethod `json:"notification_methods"`
}

// Validate checks that all alert log fields are valid.
func (l *AlertLog) Validate() error {
	if l.ID == "" {
		return errors.New("alert log ID must not be empty")
	}
	if l.UserID == "" {
		return errors.New("user ID must not be empty")
	}
	if l.AlertID == "" {
		return errors.New("alert ID must not be empty")
	}
	if l.Symbol == "" {
		return errors.New("symbol must not be empty")
	}
	if !l.AlertType.Known() {
		return errors.New("unknown alert type")
	}
	if l.TriggeredAt.IsZero() {
		return errors.New("triggered at must be set")
	}
	if l.TriggeredAt.After(time.Now()) {
		return errors.New("triggered at must not be in the future")
	}
	return nil
}
