package models

import "time"

// Report aggregates the outcome of one processing run: how many alerts were
// evaluated, how many fired, and every per-symbol or per-alert error collected
// along the way. A run-level failure surfaces as a single general error.
type Report struct {
	Processed int           `json:"processed"`
	Triggered int           `json:"triggered"`
	Errors    []string      `json:"errors"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// AddError appends a run error string.
func (r *Report) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}
