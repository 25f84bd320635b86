// Package store provides thread-safe in-memory persistence for alert
// definitions, trigger logs, and market data snapshots, with JSON file
// persistence and automatic log rotation to prevent unbounded growth.
//
// The store is designed for reliability with atomic file writes and graceful
// handling of persistence failures. State is persisted to a JSON file and
// restored on application restart.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/stokalert/stokalert/internal/models"
)

// Store provides thread-safe in-memory storage with file-based persistence.
type Store struct {
	mu         sync.RWMutex
	alerts     map[string]*models.Alert
	alertLogs  []models.AlertLog
	marketData map[string]*models.MarketData

	maxAlertLogs int
	filePath     string
	now          func() time.Time
}

// PersistenceFile represents the file structure for JSON persistence.
type PersistenceFile struct {
	Version    string                        `json:"version"`
	SavedAt    time.Time                     `json:"saved_at"`
	Alerts     map[string]*models.Alert      `json:"alerts"`
	AlertLogs  []models.AlertLog             `json:"alert_logs"`
	MarketData map[string]*models.MarketData `json:"market_data"`
}

// New creates a new Store persisting to filePath. If filePath is empty, an
// OS-appropriate tmp location is used.
func New(filePath string, maxAlertLogs int) *Store {
	if filePath == "" {
		filePath = filepath.Join(os.TempDir(), "stokalert", "data.json")
	}

	return &Store{
		alerts:       make(map[string]*models.Alert),
		alertLogs:    make([]models.AlertLog, 0),
		marketData:   make(map[string]*models.MarketData),
		maxAlertLogs: maxAlertLogs,
		filePath:     filePath,
		now:          time.Now,
	}
}

// PutAlert adds or replaces an alert definition. The symbol is normalized to
// uppercase on write.
func (s *Store) PutAlert(alert *models.Alert) error {
	if err := alert.Validate(); err != nil {
		return fmt.Errorf("invalid alert: %w", err)
	}

	cp := *alert
	cp.Symbol = models.NormalizeSymbol(cp.Symbol)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.alerts[cp.ID] = &cp
	return nil
}

// GetAlert retrieves a copy of an alert by ID.
func (s *Store) GetAlert(id string) (models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alert, exists := s.alerts[id]
	if !exists {
		return models.Alert{}, fmt.Errorf("alert not found: %s", id)
	}
	return *alert, nil
}

// DeleteAlert removes an alert definition.
func (s *Store) DeleteAlert(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.alerts[id]; !exists {
		return fmt.Errorf("alert not found: %s", id)
	}
	delete(s.alerts, id)
	return nil
}

// eligible reports whether an alert should be evaluated right now. Triggered
// alerts are excluded until reset; an alert with RepeatAfter set re-arms once
// the cool-down since its last trigger has elapsed.
func (s *Store) eligible(alert *models.Alert) bool {
	if !alert.IsActive {
		return false
	}
	if !alert.Triggered {
		return true
	}
	if alert.RepeatAfter <= 0 || alert.TriggeredAt == nil {
		return false
	}
	return s.now().Sub(*alert.TriggeredAt) >= alert.RepeatAfter
}

// GetActiveAlerts returns copies of all alerts eligible for evaluation,
// optionally filtered to the given symbols. Symbols are matched
// case-insensitively.
func (s *Store) GetActiveAlerts(symbols []string) ([]models.Alert, error) {
	var filter map[string]bool
	if len(symbols) > 0 {
		filter = make(map[string]bool, len(symbols))
		for _, sym := range symbols {
			filter[models.NormalizeSymbol(sym)] = true
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	alerts := make([]models.Alert, 0)
	for _, alert := range s.alerts {
		if !s.eligible(alert) {
			continue
		}
		if filter != nil && !filter[alert.Symbol] {
			continue
		}
		alerts = append(alerts, *alert)
	}
	return alerts, nil
}

// MarkAlertTriggered sets the triggered flag, timestamp, and the price
// observed at trigger time.
func (s *Store) MarkAlertTriggered(id string, price float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, exists := s.alerts[id]
	if !exists {
		return fmt.Errorf("alert not found: %s", id)
	}

	now := s.now()
	alert.Triggered = true
	alert.TriggeredAt = &now
	alert.TriggerPrice = price
	return nil
}

// ResetAlert clears the triggered state so the alert becomes eligible again.
func (s *Store) ResetAlert(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, exists := s.alerts[id]
	if !exists {
		return fmt.Errorf("alert not found: %s", id)
	}
	alert.Triggered = false
	alert.TriggeredAt = nil
	return nil
}

// SetAlertActive toggles the IsActive flag.
func (s *Store) SetAlertActive(id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, exists := s.alerts[id]
	if !exists {
		return fmt.Errorf("alert not found: %s", id)
	}
	alert.IsActive = active
	return nil
}

// UpdateAlertLastChecked bulk-updates the lastChecked timestamp for the given
// alert IDs. Unknown IDs are skipped silently: an alert deleted mid-run must
// not fail the bookkeeping for its siblings.
func (s *Store) UpdateAlertLastChecked(ids []string, checkedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if alert, exists := s.alerts[id]; exists {
			t := checkedAt
			alert.LastChecked = &t
		}
	}
	return nil
}

// CreateAlertLog appends an immutable trigger record, rotating out the oldest
// entries beyond the configured cap.
func (s *Store) CreateAlertLog(log *models.AlertLog) error {
	if err := log.Validate(); err != nil {
		return fmt.Errorf("invalid alert log: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.alertLogs = append(s.alertLogs, *log)
	if s.maxAlertLogs > 0 && len(s.alertLogs) > s.maxAlertLogs {
		start := len(s.alertLogs) - s.maxAlertLogs
		s.alertLogs = append([]models.AlertLog(nil), s.alertLogs[start:]...)
	}
	return nil
}

// GetAlertLogs returns copies of all trigger records for a user, newest last.
// An empty userID returns every record.
func (s *Store) GetAlertLogs(userID string) ([]models.AlertLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]models.AlertLog, 0)
	for _, log := range s.alertLogs {
		if userID == "" || log.UserID == userID {
			logs = append(logs, log)
		}
	}
	return logs, nil
}

// GetMarketData retrieves the stored snapshot for a symbol. The store may
// hold stale data; freshness is the caller's decision.
func (s *Store) GetMarketData(symbol string) (*models.MarketData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, exists := s.marketData[models.NormalizeSymbol(symbol)]
	if !exists {
		return nil, fmt.Errorf("market data not found: %s", symbol)
	}
	cp := *data
	return &cp, nil
}

// UpsertMarketData stores or overwrites the snapshot for a symbol.
func (s *Store) UpsertMarketData(data *models.MarketData) error {
	if err := data.Validate(); err != nil {
		return fmt.Errorf("invalid market data: %w", err)
	}

	cp := *data
	cp.Symbol = models.NormalizeSymbol(cp.Symbol)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.marketData[cp.Symbol] = &cp
	return nil
}

// Save persists store state to file atomically.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data := PersistenceFile{
		Version:    "1.0",
		SavedAt:    s.now(),
		Alerts:     s.alerts,
		AlertLogs:  s.alertLogs,
		MarketData: s.marketData,
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	// Write to temporary file first (atomic write)
	tempPath := s.filePath + ".tmp"
	if err := os.WriteFile(tempPath, jsonData, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	if err := os.Rename(tempPath, s.filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}

// Load restores store state from file. A missing file starts fresh.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Clean up any stale temp files from previous crashes
	tempPath := s.filePath + ".tmp"
	if _, err := os.Stat(tempPath); err == nil {
		_ = os.Remove(tempPath)
	}

	if _, err := os.Stat(s.filePath); os.IsNotExist(err) {
		return nil
	}

	jsonData, err := os.ReadFile(s.filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var data PersistenceFile
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}

	s.alerts = data.Alerts
	if s.alerts == nil {
		s.alerts = make(map[string]*models.Alert)
	}
	s.alertLogs = data.AlertLogs
	if s.alertLogs == nil {
		s.alertLogs = make([]models.AlertLog, 0)
	}
	s.marketData = data.MarketData
	if s.marketData == nil {
		s.marketData = make(map[string]*models.MarketData)
	}

	return nil
}
