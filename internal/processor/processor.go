// Package processor orchestrates one alert-evaluation run: it loads active
// alerts, groups them by symbol so each distinct ticker costs one data fetch,
// drives the cache and gateway, evaluates every alert against its group's
// snapshot, and hands triggered alerts to the notification dispatcher.
//
// Failure is contained at three levels: a failed fetch skips one symbol
// group, a failed alert skips one alert, and a panic anywhere aborts the
// remainder of the run with a single general error instead of crashing the
// caller.
package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stokalert/stokalert/internal/cache"
	"github.com/stokalert/stokalert/internal/models"
	"github.com/stokalert/stokalert/internal/monitoring"
	"github.com/stokalert/stokalert/internal/notify"
	"github.com/stokalert/stokalert/internal/rules"
)

// AlertStore is the persistence surface the processor depends on.
type AlertStore interface {
	GetActiveAlerts(symbols []string) ([]models.Alert, error)
	MarkAlertTriggered(id string, price float64) error
	UpdateAlertLastChecked(ids []string, checkedAt time.Time) error
	CreateAlertLog(log *models.AlertLog) error
	GetMarketData(symbol string) (*models.MarketData, error)
	UpsertMarketData(data *models.MarketData) error
}

// QuoteGateway fetches a fresh normalized quote for a symbol.
type QuoteGateway interface {
	GetQuote(ctx context.Context, symbol string) (*models.MarketData, error)
}

// Dispatcher fans triggered-alert notifications out to channels.
type Dispatcher interface {
	SendNotifications(ctx context.Context, alert models.Alert, log models.AlertLog, userEmail, userPhone string) notify.Result
}

// ContactLookup resolves a user's delivery addresses. Missing contact data is
// an empty string; the affected channel reports it as a send error.
type ContactLookup func(userID string) (email, phone string)

// Config holds processor tuning.
type Config struct {
	// StalenessWindow bounds how old a snapshot may be before it is refetched.
	StalenessWindow time.Duration
	// Workers bounds how many symbol groups are processed concurrently.
	// 1 means strictly sequential.
	Workers int
	// Contacts resolves notification recipients; nil resolves to nobody.
	Contacts ContactLookup
}

// Processor is the pipeline spine.
type Processor struct {
	store      AlertStore
	gateway    QuoteGateway
	cache      *cache.Cache
	evaluator  *rules.Evaluator
	dispatcher Dispatcher
	sink       *monitoring.Sink

	staleness time.Duration
	workers   int
	contacts  ContactLookup
	now       func() time.Time
}

// New creates a processor. All collaborators are injected explicitly; there
// is no hidden shared state.
func New(store AlertStore, gateway QuoteGateway, c *cache.Cache, evaluator *rules.Evaluator, dispatcher Dispatcher, sink *monitoring.Sink, cfg Config) *Processor {
	staleness := cfg.StalenessWindow
	if staleness <= 0 {
		staleness = cache.TTLQuote
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	contacts := cfg.Contacts
	if contacts == nil {
		contacts = func(string) (string, string) { return "", "" }
	}

	return &Processor{
		store:      store,
		gateway:    gateway,
		cache:      c,
		evaluator:  evaluator,
		dispatcher: dispatcher,
		sink:       sink,
		staleness:  staleness,
		workers:    workers,
		contacts:   contacts,
		now:        time.Now,
	}
}

// groupResult carries one symbol group's contribution to the run report.
type groupResult struct {
	processed int
	triggered int
	errors    []string
}

// ProcessAlerts runs one evaluation pass over all active alerts, optionally
// restricted to the given symbols. It never panics: a run-level failure
// surfaces as a single general error in the report.
func (p *Processor) ProcessAlerts(ctx context.Context, symbols []string) models.Report {
	report := models.Report{StartedAt: p.now(), Errors: []string{}}

	err := monitoring.Timed(p.sink, "processor", "process_alerts", func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("processing run panicked: %v", r)
			}
		}()
		return p.run(ctx, symbols, &report)
	})
	if err != nil {
		p.sink.LogError("processor", "process_alerts", "", err)
		report.AddError(fmt.Sprintf("general: %v", err))
	}

	report.Duration = p.now().Sub(report.StartedAt)
	return report
}

func (p *Processor) run(ctx context.Context, symbols []string, report *models.Report) error {
	alerts, err := p.store.GetActiveAlerts(symbols)
	if err != nil {
		return fmt.Errorf("load active alerts: %w", err)
	}
	if len(alerts) == 0 {
		return nil
	}

	groups := groupBySymbol(alerts)
	logger := p.sink.Logger()
	logger.Debug().
		Int("alerts", len(alerts)).
		Int("symbol_groups", len(groups)).
		Msg("processing run started")

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, p.workers)
	)

	for symbol, group := range groups {
		wg.Add(1)
		sem <- struct{}{}
		go func(symbol string, group []models.Alert) {
			defer wg.Done()
			defer func() { <-sem }()

			res := p.processGroup(ctx, symbol, group)

			mu.Lock()
			report.Processed += res.processed
			report.Triggered += res.triggered
			report.Errors = append(report.Errors, res.errors...)
			mu.Unlock()
		}(symbol, group)
	}
	wg.Wait()

	return nil
}

// groupBySymbol maps uppercased symbols to their alerts, bounding data
// fetches to one per distinct ticker per run.
func groupBySymbol(alerts []models.Alert) map[string][]models.Alert {
	groups := make(map[string][]models.Alert)
	for _, alert := range alerts {
		symbol := models.NormalizeSymbol(alert.Symbol)
		groups[symbol] = append(groups[symbol], alert)
	}
	return groups
}

// processGroup evaluates all alerts watching one symbol against a single
// snapshot. A fetch failure skips the whole group; no alert is evaluated
// without data.
func (p *Processor) processGroup(ctx context.Context, symbol string, group []models.Alert) groupResult {
	var res groupResult

	data, err := p.snapshot(ctx, symbol)
	if err != nil {
		res.errors = append(res.errors, fmt.Sprintf("%s: market data unavailable: %v", symbol, err))
		return res
	}

	for _, alert := range group {
		triggered, alertErr := p.processAlert(ctx, alert, data)
		if alertErr != nil {
			res.errors = append(res.errors, fmt.Sprintf("%s (%s): %v", alert.ID, symbol, alertErr))
		} else if triggered {
			res.triggered++
		}
		res.processed++
	}

	ids := make([]string, len(group))
	for i, alert := range group {
		ids[i] = alert.ID
	}
	if err := p.store.UpdateAlertLastChecked(ids, p.now()); err != nil {
		p.sink.LogError("processor", "update_last_checked", symbol, err)
		res.errors = append(res.errors, fmt.Sprintf("%s: update last checked: %v", symbol, err))
	}

	return res
}

// snapshot returns market data for symbol via get-or-refetch: the in-memory
// cache first, then the store if still fresh, then the gateway. Every alert
// in a group sees the same snapshot.
func (p *Processor) snapshot(ctx context.Context, symbol string) (*models.MarketData, error) {
	value, err := p.cache.GetOrSet("quote:"+symbol, func() (interface{}, error) {
		if stored, err := p.store.GetMarketData(symbol); err == nil && stored.IsFresh(p.staleness) {
			return stored, nil
		}

		data, err := p.gateway.GetQuote(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if err := p.store.UpsertMarketData(data); err != nil {
			// Persisting the snapshot is bookkeeping; evaluation proceeds on
			// the fetched data either way.
			p.sink.LogError("processor", "upsert_market_data", symbol, err)
		}
		return data, nil
	}, p.staleness)
	if err != nil {
		return nil, err
	}

	data, ok := value.(*models.MarketData)
	if !ok {
		return nil, fmt.Errorf("unexpected cache entry for %s", symbol)
	}
	return data, nil
}

// processAlert evaluates one alert against the group snapshot and handles a
// trigger. Any panic is contained here so one bad alert cannot abort its
// siblings.
func (p *Processor) processAlert(ctx context.Context, alert models.Alert, data *models.MarketData) (triggered bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			triggered = false
			err = fmt.Errorf("alert processing panicked: %v", r)
		}
	}()

	if !p.evaluator.IsTriggered(alert, data) {
		return false, nil
	}
	if err := p.handleTrigger(ctx, alert, data); err != nil {
		return false, err
	}
	return true, nil
}

// handleTrigger marks the alert, dispatches notifications, and writes the
// immutable trigger log. The log is written even when notification delivery
// fails, with NotificationSent reflecting the outcome; a store failure before
// the mark loses this trigger for the run (at-most-once).
func (p *Processor) handleTrigger(ctx context.Context, alert models.Alert, data *models.MarketData) error {
	price := data.Data.Price

	if err := p.store.MarkAlertTriggered(alert.ID, price); err != nil {
		return fmt.Errorf("mark triggered: %w", err)
	}

	log := models.AlertLog{
		ID:                  uuid.New().String(),
		UserID:              alert.UserID,
		AlertID:             alert.ID,
		Symbol:              models.NormalizeSymbol(alert.Symbol),
		AlertType:           alert.Type,
		TriggerValue:        alert.Condition.Value,
		ActualValue:         price,
		TriggeredAt:         p.now(),
		NotificationMethods: alert.NotificationMethods,
	}

	email, phone := p.contacts(alert.UserID)
	result := p.dispatcher.SendNotifications(ctx, alert, log, email, phone)
	log.NotificationSent = result.Success
	if !result.Success {
		logger := p.sink.Logger()
		logger.Warn().
			Str("alert_id", alert.ID).
			Strs("channel_errors", result.Errors).
			Msg("notification delivery incomplete")
	}

	if err := p.store.CreateAlertLog(&log); err != nil {
		return fmt.Errorf("write alert log: %w", err)
	}
	return nil
}
