package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stokalert/stokalert/internal/cache"
	"github.com/stokalert/stokalert/internal/config"
	"github.com/stokalert/stokalert/internal/marketdata"
	"github.com/stokalert/stokalert/internal/models"
	"github.com/stokalert/stokalert/internal/monitoring"
	"github.com/stokalert/stokalert/internal/notify"
	"github.com/stokalert/stokalert/internal/processor"
	"github.com/stokalert/stokalert/internal/rules"
	"github.com/stokalert/stokalert/internal/store"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	sink := monitoring.New(monitoring.Config{
		Level:      cfg.Logging.Level,
		Console:    cfg.Logging.Console,
		File:       cfg.Logging.File,
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	logger := sink.Logger()
	logger.Info().Str("config", *configPath).Msg("configuration loaded")

	st := store.New(cfg.Storage.FilePath, cfg.Storage.MaxAlertLogs)
	if err := st.Load(); err != nil {
		logger.Error().Err(err).Msg("failed to restore store state, starting fresh")
	}

	gateway, err := buildGateway(cfg, sink)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize market data gateway")
	}

	dispatcher, opsChannel, err := buildDispatcher(cfg, sink)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize notification dispatcher")
	}

	dataCache := cache.New()
	evaluator := rules.New(sink)
	proc := processor.New(st, gateway, dataCache, evaluator, dispatcher, sink, processor.Config{
		StalenessWindow: cfg.Processor.StalenessWindow,
		Workers:         cfg.Processor.Workers,
	})

	// Graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info().Msg("shutdown signal received, cleaning up")
		cancel()
	}()

	dataCache.StartSweeper(ctx, cfg.Cache.SweepInterval)

	logger.Info().
		Dur("poll_interval", cfg.Processor.PollInterval).
		Dur("staleness_window", cfg.Processor.StalenessWindow).
		Int("workers", cfg.Processor.Workers).
		Msg("starting alert processing service")

	ticker := time.NewTicker(cfg.Processor.PollInterval)
	defer ticker.Stop()
	persistTicker := time.NewTicker(cfg.Storage.PersistenceInterval)
	defer persistTicker.Stop()

	consecutiveFailures := 0
	lastUsageReset := time.Now()

	notifyOps := func(subject, text string) {
		if opsChannel == nil {
			return
		}
		msg := notify.Message{Subject: subject, Text: text}
		if err := opsChannel.Send(ctx, msg, notify.Recipient{}); err != nil {
			logger.Error().Err(err).Msg("failed to send operational notification")
		}
	}

	runCycle := func() {
		report := proc.ProcessAlerts(ctx, nil)
		logger.Info().
			Int("processed", report.Processed).
			Int("triggered", report.Triggered).
			Int("errors", len(report.Errors)).
			Dur("duration", report.Duration).
			Msg("processing run completed")

		if len(report.Errors) > 0 {
			consecutiveFailures++
			for _, msg := range report.Errors {
				logger.Warn().Str("error", msg).Msg("processing run error")
			}
			if consecutiveFailures == 1 {
				notifyOps("StokAlert: processing errors",
					fmt.Sprintf("Run finished with %d error(s), first: %s", len(report.Errors), report.Errors[0]))
			}
		} else {
			if consecutiveFailures > 0 {
				logger.Info().Int("failed_runs", consecutiveFailures).Msg("processing recovered")
				notifyOps("StokAlert: processing recovered",
					fmt.Sprintf("Runs are clean again after %d failed run(s)", consecutiveFailures))
			}
			consecutiveFailures = 0
		}
	}

	// Run an initial cycle immediately
	runCycle()

	for {
		select {
		case <-ctx.Done():
			if err := st.Save(); err != nil {
				logger.Error().Err(err).Msg("failed to persist store on shutdown")
			}
			logger.Info().Msg("service stopped")
			return

		case <-persistTicker.C:
			if err := st.Save(); err != nil {
				logger.Error().Err(err).Msg("failed to persist store")
			}

		case now := <-ticker.C:
			// Reset provider quotas once per calendar day.
			if now.YearDay() != lastUsageReset.YearDay() || now.Year() != lastUsageReset.Year() {
				gateway.ResetDailyUsage()
				lastUsageReset = now
				logger.Info().Msg("daily provider usage reset")
			}

			runCycle()
			logger.Debug().
				Str("daily_spend", gateway.DailySpend().String()).
				Msg("provider spend accounted")
		}
	}
}

func buildGateway(cfg *config.Config, sink *monitoring.Sink) (*marketdata.Gateway, error) {
	var sources []marketdata.QuoteSource
	var quotas []models.DataSource

	for _, p := range cfg.Providers {
		if !p.Enabled {
			continue
		}
		switch p.Name {
		case "yahoo":
			sources = append(sources, marketdata.NewYahooSource(p.BaseURL, p.Timeout))
		case "finnhub":
			sources = append(sources, marketdata.NewFinnhubSource(p.BaseURL, p.APIKey, p.Timeout))
		case "alphavantage":
			sources = append(sources, marketdata.NewAlphaVantageSource(p.BaseURL, p.APIKey, p.Timeout))
		default:
			logger := sink.Logger()
			logger.Warn().Str("provider", p.Name).Msg("unknown provider, skipping")
			continue
		}
		quotas = append(quotas, models.DataSource{
			Name:       p.Name,
			DailyLimit: p.DailyLimit,
			Cost:       decimal.NewFromFloat(p.Cost),
			Priority:   p.Priority,
			IsActive:   true,
		})
	}

	// The fallback provider is always available, even with an empty config.
	if !hasSource(sources, marketdata.FallbackSource) {
		sources = append(sources, marketdata.NewYahooSource("https://query1.finance.yahoo.com", 10*time.Second))
	}

	return marketdata.NewGateway(sink, quotas, sources...)
}

func hasSource(sources []marketdata.QuoteSource, name string) bool {
	for _, s := range sources {
		if s.Name() == name {
			return true
		}
	}
	return false
}

// buildDispatcher assembles the notification channels. The Telegram channel,
// when enabled, doubles as the operational channel for run-failure notices.
func buildDispatcher(cfg *config.Config, sink *monitoring.Sink) (*notify.Dispatcher, notify.Channel, error) {
	channels := []notify.Channel{notify.NewPushChannel()}
	var opsChannel notify.Channel

	if cfg.Notifications.Email.Enabled {
		channels = append(channels, notify.NewEmailChannel(
			cfg.Notifications.Email.APIURL,
			cfg.Notifications.Email.APIKey,
			cfg.Notifications.Email.From,
		))
	}
	if cfg.Notifications.SMS.Enabled {
		channels = append(channels, notify.NewSMSChannel(
			cfg.Notifications.SMS.APIURL,
			cfg.Notifications.SMS.AccountSID,
			cfg.Notifications.SMS.AuthToken,
			cfg.Notifications.SMS.From,
		))
	}
	if cfg.Notifications.Telegram.Enabled {
		chatID, err := strconv.ParseInt(cfg.Notifications.Telegram.ChatID, 10, 64)
		if err != nil {
			return nil, nil, err
		}
		tg, err := notify.NewTelegramChannel(cfg.Notifications.Telegram.BotToken, chatID)
		if err != nil {
			return nil, nil, err
		}
		channels = append(channels, tg)
		opsChannel = tg
	}

	return notify.NewDispatcher(sink, channels...), opsChannel, nil
}
