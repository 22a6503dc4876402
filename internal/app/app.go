// Package app builds the processors and their dependencies from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Amitrawat12/daily-glam/internal/config"
	"github.com/Amitrawat12/daily-glam/internal/lock"
	"github.com/Amitrawat12/daily-glam/internal/notifier"
	"github.com/Amitrawat12/daily-glam/internal/processor"
	"github.com/Amitrawat12/daily-glam/internal/rabbitmq"
	"github.com/Amitrawat12/daily-glam/internal/scraper"
	"github.com/Amitrawat12/daily-glam/internal/storage"
)

type App struct {
	Config  *config.Config
	Store   storage.Store
	Scrape  *processor.ScrapeProcessor
	Alerts  *processor.AlertProcessor
	closers []func() error
}

// New opens every backend named by cfg. On error, whatever was already
// opened is closed again.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.StorageDriver, err)
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	locker, err := a.newLocker(ctx)
	if err != nil {
		return nil, err
	}

	source := a.newPriceSource()

	mailer, err := a.newMailer()
	if err != nil {
		return nil, err
	}

	var ops processor.OpsNotifier
	if cfg.DiscordWebhookURL != "" {
		ops = notifier.NewDiscord(cfg.DiscordWebhookURL)
	}

	a.Scrape = processor.NewScrapeProcessor(store, source, locker, cfg.Fetch.Concurrency)
	a.Alerts = processor.NewAlertProcessor(store, mailer, locker, ops, cfg.CurrencySymbol)
	return a, nil
}

func (a *App) newLocker(ctx context.Context) (processor.Locker, error) {
	if a.Config.Redis.Addr == "" {
		slog.Debug("REDIS_ADDR not set, using in-process run lock")
		return lock.NewLocal(), nil
	}
	l, err := lock.NewRedis(ctx, a.Config.Redis.Addr, a.Config.Redis.DB, a.Config.Redis.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}
	a.closers = append(a.closers, l.Close)
	return l, nil
}

func (a *App) newPriceSource() scraper.PriceSource {
	fetch := a.Config.Fetch
	httpSource := scraper.NewHTTPSource(scraper.HTTPOptions{
		Timeout:        fetch.Timeout,
		MaxHeaderBytes: fetch.MaxHeaderBytes,
		UserAgent:      fetch.UserAgent,
		RatePerSecond:  fetch.RatePerSecond,
	})

	var browser scraper.PriceSource
	if fetch.BrowserEnabled {
		b := scraper.NewBrowserSource(scraper.BrowserOptions{
			UserAgent: fetch.UserAgent,
			ExecPath:  fetch.ChromePath,
		})
		a.closers = append(a.closers, func() error {
			b.Close()
			return nil
		})
		browser = b
	}

	registry := scraper.NewRegistry(httpSource, browser)
	if browser != nil {
		// Hosts that only serve prices after client-side rendering.
		for _, host := range fetch.BrowserHosts {
			registry.Register(strings.ToLower(strings.TrimSpace(host)), browser)
		}
	}
	return registry
}

func (a *App) newMailer() (processor.Mailer, error) {
	if a.Config.Mail.Transport != config.TransportAMQP {
		return notifier.NewSMTPMailer(a.Config.Mail), nil
	}
	client, err := rabbitmq.New(a.Config.AMQP.URL, a.Config.AMQP.Queue)
	if err != nil {
		return nil, fmt.Errorf("failed to connect rabbitmq: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	return notifier.NewQueueMailer(rabbitmq.NewProducer(client.Channel, a.Config.AMQP.Queue)), nil
}

// Close releases resources in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
