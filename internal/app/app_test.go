package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Amitrawat12/daily-glam/internal/config"
	"github.com/Amitrawat12/daily-glam/internal/models"
	"github.com/Amitrawat12/daily-glam/internal/scraper"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		StorageDriver:  config.DriverSQLite,
		DatabaseDSN:    filepath.Join(t.TempDir(), "app.db") + "?_foreign_keys=on",
		CurrencySymbol: "₹",
		Fetch: config.Fetch{
			Concurrency:   2,
			RatePerSecond: 10,
		},
		Mail: config.Mail{Transport: config.TransportSMTP},
	}
}

func TestNew_LocalStack(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if a.Store == nil || a.Scrape == nil || a.Alerts == nil {
		t.Fatal("New() left components unset")
	}

	// Scrape without users aborts before touching the network.
	_, err = a.Scrape.Run(context.Background(), []models.ProductTarget{{
		Name: "x", Brand: "y",
		URLs: []models.SiteTarget{{URL: "https://example.test", Site: "Test", PriceSelector: ".p"}},
	}})
	if !errors.Is(err, models.ErrNoUsers) {
		t.Errorf("Run() error = %v, want ErrNoUsers", err)
	}

	report, err := a.Alerts.CheckAlerts(context.Background())
	if err != nil || report.Checked != 0 {
		t.Errorf("CheckAlerts() on empty store = %+v, %v", report, err)
	}
}

func TestNew_BadStorageDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.StorageDriver = "cassandra"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Error("New() should fail for an unknown storage driver")
	}
}

func TestNew_UnreachableRedisClosesStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Redis.Addr = "127.0.0.1:1"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Error("New() should fail when Redis is unreachable")
	}
}

func TestNewPriceSource_BrowserHosts(t *testing.T) {
	cfg := testConfig(t)
	cfg.Fetch.BrowserEnabled = true
	cfg.Fetch.BrowserHosts = []string{" WWW.Myntra.com "}
	a := &App{Config: cfg}
	defer a.Close()

	registry, ok := a.newPriceSource().(*scraper.Registry)
	if !ok {
		t.Fatal("newPriceSource() did not return a registry")
	}

	tests := []struct {
		target      models.SiteTarget
		wantBrowser bool
	}{
		{target: models.SiteTarget{URL: "https://www.myntra.com/p/1"}, wantBrowser: true},
		{target: models.SiteTarget{URL: "https://www.nykaa.com/p/1", Render: true}, wantBrowser: true},
		{target: models.SiteTarget{URL: "https://www.nykaa.com/p/1"}, wantBrowser: false},
	}
	for _, tt := range tests {
		_, isBrowser := registry.SourceFor(tt.target).(*scraper.BrowserSource)
		if isBrowser != tt.wantBrowser {
			t.Errorf("SourceFor(%s, render=%v) browser = %v, want %v", tt.target.URL, tt.target.Render, isBrowser, tt.wantBrowser)
		}
	}
}
