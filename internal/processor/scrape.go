package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Amitrawat12/daily-glam/internal/models"
	"github.com/Amitrawat12/daily-glam/internal/scraper"
	"github.com/Amitrawat12/daily-glam/internal/util"
	"github.com/Amitrawat12/daily-glam/internal/validator"
)

const defaultCategory = "default"

// ScrapeReport counts what one scrape run did.
type ScrapeReport struct {
	Products        int
	ProductsSkipped int
	ProductsFailed  int
	OffersSaved     int
	URLsFailed      int
}

type ScrapeProcessor struct {
	store       OfferStore
	source      scraper.PriceSource
	locker      Locker
	validator   *validator.Validator
	concurrency int
	now         func() time.Time
}

// NewScrapeProcessor wires a scrape run. concurrency bounds the parallel
// fetches of one product's URLs.
func NewScrapeProcessor(store OfferStore, source scraper.PriceSource, locker Locker, concurrency int) *ScrapeProcessor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ScrapeProcessor{
		store:       store,
		source:      source,
		locker:      locker,
		validator:   validator.New(),
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Run scrapes every record and replaces each product's offers with the prices
// read in this run. Only a missing seed user, a held lock or cancellation
// abort the run; everything else is logged and skipped.
func (p *ScrapeProcessor) Run(ctx context.Context, records []models.ProductTarget) (ScrapeReport, error) {
	var report ScrapeReport

	owner, err := p.store.FirstUser(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to resolve seed user: %w", err)
	}

	unlock, err := p.locker.TryLock(ctx, offersLockKey)
	if err != nil {
		return report, fmt.Errorf("failed to acquire offers lock: %w", err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("Failed to release offers lock", "error", err)
		}
	}()

	slog.Info("Starting scrape", "products", len(records), "owner", owner.Username)

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("scrape cancelled: %w", err)
		}

		if err := p.validator.ValidateStruct(record); err != nil {
			slog.Warn("Skipping invalid product record", "product", record.Name, "error", err)
			report.ProductsSkipped++
			continue
		}

		saved, failed, err := p.processProduct(ctx, owner, record)
		report.URLsFailed += failed
		if err != nil {
			// Don't fail the whole batch, just log.
			slog.Error("Failed to persist product", "product", record.Name, "error", err)
			report.ProductsFailed++
			continue
		}
		report.Products++
		report.OffersSaved += saved
	}

	slog.Info("Finished scrape",
		"products", report.Products,
		"offers", report.OffersSaved,
		"skipped", report.ProductsSkipped,
		"failed_products", report.ProductsFailed,
		"failed_urls", report.URLsFailed,
	)
	return report, nil
}

func (p *ScrapeProcessor) processProduct(ctx context.Context, owner *models.User, record models.ProductTarget) (saved, failed int, err error) {
	brand, err := p.store.GetOrCreateBrand(ctx, strings.TrimSpace(record.Brand))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to resolve brand %q: %w", record.Brand, err)
	}

	image := record.Image
	if err := p.validator.ValidateVar(image, "omitempty,url"); err != nil {
		slog.Warn("Dropping invalid product image", "product", record.Name, "image", image, "error", err)
		image = ""
	}

	category := strings.TrimSpace(record.Category)
	if category == "" {
		category = defaultCategory
	}

	product, err := p.store.UpsertProduct(ctx, models.Product{
		Name:        strings.TrimSpace(record.Name),
		BrandID:     brand.ID,
		Category:    category,
		Subcategory: record.Subcategory,
		Description: record.Description,
		ImageURL:    image,
		OwnerID:     owner.ID,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to upsert product: %w", err)
	}

	offers, failed := p.fetchOffers(ctx, product, brand, image, record.URLs)

	// A cancelled run must not wipe offers it never got to re-read.
	if err := ctx.Err(); err != nil {
		return 0, failed, fmt.Errorf("offers not replaced: %w", err)
	}

	if err := p.store.ReplaceOffers(ctx, product.ID, offers); err != nil {
		return 0, failed, fmt.Errorf("failed to replace offers: %w", err)
	}
	slog.Info("Saved offers", "product", product.Name, "offers", len(offers), "failed_urls", failed)
	return len(offers), failed, nil
}

// fetchOffers reads every target in parallel. Results keep input order;
// invalid targets and failed URLs are logged and left out.
func (p *ScrapeProcessor) fetchOffers(ctx context.Context, product *models.Product, brand *models.Brand, image string, targets []models.SiteTarget) ([]models.Offer, int) {
	results := make([]*models.Offer, len(targets))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, target := range targets {
		if err := p.validator.ValidateStruct(target); err != nil {
			slog.Warn("Skipping invalid URL target", "product", product.Name, "site", target.Site, "url", target.URL, "error", err)
			continue
		}
		g.Go(func() error {
			quote, err := p.source.FetchPrice(ctx, target)
			if err != nil {
				logFetchError(product.Name, target, err)
				return nil
			}
			results[i] = &models.Offer{
				ProductID:     product.ID,
				SiteProductID: siteProductID(target.Site, product.ID),
				Site:          target.Site,
				Name:          product.Name,
				BrandName:     brand.Name,
				ImageURL:      image,
				Price:         quote.Price,
				URL:           util.NormalizeOfferURL(target.URL),
				Rating:        quote.Rating,
				Review:        quote.Review,
				ScrapedAt:     p.now().UTC(),
			}
			return nil
		})
	}
	_ = g.Wait()

	offers := make([]models.Offer, 0, len(results))
	for _, o := range results {
		if o != nil {
			offers = append(offers, *o)
		}
	}
	return offers, len(targets) - len(offers)
}

func siteProductID(site, productID string) string {
	return strings.ToLower(site) + "_" + productID
}

// logFetchError picks the level by failure kind: network and HTTP errors are
// errors, markup and parse misses are warnings.
func logFetchError(product string, target models.SiteTarget, err error) {
	attrs := []any{"product", product, "site", target.Site, "url", target.URL, "error", err}
	switch {
	case errors.Is(err, scraper.ErrSelectorNotFound), errors.Is(err, util.ErrNoPrice):
		slog.Warn("Could not read price", attrs...)
	default:
		slog.Error("Failed to fetch listing", attrs...)
	}
}
