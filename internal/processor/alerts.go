package processor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Amitrawat12/daily-glam/internal/models"
	"github.com/Amitrawat12/daily-glam/internal/validator"
)

const alertSubject = "Price Alert! Your product is now available at a lower price!"

// AlertReport counts what one alert pass did.
type AlertReport struct {
	Checked  int
	Fired    int
	NoOffers int
	Failed   int
}

type AlertProcessor struct {
	store          AlertStore
	mailer         Mailer
	locker         Locker
	ops            OpsNotifier
	validator      *validator.Validator
	currencySymbol string
}

// NewAlertProcessor wires the alert pass. ops may be nil.
func NewAlertProcessor(store AlertStore, mailer Mailer, locker Locker, ops OpsNotifier, currencySymbol string) *AlertProcessor {
	return &AlertProcessor{
		store:          store,
		mailer:         mailer,
		locker:         locker,
		ops:            ops,
		validator:      validator.New(),
		currencySymbol: currencySymbol,
	}
}

// CheckAlerts emails every user whose alert threshold is met by the product's
// cheapest offer and deactivates exactly those alerts whose email was sent.
// A failed send leaves the alert active for the next run.
func (p *AlertProcessor) CheckAlerts(ctx context.Context) (AlertReport, error) {
	var report AlertReport

	unlock, err := p.locker.TryLock(ctx, offersLockKey)
	if err != nil {
		return report, fmt.Errorf("failed to acquire offers lock: %w", err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("Failed to release offers lock", "error", err)
		}
	}()

	alerts, err := p.store.ActiveAlerts(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to load active alerts: %w", err)
	}
	slog.Info("Checking price alerts", "count", len(alerts))

	var firedIDs []string
	var summary []string
	var scanErr error

	for _, alert := range alerts {
		if err := ctx.Err(); err != nil {
			scanErr = fmt.Errorf("alert scan cancelled: %w", err)
			break
		}
		report.Checked++

		offer, ok := models.CheapestOffer(alert.Product.Offers)
		if !ok {
			report.NoOffers++
			continue
		}
		if offer.Price.GreaterThan(alert.DesiredPrice) {
			continue
		}

		msg := p.buildAlertEmail(alert, offer.Price)
		if err := p.validator.ValidateStruct(msg); err != nil {
			slog.Warn("Cannot email alert owner", "alert_id", alert.ID, "user", alert.User.Username, "error", err)
			report.Failed++
			continue
		}
		if err := p.mailer.Send(ctx, msg); err != nil {
			slog.Error("Failed to send price alert", "alert_id", alert.ID, "product", alert.Product.Name, "error", err)
			report.Failed++
			continue
		}

		slog.Info("Price alert sent", "alert_id", alert.ID, "user", alert.User.Username, "product", alert.Product.Name, "price", offer.Price.StringFixed(2))
		firedIDs = append(firedIDs, alert.ID)
		summary = append(summary, fmt.Sprintf("%s: %s%s (wanted %s%s) for %s",
			alert.Product.Name, p.currencySymbol, offer.Price.StringFixed(2),
			p.currencySymbol, alert.DesiredPrice.StringFixed(2), alert.User.Username))
	}

	// Emails already went out, so their deactivation must land even if the scan was cancelled.
	if len(firedIDs) > 0 {
		if err := p.store.DeactivateAlerts(context.WithoutCancel(ctx), firedIDs); err != nil {
			return report, fmt.Errorf("failed to deactivate %d sent alerts: %w", len(firedIDs), err)
		}
	}
	report.Fired = len(firedIDs)

	if p.ops != nil && len(summary) > 0 {
		title := fmt.Sprintf("%d price alert(s) fired", len(summary))
		if err := p.ops.SendSummary(context.WithoutCancel(ctx), title, summary); err != nil {
			slog.Warn("Failed to post ops summary", "error", err)
		}
	}

	slog.Info("Finished alert check",
		"checked", report.Checked,
		"fired", report.Fired,
		"no_offers", report.NoOffers,
		"failed", report.Failed,
	)
	return report, scanErr
}

func (p *AlertProcessor) buildAlertEmail(alert models.PriceAlert, price decimal.Decimal) models.EmailMessage {
	return models.EmailMessage{
		To:      alert.User.Email,
		Subject: alertSubject,
		Body: fmt.Sprintf("Hi %s,\n\nThe price for %s has dropped to %s%s!",
			alert.User.Username, alert.Product.Name, p.currencySymbol, price.StringFixed(2)),
	}
}

// SetAlert creates the user's alert for productID or resets the existing one
// to desired and makes it active again.
func (p *AlertProcessor) SetAlert(ctx context.Context, userID, productID string, desired decimal.Decimal) (*models.PriceAlert, error) {
	if err := p.validator.ValidateVar(strings.TrimSpace(userID), "required"); err != nil {
		return nil, fmt.Errorf("user id: %w", err)
	}
	if err := p.validator.ValidateVar(strings.TrimSpace(productID), "required"); err != nil {
		return nil, fmt.Errorf("product id: %w", err)
	}
	desired = desired.Round(2)
	if !desired.IsPositive() {
		return nil, fmt.Errorf("desired price %s: %w", desired.String(), models.ErrInvalidPrice)
	}

	alert, err := p.store.UpsertAlert(ctx, models.PriceAlert{
		UserID:       userID,
		ProductID:    productID,
		DesiredPrice: desired,
		IsActive:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save alert: %w", err)
	}
	slog.Info("Price alert set", "alert_id", alert.ID, "product_id", productID, "desired", desired.StringFixed(2))
	return alert, nil
}

// RemoveAlert deletes alertID if userID owns it.
func (p *AlertProcessor) RemoveAlert(ctx context.Context, userID, alertID string) error {
	if err := p.store.DeleteAlert(ctx, userID, alertID); err != nil {
		return fmt.Errorf("failed to remove alert %s: %w", alertID, err)
	}
	slog.Info("Price alert removed", "alert_id", alertID)
	return nil
}
