package processor

import (
	"context"

	"github.com/Amitrawat12/daily-glam/internal/models"
)

// OfferStore abstracts the storage the scrape job writes to.
type OfferStore interface {
	// FirstUser returns the oldest user or models.ErrNoUsers.
	FirstUser(ctx context.Context) (*models.User, error)
	GetOrCreateBrand(ctx context.Context, name string) (*models.Brand, error)
	// UpsertProduct creates the product or updates the one with the same Name.
	UpsertProduct(ctx context.Context, product models.Product) (*models.Product, error)
	// ReplaceOffers atomically swaps every offer of productID for offers.
	ReplaceOffers(ctx context.Context, productID string, offers []models.Offer) error
}

// AlertStore abstracts the storage the alert job reads and updates.
type AlertStore interface {
	// ActiveAlerts returns active alerts with User and Product.Offers loaded,
	// offers ordered by price ascending.
	ActiveAlerts(ctx context.Context) ([]models.PriceAlert, error)
	DeactivateAlerts(ctx context.Context, ids []string) error
	UpsertAlert(ctx context.Context, alert models.PriceAlert) (*models.PriceAlert, error)
	// DeleteAlert removes alertID when it belongs to userID, else models.ErrNotFound.
	DeleteAlert(ctx context.Context, userID, alertID string) error
}

// Mailer delivers one email. A nil error means the message was accepted for delivery.
type Mailer interface {
	Send(ctx context.Context, msg models.EmailMessage) error
}

// OpsNotifier posts a short run summary to an operator channel.
type OpsNotifier interface {
	SendSummary(ctx context.Context, title string, lines []string) error
}

// Locker guards the offers tables so scrape and alert runs never overlap.
// TryLock returns models.ErrRunInProgress when the key is already held.
type Locker interface {
	TryLock(ctx context.Context, key string) (unlock func(context.Context) error, err error)
}

// offersLockKey is the single lock shared by scrape and alert runs.
const offersLockKey = "pricewatch:offers"
