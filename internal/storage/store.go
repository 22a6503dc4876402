package storage

import (
	"context"
	"fmt"

	"github.com/Amitrawat12/daily-glam/internal/config"
	"github.com/Amitrawat12/daily-glam/internal/models"
)

// Store is everything the binaries need from persistence. Both the SQL and
// the Firestore backends implement it.
type Store interface {
	FirstUser(ctx context.Context) (*models.User, error)
	CreateUser(ctx context.Context, username, email string) (*models.User, error)
	UserByUsername(ctx context.Context, username string) (*models.User, error)

	GetOrCreateBrand(ctx context.Context, name string) (*models.Brand, error)
	UpsertProduct(ctx context.Context, product models.Product) (*models.Product, error)
	ProductByName(ctx context.Context, name string) (*models.Product, error)
	DeleteProduct(ctx context.Context, productID string) error
	ReplaceOffers(ctx context.Context, productID string, offers []models.Offer) error

	ActiveAlerts(ctx context.Context) ([]models.PriceAlert, error)
	DeactivateAlerts(ctx context.Context, ids []string) error
	UpsertAlert(ctx context.Context, alert models.PriceAlert) (*models.PriceAlert, error)
	DeleteAlert(ctx context.Context, userID, alertID string) error

	Close() error
}

// Open returns the backend selected by cfg.StorageDriver.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StorageDriver {
	case config.DriverSQLite, config.DriverPostgres:
		return OpenSQL(cfg.StorageDriver, cfg.DatabaseDSN)
	case config.DriverFirestore:
		return NewFirestore(ctx, cfg.ProjectID)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
