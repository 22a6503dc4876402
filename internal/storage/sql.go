package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/Amitrawat12/daily-glam/internal/config"
	"github.com/Amitrawat12/daily-glam/internal/models"
)

// SQLStore persists the catalogue in SQLite or Postgres through gorm.
type SQLStore struct {
	db *gorm.DB
}

// OpenSQL connects with the dialector for driver and migrates the schema.
func OpenSQL(driver, dsn string) (*SQLStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case config.DriverSQLite:
		dialector = sqlite.Open(dsn)
	case config.DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported SQL driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("gorm.Open(%s): %w", driver, err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Brand{},
		&models.Product{},
		&models.Offer{},
		&models.PriceAlert{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// FirstUser returns the oldest user, the owner of scraped products.
func (s *SQLStore) FirstUser(ctx context.Context) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Order("created_at ASC").Order("id ASC").First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNoUsers
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query first user: %w", err)
	}
	return &user, nil
}

func (s *SQLStore) CreateUser(ctx context.Context, username, email string) (*models.User, error) {
	user := models.User{ID: uuid.NewString(), Username: username, Email: email}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user %s: %w", username, err)
	}
	return &user, nil
}

func (s *SQLStore) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %s: %w", username, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user %s: %w", username, err)
	}
	return &user, nil
}

func (s *SQLStore) GetOrCreateBrand(ctx context.Context, name string) (*models.Brand, error) {
	var brand models.Brand
	err := s.db.WithContext(ctx).
		Where(models.Brand{Name: name}).
		Attrs(models.Brand{ID: uuid.NewString()}).
		FirstOrCreate(&brand).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get or create brand %s: %w", name, err)
	}
	return &brand, nil
}

// UpsertProduct creates the product or overwrites the descriptive fields of
// the one with the same name, keeping its ID and offers.
func (s *SQLStore) UpsertProduct(ctx context.Context, product models.Product) (*models.Product, error) {
	var saved models.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("name = ?", product.Name).First(&saved).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			product.ID = uuid.NewString()
			product.Offers = nil
			if err := tx.Omit(clause.Associations).Create(&product).Error; err != nil {
				return err
			}
			saved = product
			return nil
		}
		if err != nil {
			return err
		}

		err = tx.Model(&saved).
			Select("brand_id", "category", "subcategory", "description", "image_url", "owner_id", "updated_at").
			Updates(models.Product{
				BrandID:     product.BrandID,
				Category:    product.Category,
				Subcategory: product.Subcategory,
				Description: product.Description,
				ImageURL:    product.ImageURL,
				OwnerID:     product.OwnerID,
				UpdatedAt:   time.Now(),
			}).Error
		if err != nil {
			return err
		}
		return tx.Where("id = ?", saved.ID).First(&saved).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert product %s: %w", product.Name, err)
	}
	return &saved, nil
}

// ProductByName returns the product with its offers, cheapest first.
func (s *SQLStore) ProductByName(ctx context.Context, name string) (*models.Product, error) {
	var product models.Product
	err := s.db.WithContext(ctx).
		Preload("Brand").
		Preload("Offers", orderOffers).
		Where("name = ?", name).
		First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("product %s: %w", name, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product %s: %w", name, err)
	}
	return &product, nil
}

// DeleteProduct removes a product together with its offers and alerts.
func (s *SQLStore) DeleteProduct(ctx context.Context, productID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", productID).Delete(&models.PriceAlert{}).Error; err != nil {
			return fmt.Errorf("failed to delete alerts of product %s: %w", productID, err)
		}
		if err := tx.Where("product_id = ?", productID).Delete(&models.Offer{}).Error; err != nil {
			return fmt.Errorf("failed to delete offers of product %s: %w", productID, err)
		}
		res := tx.Where("id = ?", productID).Delete(&models.Product{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete product %s: %w", productID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("product %s: %w", productID, models.ErrNotFound)
		}
		return nil
	})
}

// ReplaceOffers deletes every offer of productID and inserts offers in one
// transaction, so readers see either the old or the new set.
func (s *SQLStore) ReplaceOffers(ctx context.Context, productID string, offers []models.Offer) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", productID).Delete(&models.Offer{}).Error; err != nil {
			return fmt.Errorf("failed to delete offers of product %s: %w", productID, err)
		}
		if len(offers) == 0 {
			return nil
		}

		rows := make([]models.Offer, len(offers))
		for i, o := range offers {
			o.ID = uuid.NewString()
			o.ProductID = productID
			rows[i] = o
		}
		if err := tx.Omit(clause.Associations).Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to insert offers of product %s: %w", productID, err)
		}
		return nil
	})
}

// ActiveAlerts loads every active alert with its user, product and the
// product's offers ordered by price.
func (s *SQLStore) ActiveAlerts(ctx context.Context) ([]models.PriceAlert, error) {
	var alerts []models.PriceAlert
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Product").
		Preload("Product.Offers", orderOffers).
		Where("is_active = ?", true).
		Order("created_at ASC").
		Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query active alerts: %w", err)
	}
	return alerts, nil
}

// DeactivateAlerts flips every id to inactive in a single statement.
func (s *SQLStore) DeactivateAlerts(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.PriceAlert{}).
			Where("id IN ?", ids).
			Updates(map[string]any{"is_active": false, "updated_at": time.Now()}).Error
		if err != nil {
			return fmt.Errorf("failed to deactivate %d alerts: %w", len(ids), err)
		}
		return nil
	})
}

// UpsertAlert creates the (user, product) alert or resets the desired price
// and active flag of the existing one.
func (s *SQLStore) UpsertAlert(ctx context.Context, alert models.PriceAlert) (*models.PriceAlert, error) {
	var saved models.PriceAlert
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND product_id = ?", alert.UserID, alert.ProductID).First(&saved).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			alert.ID = uuid.NewString()
			if err := tx.Omit(clause.Associations).Create(&alert).Error; err != nil {
				return err
			}
			saved = alert
			return nil
		}
		if err != nil {
			return err
		}

		err = tx.Model(&saved).Updates(map[string]any{
			"desired_price": alert.DesiredPrice,
			"is_active":     alert.IsActive,
			"updated_at":    time.Now(),
		}).Error
		if err != nil {
			return err
		}
		return tx.Where("id = ?", saved.ID).First(&saved).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert alert: %w", err)
	}
	return &saved, nil
}

// DeleteAlert removes alertID only if userID owns it.
func (s *SQLStore) DeleteAlert(ctx context.Context, userID, alertID string) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", alertID, userID).
		Delete(&models.PriceAlert{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete alert %s: %w", alertID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("alert %s: %w", alertID, models.ErrNotFound)
	}
	return nil
}

func orderOffers(db *gorm.DB) *gorm.DB {
	return db.Order("price ASC").Order("scraped_at ASC")
}
