package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Username  string    `gorm:"uniqueIndex;not null" validate:"required"`
	Email     string    `gorm:"not null" validate:"required,email"`
	CreatedAt time.Time `gorm:"index"`
}

type Brand struct {
	ID   string `gorm:"primaryKey;size:36"`
	Name string `gorm:"uniqueIndex;not null"`
}

// Product is the aggregate record the scrape job upserts by Name.
type Product struct {
	ID          string `gorm:"primaryKey;size:36"`
	Name        string `gorm:"uniqueIndex;not null"`
	BrandID     string `gorm:"size:36"`
	Brand       Brand
	Category    string
	Subcategory string
	Description string
	ImageURL    string
	OwnerID     string  `gorm:"size:36"`
	Offers      []Offer `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Offer is one site's listing of a product. Price is always positive once persisted.
type Offer struct {
	ID            string `gorm:"primaryKey;size:36"`
	ProductID     string `gorm:"index;not null;size:36"`
	SiteProductID string `gorm:"index"`
	Site          string `gorm:"not null"`
	Name          string
	BrandName     string
	ImageURL      string
	Price         decimal.Decimal     `gorm:"type:decimal(10,2);not null"`
	URL           string              `gorm:"not null"`
	Rating        decimal.NullDecimal `gorm:"type:decimal(3,2)"`
	Review        string
	ScrapedAt     time.Time
}

// PriceAlert is a user's standing request to be told when a product's
// cheapest offer reaches DesiredPrice. One alert per (user, product).
type PriceAlert struct {
	ID           string          `gorm:"primaryKey;size:36"`
	UserID       string          `gorm:"uniqueIndex:idx_alert_user_product;not null;size:36"`
	User         User            `gorm:"constraint:OnDelete:CASCADE"`
	ProductID    string          `gorm:"uniqueIndex:idx_alert_user_product;not null;size:36"`
	Product      Product         `gorm:"constraint:OnDelete:CASCADE"`
	DesiredPrice decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	IsActive     bool            `gorm:"index;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CheapestOffer returns the lowest priced offer. On ties the earliest offer wins.
func CheapestOffer(offers []Offer) (Offer, bool) {
	if len(offers) == 0 {
		return Offer{}, false
	}
	best := offers[0]
	for _, o := range offers[1:] {
		if o.Price.LessThan(best.Price) {
			best = o
		}
	}
	return best, true
}
