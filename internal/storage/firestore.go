package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Amitrawat12/daily-glam/internal/models"
)

const (
	usersCollection    = "users"
	brandsCollection   = "brands"
	productsCollection = "products"
	offersCollection   = "offers"
	alertsCollection   = "alerts"
)

// FirestoreStore keeps the catalogue in Cloud Firestore. Offers live in a
// subcollection of their product; decimals are stored as strings.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestore(ctx context.Context, projectID string) (*FirestoreStore, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	return &FirestoreStore{client: client}, nil
}

func (c *FirestoreStore) Close() error {
	return c.client.Close()
}

type userDoc struct {
	Username  string    `firestore:"username"`
	Email     string    `firestore:"email"`
	CreatedAt time.Time `firestore:"createdAt"`
}

type brandDoc struct {
	Name string `firestore:"name"`
}

type productDoc struct {
	Name        string    `firestore:"name"`
	BrandID     string    `firestore:"brandId"`
	Category    string    `firestore:"category"`
	Subcategory string    `firestore:"subcategory"`
	Description string    `firestore:"description"`
	ImageURL    string    `firestore:"imageUrl"`
	OwnerID     string    `firestore:"ownerId"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

type offerDoc struct {
	SiteProductID string    `firestore:"siteProductId"`
	Site          string    `firestore:"site"`
	Name          string    `firestore:"name"`
	BrandName     string    `firestore:"brandName"`
	ImageURL      string    `firestore:"imageUrl"`
	Price         string    `firestore:"price"`
	URL           string    `firestore:"url"`
	Rating        *string   `firestore:"rating"`
	Review        string    `firestore:"review"`
	ScrapedAt     time.Time `firestore:"scrapedAt"`
}

type alertDoc struct {
	UserID       string    `firestore:"userId"`
	ProductID    string    `firestore:"productId"`
	DesiredPrice string    `firestore:"desiredPrice"`
	IsActive     bool      `firestore:"isActive"`
	CreatedAt    time.Time `firestore:"createdAt"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

// docID derives a stable document ID from natural key parts, so unique
// names map to one document without a separate index.
func docID(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(hash[:])
}

func (c *FirestoreStore) FirstUser(ctx context.Context) (*models.User, error) {
	iter := c.client.Collection(usersCollection).OrderBy("createdAt", firestore.Asc).Limit(1).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return nil, models.ErrNoUsers
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query first user: %w", err)
	}
	return decodeUser(doc)
}

// CreateUser stores the user under a username-derived ID; Create fails if
// the username is taken.
func (c *FirestoreStore) CreateUser(ctx context.Context, username, email string) (*models.User, error) {
	id := docID("user", username)
	data := userDoc{Username: username, Email: email, CreatedAt: time.Now().UTC()}
	if _, err := c.client.Collection(usersCollection).Doc(id).Create(ctx, data); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return nil, fmt.Errorf("username %s already exists", username)
		}
		return nil, fmt.Errorf("failed to create user %s: %w", username, err)
	}
	return &models.User{ID: id, Username: username, Email: email, CreatedAt: data.CreatedAt}, nil
}

func (c *FirestoreStore) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	doc, err := c.client.Collection(usersCollection).Doc(docID("user", username)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("user %s: %w", username, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", username, err)
	}
	return decodeUser(doc)
}

func (c *FirestoreStore) GetOrCreateBrand(ctx context.Context, name string) (*models.Brand, error) {
	id := docID("brand", name)
	_, err := c.client.Collection(brandsCollection).Doc(id).Create(ctx, brandDoc{Name: name})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return nil, fmt.Errorf("failed to create brand %s: %w", name, err)
	}
	return &models.Brand{ID: id, Name: name}, nil
}

func (c *FirestoreStore) UpsertProduct(ctx context.Context, product models.Product) (*models.Product, error) {
	id := docID("product", product.Name)
	ref := c.client.Collection(productsCollection).Doc(id)
	now := time.Now().UTC()

	err := c.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return tx.Create(ref, productDoc{
				Name:        product.Name,
				BrandID:     product.BrandID,
				Category:    product.Category,
				Subcategory: product.Subcategory,
				Description: product.Description,
				ImageURL:    product.ImageURL,
				OwnerID:     product.OwnerID,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
		}
		if err != nil {
			return err
		}
		product.CreatedAt, _ = snap.Data()["createdAt"].(time.Time)
		return tx.Update(ref, []firestore.Update{
			{Path: "brandId", Value: product.BrandID},
			{Path: "category", Value: product.Category},
			{Path: "subcategory", Value: product.Subcategory},
			{Path: "description", Value: product.Description},
			{Path: "imageUrl", Value: product.ImageURL},
			{Path: "ownerId", Value: product.OwnerID},
			{Path: "updatedAt", Value: now},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert product %s: %w", product.Name, err)
	}

	product.ID = id
	product.Offers = nil
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	return &product, nil
}

func (c *FirestoreStore) ProductByName(ctx context.Context, name string) (*models.Product, error) {
	product, err := c.productByID(ctx, docID("product", name))
	if err != nil {
		return nil, fmt.Errorf("product %s: %w", name, err)
	}
	return product, nil
}

func (c *FirestoreStore) productByID(ctx context.Context, id string) (*models.Product, error) {
	ref := c.client.Collection(productsCollection).Doc(id)
	snap, err := ref.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product %s: %w", id, err)
	}

	var data productDoc
	if err := snap.DataTo(&data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal product data: %w", err)
	}
	product := data.toModel(id)

	offers, err := c.offersOf(ctx, ref)
	if err != nil {
		return nil, err
	}
	product.Offers = offers
	return &product, nil
}

func (c *FirestoreStore) offersOf(ctx context.Context, productRef *firestore.DocumentRef) ([]models.Offer, error) {
	docs, err := productRef.Collection(offersCollection).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list offers of %s: %w", productRef.ID, err)
	}
	offers := make([]models.Offer, 0, len(docs))
	for _, doc := range docs {
		var data offerDoc
		if err := doc.DataTo(&data); err != nil {
			slog.Warn("Skipping undecodable offer", "id", doc.Ref.ID, "error", err)
			continue
		}
		o, err := data.toModel(doc.Ref.ID, productRef.ID)
		if err != nil {
			slog.Warn("Skipping offer with bad price", "id", doc.Ref.ID, "error", err)
			continue
		}
		offers = append(offers, o)
	}
	sortOffers(offers)
	return offers, nil
}

// DeleteProduct removes the product, its offers and every alert on it in one transaction.
func (c *FirestoreStore) DeleteProduct(ctx context.Context, productID string) error {
	ref := c.client.Collection(productsCollection).Doc(productID)
	return c.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("product %s: %w", productID, models.ErrNotFound)
			}
			return err
		}
		offers, err := tx.Documents(ref.Collection(offersCollection)).GetAll()
		if err != nil {
			return fmt.Errorf("failed to list offers: %w", err)
		}
		alerts, err := tx.Documents(c.client.Collection(alertsCollection).Where("productId", "==", productID)).GetAll()
		if err != nil {
			return fmt.Errorf("failed to list alerts: %w", err)
		}
		for _, doc := range append(offers, alerts...) {
			if err := tx.Delete(doc.Ref); err != nil {
				return err
			}
		}
		return tx.Delete(ref)
	})
}

// ReplaceOffers swaps the offers subcollection in one transaction.
func (c *FirestoreStore) ReplaceOffers(ctx context.Context, productID string, offers []models.Offer) error {
	offersRef := c.client.Collection(productsCollection).Doc(productID).Collection(offersCollection)
	err := c.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, err := tx.Documents(offersRef).GetAll()
		if err != nil {
			return err
		}
		for _, doc := range existing {
			if err := tx.Delete(doc.Ref); err != nil {
				return err
			}
		}
		for _, o := range offers {
			if err := tx.Create(offersRef.Doc(uuid.NewString()), newOfferDoc(o)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace offers of product %s: %w", productID, err)
	}
	return nil
}

func (c *FirestoreStore) ActiveAlerts(ctx context.Context) ([]models.PriceAlert, error) {
	iter := c.client.Collection(alertsCollection).Where("isActive", "==", true).Documents(ctx)
	defer iter.Stop()

	users := make(map[string]*models.User)
	products := make(map[string]*models.Product)
	var alerts []models.PriceAlert

	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate active alerts: %w", err)
		}

		var data alertDoc
		if err := doc.DataTo(&data); err != nil {
			slog.Warn("Skipping undecodable alert", "alert_id", doc.Ref.ID, "error", err)
			continue
		}
		alert, err := data.toModel(doc.Ref.ID)
		if err != nil {
			slog.Warn("Skipping alert with bad desired price", "alert_id", doc.Ref.ID, "error", err)
			continue
		}

		user, ok := users[data.UserID]
		if !ok {
			user, err = c.userByID(ctx, data.UserID)
			if err != nil {
				return nil, err
			}
			users[data.UserID] = user
		}
		product, ok := products[data.ProductID]
		if !ok {
			product, err = c.productByID(ctx, data.ProductID)
			if err != nil && !errors.Is(err, models.ErrNotFound) {
				return nil, err
			}
			products[data.ProductID] = product
		}
		if user == nil || product == nil {
			slog.Warn("Skipping orphaned alert", "alert_id", doc.Ref.ID)
			continue
		}

		alert.User = *user
		alert.Product = *product
		alerts = append(alerts, alert)
	}

	sort.SliceStable(alerts, func(i, j int) bool { return alerts[i].CreatedAt.Before(alerts[j].CreatedAt) })
	return alerts, nil
}

func (c *FirestoreStore) userByID(ctx context.Context, id string) (*models.User, error) {
	doc, err := c.client.Collection(usersCollection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return decodeUser(doc)
}

// DeactivateAlerts marks every id inactive in one transaction.
func (c *FirestoreStore) DeactivateAlerts(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now().UTC()
	err := c.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for _, id := range ids {
			ref := c.client.Collection(alertsCollection).Doc(id)
			err := tx.Update(ref, []firestore.Update{
				{Path: "isActive", Value: false},
				{Path: "updatedAt", Value: now},
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to deactivate %d alerts: %w", len(ids), err)
	}
	return nil
}

// UpsertAlert keys the alert document on (user, product), which makes the pair unique.
func (c *FirestoreStore) UpsertAlert(ctx context.Context, alert models.PriceAlert) (*models.PriceAlert, error) {
	id := docID("alert", alert.UserID, alert.ProductID)
	ref := c.client.Collection(alertsCollection).Doc(id)
	now := time.Now().UTC()

	err := c.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			alert.CreatedAt = now
			return tx.Create(ref, alertDoc{
				UserID:       alert.UserID,
				ProductID:    alert.ProductID,
				DesiredPrice: alert.DesiredPrice.StringFixed(2),
				IsActive:     alert.IsActive,
				CreatedAt:    now,
				UpdatedAt:    now,
			})
		}
		if err != nil {
			return err
		}
		alert.CreatedAt, _ = snap.Data()["createdAt"].(time.Time)
		return tx.Update(ref, []firestore.Update{
			{Path: "desiredPrice", Value: alert.DesiredPrice.StringFixed(2)},
			{Path: "isActive", Value: alert.IsActive},
			{Path: "updatedAt", Value: now},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert alert: %w", err)
	}

	alert.ID = id
	alert.UpdatedAt = now
	return &alert, nil
}

func (c *FirestoreStore) DeleteAlert(ctx context.Context, userID, alertID string) error {
	ref := c.client.Collection(alertsCollection).Doc(alertID)
	return c.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("alert %s: %w", alertID, models.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if owner, _ := snap.Data()["userId"].(string); owner != userID {
			return fmt.Errorf("alert %s: %w", alertID, models.ErrNotFound)
		}
		return tx.Delete(ref)
	})
}

func decodeUser(doc *firestore.DocumentSnapshot) (*models.User, error) {
	var data userDoc
	if err := doc.DataTo(&data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user data: %w", err)
	}
	return &models.User{ID: doc.Ref.ID, Username: data.Username, Email: data.Email, CreatedAt: data.CreatedAt}, nil
}

func (d productDoc) toModel(id string) models.Product {
	return models.Product{
		ID:          id,
		Name:        d.Name,
		BrandID:     d.BrandID,
		Category:    d.Category,
		Subcategory: d.Subcategory,
		Description: d.Description,
		ImageURL:    d.ImageURL,
		OwnerID:     d.OwnerID,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func newOfferDoc(o models.Offer) offerDoc {
	d := offerDoc{
		SiteProductID: o.SiteProductID,
		Site:          o.Site,
		Name:          o.Name,
		BrandName:     o.BrandName,
		ImageURL:      o.ImageURL,
		Price:         o.Price.StringFixed(2),
		URL:           o.URL,
		Review:        o.Review,
		ScrapedAt:     o.ScrapedAt,
	}
	if o.Rating.Valid {
		r := o.Rating.Decimal.StringFixed(2)
		d.Rating = &r
	}
	return d
}

func (d offerDoc) toModel(id, productID string) (models.Offer, error) {
	price, err := decimal.NewFromString(d.Price)
	if err != nil {
		return models.Offer{}, fmt.Errorf("price %q: %w", d.Price, err)
	}
	o := models.Offer{
		ID:            id,
		ProductID:     productID,
		SiteProductID: d.SiteProductID,
		Site:          d.Site,
		Name:          d.Name,
		BrandName:     d.BrandName,
		ImageURL:      d.ImageURL,
		Price:         price,
		URL:           d.URL,
		Review:        d.Review,
		ScrapedAt:     d.ScrapedAt,
	}
	if d.Rating != nil {
		if r, err := decimal.NewFromString(*d.Rating); err == nil {
			o.Rating = decimal.NewNullDecimal(r)
		}
	}
	return o, nil
}

func (d alertDoc) toModel(id string) (models.PriceAlert, error) {
	desired, err := decimal.NewFromString(d.DesiredPrice)
	if err != nil {
		return models.PriceAlert{}, fmt.Errorf("desired price %q: %w", d.DesiredPrice, err)
	}
	return models.PriceAlert{
		ID:           id,
		UserID:       d.UserID,
		ProductID:    d.ProductID,
		DesiredPrice: desired,
		IsActive:     d.IsActive,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}, nil
}

// sortOffers orders by price, then scrape time, matching the SQL backend.
func sortOffers(offers []models.Offer) {
	sort.SliceStable(offers, func(i, j int) bool {
		if !offers[i].Price.Equal(offers[j].Price) {
			return offers[i].Price.LessThan(offers[j].Price)
		}
		return offers[i].ScrapedAt.Before(offers[j].ScrapedAt)
	})
}
