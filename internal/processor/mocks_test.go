package processor

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Amitrawat12/daily-glam/internal/models"
	"github.com/Amitrawat12/daily-glam/internal/scraper"
)

// --- Mock implementations ---

type mockStore struct {
	users    []models.User
	brands   map[string]*models.Brand
	products map[string]*models.Product // by name
	offers   map[string][]models.Offer  // by product ID
	alerts   map[string]*models.PriceAlert

	replaceErr    map[string]error // by product name
	deactivateErr error
	nextID        int
	replaceCalls  int
	deactivated   [][]string
}

func newMockStore(users ...models.User) *mockStore {
	return &mockStore{
		users:      users,
		brands:     make(map[string]*models.Brand),
		products:   make(map[string]*models.Product),
		offers:     make(map[string][]models.Offer),
		alerts:     make(map[string]*models.PriceAlert),
		replaceErr: make(map[string]error),
	}
}

func (m *mockStore) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func (m *mockStore) FirstUser(_ context.Context) (*models.User, error) {
	if len(m.users) == 0 {
		return nil, models.ErrNoUsers
	}
	u := m.users[0]
	return &u, nil
}

func (m *mockStore) GetOrCreateBrand(_ context.Context, name string) (*models.Brand, error) {
	if b, ok := m.brands[name]; ok {
		copy := *b
		return &copy, nil
	}
	b := &models.Brand{ID: m.id("brand"), Name: name}
	m.brands[name] = b
	copy := *b
	return &copy, nil
}

func (m *mockStore) UpsertProduct(_ context.Context, product models.Product) (*models.Product, error) {
	if existing, ok := m.products[product.Name]; ok {
		product.ID = existing.ID
	} else {
		product.ID = m.id("product")
	}
	copy := product
	m.products[product.Name] = &copy
	return &product, nil
}

func (m *mockStore) ReplaceOffers(_ context.Context, productID string, offers []models.Offer) error {
	m.replaceCalls++
	for name, p := range m.products {
		if p.ID == productID && m.replaceErr[name] != nil {
			return m.replaceErr[name]
		}
	}
	replaced := make([]models.Offer, len(offers))
	copy(replaced, offers)
	for i := range replaced {
		replaced[i].ID = m.id("offer")
	}
	m.offers[productID] = replaced
	return nil
}

func (m *mockStore) productByID(id string) (models.Product, bool) {
	for _, p := range m.products {
		if p.ID == id {
			return *p, true
		}
	}
	return models.Product{}, false
}

func (m *mockStore) ActiveAlerts(_ context.Context) ([]models.PriceAlert, error) {
	var result []models.PriceAlert
	for _, a := range m.alerts {
		if !a.IsActive {
			continue
		}
		alert := *a
		for _, u := range m.users {
			if u.ID == alert.UserID {
				alert.User = u
			}
		}
		alert.Product, _ = m.productByID(alert.ProductID)
		offers := append([]models.Offer(nil), m.offers[alert.ProductID]...)
		sort.SliceStable(offers, func(i, j int) bool { return offers[i].Price.LessThan(offers[j].Price) })
		alert.Product.Offers = offers
		result = append(result, alert)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockStore) DeactivateAlerts(_ context.Context, ids []string) error {
	if m.deactivateErr != nil {
		return m.deactivateErr
	}
	m.deactivated = append(m.deactivated, ids)
	for _, id := range ids {
		if a, ok := m.alerts[id]; ok {
			a.IsActive = false
		}
	}
	return nil
}

func (m *mockStore) UpsertAlert(_ context.Context, alert models.PriceAlert) (*models.PriceAlert, error) {
	for _, a := range m.alerts {
		if a.UserID == alert.UserID && a.ProductID == alert.ProductID {
			a.DesiredPrice = alert.DesiredPrice
			a.IsActive = alert.IsActive
			copy := *a
			return &copy, nil
		}
	}
	alert.ID = m.id("alert")
	copy := alert
	m.alerts[alert.ID] = &copy
	return &alert, nil
}

func (m *mockStore) DeleteAlert(_ context.Context, userID, alertID string) error {
	a, ok := m.alerts[alertID]
	if !ok || a.UserID != userID {
		return models.ErrNotFound
	}
	delete(m.alerts, alertID)
	return nil
}

// addAlert seeds an active alert and returns its ID.
func (m *mockStore) addAlert(userID, productID string, desired string) string {
	id := m.id("alert")
	m.alerts[id] = &models.PriceAlert{
		ID:           id,
		UserID:       userID,
		ProductID:    productID,
		DesiredPrice: decimal.RequireFromString(desired),
		IsActive:     true,
	}
	return id
}

// addProduct seeds a product with offers at the given prices.
func (m *mockStore) addProduct(name string, prices ...string) string {
	p := &models.Product{ID: m.id("product"), Name: name}
	m.products[name] = p
	for _, price := range prices {
		m.offers[p.ID] = append(m.offers[p.ID], models.Offer{
			ID:        m.id("offer"),
			ProductID: p.ID,
			Site:      "Nykaa",
			Price:     decimal.RequireFromString(price),
		})
	}
	return p.ID
}

type mockSource struct {
	mu     sync.Mutex
	quotes map[string]scraper.Quote
	errs   map[string]error
	calls  []string
}

func newMockSource() *mockSource {
	return &mockSource{quotes: make(map[string]scraper.Quote), errs: make(map[string]error)}
}

func (m *mockSource) price(url, price string) {
	m.quotes[url] = scraper.Quote{Price: decimal.RequireFromString(price)}
}

func (m *mockSource) FetchPrice(_ context.Context, target models.SiteTarget) (scraper.Quote, error) {
	m.mu.Lock()
	m.calls = append(m.calls, target.URL)
	m.mu.Unlock()
	if err, ok := m.errs[target.URL]; ok {
		return scraper.Quote{}, err
	}
	if q, ok := m.quotes[target.URL]; ok {
		return q, nil
	}
	return scraper.Quote{}, fmt.Errorf("%w: no stub for %s", scraper.ErrFetch, target.URL)
}

type mockMailer struct {
	sent    []models.EmailMessage
	failFor map[string]error // by recipient
	onSend  func()
}

func (m *mockMailer) Send(_ context.Context, msg models.EmailMessage) error {
	if err := m.failFor[msg.To]; err != nil {
		return err
	}
	m.sent = append(m.sent, msg)
	if m.onSend != nil {
		m.onSend()
	}
	return nil
}

type mockLocker struct {
	held     bool
	locked   int
	unlocked int
}

func (m *mockLocker) TryLock(_ context.Context, _ string) (func(context.Context) error, error) {
	if m.held {
		return nil, models.ErrRunInProgress
	}
	m.held = true
	m.locked++
	return func(context.Context) error {
		m.held = false
		m.unlocked++
		return nil
	}, nil
}

type mockOps struct {
	titles []string
	lines  [][]string
	err    error
}

func (m *mockOps) SendSummary(_ context.Context, title string, lines []string) error {
	m.titles = append(m.titles, title)
	m.lines = append(m.lines, lines)
	return m.err
}
