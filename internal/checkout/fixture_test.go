package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Skotchmaster/moto_shop/internal/cart"
	"github.com/Skotchmaster/moto_shop/internal/catalog"
	"github.com/Skotchmaster/moto_shop/internal/discount"
	"github.com/Skotchmaster/moto_shop/internal/events"
	"github.com/Skotchmaster/moto_shop/internal/metrics"
	"github.com/Skotchmaster/moto_shop/internal/models"
	"github.com/Skotchmaster/moto_shop/internal/testdb"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []events.OrderEvent
}

func (p *fakePublisher) PublishEvent(_ context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event.(events.OrderEvent))
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeInvalidator struct {
	mu    sync.Mutex
	users []uuid.UUID
}

func (f *fakeInvalidator) Invalidate(_ context.Context, userID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, userID)
}

type fixture struct {
	t       *testing.T
	db      *gorm.DB
	engine  *Engine
	carts   *cart.Service
	pub     *fakePublisher
	cache   *fakeInvalidator
	metrics *metrics.CheckoutMetrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testdb.New(t)
	products := &catalog.GormRepo{DB: db}
	cartRepo := &cart.GormRepo{DB: db}
	pub := &fakePublisher{}
	inv := &fakeInvalidator{}
	m := metrics.NewCheckoutMetrics(prometheus.NewRegistry())

	return &fixture{
		t:  t,
		db: db,
		engine: &Engine{
			DB:        db,
			Catalog:   products,
			Discounts: &discount.GormRegistry{DB: db},
			Carts:     cartRepo,
			CartCache: inv,
			Publisher: pub,
			Metrics:   m,
			TxTimeout: 5 * time.Second,
		},
		carts:   &cart.Service{Repo: cartRepo, Catalog: products},
		pub:     pub,
		cache:   inv,
		metrics: m,
	}
}

func (f *fixture) product(price string, count int) models.Product {
	f.t.Helper()
	p := models.Product{Name: "part", Price: decimal.RequireFromString(price), Count: count}
	require.NoError(f.t, f.db.Create(&p).Error)
	return p
}

func (f *fixture) add(userID uuid.UUID, productID uint, qty int) {
	f.t.Helper()
	_, err := f.carts.AddItem(context.Background(), userID, productID, qty)
	require.NoError(f.t, err)
}

// forceLine writes a cart line without the stock check AddItem does.
func (f *fixture) forceLine(userID uuid.UUID, productID uint, qty int) {
	f.t.Helper()
	c, err := f.carts.GetOrCreate(context.Background(), userID)
	require.NoError(f.t, err)
	require.NoError(f.t, f.db.Create(&models.CartLine{CartID: c.ID, ProductID: productID, Quantity: qty}).Error)
}

func (f *fixture) discount(code string, typ models.DiscountType, value string, mutate func(*models.Discount)) models.Discount {
	f.t.Helper()
	now := time.Now().UTC()
	d := models.Discount{
		Name:     code,
		Code:     code,
		Type:     typ,
		Value:    decimal.RequireFromString(value),
		IsActive: true,
		StartsAt: now.Add(-time.Hour),
		EndsAt:   now.Add(time.Hour),
	}
	if mutate != nil {
		mutate(&d)
	}
	require.NoError(f.t, f.db.Create(&d).Error)
	return d
}

func (f *fixture) stock(productID uint) int {
	f.t.Helper()
	var p models.Product
	require.NoError(f.t, f.db.First(&p, productID).Error)
	return p.Count
}

func (f *fixture) count(model any, query string, args ...any) int64 {
	f.t.Helper()
	var n int64
	q := f.db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(f.t, q.Count(&n).Error)
	return n
}

func shipping() models.ShippingInfo {
	return models.ShippingInfo{Name: "Ivan Petrov", Phone: "+7 900 000 00 00", Address: "Lenina 1, Moscow", Note: "call first"}
}

func request(code string) Request {
	return Request{Shipping: shipping(), PaymentMethod: models.PaymentCOD, DiscountCode: code}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
