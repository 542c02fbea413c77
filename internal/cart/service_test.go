package cart

import (
	"context"
	"testing"

	"github.com/Skotchmaster/moto_shop/internal/catalog"
	"github.com/Skotchmaster/moto_shop/internal/models"
	"github.com/Skotchmaster/moto_shop/internal/testdb"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestService(t *testing.T, cache Cache) (*Service, *gorm.DB) {
	t.Helper()
	db := testdb.New(t)
	return &Service{
		Repo:    &GormRepo{DB: db},
		Catalog: &catalog.GormRepo{DB: db},
		Cache:   cache,
	}, db
}

func seedProduct(t *testing.T, db *gorm.DB, price int64, count int) models.Product {
	t.Helper()
	p := models.Product{Name: "part", Price: decimal.NewFromInt(price), Count: count}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func TestGetOrCreate_Idempotent(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	userID := uuid.New()

	first, err := svc.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	second, err := svc.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, userID, second.UserID)
}

func TestAddItem_MergesLines(t *testing.T) {
	svc, db := newTestService(t, nil)
	ctx := context.Background()
	userID := uuid.New()
	p := seedProduct(t, db, 100, 5)

	_, err := svc.AddItem(ctx, userID, p.ID, 2)
	require.NoError(t, err)
	line, err := svc.AddItem(ctx, userID, p.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, line.Quantity)

	var n int64
	require.NoError(t, db.Model(&models.CartLine{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)

	count, err := svc.Count(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestAddItem_Rejections(t *testing.T) {
	svc, db := newTestService(t, nil)
	ctx := context.Background()
	userID := uuid.New()
	p := seedProduct(t, db, 100, 2)

	_, err := svc.AddItem(ctx, userID, p.ID, 0)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.AddItem(ctx, userID, 999, 1)
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)

	_, err = svc.AddItem(ctx, userID, p.ID, 3)
	assert.ErrorIs(t, err, catalog.ErrOutOfStock)

	_, err = svc.AddItem(ctx, userID, p.ID, 2)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, userID, p.ID, 1)
	var oos *catalog.OutOfStockError
	require.ErrorAs(t, err, &oos)
	assert.Equal(t, p.ID, oos.ProductID)
	assert.Equal(t, 3, oos.Requested)
}

func TestUpdateItem(t *testing.T) {
	svc, db := newTestService(t, nil)
	ctx := context.Background()
	userID := uuid.New()
	p := seedProduct(t, db, 40, 4)

	_, err := svc.AddItem(ctx, userID, p.ID, 1)
	require.NoError(t, err)

	require.NoError(t, svc.UpdateItem(ctx, userID, p.ID, 4))
	count, err := svc.Count(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	assert.ErrorIs(t, svc.UpdateItem(ctx, userID, p.ID, 5), catalog.ErrInsufficientStock)

	require.NoError(t, svc.UpdateItem(ctx, userID, p.ID, 0))
	count, err = svc.Count(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	assert.ErrorIs(t, svc.UpdateItem(ctx, userID, p.ID, -1), ErrNotFound)
	assert.ErrorIs(t, svc.RemoveItem(ctx, uuid.New(), p.ID), ErrNotFound)
}

func TestView_LivePricesAndCacheInvalidation(t *testing.T) {
	cache, mr := setupTestRedis(t)
	svc, db := newTestService(t, cache)
	ctx := context.Background()
	userID := uuid.New()
	a := seedProduct(t, db, 100, 10)
	b := seedProduct(t, db, 15, 10)

	empty, err := svc.View(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, empty.Lines)
	assert.True(t, empty.Total.IsZero())

	_, err = svc.AddItem(ctx, userID, a.ID, 2)
	require.NoError(t, err)
	assert.False(t, mr.Exists(cacheKey(userID)), "mutation drops the cached view")

	_, err = svc.AddItem(ctx, userID, b.ID, 3)
	require.NoError(t, err)

	view, err := svc.View(ctx, userID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(245).Equal(view.Total))
	assert.Equal(t, 5, view.ItemCount)
	assert.True(t, mr.Exists(cacheKey(userID)))

	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", a.ID).Update("price", decimal.NewFromInt(90)).Error)
	repriced, err := svc.View(ctx, userID)
	require.NoError(t, err)
	assert.True(t, mr.Exists(cacheKey(userID)), "line set still cached")
	assert.True(t, decimal.NewFromInt(225).Equal(repriced.Total), "price change is visible right away")
	assert.True(t, decimal.NewFromInt(90).Equal(repriced.Lines[0].UnitPrice))

	require.NoError(t, db.Where("product_id = ?", b.ID).Delete(&models.CartLine{}).Error)
	cached, err := svc.View(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 5, cached.ItemCount, "quantities come from the cached line set")

	svc.Invalidate(ctx, userID)
	fresh, err := svc.View(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.ItemCount)
	assert.True(t, decimal.NewFromInt(180).Equal(fresh.Total))
}

func TestComputeTotal(t *testing.T) {
	t.Parallel()

	lines := []LineView{
		{UnitPrice: decimal.RequireFromString("19.99"), Quantity: 3},
		{UnitPrice: decimal.RequireFromString("0.01"), Quantity: 1},
	}
	assert.True(t, decimal.RequireFromString("59.98").Equal(ComputeTotal(lines)))
	assert.True(t, ComputeTotal(nil).IsZero())
}
