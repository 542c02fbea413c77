package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/Skotchmaster/moto_shop/internal/models"
	"github.com/Skotchmaster/moto_shop/internal/testdb"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedProduct(t *testing.T, db *gorm.DB, name string, price int64, count int) models.Product {
	t.Helper()
	p := models.Product{Name: name, Price: decimal.NewFromInt(price), Count: count}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func TestGetProduct_NotFound(t *testing.T) {
	repo := &GormRepo{DB: testdb.New(t)}

	_, err := repo.GetProduct(context.Background(), 42)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestGetProducts_MissingIDFails(t *testing.T) {
	db := testdb.New(t)
	repo := &GormRepo{DB: db}
	p := seedProduct(t, db, "helmet", 100, 3)

	got, err := repo.GetProducts(context.Background(), []uint{p.ID, p.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, decimal.NewFromInt(100).Equal(got[p.ID].Price))

	_, err = repo.GetProducts(context.Background(), []uint{p.ID, 999})
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestAdjustStock(t *testing.T) {
	db := testdb.New(t)
	repo := &GormRepo{DB: db}
	ctx := context.Background()
	p := seedProduct(t, db, "gloves", 20, 2)

	require.NoError(t, repo.AdjustStock(ctx, p.ID, -2))
	got, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Count)

	err = repo.AdjustStock(ctx, p.ID, -1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOutOfStock))
	var oos *OutOfStockError
	require.ErrorAs(t, err, &oos)
	assert.Equal(t, p.ID, oos.ProductID)
	assert.Equal(t, 1, oos.Requested)
	assert.Equal(t, 0, oos.Available)

	require.NoError(t, repo.AdjustStock(ctx, p.ID, 5))
	got, err = repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Count)

	assert.ErrorIs(t, repo.AdjustStock(ctx, 777, -1), ErrProductNotFound)
}

func TestAdjustStock_RollsBackWithTransaction(t *testing.T) {
	db := testdb.New(t)
	repo := &GormRepo{DB: db}
	ctx := context.Background()
	p := seedProduct(t, db, "chain", 50, 4)

	boom := errors.New("boom")
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := repo.WithTx(tx).AdjustStock(ctx, p.ID, -3); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Count)
}
