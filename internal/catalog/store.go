package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Skotchmaster/moto_shop/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRepo reads products and moves stock. Bind it to a transaction with
// WithTx when the change must commit together with an order.
type GormRepo struct {
	DB *gorm.DB
}

func (r *GormRepo) WithTx(tx *gorm.DB) *GormRepo {
	return &GormRepo{DB: tx}
}

func (r *GormRepo) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	if err := r.DB.WithContext(ctx).First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product %d: %w", id, ErrProductNotFound)
		}
		return nil, err
	}
	return &product, nil
}

func (r *GormRepo) GetProducts(ctx context.Context, ids []uint) (map[uint]models.Product, error) {
	return r.loadProducts(r.DB.WithContext(ctx), ids)
}

// LockProducts reads the rows FOR UPDATE in ascending id order, so two
// checkouts touching the same products always lock them in the same order.
func (r *GormRepo) LockProducts(ctx context.Context, ids []uint) (map[uint]models.Product, error) {
	return r.loadProducts(r.DB.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), ids)
}

func (r *GormRepo) loadProducts(q *gorm.DB, ids []uint) (map[uint]models.Product, error) {
	uniq := uniqueSorted(ids)
	if len(uniq) == 0 {
		return map[uint]models.Product{}, nil
	}

	var products []models.Product
	if err := q.Where("id IN ?", uniq).Order("id ASC").Find(&products).Error; err != nil {
		return nil, err
	}

	out := make(map[uint]models.Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	for _, id := range uniq {
		if _, ok := out[id]; !ok {
			return nil, fmt.Errorf("product %d: %w", id, ErrProductNotFound)
		}
	}
	return out, nil
}

// AdjustStock adds delta to the product stock. A decrement that would take
// stock below zero changes nothing and returns *OutOfStockError.
func (r *GormRepo) AdjustStock(ctx context.Context, id uint, delta int) error {
	if delta == 0 {
		return nil
	}

	res := r.DB.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND count + ? >= 0", id, delta).
		Update("count", gorm.Expr("count + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	product, err := r.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	return &OutOfStockError{ProductID: id, Requested: -delta, Available: product.Count}
}

func uniqueSorted(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
