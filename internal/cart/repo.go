package cart

import (
	"context"
	"errors"

	"github.com/Skotchmaster/moto_shop/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormRepo struct {
	DB *gorm.DB
}

func (r *GormRepo) WithTx(tx *gorm.DB) *GormRepo {
	return &GormRepo{DB: tx}
}

// GetCart returns nil without error when the user has no cart yet.
func (r *GormRepo) GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	return r.findCart(r.DB.WithContext(ctx), userID)
}

// LockCart is GetCart with a FOR UPDATE lock on the cart row.
func (r *GormRepo) LockCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	return r.findCart(r.DB.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), userID)
}

func (r *GormRepo) findCart(q *gorm.DB, userID uuid.UUID) (*models.Cart, error) {
	var c models.Cart
	err := q.Where("user_id = ?", userID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *GormRepo) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	db := r.DB.WithContext(ctx)
	c := models.Cart{UserID: userID}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&c).Error; err != nil {
		return nil, err
	}

	var out models.Cart
	if err := db.Where("user_id = ?", userID).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *GormRepo) Lines(ctx context.Context, cartID uint) ([]models.CartLine, error) {
	var lines []models.CartLine
	if err := r.DB.WithContext(ctx).Where("cart_id = ?", cartID).Order("id ASC").Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *GormRepo) GetLine(ctx context.Context, cartID, productID uint) (*models.CartLine, error) {
	var line models.CartLine
	err := r.DB.WithContext(ctx).Where("cart_id = ? AND product_id = ?", cartID, productID).First(&line).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// AddQuantity increments an existing line or inserts a new one.
func (r *GormRepo) AddQuantity(ctx context.Context, cartID, productID uint, qty int) (*models.CartLine, error) {
	line := models.CartLine{CartID: cartID, ProductID: productID, Quantity: qty}
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.CartLine{}).
			Where("cart_id = ? AND product_id = ?", cartID, productID).
			Update("quantity", gorm.Expr("quantity + ?", qty))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return tx.Where("cart_id = ? AND product_id = ?", cartID, productID).First(&line).Error
		}
		return tx.Create(&line).Error
	})
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *GormRepo) SetQuantity(ctx context.Context, cartID, productID uint, qty int) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.CartLine{}).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		Update("quantity", qty)
	return res.RowsAffected > 0, res.Error
}

func (r *GormRepo) DeleteLine(ctx context.Context, cartID, productID uint) (bool, error) {
	res := r.DB.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		Delete(&models.CartLine{})
	return res.RowsAffected > 0, res.Error
}

func (r *GormRepo) Count(ctx context.Context, userID uuid.UUID) (int, error) {
	var total int64
	err := r.DB.WithContext(ctx).Model(&models.CartLine{}).
		Joins("JOIN carts ON carts.id = cart_lines.cart_id").
		Where("carts.user_id = ?", userID).
		Select("COALESCE(SUM(cart_lines.quantity), 0)").
		Scan(&total).Error
	return int(total), err
}

// Delete removes the cart and its lines. It reports whether the cart row
// still existed, which lets a checkout detect that a concurrent one won.
func (r *GormRepo) Delete(ctx context.Context, cartID uint) (bool, error) {
	db := r.DB.WithContext(ctx)
	if err := db.Where("cart_id = ?", cartID).Delete(&models.CartLine{}).Error; err != nil {
		return false, err
	}
	res := db.Delete(&models.Cart{}, cartID)
	return res.RowsAffected > 0, res.Error
}
