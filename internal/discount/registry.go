package discount

import (
	"context"
	"time"

	"github.com/Skotchmaster/moto_shop/internal/models"
	"github.com/Skotchmaster/moto_shop/pkg/db"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// GormRegistry is the persistence side of discounts. Usage bookkeeping
// (RecordUsage, IncrementUsedCount) must run on a registry bound with WithTx
// to the transaction that persists the order.
type GormRegistry struct {
	DB *gorm.DB
}

func (r *GormRegistry) WithTx(tx *gorm.DB) *GormRegistry {
	return &GormRegistry{DB: tx}
}

// FindByCode looks a code up without checking whether it can be applied.
// Codes are stored normalized, so the match is exact and can use the unique
// index.
func (r *GormRegistry) FindByCode(ctx context.Context, code string) (*models.Discount, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, errors.Wrap(ErrInvalidDiscountCode, "empty code")
	}

	var d models.Discount
	err := r.DB.WithContext(ctx).Where("code = ?", normalized).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(ErrInvalidDiscountCode, "code %q not found", normalized)
	}
	if err != nil {
		return nil, errors.Wrap(err, "find discount")
	}
	return &d, nil
}

func (r *GormRegistry) FindApplicable(ctx context.Context, code string, now time.Time) (*models.Discount, error) {
	d, err := r.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !Applicable(d, now) {
		return nil, errors.Wrapf(ErrInvalidDiscountCode, "code %q not applicable", d.Code)
	}
	return d, nil
}

func (r *GormRegistry) HasUserUsed(ctx context.Context, userID uuid.UUID, discountID uint) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.UserDiscountUsage{}).
		Where("user_id = ? AND discount_id = ?", userID, discountID).
		Count(&n).Error
	if err != nil {
		return false, errors.Wrap(err, "check discount usage")
	}
	return n > 0, nil
}

// RecordUsage relies on the (user_id, discount_id) unique index as the last
// line of defence when two checkouts race past HasUserUsed.
func (r *GormRegistry) RecordUsage(ctx context.Context, userID uuid.UUID, discountID, orderID uint) error {
	usage := models.UserDiscountUsage{
		UserID:     userID,
		DiscountID: discountID,
		OrderID:    orderID,
		UsedAt:     time.Now().UTC(),
	}
	if err := r.DB.WithContext(ctx).Create(&usage).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return errors.Wrapf(ErrDiscountAlreadyUsed, "discount %d", discountID)
		}
		return errors.Wrap(err, "record discount usage")
	}
	return nil
}

func (r *GormRegistry) IncrementUsedCount(ctx context.Context, discountID uint) error {
	res := r.DB.WithContext(ctx).Model(&models.Discount{}).
		Where("id = ? AND (usage_limit IS NULL OR used_count < usage_limit)", discountID).
		Update("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return errors.Wrap(res.Error, "increment used count")
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrInvalidDiscountCode, "discount %d usage limit reached", discountID)
	}
	return nil
}
