package discount

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/Skotchmaster/moto_shop/internal/models"
	"github.com/Skotchmaster/moto_shop/pkg/db"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 8
)

type UsageReport struct {
	DiscountID  uint   `json:"discount_id"`
	Code        string `json:"code"`
	UsedCount   int    `json:"used_count"`
	TotalUses   int64  `json:"total_uses"`
	UniqueUsers int64  `json:"unique_users"`
}

func GenerateCode() (string, error) {
	buf := make([]byte, codeLength)
	alphabetLen := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", errors.Wrap(err, "generate code")
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

func validate(d *models.Discount) error {
	if d.Name == "" {
		return errors.Wrap(ErrValidation, "name required")
	}
	if !d.Value.IsPositive() {
		return errors.Wrap(ErrValidation, "value must be > 0")
	}
	switch d.Type {
	case models.DiscountPercentage:
		if d.Value.GreaterThan(hundred) {
			return errors.Wrap(ErrValidation, "percentage must be <= 100")
		}
	case models.DiscountFixedAmount:
	default:
		return errors.Wrapf(ErrValidation, "unknown discount type %q", d.Type)
	}
	if !d.EndsAt.After(d.StartsAt) {
		return errors.Wrap(ErrValidation, "ends_at must be after starts_at")
	}
	if d.UsageLimit != nil && *d.UsageLimit < 1 {
		return errors.Wrap(ErrValidation, "usage_limit must be >= 1")
	}
	return nil
}

// Create fills in a code and a one month window when they are missing.
func (r *GormRegistry) Create(ctx context.Context, d *models.Discount) error {
	now := time.Now().UTC()
	if d.StartsAt.IsZero() {
		d.StartsAt = now
	}
	if d.EndsAt.IsZero() {
		d.EndsAt = d.StartsAt.AddDate(0, 1, 0)
	}
	d.Code = NormalizeCode(d.Code)
	if d.Code == "" {
		code, err := GenerateCode()
		if err != nil {
			return err
		}
		d.Code = code
	}
	d.UsedCount = 0

	if err := validate(d); err != nil {
		return err
	}

	if err := r.DB.WithContext(ctx).Create(d).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return errors.Wrapf(ErrDuplicateCode, "code %q", d.Code)
		}
		return errors.Wrap(err, "create discount")
	}
	return nil
}

func (r *GormRegistry) Get(ctx context.Context, id uint) (*models.Discount, error) {
	var d models.Discount
	err := r.DB.WithContext(ctx).First(&d, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(ErrNotFound, "discount %d", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get discount")
	}
	return &d, nil
}

func (r *GormRegistry) List(ctx context.Context) ([]models.Discount, error) {
	var out []models.Discount
	if err := r.DB.WithContext(ctx).Order("created_at DESC, id DESC").Find(&out).Error; err != nil {
		return nil, errors.Wrap(err, "list discounts")
	}
	return out, nil
}

func (r *GormRegistry) ToggleActive(ctx context.Context, id uint) (*models.Discount, error) {
	var d models.Discount
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&d, id).Error; err != nil {
			return err
		}
		d.IsActive = !d.IsActive
		return tx.Model(&d).Update("is_active", d.IsActive).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(ErrNotFound, "discount %d", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "toggle discount")
	}
	return &d, nil
}

// ListAvailable returns what a customer could apply right now, soonest
// expiring first.
func (r *GormRegistry) ListAvailable(ctx context.Context, now time.Time) ([]models.Discount, error) {
	var active []models.Discount
	if err := r.DB.WithContext(ctx).Where("is_active = ?", true).Order("ends_at ASC, id ASC").Find(&active).Error; err != nil {
		return nil, errors.Wrap(err, "list available discounts")
	}

	out := make([]models.Discount, 0, len(active))
	for i := range active {
		if Applicable(&active[i], now) {
			out = append(out, active[i])
		}
	}
	return out, nil
}

func (r *GormRegistry) UsageReport(ctx context.Context, id uint) (*UsageReport, error) {
	d, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var row struct {
		TotalUses   int64
		UniqueUsers int64
	}
	err = r.DB.WithContext(ctx).Model(&models.UserDiscountUsage{}).
		Select("COUNT(*) AS total_uses, COUNT(DISTINCT user_id) AS unique_users").
		Where("discount_id = ?", id).
		Scan(&row).Error
	if err != nil {
		return nil, errors.Wrap(err, "usage report")
	}

	return &UsageReport{
		DiscountID:  d.ID,
		Code:        d.Code,
		UsedCount:   d.UsedCount,
		TotalUses:   row.TotalUses,
		UniqueUsers: row.UniqueUsers,
	}, nil
}
