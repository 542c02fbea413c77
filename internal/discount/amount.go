package discount

import (
	"strings"
	"time"

	"github.com/Skotchmaster/moto_shop/internal/models"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Applicable: active, StartsAt <= now < EndsAt, and below the usage limit.
// A nil limit is unbounded.
func Applicable(d *models.Discount, now time.Time) bool {
	if d == nil || !d.IsActive {
		return false
	}
	if now.Before(d.StartsAt) || !now.Before(d.EndsAt) {
		return false
	}
	if d.UsageLimit != nil && d.UsedCount >= *d.UsageLimit {
		return false
	}
	return true
}

// ComputeAmount never returns more than subtotal or less than zero.
func ComputeAmount(d *models.Discount, subtotal decimal.Decimal) decimal.Decimal {
	if d == nil || !subtotal.IsPositive() || !d.Value.IsPositive() {
		return decimal.Zero
	}

	var amount decimal.Decimal
	switch d.Type {
	case models.DiscountPercentage:
		amount = subtotal.Mul(d.Value).Div(hundred).Round(2)
	case models.DiscountFixedAmount:
		amount = d.Value
	default:
		return decimal.Zero
	}

	if amount.GreaterThan(subtotal) {
		return subtotal
	}
	return amount
}

// FinalPrice is subtotal minus amount, floored at zero.
func FinalPrice(subtotal, amount decimal.Decimal) decimal.Decimal {
	final := subtotal.Sub(amount)
	if final.IsNegative() {
		return decimal.Zero
	}
	return final
}
