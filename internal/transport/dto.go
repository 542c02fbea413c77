package transport

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/moto_shop/internal/models"
)

type AddItemRequest struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

type UpdateItemRequest struct {
	Quantity int `json:"quantity"`
}

type CountResponse struct {
	Count int `json:"count"`
}

type CheckoutRequest struct {
	ShippingName    string               `json:"shipping_name"`
	ShippingPhone   string               `json:"shipping_phone"`
	ShippingAddress string               `json:"shipping_address"`
	Note            string               `json:"note"`
	PaymentMethod   models.PaymentMethod `json:"payment_method"`
	DiscountCode    string               `json:"discount_code"`
}

func (r CheckoutRequest) Shipping() models.ShippingInfo {
	return models.ShippingInfo{
		Name:    r.ShippingName,
		Phone:   r.ShippingPhone,
		Address: r.ShippingAddress,
		Note:    r.Note,
	}
}

type QuoteRequest struct {
	DiscountCode string `json:"discount_code"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type CreateDiscountRequest struct {
	Name        string              `json:"name"`
	Code        string              `json:"code"`
	Description string              `json:"description"`
	Type        models.DiscountType `json:"type"`
	Value       decimal.Decimal     `json:"value"`
	IsActive    *bool               `json:"is_active"`
	StartsAt    time.Time           `json:"starts_at"`
	EndsAt      time.Time           `json:"ends_at"`
	UsageLimit  *int                `json:"usage_limit"`
}

func (r CreateDiscountRequest) Model() *models.Discount {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return &models.Discount{
		Name:        r.Name,
		Code:        r.Code,
		Description: r.Description,
		Type:        r.Type,
		Value:       r.Value,
		IsActive:    active,
		StartsAt:    r.StartsAt,
		EndsAt:      r.EndsAt,
		UsageLimit:  r.UsageLimit,
	}
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	ProductID *uint  `json:"product_id,omitempty"`
}
