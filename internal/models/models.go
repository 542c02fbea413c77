package models

import (
	"time"

	"github.com/Skotchmaster/moto_shop/internal/order"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID          uint            `gorm:"primaryKey;autoIncrement"              json:"id"`
	Name        string          `gorm:"not null"                              json:"name"`
	Description string          `gorm:"not null;default:''"                   json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null"           json:"price"`
	Count       int             `gorm:"not null;default:0;check:count >= 0"   json:"count"`
}

type Cart struct {
	ID        uint      `gorm:"primaryKey"                json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type CartLine struct {
	ID        uint `gorm:"primaryKey"                                 json:"id"`
	CartID    uint `gorm:"uniqueIndex:idx_cart_product;not null"       json:"cart_id"`
	ProductID uint `gorm:"uniqueIndex:idx_cart_product;not null"       json:"product_id"`
	Quantity  int  `gorm:"not null;check:quantity > 0"                 json:"quantity"`
}

type DiscountType string

const (
	DiscountPercentage  DiscountType = "percentage"
	DiscountFixedAmount DiscountType = "fixed_amount"
)

type Discount struct {
	ID          uint            `gorm:"primaryKey"                      json:"id"`
	Name        string          `gorm:"not null"                        json:"name"`
	Code        string          `gorm:"size:32;uniqueIndex;not null"    json:"code"`
	Description string          `gorm:"not null;default:''"             json:"description"`
	Type        DiscountType    `gorm:"size:16;not null"                json:"type"`
	Value       decimal.Decimal `gorm:"type:numeric(12,2);not null"     json:"value"`
	IsActive    bool            `gorm:"not null"                        json:"is_active"`
	StartsAt    time.Time       `gorm:"not null"                        json:"starts_at"`
	EndsAt      time.Time       `gorm:"not null"                        json:"ends_at"`
	UsageLimit  *int            `json:"usage_limit,omitempty"`
	UsedCount   int             `gorm:"not null;default:0"              json:"used_count"`
	CreatedAt   time.Time       `json:"created_at"`
}

type UserDiscountUsage struct {
	ID         uint      `gorm:"primaryKey"                                       json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_user_discount;not null" json:"user_id"`
	DiscountID uint      `gorm:"uniqueIndex:idx_user_discount;not null"           json:"discount_id"`
	OrderID    uint      `gorm:"not null"                                         json:"order_id"`
	UsedAt     time.Time `gorm:"not null"                                         json:"used_at"`
}

type PaymentMethod string

const (
	PaymentCOD          PaymentMethod = "cod"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentCreditCard   PaymentMethod = "credit_card"
)

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCOD, PaymentBankTransfer, PaymentCreditCard:
		return true
	}
	return false
}

// ShippingInfo is copied onto the order at checkout and never refreshed.
type ShippingInfo struct {
	Name    string `gorm:"not null"             json:"name"`
	Phone   string `gorm:"not null"             json:"phone"`
	Address string `gorm:"not null"             json:"address"`
	Note    string `gorm:"not null;default:''"  json:"note"`
}

type Order struct {
	ID             uint            `gorm:"primaryKey"                         json:"id"`
	UserID         uuid.UUID       `gorm:"type:uuid;index;not null"           json:"user_id"`
	Status         order.Status    `gorm:"size:16;index;not null"             json:"status"`
	TotalPrice     decimal.Decimal `gorm:"type:numeric(12,2);not null"        json:"total_price"`
	DiscountAmount decimal.Decimal `gorm:"type:numeric(12,2);not null"        json:"discount_amount"`
	FinalPrice     decimal.Decimal `gorm:"type:numeric(12,2);not null"        json:"final_price"`
	Shipping       ShippingInfo    `gorm:"embedded;embeddedPrefix:shipping_"  json:"shipping"`
	PaymentMethod  PaymentMethod   `gorm:"size:16;not null"                   json:"payment_method"`
	DiscountID     *uint           `json:"discount_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Lines          []OrderLine     `gorm:"foreignKey:OrderID"                 json:"lines"`
}

type OrderLine struct {
	ID        uint            `gorm:"primaryKey"                     json:"id"`
	OrderID   uint            `gorm:"index;not null"                 json:"order_id"`
	ProductID uint            `gorm:"not null"                       json:"product_id"`
	Quantity  int             `gorm:"not null;check:quantity > 0"    json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(12,2);not null"    json:"unit_price"`
}

type AdminLog struct {
	ID        uint      `gorm:"primaryKey"                json:"id"`
	AdminID   uuid.UUID `gorm:"type:uuid;not null"        json:"admin_id"`
	Action    string    `gorm:"size:64;not null"          json:"action"`
	Entity    string    `gorm:"size:32;not null;index:idx_admin_logs_entity" json:"entity"`
	EntityID  uint      `gorm:"not null;index:idx_admin_logs_entity"          json:"entity_id"`
	Details   string    `gorm:"not null;default:''"       json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

// All lists every table in dependency order, for AutoMigrate.
func All() []any {
	return []any{
		&Product{},
		&Cart{},
		&CartLine{},
		&Discount{},
		&Order{},
		&OrderLine{},
		&UserDiscountUsage{},
		&AdminLog{},
	}
}
