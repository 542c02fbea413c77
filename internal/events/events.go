package events

import (
	"strconv"
	"time"

	"github.com/Skotchmaster/moto_shop/internal/models"
	"github.com/Skotchmaster/moto_shop/internal/order"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const OrderTopic = "order_events"

const (
	TypeOrderCreated       = "order_created"
	TypeOrderCancelled     = "order_cancelled"
	TypeOrderStatusChanged = "order_status_changed"
)

type Line struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

type OrderEvent struct {
	Type       string          `json:"type"`
	OrderID    uint            `json:"order_id"`
	UserID     uuid.UUID       `json:"user_id"`
	Status     order.Status    `json:"status"`
	PrevStatus order.Status    `json:"prev_status,omitempty"`
	FinalPrice decimal.Decimal `json:"final_price"`
	Lines      []Line          `json:"lines"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func (e OrderEvent) Key() string {
	return strconv.FormatUint(uint64(e.OrderID), 10)
}

// StockDeltas is the stock movement the event stands for, per product.
func (e OrderEvent) StockDeltas() map[uint]int {
	sign := 0
	switch e.Type {
	case TypeOrderCreated:
		sign = -1
	case TypeOrderCancelled:
		sign = 1
	default:
		return nil
	}

	out := make(map[uint]int, len(e.Lines))
	for _, l := range e.Lines {
		out[l.ProductID] += sign * l.Quantity
	}
	return out
}

func FromOrder(typ string, o *models.Order, prev order.Status) OrderEvent {
	lines := make([]Line, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, Line{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return OrderEvent{
		Type:       typ,
		OrderID:    o.ID,
		UserID:     o.UserID,
		Status:     o.Status,
		PrevStatus: prev,
		FinalPrice: o.FinalPrice,
		Lines:      lines,
		OccurredAt: time.Now().UTC(),
	}
}
