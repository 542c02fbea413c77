package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Skotchmaster/moto_shop/internal/events"
	"github.com/Skotchmaster/moto_shop/internal/models"
	"github.com/Skotchmaster/moto_shop/internal/order"
	"github.com/Skotchmaster/moto_shop/pkg/logging"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Actor is who asks for an order operation. Admins are not bound to their
// own orders and may cancel past Pending.
type Actor struct {
	ID    uuid.UUID
	Admin bool
}

func User(id uuid.UUID) Actor  { return Actor{ID: id} }
func Admin(id uuid.UUID) Actor { return Actor{ID: id, Admin: true} }

// Filter narrows the admin order list. From and To are calendar days, both
// inclusive. Search matches an order id, a shipping phone fragment or a
// product name fragment.
type Filter struct {
	Status order.Status
	UserID uuid.UUID
	From   time.Time
	To     time.Time
	Search string

	Offset int
	Limit  int
}

// CancelOrder moves the order to Cancelled and returns its stock in the same
// transaction. Users may only cancel their own Pending orders.
func (e *Engine) CancelOrder(ctx context.Context, orderID uint, actor Actor) (*models.Order, error) {
	return e.transition(ctx, orderID, order.StatusCancelled, actor)
}

func (e *Engine) UpdateOrderStatus(ctx context.Context, orderID uint, next order.Status, adminID uuid.UUID) (*models.Order, error) {
	return e.transition(ctx, orderID, next, Admin(adminID))
}

func (e *Engine) transition(ctx context.Context, orderID uint, next order.Status, actor Actor) (updated *models.Order, err error) {
	ctx, span := tracer.Start(ctx, "checkout.Transition", trace.WithAttributes(
		attribute.Int64("order.id", int64(orderID)),
		attribute.String("order.next_status", string(next)),
		attribute.Bool("actor.admin", actor.Admin),
	))
	l := logging.FromContext(ctx).With("op", "order_transition", "order_id", orderID, "next", next)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	txCtx, cancel := e.txContext(ctx)
	defer cancel()

	var prev order.Status
	restocked := 0
	err = e.DB.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		var cur models.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&cur, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("order %d: %w", orderID, ErrNotFound)
			}
			return err
		}
		if !actor.Admin && cur.UserID != actor.ID {
			return fmt.Errorf("order %d: %w", orderID, ErrNotFound)
		}
		if !actor.Admin && cur.Status != order.StatusPending {
			return &order.TransitionError{From: cur.Status, To: next}
		}
		if err := cur.Status.Transition(next); err != nil {
			return err
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", cur.ID, cur.Status).
			Updates(map[string]any{"status": next, "updated_at": e.now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &order.TransitionError{From: cur.Status, To: next}
		}

		if err := tx.Where("order_id = ?", cur.ID).Order("id ASC").Find(&cur.Lines).Error; err != nil {
			return err
		}
		if next == order.StatusCancelled {
			products := e.Catalog.WithTx(tx)
			for _, line := range cur.Lines {
				if err := products.AdjustStock(txCtx, line.ProductID, line.Quantity); err != nil {
					return err
				}
				restocked += line.Quantity
			}
		}

		if actor.Admin {
			entry := models.AdminLog{
				AdminID:  actor.ID,
				Action:   adminAction(next),
				Entity:   "order",
				EntityID: cur.ID,
				Details:  fmt.Sprintf("%s -> %s", cur.Status, next),
			}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
		}

		prev = cur.Status
		cur.Status = next
		updated = &cur
		return nil
	})
	if err != nil {
		err = classify(txCtx, err)
		l.Warn("order_transition_failed", "error", err)
		return nil, err
	}

	e.Metrics.ObserveTransition(string(prev), string(next), restocked)
	l.Info("order_transition_success", "from", prev, "restocked", restocked)

	typ := events.TypeOrderStatusChanged
	if next == order.StatusCancelled {
		typ = events.TypeOrderCancelled
	}
	e.publish(ctx, events.FromOrder(typ, updated, prev))
	return updated, nil
}

func adminAction(next order.Status) string {
	if next == order.StatusCancelled {
		return "order_cancel"
	}
	return "order_status_update"
}

func preloadLines(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// GetOrder hides other users' orders behind ErrNotFound.
func (e *Engine) GetOrder(ctx context.Context, orderID uint, actor Actor) (*models.Order, error) {
	var o models.Order
	err := e.DB.WithContext(ctx).Preload("Lines", preloadLines).First(&o, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, classify(ctx, err)
	}
	if !actor.Admin && o.UserID != actor.ID {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	return &o, nil
}

func (e *Engine) ListOrders(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	return e.ListAllOrders(ctx, Filter{UserID: userID})
}

func (e *Engine) ListAllOrders(ctx context.Context, f Filter) ([]models.Order, error) {
	q := e.DB.WithContext(ctx).Model(&models.Order{}).Preload("Lines", preloadLines)
	if f.UserID != uuid.Nil {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if !f.From.IsZero() {
		q = q.Where("orders.created_at >= ?", startOfDay(f.From))
	}
	if !f.To.IsZero() {
		q = q.Where("orders.created_at < ?", startOfDay(f.To).AddDate(0, 0, 1))
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		var id uint64
		if n, err := strconv.ParseUint(term, 10, 64); err == nil {
			id = n
		}
		pattern := "%" + strings.ToLower(term) + "%"
		q = q.Where(`(orders.id = ? OR LOWER(orders.shipping_phone) LIKE ? OR EXISTS (
			SELECT 1 FROM order_lines ol JOIN products p ON p.id = ol.product_id
			WHERE ol.order_id = orders.id AND LOWER(p.name) LIKE ?))`, id, pattern, pattern)
	}

	if f.Limit > 0 {
		q = q.Offset(f.Offset).Limit(f.Limit)
	}

	var orders []models.Order
	if err := q.Order("created_at DESC, id DESC").Find(&orders).Error; err != nil {
		return nil, classify(ctx, err)
	}
	return orders, nil
}

// AdminLogs returns the audit trail of one order, oldest first.
func (e *Engine) AdminLogs(ctx context.Context, orderID uint) ([]models.AdminLog, error) {
	var logs []models.AdminLog
	err := e.DB.WithContext(ctx).
		Where("entity = ? AND entity_id = ?", "order", orderID).
		Order("id ASC").
		Find(&logs).Error
	if err != nil {
		return nil, classify(ctx, err)
	}
	return logs, nil
}
