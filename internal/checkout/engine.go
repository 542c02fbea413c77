package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Skotchmaster/moto_shop/internal/cart"
	"github.com/Skotchmaster/moto_shop/internal/catalog"
	"github.com/Skotchmaster/moto_shop/internal/discount"
	"github.com/Skotchmaster/moto_shop/internal/events"
	"github.com/Skotchmaster/moto_shop/internal/metrics"
	"github.com/Skotchmaster/moto_shop/internal/models"
	"github.com/Skotchmaster/moto_shop/internal/order"
	"github.com/Skotchmaster/moto_shop/pkg/db"
	"github.com/Skotchmaster/moto_shop/pkg/logging"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultTxTimeout = 5 * time.Second

var tracer = otel.Tracer("github.com/Skotchmaster/moto_shop/internal/checkout")

type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

type CartInvalidator interface {
	Invalidate(ctx context.Context, userID uuid.UUID)
}

// Engine turns carts into orders and drives the order lifecycle. Every
// write of one operation goes through a single gorm transaction.
type Engine struct {
	DB        *gorm.DB
	Catalog   *catalog.GormRepo
	Discounts *discount.GormRegistry
	Carts     *cart.GormRepo

	CartCache CartInvalidator
	Publisher Publisher
	Metrics   *metrics.CheckoutMetrics
	Topic     string

	TxTimeout time.Duration
	Now       func() time.Time
}

type Request struct {
	Shipping      models.ShippingInfo
	PaymentMethod models.PaymentMethod
	DiscountCode  string
}

type Quote struct {
	Lines          []cart.LineView `json:"lines"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountCode   string          `json:"discount_code,omitempty"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalPrice     decimal.Decimal `json:"final_price"`
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e *Engine) txContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := e.TxTimeout
	if timeout <= 0 {
		timeout = DefaultTxTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func (e *Engine) topic() string {
	if e.Topic == "" {
		return events.OrderTopic
	}
	return e.Topic
}

func validateRequest(req Request) error {
	if strings.TrimSpace(req.Shipping.Name) == "" {
		return fmt.Errorf("shipping name required: %w", ErrValidation)
	}
	if strings.TrimSpace(req.Shipping.Phone) == "" {
		return fmt.Errorf("shipping phone required: %w", ErrValidation)
	}
	if strings.TrimSpace(req.Shipping.Address) == "" {
		return fmt.Errorf("shipping address required: %w", ErrValidation)
	}
	if !req.PaymentMethod.Valid() {
		return fmt.Errorf("unknown payment method %q: %w", req.PaymentMethod, ErrValidation)
	}
	return nil
}

// Checkout places a Pending order for everything in the user's cart. Either
// the order, its lines, the discount usage, the stock decrements and the
// cart removal all commit, or none of them do.
func (e *Engine) Checkout(ctx context.Context, userID uuid.UUID, req Request) (placed *models.Order, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "checkout.Checkout", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.Bool("discount.requested", strings.TrimSpace(req.DiscountCode) != ""),
	))
	l := logging.FromContext(ctx).With("op", "checkout", "user_id", userID)
	defer func() {
		e.Metrics.ObserveCheckout(outcome(err), time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	c, err := e.Carts.GetCart(ctx, userID)
	if err != nil {
		return nil, classify(ctx, err)
	}
	var lines []models.CartLine
	if c != nil {
		if lines, err = e.Carts.Lines(ctx, c.ID); err != nil {
			return nil, classify(ctx, err)
		}
	}
	if len(lines) == 0 {
		return nil, classify(ctx, emptyCartError(ctx, e.Discounts, userID, req.DiscountCode))
	}

	txCtx, cancel := e.txContext(ctx)
	defer cancel()

	err = e.DB.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		placed, txErr = e.placeOrder(txCtx, tx, userID, req)
		return txErr
	})
	if err != nil {
		if !isDomain(err) && db.IsUniqueViolation(err) {
			err = fmt.Errorf("%w: %v", discount.ErrDiscountAlreadyUsed, err)
		}
		err = classify(txCtx, err)
		l.Warn("checkout_failed", "outcome", outcome(err), "error", err)
		return nil, err
	}

	span.SetAttributes(attribute.Int64("order.id", int64(placed.ID)))
	l.Info("checkout_success", "order_id", placed.ID, "final_price", placed.FinalPrice.String())

	if e.CartCache != nil {
		e.CartCache.Invalidate(ctx, userID)
	}
	e.publish(ctx, events.FromOrder(events.TypeOrderCreated, placed, ""))
	return placed, nil
}

func (e *Engine) placeOrder(ctx context.Context, tx *gorm.DB, userID uuid.UUID, req Request) (*models.Order, error) {
	carts := e.Carts.WithTx(tx)
	products := e.Catalog.WithTx(tx)

	registry := e.Discounts.WithTx(tx)

	c, err := carts.LockCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	var lines []models.CartLine
	if c != nil {
		if lines, err = carts.Lines(ctx, c.ID); err != nil {
			return nil, err
		}
	}
	if len(lines) == 0 {
		return nil, emptyCartError(ctx, registry, userID, req.DiscountCode)
	}

	ids := make([]uint, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	live, err := products.LockProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	subtotal := decimal.Zero
	orderLines := make([]models.OrderLine, 0, len(lines))
	for _, line := range lines {
		p := live[line.ProductID]
		if line.Quantity > p.Count {
			return nil, &catalog.OutOfStockError{ProductID: p.ID, Requested: line.Quantity, Available: p.Count}
		}
		subtotal = subtotal.Add(p.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		orderLines = append(orderLines, models.OrderLine{
			ProductID: p.ID,
			Quantity:  line.Quantity,
			UnitPrice: p.Price,
		})
	}

	var applied *models.Discount
	amount := decimal.Zero
	if code := strings.TrimSpace(req.DiscountCode); code != "" {
		applied, err = registry.FindApplicable(ctx, code, e.now())
		if err != nil {
			return nil, err
		}
		used, err := registry.HasUserUsed(ctx, userID, applied.ID)
		if err != nil {
			return nil, err
		}
		if used {
			return nil, fmt.Errorf("code %s: %w", applied.Code, discount.ErrDiscountAlreadyUsed)
		}
		amount = discount.ComputeAmount(applied, subtotal)
	}

	o := &models.Order{
		UserID:         userID,
		Status:         order.StatusPending,
		TotalPrice:     subtotal,
		DiscountAmount: amount,
		FinalPrice:     discount.FinalPrice(subtotal, amount),
		Shipping:       req.Shipping,
		PaymentMethod:  req.PaymentMethod,
	}
	if applied != nil {
		id := applied.ID
		o.DiscountID = &id
	}
	if err := tx.WithContext(ctx).Omit(clause.Associations).Create(o).Error; err != nil {
		return nil, err
	}

	if applied != nil {
		if err := registry.RecordUsage(ctx, userID, applied.ID, o.ID); err != nil {
			return nil, err
		}
		if err := registry.IncrementUsedCount(ctx, applied.ID); err != nil {
			return nil, err
		}
	}

	for i := range orderLines {
		orderLines[i].OrderID = o.ID
	}
	if err := tx.WithContext(ctx).Create(&orderLines).Error; err != nil {
		return nil, err
	}
	for _, line := range orderLines {
		if err := products.AdjustStock(ctx, line.ProductID, -line.Quantity); err != nil {
			return nil, err
		}
	}
	o.Lines = orderLines

	deleted, err := carts.Delete(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return nil, ErrEmptyCart
	}
	return o, nil
}

// emptyCartError answers a checkout that finds no cart. When the request
// carries a code this user already consumed, the cart was emptied by the
// checkout that used it, and DiscountAlreadyUsed is the accurate answer.
func emptyCartError(ctx context.Context, registry *discount.GormRegistry, userID uuid.UUID, code string) error {
	if strings.TrimSpace(code) == "" {
		return ErrEmptyCart
	}
	d, err := registry.FindByCode(ctx, code)
	if errors.Is(err, discount.ErrInvalidDiscountCode) {
		return ErrEmptyCart
	}
	if err != nil {
		return err
	}
	used, err := registry.HasUserUsed(ctx, userID, d.ID)
	if err != nil {
		return err
	}
	if used {
		return fmt.Errorf("code %s: %w", d.Code, discount.ErrDiscountAlreadyUsed)
	}
	return ErrEmptyCart
}

// Quote prices the cart the way Checkout would, without writing anything.
func (e *Engine) Quote(ctx context.Context, userID uuid.UUID, code string) (*Quote, error) {
	ctx, span := tracer.Start(ctx, "checkout.Quote")
	defer span.End()

	c, err := e.Carts.GetCart(ctx, userID)
	if err != nil {
		return nil, classify(ctx, err)
	}
	if c == nil {
		return nil, ErrEmptyCart
	}
	lines, err := e.Carts.Lines(ctx, c.ID)
	if err != nil {
		return nil, classify(ctx, err)
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	ids := make([]uint, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	live, err := e.Catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, classify(ctx, err)
	}

	q := &Quote{Lines: make([]cart.LineView, 0, len(lines)), DiscountAmount: decimal.Zero}
	for _, line := range lines {
		p := live[line.ProductID]
		if line.Quantity > p.Count {
			return nil, &catalog.OutOfStockError{ProductID: p.ID, Requested: line.Quantity, Available: p.Count}
		}
		q.Lines = append(q.Lines, cart.LineView{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  line.Quantity,
			LineTotal: p.Price.Mul(decimal.NewFromInt(int64(line.Quantity))),
		})
	}
	q.Subtotal = cart.ComputeTotal(q.Lines)

	if strings.TrimSpace(code) != "" {
		d, err := e.Discounts.FindApplicable(ctx, code, e.now())
		if err != nil {
			return nil, classify(ctx, err)
		}
		used, err := e.Discounts.HasUserUsed(ctx, userID, d.ID)
		if err != nil {
			return nil, classify(ctx, err)
		}
		if used {
			return nil, fmt.Errorf("code %s: %w", d.Code, discount.ErrDiscountAlreadyUsed)
		}
		q.DiscountCode = d.Code
		q.DiscountAmount = discount.ComputeAmount(d, q.Subtotal)
	}
	q.FinalPrice = discount.FinalPrice(q.Subtotal, q.DiscountAmount)
	return q, nil
}

func (e *Engine) publish(ctx context.Context, ev events.OrderEvent) {
	if e.Publisher == nil {
		return
	}
	if err := e.Publisher.PublishEvent(ctx, e.topic(), ev.Key(), ev); err != nil {
		logging.FromContext(ctx).Error("publish_failed", "type", ev.Type, "order_id", ev.OrderID, "error", err)
	}
}
