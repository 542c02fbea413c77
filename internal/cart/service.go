package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/Skotchmaster/moto_shop/internal/catalog"
	"github.com/Skotchmaster/moto_shop/internal/models"
	"github.com/Skotchmaster/moto_shop/pkg/logging"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrValidation = errors.New("validation")
	ErrNotFound   = errors.New("cart line not found")
)

type LineView struct {
	ProductID uint            `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// View is the cart as shown to the user, priced at current catalog prices.
type View struct {
	UserID    uuid.UUID       `json:"user_id"`
	Lines     []LineView      `json:"lines"`
	ItemCount int             `json:"item_count"`
	Total     decimal.Decimal `json:"total"`
}

// Service is the cart aggregate. Cache is optional.
type Service struct {
	Repo    *GormRepo
	Catalog *catalog.GormRepo
	Cache   Cache
}

func (s *Service) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	return s.Repo.GetOrCreate(ctx, userID)
}

func (s *Service) AddItem(ctx context.Context, userID uuid.UUID, productID uint, qty int) (*models.CartLine, error) {
	if productID == 0 {
		return nil, fmt.Errorf("product_id required: %w", ErrValidation)
	}
	if qty <= 0 {
		return nil, fmt.Errorf("quantity must be more than zero: %w", ErrValidation)
	}

	product, err := s.Catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	c, err := s.Repo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	existing, err := s.Repo.GetLine(ctx, c.ID, productID)
	if err != nil {
		return nil, err
	}
	want := qty
	if existing != nil {
		want += existing.Quantity
	}
	if want > product.Count {
		return nil, &catalog.OutOfStockError{ProductID: productID, Requested: want, Available: product.Count}
	}

	line, err := s.Repo.AddQuantity(ctx, c.ID, productID, qty)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, userID)
	return line, nil
}

// UpdateItem sets the line quantity. Zero or less removes the line; more
// than the product stock is rejected rather than clamped.
func (s *Service) UpdateItem(ctx context.Context, userID uuid.UUID, productID uint, qty int) error {
	if qty <= 0 {
		return s.RemoveItem(ctx, userID, productID)
	}

	c, err := s.Repo.GetCart(ctx, userID)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}

	product, err := s.Catalog.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if qty > product.Count {
		return fmt.Errorf("product %d: requested %d, available %d: %w", productID, qty, product.Count, catalog.ErrInsufficientStock)
	}

	found, err := s.Repo.SetQuantity(ctx, c.ID, productID, qty)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *Service) RemoveItem(ctx context.Context, userID uuid.UUID, productID uint) error {
	c, err := s.Repo.GetCart(ctx, userID)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}

	deleted, err := s.Repo.DeleteLine(ctx, c.ID, productID)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *Service) Count(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.Repo.Count(ctx, userID)
}

// View prices the cart at current catalog prices. Only the line set comes
// from the cache.
func (s *Service) View(ctx context.Context, userID uuid.UUID) (*View, error) {
	lines, err := s.lines(ctx, userID)
	if err != nil {
		return nil, err
	}

	view := &View{UserID: userID, Lines: []LineView{}, Total: decimal.Zero}
	if len(lines) == 0 {
		return view, nil
	}

	ids := make([]uint, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	products, err := s.Catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, line := range lines {
		p, ok := products[line.ProductID]
		if !ok {
			continue
		}
		view.Lines = append(view.Lines, LineView{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  line.Quantity,
			LineTotal: p.Price.Mul(decimal.NewFromInt(int64(line.Quantity))),
		})
		view.ItemCount += line.Quantity
	}
	view.Total = ComputeTotal(view.Lines)
	return view, nil
}

func (s *Service) lines(ctx context.Context, userID uuid.UUID) ([]CachedLine, error) {
	l := logging.FromContext(ctx)
	if s.Cache == nil {
		return s.loadLines(ctx, userID)
	}

	cached, err := s.Cache.Get(ctx, userID)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		l.Warn("cart_cache_get_failed", "user_id", userID, "error", err)
	}

	version, verr := s.Cache.Version(ctx, userID)
	lines, err := s.loadLines(ctx, userID)
	if err != nil {
		return nil, err
	}
	if verr != nil {
		l.Warn("cart_cache_version_failed", "user_id", userID, "error", verr)
		return lines, nil
	}
	if err := s.Cache.Set(ctx, userID, lines, version); err != nil {
		l.Warn("cart_cache_set_failed", "user_id", userID, "error", err)
	}
	return lines, nil
}

func (s *Service) loadLines(ctx context.Context, userID uuid.UUID) ([]CachedLine, error) {
	out := []CachedLine{}
	c, err := s.Repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return out, nil
	}
	rows, err := s.Repo.Lines(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out = append(out, CachedLine{ProductID: row.ProductID, Quantity: row.Quantity})
	}
	return out, nil
}

// Invalidate drops the cached view. Checkout calls it after commit.
func (s *Service) Invalidate(ctx context.Context, userID uuid.UUID) {
	s.invalidate(ctx, userID)
}

func (s *Service) invalidate(ctx context.Context, userID uuid.UUID) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Delete(ctx, userID); err != nil {
		logging.FromContext(ctx).Warn("cart_cache_delete_failed", "user_id", userID, "error", err)
	}
}

func ComputeTotal(lines []LineView) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}
