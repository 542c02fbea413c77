package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/Skotchmaster/moto_shop/internal/catalog"
	"github.com/Skotchmaster/moto_shop/internal/discount"
	"github.com/Skotchmaster/moto_shop/internal/order"
)

var (
	ErrValidation         = errors.New("validation")
	ErrNotFound           = errors.New("order not found")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrTransactionTimeout = errors.New("transaction timed out")
	ErrPersistence        = errors.New("persistence failure")
)

var domainErrors = []error{
	ErrValidation,
	ErrNotFound,
	ErrEmptyCart,
	catalog.ErrOutOfStock,
	catalog.ErrInsufficientStock,
	catalog.ErrProductNotFound,
	discount.ErrInvalidDiscountCode,
	discount.ErrDiscountAlreadyUsed,
	order.ErrInvalidTransition,
}

func isDomain(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// classify keeps domain errors as they are and folds everything else into
// ErrTransactionTimeout or ErrPersistence.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if isDomain(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTransactionTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}

// outcome is the metrics label for a checkout result.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrValidation):
		return "invalid_request"
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, catalog.ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, catalog.ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, discount.ErrInvalidDiscountCode):
		return "invalid_discount"
	case errors.Is(err, discount.ErrDiscountAlreadyUsed):
		return "discount_already_used"
	case errors.Is(err, ErrTransactionTimeout):
		return "timeout"
	default:
		return "error"
	}
}
