package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/moto_shop/internal/cart"
	"github.com/Skotchmaster/moto_shop/internal/catalog"
	"github.com/Skotchmaster/moto_shop/internal/checkout"
	"github.com/Skotchmaster/moto_shop/internal/discount"
	"github.com/Skotchmaster/moto_shop/internal/order"
	"github.com/Skotchmaster/moto_shop/internal/transport"
)

const retryAfterSeconds = "1"

type mapping struct {
	target error
	status int
	code   string
}

var mappings = []mapping{
	{checkout.ErrValidation, http.StatusBadRequest, "validation"},
	{cart.ErrValidation, http.StatusBadRequest, "validation"},
	{discount.ErrValidation, http.StatusBadRequest, "validation"},
	{order.ErrUnknownStatus, http.StatusBadRequest, "validation"},

	{checkout.ErrNotFound, http.StatusNotFound, "not_found"},
	{cart.ErrNotFound, http.StatusNotFound, "not_found"},
	{discount.ErrNotFound, http.StatusNotFound, "not_found"},
	{catalog.ErrProductNotFound, http.StatusNotFound, "product_not_found"},

	{checkout.ErrEmptyCart, http.StatusConflict, "empty_cart"},
	{catalog.ErrOutOfStock, http.StatusConflict, "out_of_stock"},
	{catalog.ErrInsufficientStock, http.StatusConflict, "insufficient_stock"},
	{discount.ErrDiscountAlreadyUsed, http.StatusConflict, "discount_already_used"},
	{order.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{discount.ErrDuplicateCode, http.StatusConflict, "duplicate_code"},

	{discount.ErrInvalidDiscountCode, http.StatusUnprocessableEntity, "invalid_discount_code"},

	{checkout.ErrTransactionTimeout, http.StatusServiceUnavailable, "timeout"},
}

// respondError writes the JSON error body for a service error and logs it
// under event.
func respondError(c echo.Context, l *slog.Logger, event string, err error) error {
	status, code := http.StatusInternalServerError, "internal"
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			status, code = m.status, m.code
			break
		}
	}

	body := transport.ErrorResponse{Error: code, Message: err.Error()}
	var oos *catalog.OutOfStockError
	if errors.As(err, &oos) {
		id := oos.ProductID
		body.ProductID = &id
	}

	switch {
	case status == http.StatusServiceUnavailable:
		c.Response().Header().Set("Retry-After", retryAfterSeconds)
		l.Warn(event, "status", status, "reason", code, "error", err)
	case status >= 500:
		body.Message = "internal error"
		l.Error(event, "status", status, "reason", code, "error", err)
	default:
		l.Warn(event, "status", status, "reason", code, "error", err)
	}
	return c.JSON(status, body)
}

func badRequest(c echo.Context, l *slog.Logger, event, msg string, err error) error {
	l.Warn(event, "status", http.StatusBadRequest, "reason", msg, "error", err)
	return c.JSON(http.StatusBadRequest, transport.ErrorResponse{Error: "validation", Message: msg})
}
