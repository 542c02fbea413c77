package httpserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/moto_shop/internal/checkout"
	"github.com/Skotchmaster/moto_shop/internal/discount"
	"github.com/Skotchmaster/moto_shop/internal/transport"
	authmw "github.com/Skotchmaster/moto_shop/pkg/middleware/auth"
	"github.com/Skotchmaster/moto_shop/pkg/logging"
)

type CheckoutHTTP struct {
	Engine    *checkout.Engine
	Discounts *discount.GormRegistry
}

func (h *CheckoutHTTP) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.checkout")

	userID, err := authmw.UserID(c)
	if err != nil {
		return err
	}

	var req transport.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, l, "checkout_error", "invalid body", err)
	}

	placed, err := h.Engine.Checkout(ctx, userID, checkout.Request{
		Shipping:      req.Shipping(),
		PaymentMethod: req.PaymentMethod,
		DiscountCode:  req.DiscountCode,
	})
	if err != nil {
		return respondError(c, l, "checkout_error", err)
	}

	l.Info("checkout_success", "order_id", placed.ID)
	return c.JSON(http.StatusCreated, placed)
}

func (h *CheckoutHTTP) Quote(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.quote")

	userID, err := authmw.UserID(c)
	if err != nil {
		return err
	}

	var req transport.QuoteRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, l, "quote_error", "invalid body", err)
	}

	q, err := h.Engine.Quote(ctx, userID, req.DiscountCode)
	if err != nil {
		return respondError(c, l, "quote_error", err)
	}
	return c.JSON(http.StatusOK, q)
}

func (h *CheckoutHTTP) AvailableDiscounts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.available_discounts")

	list, err := h.Discounts.ListAvailable(ctx, time.Now().UTC())
	if err != nil {
		return respondError(c, l, "available_discounts_error", err)
	}
	return c.JSON(http.StatusOK, list)
}
