package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/moto_shop/internal/checkout"
	authmw "github.com/Skotchmaster/moto_shop/pkg/middleware/auth"
	"github.com/Skotchmaster/moto_shop/pkg/logging"
)

type OrderHTTP struct {
	Engine *checkout.Engine
}

func idParam(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return uint(id), nil
}

func (h *OrderHTTP) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_orders")

	userID, err := authmw.UserID(c)
	if err != nil {
		return err
	}

	orders, err := h.Engine.ListOrders(ctx, userID)
	if err != nil {
		return respondError(c, l, "list_orders_error", err)
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_order")

	userID, err := authmw.UserID(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}

	o, err := h.Engine.GetOrder(ctx, id, checkout.User(userID))
	if err != nil {
		return respondError(c, l, "get_order_error", err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *OrderHTTP) CancelOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.cancel_order")

	userID, err := authmw.UserID(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}

	o, err := h.Engine.CancelOrder(ctx, id, checkout.User(userID))
	if err != nil {
		return respondError(c, l, "cancel_order_error", err)
	}

	l.Info("cancel_order_success", "order_id", id)
	return c.JSON(http.StatusOK, o)
}
