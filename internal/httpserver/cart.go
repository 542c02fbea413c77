package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/moto_shop/internal/cart"
	"github.com/Skotchmaster/moto_shop/internal/transport"
	authmw "github.com/Skotchmaster/moto_shop/pkg/middleware/auth"
	"github.com/Skotchmaster/moto_shop/pkg/logging"
)

type CartHTTP struct {
	Svc *cart.Service
}

func productIDParam(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("product_id"), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	return uint(id), nil
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.get_cart")

	userID, err := authmw.UserID(c)
	if err != nil {
		return err
	}

	view, err := h.Svc.View(ctx, userID)
	if err != nil {
		return respondError(c, l, "get_cart_error", err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *CartHTTP) Count(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.count")

	userID, err := authmw.UserID(c)
	if err != nil {
		return err
	}

	n, err := h.Svc.Count(ctx, userID)
	if err != nil {
		return respondError(c, l, "cart_count_error", err)
	}
	return c.JSON(http.StatusOK, transport.CountResponse{Count: n})
}

func (h *CartHTTP) AddItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add_item")

	userID, err := authmw.UserID(c)
	if err != nil {
		return err
	}

	var req transport.AddItemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, l, "add_item_error", "invalid body", err)
	}

	line, err := h.Svc.AddItem(ctx, userID, req.ProductID, req.Quantity)
	if err != nil {
		return respondError(c, l, "add_item_error", err)
	}

	l.Info("add_item_success", "product_id", req.ProductID, "quantity", line.Quantity)
	return c.JSON(http.StatusCreated, line)
}

func (h *CartHTTP) UpdateItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.update_item")

	userID, err := authmw.UserID(c)
	if err != nil {
		return err
	}
	productID, err := productIDParam(c)
	if err != nil {
		return err
	}

	var req transport.UpdateItemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, l, "update_item_error", "invalid body", err)
	}

	if err := h.Svc.UpdateItem(ctx, userID, productID, req.Quantity); err != nil {
		return respondError(c, l, "update_item_error", err)
	}

	l.Info("update_item_success", "product_id", productID, "quantity", req.Quantity)
	return c.NoContent(http.StatusNoContent)
}

func (h *CartHTTP) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.remove_item")

	userID, err := authmw.UserID(c)
	if err != nil {
		return err
	}
	productID, err := productIDParam(c)
	if err != nil {
		return err
	}

	if err := h.Svc.RemoveItem(ctx, userID, productID); err != nil {
		return respondError(c, l, "remove_item_error", err)
	}

	l.Info("remove_item_success", "product_id", productID)
	return c.NoContent(http.StatusNoContent)
}
