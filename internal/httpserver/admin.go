package httpserver

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/moto_shop/internal/checkout"
	"github.com/Skotchmaster/moto_shop/internal/discount"
	"github.com/Skotchmaster/moto_shop/internal/order"
	"github.com/Skotchmaster/moto_shop/internal/transport"
	"github.com/Skotchmaster/moto_shop/internal/util"
	authmw "github.com/Skotchmaster/moto_shop/pkg/middleware/auth"
	"github.com/Skotchmaster/moto_shop/pkg/logging"
)

type AdminHTTP struct {
	Engine    *checkout.Engine
	Discounts *discount.GormRegistry
}

func (h *AdminHTTP) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.list_orders")

	f := checkout.Filter{}
	if raw := c.QueryParam("status"); raw != "" {
		st, err := order.ParseStatus(raw)
		if err != nil {
			return respondError(c, l, "admin_list_orders_error", err)
		}
		f.Status = st
	}
	if raw := c.QueryParam("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return badRequest(c, l, "admin_list_orders_error", "invalid user_id", err)
		}
		f.UserID = id
	}
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		raw := c.QueryParam(p.name)
		if raw == "" {
			continue
		}
		day, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return badRequest(c, l, "admin_list_orders_error", "invalid "+p.name+" date, want YYYY-MM-DD", err)
		}
		*p.dst = day
	}
	f.Search = c.QueryParam("search")
	f.Offset, f.Limit = util.PageFromQuery(c)

	orders, err := h.Engine.ListAllOrders(ctx, f)
	if err != nil {
		return respondError(c, l, "admin_list_orders_error", err)
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *AdminHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.get_order")

	adminID, err := authmw.UserID(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}

	o, err := h.Engine.GetOrder(ctx, id, checkout.Admin(adminID))
	if err != nil {
		return respondError(c, l, "admin_get_order_error", err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *AdminHTTP) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.update_status")

	adminID, err := authmw.UserID(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}

	var req transport.UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, l, "update_status_error", "invalid body", err)
	}
	next, err := order.ParseStatus(req.Status)
	if err != nil {
		return respondError(c, l, "update_status_error", err)
	}

	o, err := h.Engine.UpdateOrderStatus(ctx, id, next, adminID)
	if err != nil {
		return respondError(c, l, "update_status_error", err)
	}

	l.Info("update_status_success", "order_id", id, "status", next)
	return c.JSON(http.StatusOK, o)
}

func (h *AdminHTTP) CancelOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.cancel_order")

	adminID, err := authmw.UserID(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}

	o, err := h.Engine.CancelOrder(ctx, id, checkout.Admin(adminID))
	if err != nil {
		return respondError(c, l, "admin_cancel_order_error", err)
	}

	l.Info("admin_cancel_order_success", "order_id", id)
	return c.JSON(http.StatusOK, o)
}

func (h *AdminHTTP) OrderLogs(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.order_logs")

	id, err := idParam(c)
	if err != nil {
		return err
	}
	logs, err := h.Engine.AdminLogs(ctx, id)
	if err != nil {
		return respondError(c, l, "order_logs_error", err)
	}
	return c.JSON(http.StatusOK, logs)
}

func (h *AdminHTTP) CreateDiscount(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.create_discount")

	var req transport.CreateDiscountRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, l, "create_discount_error", "invalid body", err)
	}

	d := req.Model()
	if err := h.Discounts.Create(ctx, d); err != nil {
		return respondError(c, l, "create_discount_error", err)
	}

	l.Info("create_discount_success", "discount_id", d.ID, "code", d.Code)
	return c.JSON(http.StatusCreated, d)
}

func (h *AdminHTTP) ListDiscounts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.list_discounts")

	list, err := h.Discounts.List(ctx)
	if err != nil {
		return respondError(c, l, "list_discounts_error", err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *AdminHTTP) ToggleDiscount(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.toggle_discount")

	id, err := idParam(c)
	if err != nil {
		return err
	}
	d, err := h.Discounts.ToggleActive(ctx, id)
	if err != nil {
		return respondError(c, l, "toggle_discount_error", err)
	}

	l.Info("toggle_discount_success", "discount_id", id, "is_active", d.IsActive)
	return c.JSON(http.StatusOK, d)
}

func (h *AdminHTTP) DiscountUsage(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.discount_usage")

	id, err := idParam(c)
	if err != nil {
		return err
	}
	report, err := h.Discounts.UsageReport(ctx, id)
	if err != nil {
		return respondError(c, l, "discount_usage_error", err)
	}
	return c.JSON(http.StatusOK, report)
}
