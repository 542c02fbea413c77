package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	authmw "github.com/Skotchmaster/moto_shop/pkg/middleware/auth"
	"github.com/Skotchmaster/moto_shop/pkg/middleware/csrf"
	"github.com/Skotchmaster/moto_shop/pkg/tokens"
)

type Deps struct {
	DB       *gorm.DB
	Cart     *CartHTTP
	Checkout *CheckoutHTTP
	Orders   *OrderHTTP
	Admin    *AdminHTTP

	JWTSecret []byte
	CSRF      csrf.Config
	Metrics   http.Handler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", d.ready)
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics))
	}

	authed := e.Group("", authmw.Middleware(d.JWTSecret), csrf.Middleware(d.CSRF))

	cart := authed.Group("/cart")
	cart.GET("", d.Cart.GetCart)
	cart.GET("/count", d.Cart.Count)
	cart.POST("/items", d.Cart.AddItem)
	cart.PATCH("/items/:product_id", d.Cart.UpdateItem)
	cart.DELETE("/items/:product_id", d.Cart.RemoveItem)

	authed.POST("/checkout", d.Checkout.Checkout)
	authed.POST("/checkout/quote", d.Checkout.Quote)
	authed.GET("/discounts/available", d.Checkout.AvailableDiscounts)

	orders := authed.Group("/orders")
	orders.GET("", d.Orders.ListOrders)
	orders.GET("/:id", d.Orders.GetOrder)
	orders.POST("/:id/cancel", d.Orders.CancelOrder)

	admin := authed.Group("/admin", authmw.RequireRole(tokens.RoleAdmin))
	admin.GET("/orders", d.Admin.ListOrders)
	admin.GET("/orders/:id", d.Admin.GetOrder)
	admin.GET("/orders/:id/logs", d.Admin.OrderLogs)
	admin.PATCH("/orders/:id/status", d.Admin.UpdateStatus)
	admin.POST("/orders/:id/cancel", d.Admin.CancelOrder)

	admin.POST("/discounts", d.Admin.CreateDiscount)
	admin.GET("/discounts", d.Admin.ListDiscounts)
	admin.PATCH("/discounts/:id/toggle", d.Admin.ToggleDiscount)
	admin.GET("/discounts/:id/usage", d.Admin.DiscountUsage)
}

func (d *Deps) ready(c echo.Context) error {
	if d.DB == nil {
		return c.NoContent(http.StatusOK)
	}
	sqlDB, err := d.DB.DB()
	if err != nil {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	return c.NoContent(http.StatusOK)
}
