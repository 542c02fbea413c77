package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/Skotchmaster/moto_shop/pkg/tokens"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	CtxUserID = "user_id"
	CtxRole   = "role"

	accessCookie = "accessToken"
)

// Middleware authenticates the request by the access token from the
// accessToken cookie or an Authorization: Bearer header.
func Middleware(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := tokenFromRequest(c)
			if raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
			}
			claims, err := tokens.AccessClaimsFromToken(raw, secret)
			if err != nil || claims == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}

			if claims.Subject == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "token has no subject")
			}
			if _, err := uuid.Parse(claims.Subject); err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "token subject is not a user id")
			}
			c.Set(CtxUserID, claims.Subject)
			c.Set(CtxRole, claims.Role)

			return next(c)
		}
	}
}

func RequireRole(required ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(CtxRole).(string)
			if role == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing role")
			}
			if !slices.Contains(required, role) {
				return echo.NewHTTPError(http.StatusForbidden, "you don't have enough rights to see this page")
			}
			return next(c)
		}
	}
}

// UserID reads the id Middleware stored on the context.
func UserID(c echo.Context) (uuid.UUID, error) {
	raw, _ := c.Get(CtxUserID).(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "missing user id")
	}
	return id, nil
}

func tokenFromRequest(c echo.Context) string {
	if ck, err := c.Cookie(accessCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if after, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}
