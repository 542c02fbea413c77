package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Skotchmaster/moto_shop/pkg/tokens"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func newServer() *echo.Echo {
	e := echo.New()
	g := e.Group("", Middleware(secret))
	g.GET("/me", func(c echo.Context) error {
		id, err := UserID(c)
		if err != nil {
			return err
		}
		return c.String(http.StatusOK, id.String())
	})
	g.GET("/admin", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	}, RequireRole(tokens.RoleAdmin))
	return e
}

func token(t *testing.T, role, sub string) string {
	t.Helper()
	s, err := tokens.NewAccessToken(role, sub, time.Now().Add(time.Minute), secret)
	require.NoError(t, err)
	return s
}

func TestMiddleware(t *testing.T) {
	e := newServer()
	user := uuid.New()

	tests := []struct {
		name   string
		path   string
		setup  func(r *http.Request)
		status int
	}{
		{"no token", "/me", func(r *http.Request) {}, http.StatusUnauthorized},
		{"garbage", "/me", func(r *http.Request) {
			r.Header.Set(echo.HeaderAuthorization, "Bearer nope")
		}, http.StatusUnauthorized},
		{"subject not uuid", "/me", func(r *http.Request) {
			r.Header.Set(echo.HeaderAuthorization, "Bearer "+token(t, "user", "42"))
		}, http.StatusUnauthorized},
		{"bearer", "/me", func(r *http.Request) {
			r.Header.Set(echo.HeaderAuthorization, "Bearer "+token(t, "user", user.String()))
		}, http.StatusOK},
		{"cookie", "/me", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: "accessToken", Value: token(t, "user", user.String())})
		}, http.StatusOK},
		{"user on admin route", "/admin", func(r *http.Request) {
			r.Header.Set(echo.HeaderAuthorization, "Bearer "+token(t, "user", user.String()))
		}, http.StatusForbidden},
		{"admin", "/admin", func(r *http.Request) {
			r.Header.Set(echo.HeaderAuthorization, "Bearer "+token(t, tokens.RoleAdmin, user.String()))
		}, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, user.String(), rec.Body.String())
			}
		})
	}
}
