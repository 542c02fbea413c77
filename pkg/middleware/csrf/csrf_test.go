package csrf

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func newServer() *echo.Echo {
	e := echo.New()
	e.Use(Middleware(Config{}))
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	e.GET("/cart", ok)
	e.POST("/checkout", ok)
	return e
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestBearerRequestsPassThrough(t *testing.T) {
	e := newServer()
	req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer x")
	assert.Equal(t, http.StatusNoContent, serve(e, req).Code)
}

func TestCookieSessionNeedsToken(t *testing.T) {
	e := newServer()
	session := &http.Cookie{Name: "accessToken", Value: "jwt"}

	get := httptest.NewRequest(http.MethodGet, "http://example.com/cart", nil)
	get.AddCookie(session)
	rec := serve(e, get)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	token := rec.Header().Get("X-CSRF-Token")
	assert.NotEmpty(t, token)

	post := httptest.NewRequest(http.MethodPost, "http://example.com/checkout", nil)
	post.AddCookie(session)
	post.AddCookie(&http.Cookie{Name: "XSRF-TOKEN", Value: token})
	post.Header.Set("Origin", "http://example.com")
	assert.Equal(t, http.StatusForbidden, serve(e, post).Code, "missing header")

	post.Header.Set("X-CSRF-Token", token)
	assert.Equal(t, http.StatusNoContent, serve(e, post).Code)

	post.Header.Set("Origin", "http://evil.example")
	assert.Equal(t, http.StatusForbidden, serve(e, post).Code)
}
