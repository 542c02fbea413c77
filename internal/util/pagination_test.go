package util

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		page, size     int
		offset, limit int
	}{
		{1, 10, 0, 10},
		{3, 10, 20, 10},
		{0, 0, 0, DefaultPageSize},
		{-2, 500, 0, DefaultPageSize},
		{2, MaxPageSize, MaxPageSize, MaxPageSize},
	}
	for _, tt := range tests {
		offset, limit := Calculate(tt.page, tt.size)
		assert.Equal(t, tt.offset, offset, "page=%d size=%d", tt.page, tt.size)
		assert.Equal(t, tt.limit, limit, "page=%d size=%d", tt.page, tt.size)
	}
}

func TestPageFromQuery(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?page=2&size=abc", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	offset, limit := PageFromQuery(c)
	assert.Equal(t, DefaultPageSize, offset)
	assert.Equal(t, DefaultPageSize, limit)
}
