package loggingmw

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/moto_shop/pkg/logging"
)

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	e := echo.New()
	e.Use(RequestLogger(base))
	e.GET("/orders/:id", func(c echo.Context) error {
		logging.FromContext(c.Request().Context()).Info("inside")
		return c.NoContent(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/5", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rid := rec.Header().Get(echo.HeaderXRequestID)
	require.NotEmpty(t, rid)

	dec := json.NewDecoder(&buf)
	var inside, done map[string]any
	require.NoError(t, dec.Decode(&inside))
	require.NoError(t, dec.Decode(&done))
	assert.Equal(t, rid, inside["request_id"])
	assert.Equal(t, "/orders/:id", done["path"])
	assert.Equal(t, "request_completed", done["msg"])
	assert.EqualValues(t, http.StatusNoContent, done["status"])
}
