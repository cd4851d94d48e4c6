package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"atelier/internal/bootstrap"
	"atelier/internal/models"
	"atelier/internal/orders"
	"atelier/internal/repository"
)

type fakeNotifier struct {
	pokes int
}

func (f *fakeNotifier) Poke() { f.pokes++ }

func newHandlerEnv(t *testing.T) (*OrderHandler, *orders.Service, *fakeNotifier) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, bootstrap.Migrate(db))

	svc := orders.NewService(
		repository.NewOrderRepository(db),
		repository.NewOrderItemRepository(db),
		zap.NewNop(),
	)
	notifier := &fakeNotifier{}
	return NewOrderHandler(svc, notifier, zap.NewNop()), svc, notifier
}

func doJSON(t *testing.T, handler echo.HandlerFunc, method, path, body string, params map[string]string) (*httptest.ResponseRecorder, Response) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	for k, v := range params {
		c.SetParamNames(k)
		c.SetParamValues(v)
	}
	require.NoError(t, handler(c))

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestCreateOrder(t *testing.T) {
	h, _, notifier := newHandlerEnv(t)

	body := `{
		"provider": "fal.ai",
		"model": "fal-ai/flux/dev",
		"items": [{"prompt": "a castle on a hill"}]
	}`
	rec, resp := doJSON(t, h.Create, http.MethodPost, "/api/orders", body, nil)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, resp.Status)
	assert.Equal(t, 1, notifier.pokes)

	obj, ok := resp.Obj.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, string(models.OrderPending), obj["status"])
	assert.NotEmpty(t, obj["id"])
}

func TestCreateOrderRejectsBadProvider(t *testing.T) {
	h, _, notifier := newHandlerEnv(t)

	body := `{"provider": "midjourney", "model": "m", "items": [{"prompt": "p"}]}`
	rec, resp := doJSON(t, h.Create, http.MethodPost, "/api/orders", body, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Status)
	assert.Zero(t, notifier.pokes)
}

func TestGetOrder(t *testing.T) {
	h, svc, _ := newHandlerEnv(t)

	order, err := svc.Place(orders.PlaceInput{
		Provider:  "fal.ai",
		ModelName: "fal-ai/flux/dev",
		Items:     []orders.ItemInput{{Prompt: "a castle"}},
	})
	require.NoError(t, err)

	rec, resp := doJSON(t, h.Get, http.MethodGet, "/api/orders/"+order.ID, "", map[string]string{"id": order.ID})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Status)

	rec, resp = doJSON(t, h.Get, http.MethodGet, "/api/orders/missing", "", map[string]string{"id": "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, resp.Status)
}

func TestListOrders(t *testing.T) {
	h, svc, _ := newHandlerEnv(t)

	order, err := svc.Place(orders.PlaceInput{
		Reference: "batch-7",
		Provider:  "fal.ai",
		ModelName: "fal-ai/flux/dev",
		Items:     []orders.ItemInput{{Prompt: "a castle"}},
	})
	require.NoError(t, err)

	rec, resp := doJSON(t, h.List, http.MethodGet, "/api/orders", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Status)

	list, ok := resp.Obj.([]interface{})
	require.True(t, ok)
	require.Len(t, list, 1)
	entry := list[0].(map[string]interface{})
	assert.Equal(t, order.ID, entry["id"])
	assert.Equal(t, "batch-7", entry["reference"])

	rec, resp = doJSON(t, h.List, http.MethodGet, "/api/orders?limit=bogus", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Status)
}

func TestGetOrderByReference(t *testing.T) {
	h, svc, _ := newHandlerEnv(t)

	order, err := svc.Place(orders.PlaceInput{
		Reference: "batch-9",
		Provider:  "fal.ai",
		ModelName: "fal-ai/flux/dev",
		Items:     []orders.ItemInput{{Prompt: "a castle"}},
	})
	require.NoError(t, err)

	rec, resp := doJSON(t, h.Get, http.MethodGet, "/api/orders/batch-9", "", map[string]string{"id": "batch-9"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Status)

	obj, ok := resp.Obj.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, order.ID, obj["id"])
}

func TestCancelOrder(t *testing.T) {
	h, svc, _ := newHandlerEnv(t)

	order, err := svc.Place(orders.PlaceInput{
		Provider:  "fal.ai",
		ModelName: "fal-ai/flux/dev",
		Items:     []orders.ItemInput{{Prompt: "a castle"}},
	})
	require.NoError(t, err)

	rec, resp := doJSON(t, h.Cancel, http.MethodPost, "/api/orders/"+order.ID+"/cancel", "", map[string]string{"id": order.ID})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Status)

	loaded, err := svc.Get(order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, loaded.Status)
}
