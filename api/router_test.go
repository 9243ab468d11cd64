package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"api_backoffice/internal/inventory"
	"api_backoffice/internal/notifications"
	"api_backoffice/internal/realtime"
	"api_backoffice/internal/reports"
	"api_backoffice/internal/sales"
	"api_backoffice/internal/storage/memory"
)

const testSecret = "test-secret"

type testEnv struct {
	router *gin.Engine
	hub    *realtime.Hub
	store  *memory.LocalStorage
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)

	store := memory.NewLocalStorage()
	notificationStore := memory.NewNotificationStorage()
	hub := realtime.NewHub(logger, 16)
	t.Cleanup(hub.Close)

	engine := notifications.NewEngine(notificationStore, realtime.NewDispatcher(hub), logger)
	salesService := sales.NewService(store, logger, sales.WithListeners(engine))

	router := gin.New()
	router.Use(AccessLog(logger))
	InitRoutes(router, Dependencies{
		Sales:                 salesService,
		Notifications:         notifications.NewService(notificationStore, logger),
		Reports:               reports.NewService(store, logger),
		Hub:                   hub,
		Auth:                  NewJWTAuthenticator(testSecret),
		Logger:                logger,
		RequireIdempotencyKey: true,
	})
	return &testEnv{router: router, hub: hub, store: store}
}

func (e *testEnv) addProduct(t *testing.T, name string, inStock int) *inventory.Product {
	t.Helper()
	p := &inventory.Product{SKU: name, Name: name, Category: inventory.CategoryRAM, Price: decimal.RequireFromString("45.50"), Stock: 200, InStock: inStock}
	require.NoError(t, inventory.Import(context.Background(), e.store, []*inventory.Product{p}))
	return p
}

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func adminToken(t *testing.T, id int) string {
	return signToken(t, jwt.MapClaims{"id": id, "email": "admin@example.com", "role": "admin"}, testSecret)
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// TestSalesHappyPath_FullFlow covers POST -> GET -> notifications for a sale
// that drops a product into low stock.
func TestSalesHappyPath_FullFlow(t *testing.T) {
	env := newTestEnv(t)
	token := adminToken(t, 7)
	product := env.addProduct(t, "DDR5 32GB", 15)
	var saleID string

	t.Run("POST_CreateSale", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/sales", token, map[string]interface{}{
			"productId": product.ID,
			"quantity":  5,
		}, idempotencyHeader, "sale-1")

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		created := decode[sales.Sale](t, w)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, "DDR5 32GB", created.ProductName)
		assert.Equal(t, "7", created.AdminID)
		assert.Equal(t, "227.50", created.TotalAmount.StringFixed(2))
		saleID = created.ID
	})

	t.Run("GET_Product", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/products/"+product.ID, token, nil)

		require.Equal(t, http.StatusOK, w.Code)
		p := decode[inventory.Product](t, w)
		assert.Equal(t, 10, p.InStock)
		assert.Equal(t, inventory.StatusLowStock, p.Status)
	})

	t.Run("GET_Sales", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/sales", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		all := decode[[]sales.Sale](t, w)
		require.Len(t, all, 1)
		assert.Equal(t, saleID, all[0].ID)

		w = env.do(t, http.MethodGet, "/sales/"+saleID, token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, saleID, decode[sales.Sale](t, w).ID)
	})

	var list []notifications.Notification
	t.Run("GET_Notifications", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/notifications", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		list = decode[[]notifications.Notification](t, w)
		require.Len(t, list, 2)

		messages := map[notifications.Type]string{}
		for _, n := range list {
			messages[n.Type] = n.Message
			assert.False(t, n.IsRead)
		}
		assert.Equal(t, "5 x DDR5 32GB sold for 227.50.", messages[notifications.TypeSale])
		assert.Equal(t, "DDR5 32GB stock is low (10 left).", messages[notifications.TypeStock])

		w = env.do(t, http.MethodGet, "/notifications", adminToken(t, 8), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "[]", w.Body.String(), "other admins see nothing")
	})

	t.Run("PATCH_MarkRead", func(t *testing.T) {
		require.Len(t, list, 2)

		w := env.do(t, http.MethodPatch, "/notifications/"+list[0].ID+"/read", adminToken(t, 8), nil)
		assert.Equal(t, http.StatusNotFound, w.Code, "scoped to the owner")

		w = env.do(t, http.MethodPatch, "/notifications/"+list[0].ID+"/read", token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = env.do(t, http.MethodGet, "/notifications/unread-count", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, int64(1), decode[map[string]int64](t, w)["unread"])

		w = env.do(t, http.MethodPatch, "/notifications/read-all", token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = env.do(t, http.MethodGet, "/notifications/unread-count", token, nil)
		assert.Equal(t, int64(0), decode[map[string]int64](t, w)["unread"])
	})
}

func TestCreateSale_OutOfStock(t *testing.T) {
	env := newTestEnv(t)
	token := adminToken(t, 1)
	product := env.addProduct(t, "RAM", 10)

	w := env.do(t, http.MethodPost, "/sales", token, map[string]interface{}{"productId": product.ID, "quantity": 10}, idempotencyHeader, "k")

	require.Equal(t, http.StatusCreated, w.Code)
	w = env.do(t, http.MethodGet, "/notifications", token, nil)
	var found bool
	for _, n := range decode[[]notifications.Notification](t, w) {
		if n.Type == notifications.TypeStock {
			found = true
			assert.Equal(t, "Out of Stock Alert", n.Title)
			assert.Equal(t, "RAM is out of stock.", n.Message)
		}
	}
	assert.True(t, found)
}

func TestCreateSale_InsufficientStock(t *testing.T) {
	env := newTestEnv(t)
	token := adminToken(t, 1)
	product := env.addProduct(t, "RAM", 5)

	w := env.do(t, http.MethodPost, "/sales", token, map[string]interface{}{"productId": product.ID, "quantity": 6}, idempotencyHeader, "k")

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[map[string]interface{}](t, w)
	assert.Equal(t, "insufficient stock. Available: 5", body["message"])
	assert.Equal(t, float64(5), body["available"])

	w = env.do(t, http.MethodGet, "/sales", token, nil)
	assert.Equal(t, "[]", w.Body.String())
	w = env.do(t, http.MethodGet, "/notifications/unread-count", token, nil)
	assert.Equal(t, int64(0), decode[map[string]int64](t, w)["unread"])
	w = env.do(t, http.MethodGet, "/products/"+product.ID, token, nil)
	assert.Equal(t, 5, decode[inventory.Product](t, w).InStock)
}

func TestCreateSale_RequestErrors(t *testing.T) {
	env := newTestEnv(t)
	token := adminToken(t, 1)
	product := env.addProduct(t, "RAM", 5)

	cases := []struct {
		name    string
		body    map[string]interface{}
		key     string
		status  int
		message string
	}{
		{"missing quantity", map[string]interface{}{"productId": product.ID}, "a", http.StatusBadRequest, "quantity is required"},
		{"negative quantity", map[string]interface{}{"productId": product.ID, "quantity": -1}, "b", http.StatusBadRequest, "quantity must be greater than 0"},
		{"missing product", map[string]interface{}{"quantity": 1}, "c", http.StatusBadRequest, "productId is required"},
		{"missing key", map[string]interface{}{"productId": product.ID, "quantity": 1}, "", http.StatusBadRequest, "Idempotency-Key header is required"},
		{"unknown product", map[string]interface{}{"productId": "nope", "quantity": 1}, "d", http.StatusNotFound, "Product not found"},
		{"zero price", map[string]interface{}{"productId": product.ID, "quantity": 1, "unitPrice": "0"}, "e", http.StatusBadRequest, "validation error: unit price must be greater than zero"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var headers []string
			if tc.key != "" {
				headers = []string{idempotencyHeader, tc.key}
			}
			w := env.do(t, http.MethodPost, "/sales", token, tc.body, headers...)

			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.message, decode[map[string]interface{}](t, w)["message"])
		})
	}
}

func TestCreateSale_IdempotentReplay(t *testing.T) {
	env := newTestEnv(t)
	token := adminToken(t, 1)
	product := env.addProduct(t, "RAM", 20)
	body := map[string]interface{}{"productId": product.ID, "quantity": 2}

	first := env.do(t, http.MethodPost, "/sales", token, body, idempotencyHeader, "same")
	second := env.do(t, http.MethodPost, "/sales", token, body, idempotencyHeader, "same")

	require.Equal(t, http.StatusCreated, first.Code)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, decode[sales.Sale](t, first).ID, decode[sales.Sale](t, second).ID)

	w := env.do(t, http.MethodGet, "/products/"+product.ID, token, nil)
	assert.Equal(t, 18, decode[inventory.Product](t, w).InStock)

	conflict := env.do(t, http.MethodPost, "/sales", token, map[string]interface{}{"productId": product.ID, "quantity": 3}, idempotencyHeader, "same")
	assert.Equal(t, http.StatusConflict, conflict.Code)

	other := env.do(t, http.MethodPost, "/sales", adminToken(t, 2), body, idempotencyHeader, "same")
	require.Equal(t, http.StatusCreated, other.Code)
	otherSale := decode[sales.Sale](t, other)
	assert.NotEqual(t, decode[sales.Sale](t, first).ID, otherSale.ID, "keys belong to the admin that sent them")
	assert.Equal(t, "2", otherSale.AdminID)
	w = env.do(t, http.MethodGet, "/products/"+product.ID, token, nil)
	assert.Equal(t, 16, decode[inventory.Product](t, w).InStock)
}

func TestGetSale_NotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/sales/missing", adminToken(t, 1), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Sale not found", decode[map[string]string](t, w)["message"])
}

func TestMonthlyReport(t *testing.T) {
	env := newTestEnv(t)
	token := adminToken(t, 1)
	product := env.addProduct(t, "RAM", 50)

	for i, date := range []string{"2025-03-03T10:00:00Z", "2025-03-31T23:59:00Z", "2025-04-01T00:00:00Z"} {
		w := env.do(t, http.MethodPost, "/sales", token, map[string]interface{}{
			"productId":       product.ID,
			"quantity":        1,
			"transactionDate": date,
		}, idempotencyHeader, date)
		require.Equal(t, http.StatusCreated, w.Code, "sale %d", i)
	}

	w := env.do(t, http.MethodGet, "/reports/monthly-sales?month=3&year=2025", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	monthly := decode[reports.MonthlySummary](t, w)
	assert.Equal(t, "91.00", monthly.TotalSalesValue.StringFixed(2))
	assert.Equal(t, int64(2), monthly.TransactionCount)

	w = env.do(t, http.MethodGet, "/reports/sales-summary?from=2025-03-01&to=2025-05-01", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(3), decode[reports.Summary](t, w).TotalUnitsSold)

	w = env.do(t, http.MethodGet, "/reports/monthly-sales?month=13", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodGet, "/reports/sales-summary?from=yesterday&to=2025-05-01", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPing(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/ping", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())
}
