package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/service"
	"storefront/internal/session"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	_ = util.InitLogger("test")
	os.Exit(m.Run())
}

type client struct {
	t      *testing.T
	router *gin.Engine
	cookie *http.Cookie
}

func newTestRouter(t *testing.T, checks map[string]ReadinessCheck) *gin.Engine {
	t.Helper()

	db := store.NewMemory()
	db.SeedCatalog()
	sessions := session.NewMemoryStore(0)
	t.Cleanup(func() { sessions.Close() })

	cart := service.NewCartService(sessions, db, service.FlatShipping(500))
	handler := NewHandler(Services{
		Catalog:   service.NewCatalogService(db),
		Cart:      cart,
		Checkout:  service.NewCheckoutService(sessions, cart, db, db, broker.NoopPublisher{}),
		Customers: service.NewCustomerService(db, sessions),
	}, CookieConfig{}, checks)

	router := gin.New()
	handler.SetupRoutes(router)
	return router
}

func newClient(t *testing.T) *client {
	return &client{t: t, router: newTestRouter(t, nil)}
}

func (c *client) do(method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}

	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)

	resp := w.Result()
	for _, ck := range resp.Cookies() {
		if ck.Name == DefaultCookieName {
			c.cookie = ck
		}
	}
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func validInfo() models.CustomerInfo {
	return models.CustomerInfo{
		Name:        "Hanako Yamada",
		Email:       "hanako@example.com",
		Address:     "1-2-3 Shibuya, Tokyo",
		PhoneNumber: "09012345678",
	}
}

func TestHealthAndReady(t *testing.T) {
	c := newClient(t)

	w := c.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = c.do(http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	failing := &client{t: t, router: newTestRouter(t, map[string]ReadinessCheck{
		"database": func(context.Context) error { return errors.New("connection refused") },
	})}
	w = failing.do(http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestProductsEndpoints(t *testing.T) {
	c := newClient(t)

	w := c.do(http.MethodGet, "/api/products?category=Kitchen", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var products []models.Product
	decode(t, w, &products)
	assert.Len(t, products, 2)

	w = c.do(http.MethodGet, "/api/products?q=pen", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &products)
	require.Len(t, products, 1)
	assert.Equal(t, "Brass Pen", products[0].Name)

	w = c.do(http.MethodGet, "/api/products/3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var product models.Product
	decode(t, w, &product)
	assert.Equal(t, "Linen Notebook", product.Name)

	w = c.do(http.MethodGet, "/api/products/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"message"`)

	w = c.do(http.MethodGet, "/api/products/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = c.do(http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var categories []models.Category
	decode(t, w, &categories)
	assert.Len(t, categories, 3)
}

func TestSessionCookieIssued(t *testing.T) {
	c := newClient(t)

	c.do(http.MethodGet, "/api/cart", nil)
	require.NotNil(t, c.cookie)
	assert.True(t, c.cookie.HttpOnly)
	first := c.cookie.Value

	c.do(http.MethodPost, "/api/cart", gin.H{"productId": 1, "quantity": 1})
	assert.Equal(t, first, c.cookie.Value)

	w := c.do(http.MethodGet, "/api/cart", nil)
	var cart models.Cart
	decode(t, w, &cart)
	assert.Equal(t, 1, cart.TotalQuantity)
}

func TestCartEndpoints(t *testing.T) {
	c := newClient(t)

	w := c.do(http.MethodPost, "/api/cart", gin.H{"productId": 2, "quantity": 3})
	require.Equal(t, http.StatusOK, w.Code)
	var cart models.Cart
	decode(t, w, &cart)
	assert.Equal(t, 3, cart.TotalQuantity)
	assert.Equal(t, int64(12600), cart.TotalPrice)
	assert.Equal(t, int64(500), cart.ShippingFee)
	assert.Equal(t, int64(13100), cart.GrandTotal)

	w = c.do(http.MethodPut, "/api/cart/items/2", gin.H{"quantity": 5})
	require.Equal(t, http.StatusOK, w.Code)

	w = c.do(http.MethodPut, "/api/cart/items/2", gin.H{"quantity": 6})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = c.do(http.MethodPut, "/api/cart/items/2", gin.H{"quantity": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = c.do(http.MethodPut, "/api/cart/items/2", gin.H{"quantity": "many"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = c.do(http.MethodPut, "/api/cart/items/4", gin.H{"quantity": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = c.do(http.MethodPost, "/api/cart", gin.H{"productId": 77, "quantity": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = c.do(http.MethodGet, "/api/cart", nil)
	decode(t, w, &cart)
	assert.Equal(t, 5, cart.Items["2"].Quantity)

	w = c.do(http.MethodDelete, "/api/cart/items/404", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = c.do(http.MethodDelete, "/api/cart/items/2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &cart)
	assert.Empty(t, cart.Items)

	w = c.do(http.MethodDelete, "/api/cart", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = c.do(http.MethodDelete, "/api/cart", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCheckoutFlow(t *testing.T) {
	c := newClient(t)

	w := c.do(http.MethodPost, "/api/order/checkout", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	c.do(http.MethodPost, "/api/cart", gin.H{"productId": 1, "quantity": 2})
	c.do(http.MethodPost, "/api/cart", gin.H{"productId": 3, "quantity": 1})

	w = c.do(http.MethodPost, "/api/order/checkout", nil)
	require.Equal(t, http.StatusOK, w.Code)

	bad := validInfo()
	bad.PhoneNumber = "12"
	w = c.do(http.MethodPut, "/api/order/checkout/customer-info", gin.H{"customerInfo": bad, "paymentMethod": "bank_transfer"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	var verr struct {
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	}
	decode(t, w, &verr)
	assert.Contains(t, verr.Fields, "phoneNumber")

	w = c.do(http.MethodPut, "/api/order/checkout/customer-info", gin.H{"customerInfo": validInfo(), "paymentMethod": "bank_transfer"})
	require.Equal(t, http.StatusOK, w.Code)
	var view service.CheckoutView
	decode(t, w, &view)
	assert.Equal(t, models.StageReviewingConfirmation, view.State.Stage)

	w = c.do(http.MethodPost, "/api/order/confirm", nil, "Idempotency-Key", "abc-123")
	require.Equal(t, http.StatusCreated, w.Code)
	var order models.Order
	decode(t, w, &order)
	assert.NotZero(t, order.ID)
	assert.Equal(t, int64(4800), order.TotalPrice)
	assert.Equal(t, int64(5300), order.GrandTotal)
	assert.Len(t, order.Items, 2)
	assert.Equal(t, "Hanako Yamada", order.CustomerInfo.Name)

	w = c.do(http.MethodPost, "/api/order/confirm", nil, "Idempotency-Key", "abc-123")
	require.Equal(t, http.StatusCreated, w.Code)
	var replay models.Order
	decode(t, w, &replay)
	assert.Equal(t, order.ID, replay.ID)

	w = c.do(http.MethodGet, "/api/cart", nil)
	var cart models.Cart
	decode(t, w, &cart)
	assert.True(t, cart.IsEmpty())

	w = c.do(http.MethodGet, "/api/orders/1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	other := &client{t: t, router: c.router}
	w = other.do(http.MethodGet, "/api/orders/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConfirmEmptyCart(t *testing.T) {
	c := newClient(t)

	w := c.do(http.MethodPost, "/api/order/confirm", gin.H{"customerInfo": validInfo(), "paymentMethod": "cash_on_delivery"})
	assert.Equal(t, http.StatusConflict, w.Code)
	var body map[string]string
	decode(t, w, &body)
	assert.Equal(t, service.ErrEmptyCart.Error(), body["message"])
}

func TestLoginRotatesSessionCookie(t *testing.T) {
	c := newClient(t)

	w := c.do(http.MethodPost, "/api/customers/register", gin.H{
		"name": "Taro Suzuki", "email": "taro@example.com", "address": "7-8-9 Sakae, Nagoya",
		"phoneNumber": "0521234567", "password": "correct-horse",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	c.do(http.MethodPost, "/api/customers/logout", nil)

	w = c.do(http.MethodPost, "/api/cart", gin.H{"productId": 3, "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code)
	anonymous := *c.cookie

	w = c.do(http.MethodPost, "/api/customers/login", gin.H{"email": "taro@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEqual(t, anonymous.Value, c.cookie.Value)

	w = c.do(http.MethodGet, "/api/customers/status", nil)
	assert.JSONEq(t, `{"loggedIn": true, "customerName": "Taro Suzuki"}`, w.Body.String())
	w = c.do(http.MethodGet, "/api/cart", nil)
	var cart models.Cart
	decode(t, w, &cart)
	assert.Equal(t, 2, cart.TotalQuantity)

	fixed := &client{t: t, router: c.router, cookie: &anonymous}
	w = fixed.do(http.MethodGet, "/api/customers/status", nil)
	assert.JSONEq(t, `{"loggedIn": false}`, w.Body.String())
}

func TestCustomerEndpoints(t *testing.T) {
	c := newClient(t)

	w := c.do(http.MethodGet, "/api/customers/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"loggedIn": false}`, w.Body.String())

	w = c.do(http.MethodGet, "/api/customers/profile", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = c.do(http.MethodGet, "/api/customers/orders", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	register := gin.H{
		"name": "Taro Suzuki", "email": "taro@example.com", "address": "7-8-9 Sakae, Nagoya",
		"phoneNumber": "0521234567", "password": "correct-horse",
	}
	w = c.do(http.MethodPost, "/api/customers/register", register)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "password")

	w = c.do(http.MethodPost, "/api/customers/register", register)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = c.do(http.MethodGet, "/api/customers/status", nil)
	assert.JSONEq(t, `{"loggedIn": true, "customerName": "Taro Suzuki"}`, w.Body.String())

	c.do(http.MethodPost, "/api/cart", gin.H{"productId": 6, "quantity": 1})
	w = c.do(http.MethodPost, "/api/order/checkout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view service.CheckoutView
	decode(t, w, &view)
	require.NotNil(t, view.State.CustomerInfo)
	assert.Equal(t, "taro@example.com", view.State.CustomerInfo.Email)

	w = c.do(http.MethodPost, "/api/order/confirm", gin.H{"customerInfo": view.State.CustomerInfo, "paymentMethod": "cash_on_delivery"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = c.do(http.MethodGet, "/api/customers/orders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []models.OrderSummary
	decode(t, w, &history)
	assert.Len(t, history, 1)

	before := c.cookie.Value
	w = c.do(http.MethodPost, "/api/customers/logout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEqual(t, before, c.cookie.Value)

	w = c.do(http.MethodGet, "/api/customers/profile", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = c.do(http.MethodPost, "/api/customers/login", gin.H{"email": "taro@example.com", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = c.do(http.MethodPost, "/api/customers/login", gin.H{"email": "taro@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, w.Code)

	w = c.do(http.MethodPut, "/api/customers/profile", gin.H{
		"name": "Taro Suzuki", "email": "taro@example.com", "address": "1-1 Marunouchi, Tokyo",
		"phoneNumber": "0312345678", "currentPassword": "correct-horse",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var profile models.Customer
	decode(t, w, &profile)
	assert.Equal(t, "1-1 Marunouchi, Tokyo", profile.Address)
}
