package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/service"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ReadinessCheck reports whether a backing dependency is reachable
type ReadinessCheck func(ctx context.Context) error

// Services groups the domain services the handlers call
type Services struct {
	Catalog   *service.CatalogService
	Cart      *service.CartService
	Checkout  *service.CheckoutService
	Customers *service.CustomerService
}

// Handler contains HTTP handlers
type Handler struct {
	catalog   *service.CatalogService
	cart      *service.CartService
	checkout  *service.CheckoutService
	customers *service.CustomerService
	cookie    CookieConfig
	checks    map[string]ReadinessCheck
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(svc Services, cookie CookieConfig, checks map[string]ReadinessCheck) *Handler {
	if cookie.Name == "" {
		cookie.Name = DefaultCookieName
	}
	return &Handler{
		catalog:   svc.Catalog,
		cart:      svc.Cart,
		checkout:  svc.Checkout,
		customers: svc.Customers,
		cookie:    cookie,
		checks:    checks,
		logger:    util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api", h.sessionMiddleware())
	{
		api.GET("/products", h.listProducts)
		api.GET("/products/:id", h.getProduct)
		api.GET("/categories", h.listCategories)

		api.GET("/cart", h.getCart)
		api.POST("/cart", h.addItem)
		api.DELETE("/cart", h.clearCart)
		api.PUT("/cart/items/:itemId", h.updateItem)
		api.DELETE("/cart/items/:itemId", h.removeItem)

		api.POST("/order/checkout", h.beginCheckout)
		api.GET("/order/checkout", h.checkoutState)
		api.PUT("/order/checkout/customer-info", h.submitCustomerInfo)
		api.POST("/order/confirm", h.confirmOrder)
		api.GET("/orders/:id", h.getOrder)

		customers := api.Group("/customers")
		customers.POST("/register", h.register)
		customers.POST("/login", h.login)
		customers.POST("/logout", h.logout)
		customers.GET("/status", h.status)
		customers.GET("/profile", h.getProfile)
		customers.PUT("/profile", h.updateProfile)
		customers.GET("/orders", h.orderHistory)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every registered dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}

func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid " + name})
		return 0, false
	}
	return id, true
}
