package api

import (
	"errors"
	"io"
	"net/http"

	"storefront/internal/models"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

type customerInfoRequest struct {
	CustomerInfo  models.CustomerInfo  `json:"customerInfo"`
	PaymentMethod models.PaymentMethod `json:"paymentMethod"`
}

type confirmRequest struct {
	CustomerInfo  *models.CustomerInfo `json:"customerInfo"`
	PaymentMethod models.PaymentMethod `json:"paymentMethod"`
}

func (h *Handler) beginCheckout(c *gin.Context) {
	view, err := h.checkout.Begin(c.Request.Context(), currentSession(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) checkoutState(c *gin.Context) {
	view, err := h.checkout.State(c.Request.Context(), currentSession(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) submitCustomerInfo(c *gin.Context) {
	var req customerInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}

	view, err := h.checkout.SubmitCustomerInfo(c.Request.Context(), currentSession(c), req.CustomerInfo, req.PaymentMethod)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// confirmOrder accepts an empty body when customer info was submitted earlier
func (h *Handler) confirmOrder(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}

	order, err := h.checkout.Confirm(c.Request.Context(), currentSession(c), service.ConfirmRequest{
		CustomerInfo:   req.CustomerInfo,
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}

	customerID, err := h.currentCustomer(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	order, err := h.checkout.GetOrder(c.Request.Context(), currentSession(c), customerID, orderID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
