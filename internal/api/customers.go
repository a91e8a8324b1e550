package api

import (
	"errors"
	"net/http"

	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}

	customer, err := h.customers.Register(c.Request.Context(), currentSession(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.rotateSession(c); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "email and password are required"})
		return
	}

	customer, err := h.customers.Login(c.Request.Context(), currentSession(c), req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.rotateSession(c); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

// logout drops the session record and hands out a fresh session id
func (h *Handler) logout(c *gin.Context) {
	if err := h.customers.Logout(c.Request.Context(), currentSession(c)); err != nil {
		h.writeError(c, err)
		return
	}
	h.issueSession(c)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *Handler) status(c *gin.Context) {
	customer, err := h.customers.GetProfile(c.Request.Context(), currentSession(c))
	if errors.Is(err, service.ErrUnauthorized) {
		c.JSON(http.StatusOK, gin.H{"loggedIn": false})
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"loggedIn": true, "customerName": customer.Name})
}

func (h *Handler) getProfile(c *gin.Context) {
	customer, err := h.customers.GetProfile(c.Request.Context(), currentSession(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req service.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}

	customer, err := h.customers.UpdateProfile(c.Request.Context(), currentSession(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *Handler) orderHistory(c *gin.Context) {
	customerID, err := h.currentCustomer(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	orders, err := h.checkout.ListCustomerOrders(c.Request.Context(), customerID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}
