package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type addItemRequest struct {
	ProductID int64 `json:"productId" binding:"required"`
	Quantity  int   `json:"quantity"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) getCart(c *gin.Context) {
	cart, err := h.cart.GetCart(c.Request.Context(), currentSession(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) addItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "productId and a numeric quantity are required"})
		return
	}

	cart, err := h.cart.AddItem(c.Request.Context(), currentSession(c), req.ProductID, req.Quantity)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) updateItem(c *gin.Context) {
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "quantity must be a number"})
		return
	}

	cart, err := h.cart.UpdateItemQuantity(c.Request.Context(), currentSession(c), c.Param("itemId"), req.Quantity)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) removeItem(c *gin.Context) {
	cart, err := h.cart.RemoveItem(c.Request.Context(), currentSession(c), c.Param("itemId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) clearCart(c *gin.Context) {
	cart, err := h.cart.ClearCart(c.Request.Context(), currentSession(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}
