package api

import (
	"errors"
	"net/http"

	"storefront/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var statusByError = []struct {
	err    error
	status int
}{
	{service.ErrNotFound, http.StatusNotFound},
	{service.ErrInvalidQuantity, http.StatusBadRequest},
	{service.ErrInsufficientStock, http.StatusConflict},
	{service.ErrEmptyCart, http.StatusConflict},
	{service.ErrInvalidTransition, http.StatusConflict},
	{service.ErrUnauthorized, http.StatusUnauthorized},
	{service.ErrEmailTaken, http.StatusConflict},
}

// writeError maps a service error to a status code and a {"message"} body
func (h *Handler) writeError(c *gin.Context, err error) {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": service.ErrValidationFailed.Error(),
			"fields":  ve.Fields,
		})
		return
	}

	var cce *service.CartClearError
	if errors.As(err, &cce) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": "order was placed but the cart could not be cleared",
			"orderId": cce.Order.ID,
		})
		return
	}

	for _, m := range statusByError {
		if errors.Is(err, m.err) {
			c.JSON(m.status, gin.H{"message": err.Error()})
			return
		}
	}

	h.logger.Error("Request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"message": "internal server error"})
}
