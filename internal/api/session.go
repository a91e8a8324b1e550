package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DefaultCookieName names the session cookie when none is configured
const DefaultCookieName = "STOREFRONT_SESSION"

const sessionContextKey = "storefront.session_id"

// CookieConfig controls the session cookie
type CookieConfig struct {
	Name   string
	MaxAge int
	Secure bool
}

// sessionMiddleware resolves the session id from the cookie, issuing a new
// one when the cookie is missing or malformed
func (h *Handler) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(h.cookie.Name)
		if err != nil || !validSessionID(id) {
			id = h.issueSession(c)
		}
		c.Set(sessionContextKey, id)
		c.Next()
	}
}

func (h *Handler) issueSession(c *gin.Context) string {
	id := uuid.New().String()
	h.setSession(c, id)
	return id
}

// setSession points the cookie and the rest of the request at id
func (h *Handler) setSession(c *gin.Context, id string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, id, h.cookie.MaxAge, "/", "", h.cookie.Secure, true)
	c.Set(sessionContextKey, id)
}

// rotateSession swaps the request's session for a fresh id carrying the same record
func (h *Handler) rotateSession(c *gin.Context) error {
	id, err := h.customers.RotateSession(c.Request.Context(), currentSession(c))
	if err != nil {
		return err
	}
	h.setSession(c, id)
	return nil
}

func validSessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func currentSession(c *gin.Context) string {
	return c.GetString(sessionContextKey)
}

// currentCustomer returns the id of the customer logged into the request's
// session, 0 for guests
func (h *Handler) currentCustomer(c *gin.Context) (int64, error) {
	return h.customers.CustomerID(c.Request.Context(), currentSession(c))
}
