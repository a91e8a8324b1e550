// Package session holds per-session state (cart lines, logged-in customer,
// checkout workflow) behind a store that serializes access per session id.
package session

import (
	"context"
	"errors"
	"time"

	"storefront/internal/models"
)

// ErrPersistence is returned when the backing storage fails to load or save
var ErrPersistence = errors.New("session persistence failure")

// Data is everything the service keeps for one session
type Data struct {
	CustomerID int64                      `json:"customer_id,omitempty"`
	Items      map[string]models.CartItem `json:"items,omitempty"`
	Checkout   *models.CheckoutState      `json:"checkout,omitempty"`
	UpdatedAt  time.Time                  `json:"updated_at"`
}

// Clone returns a deep copy so mutations never leak into stored state
func (d *Data) Clone() *Data {
	out := &Data{
		CustomerID: d.CustomerID,
		Items:      make(map[string]models.CartItem, len(d.Items)),
		Checkout:   d.Checkout.Clone(),
		UpdatedAt:  d.UpdatedAt,
	}
	for k, v := range d.Items {
		out.Items[k] = v
	}
	return out
}

// New returns an empty session record
func New() *Data {
	return &Data{Items: make(map[string]models.CartItem)}
}

// Store is the keyed state store used by the cart engine and checkout workflow.
//
// Update runs fn on a copy of the record while holding the session's lock.
// If fn returns an error nothing is written and that error is returned as is.
// If the write fails the returned error wraps ErrPersistence.
type Store interface {
	Get(ctx context.Context, id string) (*Data, error)
	Update(ctx context.Context, id string, fn func(*Data) error) error
	Delete(ctx context.Context, id string) error
}
