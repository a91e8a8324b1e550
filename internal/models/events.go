package models

import "time"

// Event types
const (
	EventTypeOrderPlaced     = "ORDER_PLACED"
	EventTypeCartClearFailed = "CART_CLEAR_FAILED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent published after an order is persisted and the cart cleared
type OrderPlacedEvent struct {
	BaseEvent
	OrderID       int64           `json:"order_id"`
	CustomerID    int64           `json:"customer_id,omitempty"`
	SessionID     string          `json:"session_id"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	GrandTotal    int64           `json:"grand_total"`
	Items         []OrderItemData `json:"items"`
}

// CartClearFailedEvent published when an order exists but its cart was not cleared
type CartClearFailedEvent struct {
	BaseEvent
	OrderID   int64  `json:"order_id"`
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
}
